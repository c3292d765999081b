// Package broker publishes sync notifications to an MQTT broker.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Logger is the minimal logging seam.
type Logger interface {
	Printf(format string, v ...any)
}

// Publisher sends one message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Close()
}

// Config describes the broker connection.
type Config struct {
	URL      string
	ClientID string
	Username string
	Password string
	// ConnectTimeout bounds the initial connect. Defaults to 10s.
	ConnectTimeout time.Duration
}

const (
	qos            = 1
	publishTimeout = 5 * time.Second
)

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTPublisher publishes with QoS 1 and reconnects automatically.
type MQTTPublisher struct {
	client client
	logger Logger
}

// NewMQTT connects to cfg.URL.
func NewMQTT(cfg Config, logger Logger) (*MQTTPublisher, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("broker: url is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = fmt.Sprintf("mapsync-%d", time.Now().UnixNano())
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	logf := func(format string, v ...any) {
		if logger != nil {
			logger.Printf(format, v...)
		}
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.URL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(func(mqtt.Client) {
			logf("stage=broker connected url=%s", cfg.URL)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logf("stage=broker level=warn connection_lost err=%q", err.Error())
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		c.Disconnect(0)
		return nil, fmt.Errorf("broker: connect to %s: timeout", cfg.URL)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("broker: connect to %s: %w", cfg.URL, err)
	}
	return &MQTTPublisher{client: c, logger: logger}, nil
}

// Publish waits for the broker acknowledgement, bounded by ctx and a 5s cap.
func (p *MQTTPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	token := p.client.Publish(topic, qos, false, payload)

	timer := time.NewTimer(publishTimeout)
	defer timer.Stop()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return fmt.Errorf("broker: publish %s: %w", topic, ctx.Err())
	case <-timer.C:
		return fmt.Errorf("broker: publish %s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("broker: publish %s: %w", topic, err)
	}
	if p.logger != nil {
		p.logger.Printf("stage=broker published topic=%s bytes=%d", topic, len(payload))
	}
	return nil
}

// Close disconnects, allowing 1s for in-flight work.
func (p *MQTTPublisher) Close() {
	p.client.Disconnect(1000)
}

// SyncTopic returns "<prefix>/<groupID>". Characters MQTT treats specially
// are replaced with "_".
func SyncTopic(prefix, groupID string) string {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = "mapsync/sync"
	}
	clean := strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#':
			return '_'
		}
		return r
	}, groupID)
	return prefix + "/" + clean
}

// PublishJSON marshals v and publishes it.
func PublishJSON(ctx context.Context, p Publisher, topic string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("broker: marshal %s: %w", topic, err)
	}
	return p.Publish(ctx, topic, payload)
}

var _ Publisher = (*MQTTPublisher)(nil)
