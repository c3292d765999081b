package broker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/go-cmp/cmp"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func completedToken(err error) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	close(t.done)
	return t
}

func (t *fakeToken) Wait() bool {
	<-t.done
	return true
}

func (t *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-t.done:
		return true
	case <-time.After(d):
		return false
	}
}

func (t *fakeToken) Done() <-chan struct{} { return t.done }
func (t *fakeToken) Error() error          { return t.err }

type published struct {
	Topic   string
	QoS     byte
	Payload string
}

type fakeClient struct {
	token        mqtt.Token
	msgs         []published
	disconnected uint
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	c.msgs = append(c.msgs, published{Topic: topic, QoS: qos, Payload: string(payload.([]byte))})
	return c.token
}

func (c *fakeClient) Disconnect(quiesce uint) { c.disconnected = quiesce }

func TestSyncTopic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		prefix, group, want string
	}{
		{"mapsync/sync", "payables", "mapsync/sync/payables"},
		{"mapsync/sync/", "payables", "mapsync/sync/payables"},
		{"", "workforce", "mapsync/sync/workforce"},
		{"x", "a/b+#", "x/a_b__"},
	}
	for _, tt := range tests {
		if got := SyncTopic(tt.prefix, tt.group); got != tt.want {
			t.Fatalf("SyncTopic(%q,%q)=%q want %q", tt.prefix, tt.group, got, tt.want)
		}
	}
}

func TestPublishJSON(t *testing.T) {
	t.Parallel()

	c := &fakeClient{token: completedToken(nil)}
	p := &MQTTPublisher{client: c}

	err := PublishJSON(context.Background(), p, "mapsync/sync/payables", map[string]int{"succeeded": 2})
	if err != nil {
		t.Fatalf("PublishJSON: %v", err)
	}
	want := []published{{Topic: "mapsync/sync/payables", QoS: 1, Payload: `{"succeeded":2}`}}
	if diff := cmp.Diff(want, c.msgs); diff != "" {
		t.Fatalf("published (-want +got):\n%s", diff)
	}

	p.Close()
	if c.disconnected != 1000 {
		t.Fatalf("Disconnect quiesce=%d", c.disconnected)
	}
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	t.Run("broker error", func(t *testing.T) {
		p := &MQTTPublisher{client: &fakeClient{token: completedToken(errors.New("not authorized"))}}
		err := p.Publish(context.Background(), "t", []byte("x"))
		if err == nil || !strings.Contains(err.Error(), "not authorized") {
			t.Fatalf("err=%v", err)
		}
	})

	t.Run("context cancelled", func(t *testing.T) {
		pending := &fakeToken{done: make(chan struct{})}
		p := &MQTTPublisher{client: &fakeClient{token: pending}}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := p.Publish(ctx, "t", []byte("x")); !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v want context.Canceled", err)
		}
	})

	t.Run("unmarshalable value", func(t *testing.T) {
		p := &MQTTPublisher{client: &fakeClient{token: completedToken(nil)}}
		if err := PublishJSON(context.Background(), p, "t", func() {}); err == nil {
			t.Fatalf("expected marshal error")
		}
	})
}

func TestNewMQTTRequiresURL(t *testing.T) {
	t.Parallel()

	if _, err := NewMQTT(Config{}, nil); err == nil {
		t.Fatalf("expected error for empty url")
	}
}
