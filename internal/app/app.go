// Package app wires configuration into the collaborators shared by the
// mapsync binaries: catalog, store, metrics backend, AI suggester and sync
// publisher.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"mapsync/internal/broker"
	"mapsync/internal/catalog"
	"mapsync/internal/config"
	"mapsync/internal/metrics"
	"mapsync/internal/metrics/datadog"
	"mapsync/internal/metrics/prompush"
	"mapsync/internal/storage"
	"mapsync/internal/suggest"

	// register all backends with the storage factory.
	_ "mapsync/internal/storage/all"
)

// Logger is the logging seam used by every internal package.
type Logger interface {
	Printf(format string, v ...any)
}

// LoadCatalog reads a JSON catalog from path, or returns the built-in one
// when path is empty.
func LoadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("app: open catalog: %w", err)
	}
	defer f.Close()
	cat, err := catalog.Load(f)
	if err != nil {
		return nil, fmt.Errorf("app: catalog %s: %w", path, err)
	}
	return cat, nil
}

// OpenStore opens the configured backend and creates the registry tables.
func OpenStore(ctx context.Context, cfg config.Config, cat *catalog.Catalog) (storage.Store, error) {
	st, err := storage.Open(ctx, storage.Config{Kind: cfg.StorageKind, DSN: cfg.DSN, Catalog: cat})
	if err != nil {
		return nil, err
	}
	if err := st.EnsureRegistry(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// StartMetrics installs the backend named by cfg.MetricsBackend and returns a
// stop function that flushes it and restores the nop backend. Init failures
// are logged and leave metrics disabled.
func StartMetrics(ctx context.Context, cfg config.Config, job string, logger Logger) (stop func()) {
	stop = func() {}
	switch cfg.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend(job, cfg.PushgatewayURL)
		if err != nil {
			logger.Printf("stage=metrics level=warn backend=pushgateway err=%q; using nop", err.Error())
			return stop
		}
		logger.Printf("stage=metrics backend=pushgateway url=%s job=%s", cfg.PushgatewayURL, job)
		metrics.SetBackend(b)
		return func() {
			if err := metrics.Flush(); err != nil {
				logger.Printf("stage=metrics level=warn flush err=%q", err.Error())
			}
			metrics.SetBackend(nil)
		}

	case "datadog":
		tags := datadog.ParseTagsCSV(cfg.MetricsTags)
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    job,
			Tags:       tags,
			FlushEvery: 60 * time.Second,
		})
		if err != nil {
			logger.Printf("stage=metrics level=warn backend=datadog err=%q; using nop", err.Error())
			return stop
		}
		logger.Printf("stage=metrics backend=datadog job=%s tags=%v", job, tags)
		metrics.SetBackend(b)
		return func() {
			if err := b.Close(); err != nil {
				logger.Printf("stage=metrics level=warn datadog close err=%q", err.Error())
			}
			metrics.SetBackend(nil)
		}

	case "", "none":
		return stop

	default:
		logger.Printf("stage=metrics level=warn unknown backend %q; metrics disabled", cfg.MetricsBackend)
		return stop
	}
}

// Suggester returns the Gemini client when an API key is configured and
// suggest.Disabled otherwise, wrapped so failures degrade to no suggestions.
func Suggester(cfg config.Config, logger Logger) suggest.Suggester {
	if !cfg.AIEnabled() {
		return suggest.Safe(suggest.Disabled{}, logger)
	}
	return suggest.Safe(suggest.NewGeminiClient(suggest.GeminiConfig{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		BaseURL: cfg.GeminiBaseURL,
		Timeout: cfg.AITimeout,
	}), logger)
}

// Publisher connects to the configured MQTT broker. It returns nil, nil when
// no broker is configured.
func Publisher(cfg config.Config, logger Logger) (broker.Publisher, error) {
	if cfg.MQTTBroker == "" {
		return nil, nil
	}
	p, err := broker.NewMQTT(broker.Config{URL: cfg.MQTTBroker, ClientID: cfg.MQTTClientID}, logger)
	if err != nil {
		return nil, err
	}
	return p, nil
}
