// Package config resolves runtime settings for the mapsync binaries.
//
// Precedence, lowest first: built-in defaults, a .env file, the process
// environment, then command-line flags (applied by the caller after Load).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cast"
)

// Config is the resolved runtime configuration.
type Config struct {
	StorageKind string `json:"storage_kind" env:"MAPSYNC_STORAGE_KIND" validate:"required,oneof=postgres mssql sqlite"`
	DSN         string `json:"dsn" env:"MAPSYNC_DSN" validate:"required"`
	// CatalogPath points at a JSON catalog; empty uses the built-in one.
	CatalogPath  string `json:"catalog" env:"MAPSYNC_CATALOG" validate:"omitempty,file"`
	CreateTables bool   `json:"create_tables" env:"MAPSYNC_CREATE_TABLES"`

	HTTPAddr        string        `json:"http_addr" env:"MAPSYNC_HTTP_ADDR" validate:"required"`
	CORSOrigin      string        `json:"cors_origin" env:"MAPSYNC_CORS_ORIGIN" validate:"required"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" env:"MAPSYNC_SHUTDOWN_TIMEOUT" validate:"gt=0"`
	MaxUploadBytes  int64         `json:"max_upload_bytes" env:"MAPSYNC_MAX_UPLOAD_BYTES" validate:"gt=0"`

	DatasetTTL      time.Duration `json:"dataset_ttl" env:"MAPSYNC_DATASET_TTL" validate:"gt=0"`
	DatasetCapacity int64         `json:"dataset_capacity" env:"MAPSYNC_DATASET_CAPACITY" validate:"gt=0"`

	GeminiAPIKey    string        `json:"-" env:"MAPSYNC_AI_API_KEY"`
	GeminiModel     string        `json:"gemini_model" env:"MAPSYNC_AI_MODEL" validate:"required"`
	GeminiBaseURL   string        `json:"gemini_base_url" env:"MAPSYNC_AI_BASE_URL" validate:"omitempty,url"`
	AITimeout       time.Duration `json:"ai_timeout" env:"MAPSYNC_AI_TIMEOUT" validate:"gt=0"`
	AIMinConfidence float64       `json:"ai_min_confidence" env:"MAPSYNC_AI_MIN_CONFIDENCE" validate:"gte=0,lte=1"`

	MetricsBackend string `json:"metrics_backend" env:"METRICS_BACKEND" validate:"omitempty,oneof=none datadog pushgateway"`
	PushgatewayURL string `json:"pushgateway_url" env:"PUSHGATEWAY_URL" validate:"omitempty,url"`
	MetricsTags    string `json:"metrics_tags" env:"METRICS_TAGS"`

	MQTTBroker      string `json:"mqtt_broker" env:"MAPSYNC_MQTT_BROKER" validate:"omitempty,url"`
	MQTTClientID    string `json:"mqtt_client_id" env:"MAPSYNC_MQTT_CLIENT_ID"`
	MQTTTopicPrefix string `json:"mqtt_topic_prefix" env:"MAPSYNC_MQTT_TOPIC_PREFIX" validate:"required"`

	LogFormat string `json:"log_format" env:"MAPSYNC_LOG_FORMAT" validate:"oneof=console json"`
	Verbose   bool   `json:"verbose" env:"MAPSYNC_VERBOSE"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		StorageKind:     "sqlite",
		DSN:             "mapsync.db",
		HTTPAddr:        ":8080",
		CORSOrigin:      "*",
		ShutdownTimeout: 10 * time.Second,
		MaxUploadBytes:  32 << 20,
		DatasetTTL:      30 * time.Minute,
		DatasetCapacity: 64,
		GeminiModel:     "gemini-2.0-flash",
		AITimeout:       30 * time.Second,
		AIMinConfidence: 0,
		MetricsBackend:  "none",
		MQTTTopicPrefix: "mapsync/sync",
		LogFormat:       "console",
	}
}

// LookupFunc resolves one environment variable.
type LookupFunc func(key string) (string, bool)

// Load applies envFile (when present) and then the process environment on
// top of Defaults. A missing envFile is not an error. The result is not
// validated; call Validate after applying flags.
func Load(envFile string) (Config, error) {
	return LoadLookup(envFile, os.LookupEnv)
}

// LoadLookup is Load with env in place of the process environment.
func LoadLookup(envFile string, env LookupFunc) (Config, error) {
	dot := map[string]string{}
	if envFile != "" {
		m, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			dot = m
		case errors.Is(err, fs.ErrNotExist):
		default:
			return Config{}, fmt.Errorf("config: read %s: %w", envFile, err)
		}
	}
	return FromEnv(Defaults(), Chain(env, MapLookup(dot)))
}

// MapLookup serves variables from m.
func MapLookup(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

// Chain returns the first hit among fns.
func Chain(fns ...LookupFunc) LookupFunc {
	return func(k string) (string, bool) {
		for _, f := range fns {
			if v, ok := f(k); ok {
				return v, true
			}
		}
		return "", false
	}
}

// FromEnv overrides fields of base that have a variable set in lookup. The
// GEMINI_API_KEY name is accepted as a fallback for the API key.
func FromEnv(base Config, lookup LookupFunc) (Config, error) {
	cfg := base
	v := reflect.ValueOf(&cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("env")
		if key == "" {
			continue
		}
		raw, ok := lookup(key)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), strings.TrimSpace(raw)); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", key, err)
		}
	}
	if cfg.GeminiAPIKey == "" {
		if k, ok := lookup("GEMINI_API_KEY"); ok {
			cfg.GeminiAPIKey = strings.TrimSpace(k)
		}
	}
	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

func setField(f reflect.Value, raw string) error {
	if f.Type() == durationType {
		d, err := cast.ToDurationE(raw)
		if err != nil {
			return err
		}
		f.SetInt(int64(d))
		return nil
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := cast.ToBoolE(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int64, reflect.Int:
		n, err := cast.ToInt64E(raw)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Float64:
		x, err := cast.ToFloat64E(raw)
		if err != nil {
			return err
		}
		f.SetFloat(x)
	default:
		return fmt.Errorf("unsupported field kind %s", f.Kind())
	}
	return nil
}

// AIEnabled reports whether an API key is configured.
func (c Config) AIEnabled() bool { return c.GeminiAPIKey != "" }
