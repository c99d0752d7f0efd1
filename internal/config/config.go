// Package config loads the gateway configuration from layered sources:
// built-in defaults, an optional TOML file, environment variables, and
// command-line overrides, in ascending precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	toml "github.com/knadh/koanf/parsers/toml/v2"
	"github.com/knadh/koanf/providers/confmap"
	env "github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces environment variables. A double underscore nests:
// CLAUDEBRIDGE_BACKEND__BASE_URL sets backend.base_url.
const EnvPrefix = "CLAUDEBRIDGE_"

// Config is the root configuration.
type Config struct {
	Listen  string  `koanf:"listen" validate:"required"`
	Log     Log     `koanf:"log"`
	Backend Backend `koanf:"backend"`
	Stream  Stream  `koanf:"stream"`
	OTLP    OTLP    `koanf:"otlp"`
}

// Log controls process logging.
type Log struct {
	Level  string `koanf:"level" validate:"required,oneof=debug info warn error"`
	Format string `koanf:"format" validate:"required,oneof=text json"`
}

// Backend identifies the OpenAI-compatible inference server.
type Backend struct {
	// BaseURL is the API root including the version prefix.
	BaseURL string `koanf:"base_url" validate:"required,url"`
	// APIKey is the static bearer key. When empty, the keystore and the
	// CLAUDEBRIDGE_BACKEND__API_KEY variable are consulted in that order by
	// the application wiring; empty everywhere means unauthenticated.
	APIKey string `koanf:"api_key"`
}

// Stream tunes the streaming conversion and SSE delivery.
type Stream struct {
	Timeout              time.Duration `koanf:"timeout" validate:"required,gt=0"`
	PingInterval         time.Duration `koanf:"ping_interval" validate:"required,gt=0"`
	MaxRequestBytes      int64         `koanf:"max_request_bytes" validate:"required,gt=0"`
	MaxToolArgumentBytes int           `koanf:"max_tool_argument_bytes" validate:"required,gt=0"`
	ToolNameStrategy     string        `koanf:"tool_name_strategy" validate:"required,oneof=buffered eager"`
	DisableIncremental   bool          `koanf:"disable_incremental"`
	DisableParseFallback bool          `koanf:"disable_parse_fallback"`
}

// OTLP controls optional log export. An empty protocol disables export.
type OTLP struct {
	Protocol string `koanf:"protocol" validate:"omitempty,oneof=grpc http stdout"`
	Endpoint string `koanf:"endpoint"`
	Insecure bool   `koanf:"insecure"`
}

// defaults are the lowest-precedence layer.
func defaults() map[string]any {
	return map[string]any{
		"listen":     "127.0.0.1:4100",
		"log.level":  "info",
		"log.format": "text",

		"backend.base_url": "http://localhost:11434/v1",

		"stream.timeout":                 "10m",
		"stream.ping_interval":           "15s",
		"stream.max_request_bytes":       10 << 20,
		"stream.max_tool_argument_bytes": 1 << 20,
		"stream.tool_name_strategy":      "buffered",

		"otlp.protocol": "",
	}
}

// Load assembles the configuration. path may be empty (no file layer);
// overrides holds command-line flags keyed by config path and wins over every
// other source.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			key = strings.ReplaceAll(strings.ToLower(key), "__", ".")
			return key, value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("load flag overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		},
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
