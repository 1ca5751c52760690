// Package config loads the tutor configuration: built in defaults, an
// optional YAML file and environment overrides, in that order.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/koscakluka/ema-tutor/core/audio"
	"github.com/koscakluka/ema-tutor/core/store"
	"github.com/koscakluka/ema-tutor/internal/logging"
	"github.com/koscakluka/ema-tutor/internal/retry"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	OpenAI   OpenAIConfig   `yaml:"openai"`
	Deepgram DeepgramConfig `yaml:"deepgram"`
	Tutoring TutoringConfig `yaml:"tutoring"`
	Retry    retry.Policy   `yaml:"retry"`
}

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// MessagesPerSecond limits inbound messages per connection.
	MessagesPerSecond float64  `yaml:"messages_per_second"`
	MessageBurst      int      `yaml:"message_burst"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
}

type LogConfig struct {
	Level  string         `yaml:"level"`
	Format logging.Format `yaml:"format"`
}

type StoreBackend string

const (
	StoreMemory StoreBackend = "memory"
	StoreRedis  StoreBackend = "redis"
)

type StoreConfig struct {
	Backend StoreBackend      `yaml:"backend"`
	Redis   store.RedisConfig `yaml:"redis"`
	// Catalog is a YAML catalog seeded into the store at startup, optional.
	Catalog string `yaml:"catalog"`
}

type OpenAIConfig struct {
	APIKey          string   `yaml:"api_key"`
	URL             string   `yaml:"url"`
	Model           string   `yaml:"model"`
	Temperature     *float64 `yaml:"temperature"`
	MaxOutputTokens *int     `yaml:"max_output_tokens"`
}

type DeepgramConfig struct {
	APIKey    string `yaml:"api_key"`
	SpeakURL  string `yaml:"speak_url"`
	ListenURL string `yaml:"listen_url"`
	// Encoding of synthesized audio sent to clients.
	Encoding audio.EncodingInfo `yaml:"encoding"`
}

type TutoringConfig struct {
	// Streaming selects streamed generation over whole responses.
	Streaming      bool `yaml:"streaming"`
	FlushThreshold int  `yaml:"flush_threshold"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:              ":8000",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			MessagesPerSecond: 5,
			MessageBurst:      20,
		},
		Log: LogConfig{Level: "info", Format: logging.FormatText},
		Store: StoreConfig{
			Backend: StoreMemory,
			Redis:   store.RedisConfig{Addr: "localhost:6379", Prefix: "tutor"},
		},
		OpenAI:   OpenAIConfig{Model: "gpt-4.1-mini"},
		Deepgram: DeepgramConfig{Encoding: audio.GetDefaultEncodingInfo()},
		Tutoring: TutoringConfig{Streaming: true, FlushThreshold: 16 << 10},
		Retry:    retry.DefaultPolicy(),
	}
}

// Load builds the configuration. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
		}
	}

	if err := ApplyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(cfg)
}

func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is empty"))
	}
	if c.Server.MessagesPerSecond <= 0 || c.Server.MessageBurst <= 0 {
		errs = append(errs, errors.New("server message rate and burst must be positive"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, fmt.Errorf("log.level: %w", err))
	}
	if c.Log.Format != logging.FormatText && c.Log.Format != logging.FormatJSON {
		errs = append(errs, fmt.Errorf("log.format must be %q or %q, got %q", logging.FormatText, logging.FormatJSON, c.Log.Format))
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreRedis:
		if c.Store.Redis.Addr == "" {
			errs = append(errs, errors.New("store.redis.addr is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store backend %q", c.Store.Backend))
	}
	if c.Tutoring.FlushThreshold <= 0 {
		errs = append(errs, errors.New("tutoring.flush_threshold must be positive"))
	}
	if err := c.Deepgram.Encoding.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("deepgram.encoding: %w", err))
	}
	if c.Retry.MaxAttempts == 0 {
		errs = append(errs, errors.New("retry.max_attempts must be at least 1"))
	}
	return errors.Join(errs...)
}

// RequireProviders checks the credentials needed to serve sessions.
func (c Config) RequireProviders() error {
	var errs []error
	if c.OpenAI.APIKey == "" {
		errs = append(errs, errors.New("OPENAI_API_KEY is not set"))
	}
	if c.Deepgram.APIKey == "" {
		errs = append(errs, errors.New("DEEPGRAM_API_KEY is not set"))
	}
	return errors.Join(errs...)
}
