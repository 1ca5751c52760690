package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/koscakluka/ema-tutor/internal/logging"
	"github.com/koscakluka/ema-tutor/internal/utils"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides cfg with the environment. Empty variables are ignored.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	parsed := func(key string, parse func(string) error) {
		v, ok := lookup(key)
		if !ok || v == "" {
			return
		}
		if err := parse(strings.TrimSpace(v)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	str("TUTOR_ADDR", &cfg.Server.Addr)
	parsed("TUTOR_MESSAGES_PER_SECOND", func(v string) (err error) {
		cfg.Server.MessagesPerSecond, err = strconv.ParseFloat(v, 64)
		return err
	})
	parsed("TUTOR_ALLOWED_ORIGINS", func(v string) error {
		cfg.Server.AllowedOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.Server.AllowedOrigins = append(cfg.Server.AllowedOrigins, origin)
			}
		}
		return nil
	})

	str("TUTOR_LOG_LEVEL", &cfg.Log.Level)
	parsed("TUTOR_LOG_FORMAT", func(v string) error {
		cfg.Log.Format = logging.Format(strings.ToLower(v))
		return nil
	})

	parsed("TUTOR_STORE", func(v string) error {
		cfg.Store.Backend = StoreBackend(strings.ToLower(v))
		return nil
	})
	str("TUTOR_REDIS_ADDR", &cfg.Store.Redis.Addr)
	str("TUTOR_REDIS_PASSWORD", &cfg.Store.Redis.Password)
	parsed("TUTOR_REDIS_DB", func(v string) (err error) {
		cfg.Store.Redis.DB, err = strconv.Atoi(v)
		return err
	})
	str("TUTOR_CATALOG", &cfg.Store.Catalog)

	str("OPENAI_API_KEY", &cfg.OpenAI.APIKey)
	str("TUTOR_OPENAI_MODEL", &cfg.OpenAI.Model)
	str("TUTOR_OPENAI_URL", &cfg.OpenAI.URL)
	parsed("TUTOR_OPENAI_TEMPERATURE", func(v string) error {
		temperature, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return err
		}
		cfg.OpenAI.Temperature = utils.Ptr(temperature)
		return nil
	})

	str("DEEPGRAM_API_KEY", &cfg.Deepgram.APIKey)

	parsed("TUTOR_STREAMING", func(v string) (err error) {
		cfg.Tutoring.Streaming, err = strconv.ParseBool(v)
		return err
	})
	parsed("TUTOR_FLUSH_THRESHOLD", func(v string) (err error) {
		cfg.Tutoring.FlushThreshold, err = strconv.Atoi(v)
		return err
	})

	return errors.Join(errs...)
}
