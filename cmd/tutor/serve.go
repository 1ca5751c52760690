package main

import (
	"context"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/koscakluka/ema-tutor/core/lessons"
	"github.com/koscakluka/ema-tutor/core/llms"
	"github.com/koscakluka/ema-tutor/core/llms/openai"
	listen "github.com/koscakluka/ema-tutor/core/speechtotext/deepgram"
	"github.com/koscakluka/ema-tutor/core/store"
	speak "github.com/koscakluka/ema-tutor/core/texttospeech/deepgram"
	"github.com/koscakluka/ema-tutor/core/tutoring"
	"github.com/koscakluka/ema-tutor/internal/config"
	"github.com/koscakluka/ema-tutor/internal/logging"
	"github.com/koscakluka/ema-tutor/internal/metrics"
	"github.com/koscakluka/ema-tutor/internal/server"
	"github.com/koscakluka/ema-tutor/internal/utils"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the learning interface",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root.configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := cfg.RequireProviders(); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func loadConfig(path string, logOutput io.Writer) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	level, _ := logging.ParseLevel(cfg.Log.Level)
	logging.Setup(logOutput, cfg.Log.Format, level)
	return cfg, nil
}

// backend is the store selected by the configuration. For Redis the locker
// is shared across processes.
type backend struct {
	store  store.Store
	locker store.Locker
	health func(ctx context.Context) error
	close  func() error
}

func openBackend(ctx context.Context, cfg config.StoreConfig) (*backend, error) {
	switch cfg.Backend {
	case config.StoreRedis:
		redis, err := store.NewRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		return &backend{
			store:  redis,
			locker: store.NewRedisLocker(redis.Client(), cfg.Redis.Prefix),
			health: redis.HealthCheck,
			close:  redis.Close,
		}, nil
	default:
		return &backend{
			store:  store.NewMemory(),
			locker: store.NewKeyedMutex(),
			close:  func() error { return nil },
		}, nil
	}
}

func seedCatalog(ctx context.Context, path string, records *lessons.Records) error {
	catalog, err := lessons.LoadCatalogFile(path)
	if err != nil {
		return err
	}
	if err := catalog.Validate(); err != nil {
		return fmt.Errorf("invalid catalog %s: %w", path, err)
	}
	if err := catalog.Seed(ctx, records); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	logger.Info("catalog seeded", "path", path,
		"courses", len(catalog.Courses),
		"sessions", len(catalog.Sessions),
	)
	return nil
}

func serve(ctx context.Context, cfg config.Config) error {
	backend, err := openBackend(ctx, cfg.Store)
	if err != nil {
		return err
	}
	defer backend.close()

	records := lessons.NewRecords(backend.store)
	if cfg.Store.Catalog != "" {
		if err := seedCatalog(ctx, cfg.Store.Catalog, records); err != nil {
			return err
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	generator := openai.NewClient(cfg.OpenAI.APIKey, openAIOptions(cfg)...)

	synthesizer, err := speak.NewTextToSpeechClient(cfg.Deepgram.APIKey, speakOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create speech synthesizer: %w", err)
	}
	transcriber, err := listen.NewTranscriptionClient(cfg.Deepgram.APIKey, listenOptions(cfg)...)
	if err != nil {
		return fmt.Errorf("failed to create transcriber: %w", err)
	}

	dispatcher := tutoring.NewDispatcher(synthesizer, records,
		tutoring.WithFlushThreshold(cfg.Tutoring.FlushThreshold),
		tutoring.WithDispatchRecorder(recorder),
	)
	tutor := tutoring.NewTutor(records, generator, dispatcher,
		tutoring.WithLocker(backend.locker),
		tutoring.WithTranscriber(transcriber),
		tutoring.WithRecorder(recorder),
		tutoring.WithStreaming(cfg.Tutoring.Streaming),
		tutoring.WithRequestOptions(requestOptions(cfg)...),
	)

	srv := server.New(tutor, server.Options{
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		MessagesPerSecond: cfg.Server.MessagesPerSecond,
		MessageBurst:      cfg.Server.MessageBurst,
		Observer:          recorder,
		Gatherer:          registry,
		Health:            backend.health,
	})
	return srv.Run(ctx, cfg.Server.Addr, cfg.Server.ReadHeaderTimeout, cfg.Server.ShutdownTimeout)
}

func openAIOptions(cfg config.Config) []openai.ClientOption {
	opts := []openai.ClientOption{
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithRetryPolicy(cfg.Retry),
	}
	if cfg.OpenAI.URL != "" {
		opts = append(opts, openai.WithURL(cfg.OpenAI.URL))
	}
	return opts
}

// requestOptions carries the sampling settings that apply to every turn.
func requestOptions(cfg config.Config) []llms.RequestOption {
	var opts []llms.RequestOption
	if cfg.OpenAI.Temperature != nil {
		opts = append(opts, llms.WithTemperature(utils.Deref(cfg.OpenAI.Temperature)))
	}
	if cfg.OpenAI.MaxOutputTokens != nil {
		opts = append(opts, llms.WithMaxOutputTokens(utils.Deref(cfg.OpenAI.MaxOutputTokens)))
	}
	return opts
}

func speakOptions(cfg config.Config) []speak.ClientOption {
	opts := []speak.ClientOption{
		speak.WithEncodingInfo(cfg.Deepgram.Encoding),
		speak.WithRetryPolicy(cfg.Retry),
	}
	if cfg.Deepgram.SpeakURL != "" {
		opts = append(opts, speak.WithURL(cfg.Deepgram.SpeakURL))
	}
	return opts
}

func listenOptions(cfg config.Config) []listen.ClientOption {
	opts := []listen.ClientOption{listen.WithRetryPolicy(cfg.Retry)}
	if cfg.Deepgram.ListenURL != "" {
		opts = append(opts, listen.WithURL(cfg.Deepgram.ListenURL))
	}
	return opts
}

