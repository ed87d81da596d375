package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/claim-processor/internal/config"
	"github.com/kirillkom/claim-processor/internal/core/ports"
	"github.com/kirillkom/claim-processor/internal/core/usecase"
	"github.com/kirillkom/claim-processor/internal/infrastructure/chunking"
	"github.com/kirillkom/claim-processor/internal/infrastructure/extractor/dispatch"
	"github.com/kirillkom/claim-processor/internal/infrastructure/extractor/pdftext"
	"github.com/kirillkom/claim-processor/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/claim-processor/internal/infrastructure/extractor/spreadsheet"
	"github.com/kirillkom/claim-processor/internal/infrastructure/llm/gemini"
	"github.com/kirillkom/claim-processor/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/claim-processor/internal/infrastructure/llm/vertex"
	"github.com/kirillkom/claim-processor/internal/infrastructure/queue/nats"
	"github.com/kirillkom/claim-processor/internal/infrastructure/repository/sqlstore"
	"github.com/kirillkom/claim-processor/internal/infrastructure/resilience"
	"github.com/kirillkom/claim-processor/internal/infrastructure/storage/firestore"
	"github.com/kirillkom/claim-processor/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/claim-processor/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/claim-processor/internal/observability/metrics"
)

const serviceName = "claim-processor"

type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Executor *resilience.Executor

	Processor ports.DocumentProcessor
	Records   ports.RecordReader

	closers []func() error
}

// New wires the pipeline for cfg. The caller owns the returned App and must
// Close it.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{
		Config:   cfg,
		Logger:   logger,
		Registry: prometheus.NewRegistry(),
	}

	providerMetrics := metrics.NewResilienceMetrics(serviceName, app.Registry)
	executorCfg := resilience.ExternalCallConfig()
	executorCfg.Logger = logger
	executorCfg.Observer = providerMetrics
	app.Executor = resilience.NewExecutor(executorCfg)

	vision, generator, err := app.provider(ctx)
	if err != nil {
		app.Close()
		return nil, err
	}

	records, closeRecords, err := OpenRecordStore(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.addCloser(closeRecords)
	app.Records = records

	staging, err := localfs.New(cfg.UploadDir)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("init upload staging: %w", err)
	}

	recognizer := dispatch.New(vision, dispatch.Options{
		PDF:         pdftext.NewRecognizer(cfg.PDFMaxPages),
		Spreadsheet: spreadsheet.NewRecognizer(),
		PlainText:   plaintext.NewRecognizer(),
		Logger:      logger,
	})

	var classifier ports.DocumentClassifier = usecase.NewKeywordClassifier()
	if cfg.Classifier == config.ClassifierGenerative {
		classifier = usecase.NewGenerativeClassifier(generator)
	}

	opts := usecase.PipelineOptions{
		StageTimeout:           cfg.StageTimeout,
		MaxDocumentBytes:       cfg.MaxUploadBytes,
		ClassificationFallback: cfg.ClassificationFallback,
		Observer:               metrics.NewPipelineMetrics(serviceName, app.Registry),
		Logger:                 logger,
	}
	if cfg.NATSURL != "" {
		publisher, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.Config{Logger: logger}),
			Logger:             logger,
		})
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("init event publisher: %w", err)
		}
		app.addCloser(func() error { publisher.Close(); return nil })
		opts.Publisher = publisher
	}

	app.Processor = usecase.NewProcessDocumentUseCase(
		staging,
		recognizer,
		classifier,
		chunking.NewLineSplitter(cfg.ChunkMaxLineRunes, cfg.ChunkOverlap),
		records,
		generator,
		opts,
	)

	logger.Info("pipeline_ready",
		"provider", cfg.AIProvider,
		"record_store", cfg.RecordStore,
		"classifier", cfg.Classifier,
		"events", cfg.NATSURL != "",
	)
	return app, nil
}

func (a *App) provider(ctx context.Context) (ports.TextRecognizer, ports.TextGenerator, error) {
	cfg := a.Config
	switch cfg.AIProvider {
	case config.ProviderGemini:
		client, err := gemini.New(ctx, gemini.Config{
			BaseURL: cfg.GeminiBaseURL,
			APIKey:  cfg.GoogleAPIKey,
			Model:   cfg.GeminiModel,
		}, a.Executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init gemini client: %w", err)
		}
		return gemini.NewRecognizer(client), gemini.NewGenerator(client), nil
	case config.ProviderVertex:
		client, err := vertex.New(ctx, cfg.VertexProjectID, cfg.VertexRegion, cfg.VertexModel, a.Executor)
		if err != nil {
			return nil, nil, fmt.Errorf("init vertex client: %w", err)
		}
		a.addCloser(client.Close)
		return vertex.NewRecognizer(client), vertex.NewGenerator(client), nil
	case config.ProviderOllama:
		client := ollama.New(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaVisionModel, a.Executor)
		return ollama.NewRecognizer(client), ollama.NewGenerator(client), nil
	default:
		return nil, nil, fmt.Errorf("unknown ai provider %q", cfg.AIProvider)
	}
}

// OpenRecordStore opens the configured record store. The returned close
// function is never nil.
func OpenRecordStore(ctx context.Context, cfg config.Config) (ports.RecordStore, func() error, error) {
	noop := func() error { return nil }

	switch cfg.RecordStore {
	case "", "localfs":
		store, err := localfs.NewRecordStore(cfg.StoragePath)
		if err != nil {
			return nil, noop, fmt.Errorf("init local record store: %w", err)
		}
		return store, noop, nil
	case "postgres", "sqlite":
		dialect, err := sqlstore.DialectByName(cfg.RecordStore)
		if err != nil {
			return nil, noop, err
		}
		dsn := cfg.PostgresDSN
		if dialect.Name == "sqlite" {
			dsn = cfg.SQLitePath
		}
		db, err := sqlstore.OpenDB(dialect, dsn)
		if err != nil {
			return nil, noop, fmt.Errorf("open %s: %w", dialect.Name, err)
		}
		store := sqlstore.NewRecordStore(db, dialect)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, noop, fmt.Errorf("ensure schema: %w", err)
		}
		return store, db.Close, nil
	case "gcs":
		store, err := gcs.New(ctx, cfg.GCSBucket, cfg.GCSPrefix)
		if err != nil {
			return nil, noop, fmt.Errorf("init gcs record store: %w", err)
		}
		return store, store.Close, nil
	case "firestore":
		store, err := firestore.New(ctx, cfg.FirestoreProjectID, cfg.FirestoreCollection)
		if err != nil {
			return nil, noop, fmt.Errorf("init firestore record store: %w", err)
		}
		return store, store.Close, nil
	default:
		return nil, noop, fmt.Errorf("unknown record store %q", cfg.RecordStore)
	}
}

func (a *App) addCloser(fn func() error) {
	if fn != nil {
		a.closers = append(a.closers, fn)
	}
}

// BreakerStates reports the provider circuit breakers for health checks.
func (a *App) BreakerStates() map[string]string {
	return a.Executor.BreakerStates()
}

func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.Logger.Warn("shutdown_close_failed", "error", err)
	}
}
