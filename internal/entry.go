// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/starford/thinkink/internal/api"
	"github.com/starford/thinkink/internal/appstate"
	"github.com/starford/thinkink/internal/assistant"
	"github.com/starford/thinkink/internal/index"
	"github.com/starford/thinkink/internal/ingest"
	"github.com/starford/thinkink/internal/llm"
	"github.com/starford/thinkink/internal/mcpserver"
	"github.com/starford/thinkink/internal/noteservice"
	"github.com/starford/thinkink/internal/notestore"
	"github.com/starford/thinkink/internal/ocr"
	"github.com/starford/thinkink/internal/sse"
	"github.com/starford/thinkink/internal/storage"
)

// components is the wired note stack shared by the HTTP and MCP modes.
type components struct {
	logger      *slog.Logger
	store       *notestore.Store
	watchFile   string // non-empty for the file backend
	db          *index.DB
	coord       *appstate.Coordinator
	pipeline    *ingest.Pipeline
	attachments *storage.Attachments
	svc         *noteservice.Service
	closers     []io.Closer
}

func (c *components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			c.logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// build wires storage, index, coordinator, pipeline and services from cfg.
func build(ctx context.Context, cfg *Config, logger *slog.Logger) (*components, error) {
	c := &components{logger: logger}

	medium, watchFile, err := openMedium(cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.watchFile = watchFile
	c.store = notestore.New(medium, cfg.Store.Key, logger)

	db, err := index.Open(cfg.SQLite.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init index: %w", err)
	}
	c.db = db
	c.closers = append(c.closers, db)

	if err := index.Sync(db, c.store, logger); err != nil {
		logger.Warn("initial sync failed", slog.String("error", err.Error()))
	}
	c.store.OnChange(db.Hook(func(msg string, err error) {
		logger.Warn(msg, slog.String("error", err.Error()))
	}))

	att, err := storage.NewAttachments(cfg.Attachments.Path)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("init attachments: %w", err)
	}
	c.attachments = att

	completer := newCompleter(cfg)
	recognizer := newRecognizer(cfg)

	var titler assistant.Titler = assistant.HeuristicTitler{}
	if completer != nil {
		titler = assistant.NewLLMTitler(completer)
	}

	c.coord = appstate.New(c.store, newGate(cfg), logger)
	if err := c.coord.Refresh(ctx); err != nil {
		logger.Warn("notes not loaded", slog.String("error", err.Error()))
	}

	c.pipeline = ingest.New(recognizer, titler, c.store,
		ingest.WithLogger(logger),
		ingest.WithTitles(cfg.Ingest.PlaceholderTitle, cfg.Ingest.FallbackTitle),
		ingest.WithTitleTimeout(cfg.Assistant.TitleTimeout),
	)
	c.pipeline.Subscribe(c.coord.HandleIngestEvent)

	chat := assistant.NewService(completer, logger,
		assistant.WithSessionIdleTTL(cfg.Assistant.SessionIdleTTL))
	c.svc = noteservice.NewService(c.coord, c.pipeline, db, att, chat, logger)
	return c, nil
}

func openMedium(cfg *Config, c *components) (storage.Provider, string, error) {
	switch cfg.Store.Backend {
	case StoreBackendMemory:
		return storage.NewMemory(), "", nil
	case StoreBackendSQLite:
		kv, err := storage.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, "", fmt.Errorf("init store: %w", err)
		}
		c.closers = append(c.closers, kv)
		return kv, "", nil
	default:
		if err := os.MkdirAll(cfg.Store.Path, 0o755); err != nil {
			return nil, "", fmt.Errorf("create store dir: %w", err)
		}
		fs, err := storage.NewFS(cfg.Store.Path)
		if err != nil {
			return nil, "", fmt.Errorf("init store: %w", err)
		}
		return fs, fs.Path(cfg.Store.Key), nil
	}
}

// newCompleter returns the configured language model, or nil when the
// assistant is disabled.
func newCompleter(cfg *Config) llm.Completer {
	a := cfg.Assistant
	switch a.Provider {
	case ProviderOpenAI:
		return llm.NewOpenAI(a.APIKey, a.Model, a.BaseURL)
	case ProviderAnthropic:
		var opts []anthropicopt.RequestOption
		if a.BaseURL != "" {
			opts = append(opts, anthropicopt.WithBaseURL(a.BaseURL))
		}
		return llm.NewAnthropic(a.APIKey, a.Model, opts...)
	default:
		return nil
	}
}

func newRecognizer(cfg *Config) ocr.Recognizer {
	if cfg.OCR.Engine == OCREngineOpenAI {
		return ocr.NewVision(cfg.Assistant.APIKey, cfg.OCR.Model, cfg.Assistant.BaseURL)
	}
	return ocr.NewTesseract(cfg.OCR.Binary, cfg.OCR.Language, cfg.OCR.Timeout)
}

// newGate opens note loading only when a model API key is configured. With
// the assistant disabled nothing needs a key and the gate is always open.
func newGate(cfg *Config) appstate.Gate {
	if cfg.Assistant.Provider == ProviderNone {
		return appstate.OpenGate
	}
	return appstate.GateFunc(func(context.Context) bool {
		return cfg.Assistant.APIKey != ""
	})
}

func newLogger(cfg *Config, out io.Writer) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.App.LogLevel,
	}))
	slog.SetDefault(logger)
	return logger
}

// Run starts the HTTP server with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config
	logger := newLogger(cfg, app.logOutput)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("store_backend", cfg.Store.Backend),
		slog.String("sqlite_path", cfg.SQLite.Path),
		slog.String("ocr_engine", cfg.OCR.Engine),
		slog.String("assistant_provider", cfg.Assistant.Provider),
		slog.String("log_level", cfg.App.LogLevel.String()))

	c, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	// Let background title jobs land before the store closes.
	defer c.pipeline.Wait()

	// SSE broker.
	broker := sse.NewBroker(250 * time.Millisecond)
	c.store.OnChange(func(ch notestore.Change) {
		broker.PublishNote(ch.Kind, ch.Note)
	})
	c.pipeline.Subscribe(func(ev ingest.Event) {
		switch ev.Stage {
		case ingest.StageRecognizing:
			broker.PublishProgress(ev.RequestID, ev.Progress)
		case ingest.StageEnriched, ingest.StageEnrichFailed:
			broker.Publish(sse.Event{Type: sse.TypeNoteEnriched, Data: ev.Note})
		}
	})

	apiRouter := api.NewRouter(c.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, broker, cfg.Attachments.MaxUploadBytes)
	attachments := api.NewAttachmentHandler(c.attachments)

	// Build chi router.
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeStatus(w, http.StatusOK, "ok")
	})
	r.Get("/health/ready", func(w http.ResponseWriter, req *http.Request) {
		if !c.svc.Ready() {
			// The key may have been provided since the last attempt.
			if err := c.coord.Refresh(req.Context()); err != nil {
				writeStatus(w, http.StatusServiceUnavailable, "awaiting api key")
				return
			}
		}
		writeStatus(w, http.StatusOK, "ok")
	})

	// Mount API routes under /api.
	r.Mount("/api", apiRouter)
	r.Get("/attachments/{filename}", attachments.ServeFile)

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	runCtx, stop := context.WithCancel(ctx)
	defer stop()
	g, gCtx := errgroup.WithContext(runCtx)

	// Pick up external edits of the notes file.
	if c.watchFile != "" {
		g.Go(func() error {
			err := index.WatchFile(gCtx, c.watchFile, storage.TempPrefix, logger, func() {
				before := c.coord.Notes()
				if err := c.coord.Refresh(gCtx); err != nil {
					logger.Warn("reload after external change failed", slog.String("error", err.Error()))
					return
				}
				// Our own writes land here too and change nothing.
				if slices.Equal(before, c.coord.Notes()) {
					return
				}
				if err := index.Sync(c.db, c.store, logger); err != nil {
					logger.Warn("resync after external change failed", slog.String("error", err.Error()))
				}
				broker.Publish(sse.Event{Type: sse.TypeNotesReloaded, Data: map[string]int{"count": len(c.coord.Notes())}})
			})
			if err != nil {
				logger.Error("watcher stopped", slog.String("error", err.Error()))
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Stops the watcher.
		defer stop()

		broker.Close()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the note tools over stdio until the client disconnects.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.config, app.logOutput)

	c, err := build(ctx, app.config, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	defer c.pipeline.Wait()

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(c.svc, logger).ServeStdio()
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
}
