// Package server wires the MedReport backend together: it opens the store,
// builds the services and runs the HTTP API next to the gRPC health server
// until the process is told to stop.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/medreport/internal/cryptox"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/observability"
	"github.com/dmitrijs2005/medreport/internal/ocr"
	"github.com/dmitrijs2005/medreport/internal/server/audit"
	"github.com/dmitrijs2005/medreport/internal/server/completion"
	"github.com/dmitrijs2005/medreport/internal/server/config"
	"github.com/dmitrijs2005/medreport/internal/server/documents"
	"github.com/dmitrijs2005/medreport/internal/server/httpapi"
	"github.com/dmitrijs2005/medreport/internal/server/metrics"
	"github.com/dmitrijs2005/medreport/internal/server/ratelimit"
	"github.com/dmitrijs2005/medreport/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/medreport/internal/server/services"
	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/medreport/internal/server/grpc"
)

// Version is stamped at build time with -ldflags "-X ...server.Version=...".
var Version = "dev"

const (
	shutdownTimeout = 10 * time.Second
	sweepInterval   = time.Minute
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	handler  http.Handler
	health   *gs.GRPCServer
	sweepers []*ratelimit.Memory
	closers  []io.Closer
	shutdown func(context.Context) error
}

// NewApp builds every component described by c. Resources opened before a
// failure are released.
func NewApp(ctx context.Context, c *config.Config) (app *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	logger, err := logging.New(c.LogBackend, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app = &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	shutdown, err := observability.Setup(ctx, observability.Options{
		ServiceName: "medreport",
		Version:     Version,
		Stdout:      c.TraceStdout,
	})
	if err != nil {
		return nil, fmt.Errorf("tracing init error: %w", err)
	}
	app.shutdown = shutdown

	cipher, err := cryptox.NewFieldCipher([]byte(c.EncSecret), []byte(c.EncSalt), logger)
	if err != nil {
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	store, rec, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	archive, err := documents.New(ctx, documents.Options{
		AccessKey:    c.S3AccessKey,
		SecretKey:    c.S3SecretKey,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
	}, cipher)
	var (
		userDocs   services.UserDocuments
		reportDocs services.DocumentArchive
	)
	switch {
	case errors.Is(err, documents.ErrDisabled):
		logger.Info(ctx, "document archive disabled")
	case err != nil:
		return nil, fmt.Errorf("document archive init error: %w", err)
	default:
		userDocs, reportDocs = archive, archive
	}

	completer, err := completion.New(completion.Options{
		Provider: c.AIProvider,
		APIKey:   c.AIAPIKey,
		Model:    c.AIModel,
		BaseURL:  c.AIBaseURL,
		Timeout:  c.AITimeout,
	})
	if err != nil {
		if !errors.Is(err, completion.ErrMissingAPIKey) {
			return nil, fmt.Errorf("completion init error: %w", err)
		}
		logger.Warn(ctx, "no AI api key configured, analysis endpoints will fail")
		completer = completion.Unavailable{}
	}

	extractor, err := app.openOCR(ctx)
	if err != nil {
		return nil, err
	}

	authLimiter, aiLimiter, err := app.openLimiters(ctx)
	if err != nil {
		return nil, err
	}

	set := metrics.OpenSet()
	if len(c.ComparisonMetrics) > 0 {
		set = metrics.FixedSet(c.ComparisonMetrics...)
	}

	us := services.NewUserService(store, c, rec, userDocs, logger)
	rs := services.NewReportService(store, cipher, nil, set, reportDocs, rec, logger)
	as := services.NewAnalysisService(completer, c.AITimeout, logger)

	gin.SetMode(gin.ReleaseMode)
	app.handler = httpapi.NewRouter(httpapi.Deps{
		Users:          us,
		Reports:        rs,
		Analysis:       as,
		OCR:            extractor,
		AuthLimiter:    authLimiter,
		AILimiter:      aiLimiter,
		JWTSecret:      []byte(c.JWTSecret),
		CORSOrigins:    c.CORSOrigins,
		MaxUploadBytes: c.MaxUploadBytes,
		ServiceName:    "medreport",
		Logger:         logger,
	})
	app.health = gs.NewGRPCServer(c.HealthAddrGRPC, logger)

	return app, nil
}

// openStore opens the configured backend and the audit sink that goes
// with it.
func (app *App) openStore(ctx context.Context) (repomanager.RepositoryManager, audit.Recorder, error) {
	c := app.config

	var (
		store repomanager.RepositoryManager
		pg    *repomanager.PostgresRepositoryManager
	)
	switch c.StoreBackend {
	case "postgres":
		m, err := repomanager.OpenPostgres(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("db init error: %w", err)
		}
		store, pg = m, m
	default:
		m, err := repomanager.OpenDocument(c.DataFile, app.logger)
		if err != nil {
			return nil, nil, fmt.Errorf("store init error: %w", err)
		}
		store = m
	}
	app.closers = append(app.closers, store)

	switch c.AuditSink {
	case "sql":
		return store, audit.NewSQLRecorder(pg.DB()), nil
	case "file":
		fr, err := audit.NewFileRecorder(c.AuditFile)
		if err != nil {
			return nil, nil, fmt.Errorf("audit init error: %w", err)
		}
		app.closers = append(app.closers, fr)
		return store, fr, nil
	default:
		return store, audit.NopRecorder{}, nil
	}
}

func (app *App) openOCR(ctx context.Context) (ocr.Extractor, error) {
	if !app.config.OCREnabled {
		return ocr.Disabled{}, nil
	}
	v, err := ocr.NewVisionExtractor(ctx, app.config.VisionCredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("ocr init error: %w", err)
	}
	app.closers = append(app.closers, v)
	return v, nil
}

func (app *App) openLimiters(ctx context.Context) (ratelimit.Limiter, ratelimit.Limiter, error) {
	c := app.config

	var client *goredis.Client
	if c.RateLimitBackend == "redis" {
		client = goredis.NewClient(&goredis.Options{Addr: c.RedisAddr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis init error: %w", err)
		}
		app.closers = append(app.closers, client)
	}

	authLimiter, err := ratelimit.New(c.RateLimitBackend,
		ratelimit.Policy{Name: "auth", Quota: c.AuthRateLimit, Window: c.AuthRateWindow}, client)
	if err != nil {
		return nil, nil, err
	}
	aiLimiter, err := ratelimit.New(c.RateLimitBackend,
		ratelimit.Policy{Name: "ai", Quota: c.AIRateLimit, Window: c.AIRateWindow}, client)
	if err != nil {
		return nil, nil, err
	}

	for _, l := range []ratelimit.Limiter{authLimiter, aiLimiter} {
		if m, ok := l.(*ratelimit.Memory); ok {
			app.sweepers = append(app.sweepers, m)
		}
	}
	return authLimiter, aiLimiter, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.health.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	srv := &http.Server{
		Addr:              app.config.HTTPAddr,
		Handler:           app.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown", "error", err)
		}
	}()

	app.logger.Info(ctx, "Starting HTTP server", "addr", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves until ctx is cancelled or a signal arrives, then drains both
// servers and releases every resource.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", Version)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	for _, m := range app.sweepers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Run(ctx, sweepInterval)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()
	app.close()
	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	ctx := context.Background()
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i].Close(); err != nil {
			app.logger.Error(ctx, "close", "error", err)
		}
	}
	app.closers = nil

	if app.shutdown != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
		defer cancel()
		if err := app.shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "tracing shutdown", "error", err)
		}
		app.shutdown = nil
	}
}
