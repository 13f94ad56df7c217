package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/httplog/v2"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/qrcode"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/repository/postgres"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/repository/sqldb"
	"github.com/vadimbarashkov/url-shortener/internal/adapter/repository/sqlite"
	"github.com/vadimbarashkov/url-shortener/internal/config"
	"github.com/vadimbarashkov/url-shortener/internal/metrics"
	"github.com/vadimbarashkov/url-shortener/internal/usecase"
	"github.com/vadimbarashkov/url-shortener/migrations"
	"github.com/vadimbarashkov/url-shortener/pkg/middleware/ratelimit"
	"golang.org/x/sync/errgroup"

	delivery "github.com/vadimbarashkov/url-shortener/internal/adapter/delivery/http"
	pkgmigrate "github.com/vadimbarashkov/url-shortener/pkg/migrate"
	pkgpostgres "github.com/vadimbarashkov/url-shortener/pkg/postgres"
	pkgsqlite "github.com/vadimbarashkov/url-shortener/pkg/sqlite"
)

// NewLogger builds the request logger from the log section of cfg.
func NewLogger(cfg *config.Config) *httplog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		level = slog.LevelInfo
	}

	return httplog.NewLogger("url-shortener", httplog.Options{
		LogLevel:        level,
		JSON:            cfg.Log.JSON,
		Concise:         cfg.Log.Concise,
		RequestHeaders:  cfg.Env != config.EnvProd,
		QuietDownRoutes: []string{"/api/v1/ping", "/metrics"},
		QuietDownPeriod: 10 * time.Second,
		Tags: map[string]string{
			"env": cfg.Env,
		},
	})
}

// openStorage connects to the configured database, applies migrations and
// returns the URL repository on top of it.
func openStorage(ctx context.Context, cfg *config.Config) (*sqlx.DB, *sqldb.URLRepository, error) {
	switch cfg.Storage.Driver {
	case config.DriverSQLite:
		db, err := pkgsqlite.New(ctx, cfg.SQLite.Path, pkgsqlite.WithBusyTimeout(cfg.SQLite.BusyTimeout))
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := pkgmigrate.Up(migrations.FS, migrations.SQLiteDir, pkgsqlite.MigrationURL(cfg.SQLite.Path)); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return db, sqlite.NewURLRepository(db), nil
	case config.DriverPostgres:
		db, err := pkgpostgres.New(
			ctx,
			cfg.Postgres.DSN(),
			pkgpostgres.WithConnMaxIdleTime(cfg.Postgres.ConnMaxIdleTime),
			pkgpostgres.WithConnMaxLifetime(cfg.Postgres.ConnMaxLifetime),
			pkgpostgres.WithMaxIdleConns(cfg.Postgres.MaxIdleConns),
			pkgpostgres.WithMaxOpenConns(cfg.Postgres.MaxOpenConns),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := pkgmigrate.Up(migrations.FS, migrations.PostgresDir, cfg.Postgres.DSN()); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		return db, postgres.NewURLRepository(db), nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func Run(ctx context.Context, cfg *config.Config) error {
	const op = "app.Run"

	logger := NewLogger(cfg)

	db, urlRepo, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer db.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db.DB, cfg.Storage.Driver),
	)

	urlUseCase := usecase.New(
		urlRepo,
		qrcode.NewEncoder(),
		usecase.WithMaxAttempts(cfg.ShortCode.MaxAttempts),
		usecase.WithReservedShortCodes(delivery.ReservedPaths...),
	)

	var routerOpts []delivery.RouterOption
	if cfg.RateLimit.Enabled {
		routerOpts = append(routerOpts, delivery.WithRateLimiter(
			ratelimit.New(
				cfg.RateLimit.RPS,
				cfg.RateLimit.Burst,
				ratelimit.WithTTL(cfg.RateLimit.TTL),
				ratelimit.WithMaxClients(cfg.RateLimit.MaxClients),
			),
		))
	}
	if cfg.RateLimit.TrustProxyHeaders {
		routerOpts = append(routerOpts, delivery.WithProxyHeaders())
	}

	router := delivery.NewRouter(logger, urlUseCase, metrics.New(reg), cfg.BaseURL, routerOpts...)

	server := &http.Server{
		Addr:           cfg.HTTPServer.Addr(),
		Handler:        router,
		ReadTimeout:    cfg.HTTPServer.ReadTimeout,
		WriteTimeout:   cfg.HTTPServer.WriteTimeout,
		IdleTimeout:    cfg.HTTPServer.IdleTimeout,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error

		logger.Info("starting server",
			slog.String("addr", server.Addr),
			slog.String("env", cfg.Env),
			slog.String("storage", cfg.Storage.Driver),
		)

		switch cfg.Env {
		case config.EnvProd:
			err = server.ListenAndServeTLS(cfg.HTTPServer.CertFile, cfg.HTTPServer.KeyFile)
		default:
			err = server.ListenAndServe()
		}

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server error occurred: %w", op, err)
		}

		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		logger.Info("shutting down server")

		if err := server.Shutdown(context.Background()); err != nil {
			return fmt.Errorf("%s: failed to shutdown server: %w", op, err)
		}

		return nil
	})

	return g.Wait()
}
