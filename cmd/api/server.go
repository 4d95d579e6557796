package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/septivank/meter-reading-uploads/internal/config"
	"github.com/septivank/meter-reading-uploads/internal/db"
	"github.com/septivank/meter-reading-uploads/internal/metrics"
	"github.com/septivank/meter-reading-uploads/internal/mq"
	"github.com/septivank/meter-reading-uploads/internal/parser"
	"github.com/septivank/meter-reading-uploads/internal/repository"
	"github.com/septivank/meter-reading-uploads/internal/server"
	"github.com/septivank/meter-reading-uploads/internal/service"
	"github.com/septivank/meter-reading-uploads/internal/upload"
	"github.com/septivank/meter-reading-uploads/internal/validator"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func startServer(
	lc fx.Lifecycle,
	cfg *config.Config,
	logger *zap.Logger,
	handlers *server.Handlers,
	m *metrics.Metrics,
) *http.Server {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServicePort),
		Handler:           server.SetupRoutes(handlers, m, cfg.CORS.AllowedOrigins, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", srv.Addr, err)
			}
			logger.Info("starting http server", zap.String("addr", srv.Addr))
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server stopped unexpectedly", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("failed to shut down http server", zap.Error(err))
				return err
			}
			logger.Info("http server stopped gracefully")
			return nil
		},
	})

	return srv
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, db.PoolConfig{
		URL:             cfg.Database.URL,
		MaxConns:        cfg.Database.MaxConns,
		MaxConnLifetime: cfg.Database.MaxConnLifetime,
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool) *repository.Repository {
	return repository.NewRepository(pool)
}

// ProvideRules exposes the configured upload rules
func ProvideRules(cfg *config.Config) upload.Rules {
	return cfg.Upload.Rules
}

// ProvideValidator creates a new validator instance
func ProvideValidator(repo *repository.Repository, rules upload.Rules) *validator.Validator {
	return validator.NewValidator(repo, rules)
}

// ProvideMQConnection creates a new RabbitMQ connection instance, or nil when
// RABBITMQ_URL is unset
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates a new publisher instance
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (*mq.Publisher, error) {
	publisher, err := mq.NewPublisher(conn, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, logger)
	if err != nil {
		return nil, err
	}
	if publisher == nil {
		return nil, nil
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

// ProvideMetrics creates the Prometheus collectors, or nil when disabled
func ProvideMetrics(cfg *config.Config) *metrics.Metrics {
	if !cfg.Metrics.Enabled {
		return nil
	}
	return metrics.New(cfg.Metrics.Namespace)
}

// ProvideUploadService creates a new upload service instance
func ProvideUploadService(
	repo *repository.Repository,
	rowParser *parser.RowParser,
	rowValidator *validator.Validator,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	rules upload.Rules,
	logger *zap.Logger,
) *service.UploadService {
	var events service.EventPublisher
	if publisher != nil {
		events = publisher
	}
	return service.NewUploadService(repo, rowParser, rowValidator, events, m, rules, logger)
}

// ProvideQueryService creates a new query service instance
func ProvideQueryService(repo *repository.Repository) *service.QueryService {
	return service.NewQueryService(repo, repo)
}

// ProvideHandlers creates the HTTP handlers
func ProvideHandlers(
	uploads *service.UploadService,
	queries *service.QueryService,
	repo *repository.Repository,
	cfg *config.Config,
	logger *zap.Logger,
) *server.Handlers {
	return server.NewHandlers(uploads, queries, repo, cfg.Upload.Rules, cfg.Upload.MaxBytes, logger)
}
