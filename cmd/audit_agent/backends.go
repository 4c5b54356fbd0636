package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/textaudit/layered-audit/internal/config"
	"github.com/textaudit/layered-audit/internal/db"
	"github.com/textaudit/layered-audit/internal/document"
	"github.com/textaudit/layered-audit/internal/logging"
	"github.com/textaudit/layered-audit/internal/server"
	"github.com/textaudit/layered-audit/internal/session"
)

// backends holds the document and session stores a command runs against.
type backends struct {
	documents *document.Store
	sessions  *session.Service
	health    map[string]server.HealthCheck
	closers   []func()
}

// Close releases every connection opened by openBackends, newest first.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the stores selected by cfg. Documents live in
// PostgreSQL when a database URL is configured and in memory otherwise.
func openBackends(ctx context.Context, cfg config.Config, logger *zap.Logger) (*backends, error) {
	b := &backends{health: make(map[string]server.HealthCheck)}

	var database *db.DB
	if cfg.DatabaseURL != "" {
		var err error
		database, err = db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, database.Close)
		b.health["postgres"] = database.Ping
	}

	var docRepo document.Repository = document.NewMemoryRepository()
	if database != nil {
		docRepo = database
	}
	docs, err := document.NewStore(docRepo, cfg.DocumentCacheSize)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.documents = docs

	sessionRepo, err := openSessionRepository(ctx, cfg, database, b)
	if err != nil {
		b.Close()
		return nil, err
	}
	b.sessions = session.NewService(sessionRepo, logger)

	logging.OrNop(logger).Info("storage ready",
		zap.Bool("postgres_documents", database != nil),
		zap.String("session_backend", cfg.SessionBackend))
	return b, nil
}

func openSessionRepository(ctx context.Context, cfg config.Config, database *db.DB, b *backends) (session.Repository, error) {
	switch cfg.SessionBackend {
	case "", config.BackendMemory:
		return session.NewMemoryRepository(cfg.SessionTTL()), nil
	case config.BackendPostgres:
		if database == nil {
			return nil, fmt.Errorf("postgres session backend requires a database URL")
		}
		return database, nil
	case config.BackendRedis:
		rdb, err := session.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = rdb.Close() })
		b.health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
		return session.NewRedisRepository(rdb, cfg.SessionTTL()), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.SessionBackend)
	}
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.Config) (*zap.Logger, error) {
	logger, err := logging.New(logging.Options{
		FilePath:   cfg.LogFile,
		Level:      cfg.LogLevel,
		Production: cfg.Production,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
