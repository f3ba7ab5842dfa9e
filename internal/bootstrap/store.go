package bootstrap

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tandm-app/tandm/config"
	"github.com/tandm-app/tandm/internal/docstore"
	"github.com/tandm-app/tandm/internal/docstore/firestore"
	"github.com/tandm-app/tandm/internal/docstore/pgstore"
	"github.com/tandm-app/tandm/internal/docstore/redisstore"
	"github.com/tandm-app/tandm/internal/logging"
	"github.com/tandm-app/tandm/internal/metrics"
)

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Store is an opened document store plus what health checks need from it.
type Store struct {
	docstore.Store
	Backend string
	Pinger  Pinger

	release func()
}

// Close closes the backend and any connection pool opened for it.
func (s *Store) Close() error {
	err := s.Store.Close()
	if s.release != nil {
		s.release()
	}
	return err
}

// OpenStore connects the configured backend and wraps it with metrics and,
// when configured, a rate limit. app is only used by the firestore backend.
func OpenStore(ctx context.Context, cfg *config.Config, app *firebase.App, log *zap.Logger, m *metrics.Metrics) (*Store, error) {
	var (
		raw     docstore.Store
		pinger  Pinger
		release func()
	)

	switch cfg.Store.Backend {
	case config.BackendFirestore:
		if app == nil {
			return nil, fmt.Errorf("firestore backend needs a firebase app")
		}
		client, err := app.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("open firestore: %w", err)
		}
		fs := firestore.New(client)
		raw, pinger = fs, fs

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		s := redisstore.New(client, redisstore.WithKeyPrefix(cfg.Redis.KeyPrefix))
		if err := s.Ping(ctx); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		raw, pinger = s, s

	case config.BackendPostgres:
		pool, err := OpenDB(ctx, DBOptionsFrom(cfg.Database))
		if err != nil {
			return nil, err
		}
		s := pgstore.New(pool)
		if err := s.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		raw, pinger, release = s, s, pool.Close

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	store := docstore.Instrument(raw, m.ObserveStoreOp)
	if cfg.Store.RateLimit > 0 {
		store = docstore.Throttle(store, rate.NewLimiter(rate.Limit(cfg.Store.RateLimit), cfg.Store.RateBurst))
	}

	logging.OrNop(log).Info("document store ready",
		zap.String("backend", cfg.Store.Backend),
		zap.Float64("rate_limit", cfg.Store.RateLimit))
	return &Store{Store: store, Backend: cfg.Store.Backend, Pinger: pinger, release: release}, nil
}
