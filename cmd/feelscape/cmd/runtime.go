package cmd

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"go.pilab.hu/feelscape/cache"
	redisstore "go.pilab.hu/feelscape/cache/redis"
	"go.pilab.hu/feelscape/config"
	"go.pilab.hu/feelscape/identity"
	"go.pilab.hu/feelscape/internal/audit"
	"go.pilab.hu/feelscape/internal/metrics"
	"go.pilab.hu/feelscape/localstore"
	"go.pilab.hu/feelscape/mongodb"
	"go.pilab.hu/feelscape/services"
)

// runtime holds the wired dependencies of an account command.
type runtime struct {
	local      *localstore.Store
	identity   *identity.Service
	controller *services.AuthController
	registry   *prometheus.Registry
	redis      *goredis.Client

	closers []func(ctx context.Context)
}

func openLocalStore(cfg *config.Config) (*localstore.Store, error) {
	store, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return store, nil
}

// newRuntime connects the remote stores, restores the device session and
// builds the controller.
func newRuntime(ctx context.Context, cfg *config.Config) (rt *runtime, err error) {
	rt = &runtime{registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			rt.Close(context.WithoutCancel(ctx))
		}
	}()

	rt.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	rt.local, err = openLocalStore(cfg)
	if err != nil {
		return rt, err
	}
	rt.closers = append(rt.closers, func(context.Context) { _ = rt.local.Close() })

	if err = mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
		return rt, fmt.Errorf("failed to initialize MongoDB connection: %w", err)
	}
	rt.closers = append(rt.closers, mongodb.CloseMongoDB)
	db := mongodb.GetDB()

	accounts, err := mongodb.NewAccountRepository(ctx, db)
	if err != nil {
		return rt, err
	}
	profiles, err := mongodb.NewProfileRepository(ctx, db)
	if err != nil {
		return rt, err
	}

	sessions, err := rt.sessionStore(ctx, cfg)
	if err != nil {
		return rt, err
	}

	signer, err := identity.NewTokenSigner(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return rt, err
	}
	rt.identity = identity.NewService(accounts, sessions, signer, identity.WithAuditLogger(audit.New()))
	if err = rt.identity.Restore(ctx); err != nil {
		return rt, err
	}

	rt.controller = services.NewAuthController(rt.identity, profiles,
		services.WithSaveOptions(saveOptions(cfg)),
		services.WithMetrics(metrics.NewCollector(rt.registry)),
	)
	rt.closers = append(rt.closers, func(context.Context) { rt.controller.Close() })
	return rt, nil
}

func (rt *runtime) sessionStore(ctx context.Context, cfg *config.Config) (cache.SessionStore, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		store := cache.NewMemorySessionStore()
		rt.closers = append(rt.closers, func(context.Context) { _ = store.Close() })
		return store, nil
	case config.SessionBackendRedis:
		rt.redis = goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		rt.closers = append(rt.closers, func(context.Context) { _ = rt.redis.Close() })
		if err := rt.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.RedisAddr, err)
		}
		return redisstore.NewSessionStore(rt.redis, cfg.RedisPrefix), nil
	default:
		return rt.local, nil
	}
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close(ctx context.Context) {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i](ctx)
	}
	rt.closers = nil
}

func saveOptions(cfg *config.Config) services.SaveOptions {
	return services.SaveOptions{
		IdentityTimeout:   cfg.IdentityUpdateTimeout,
		DocumentTimeout:   cfg.DocumentWriteTimeout,
		Attempts:          cfg.SaveAttempts,
		SinglePath:        cfg.LegacySave,
		SinglePathTimeout: cfg.LegacySaveTimeout,
	}
}
