package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/dnscache"
	"github.com/rs/zerolog/log"

	"github.com/criske/my-git-feed-server/internal/config"
	"github.com/criske/my-git-feed-server/internal/provider"
	"github.com/criske/my-git-feed-server/internal/server"
	"github.com/criske/my-git-feed-server/pkg/cache"
	"github.com/criske/my-git-feed-server/pkg/client"
	"github.com/criske/my-git-feed-server/pkg/logging"
	"github.com/criske/my-git-feed-server/pkg/pagination"
	"github.com/criske/my-git-feed-server/pkg/ratelimit"
)

const (
	dnsRefreshInterval = 5 * time.Minute
	shutdownTimeout    = 15 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("gitfeed-proxy failed")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.Logging())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, ready, err := newStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	var resolver *dnscache.Resolver
	if cfg.DNSCache {
		resolver = &dnscache.Resolver{}
		go refreshDNS(ctx, resolver)
	}

	requestClient, err := client.New(client.Config{
		Store:       store,
		Command:     newCommand(cfg, store, resolver),
		GracePeriod: cfg.GracePeriod,
	})
	if err != nil {
		return fmt.Errorf("create request client: %w", err)
	}

	handler := server.New(server.Deps{
		Client: requestClient,
		Tokens: provider.Tokens{
			GitHub:    cfg.GitHubToken,
			GitLab:    cfg.GitLabToken,
			Bitbucket: cfg.BitbucketToken,
		},
		Pagination: pagination.DefaultConfig(),
		ReadyCheck: ready,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	log.Info().
		Str("addr", srv.Addr).
		Str("cache_backend", cfg.CacheBackend).
		Dur("grace_period", cfg.GracePeriod).
		Str("user_agent", cfg.UserAgent).
		Msg("gitfeed proxy ready")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info().Msg("gitfeed proxy stopped")
	return nil
}

// newStore opens the configured cache backend. The returned checker backs
// /health; it is nil for the memory backend.
func newStore(ctx context.Context, cfg config.Config) (cache.Store, server.ReadyChecker, error) {
	if cfg.CacheBackend == config.BackendMemory {
		store, err := cache.NewMemoryStore(cfg.MemoryCacheSize, cfg.CacheTTL)
		if err != nil {
			return nil, nil, fmt.Errorf("create memory store: %w", err)
		}
		return store, nil, nil
	}

	opts, err := redisOptions(cfg)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.NewRedisStore(redis.NewClient(opts), cache.WithTTL(cfg.CacheTTL))
	if err != nil {
		return nil, nil, fmt.Errorf("create redis store: %w", err)
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	log.Info().Str("addr", opts.Addr).Int("db", opts.DB).Msg("Connected to Redis")
	return store, store.Ping, nil
}

// redisOptions accepts either a plain host:port or a redis:// URL.
func redisOptions(cfg config.Config) (*redis.Options, error) {
	if strings.Contains(cfg.RedisURL, "://") {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		if cfg.RedisPassword != "" {
			opts.Password = cfg.RedisPassword
		}
		return opts, nil
	}
	return &redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// newCommand builds the upstream chain: HTTP, then retry, then rate-limit
// gating. The grace mediator wraps the result inside client.New.
func newCommand(cfg config.Config, store cache.Store, resolver *dnscache.Resolver) client.Command {
	var cmd client.Command = client.NewHTTPCommand(
		client.NewHTTPClient(cfg.HTTPTimeout, resolver),
		client.WithUserAgent(cfg.UserAgent),
	)

	if cfg.RetryAttempts > 1 {
		retryCfg := client.DefaultRetryConfig()
		retryCfg.MaxAttempts = cfg.RetryAttempts
		cmd = client.NewRetryCommand(cmd, retryCfg)
	}

	if cfg.RateLimit {
		tracker := ratelimit.NewTracker(store, logging.NewLogger(logging.ComponentRateLimit))
		cmd = ratelimit.NewCommand(cmd, tracker)
	}
	return cmd
}

func refreshDNS(ctx context.Context, resolver *dnscache.Resolver) {
	ticker := time.NewTicker(dnsRefreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			resolver.Refresh(true)
		}
	}
}

