package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/brutalpush/pushclient/pkg/auth"
	"github.com/brutalpush/pushclient/pkg/cache"
	"github.com/brutalpush/pushclient/pkg/client"
	"github.com/brutalpush/pushclient/pkg/config"
	"github.com/brutalpush/pushclient/pkg/credentials"
	"github.com/brutalpush/pushclient/pkg/logging"
	"github.com/brutalpush/pushclient/pkg/notifications"
	"github.com/brutalpush/pushclient/pkg/ratelimit"
	"github.com/brutalpush/pushclient/pkg/subscriptions"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// deps overrides the environment-derived wiring. Zero values mean "build from
// config".
type deps struct {
	config *config.Config
	creds  credentials.Provider
	out    io.Writer
}

// app is the wired client stack shared by all subcommands.
type app struct {
	cfg    *config.Config
	logger zerolog.Logger
	out    io.Writer

	redis   *redis.Client
	creds   credentials.Provider
	api     *client.Client
	auth    *auth.Service
	session *auth.Session
	subs    *subscriptions.Service
	notifs  *notifications.Service
}

func newApp(ctx context.Context, d deps) (*app, error) {
	cfg := d.config
	if cfg == nil {
		var err error
		if cfg, err = config.Load(); err != nil {
			return nil, err
		}
	}

	logger := logging.Setup(cfg.Logging())

	a := &app{cfg: cfg, logger: logger, out: d.out, creds: d.creds}
	if a.out == nil {
		a.out = os.Stdout
	}

	var cacheManager *cache.Manager
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse PUSH_REDIS_URL: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			a.redis.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		logger.Debug().Str("addr", opts.Addr).Msg("Connected to Redis")

		cacheManager = cache.NewManager(a.redis)
		if a.creds == nil {
			a.creds = credentials.NewRedisStore(a.redis)
		}
	}
	if a.creds == nil {
		a.creds = credentials.NewMemoryStore()
	}

	clientCfg := client.DefaultConfig(cfg.APIURL, a.creds)
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Timeout = cfg.Timeout
	clientCfg.Retry = client.RetryConfigWithAttempts(cfg.MaxRetries)
	clientCfg.CircuitBreaker = cfg.CircuitBreaker
	clientCfg.Cache = cacheManager
	clientCfg.RateLimiter = ratelimit.NewTracker(logger)

	api, err := client.New(clientCfg)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create api client: %w", err)
	}
	a.api = api

	a.auth = auth.NewService(api)
	a.session = auth.NewSession(a.auth)
	a.subs = subscriptions.NewService(api)
	a.notifs = notifications.NewService(api)
	return a, nil
}

func (a *app) close() {
	if a.api != nil {
		a.api.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// atLeastOne rejects numeric flags below 1 before any request is made.
func atLeastOne(flag string, v int) error {
	if v < 1 {
		return fmt.Errorf("--%s must be >= 1, got %d", flag, v)
	}
	return nil
}
