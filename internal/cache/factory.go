package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/redis/go-redis/v9"

	pkgbadger "github.com/savant-model-analyzer/server/pkg/badger"
	logx "github.com/savant-model-analyzer/server/pkg/logger"
	pkgredis "github.com/savant-model-analyzer/server/pkg/redis"
)

const (
	BackendJoblib = "joblib"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Backend  string `envconfig:"SESSION_CACHE_BACKEND" default:"joblib"`
	Dir      string `envconfig:"JOBLIB_CACHE_DIR" default:"./cache_data"`
	Location string `envconfig:"JOBLIB_CACHE_LOCATION" default:"file"`
	// RedisTTL is in seconds.
	RedisTTL int `envconfig:"REDIS_DEFAULT_TTL" default:"3600"`
	Redis    pkgredis.Config
}

type options struct {
	rdb redis.Cmdable
	db  *badger.DB
}

type Option func(*options)

// WithRedisClient reuses an existing client instead of dialing from Config.
func WithRedisClient(rdb redis.Cmdable) Option {
	return func(o *options) { o.rdb = rdb }
}

// WithBadger reuses an open badger store for the memory backend.
func WithBadger(db *badger.DB) Option {
	return func(o *options) { o.db = db }
}

// New builds the backend named by cfg.
func New(ctx context.Context, cfg Config, opts ...Option) (Manager, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == BackendJoblib || backend == BackendFile || backend == "" {
		backend = BackendFile
		if strings.EqualFold(cfg.Location, BackendMemory) {
			backend = BackendMemory
		}
	}

	logx.Info().Str("backend", backend).Msg("initialising session cache")

	switch backend {
	case BackendFile:
		dir := cfg.Dir
		if dir == "" {
			dir = "./cache_data"
		}
		return NewFileCache(dir)
	case BackendMemory:
		db := o.db
		if db == nil {
			var err error
			if db, err = pkgbadger.OpenInMemory(); err != nil {
				return nil, err
			}
		}
		return NewMemoryCache(db), nil
	case BackendRedis:
		rdb := o.rdb
		if rdb == nil {
			client, err := cfg.Redis.New(ctx)
			if err != nil {
				return nil, err
			}
			rdb = client
		}
		ttl := time.Duration(cfg.RedisTTL) * time.Second
		return NewRedisCache(rdb, ttl), nil
	default:
		return nil, fmt.Errorf("unsupported session cache backend %q", cfg.Backend)
	}
}

var (
	sharedMu sync.Mutex
	shared   Manager
)

// Shared returns the process-wide manager. The first successful call decides
// the backend; later calls get the same instance whatever cfg they pass.
func Shared(ctx context.Context, cfg Config, opts ...Option) (Manager, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()

	if shared != nil {
		return shared, nil
	}
	m, err := New(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	shared = m
	return shared, nil
}
