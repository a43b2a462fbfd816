package credstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Config selects and parameterizes the credential store backend.
type Config struct {
	Driver        string `json:"driver,omitempty" yaml:"driver,omitempty"`
	Path          string `json:"path,omitempty" yaml:"path,omitempty"` // directory for file, database file for sqlite
	RedisAddr     string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty"`
	RedisPassword string `json:"redis_password,omitempty" yaml:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	Prefix        string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
	SealKey       string `json:"seal_key,omitempty" yaml:"seal_key,omitempty"` // enables encryption at rest
}

// DefaultConfig returns an in-memory store configuration.
func DefaultConfig() Config {
	return Config{
		Driver: DriverMemory,
		Prefix: "opsclient:",
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Driver != "" {
		c.Driver = source.Driver
	}
	if source.Path != "" {
		c.Path = source.Path
	}
	if source.RedisAddr != "" {
		c.RedisAddr = source.RedisAddr
	}
	if source.RedisPassword != "" {
		c.RedisPassword = source.RedisPassword
	}
	if source.RedisDB != 0 {
		c.RedisDB = source.RedisDB
	}
	if source.Prefix != "" {
		c.Prefix = source.Prefix
	}
	if source.SealKey != "" {
		c.SealKey = source.SealKey
	}
}

// NewStore creates a Store from configuration. The returned store may
// implement io.Closer; callers should close it when done.
func NewStore(ctx context.Context, cfg *Config) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Driver {
	case "", DriverMemory:
		store = NewMemoryStore()
	case DriverFile:
		if cfg.Path == "" {
			return nil, fmt.Errorf("file store requires a path")
		}
		store = NewFileStore(cfg.Path)
	case DriverSQLite:
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite store requires a path")
		}
		store, err = OpenSQLiteStore(ctx, cfg.Path)
		if err != nil {
			return nil, err
		}
	case DriverRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis store requires an address")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			rdb.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		store = NewRedisStore(rdb, cfg.Prefix)
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}

	if cfg.SealKey == "" {
		return store, nil
	}
	return NewSealed(store, []byte(cfg.SealKey))
}
