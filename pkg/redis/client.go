package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const defaultDialTimeout = 5 * time.Second

// Options are the connection settings for the job queue's Redis. Addr is either
// host:port or a redis:// (rediss://) URL; URL fields win over Password and DB.
type Options struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Client is a connected go-redis client.
type Client struct {
	*redis.Client
}

// NewClient connects and pings. The caller closes the client.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ro, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(ro)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", ro.Addr, err)
	}
	logger.Info("redis connected", zap.String("addr", ro.Addr), zap.Int("db", ro.DB))
	return &Client{Client: rdb}, nil
}

func buildOptions(opts Options) (*redis.Options, error) {
	addr := strings.TrimSpace(opts.Addr)
	if addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	var ro *redis.Options
	if strings.HasPrefix(addr, "redis://") || strings.HasPrefix(addr, "rediss://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		ro = parsed
	} else {
		ro = &redis.Options{Addr: addr, Password: opts.Password, DB: opts.DB}
	}
	ro.DialTimeout = opts.DialTimeout
	if ro.DialTimeout <= 0 {
		ro.DialTimeout = defaultDialTimeout
	}
	// Reads must outlast the worker's 5s BLPOP.
	ro.ReadTimeout = 10 * time.Second
	return ro, nil
}
