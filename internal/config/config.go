// Package config reads the environment-driven parameters spec §6 lists,
// mirroring the os.getenv-with-defaults style of
// _examples/original_source/schedsolver/main.py's RedisStreamClient.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds every environment-derived parameter the stream worker and
// solver driver need.
type Config struct {
	RedisHost      string
	RedisPort      int
	RedisDB        int
	RequestStream  string
	ResultStream   string
	ConsumerGroup  string
	ReadBlock      time.Duration
	ReadCount      int64
	ReconnectDelay time.Duration
	SolveTimeLimit time.Duration
	SolveWorkers   int
	LogLevel       string
}

// FromEnv reads Config from the process environment, applying spec §6's
// defaults for anything unset, and fails fast on a malformed value rather
// than silently falling back.
func FromEnv() (Config, error) {
	cfg := Config{
		RedisHost:     getenv("REDIS_HOST", "redis"),
		RequestStream: getenv("REDIS_REQUEST_STREAM", "schedule:requests"),
		ResultStream:  getenv("REDIS_RESULT_STREAM", "schedule:results"),
		ConsumerGroup: getenv("REDIS_CONSUMER_GROUP", "scheduler_service"),
		LogLevel:      getenv("LOG_LEVEL", "info"),
		SolveWorkers:  8,
	}

	var err error
	if cfg.RedisPort, err = getenvInt("REDIS_PORT", 6379); err != nil {
		return Config{}, err
	}
	if cfg.RedisDB, err = getenvInt("REDIS_DB", 0); err != nil {
		return Config{}, err
	}
	blockMS, err := getenvInt("READ_BLOCK_MS", 5000)
	if err != nil {
		return Config{}, err
	}
	cfg.ReadBlock = time.Duration(blockMS) * time.Millisecond

	count, err := getenvInt("READ_COUNT", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.ReadCount = int64(count)

	reconnect, err := getenvInt("RECONNECT_DELAY", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.ReconnectDelay = time.Duration(reconnect) * time.Second

	cfg.SolveTimeLimit = 60 * time.Second

	if cfg.RedisPort <= 0 || cfg.RedisPort > 65535 {
		return Config{}, fmt.Errorf("REDIS_PORT out of range: %d", cfg.RedisPort)
	}
	if cfg.ReadBlock < 0 || cfg.ReconnectDelay < 0 {
		return Config{}, fmt.Errorf("durations must be non-negative")
	}

	return cfg, nil
}

// Addr returns the host:port pair the Redis client dials.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
