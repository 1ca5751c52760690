package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultKeyPrefix = "tutor"

// Redis is a Store backed by plain Redis string keys of the form
// <prefix>:<kind>:<id>.
type Redis struct {
	client *redis.Client
	prefix string
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces every key, defaults to "tutor".
	Prefix string `yaml:"prefix"`
}

// NewRedis connects to Redis and checks the connection.
func NewRedis(ctx context.Context, config RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info("connected to redis", "addr", config.Addr, "db", config.DB)
	return NewRedisFromClient(client, config.Prefix), nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix}
}

// Client exposes the underlying client, e.g. to share it with a RedisLocker.
func (r *Redis) Client() *redis.Client { return r.client }

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(kind, id string) string {
	return r.prefix + ":" + kind + ":" + id
}

func (r *Redis) Get(ctx context.Context, kind, id string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "store.redis.get", trace.WithAttributes(
		attribute.String("record.kind", kind),
		attribute.String("record.id", id),
	))
	defer span.End()

	data, err := r.client.Get(ctx, r.key(kind, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		return nil, fmt.Errorf("failed to get %s %q: %w", kind, id, err)
	}
	return data, nil
}

func (r *Redis) Put(ctx context.Context, kind, id string, data []byte) error {
	ctx, span := tracer.Start(ctx, "store.redis.put", trace.WithAttributes(
		attribute.String("record.kind", kind),
		attribute.String("record.id", id),
		attribute.Int("record.size", len(data)),
	))
	defer span.End()

	if err := r.client.Set(ctx, r.key(kind, id), data, 0).Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "put failed")
		return fmt.Errorf("failed to put %s %q: %w", kind, id, err)
	}
	return nil
}

func (r *Redis) List(ctx context.Context, kind string) ([]string, error) {
	prefix := r.key(kind, "")

	var ids []string
	iter := r.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", kind, err)
	}
	return ids, nil
}

// HealthCheck pings the server.
func (r *Redis) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
