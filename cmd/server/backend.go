package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fjod/go_cart/storefront-cart/internal/cache"
	"github.com/fjod/go_cart/storefront-cart/internal/config"
	"github.com/fjod/go_cart/storefront-cart/internal/repository"
	"github.com/fjod/go_cart/storefront-cart/internal/storage"
)

type backend struct {
	repo   repository.CartRepository
	cache  cache.CartCache
	closer []func()
}

func (b *backend) close() {
	for i := len(b.closer) - 1; i >= 0; i-- {
		b.closer[i]()
	}
}

func openBackend(ctx context.Context, cfg *config.Config, l *zap.Logger) (*backend, error) {
	b := &backend{cache: cache.Noop{}}

	var redisClient *redis.Client
	if cfg.StorageBackend == config.BackendRedis || cfg.CacheEnabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			redisClient.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		b.closer = append(b.closer, func() { redisClient.Close() })
		l.Info("Redis ping succeeded", zap.String("addr", cfg.RedisAddr))
	}

	switch cfg.StorageBackend {
	case config.BackendMemory:
		b.repo = repository.NewKVRepository(storage.NewMemoryKV())
	case config.BackendRedis:
		b.repo = repository.NewKVRepository(storage.NewRedisKV(redisClient, cfg.RedisPrefix))
	case config.BackendDynamoDB:
		client, err := storage.NewDynamoDBClient(ctx, cfg.AWSRegion, cfg.DynamoDBEndpoint)
		if err != nil {
			b.close()
			return nil, err
		}
		b.repo = repository.NewKVRepository(storage.NewDynamoKV(client, cfg.DynamoDBTable))
		l.Info("Using DynamoDB", zap.String("table", cfg.DynamoDBTable))
	case config.BackendMongo:
		db, err := repository.ConnectMongoDB(ctx, repository.MongoConfig{
			URI:         cfg.MongoURI,
			Database:    cfg.MongoDatabase,
			MaxPoolSize: cfg.MongoMaxPoolSize,
		})
		if err != nil {
			b.close()
			return nil, err
		}
		b.closer = append(b.closer, func() { _ = db.Client().Disconnect(context.Background()) })
		b.repo = repository.NewMongoRepository(db)
		if err := repository.EnsureMongoIndexes(ctx, b.repo); err != nil {
			b.close()
			return nil, err
		}
		l.Info("Connected to MongoDB", zap.String("database", cfg.MongoDatabase))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}

	if cfg.CacheEnabled {
		b.cache = cache.NewRedisCache(redisClient, cfg.RedisPrefix, cfg.CacheTTL)
	}
	return b, nil
}
