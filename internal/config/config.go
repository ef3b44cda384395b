package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type StorageBackend string

const (
	BackendMemory   StorageBackend = "memory"
	BackendRedis    StorageBackend = "redis"
	BackendMongo    StorageBackend = "mongo"
	BackendDynamoDB StorageBackend = "dynamodb"
)

type Config struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	LogLevel        string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat       string        `envconfig:"LOG_FORMAT" default:"json"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`

	StorageBackend StorageBackend `envconfig:"STORAGE_BACKEND" default:"memory"`

	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisPrefix   string        `envconfig:"REDIS_PREFIX" default:"storefront"`
	CacheTTL      time.Duration `envconfig:"CART_CACHE_TTL" default:"15m"`
	CacheEnabled  bool          `envconfig:"CART_CACHE_ENABLED" default:"false"`

	MongoURI         string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDatabase    string `envconfig:"MONGO_DB" default:"storefront"`
	MongoMaxPoolSize uint64 `envconfig:"MONGO_MAX_POOL_SIZE" default:"20"`

	DynamoDBTable    string `envconfig:"DYNAMODB_TABLE" default:"storefront-cart"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"ap-northeast-2"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:""`

	CatalogDBPath     string        `envconfig:"CATALOG_DB_PATH" default:"./catalog.db"`
	MigrationsPath    string        `envconfig:"MIGRATIONS_PATH" default:"./internal/catalog/migrations"`
	CatalogMaxRetries int           `envconfig:"CATALOG_MAX_RETRIES" default:"2"`
	CatalogBackoff    time.Duration `envconfig:"CATALOG_BACKOFF" default:"50ms"`

	KafkaBrokers     string `envconfig:"KAFKA_BROKERS" default:""`
	SessionTopic     string `envconfig:"KAFKA_SESSION_TOPIC" default:"checkout-sessions"`
	OrderEventsTopic string `envconfig:"KAFKA_ORDER_TOPIC" default:"order-events"`
	ConsumerGroup    string `envconfig:"KAFKA_CONSUMER_GROUP" default:"storefront-cart-consumer"`

	MaxQuantity    int    `envconfig:"CART_MAX_QUANTITY" default:"99"`
	DiscountCoupon string `envconfig:"DISCOUNT_COUPON" default:""`
}

// Load reads a .env file when present, then the environment.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageBackend {
	case BackendMemory, BackendRedis, BackendMongo, BackendDynamoDB:
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.MaxQuantity < 1 {
		return errors.New("CART_MAX_QUANTITY must be at least 1")
	}
	if c.CatalogMaxRetries < 0 {
		return errors.New("CATALOG_MAX_RETRIES must not be negative")
	}
	return nil
}

// Brokers splits KAFKA_BROKERS; an empty list disables Kafka.
func (c *Config) Brokers() []string {
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
