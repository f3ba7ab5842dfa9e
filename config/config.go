package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Document store backends.
const (
	BackendFirestore = "firestore"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
)

// Blob storage backends.
const (
	BlobFirebase = "firebase"
	BlobS3       = "s3"
	BlobNone     = "none"
)

type Config struct {
	App      AppConfig `envPrefix:"APP_"`
	Server   ServerConfig
	Store    StoreConfig    `envPrefix:"STORE_"`
	Firebase FirebaseConfig `envPrefix:"FIREBASE_"`
	Redis    RedisConfig    `envPrefix:"REDIS_"`
	Database DatabaseConfig `envPrefix:"DB_"`
	Blob     BlobConfig     `envPrefix:"BLOB_"`
	Sweeper  SweeperConfig  `envPrefix:"SWEEPER_"`
}

type AppConfig struct {
	Environment string `env:"ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	Version     string `env:"VERSION" envDefault:"1.0.0"`
}

type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`
}

type StoreConfig struct {
	Backend string `env:"BACKEND" envDefault:"firestore"`
	// RateLimit caps document store calls per second; zero disables throttling.
	RateLimit float64 `env:"RATE_LIMIT" envDefault:"0"`
	RateBurst int     `env:"RATE_BURST" envDefault:"10"`
}

type FirebaseConfig struct {
	CredentialsPath string `env:"CREDENTIALS_PATH"`
	ProjectID       string `env:"PROJECT_ID"`
	StorageBucket   string `env:"STORAGE_BUCKET"`
}

type RedisConfig struct {
	Addr      string `env:"ADDR" envDefault:"localhost:6379"`
	Password  string `env:"PASSWORD"`
	DB        int    `env:"DB" envDefault:"0"`
	KeyPrefix string `env:"KEY_PREFIX" envDefault:"tandm"`
}

type DatabaseConfig struct {
	DSN       string        `env:"DSN"`
	MaxConns  int           `env:"MAX_CONNS" envDefault:"10"`
	MinConns  int           `env:"MIN_CONNS" envDefault:"2"`
	ConnectTO time.Duration `env:"CONNECT_TIMEOUT" envDefault:"5s"`
}

type BlobConfig struct {
	Backend   string        `env:"BACKEND" envDefault:"firebase"`
	Bucket    string        `env:"BUCKET"`
	Region    string        `env:"REGION" envDefault:"us-east-1"`
	URLExpiry time.Duration `env:"URL_EXPIRY" envDefault:"168h"`
}

type SweeperConfig struct {
	Enabled  bool   `env:"ENABLED" envDefault:"true"`
	Schedule string `env:"SCHEDULE" envDefault:"0 0 * * * *"`
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.Store.Backend = strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	cfg.Blob.Backend = strings.ToLower(strings.TrimSpace(cfg.Blob.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	switch c.Store.Backend {
	case BackendFirestore:
		if c.Firebase.ProjectID == "" && c.Firebase.CredentialsPath == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID or FIREBASE_CREDENTIALS_PATH is required for the firestore backend")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis backend")
		}
	case BackendPostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store.Backend)
	}

	if c.Store.RateLimit < 0 {
		return fmt.Errorf("STORE_RATE_LIMIT must not be negative")
	}

	switch c.Blob.Backend {
	case BlobNone:
	case BlobFirebase, BlobS3:
		if c.Blob.Bucket == "" && c.Firebase.StorageBucket == "" {
			return fmt.Errorf("BLOB_BUCKET is required for the %s blob backend", c.Blob.Backend)
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	return nil
}

// NeedsFirebase reports whether any configured backend talks to Firebase.
func (c *Config) NeedsFirebase() bool {
	return c.Store.Backend == BackendFirestore || c.Blob.Backend == BlobFirebase || c.Firebase.ProjectID != "" || c.Firebase.CredentialsPath != ""
}

// BucketName returns the blob bucket, falling back to the Firebase default bucket.
func (c *Config) BucketName() string {
	if c.Blob.Bucket != "" {
		return c.Blob.Bucket
	}
	return c.Firebase.StorageBucket
}
