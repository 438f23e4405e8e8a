package config

import (
	"context"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Server configures the fleetapi process.
type Server struct {
	Port      string        `env:"PORT,       default=8080"`
	Env       string        `env:"ENV,        default=development"`
	JWTSecret string        `env:"JWT_SECRET, required"`
	TokenTTL  time.Duration `env:"TOKEN_TTL,  default=24h"`
	LogLevel  string        `env:"LOG_LEVEL,  default=info"`
	UploadDir string        `env:"UPLOAD_DIR, default=./uploads"`
	PublicURL string        `env:"PUBLIC_URL, default=http://localhost:8080"`

	Mongo MongoConfig
	Redis RedisConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=fleet_backoffice"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// Client configures fleetctl and any other process embedding the session core.
type Client struct {
	APIURL         string        `env:"FLEET_API_URL,         default=http://localhost:8080"`
	TokenStore     string        `env:"FLEET_TOKEN_STORE,     default=file"`
	TokenFile      string        `env:"FLEET_TOKEN_FILE"`
	Profile        string        `env:"FLEET_PROFILE,         default=default"`
	VerifyInterval time.Duration `env:"FLEET_VERIFY_INTERVAL, default=10s"`
	CacheTTL       time.Duration `env:"FLEET_CACHE_TTL,       default=10s"`
	RequestTimeout time.Duration `env:"FLEET_REQUEST_TIMEOUT, default=30s"`
	LogLevel       string        `env:"FLEET_LOG_LEVEL,       default=warn"`

	Redis RedisConfig
}

// Production reports whether the server runs with production defaults.
func (s *Server) Production() bool { return s.Env == "production" }

// LoadServer reads server configuration from the environment, after loading
// a .env file if one exists.
func LoadServer(ctx context.Context) (*Server, error) {
	var cfg Server
	if err := load(ctx, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient reads client configuration from the environment.
func LoadClient(ctx context.Context) (*Client, error) {
	var cfg Client
	if err := load(ctx, &cfg); err != nil {
		return nil, err
	}
	switch cfg.TokenStore {
	case "file", "redis", "memory":
	default:
		return nil, fmt.Errorf("config: unknown FLEET_TOKEN_STORE %q", cfg.TokenStore)
	}
	return &cfg, nil
}

func load(ctx context.Context, cfg any) error {
	// a missing .env is normal outside development
	_ = godotenv.Load()

	if err := envconfig.Process(ctx, cfg); err != nil {
		return fmt.Errorf("config: failed to load configuration: %w", err)
	}
	return nil
}
