package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Blob storage backends.
const (
	BlobBackendDisk       = "disk"
	BlobBackendCloudinary = "cloudinary"
)

// Config holds the server settings read from the environment.
type Config struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	MongoURI       string        `envconfig:"MONGO_URI" required:"true"`
	DBName         string        `envconfig:"DB_NAME" default:"chat_app"`
	JWTSecret      string        `envconfig:"JWT_SECRET" required:"true"`
	TokenExpiry    time.Duration `envconfig:"TOKEN_EXPIRY" default:"72h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:3000"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`

	// RedisAddr enables cross-instance event delivery when set.
	RedisAddr string `envconfig:"REDIS_ADDR"`

	BlobBackend   string `envconfig:"BLOB_BACKEND" default:"disk"`
	UploadDir     string `envconfig:"UPLOAD_DIR" default:"./uploads"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	CloudinaryURL string `envconfig:"CLOUDINARY_URL"`

	CleanupSchedule string        `envconfig:"CLEANUP_SCHEDULE" default:"@every 5m"`
	CleanupGrace    time.Duration `envconfig:"CLEANUP_GRACE" default:"2m"`
}

// LoadConfig reads an optional .env file and then the process environment.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field settings envconfig cannot express.
func (c *Config) Validate() error {
	switch c.BlobBackend {
	case BlobBackendDisk:
		if c.UploadDir == "" {
			return fmt.Errorf("UPLOAD_DIR is required for the disk blob backend")
		}
	case BlobBackendCloudinary:
		if c.CloudinaryURL == "" {
			return fmt.Errorf("CLOUDINARY_URL is required for the cloudinary blob backend")
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.BlobBackend)
	}
	if c.TokenExpiry <= 0 {
		return fmt.Errorf("TOKEN_EXPIRY must be positive")
	}
	return nil
}
