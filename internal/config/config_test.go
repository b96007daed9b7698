package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("should apply defaults", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("JWT_SECRET", "secret")

		cfg, err := LoadConfig()

		req.NoError(err)
		req.Equal("8080", cfg.Port)
		req.Equal("chat_app", cfg.DBName)
		req.Equal(72*time.Hour, cfg.TokenExpiry)
		req.Equal(BlobBackendDisk, cfg.BlobBackend)
		req.Equal([]string{"http://localhost:3000"}, cfg.AllowedOrigins)
	})

	t.Run("should require a cloudinary url for the cloudinary backend", func(t *testing.T) {
		req := require.New(t)
		t.Setenv("MONGO_URI", "mongodb://localhost:27017")
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("BLOB_BACKEND", BlobBackendCloudinary)
		t.Setenv("CLOUDINARY_URL", "")

		_, err := LoadConfig()

		req.ErrorContains(err, "CLOUDINARY_URL")
	})

	t.Run("should reject an unknown backend", func(t *testing.T) {
		req := require.New(t)
		cfg := &Config{BlobBackend: "ftp", TokenExpiry: time.Hour}

		req.Error(cfg.Validate())
	})
}
