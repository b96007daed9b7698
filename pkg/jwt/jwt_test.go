package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidateToken(t *testing.T) {
	t.Run("should round trip the user id", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken("65f1c2a9e4b0a1b2c3d4e5f6", "alice", "secret", time.Hour)
		req.NoError(err)

		claims, err := ValidateToken(token, "secret")
		req.NoError(err)
		req.Equal("65f1c2a9e4b0a1b2c3d4e5f6", claims.UserID)
		req.Equal("alice", claims.Username)
	})

	t.Run("should reject a token signed with another secret", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken("u1", "alice", "secret", time.Hour)
		req.NoError(err)

		_, err = ValidateToken(token, "other")
		req.Error(err)
	})

	t.Run("should reject an expired token", func(t *testing.T) {
		req := require.New(t)
		token, err := GenerateToken("u1", "alice", "secret", -time.Minute)
		req.NoError(err)

		_, err = ValidateToken(token, "secret")
		req.Error(err)
	})
}
