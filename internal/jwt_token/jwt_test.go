package jwttoken

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "obligo/pkg/domain-errors"
)

func TestValidateToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "identity-service", "obligo")

	t.Run("round trip", func(t *testing.T) {
		token, err := svc.GenerateToken("user:ana.perez", "supervisor", time.Minute)
		require.NoError(t, err)

		claims, err := svc.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "user:ana.perez", claims.Actor)
		assert.Equal(t, "supervisor", claims.Role)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		token, err := svc.GenerateToken("user:ana.perez", "preparer", -time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		other := NewJWTService("other-key", "identity-service", "obligo")
		token, err := other.GenerateToken("user:ana.perez", "preparer", time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := svc.ValidateToken("not-a-token")
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("missing actor claim rejected", func(t *testing.T) {
		token, err := svc.GenerateToken("", "preparer", time.Minute)
		require.NoError(t, err)

		_, err = svc.ValidateToken(token)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}
