package util

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	token, err := GenerateJWT(7, "alice@example.com", "Alice", time.Hour)
	require.NoError(t, err)

	claims, err := ValidateJWT(token)
	require.NoError(t, err)
	assert.Equal(t, 7, claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.Author())
	assert.Equal(t, issuer, claims.Issuer)
}

func TestClaimsAuthorFallsBackToEmail(t *testing.T) {
	c := &Claims{Email: "bob@example.com"}
	assert.Equal(t, "bob@example.com", c.Author())
}

func TestValidateJWTRejects(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	expired, err := GenerateJWT(7, "alice@example.com", "", -time.Minute)
	require.NoError(t, err)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	foreignToken, err := foreign.SignedString([]byte("test-secret"))
	require.NoError(t, err)

	otherKey := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	otherKeyToken, err := otherKey.SignedString([]byte("another-secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong issuer": foreignToken,
		"wrong key":    otherKeyToken,
		"garbage":      "not.a.token",
		"empty":        "",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestJWTRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := GenerateJWT(1, "a@example.com", "", time.Hour)
	assert.ErrorIs(t, err, ErrMissingSecret)

	_, err = ValidateJWT("anything")
	assert.ErrorIs(t, err, ErrMissingSecret)
}
