package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHS256_GenerateAndParseToken_ValidCases(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	tokenTTL := 15 * time.Minute
	verifier := NewHS256(secretKey, tokenTTL, "identity")

	tests := []struct {
		name   string
		userID string
		role   string
	}{
		{
			name:   "admin user",
			userID: "admin-1",
			role:   RoleAdmin,
		},
		{
			name:   "regular user",
			userID: "4a6f0c1e-7d4b-4c55-9d0e-5f3a8b2c1d00",
			role:   RoleUser,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := verifier.GenerateToken(tt.userID, tt.role)
			require.NoError(t, err)
			assert.NotEmpty(t, token)

			claims, err := verifier.ParseToken(token)
			require.NoError(t, err)

			assert.Equal(t, tt.userID, claims.UserID)
			assert.Equal(t, tt.role, claims.Role)
			assert.WithinDuration(t, time.Now(), claims.IssuedAt.Time, time.Second)
			assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Second)
		})
	}
}

func TestHS256_ParseToken_InvalidTokens(t *testing.T) {
	secretKey := "test_secret_key_1234567890"
	verifier := NewHS256(secretKey, 15*time.Minute, "identity")

	validToken, err := verifier.GenerateToken("u-1", RoleUser)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty token", token: ""},
		{name: "malformed token", token: "invalid.token.here"},
		{name: "expired token", token: signed(t, NewHS256(secretKey, -time.Hour, "identity"), "u-1")},
		{name: "wrong secret key", token: signed(t, NewHS256("wrong_secret_key", time.Minute, "identity"), "u-1")},
		{name: "wrong issuer", token: signed(t, NewHS256(secretKey, time.Minute, "someone-else"), "u-1")},
		{name: "tampered token", token: validToken + "tampered"},
		{name: "no user id", token: signed(t, NewHS256(secretKey, time.Minute, "identity"), "")},
		{name: "none algorithm", token: noneToken(t)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := verifier.ParseToken(tt.token)
			assert.Error(t, err)
			assert.Nil(t, claims)
		})
	}
}

func TestHS256_SubjectFallbackAndDefaultRole(t *testing.T) {
	secretKey := "secret"
	verifier := NewHS256(secretKey, time.Minute, "")

	claims := jwt.RegisteredClaims{
		Subject:   "subject-user",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secretKey))
	require.NoError(t, err)

	parsed, err := verifier.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, "subject-user", parsed.UserID)
	assert.Equal(t, RoleUser, parsed.Role)
}

func signed(t *testing.T, v *HS256, userID string) string {
	token, err := v.GenerateToken(userID, RoleUser)
	require.NoError(t, err)
	return token
}

func noneToken(t *testing.T) string {
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	return token
}
