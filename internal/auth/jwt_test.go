package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", 2)
	user := uuid.New()

	token, err := svc.Generate(user, "u@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, user, claims.UserID)
	assert.Equal(t, "u@example.com", claims.Email)

	id, err := svc.UserID(token)
	require.NoError(t, err)
	assert.Equal(t, user, id)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	svc := NewJWTService("secret", 1)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := svc.Generate(uuid.New(), "u@example.com")
	require.NoError(t, err)

	svc.now = time.Now
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRejectsOtherSecretAndAlgorithm(t *testing.T) {
	token, err := NewJWTService("other", 1).Generate(uuid.New(), "u@example.com")
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: uuid.New()}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewJWTService("secret", 1).Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
