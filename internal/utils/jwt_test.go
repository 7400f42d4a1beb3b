package utils

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestGenerateAndParseJWT(t *testing.T) {
	secret := []byte("test-secret")
	id := primitive.NewObjectID()

	token, err := GenerateJWT(secret, id, "admin", 7*24*time.Hour)
	require.NoError(t, err)

	claims, err := ParseJWT(secret, token)
	require.NoError(t, err)
	assert.Equal(t, id.Hex(), claims.UserID)
	assert.Equal(t, "admin", claims.Role)
	assert.WithinDuration(t, time.Now().Add(7*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestParseJWTRejectsWrongSecret(t *testing.T) {
	token, err := GenerateJWT([]byte("one"), primitive.NewObjectID(), "user", time.Hour)
	require.NoError(t, err)

	_, err = ParseJWT([]byte("two"), token)
	assert.Error(t, err)
}

func TestParseJWTRejectsExpired(t *testing.T) {
	token, err := GenerateJWT([]byte("s"), primitive.NewObjectID(), "user", -time.Minute)
	require.NoError(t, err)

	_, err = ParseJWT([]byte("s"), token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestGenerateJWTRequiresSecret(t *testing.T) {
	_, err := GenerateJWT(nil, primitive.NewObjectID(), "user", time.Hour)
	assert.Error(t, err)
}
