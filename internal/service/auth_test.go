package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/templui/twinboard/internal/model"
)

func TestAuthService_RoundTrip(t *testing.T) {
	svc := NewAuthService("secret")

	token, err := svc.GenerateJWT(&model.User{ID: "u1", Email: "ada@example.com"}, time.Hour)
	require.NoError(t, err)

	user, err := svc.VerifyJWT(token)
	require.NoError(t, err)
	assert.Equal(t, &model.User{ID: "u1", Email: "ada@example.com"}, user)
}

func TestAuthService_Rejects(t *testing.T) {
	svc := NewAuthService("secret")

	expired, err := svc.GenerateJWT(&model.User{ID: "u1"}, -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewAuthService("other").GenerateJWT(&model.User{ID: "u1"}, time.Hour)
	require.NoError(t, err)
	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": "x@example.com"}).SignedString([]byte("secret"))
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"user_id": "u1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":    expired,
		"wrong key":  otherKey,
		"no user_id": noUser,
		"alg none":   none,
		"garbage":    "abc.def.ghi",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.VerifyJWT(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
