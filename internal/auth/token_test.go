package auth

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	chat_errors "chatcore/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndVerify(t *testing.T) {
	v := NewVerifier("secret")
	id := Identity{UserID: uuid.New(), Username: "alice"}

	token, err := v.Issue(id, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id, *got)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier("secret")
	id := Identity{UserID: uuid.New(), Username: "alice"}

	expired, err := v.Issue(id, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.ErrorIs(t, err, chat_errors.ErrUnauthorized)

	foreign, err := NewVerifier("other").Issue(id, time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(foreign)
	assert.ErrorIs(t, err, chat_errors.ErrUnauthorized)

	_, err = v.Verify("")
	assert.ErrorIs(t, err, chat_errors.ErrUnauthorized)

	bad := jwt.NewWithClaims(jwt.SigningMethodHS256, AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "not-a-uuid", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
	})
	signed, err := bad.SignedString([]byte("secret"))
	require.NoError(t, err)
	_, err = v.Verify(signed)
	assert.ErrorIs(t, err, chat_errors.ErrUnauthorized)
}

func TestVerifyDefaultsUsername(t *testing.T) {
	v := NewVerifier("secret")
	id := Identity{UserID: uuid.New()}
	token, err := v.Issue(id, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, id.UserID.String(), got.Username)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws/conversations/x?token=abc", nil)
	assert.Equal(t, "abc", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws/conversations/x", nil)
	r.Header.Set("Authorization", "bearer xyz")
	assert.Equal(t, "xyz", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", TokenFromRequest(r))
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	id := &Identity{UserID: uuid.New(), Username: "bob"}
	got, ok := FromContext(WithIdentity(context.Background(), id))
	require.True(t, ok)
	assert.Same(t, id, got)
}
