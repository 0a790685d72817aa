package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/tapcard/cardshop/internal/orders"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	s, err := NewService("test-secret", time.Hour, "Admin@TapCard.ma", string(hash))
	require.NoError(t, err)
	return s
}

func TestLoginIssuesParsableToken(t *testing.T) {
	s := newTestService(t)

	sess, err := s.Login(" admin@tapcard.ma ", "s3cret!")
	require.NoError(t, err)
	assert.Equal(t, "admin@tapcard.ma", sess.Actor.Email)

	actor, err := s.Parse(sess.Token)
	require.NoError(t, err)
	assert.Equal(t, orders.Actor{ID: "admin@tapcard.ma", Email: "admin@tapcard.ma", Role: RoleAdmin}, actor)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	s := newTestService(t)

	_, err := s.Login("admin@tapcard.ma", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = s.Login("someone@tapcard.ma", "s3cret!")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoginDisabledWithoutHash(t *testing.T) {
	s, err := NewService("x", 0, "admin@tapcard.ma", "")
	require.NoError(t, err)
	_, err = s.Login("admin@tapcard.ma", "")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestParseRejectsExpiredAndForeignTokens(t *testing.T) {
	s := newTestService(t)
	token, _, err := s.Issue(orders.Actor{ID: "u1", Email: "a@b.c", Role: RoleAdmin})
	require.NoError(t, err)

	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewService("other-secret", time.Hour, "", "")
	require.NoError(t, err)
	foreign, _, err := other.Issue(orders.Actor{ID: "u1"})
	require.NoError(t, err)
	_, err = newTestService(t).Parse(foreign)
	assert.ErrorIs(t, err, ErrInvalidToken)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"iss": issuer}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Parse(none)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewServiceValidatesInput(t *testing.T) {
	_, err := NewService("", time.Hour, "", "")
	assert.Error(t, err)
	_, err = NewService("x", time.Hour, "a@b.c", "plaintext")
	assert.Error(t, err)
}
