package warden_test

import (
	"testing"
	"time"

	warden "go-warden"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSigningKey = []byte("test-signing-key-32-bytes-long!!")

func TestTokenServiceRoundTrip(t *testing.T) {
	ts := warden.NewTokenService(testSigningKey)

	raw, err := ts.Issue(&warden.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
		Username:         "alice",
		Superuser:        true,
		TokenType:        warden.TokenTypeAccess,
	}, time.Hour)
	require.NoError(t, err)

	claims, err := ts.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "account-1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
	assert.True(t, claims.Superuser)
	assert.Equal(t, warden.TokenTypeAccess, claims.TokenType)
}

func TestTokenServiceRejectsExpiredToken(t *testing.T) {
	issuedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := issuedAt

	ts := warden.NewTokenService(testSigningKey, warden.WithTokenClock(func() time.Time { return clock }))

	raw, err := ts.Issue(&warden.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
		TokenType:        warden.TokenTypeAccess,
	}, 15*time.Minute)
	require.NoError(t, err)

	clock = issuedAt.Add(14 * time.Minute)
	_, err = ts.Validate(raw)
	require.NoError(t, err)

	clock = issuedAt.Add(16 * time.Minute)
	_, err = ts.Validate(raw)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestTokenServiceRejectsWrongKey(t *testing.T) {
	issuer := warden.NewTokenService(testSigningKey)
	verifier := warden.NewTokenService([]byte("a-completely-different-secret!!!"))

	raw, err := issuer.Issue(&warden.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
		TokenType:        warden.TokenTypeAccess,
	}, time.Hour)
	require.NoError(t, err)

	_, err = verifier.Validate(raw)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestTokenServiceRejectsTamperedToken(t *testing.T) {
	ts := warden.NewTokenService(testSigningKey)

	raw, err := ts.Issue(&warden.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
		TokenType:        warden.TokenTypeAccess,
	}, time.Hour)
	require.NoError(t, err)

	tampered := []byte(raw)
	last := len(tampered) - 1
	if tampered[last] == 'A' {
		tampered[last] = 'B'
	} else {
		tampered[last] = 'A'
	}

	_, err = ts.Validate(string(tampered))
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestTokenServiceRejectsGarbage(t *testing.T) {
	ts := warden.NewTokenService(testSigningKey)

	for _, raw := range []string{"", "not-a-token", "a.b.c"} {
		_, err := ts.Validate(raw)
		assert.ErrorIs(t, err, warden.ErrInvalidToken)
	}
}

func TestValidateTypedRejectsWrongType(t *testing.T) {
	ts := warden.NewTokenService(testSigningKey)

	reset, err := ts.Issue(&warden.TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "account-1"},
		TokenType:        warden.TokenTypePasswordReset,
	}, time.Hour)
	require.NoError(t, err)

	// A perfectly valid reset token must never pass as a refresh token.
	_, err = ts.ValidateTyped(reset, warden.TokenTypeRefresh)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)

	claims, err := ts.ValidateTyped(reset, warden.TokenTypePasswordReset)
	require.NoError(t, err)
	assert.Equal(t, "account-1", claims.Subject)
}

func TestValidateTypedRequiresSubject(t *testing.T) {
	ts := warden.NewTokenService(testSigningKey)

	raw, err := ts.Issue(&warden.TokenClaims{TokenType: warden.TokenTypeAccess}, time.Hour)
	require.NoError(t, err)

	_, err = ts.ValidateTyped(raw, warden.TokenTypeAccess)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}
