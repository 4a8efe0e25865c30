package warden

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenType discriminates what a token may be used for. Every token carries
// one, and each consuming operation rejects tokens of any other type.
type TokenType string

const (
	// TokenTypeAccess is a short-lived session token.
	TokenTypeAccess TokenType = "access"
	// TokenTypeRefresh re-issues session pairs.
	TokenTypeRefresh TokenType = "refresh"
	// TokenTypePasswordReset is the one-shot password reset token.
	TokenTypePasswordReset TokenType = "password_reset"
	// TokenTypeEmailVerification is the one-shot email verification token.
	TokenTypeEmailVerification TokenType = "email_verification"
)

// TokenClaims is the claim set carried by every warden token. Subject holds
// the account id; Username and Superuser are only stamped on access tokens.
type TokenClaims struct {
	jwt.RegisteredClaims
	Username  string    `json:"username,omitempty"`
	Superuser bool      `json:"is_superuser,omitempty"`
	TokenType TokenType `json:"type,omitempty"`
}

// TokenService signs and verifies compact expiring tokens. It is purely a
// format/crypto primitive: it stamps expiry and checks signatures, callers
// decide the claim schema and validate the type discriminant after parse.
type TokenService struct {
	signingKey []byte
	logger     Logger
	now        func() time.Time
}

// TokenServiceOption customizes TokenService construction.
type TokenServiceOption func(*TokenService)

// WithTokenClock injects a custom clock, useful for expiry tests.
func WithTokenClock(clock func() time.Time) TokenServiceOption {
	return func(ts *TokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger overrides the token service logger.
func WithTokenLogger(logger Logger) TokenServiceOption {
	return func(ts *TokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a TokenService that signs with the given shared
// secret using HS256.
func NewTokenService(signingKey []byte, opts ...TokenServiceOption) *TokenService {
	ts := &TokenService{
		signingKey: signingKey,
		logger:     defLogger{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Issue signs the claims with exp = now + ttl and iat = now. The caller's
// Subject and TokenType are preserved as given.
func (ts *TokenService) Issue(claims *TokenClaims, ttl time.Duration) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	now := ts.now().UTC()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign token")
	}

	return signed, nil
}

// Validate parses a token string, recomputes the signature, and checks
// expiry. Expired, malformed, and badly signed tokens all come back as
// ErrInvalidToken; the distinction is logged, never surfaced.
func (ts *TokenService) Validate(raw string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &TokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, jwt.WithTimeFunc(ts.now))

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			ts.logger.Debug("token rejected: expired")
		} else {
			ts.logger.Debug("token rejected: %v", err)
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok || !token.Valid {
		ts.logger.Error("token claims could not be decoded")
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ValidateTyped parses a token and additionally requires its type claim and a
// non-empty subject. A well-formed token of the wrong type is rejected
// exactly like a forged one.
func (ts *TokenService) ValidateTyped(raw string, want TokenType) (*TokenClaims, error) {
	claims, err := ts.Validate(raw)
	if err != nil {
		return nil, err
	}

	if claims.TokenType != want {
		ts.logger.Warn("token type mismatch: want %s, got %s", want, claims.TokenType)
		return nil, ErrInvalidToken
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
