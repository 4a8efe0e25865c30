package warden

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// LockoutPolicy is the account-security state machine. An account is either
// unlocked with a failed-attempt count below the threshold, or locked until a
// deadline. The policy is evaluated strictly before any credential check or
// token issuance.
type LockoutPolicy struct {
	maxAttempts int
	duration    time.Duration
	now         func() time.Time
}

// LockoutOption customizes LockoutPolicy construction.
type LockoutOption func(*LockoutPolicy)

// WithLockoutClock injects a custom clock (useful for tests).
func WithLockoutClock(clock func() time.Time) LockoutOption {
	return func(p *LockoutPolicy) {
		if clock != nil {
			p.now = clock
		}
	}
}

// NewLockoutPolicy returns a policy that locks an account for the given
// duration once maxAttempts consecutive failures accumulate.
func NewLockoutPolicy(maxAttempts int, duration time.Duration, opts ...LockoutOption) *LockoutPolicy {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &LockoutPolicy{
		maxAttempts: maxAttempts,
		duration:    duration,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// CheckLockout rejects the attempt while the lockout window is open. It runs
// before the credential hash is consulted: a locked account leaks nothing
// about password correctness and its attempt counter does not churn.
func (p *LockoutPolicy) CheckLockout(account *Account) error {
	if account.LockoutUntil == nil {
		return nil
	}

	now := p.now().UTC()
	if now.Before(*account.LockoutUntil) {
		return NewAccountLockedError(account.LockoutUntil.Sub(now))
	}

	return nil
}

// RecordFailure applies the failure transition: the counter is atomically
// incremented and, when it reaches the threshold, the account moves to
// locked(now + duration). Returns an AccountLocked error when this failure
// crossed the threshold, nil otherwise.
func (p *LockoutPolicy) RecordFailure(ctx context.Context, accounts AccountStore, account *Account) error {
	attempts, err := accounts.IncrementFailedAttempts(ctx, account.ID)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to record login attempt")
	}
	account.FailedAttempts = attempts

	if attempts < p.maxAttempts {
		return nil
	}

	until := p.now().UTC().Add(p.duration)
	account.LockoutUntil = &until
	account.UpdatedAt = p.now().UTC()
	if err := accounts.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist lockout")
	}

	return NewAccountLockedError(p.duration)
}

// RecordSuccess applies the success transition: counter back to zero, lockout
// cleared, last-login stamped.
func (p *LockoutPolicy) RecordSuccess(ctx context.Context, accounts AccountStore, account *Account) error {
	now := p.now().UTC()
	account.FailedAttempts = 0
	account.LockoutUntil = nil
	account.LastLoginAt = &now
	account.UpdatedAt = now

	if err := accounts.Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to clear lockout state")
	}
	return nil
}

// Reset clears the failure counter and lockout window without stamping a
// login. A completed password reset proves ownership, so it rides this path.
func (p *LockoutPolicy) Reset(account *Account) {
	account.FailedAttempts = 0
	account.LockoutUntil = nil
}
