package warden_test

import (
	"context"
	"testing"
	"time"

	warden "go-warden"
	"go-warden/memstore"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

// captureMailer records the last dispatch per channel instead of sending.
type captureMailer struct {
	resetEmail  string
	resetToken  string
	verifyEmail string
	verifyToken string
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.resetEmail = email
	m.resetToken = token
	return nil
}

func (m *captureMailer) SendEmailVerification(_ context.Context, email, token string) error {
	m.verifyEmail = email
	m.verifyToken = token
	return nil
}

type fixture struct {
	store  *memstore.Store
	svc    *warden.AuthService
	clock  *testClock
	mail   *captureMailer
	member *warden.Role
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := &warden.Config{
		SigningKey:           "test-signing-key-32-bytes-long!!",
		AccessTokenTTL:       30 * time.Minute,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		ResetTokenTTL:        15 * time.Minute,
		VerificationTokenTTL: time.Hour,
		MaxFailedAttempts:    5,
		LockoutDuration:      15 * time.Minute,
		DefaultRoleName:      "member",
		BcryptCost:           4,
	}

	store := memstore.New()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	mail := &captureMailer{}

	read := seedPermission(t, store, "account:read_own")
	member := seedRole(t, store, "member", read.ID)

	svc := warden.NewAuthService(store, cfg).
		WithClock(clock.Now).
		WithMailer(mail)

	return &fixture{store: store, svc: svc, clock: clock, mail: mail, member: member}
}

func (f *fixture) register(t *testing.T, username, email, password string) *warden.AuthorizationView {
	t.Helper()
	view, err := f.svc.Register(context.Background(), warden.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return view
}

func TestRegisterAssignsDefaultRole(t *testing.T) {
	f := newFixture(t)

	view := f.register(t, "alice", "alice@example.com", "password123")

	assert.Equal(t, "alice", view.Username)
	assert.True(t, view.IsActive)
	assert.False(t, view.IsSuperuser)
	assert.Equal(t, []string{f.member.ID}, view.RoleIDs)
	assert.Equal(t, []string{"member"}, view.Roles)
	assert.Equal(t, []string{"account:read_own"}, view.Permissions)
}

func TestRegisterDuplicateUsernameAndEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.register(t, "alice", "alice@example.com", "password123")

	_, err := f.svc.Register(ctx, warden.RegisterInput{
		Username: "alice",
		Email:    "other@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, warden.ErrDuplicateUsername)

	_, err = f.svc.Register(ctx, warden.RegisterInput{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "password123",
	})
	assert.ErrorIs(t, err, warden.ErrDuplicateEmail)
}

func TestRegisterRejectsUnknownRoleIDs(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), warden.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "password123",
		RoleIDs:  []string{f.member.ID, "no-such-role"},
	})
	require.Error(t, err)
	assert.True(t, warden.IsInvalidReferenceSet(err))
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Register(context.Background(), warden.RegisterInput{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "short",
	})
	assert.Error(t, err)
}

func TestRegisterMissingDefaultRoleProceedsWithNoRoles(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.store.Roles().Delete(context.Background(), f.member.ID))

	view := f.register(t, "alice", "alice@example.com", "password123")
	assert.Empty(t, view.RoleIDs)
	assert.Empty(t, view.Permissions)
}

func TestLoginIssuesTypedTokenPair(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")

	pair, err := f.svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, warden.BearerTokenType, pair.TokenType)

	access, err := f.svc.Tokens().ValidateTyped(pair.AccessToken, warden.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, "alice", access.Username)

	refresh, err := f.svc.Tokens().ValidateTyped(pair.RefreshToken, warden.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Empty(t, refresh.Username)
	assert.Equal(t, access.Subject, refresh.Subject)
}

func TestLoginUnknownUserAndWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "nobody", "password123")
	assert.ErrorIs(t, err, warden.ErrInvalidCredentials)

	_, err = f.svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, warden.ErrInvalidCredentials)
}

func TestLoginInactiveAccount(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.Deactivate(ctx, view.ID))

	_, err := f.svc.Login(ctx, "alice", "password123")
	assert.ErrorIs(t, err, warden.ErrInactiveAccount)
}

func TestLoginLockoutLifecycle(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := f.svc.Login(ctx, "alice", "wrong-password")
		assert.ErrorIs(t, err, warden.ErrInvalidCredentials)
	}

	// Fifth failure crosses the threshold.
	_, err := f.svc.Login(ctx, "alice", "wrong-password")
	require.Error(t, err)
	assert.True(t, warden.IsAccountLocked(err))

	// The correct password is rejected while the window is open, and the
	// rejection does not reveal that the password was right.
	_, err = f.svc.Login(ctx, "alice", "password123")
	require.Error(t, err)
	assert.True(t, warden.IsAccountLocked(err))

	// Window elapses, counter starts fresh.
	f.clock.Advance(16 * time.Minute)
	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)

	account, err := f.store.Accounts().GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, account.FailedAttempts)
	assert.Nil(t, account.LockoutUntil)
	require.NotNil(t, account.LastLoginAt)
}

func TestRefreshIssuesNewPair(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	next, err := f.svc.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.AccessToken, next.AccessToken)

	// No rotation: the original refresh token stays valid until expiry.
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	_, err = f.svc.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestRefreshRejectsInactiveAccount(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	require.NoError(t, f.svc.Deactivate(ctx, view.ID))

	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, warden.ErrInactiveAccount)
}

func TestRefreshRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	f.clock.Advance(7*24*time.Hour + time.Minute)
	_, err = f.svc.Refresh(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestRequestPasswordResetIsEnumerationSafe(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	known, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", f.mail.resetEmail)
	assert.NotEmpty(t, f.mail.resetToken)

	sent := f.mail.resetToken
	unknown, err := f.svc.RequestPasswordReset(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Equal(t, known, unknown)
	assert.Equal(t, sent, f.mail.resetToken, "no token is dispatched for unknown addresses")
}

func TestResetPasswordClearsLockout(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "alice", "wrong-password")
	}
	_, err := f.svc.Login(ctx, "alice", "password123")
	assert.True(t, warden.IsAccountLocked(err))

	_, err = f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NoError(t, f.svc.ResetPassword(ctx, f.mail.resetToken, "new-password-456"))

	// Old password is dead, new one works immediately, no lockout left.
	_, err = f.svc.Login(ctx, "alice", "password123")
	assert.ErrorIs(t, err, warden.ErrInvalidCredentials)

	pair, err := f.svc.Login(ctx, "alice", "new-password-456")
	require.NoError(t, err)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestResetPasswordRejectsOtherTokenTypes(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailVerification(ctx, view.ID))

	err := f.svc.ResetPassword(ctx, f.mail.verifyToken, "new-password-456")
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestResetPasswordRejectsExpiredToken(t *testing.T) {
	f := newFixture(t)
	f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	_, err := f.svc.RequestPasswordReset(ctx, "alice@example.com")
	require.NoError(t, err)

	f.clock.Advance(16 * time.Minute)
	err = f.svc.ResetPassword(ctx, f.mail.resetToken, "new-password-456")
	assert.ErrorIs(t, err, warden.ErrInvalidToken)
}

func TestChangePasswordRequiresOldPassword(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, view.ID, "wrong-password", "new-password-456")
	assert.ErrorIs(t, err, warden.ErrInvalidCredentials)

	require.NoError(t, f.svc.ChangePassword(ctx, view.ID, "password123", "new-password-456"))

	_, err = f.svc.Login(ctx, "alice", "new-password-456")
	assert.NoError(t, err)
}

func TestDeactivateAndReactivate(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.Deactivate(ctx, view.ID))
	assert.ErrorIs(t, f.svc.Deactivate(ctx, view.ID), warden.ErrAlreadyInactive)

	assert.ErrorIs(t, f.svc.Reactivate(ctx, "alice", "wrong-password"), warden.ErrInvalidCredentials)

	require.NoError(t, f.svc.Reactivate(ctx, "alice", "password123"))
	assert.ErrorIs(t, f.svc.Reactivate(ctx, "alice", "password123"), warden.ErrAlreadyActive)

	_, err := f.svc.Login(ctx, "alice", "password123")
	assert.NoError(t, err)
}

func TestReactivateSkipsLockoutCheck(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, _ = f.svc.Login(ctx, "alice", "wrong-password")
	}
	require.NoError(t, f.svc.Deactivate(ctx, view.ID))

	// Reactivation only checks credentials, not the lockout window.
	assert.NoError(t, f.svc.Reactivate(ctx, "alice", "password123"))

	// The lockout window still gates login afterwards.
	_, err := f.svc.Login(ctx, "alice", "password123")
	assert.True(t, warden.IsAccountLocked(err))
}

func TestEmailVerificationFlow(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailVerification(ctx, view.ID))
	assert.Equal(t, "alice@example.com", f.mail.verifyEmail)

	require.NoError(t, f.svc.VerifyEmail(ctx, f.mail.verifyToken))

	profile, err := f.svc.Profile(ctx, view.ID)
	require.NoError(t, err)
	assert.NotNil(t, profile.EmailVerifiedAt)

	// Replaying the still-valid token fails: the account is already verified.
	assert.ErrorIs(t, f.svc.VerifyEmail(ctx, f.mail.verifyToken), warden.ErrAlreadyVerified)
	assert.ErrorIs(t, f.svc.RequestEmailVerification(ctx, view.ID), warden.ErrAlreadyVerified)
}

func TestChangeEmail(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	f.register(t, "bob", "bob@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailVerification(ctx, view.ID))
	require.NoError(t, f.svc.VerifyEmail(ctx, f.mail.verifyToken))

	assert.ErrorIs(t, f.svc.ChangeEmail(ctx, view.ID, "alice@example.com", "password123"), warden.ErrSameEmail)
	assert.ErrorIs(t, f.svc.ChangeEmail(ctx, view.ID, "bob@example.com", "password123"), warden.ErrEmailTaken)
	assert.ErrorIs(t, f.svc.ChangeEmail(ctx, view.ID, "new@example.com", "wrong-password"), warden.ErrInvalidCredentials)

	err := f.svc.ChangeEmail(ctx, view.ID, "not-an-email", "password123")
	require.Error(t, err)

	// The rejected address left the account untouched.
	profile, err := f.svc.Profile(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", profile.Email)
	assert.NotNil(t, profile.EmailVerifiedAt)

	require.NoError(t, f.svc.ChangeEmail(ctx, view.ID, "new@example.com", "password123"))

	profile, err = f.svc.Profile(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.Nil(t, profile.EmailVerifiedAt, "verification stamp is cleared on address change")
	assert.Equal(t, "new@example.com", f.mail.verifyEmail, "verification goes to the new address")
}

func TestUpdateAccount(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	fullName := "Alice Example"
	newPassword := "new-password-456"
	updated, err := f.svc.UpdateAccount(ctx, view.ID, warden.UpdateAccountInput{
		FullName: &fullName,
		Password: &newPassword,
	})
	require.NoError(t, err)
	assert.Equal(t, "Alice Example", updated.FullName)
	assert.Equal(t, []string{"member"}, updated.Roles, "untouched fields are preserved")

	_, err = f.svc.Login(ctx, "alice", "new-password-456")
	assert.NoError(t, err)

	_, err = f.svc.UpdateAccount(ctx, view.ID, warden.UpdateAccountInput{
		RoleIDs: []string{"no-such-role"},
	})
	assert.True(t, warden.IsInvalidReferenceSet(err))
}

func TestDeleteAccount(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	require.NoError(t, f.svc.DeleteAccount(ctx, view.ID))

	_, err := f.svc.Profile(ctx, view.ID)
	require.Error(t, err)

	err = f.svc.DeleteAccount(ctx, view.ID)
	require.Error(t, err)
}

func TestAccountFromAccessToken(t *testing.T) {
	f := newFixture(t)
	view := f.register(t, "alice", "alice@example.com", "password123")
	ctx := context.Background()

	pair, err := f.svc.Login(ctx, "alice", "password123")
	require.NoError(t, err)

	account, err := f.svc.AccountFromAccessToken(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, view.ID, account.ID)

	_, err = f.svc.AccountFromAccessToken(ctx, pair.RefreshToken)
	assert.ErrorIs(t, err, warden.ErrInvalidToken)

	require.NoError(t, f.svc.Deactivate(ctx, view.ID))
	_, err = f.svc.AccountFromAccessToken(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, warden.ErrInactiveAccount)
}

func TestActivitySinkReceivesEvents(t *testing.T) {
	f := newFixture(t)

	var events []warden.ActivityEventType
	f.svc.WithActivitySink(warden.ActivitySinkFunc(func(_ context.Context, event warden.ActivityEvent) error {
		events = append(events, event.EventType)
		return nil
	}))

	f.register(t, "alice", "alice@example.com", "password123")
	_, err := f.svc.Login(context.Background(), "alice", "password123")
	require.NoError(t, err)

	assert.Equal(t, []warden.ActivityEventType{
		warden.ActivityEventAccountRegistered,
		warden.ActivityEventLoginSuccess,
	}, events)
}
