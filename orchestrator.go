package warden

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/golang-jwt/jwt/v5"
)

// GenericResetMessage is returned by RequestPasswordReset whether or not the
// email matched an account, to prevent address enumeration.
const GenericResetMessage = "If the email exists, password reset instructions have been sent."

// AuthService composes the hasher, token service, lockout policy, and
// resolver into the public authentication flows. One instance is safe for
// concurrent use; all mutable state lives in the store.
type AuthService struct {
	store    Store
	cfg      *Config
	hasher   *Hasher
	tokens   *TokenService
	lockout  *LockoutPolicy
	resolver *Resolver
	mailer   Mailer
	sink     ActivitySink
	logger   Logger
	now      func() time.Time
}

// NewAuthService wires an AuthService from the configuration snapshot.
func NewAuthService(store Store, cfg *Config) *AuthService {
	return &AuthService{
		store:    store,
		cfg:      cfg,
		hasher:   NewHasher(cfg.BcryptCost),
		tokens:   NewTokenService([]byte(cfg.SigningKey)),
		lockout:  NewLockoutPolicy(cfg.MaxFailedAttempts, cfg.LockoutDuration),
		resolver: NewResolver(store.Roles(), store.Permissions()),
		mailer:   LogMailer{},
		sink:     noopActivitySink{},
		logger:   defLogger{},
		now:      time.Now,
	}
}

// WithLogger overrides the service logger.
func (s *AuthService) WithLogger(logger Logger) *AuthService {
	if logger != nil {
		s.logger = logger
	}
	return s
}

// WithMailer overrides the out-of-band token delivery.
func (s *AuthService) WithMailer(mailer Mailer) *AuthService {
	if mailer != nil {
		s.mailer = mailer
	}
	return s
}

// WithActivitySink configures an ActivitySink for auth events.
func (s *AuthService) WithActivitySink(sink ActivitySink) *AuthService {
	s.sink = normalizeActivitySink(sink)
	return s
}

// WithClock injects a custom clock for the service, the token codec, and the
// lockout policy. Useful for tests.
func (s *AuthService) WithClock(clock func() time.Time) *AuthService {
	if clock == nil {
		return s
	}
	s.now = clock
	s.tokens = NewTokenService([]byte(s.cfg.SigningKey), WithTokenClock(clock), WithTokenLogger(s.logger))
	s.lockout = NewLockoutPolicy(s.cfg.MaxFailedAttempts, s.cfg.LockoutDuration, WithLockoutClock(clock))
	return s
}

// Tokens exposes the underlying token service.
func (s *AuthService) Tokens() *TokenService {
	return s.tokens
}

// Resolver exposes the underlying permission resolver.
func (s *AuthService) Resolver() *Resolver {
	return s.resolver
}

// Register creates a new account. Username and email must be unused
// (case-sensitive exact match). When no roles are given the configured
// default role is assigned; a missing default role is a warning, not an
// error, and registration proceeds with zero roles.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*AuthorizationView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	if _, err := s.store.Accounts().GetByUsername(ctx, in.Username); err == nil {
		return nil, ErrDuplicateUsername
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check username")
	}

	if _, err := s.store.Accounts().GetByEmail(ctx, in.Email); err == nil {
		return nil, ErrDuplicateEmail
	} else if !goerrors.IsNotFound(err) {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	roleIDs := in.RoleIDs
	if len(roleIDs) > 0 {
		if err := s.validateRoleIDs(ctx, roleIDs); err != nil {
			return nil, err
		}
	} else {
		roleIDs = s.defaultRoleIDs(ctx)
	}

	now := s.now().UTC()
	account := &Account{
		ID:           NewID(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		FullName:     in.FullName,
		Address:      in.Address,
		PhoneNumber:  in.PhoneNumber,
		IsActive:     true,
		RoleIDs:      roleIDs,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.store.Accounts().Create(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist account")
	}

	s.emit(ctx, ActivityEventAccountRegistered, account.ID, map[string]any{"username": account.Username})

	return s.resolver.View(ctx, account)
}

// Authenticate verifies a username/password pair. The lockout state machine
// runs first: a locked account is rejected before the hash is consulted. A
// mismatch records a failure and may cross the lockout threshold; a match
// resets the counter and stamps last login.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*Account, error) {
	account, err := s.store.Accounts().GetByUsername(ctx, username)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if err := s.lockout.CheckLockout(account); err != nil {
		s.emit(ctx, ActivityEventLoginFailure, account.ID, map[string]any{"reason": "locked"})
		return nil, err
	}

	if !account.IsActive {
		return nil, ErrInactiveAccount
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		lockErr := s.lockout.RecordFailure(ctx, s.store.Accounts(), account)
		if lockErr != nil && IsAccountLocked(lockErr) {
			s.emit(ctx, ActivityEventAccountLocked, account.ID, nil)
			return nil, lockErr
		}
		if lockErr != nil {
			return nil, lockErr
		}
		s.emit(ctx, ActivityEventLoginFailure, account.ID, map[string]any{"reason": "credentials"})
		return nil, ErrInvalidCredentials
	}

	if err := s.lockout.RecordSuccess(ctx, s.store.Accounts(), account); err != nil {
		return nil, err
	}

	s.emit(ctx, ActivityEventLoginSuccess, account.ID, nil)
	return account, nil
}

// IssueSession mints an access/refresh pair for an authenticated account.
func (s *AuthService) IssueSession(ctx context.Context, account *Account) (*TokenPair, error) {
	access, err := s.tokens.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		Username:         account.Username,
		Superuser:        account.IsSuperuser,
		TokenType:        TokenTypeAccess,
	}, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := s.tokens.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		TokenType:        TokenTypeRefresh,
	}, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    BearerTokenType,
	}, nil
}

// Login is Authenticate followed by IssueSession.
func (s *AuthService) Login(ctx context.Context, username, password string) (*TokenPair, error) {
	account, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.IssueSession(ctx, account)
}

// Refresh exchanges a valid refresh token for a full new session pair.
// Refresh tokens are not rotated; reuse is allowed until natural expiry.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.tokens.ValidateTyped(refreshToken, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}

	account, err := s.store.Accounts().GetByID(ctx, claims.Subject)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if !account.IsActive {
		return nil, ErrInactiveAccount
	}

	return s.IssueSession(ctx, account)
}

// AccountFromAccessToken validates an access token and loads its subject.
// The HTTP middleware uses this as the bearer-authorization entry point.
func (s *AuthService) AccountFromAccessToken(ctx context.Context, accessToken string) (*Account, error) {
	claims, err := s.tokens.ValidateTyped(accessToken, TokenTypeAccess)
	if err != nil {
		return nil, err
	}

	account, err := s.store.Accounts().GetByID(ctx, claims.Subject)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrInvalidToken
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if !account.IsActive {
		return nil, ErrInactiveAccount
	}

	return account, nil
}

// Profile returns the populated authorization view for an account.
func (s *AuthService) Profile(ctx context.Context, accountID string) (*AuthorizationView, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return s.resolver.View(ctx, account)
}

// ListAccounts returns the authorization view of every account.
func (s *AuthService) ListAccounts(ctx context.Context) ([]*AuthorizationView, error) {
	accounts, err := s.store.Accounts().List(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list accounts")
	}

	views := make([]*AuthorizationView, 0, len(accounts))
	for _, account := range accounts {
		view, err := s.resolver.View(ctx, account)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateAccount applies a partial profile update. A new role-id list is
// validated for existence before it is written; a password change rehashes
// and stamps password_changed_at.
func (s *AuthService) UpdateAccount(ctx context.Context, accountID string, in UpdateAccountInput) (*AuthorizationView, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()

	if in.FullName != nil {
		account.FullName = *in.FullName
	}
	if in.Address != nil {
		account.Address = *in.Address
	}
	if in.PhoneNumber != nil {
		account.PhoneNumber = *in.PhoneNumber
	}
	if in.IsActive != nil {
		account.IsActive = *in.IsActive
	}
	if in.IsSuperuser != nil {
		account.IsSuperuser = *in.IsSuperuser
	}
	if in.RoleIDs != nil {
		if err := s.validateRoleIDs(ctx, in.RoleIDs); err != nil {
			return nil, err
		}
		account.RoleIDs = in.RoleIDs
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}
		account.PasswordHash = hash
		account.PasswordChangedAt = &now
	}

	account.UpdatedAt = now
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist account update")
	}

	return s.resolver.View(ctx, account)
}

// DeleteAccount removes the account record.
func (s *AuthService) DeleteAccount(ctx context.Context, accountID string) error {
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return err
	}
	if err := s.store.Accounts().Delete(ctx, accountID); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete account")
	}
	return nil
}

// RequestPasswordReset mints a one-shot reset token and dispatches it to the
// address. The response is identical whether or not the email matched an
// account.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	account, err := s.store.Accounts().GetByEmail(ctx, email)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return GenericResetMessage, nil
		}
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to look up email")
	}

	token, err := s.tokens.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		TokenType:        TokenTypePasswordReset,
	}, s.cfg.ResetTokenTTL)
	if err != nil {
		return "", err
	}

	if err := s.mailer.SendPasswordReset(ctx, account.Email, token); err != nil {
		s.logger.Error("password reset dispatch failed: %v", err)
	}

	return GenericResetMessage, nil
}

// ResetPassword consumes a password_reset token. A completed reset proves
// ownership, so it also clears any lockout state.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	claims, err := s.tokens.ValidateTyped(token, TokenTypePasswordReset)
	if err != nil {
		return err
	}

	account, err := s.getAccount(ctx, claims.Subject)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := s.now().UTC()
	account.PasswordHash = hash
	account.PasswordChangedAt = &now
	account.UpdatedAt = now
	s.lockout.Reset(account)

	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password reset")
	}

	s.emit(ctx, ActivityEventPasswordReset, account.ID, nil)
	return nil
}

// ChangePassword rotates the password for a logged-in account. The old
// password must verify; lockout state is untouched.
func (s *AuthService) ChangePassword(ctx context.Context, accountID, oldPassword, newPassword string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(oldPassword, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	now := s.now().UTC()
	account.PasswordHash = hash
	account.PasswordChangedAt = &now
	account.UpdatedAt = now

	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist password change")
	}
	return nil
}

// Deactivate turns off the active flag.
func (s *AuthService) Deactivate(ctx context.Context, accountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if !account.IsActive {
		return ErrAlreadyInactive
	}

	account.IsActive = false
	account.UpdatedAt = s.now().UTC()
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist deactivation")
	}

	s.emit(ctx, ActivityEventDeactivated, account.ID, nil)
	return nil
}

// Reactivate re-enables a deactivated account after a credential match. This
// path deliberately skips the lockout check that Authenticate enforces; the
// asymmetry is inherited behavior, do not unify the two without a product
// decision.
func (s *AuthService) Reactivate(ctx context.Context, username, password string) error {
	account, err := s.store.Accounts().GetByUsername(ctx, username)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return ErrInvalidCredentials
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}

	if account.IsActive {
		return ErrAlreadyActive
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	account.IsActive = true
	account.UpdatedAt = s.now().UTC()
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist reactivation")
	}

	s.emit(ctx, ActivityEventReactivated, account.ID, nil)
	return nil
}

// RequestEmailVerification mints a one-shot verification token and dispatches
// it to the account's address.
func (s *AuthService) RequestEmailVerification(ctx context.Context, accountID string) error {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if account.EmailVerifiedAt != nil {
		return ErrAlreadyVerified
	}

	token, err := s.tokens.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		TokenType:        TokenTypeEmailVerification,
	}, s.cfg.VerificationTokenTTL)
	if err != nil {
		return err
	}

	if err := s.mailer.SendEmailVerification(ctx, account.Email, token); err != nil {
		s.logger.Error("email verification dispatch failed: %v", err)
	}
	return nil
}

// VerifyEmail consumes an email_verification token and stamps the account.
// A second verification with a still-valid token fails as already verified.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.ValidateTyped(token, TokenTypeEmailVerification)
	if err != nil {
		return err
	}

	account, err := s.getAccount(ctx, claims.Subject)
	if err != nil {
		return err
	}

	if account.EmailVerifiedAt != nil {
		return ErrAlreadyVerified
	}

	now := s.now().UTC()
	account.EmailVerifiedAt = &now
	account.UpdatedAt = now
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist verification")
	}

	s.emit(ctx, ActivityEventEmailVerified, account.ID, nil)
	return nil
}

// ChangeEmail swaps the account's address after a password match. The
// verification stamp is cleared to force re-verification, and a verification
// token is dispatched to the new address.
func (s *AuthService) ChangeEmail(ctx context.Context, accountID, newEmail, password string) error {
	if err := validateEmailAddress(newEmail); err != nil {
		return err
	}

	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return err
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		return ErrInvalidCredentials
	}

	if newEmail == account.Email {
		return ErrSameEmail
	}

	if other, err := s.store.Accounts().GetByEmail(ctx, newEmail); err == nil && other.ID != account.ID {
		return ErrEmailTaken
	} else if err != nil && !goerrors.IsNotFound(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check email")
	}

	now := s.now().UTC()
	account.Email = newEmail
	account.EmailVerifiedAt = nil
	account.UpdatedAt = now
	if err := s.store.Accounts().Update(ctx, account); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to persist email change")
	}

	token, err := s.tokens.Issue(&TokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: account.ID},
		TokenType:        TokenTypeEmailVerification,
	}, s.cfg.VerificationTokenTTL)
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmailVerification(ctx, newEmail, token); err != nil {
		s.logger.Error("email verification dispatch failed: %v", err)
	}

	s.emit(ctx, ActivityEventEmailChanged, account.ID, map[string]any{"email": newEmail})
	return nil
}

func (s *AuthService) getAccount(ctx context.Context, id string) (*Account, error) {
	account, err := s.store.Accounts().GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, NewNotFoundError("account")
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load account")
	}
	return account, nil
}

// validateRoleIDs rejects lists that would introduce a dangling reference.
func (s *AuthService) validateRoleIDs(ctx context.Context, ids []string) error {
	roles, err := s.store.Roles().GetByIDs(ctx, ids)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to validate role ids")
	}

	found := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		found[role.ID] = struct{}{}
	}

	var unknown []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return NewInvalidReferenceSetError("one or more role ids do not exist", unknown)
	}
	return nil
}

// defaultRoleIDs resolves the configured default role. Absence is a warning
// condition, registration proceeds with zero roles.
func (s *AuthService) defaultRoleIDs(ctx context.Context) []string {
	if s.cfg.DefaultRoleName == "" {
		return nil
	}

	role, err := s.store.Roles().GetByName(ctx, s.cfg.DefaultRoleName)
	if err != nil {
		s.logger.Warn("default role %q not found, registering with no roles", s.cfg.DefaultRoleName)
		return nil
	}
	return []string{role.ID}
}

func (s *AuthService) emit(ctx context.Context, eventType ActivityEventType, accountID string, metadata map[string]any) {
	if metadata == nil {
		metadata = map[string]any{}
	}
	event := ActivityEvent{
		EventType:  eventType,
		AccountID:  accountID,
		Metadata:   metadata,
		OccurredAt: s.now().UTC(),
	}
	if err := s.sink.Record(ctx, event); err != nil {
		s.logger.Warn("activity sink record error: %v", err)
	}
}
