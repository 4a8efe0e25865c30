package warden

import (
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeDuplicateUsername   = "DUPLICATE_USERNAME"
	textCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	textCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	textCodeAccountLocked       = "ACCOUNT_LOCKED"
	textCodeInactiveAccount     = "INACTIVE_ACCOUNT"
	textCodeInvalidToken        = "INVALID_TOKEN"
	textCodeNotFound            = "NOT_FOUND"
	textCodeConflict            = "CONFLICT"
	textCodeAlreadyVerified     = "ALREADY_VERIFIED"
	textCodeAlreadyActive       = "ALREADY_ACTIVE"
	textCodeAlreadyInactive     = "ALREADY_INACTIVE"
	textCodeSameEmail           = "SAME_EMAIL"
	textCodeEmailTaken          = "EMAIL_TAKEN"
	textCodeInvalidReferenceSet = "INVALID_REFERENCE_SET"
	textCodeForbidden           = "FORBIDDEN"
)

// ErrDuplicateUsername is returned when registering an already taken username.
var ErrDuplicateUsername = goerrors.New("username already registered", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateUsername).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateEmail is returned when registering an already taken email.
var ErrDuplicateEmail = goerrors.New("email already registered", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials covers unknown identifiers and password mismatches so
// callers cannot tell which half failed.
var ErrInvalidCredentials = goerrors.New("invalid username or password", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrInactiveAccount is returned when the account exists but is deactivated.
var ErrInactiveAccount = goerrors.New("account is not active", goerrors.CategoryAuth).
	WithTextCode(textCodeInactiveAccount).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidToken collapses malformed, expired, wrong-type, and bad-signature
// tokens into one user-facing failure so the response never leaks which check
// tripped.
var ErrInvalidToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidToken).
	WithCode(goerrors.CodeUnauthorized)

// ErrAlreadyVerified is returned when re-verifying a verified email.
var ErrAlreadyVerified = goerrors.New("email already verified", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyVerified).
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyActive is returned when reactivating an active account.
var ErrAlreadyActive = goerrors.New("account is already active", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyActive).
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyInactive is returned when deactivating an inactive account.
var ErrAlreadyInactive = goerrors.New("account is already deactivated", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyInactive).
	WithCode(goerrors.CodeBadRequest)

// ErrSameEmail is returned when an email change targets the current address.
var ErrSameEmail = goerrors.New("new email matches the current email", goerrors.CategoryBadInput).
	WithTextCode(textCodeSameEmail).
	WithCode(goerrors.CodeBadRequest)

// ErrEmailTaken is returned when an email change targets an address owned by
// another account.
var ErrEmailTaken = goerrors.New("email already in use by another account", goerrors.CategoryConflict).
	WithTextCode(textCodeEmailTaken).
	WithCode(goerrors.CodeBadRequest)

// ErrForbidden is the authorization gate denial.
var ErrForbidden = goerrors.New("missing required permission", goerrors.CategoryAuthz).
	WithTextCode(textCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// NewForbiddenError reports a gate denial, naming the missing permission in
// the metadata.
func NewForbiddenError(permission string) *goerrors.Error {
	return goerrors.New("missing required permission", goerrors.CategoryAuthz).
		WithTextCode(textCodeForbidden).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{"permission": permission})
}

// NewNotFoundError reports a missing account, role, or permission.
func NewNotFoundError(entity string) *goerrors.Error {
	return goerrors.New(entity+" not found", goerrors.CategoryNotFound).
		WithTextCode(textCodeNotFound).
		WithCode(goerrors.CodeNotFound)
}

// NewConflictError reports a delete blocked by a live reference.
func NewConflictError(msg string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryConflict).
		WithTextCode(textCodeConflict).
		WithCode(goerrors.CodeConflict)
}

// NewInvalidReferenceSetError reports unknown ids in a role or permission
// assignment.
func NewInvalidReferenceSetError(msg string, unknown []string) *goerrors.Error {
	return goerrors.New(msg, goerrors.CategoryBadInput).
		WithTextCode(textCodeInvalidReferenceSet).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"unknown_ids": unknown})
}

// NewAccountLockedError reports a login rejected while the lockout window is
// open. The remaining duration is surfaced in the message and metadata.
func NewAccountLockedError(remaining time.Duration) *goerrors.Error {
	seconds := int(remaining.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	return goerrors.New(
		fmt.Sprintf("account locked, retry in %d seconds", seconds),
		goerrors.CategoryAuth,
	).
		WithTextCode(textCodeAccountLocked).
		WithCode(goerrors.CodeForbidden).
		WithMetadata(map[string]any{"retry_after_seconds": seconds})
}

func hasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr.TextCode == code
	}
	return false
}

// IsAccountLocked reports whether err is a lockout rejection.
func IsAccountLocked(err error) bool {
	return hasTextCode(err, textCodeAccountLocked)
}

// IsInvalidCredentials reports whether err is a credential mismatch.
func IsInvalidCredentials(err error) bool {
	return hasTextCode(err, textCodeInvalidCredentials)
}

// IsInvalidToken reports whether err is a token rejection of any flavor.
func IsInvalidToken(err error) bool {
	return hasTextCode(err, textCodeInvalidToken)
}

// IsForbidden reports whether err is an authorization gate denial.
func IsForbidden(err error) bool {
	return hasTextCode(err, textCodeForbidden)
}

// IsConflict reports whether err is a reference-integrity conflict.
func IsConflict(err error) bool {
	return hasTextCode(err, textCodeConflict)
}

// IsInvalidReferenceSet reports whether err flags unknown ids in an
// assignment.
func IsInvalidReferenceSet(err error) bool {
	return hasTextCode(err, textCodeInvalidReferenceSet)
}
