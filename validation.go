package warden

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/nyaruka/phonenumbers"
)

var errInvalidPhoneNumber = errors.New("must be a valid phone number")

// RegisterInput is the payload for AuthService.Register.
type RegisterInput struct {
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Password    string   `json:"password"`
	FullName    string   `json:"full_name,omitempty"`
	Address     string   `json:"address,omitempty"`
	PhoneNumber string   `json:"phone_number,omitempty"`
	RoleIDs     []string `json:"role_ids,omitempty"`
}

// Validate checks field shapes; uniqueness and reference checks happen later
// against the store.
func (r RegisterInput) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(3, 100)),
		validation.Field(&r.Email, validation.Required, validation.Length(6, 100), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(8, 100)),
		validation.Field(&r.FullName, validation.Length(0, 200)),
		validation.Field(&r.PhoneNumber, validation.By(validatePhoneNumber)),
	))
}

// UpdateAccountInput carries the optional profile mutations. Nil pointers are
// left untouched.
type UpdateAccountInput struct {
	FullName    *string   `json:"full_name,omitempty"`
	Address     *string   `json:"address,omitempty"`
	PhoneNumber *string   `json:"phone_number,omitempty"`
	Password    *string   `json:"password,omitempty"`
	RoleIDs     []string  `json:"role_ids,omitempty"`
	IsActive    *bool     `json:"is_active,omitempty"`
	IsSuperuser *bool     `json:"is_superuser,omitempty"`
}

// Validate checks the fields that are present.
func (u UpdateAccountInput) Validate() error {
	if u.Password != nil {
		if err := validation.Validate(*u.Password, validation.Required, validation.Length(8, 100)); err != nil {
			return wrapValidation(err)
		}
	}
	if u.PhoneNumber != nil && *u.PhoneNumber != "" {
		if err := validatePhoneNumber(*u.PhoneNumber); err != nil {
			return wrapValidation(err)
		}
	}
	return nil
}

// RoleInput is the payload for role create and update.
type RoleInput struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	PermissionIDs []string `json:"permission_ids"`
}

// Validate checks field shapes for role payloads.
func (r RoleInput) Validate() error {
	return wrapValidation(validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&r.Description, validation.Length(0, 500)),
	))
}

// PermissionInput is the payload for permission create and update.
type PermissionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Validate checks field shapes for permission payloads. Names follow the
// resource:action convention but any non-empty string is accepted, the
// vocabulary is data-defined.
func (p PermissionInput) Validate() error {
	return wrapValidation(validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(2, 100)),
		validation.Field(&p.Description, validation.Length(0, 500)),
	))
}

// validateEmailAddress applies the same shape rule Register enforces, for
// flows that accept an email outside a payload struct.
func validateEmailAddress(email string) error {
	return wrapValidation(validation.Validate(email,
		validation.Required, validation.Length(6, 100), is.Email))
}

func validatePhoneNumber(value any) error {
	raw, _ := value.(string)
	if raw == "" {
		return nil
	}

	parsed, err := phonenumbers.Parse(raw, "US")
	if err != nil {
		return err
	}
	if !phonenumbers.IsValidNumber(parsed) {
		return errInvalidPhoneNumber
	}
	return nil
}

func wrapValidation(err error) error {
	if err == nil {
		return nil
	}
	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid payload").
		WithCode(goerrors.CodeBadRequest)
}
