package service

import (
	"errors"

	"postflow/internal/auth"
)

var (
	ErrIDRequired = errors.New("id is required")
	ErrNotFound   = errors.New("not found")
	ErrForbidden  = errors.New("forbidden")

	ErrValidation           = errors.New("validation failed")
	ErrInvalidPlatform      = errors.New("invalid platform")
	ErrFileRequired         = errors.New("file is required")
	ErrFileTooLarge         = errors.New("File too large")
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	ErrUserNotApproved      = errors.New("user not approved")

	ErrGenerationFailed = errors.New("caption generation failed")
	ErrStorageFailed    = errors.New("file storage failed")
	ErrStoreFailed      = errors.New("post store failed")

	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFullyApproved  = errors.New("post not fully approved")

	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = auth.ErrWeakPassword
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailNotVerified   = errors.New("Email not verified")
	ErrAccountNotApproved = errors.New("account not approved")
	ErrAccountLocked      = errors.New("account locked")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrEmailDelivery      = errors.New("email delivery failed")
)

// ValidationError reports a rejected input field. It matches ErrValidation.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Msg
	}
	return e.Field + ": " + e.Msg
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, msg string) error { return &ValidationError{Field: field, Msg: msg} }
