package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"postflow/internal/auth"
	"postflow/internal/http/middleware"
	"postflow/internal/service"
)

// errorPayload defines the standardized error response body. Code repeats
// error.code at the top level for clients that read {error, code}.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Code      string        `json:"code"`
	Error     errorEnvelope `json:"error"`
}

func newErrorPayload(c *fiber.Ctx, code, message string) errorPayload {
	return errorPayload{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Error:     errorEnvelope{Code: code, Message: message},
	}
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// apiError is an error raised by a handler itself, before any service call.
type apiError struct {
	status  int
	code    string
	message string
}

func (e *apiError) Error() string { return e.message }

func badRequest(code, message string) error {
	return &apiError{status: fiber.StatusBadRequest, code: code, message: message}
}

// writeError writes a standardized JSON error response.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	return c.Status(status).JSON(newErrorPayload(c, code, message))
}

type mapping struct {
	err     error
	status  int
	code    string
	message string // empty means err.Error()
}

// mappings is checked in order with errors.Is.
var mappings = []mapping{
	{service.ErrFileRequired, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required"},
	{service.ErrFileTooLarge, fiber.StatusBadRequest, "FILE_TOO_LARGE", "File too large"},
	{service.ErrUnsupportedMediaType, fiber.StatusBadRequest, "UNSUPPORTED_MEDIA_TYPE", "only JPEG, PNG and GIF images are allowed"},
	{service.ErrInvalidPlatform, fiber.StatusBadRequest, "INVALID_PLATFORM", "platform must be one of LinkedIn, Twitter, Facebook"},
	{service.ErrWeakPassword, fiber.StatusBadRequest, "WEAK_PASSWORD", ""},
	{service.ErrEmailTaken, fiber.StatusBadRequest, "EMAIL_TAKEN", "email already registered"},
	{service.ErrInvalidToken, fiber.StatusBadRequest, "INVALID_TOKEN", "invalid or expired token"},
	{service.ErrIDRequired, fiber.StatusBadRequest, "VALIDATION_ERROR", "id is required"},
	{service.ErrValidation, fiber.StatusBadRequest, "VALIDATION_ERROR", ""},

	{auth.ErrTokenMissing, fiber.StatusUnauthorized, "TOKEN_MISSING", "authentication token is required"},
	{auth.ErrTokenExpired, fiber.StatusUnauthorized, "TOKEN_EXPIRED", "authentication token has expired"},
	{auth.ErrTokenInvalid, fiber.StatusUnauthorized, "TOKEN_INVALID", "authentication token is invalid"},
	{service.ErrInvalidCredentials, fiber.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid email or password"},
	{service.ErrEmailNotVerified, fiber.StatusUnauthorized, "EMAIL_NOT_VERIFIED", "Email not verified"},
	{service.ErrAccountNotApproved, fiber.StatusUnauthorized, "ACCOUNT_NOT_APPROVED", "account is awaiting admin approval"},
	{service.ErrAccountLocked, fiber.StatusUnauthorized, "ACCOUNT_LOCKED", "account temporarily locked after too many failed logins"},

	{service.ErrUserNotApproved, fiber.StatusForbidden, "USER_NOT_APPROVED", "user is not approved to upload"},
	{service.ErrForbidden, fiber.StatusForbidden, "FORBIDDEN", "not allowed to modify this resource"},

	{service.ErrNotFound, fiber.StatusNotFound, "NOT_FOUND", "resource not found"},

	{service.ErrNotFullyApproved, fiber.StatusConflict, "NOT_FULLY_APPROVED", "post not fully approved"},
	{service.ErrInvalidTransition, fiber.StatusConflict, "INVALID_TRANSITION", "post status does not allow this action"},

	{service.ErrGenerationFailed, fiber.StatusInternalServerError, "UPSTREAM_LLM", "caption generation failed"},
	{service.ErrStorageFailed, fiber.StatusInternalServerError, "UPSTREAM_STORAGE", "file storage failed"},
	{service.ErrStoreFailed, fiber.StatusInternalServerError, "UPSTREAM_DB", "saving the post failed"},
	{service.ErrEmailDelivery, fiber.StatusInternalServerError, "UPSTREAM_EMAIL", "email could not be sent"},
}

// mapError translates err into an HTTP status, error code and safe message.
func mapError(err error) (int, string, string) {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status, ae.code, ae.message
	}
	for _, m := range mappings {
		if errors.Is(err, m.err) {
			msg := m.message
			if msg == "" {
				msg = validationMessage(err)
			}
			return m.status, m.code, msg
		}
	}

	var fe *fiber.Error
	if errors.As(err, &fe) {
		switch fe.Code {
		case fiber.StatusBadRequest:
			return fe.Code, "BAD_REQUEST", "bad request"
		case fiber.StatusForbidden:
			return fe.Code, "FORBIDDEN", fe.Message
		case fiber.StatusNotFound:
			return fe.Code, "NOT_FOUND", "resource not found"
		case fiber.StatusMethodNotAllowed:
			return fe.Code, "METHOD_NOT_ALLOWED", "method not allowed"
		case fiber.StatusRequestEntityTooLarge:
			return fiber.StatusBadRequest, "FILE_TOO_LARGE", "File too large"
		case fiber.StatusTooManyRequests:
			return fe.Code, "RATE_LIMITED", "too many requests, try again later"
		case fiber.StatusServiceUnavailable:
			return fe.Code, "SERVICE_UNAVAILABLE", "dependency unavailable"
		}
	}
	return fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
}

// validationMessage returns the field level message of a validation error.
func validationMessage(err error) string {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return ve.Error()
	}
	return err.Error()
}

// ErrorHandler returns the Fiber global error handler. In development the
// internal error string is added as error.detail.
func ErrorHandler(dev bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status, code, message := mapError(err)
		res := newErrorPayload(c, code, message)
		if dev {
			res.Error.Detail = err.Error()
		}
		return c.Status(status).JSON(res)
	}
}
