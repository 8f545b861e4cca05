package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"postflow/internal/http/middleware"
	"postflow/internal/service"
)

type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=72"`
	Name     string `json:"name" validate:"required,min=2,max=50"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type approveUserRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

type forgotPasswordRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type resetPasswordRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// bind parses the JSON body into req and validates it.
func bind(c *fiber.Ctx, v *validator.Validate, req any) error {
	if err := c.BodyParser(req); err != nil {
		return badRequest("VALIDATION_ERROR", "request body must be valid JSON")
	}
	if err := v.Struct(req); err != nil {
		return badRequest("VALIDATION_ERROR", describeValidation(err))
	}
	return nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "email":
			msgs = append(msgs, field+" must be a valid email")
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s characters", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s characters", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// Register creates an account awaiting email verification and admin approval.
//
// @Summary  Register
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body registerRequest true "account"
// @Success  201 {object} map[string]string
// @Failure  400 {object} errorPayload
// @Router   /api/auth/register [post]
func Register(svc service.AuthService, v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req registerRequest
		if err := bind(c, v, &req); err != nil {
			return err
		}
		u, err := svc.Register(c.UserContext(), service.RegisterInput{Email: req.Email, Password: req.Password, Name: req.Name})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"message": "Registration successful. Check your email to verify your account.",
			"userId":  u.ID,
		})
	}
}

// Login exchanges credentials for a bearer token.
//
// @Summary  Login
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body loginRequest true "credentials"
// @Success  200 {object} service.LoginResult
// @Failure  401 {object} errorPayload
// @Router   /api/auth/login [post]
func Login(svc service.AuthService, v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req loginRequest
		if err := bind(c, v, &req); err != nil {
			return err
		}
		res, err := svc.Login(c.UserContext(), req.Email, req.Password)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// Me returns the authenticated user.
//
// @Summary   Current user
// @Tags      auth
// @Produce   json
// @Security  BearerAuth
// @Success   200 {object} map[string]model.User
// @Failure   401 {object} errorPayload
// @Router    /api/auth/me [get]
func Me(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		u, err := svc.Me(c.UserContext(), middleware.ClaimsFrom(c).UserID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"user": u})
	}
}

// ApproveUser lets an admin approve an account.
//
// @Summary   Approve user
// @Tags      auth
// @Accept    json
// @Produce   json
// @Security  BearerAuth
// @Param     body body approveUserRequest true "user"
// @Success   200 {object} map[string]any
// @Failure   403 {object} errorPayload
// @Failure   404 {object} errorPayload
// @Router    /api/auth/approve [post]
func ApproveUser(svc service.AuthService, v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req approveUserRequest
		if err := bind(c, v, &req); err != nil {
			return err
		}
		u, err := svc.ApproveUser(c.UserContext(), req.UserID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"message": "User approved", "user": u})
	}
}

// VerifyEmail confirms the address a verification link was sent to.
//
// @Summary  Verify email
// @Tags     auth
// @Produce  json
// @Param    token query string true "verification token"
// @Success  200 {object} messageResponse
// @Failure  400 {object} errorPayload
// @Router   /api/auth/verify-email [get]
func VerifyEmail(svc service.AuthService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := svc.VerifyEmail(c.UserContext(), c.Query("token")); err != nil {
			return err
		}
		return c.JSON(messageResponse{Message: "Email verified. Your account is awaiting admin approval."})
	}
}

// ForgotPassword emails a reset token. The response does not reveal whether
// the email is registered.
//
// @Summary  Request password reset
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body forgotPasswordRequest true "email"
// @Success  200 {object} messageResponse
// @Router   /api/auth/forgot-password [post]
func ForgotPassword(svc service.AuthService, v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req forgotPasswordRequest
		if err := bind(c, v, &req); err != nil {
			return err
		}
		if err := svc.RequestPasswordReset(c.UserContext(), req.Email); err != nil {
			return err
		}
		return c.JSON(messageResponse{Message: "If the email is registered, a reset link has been sent."})
	}
}

// ResetPassword sets a new password using a reset token.
//
// @Summary  Reset password
// @Tags     auth
// @Accept   json
// @Produce  json
// @Param    body body resetPasswordRequest true "token and password"
// @Success  200 {object} messageResponse
// @Failure  400 {object} errorPayload
// @Router   /api/auth/reset-password [post]
func ResetPassword(svc service.AuthService, v *validator.Validate) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req resetPasswordRequest
		if err := bind(c, v, &req); err != nil {
			return err
		}
		if err := svc.ResetPassword(c.UserContext(), req.Token, req.Password); err != nil {
			return err
		}
		return c.JSON(messageResponse{Message: "Password updated."})
	}
}
