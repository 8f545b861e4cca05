package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"postflow/internal/auth"
	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/repository"
)

const (
	MaxLoginAttempts = 5
	LockDuration     = time.Hour
	VerificationTTL  = 24 * time.Hour
	ResetTTL         = time.Hour
)

// RegisterInput is a new account request. Fields are validated by the transport layer.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// LoginResult carries the access token and the authenticated user.
type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// AuthService manages accounts: registration, email verification, admin
// approval, login with lockout and password reset.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Me(ctx context.Context, userID string) (*model.User, error)
	ApproveUser(ctx context.Context, userID string) (*model.User, error)
	VerifyEmail(ctx context.Context, token string) error
	// RequestPasswordReset succeeds silently for unknown emails.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	ListUsers(ctx context.Context, limit, offset int) (*UserListResult, error)
	SetRole(ctx context.Context, userID string, role model.Role) (*model.User, error)
}

type authService struct {
	users      repository.UserRepository
	tokens     *auth.TokenManager
	notify     Notifier
	bcryptCost int
	log        *logger.Logger
	now        func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *auth.TokenManager, n Notifier, bcryptCost int, log *logger.Logger) AuthService {
	return &authService{users: users, tokens: tokens, notify: n, bcryptCost: bcryptCost, log: log.With("auth"), now: time.Now}
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := auth.CheckStrength(in.Password); err != nil {
		return nil, err
	}
	hash, err := auth.HashPassword(in.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	token, err := auth.RandomToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	expires := now.Add(VerificationTTL)
	u, err := s.users.Create(ctx, &model.User{
		ID:                  uuid.NewString(),
		Email:               normalizeEmail(in.Email),
		PasswordHash:        hash,
		Name:                strings.TrimSpace(in.Name),
		Role:                model.RoleUser,
		VerificationToken:   &token,
		VerificationExpires: &expires,
		CreatedAt:           now,
		UpdatedAt:           now,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user_registered", map[string]any{"user_id": u.ID})
	if s.notify != nil {
		ctx := context.WithoutCancel(ctx)
		if err := s.notify.Verification(ctx, u, token); err != nil {
			s.log.Error("verification_email_failed", err, map[string]any{"user_id": u.ID})
		}
		if err := s.notify.ApprovalRequired(ctx, u); err != nil {
			s.log.Error("admin_notification_failed", err, map[string]any{"user_id": u.ID})
		}
	}
	return u, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	now := s.now().UTC()
	if u.IsLocked(now) {
		return nil, ErrAccountLocked
	}
	attempts := u.LoginAttempts
	if u.LockUntil != nil {
		attempts = 0
	}

	if !auth.CheckPassword(u.PasswordHash, password) {
		attempts++
		var lock *time.Time
		if attempts >= MaxLoginAttempts {
			t := now.Add(LockDuration)
			lock = &t
			s.log.Warn("account_locked", nil, map[string]any{"user_id": u.ID})
		}
		if err := s.users.RecordLoginFailure(ctx, u.ID, attempts, lock); err != nil {
			return nil, fmt.Errorf("record login failure: %w", err)
		}
		return nil, ErrInvalidCredentials
	}

	if !u.EmailVerified {
		return nil, ErrEmailNotVerified
	}
	if !u.Approved {
		return nil, ErrAccountNotApproved
	}

	if err := s.users.RecordLoginSuccess(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	u.LoginAttempts = 0
	u.LockUntil = nil
	u.LastLogin = &now

	token, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, User: u}, nil
}

func (s *authService) Me(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "find user")
	}
	return u, nil
}

func (s *authService) ApproveUser(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	u, err := s.users.SetApproved(ctx, userID, true)
	if err != nil {
		return nil, notFound(err, "approve user")
	}
	s.log.Info("user_approved", map[string]any{"user_id": u.ID})
	return u, nil
}

func (s *authService) VerifyEmail(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	u, err := s.users.FindByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("find user: %w", err)
	}
	if u.VerificationExpires == nil || !u.VerificationExpires.After(s.now()) {
		return ErrInvalidToken
	}
	if err := s.users.MarkEmailVerified(ctx, u.ID); err != nil {
		return notFound(err, "verify email")
	}
	return nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	u, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("find user: %w", err)
	}
	token, err := auth.RandomToken()
	if err != nil {
		return err
	}
	if err := s.users.SetResetToken(ctx, u.ID, token, s.now().UTC().Add(ResetTTL)); err != nil {
		return fmt.Errorf("store reset token: %w", err)
	}
	if s.notify == nil {
		return nil
	}
	if err := s.notify.PasswordReset(context.WithoutCancel(ctx), u, token); err != nil {
		s.log.Error("reset_email_failed", err, map[string]any{"user_id": u.ID})
		return fmt.Errorf("%w: %v", ErrEmailDelivery, err)
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	if token == "" {
		return ErrInvalidToken
	}
	if err := auth.CheckStrength(newPassword); err != nil {
		return err
	}
	u, err := s.users.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInvalidToken
		}
		return fmt.Errorf("find user: %w", err)
	}
	if u.ResetExpires == nil || !u.ResetExpires.After(s.now()) {
		return ErrInvalidToken
	}
	hash, err := auth.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return notFound(err, "update password")
	}
	s.log.Info("password_reset", map[string]any{"user_id": u.ID})
	return nil
}

func (s *authService) ListUsers(ctx context.Context, limit, offset int) (*UserListResult, error) {
	limit, offset = page(limit, offset)
	res, err := s.users.List(ctx, repository.PageQuery{Limit: limit, Offset: offset})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &UserListResult{Items: res.Items, Total: res.Total}, nil
}

func (s *authService) SetRole(ctx context.Context, userID string, role model.Role) (*model.User, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	if role != model.RoleUser && role != model.RoleAdmin {
		return nil, invalid("role", fmt.Sprintf("unknown role %q", role))
	}
	u, err := s.users.SetRole(ctx, userID, role)
	if err != nil {
		return nil, notFound(err, "set role")
	}
	s.log.Info("user_role_changed", map[string]any{"user_id": u.ID, "role": string(role)})
	return u, nil
}
