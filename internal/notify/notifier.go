package notify

import (
	"context"
	"errors"
	"time"

	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/retry"
)

// Notifier renders and sends the application's emails, retrying each send
// under its policy.
type Notifier struct {
	mailer     Mailer
	policy     retry.Policy
	log        *logger.Logger
	baseURL    string
	adminEmail string
}

func NewNotifier(m Mailer, policy retry.Policy, baseURL, adminEmail string, log *logger.Logger) *Notifier {
	return &Notifier{mailer: m, policy: policy, log: log.With("notify"), baseURL: baseURL, adminEmail: adminEmail}
}

func (n *Notifier) send(ctx context.Context, kind string, msg Message) error {
	_, err := retry.Do(ctx, n.policy, func(ctx context.Context) (struct{}, error) {
		err := n.mailer.Send(ctx, msg)
		if errors.Is(err, ErrNoRecipient) {
			return struct{}{}, retry.Permanent(err)
		}
		return struct{}{}, err
	}, func(attempt int, err error, wait time.Duration) {
		n.log.Warn("mail_retry", err, map[string]any{"kind": kind, "attempt": attempt, "wait_ms": wait.Milliseconds()})
	})
	return err
}

func (n *Notifier) Verification(ctx context.Context, u *model.User, token string) error {
	return n.send(ctx, "verification", VerificationMessage(u, n.baseURL, token))
}

// ApprovalRequired is a no-op when no admin address is configured.
func (n *Notifier) ApprovalRequired(ctx context.Context, u *model.User) error {
	if n.adminEmail == "" {
		return nil
	}
	return n.send(ctx, "approval_required", ApprovalRequiredMessage(n.adminEmail, u))
}

func (n *Notifier) PasswordReset(ctx context.Context, u *model.User, token string) error {
	return n.send(ctx, "password_reset", PasswordResetMessage(u, n.baseURL, token))
}

func (n *Notifier) PostStatus(ctx context.Context, owner *model.User, p *model.Post) error {
	return n.send(ctx, "post_status", PostStatusMessage(owner, p))
}
