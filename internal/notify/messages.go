package notify

import (
	"fmt"
	"html"
	"net/url"
	"strings"

	"postflow/internal/model"
)

func link(baseURL, path, token string) string {
	return strings.TrimRight(baseURL, "/") + path + "?token=" + url.QueryEscape(token)
}

// VerificationMessage asks a new user to confirm their address.
func VerificationMessage(u *model.User, baseURL, token string) Message {
	href := link(baseURL, "/api/auth/verify-email", token)
	return Message{
		To:      []string{u.Email},
		Subject: "Verify your email address",
		Text: fmt.Sprintf("Hi %s,\n\nConfirm your email address by opening the link below. It expires in 24 hours.\n\n%s\n",
			u.Name, href),
		HTML: fmt.Sprintf(`<p>Hi %s,</p><p>Confirm your email address by opening the link below. It expires in 24 hours.</p><p><a href="%s">Verify email</a></p>`,
			html.EscapeString(u.Name), html.EscapeString(href)),
	}
}

// ApprovalRequiredMessage tells the admin a new account is waiting.
func ApprovalRequiredMessage(adminEmail string, u *model.User) Message {
	return Message{
		To:      []string{adminEmail},
		Subject: "New user awaiting approval",
		Text:    fmt.Sprintf("%s <%s> registered and is waiting for approval.\nUser ID: %s\n", u.Name, u.Email, u.ID),
	}
}

// PasswordResetMessage carries a one hour reset link.
func PasswordResetMessage(u *model.User, baseURL, token string) Message {
	href := link(baseURL, "/api/auth/reset-password", token)
	return Message{
		To:      []string{u.Email},
		Subject: "Reset your password",
		Text: fmt.Sprintf("Hi %s,\n\nUse the token below to reset your password. It expires in 1 hour.\n\nToken: %s\n%s\n\nIf you did not ask for this, ignore this email.\n",
			u.Name, token, href),
	}
}

var statusLabels = map[model.PostStatus]string{
	model.StatusTeamApproved:   "approved by the team",
	model.StatusClientApproved: "approved by the client",
	model.StatusPublished:      "published",
	model.StatusRejected:       "rejected",
}

// PostStatusMessage reports a post transition to its owner.
func PostStatusMessage(owner *model.User, p *model.Post) Message {
	label, ok := statusLabels[p.Status]
	if !ok {
		label = string(p.Status)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYour %s post was %s.\n\n", owner.Name, p.Platform, label)
	fmt.Fprintf(&b, "Platform: %s\n", p.Platform)
	fmt.Fprintf(&b, "Status: %s\n", p.Status)
	fmt.Fprintf(&b, "Caption: %s\n", p.Caption)
	if len(p.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n", strings.Join(p.Tags, " "))
	}

	return Message{
		To:      []string{owner.Email},
		Subject: fmt.Sprintf("Your %s post was %s", p.Platform, label),
		Text:    b.String(),
	}
}
