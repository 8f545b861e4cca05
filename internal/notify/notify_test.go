package notify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"postflow/internal/config"
	"postflow/internal/logger"
	"postflow/internal/model"
	"postflow/internal/notify"
	"postflow/internal/notify/mocks"
	"postflow/internal/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	owner = &model.User{ID: "u1", Email: "ana@example.com", Name: "Ana"}
	fast  = retry.Policy{Attempts: 3, Step: time.Millisecond}
)

func TestPostStatusMessage(t *testing.T) {
	p := &model.Post{
		Platform: model.PlatformTwitter,
		Status:   model.StatusTeamApproved,
		Caption:  "Launch day",
		Tags:     model.Tags{"#launch", "#go"},
	}
	msg := notify.PostStatusMessage(owner, p)

	assert.Equal(t, []string{"ana@example.com"}, msg.To)
	assert.Equal(t, "Your Twitter post was approved by the team", msg.Subject)
	assert.Contains(t, msg.Text, "Platform: Twitter")
	assert.Contains(t, msg.Text, "Status: team_approved")
	assert.Contains(t, msg.Text, "Caption: Launch day")
	assert.Contains(t, msg.Text, "Tags: #launch #go")
}

func TestVerificationMessage(t *testing.T) {
	msg := notify.VerificationMessage(&model.User{Email: "a@b.c", Name: "<Bo>"}, "https://app.example/", "abc")
	assert.Contains(t, msg.Text, "https://app.example/api/auth/verify-email?token=abc")
	assert.Contains(t, msg.HTML, "&lt;Bo&gt;")
}

func TestNotifier_RetriesThenSucceeds(t *testing.T) {
	m := new(mocks.MockMailer)
	m.On("Send", mock.Anything, mock.Anything).Return(errors.New("421 try later")).Twice()
	m.On("Send", mock.Anything, mock.Anything).Return(nil).Once()

	n := notify.NewNotifier(m, fast, "http://x", "", logger.Nop())
	require.NoError(t, n.PasswordReset(context.Background(), owner, "tok"))
	m.AssertNumberOfCalls(t, "Send", 3)
}

func TestNotifier_GivesUp(t *testing.T) {
	m := new(mocks.MockMailer)
	m.On("Send", mock.Anything, mock.Anything).Return(errors.New("dial tcp: refused"))

	var buf bytes.Buffer
	n := notify.NewNotifier(m, fast, "http://x", "", logger.New(&buf, time.UTC))
	err := n.PostStatus(context.Background(), owner, &model.Post{Status: model.StatusPublished})
	assert.EqualError(t, err, "dial tcp: refused")
	m.AssertNumberOfCalls(t, "Send", 3)
	assert.Contains(t, buf.String(), `"event":"mail_retry"`)
}

func TestNotifier_ApprovalRequiredWithoutAdmin(t *testing.T) {
	m := new(mocks.MockMailer)
	n := notify.NewNotifier(m, fast, "http://x", "", logger.Nop())
	require.NoError(t, n.ApprovalRequired(context.Background(), owner))
	m.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestNew_FallsBackToLog(t *testing.T) {
	var buf bytes.Buffer
	m, err := notify.New(config.SMTPConfig{}, logger.New(&buf, time.UTC))
	require.NoError(t, err)

	require.NoError(t, m.Send(context.Background(), notify.Message{To: []string{"a@b.c"}, Subject: "hi"}))
	assert.Contains(t, buf.String(), `"subject":"hi"`)
	assert.ErrorIs(t, m.Send(context.Background(), notify.Message{}), notify.ErrNoRecipient)
}
