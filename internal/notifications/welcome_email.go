package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/davemarrero/learnhub-backend/pkg/email"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
	"github.com/davemarrero/learnhub-backend/pkg/queue"
)

// WelcomeEmailHandler sends the post-registration email from the
// maintenance queue. A missing user row means the account was deleted
// between registration and delivery, so the task is dropped.
type WelcomeEmailHandler struct {
	users  userGetter
	mailer email.Sender
	logg   *logger.Logger
}

func NewWelcomeEmailHandler(users userGetter, mailer email.Sender, logg *logger.Logger) (*WelcomeEmailHandler, error) {
	if users == nil {
		return nil, fmt.Errorf("user getter required")
	}
	if mailer == nil {
		return nil, fmt.Errorf("mailer required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &WelcomeEmailHandler{users: users, mailer: mailer, logg: logg}, nil
}

// Register attaches the handler to the worker mux.
func (h *WelcomeEmailHandler) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(queue.TypeWelcomeEmail, h.HandleWelcomeEmail)
}

func (h *WelcomeEmailHandler) HandleWelcomeEmail(ctx context.Context, task *asynq.Task) error {
	var payload queue.WelcomeEmailPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal welcome email payload: %w", asynq.SkipRetry)
	}

	ctx = h.logg.WithUserID(ctx, payload.UserID.String())

	user, err := h.users.GetByID(ctx, payload.UserID)
	if err != nil {
		h.logg.Warn(ctx, "welcome email skipped, user not found")
		return nil
	}

	name := user.FirstName
	if name == "" {
		name = user.Email
	}
	msg := email.Message{
		ToEmail:   user.Email,
		ToName:    user.FirstName + " " + user.LastName,
		Subject:   "Welcome to LearnHub",
		PlainBody: fmt.Sprintf("Hi %s,\n\nYour LearnHub account is ready. Browse the catalog, enroll in a course, and pick up where you left off on any device.\n\nHappy learning,\nThe LearnHub Team", name),
		HTMLBody:  fmt.Sprintf("<p>Hi %s,</p><p>Your LearnHub account is ready. Browse the catalog, enroll in a course, and pick up where you left off on any device.</p><p>Happy learning,<br>The LearnHub Team</p>", name),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return fmt.Errorf("send welcome email: %w", err)
	}

	h.logg.Info(ctx, "welcome email sent")
	return nil
}
