package email

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/davemarrero/learnhub-backend/pkg/config"
	"github.com/davemarrero/learnhub-backend/pkg/logger"
)

// Sender is the outbound email surface services depend on.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Message is one outbound transactional email.
type Message struct {
	ToEmail   string
	ToName    string
	Subject   string
	PlainBody string
	HTMLBody  string
}

// Client delivers transactional email through SendGrid.
type Client struct {
	sg   *sendgrid.Client
	from *mail.Email
	logg *logger.Logger
}

// NewClient validates the SendGrid settings and builds the sender.
func NewClient(cfg config.SendgridConfig, logg *logger.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("sendgrid api key is required")
	}
	if strings.TrimSpace(cfg.FromEmail) == "" {
		return nil, errors.New("sendgrid from email is required")
	}

	return &Client{
		sg:   sendgrid.NewSendClient(cfg.APIKey),
		from: mail.NewEmail(cfg.FromName, cfg.FromEmail),
		logg: logg,
	}, nil
}

// Send delivers one message; a non-2xx SendGrid response is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if c == nil || c.sg == nil {
		return errors.New("email client not initialized")
	}
	if strings.TrimSpace(msg.ToEmail) == "" {
		return errors.New("recipient email is required")
	}

	htmlBody := msg.HTMLBody
	if htmlBody == "" {
		htmlBody = msg.PlainBody
	}

	to := mail.NewEmail(msg.ToName, msg.ToEmail)
	message := mail.NewSingleEmail(c.from, msg.Subject, to, msg.PlainBody, htmlBody)

	resp, err := c.sg.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("sendgrid send returned %d: %s", resp.StatusCode, strings.TrimSpace(resp.Body))
	}

	if c.logg != nil {
		c.logg.Info(c.logg.WithField(ctx, "to", msg.ToEmail), "email sent")
	}
	return nil
}
