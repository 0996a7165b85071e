package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Config contains credentials for the SendGrid mail channel.
type Config struct {
	APIKey    string
	FromName  string
	FromEmail string
}

// Service delivers transactional emails through SendGrid.
type Service struct {
	client *sendgrid.Client
	from   *sgmail.Email
	logger zerolog.Logger
}

// New constructs a SendGrid mail service.
func New(cfg Config, logger zerolog.Logger) (*Service, error) {
	if cfg.APIKey == "" || cfg.FromEmail == "" {
		return nil, fmt.Errorf("sendgrid api key and sender address must be provided")
	}

	return &Service{
		client: sendgrid.NewSendClient(cfg.APIKey),
		from:   sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		logger: logger.With().Str("component", "sendgrid").Logger(),
	}, nil
}

// Send delivers one plain-text email to a single recipient.
func (s *Service) Send(ctx context.Context, to, subject, body string) error {
	message := sgmail.NewSingleEmail(s.from, subject, sgmail.NewEmail("", to), body, "")

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid rejected email with status %d", response.StatusCode)
	}

	s.logger.Debug().Str("to", to).Str("subject", subject).Msg("email dispatched")

	return nil
}
