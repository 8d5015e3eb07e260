package notify

import (
	"context"
	"fmt"

	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"library-circulation-backend/internal/domain"
	"library-circulation-backend/internal/logger"
	"library-circulation-backend/internal/repository"
)

// StoreSink persists notifications to the reader's inbox.
type StoreSink struct {
	repo repository.NotificationRepository
}

func NewStoreSink(repo repository.NotificationRepository) *StoreSink {
	return &StoreSink{repo: repo}
}

func (s *StoreSink) Name() string { return "store" }

func (s *StoreSink) Deliver(ctx context.Context, n domain.Notification) error {
	return s.repo.Create(ctx, &n)
}

// MailClient is the subset of *sendgrid.Client used to send mail.
type MailClient interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// EmailSink mails the notification to the user's address through SendGrid.
type EmailSink struct {
	users     repository.UserRepository
	client    MailClient
	fromEmail string
	fromName  string
}

func NewEmailSink(users repository.UserRepository, apiKey, fromEmail, fromName string) *EmailSink {
	return NewEmailSinkWithClient(users, sendgrid.NewSendClient(apiKey), fromEmail, fromName)
}

func NewEmailSinkWithClient(users repository.UserRepository, client MailClient, fromEmail, fromName string) *EmailSink {
	return &EmailSink{
		users:     users,
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}
}

func (s *EmailSink) Name() string { return "email" }

func (s *EmailSink) Deliver(ctx context.Context, n domain.Notification) error {
	user, err := s.users.GetByID(ctx, n.UserID)
	if err != nil {
		return fmt.Errorf("failed to look up recipient %d: %w", n.UserID, err)
	}
	if user.Email == "" {
		logger.Debug("Skipping email for user without address", "userID", n.UserID)
		return nil
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(user.Name, user.Email)
	message := mail.NewSingleEmail(from, n.Title, to, n.Message, "")

	logger.ExternalServiceCall("sendgrid", "Send", "userID", n.UserID, "type", n.Type)
	response, err := s.client.Send(message)
	if err == nil && response.StatusCode >= 400 {
		err = fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	logger.ExternalServiceResult("sendgrid", "Send", err, "userID", n.UserID)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
