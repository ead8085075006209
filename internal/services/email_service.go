package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/ajali/pkg/logger"
)

// EmailService sends account emails
type EmailService interface {
	SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresIn time.Duration) error
}

// SESAPI is the subset of the SES client used for sending
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends emails using AWS SES
type AWSSESEmailService struct {
	client       SESAPI
	fromAddress  string
	resetURLBase string
	logger       *slog.Logger
}

// NewAWSSESEmailService loads the default AWS config for region and builds an SES sender
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, resetURLBase string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewEmailServiceWithClient(ses.NewFromConfig(cfg), fromAddress, resetURLBase, logger), nil
}

// NewEmailServiceWithClient builds a sender over an existing SES client
func NewEmailServiceWithClient(client SESAPI, fromAddress, resetURLBase string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		client:       client,
		fromAddress:  fromAddress,
		resetURLBase: resetURLBase,
		logger:       logger,
	}
}

// ResetLink builds the link the user follows to set a new password
func ResetLink(base, token string) string {
	return base + "?token=" + url.QueryEscape(token)
}

// SendPasswordResetEmail mails a reset link
func (s *AWSSESEmailService) SendPasswordResetEmail(ctx context.Context, email, name, token string, expiresIn time.Duration) error {
	link := ResetLink(s.resetURLBase, token)
	minutes := int(expiresIn.Minutes())

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>Reset your password</h2>
    <p>Hello %s,</p>
    <p>We received a request to reset the password for your Ajali account.</p>
    <p><a href="%s" style="display: inline-block; background-color: #c0392b; color: white; padding: 12px 24px; text-decoration: none; border-radius: 4px;">Reset password</a></p>
    <p>Or copy this link into your browser:<br><code>%s</code></p>
    <p>The link expires in %d minutes. If you did not ask for a reset you can ignore this email.</p>
  </div>
</body>
</html>
`, name, link, link, minutes)

	textBody := fmt.Sprintf(`Hello %s,

We received a request to reset the password for your Ajali account.

Reset it here:
%s

The link expires in %d minutes. If you did not ask for a reset you can ignore this email.
`, name, link, minutes)

	input := &ses.SendEmailInput{
		Source: aws.String(s.fromAddress),
		Destination: &types.Destination{
			ToAddresses: []string{email},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data: aws.String("Reset your Ajali password"),
			},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody)},
				Text: &types.Content{Data: aws.String(textBody)},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.Info("password reset email sent",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		slog.String("message_id", aws.ToString(result.MessageId)))

	return nil
}
