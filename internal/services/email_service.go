package services

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"

	pkglogger "github.com/BradenHooton/schoolmis/pkg/logger"
)

// EmailService sends the outbound mail of the system.
type EmailService interface {
	// SendAbsenteeAlert tells a parent their child was marked absent. The
	// bool reports whether the message was accepted for delivery.
	SendAbsenteeAlert(ctx context.Context, parentEmail, studentName, date, className, section string) (bool, error)
	SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error
}

// SESAPI is the subset of the SES client used here.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// AWSSESEmailService sends email through AWS SES.
type AWSSESEmailService struct {
	client      SESAPI
	fromAddress string
	frontendURL string
	logger      *slog.Logger
}

// NewAWSSESEmailService loads the default AWS credential chain for region.
func NewAWSSESEmailService(ctx context.Context, region, fromAddress, frontendURL string, logger *slog.Logger) (*AWSSESEmailService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newSESEmailService(ses.NewFromConfig(cfg), fromAddress, frontendURL, logger), nil
}

func newSESEmailService(client SESAPI, fromAddress, frontendURL string, logger *slog.Logger) *AWSSESEmailService {
	return &AWSSESEmailService{
		client:      client,
		fromAddress: fromAddress,
		frontendURL: frontendURL,
		logger:      logger,
	}
}

func (s *AWSSESEmailService) SendAbsenteeAlert(ctx context.Context, parentEmail, studentName, date, className, section string) (bool, error) {
	subject := fmt.Sprintf("Attendance Alert: %s Absent", studentName)
	htmlBody, textBody := absenteeAlertBody(studentName, date, className, section)

	if err := s.send(ctx, parentEmail, subject, htmlBody, textBody); err != nil {
		return false, err
	}
	return true, nil
}

func (s *AWSSESEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, url.QueryEscape(token))
	htmlBody, textBody := passwordResetBody(link, expiresAt)
	return s.send(ctx, email, "Reset your School MIS password", htmlBody, textBody)
}

func (s *AWSSESEmailService) send(ctx context.Context, to, subject, htmlBody, textBody string) error {
	input := &ses.SendEmailInput{
		Source: aws.String(fmt.Sprintf("School MIS <%s>", s.fromAddress)),
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject), Charset: aws.String("UTF-8")},
			Body: &types.Body{
				Html: &types.Content{Data: aws.String(htmlBody), Charset: aws.String("UTF-8")},
				Text: &types.Content{Data: aws.String(textBody), Charset: aws.String("UTF-8")},
			},
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to send email via SES",
			slog.String("email", pkglogger.SanitizedEmail(to)),
			slog.String("subject", subject),
			slog.Any("error", err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	s.logger.InfoContext(ctx, "email sent",
		slog.String("email", pkglogger.SanitizedEmail(to)),
		slog.String("message_id", aws.ToString(result.MessageId)))
	return nil
}

func absenteeAlertBody(studentName, date, className, section string) (string, string) {
	name := html.EscapeString(studentName)
	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1 style="color: #dc3545;">Attendance Alert</h1>
  <p>Dear Parent/Guardian,</p>
  <p>This is to inform you that your child <strong>%s</strong> was marked <strong style="color: #dc3545;">Absent</strong>.</p>
  <table style="width: 100%%; border-collapse: collapse;">
    <tr><td><strong>Student Name:</strong></td><td>%s</td></tr>
    <tr><td><strong>Class &amp; Section:</strong></td><td>%s - %s</td></tr>
    <tr><td><strong>Date:</strong></td><td>%s</td></tr>
    <tr><td><strong>Status:</strong></td><td style="color: #dc3545;">Absent</td></tr>
  </table>
  <p>If the absence was due to illness or another valid reason, please submit a leave note to the class teacher.</p>
  <p style="color: #6c757d; font-size: 12px;">This is an automated message from School MIS. Please do not reply to this email.</p>
</body>
</html>
`, name, name, html.EscapeString(className), html.EscapeString(section), html.EscapeString(date))

	textBody := fmt.Sprintf(`Attendance Alert

Dear Parent/Guardian,

Your child %s was marked Absent.

Student Name: %s
Class & Section: %s - %s
Date: %s

If the absence was due to illness or another valid reason, please submit a leave note to the class teacher.

This is an automated message from School MIS. Please do not reply to this email.
`, studentName, studentName, className, section, date)

	return htmlBody, textBody
}

func passwordResetBody(link string, expiresAt time.Time) (string, string) {
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	escaped := html.EscapeString(link)

	htmlBody := fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h1>Reset Your Password</h1>
  <p>We received a request to reset your School MIS password. Use the link below to choose a new one:</p>
  <p><a href="%s">Reset Password</a></p>
  <p>Or copy and paste this link in your browser:<br><code>%s</code></p>
  <p>This link expires in %d minutes. If you did not request a reset, you can ignore this email.</p>
</body>
</html>
`, escaped, escaped, minutes)

	textBody := fmt.Sprintf(`Reset Your Password

We received a request to reset your School MIS password. Open the link below to choose a new one:

%s

This link expires in %d minutes. If you did not request a reset, you can ignore this email.
`, link, minutes)

	return htmlBody, textBody
}

// LogEmailService logs outbound mail instead of sending it. Used outside
// production when no SES credentials are configured.
type LogEmailService struct {
	logger *slog.Logger
	env    string
}

func NewLogEmailService(logger *slog.Logger, env string) *LogEmailService {
	return &LogEmailService{logger: logger, env: env}
}

func (s *LogEmailService) SendAbsenteeAlert(ctx context.Context, parentEmail, studentName, date, className, section string) (bool, error) {
	s.logger.InfoContext(ctx, "absentee alert (not sent)",
		slog.String("email", pkglogger.SanitizedEmail(parentEmail)),
		slog.String("date", date),
		slog.String("class", className),
		slog.String("section", section))
	return true, nil
}

func (s *LogEmailService) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	s.logger.InfoContext(ctx, "password reset email (not sent)",
		slog.String("email", pkglogger.SanitizedEmail(email)),
		pkglogger.RedactedAttr("token", token, s.env),
		slog.Time("expires_at", expiresAt))
	return nil
}
