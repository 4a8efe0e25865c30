package warden

import (
	"context"
	"fmt"
	"net/smtp"
)

// Mailer delivers one-shot tokens out of band. Delivery failures are the
// caller's to log; the auth flows treat dispatch as best-effort and never
// leak delivery state to the client.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
	SendEmailVerification(ctx context.Context, email, token string) error
}

// LogMailer writes the dispatch to the logger instead of sending anything.
// Default for development and tests.
type LogMailer struct {
	Logger Logger
}

func (m LogMailer) logger() Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return defLogger{}
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.logger().Info("password reset token for %s: %s", email, token)
	return nil
}

func (m LogMailer) SendEmailVerification(_ context.Context, email, token string) error {
	m.logger().Info("email verification token for %s: %s", email, token)
	return nil
}

// SMTPMailer sends plain-text mails over authenticated SMTP.
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

func (m *SMTPMailer) send(recipient, subject, body string) error {
	auth := smtp.PlainAuth("", m.Username, m.Password, m.Host)
	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\n\r\n%s\r\n", recipient, subject, body))
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)
	return smtp.SendMail(addr, auth, m.From, []string{recipient}, msg)
}

func (m *SMTPMailer) SendPasswordReset(_ context.Context, email, token string) error {
	body := fmt.Sprintf("Use this token to reset your password: %s", token)
	return m.send(email, "Password reset", body)
}

func (m *SMTPMailer) SendEmailVerification(_ context.Context, email, token string) error {
	body := fmt.Sprintf("Use this token to verify your email address: %s", token)
	return m.send(email, "Verify your email", body)
}
