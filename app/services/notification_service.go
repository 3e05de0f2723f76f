// Package services provides external service integrations and technical concerns like notifications
package services

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// TelegramProvider delivers a message to a telegram user.
type TelegramProvider interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// EmailProvider delivers an email.
type EmailProvider interface {
	SendEmail(ctx context.Context, email, subject, body string) error
}

type MockTelegramProvider struct{}

func NewMockTelegramProvider() TelegramProvider {
	return &MockTelegramProvider{}
}

func (p *MockTelegramProvider) SendMessage(ctx context.Context, userID int64, text string) error {
	log.Printf("Telegram message sent to %d: %s", userID, text)
	return nil
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(ctx context.Context, email, subject, body string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, body)
	return nil
}

// SMTPEmailProvider sends mail through a configured SMTP relay. Delivery is
// delegated to the relay; only addressing is validated here.
type SMTPEmailProvider struct {
	host     string
	port     int
	from     string
	username string
	password string
}

func NewSMTPEmailProvider(host string, port int, from, username, password string) EmailProvider {
	return &SMTPEmailProvider{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
	}
}

func (p *SMTPEmailProvider) SendEmail(ctx context.Context, email, subject, body string) error {
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	msg := strings.Join([]string{
		"From: " + p.from,
		"To: " + email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"utf-8\"",
		"",
		body,
	}, "\r\n")

	addr := fmt.Sprintf("%s:%d", p.host, p.port)
	var auth smtp.Auth
	if p.username != "" {
		auth = smtp.PlainAuth("", p.username, p.password, p.host)
	}
	if err := smtp.SendMail(addr, auth, p.from, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", email, err)
	}
	return nil
}
