// Package mailer sends HTML mail through an SMTP relay.
package mailer

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// ErrNotConfigured is returned when no SMTP host is set.
var ErrNotConfigured = errors.New("smtp relay not configured")

// Message is one outgoing email. ContextID is stamped into a header so replies and bounces
// can be traced to the entity that triggered the send.
type Message struct {
	From      string
	FromName  string
	To        []string
	Cc        []string
	Subject   string
	Body      string
	ContextID string
}

// Sender delivers a Message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// SMTPMailer implements Sender with gomail.
type SMTPMailer struct {
	dialer   *gomail.Dialer
	fromName string
	logger   *zap.Logger
}

// NewSMTPMailer creates a mailer for host:port. An empty host yields a mailer whose Send
// always fails with ErrNotConfigured.
func NewSMTPMailer(host string, port int, user, pass, fromName string, logger *zap.Logger) *SMTPMailer {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &SMTPMailer{fromName: fromName, logger: logger}
	if host != "" {
		m.dialer = gomail.NewDialer(host, port, user, pass)
		m.dialer.TLSConfig = &tls.Config{ServerName: host}
		m.dialer.SSL = port == 465
	}
	return m
}

// Build renders m into a gomail message.
func (s *SMTPMailer) Build(m Message) *gomail.Message {
	msg := gomail.NewMessage()
	name := m.FromName
	if name == "" {
		name = s.fromName
	}
	msg.SetAddressHeader("From", m.From, name)
	msg.SetHeader("To", m.To...)
	if len(m.Cc) > 0 {
		msg.SetHeader("Cc", m.Cc...)
	}
	msg.SetHeader("Subject", m.Subject)
	if m.ContextID != "" {
		msg.SetHeader("X-Gallery-Context", m.ContextID)
	}
	msg.SetBody("text/html", m.Body)
	return msg
}

// Send dials the relay and delivers m, giving up when ctx is done.
func (s *SMTPMailer) Send(ctx context.Context, m Message) error {
	if s.dialer == nil {
		return ErrNotConfigured
	}
	if len(m.To) == 0 {
		return errors.New("no recipients")
	}
	msg := s.Build(m)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.dialer.DialAndSend(msg)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		s.logger.Info("email sent",
			zap.Int("to", len(m.To)),
			zap.Int("cc", len(m.Cc)),
			zap.String("context_id", m.ContextID),
		)
		return nil
	}
}
