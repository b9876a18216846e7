package mailer

import (
	"fmt"
	"net/smtp"

	"github.com/rs/zerolog"
)

const (
	KindCheckoutStarted = "checkout_started"
	KindPaid            = "paid"
	KindExpired         = "expired"
	KindRefunded        = "refunded"
)

type Mailer struct {
	host string
	port string
	from string
	pass string
	log  *zerolog.Logger
}

func New(host, port, from, pass string, log *zerolog.Logger) *Mailer {
	return &Mailer{host: host, port: port, from: from, pass: pass, log: log}
}

// Send emails a booking lifecycle notification. A mailer with no host
// configured is a no-op, so local runs work without SMTP.
func (m *Mailer) Send(recipient, kind, eventName string, timeoutMinutes int) error {
	if m.host == "" {
		return nil
	}

	var subject, body string
	switch kind {
	case KindCheckoutStarted:
		subject = "Your slot booking is on hold"
		body = fmt.Sprintf("Hi!\n\nYour slots for %s are reserved. Complete the payment within %d minutes or the reservation will be released.", eventName, timeoutMinutes)
	case KindPaid:
		subject = "Your registration is confirmed"
		body = fmt.Sprintf("Hi!\n\nYour payment for %s went through. See you at the ovens!", eventName)
	case KindExpired:
		subject = "Your slot reservation expired"
		body = fmt.Sprintf("Hi!\n\nYour reservation for %s was released because the payment window elapsed. The slots are available again.", eventName)
	case KindRefunded:
		subject = "Your payment was refunded"
		body = fmt.Sprintf("Hi!\n\nYour payment for %s has been refunded and your slots were released.", eventName)
	default:
		return fmt.Errorf("unknown mail kind %q", kind)
	}

	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		m.from, recipient, subject, body,
	)

	addr := m.host + ":" + m.port
	auth := smtp.PlainAuth("", m.from, m.pass, m.host)

	if err := smtp.SendMail(addr, auth, m.from, []string{recipient}, []byte(msg)); err != nil {
		m.log.Warn().Err(err).Str("recipient", recipient).Msg("failed to send email")
		return fmt.Errorf("send email: %w", err)
	}

	m.log.Info().Str("recipient", recipient).Str("kind", kind).Msg("email sent")
	return nil
}
