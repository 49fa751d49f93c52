package client

import (
	"context"
	"fmt"
	"net"
	"net/smtp"

	"github.com/modu-market/backend/internal/logging"
)

// Mailer sends an email-verification code. Message content and delivery are
// outside the core flows; the auth service only depends on this interface.
type Mailer interface {
	SendVerificationCode(ctx context.Context, email, code string) error
}

// SMTPMailer - 표준 SMTP 전송 구현
type SMTPMailer struct {
	addr string
	auth smtp.Auth
	from string
}

func NewSMTPMailer(host, port, username, password, from string) *SMTPMailer {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPMailer{
		addr: net.JoinHostPort(host, port),
		auth: auth,
		from: from,
	}
}

func (m *SMTPMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: 이메일 인증 코드\r\n\r\n인증 코드: %s\r\n",
		m.from, email, code)
	if err := smtp.SendMail(m.addr, m.auth, m.from, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogMailer - SMTP 미설정 환경(로컬 개발)용. 코드를 로그로만 남긴다.
type LogMailer struct {
	log logging.Logger
}

func NewLogMailer(log logging.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerificationCode(ctx context.Context, email, code string) error {
	m.log.Info(ctx, "verification code issued", "email", email, "code", code)
	return nil
}
