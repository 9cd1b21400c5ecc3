package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mrz1836/postmark"
)

// EmailMessage is the {to, subject, htmlBody} contract handed to a transport.
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	Tag      string
}

func (m EmailMessage) validate() error {
	if m.To == "" {
		return errors.New("recipient is required")
	}
	if strings.ContainsAny(m.To, "\r\n") {
		return errors.New("recipient contains a line break")
	}
	addr, err := mail.ParseAddress(m.To)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}
	if addr.Address != m.To {
		return fmt.Errorf("recipient must be a bare address, got %q", m.To)
	}
	if m.Subject == "" {
		return errors.New("subject is required")
	}
	return nil
}

// Mailer sends a single email. Errors wrap ErrEmailSendFailed.
type Mailer interface {
	Send(ctx context.Context, msg EmailMessage) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer delivers through a plain SMTP relay.
type SMTPMailer struct {
	addr     string
	host     string
	from     string
	auth     smtp.Auth
	sendMail sendMailFunc
}

func NewSMTPMailer(host string, port int, user, password, from string) (*SMTPMailer, error) {
	if host == "" {
		return nil, errors.New("smtp host is required")
	}
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTPMailer{
		addr:     net.JoinHostPort(host, strconv.Itoa(port)),
		host:     host,
		from:     from,
		auth:     auth,
		sendMail: smtp.SendMail,
	}, nil
}

func (m *SMTPMailer) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	if err := m.sendMail(m.addr, m.auth, m.from, []string{msg.To}, m.compose(msg)); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}
	return nil
}

func (m *SMTPMailer) compose(msg EmailMessage) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", m.from)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	fmt.Fprintf(&buf, "Message-ID: <%s@%s>\r\n", uuid.NewString(), m.host)
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.HTMLBody)
	return buf.Bytes()
}

// PostmarkMailer delivers through Postmark's transactional API.
type PostmarkMailer struct {
	client *postmark.Client
	from   string
}

func NewPostmarkMailer(serverToken, accountToken, from string) (*PostmarkMailer, error) {
	if serverToken == "" {
		return nil, errors.New("postmark server token is required")
	}
	if accountToken == "" {
		return nil, errors.New("postmark account token is required")
	}
	if from == "" {
		return nil, errors.New("sender address is required")
	}
	return &PostmarkMailer{
		client: postmark.NewClient(serverToken, accountToken),
		from:   from,
	}, nil
}

func (m *PostmarkMailer) Send(ctx context.Context, msg EmailMessage) error {
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrEmailSendFailed, err)
	}

	resp, err := m.client.SendEmail(ctx, postmark.Email{
		From:       m.from,
		To:         msg.To,
		Subject:    msg.Subject,
		Tag:        msg.Tag,
		HTMLBody:   msg.HTMLBody,
		TrackOpens: true,
	})
	if err != nil {
		return errors.Join(ErrEmailSendFailed, err)
	}
	if resp.ErrorCode > 0 {
		return errors.Join(ErrEmailSendFailed, fmt.Errorf("postmark error: %d - %s", resp.ErrorCode, resp.Message))
	}
	return nil
}
