// Package mail sends notification e-mails over SMTP.
//
//	msg := mail.To(config.AdminEmail()).
//	    Subject("New order #42").
//	    Template(orderTmpl, order)
//	err := mailer.Send(ctx, msg)
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"sync"

	"github.com/onyxia-store/onyxia/config"
)

var ErrNotConfigured = errors.New("mail: MAIL_HOST or MAIL_FROM not configured")

type SMTP struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

func ConfigFromEnv() SMTP {
	return SMTP{
		Host:     config.Get("MAIL_HOST", ""),
		Port:     config.Get("MAIL_PORT", "587"),
		Username: config.Get("MAIL_USERNAME", ""),
		Password: config.Get("MAIL_PASSWORD", ""),
		From:     config.Get("MAIL_FROM", ""),
		FromName: config.Get("MAIL_FROM_NAME", "Onyxia"),
	}
}

func (c SMTP) Enabled() bool { return c.Host != "" && c.From != "" }

// Message is built fluently.
type Message struct {
	to      []string
	subject string
	body    string
	isHTML  bool
	err     error
}

func To(addresses ...string) *Message {
	return &Message{to: addresses, isHTML: true}
}

func (m *Message) Subject(s string) *Message {
	m.subject = s
	return m
}

// Body sets an HTML body.
func (m *Message) Body(html string) *Message {
	m.body, m.isHTML = html, true
	return m
}

func (m *Message) Text(text string) *Message {
	m.body, m.isHTML = text, false
	return m
}

// Template renders tmpl with data as the HTML body. A render error is
// reported by Send.
func (m *Message) Template(tmpl *template.Template, data interface{}) *Message {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		m.err = fmt.Errorf("mail: render %s: %w", tmpl.Name(), err)
		return m
	}
	return m.Body(buf.String())
}

func (m *Message) Recipients() []string { return append([]string(nil), m.to...) }
func (m *Message) GetSubject() string   { return m.subject }
func (m *Message) GetBody() string      { return m.body }

// Bytes renders the RFC 5322 message.
func (m *Message) Bytes(from string) []byte {
	contentType := "text/plain"
	if m.isHTML {
		contentType = "text/html"
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(m.to, ", ") + "\r\n")
	b.WriteString("Subject: " + sanitizeHeader(m.subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: %s; charset=\"UTF-8\"\r\n", contentType)
	b.WriteString("\r\n")
	b.WriteString(m.body)
	return []byte(b.String())
}

func sanitizeHeader(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

// Sender delivers messages. Mailer and Outbox implement it.
type Sender interface {
	Send(ctx context.Context, m *Message) error
}

type Mailer struct {
	cfg SMTP
}

func NewMailer(cfg SMTP) *Mailer { return &Mailer{cfg: cfg} }

func (ml *Mailer) Send(ctx context.Context, m *Message) error {
	if m.err != nil {
		return m.err
	}
	if !ml.cfg.Enabled() {
		return ErrNotConfigured
	}
	if len(m.to) == 0 {
		return errors.New("mail: no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := ml.cfg
	raw := m.Bytes(fmt.Sprintf("%s <%s>", cfg.FromName, cfg.From))
	addr := cfg.Host + ":" + cfg.Port

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if cfg.Port == "465" {
		return sendTLS(addr, cfg.Host, auth, cfg.From, m.to, raw)
	}
	if err := smtp.SendMail(addr, auth, cfg.From, m.to, raw); err != nil {
		return fmt.Errorf("mail: send: %w", err)
	}
	return nil
}

func sendTLS(addr, host string, auth smtp.Auth, from string, to []string, raw []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host})
	if err != nil {
		return fmt.Errorf("mail: TLS dial: %w", err)
	}
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return err
	}
	defer c.Quit()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(raw); err != nil {
		return err
	}
	return w.Close()
}

// Outbox collects messages instead of sending them. Used in tests and when
// SMTP is not configured in local development.
type Outbox struct {
	mu   sync.Mutex
	sent []*Message
}

func (o *Outbox) Send(_ context.Context, m *Message) error {
	if m.err != nil {
		return m.err
	}
	o.mu.Lock()
	o.sent = append(o.sent, m)
	o.mu.Unlock()
	return nil
}

func (o *Outbox) Sent() []*Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Message(nil), o.sent...)
}
