package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"stock_watcher/internal/domain"
)

type SMTPConfig struct {
	Host       string
	Port       int
	Username   string
	Password   string
	From       string
	Recipients []string
}

// SMTP delivers plain-text email to a relay, upgrading to TLS when the
// server offers STARTTLS.
type SMTP struct {
	cfg SMTPConfig
	now func() time.Time
}

func NewSMTP(cfg SMTPConfig) *SMTP {
	return &SMTP{cfg: cfg, now: time.Now}
}

func (s *SMTP) Name() string {
	return "email"
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	if len(s.cfg.Recipients) == 0 {
		return fmt.Errorf("%w: smtp: no recipients", domain.ErrDispatch)
	}

	raw, err := s.buildMessage(msg)
	if err != nil {
		return fmt.Errorf("%w: smtp: %v", domain.ErrDispatch, err)
	}

	if err := s.deliver(ctx, raw); err != nil {
		return fmt.Errorf("%w: smtp: %v", domain.ErrDispatch, err)
	}
	return nil
}

func (s *SMTP) buildMessage(msg Message) ([]byte, error) {
	var h mail.Header
	h.SetDate(s.now())
	h.SetSubject(msg.Subject)
	h.SetAddressList("From", []*mail.Address{{Name: "Stock Watcher", Address: s.cfg.From}})

	to := make([]*mail.Address, 0, len(s.cfg.Recipients))
	for _, r := range s.cfg.Recipients {
		to = append(to, &mail.Address{Address: r})
	}
	h.SetAddressList("To", to)
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("create writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *SMTP) deliver(ctx context.Context, raw []byte) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c := smtp.NewClient(conn)
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: s.cfg.Host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(sasl.NewPlainClient("", s.cfg.Username, s.cfg.Password)); err != nil {
			return fmt.Errorf("auth: %w", err)
		}
	}

	if err := c.SendMail(s.cfg.From, s.cfg.Recipients, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return c.Quit()
}
