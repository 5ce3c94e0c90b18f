package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"

	"stock_watcher/internal/domain"
)

type MailgunConfig struct {
	// BaseURL is the API host without the version segment.
	BaseURL    string
	APIKey     string
	Domain     string
	Recipients []string
}

// Mailgun sends email through the Mailgun messages API.
type Mailgun struct {
	client *mailgun.MailgunImpl
	cfg    MailgunConfig
}

func NewMailgun(cfg MailgunConfig, timeout time.Duration) *Mailgun {
	mg := mailgun.NewMailgun(cfg.Domain, cfg.APIKey)
	if base := strings.TrimRight(cfg.BaseURL, "/"); base != "" {
		mg.SetAPIBase(base + "/v3")
	}
	mg.SetClient(&http.Client{Timeout: timeout})

	return &Mailgun{client: mg, cfg: cfg}
}

func (m *Mailgun) Name() string {
	return "email"
}

func (m *Mailgun) Send(ctx context.Context, msg Message) error {
	if len(m.cfg.Recipients) == 0 {
		return fmt.Errorf("%w: mailgun: no recipients", domain.ErrDispatch)
	}

	from := fmt.Sprintf("Stock Watcher <postmaster@%s>", m.cfg.Domain)
	message := m.client.NewMessage(from, msg.Subject, msg.Body, m.cfg.Recipients...)

	if _, _, err := m.client.Send(ctx, message); err != nil {
		return fmt.Errorf("%w: mailgun: %w", domain.ErrDispatch, err)
	}
	return nil
}
