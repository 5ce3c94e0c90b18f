package notify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"stock_watcher/internal/domain"
)

type TwilioConfig struct {
	// BaseURL overrides the API host. Empty keeps the SDK default.
	BaseURL    string
	AccountSID string
	AuthToken  string
	From       string
	To         string
}

// Twilio sends WhatsApp or SMS messages through the Twilio Messages API.
// Numbers prefixed with "whatsapp:" go over WhatsApp.
type Twilio struct {
	cfg     TwilioConfig
	timeout time.Duration
	host    *url.URL
}

func NewTwilio(cfg TwilioConfig, timeout time.Duration) *Twilio {
	t := &Twilio{cfg: cfg, timeout: timeout}
	if u, err := url.Parse(cfg.BaseURL); err == nil && u.Host != "" {
		t.host = u
	}
	return t
}

func (t *Twilio) Name() string {
	return "chat"
}

func (t *Twilio) Send(ctx context.Context, msg Message) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(t.cfg.To)
	params.SetFrom(t.cfg.From)
	params.SetBody(msg.Body)

	resp, err := t.restClient(ctx).Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("%w: twilio: %w", domain.ErrDispatch, err)
	}
	if resp.Sid == nil {
		return fmt.Errorf("%w: twilio: response carried no message sid", domain.ErrDispatch)
	}
	return nil
}

// restClient builds a client bound to ctx. CreateMessage takes no context, so
// cancellation reaches the request through the transport.
func (t *Twilio) restClient(ctx context.Context) *twilio.RestClient {
	c := &client.Client{
		Credentials: client.NewCredentials(t.cfg.AccountSID, t.cfg.AuthToken),
		HTTPClient: &http.Client{
			Timeout:   t.timeout,
			Transport: &boundTransport{ctx: ctx, host: t.host, next: http.DefaultTransport},
		},
	}
	c.SetAccountSid(t.cfg.AccountSID)

	return twilio.NewRestClientWithParams(twilio.ClientParams{Client: c})
}

// boundTransport attaches ctx to every request and, when host is set,
// redirects it to that scheme and host.
type boundTransport struct {
	ctx  context.Context
	host *url.URL
	next http.RoundTripper
}

func (b *boundTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(b.ctx)
	if b.host != nil {
		out.URL.Scheme = b.host.Scheme
		out.URL.Host = b.host.Host
		out.Host = ""
	}
	return b.next.RoundTrip(out)
}
