package adapter

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/time/rate"

	"stock_watcher/internal/domain"
	"stock_watcher/internal/metrics"
)

// defaultMaxBodyBytes caps a decoded availability payload.
const defaultMaxBodyBytes = 10 << 20

var errBodyTooLarge = errors.New("body exceeds size limit")

type HTTPConfig struct {
	Timeout       time.Duration
	UserAgent     string
	RatePerSecond float64
	RateBurst     int
	// MaxBodyBytes limits the body after decompression. Zero means 10 MiB.
	MaxBodyBytes int64
}

// HTTPClient performs the single GET each adapter needs. Requests share a
// rate limiter so many products on the same store do not hammer it.
type HTTPClient struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	maxBody    int64
	logger     *slog.Logger
}

func NewHTTPClient(cfg HTTPConfig, logger *slog.Logger) *HTTPClient {
	var limiter *rate.Limiter
	if cfg.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst)
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &HTTPClient{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter:   limiter,
		userAgent: cfg.UserAgent,
		maxBody:   cfg.MaxBodyBytes,
		logger:    logger,
	}
}

// GetJSON fetches url and decodes the body into v. Transport problems and
// non-2xx statuses wrap domain.ErrFetch, undecodable bodies domain.ErrParse.
func (c *HTTPClient) GetJSON(ctx context.Context, kind Kind, url string, v any) error {
	start := time.Now()
	status := 0
	defer func() {
		metrics.RecordFetch(string(kind), status, time.Since(start))
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: rate limiter: %v", domain.ErrFetch, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", domain.ErrFetch, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Encoding", "gzip, br")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: execute request: %v", domain.ErrFetch, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: unexpected status: %d", domain.ErrFetch, resp.StatusCode)
	}

	body, err := readBody(resp, c.maxBody)
	if errors.Is(err, errBodyTooLarge) {
		return fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	if err != nil {
		return fmt.Errorf("%w: read body: %v", domain.ErrFetch, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrParse, err)
	}

	c.logger.Debug("fetched availability",
		"adapter", kind,
		"status", resp.StatusCode,
		"bytes", len(body),
		"duration", time.Since(start),
	)

	return nil
}

// readBody decodes the response and reads at most limit bytes of it.
func readBody(resp *http.Response, limit int64) ([]byte, error) {
	var reader io.Reader
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		reader = resp.Body
	}

	body, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", errBodyTooLarge, limit)
	}
	return body, nil
}
