// Package provider adapts the individual news APIs to the canonical
// model.Article. Each adapter declares which query features it can honour
// server-side and maps model.Filters onto its own parameter vocabulary.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/abelbrown/newsdesk/internal/model"
)

// Feature is a query capability a provider may support natively.
type Feature string

const (
	FeatureCategories     Feature = "categories"
	FeatureAuthors        Feature = "authors"
	FeatureDateRange      Feature = "dateRange"
	FeatureFullTextSearch Feature = "fullTextSearch"
)

// Provider is one news source behind a uniform query contract.
//
// FetchArticles returns ctx.Err() unwrapped when the context is cancelled,
// so callers can tell cancellation apart from failure. Every other failure
// is an *Error.
type Provider interface {
	ID() model.SourceID
	Name() string
	IsConfigured() bool
	SupportsFeature(f Feature) bool
	FetchArticles(ctx context.Context, filters model.Filters, page int) ([]model.Article, error)
}

// Config holds the connection settings for one provider.
type Config struct {
	BaseURL   string            `json:"base_url"`
	APIKey    string            `json:"api_key,omitempty"`
	Endpoints map[string]string `json:"endpoints"`
}

// IsConfigured reports whether key is usable: present, non-blank and not a
// demo_key_* placeholder (the sample config ships demo_key_<provider id>).
func IsConfigured(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && !strings.HasPrefix(key, "demo_key_")
}

// Error is a failed provider call: transport failure, non-OK status or an
// undecodable / error envelope.
type Error struct {
	Provider   model.SourceID
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsCancellation reports whether err is a context cancellation rather than
// a provider failure.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

const (
	// defaultTimeout bounds a single provider HTTP call.
	defaultTimeout = 15 * time.Second

	// maxBodyBytes caps how much of a response body is read.
	maxBodyBytes = 8 << 20
)

// Option configures an adapter.
type Option func(*client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *client) { cl.http = c }
}

// WithLimiter replaces the default request rate limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(cl *client) { cl.limiter = l }
}

// client is the HTTP plumbing shared by every adapter.
type client struct {
	id      model.SourceID
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

func newClient(id model.SourceID, cfg Config, every time.Duration, opts []Option) client {
	c := client{
		id:      id,
		cfg:     cfg,
		http:    &http.Client{Timeout: defaultTimeout},
		limiter: rate.NewLimiter(rate.Every(every), 2),
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func (c *client) fail(status int, err error) error {
	return &Error{Provider: c.id, StatusCode: status, Err: err}
}

// getJSON issues GET baseURL+endpoint?params and decodes the body into out.
func (c *client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return c.fail(0, fmt.Errorf("rate limiter: %w", err))
	}

	path, ok := c.cfg.Endpoints[endpoint]
	if !ok {
		return c.fail(0, fmt.Errorf("no %q endpoint configured", endpoint))
	}
	u := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return c.fail(0, fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "newsdesk/0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return c.fail(0, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxBodyBytes)
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(body, 512))
		return c.fail(resp.StatusCode, fmt.Errorf("unexpected status: %s", strings.TrimSpace(string(snippet))))
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return c.fail(resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// mapCategories maps domain tags through table, sending unmapped tags to
// fallback.
func mapCategories(tags []string, table map[string]string, fallback string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		if v, ok := table[tag]; ok {
			out[i] = v
		} else {
			out[i] = fallback
		}
	}
	return out
}
