// Package arcgis is a small client for the ArcGIS REST geocoding and
// feature layer endpoints.
package arcgis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/NathanCastle/arcgis-in-obsidian/internal/logging"
)

const (
	maxErrorBodySize = 64 * 1024
	maxResponseSize  = 32 << 20

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultRetryDelay = time.Second
)

// Options configure every request made by a geocoder or layer handle.
type Options struct {
	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Token is sent as the token parameter when set.
	Token string
	// MaxRate caps requests per second; zero means unlimited.
	MaxRate float64
	// MaxRetries bounds retries of HTTP 429 responses.
	MaxRetries int
	// RetryDelay is the first backoff delay; it doubles on each retry.
	RetryDelay time.Duration
}

// client performs rate-limited, breaker-protected requests against one host.
type client struct {
	http       *http.Client
	token      string
	limiter    *rate.Limiter
	cb         *gobreaker.CircuitBreaker[[]byte]
	maxRetries int
	retryDelay time.Duration
	log        zerolog.Logger
}

func newClient(name string, opts Options) *client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	limit := rate.Inf
	burst := 1
	if opts.MaxRate > 0 {
		limit = rate.Limit(opts.MaxRate)
		burst = max(1, int(opts.MaxRate))
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}

	log := logging.WithComponent("arcgis").With().Str("endpoint", name).Logger()

	cb := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// Service-level errors mean the endpoint is up.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrServiceError) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &client{
		http:       httpClient,
		token:      opts.Token,
		limiter:    rate.NewLimiter(limit, burst),
		cb:         cb,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
		log:        log,
	}
}

// get issues a GET with params and decodes the JSON body into out.
func (c *client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	params = c.withDefaults(params)
	return c.call(ctx, out, func() (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), http.NoBody)
	})
}

// postForm issues a form-encoded POST and decodes the JSON body into out.
func (c *client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	form = c.withDefaults(form)
	encoded := form.Encode()
	return c.call(ctx, out, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
}

func (c *client) withDefaults(params url.Values) url.Values {
	if params == nil {
		params = url.Values{}
	}
	params.Set("f", "json")
	if c.token != "" {
		params.Set("token", c.token)
	}
	return params
}

func (c *client) call(ctx context.Context, out any, build func() (*http.Request, error)) error {
	body, err := c.cb.Execute(func() ([]byte, error) {
		return c.send(ctx, build)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("service unavailable: %w", err)
		}
		return err
	}
	return decode(body, out)
}

// send performs the request, retrying 429 responses with exponential backoff.
// A body carrying a service error is returned as *ServiceError.
func (c *client) send(ctx context.Context, build func() (*http.Request, error)) ([]byte, error) {
	delay := c.retryDelay
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		req, err := build()
		if err != nil {
			return nil, fmt.Errorf("create request failed: %w", err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			_ = resp.Body.Close()
			c.log.Debug().Int("attempt", attempt+1).Dur("delay", delay).Msg("rate limited, backing off")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			continue
		}

		return readResponse(resp)
	}
}

func readResponse(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(readBodyForError(resp.Body))}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var envelope struct {
		Error *ServiceError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Error != nil {
		return nil, envelope.Error
	}
	return body, nil
}

func decode(body []byte, out any) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("\n... (truncated)")...)
	}
	return body
}

// normalizeURL trims whitespace and trailing slashes and requires http(s).
func normalizeURL(raw string) (string, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid URL %q: missing host", raw)
	}
	return trimmed, nil
}
