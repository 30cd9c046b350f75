package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/veiloq/exchange-service/pkg/logging"
	"github.com/veiloq/exchange-service/pkg/ratelimit"
)

// HTTPClient is the shared transport used by every REST adapter. It applies
// rate limiting and retries transport-level failures. Non-2xx responses are
// returned to the caller untouched so adapters can map venue error codes
// themselves; retrying a venue rejection is never the transport's call.
type HTTPClient interface {
	// Do executes a request. The returned response body must be closed by
	// the caller.
	Do(ctx context.Context, req *http.Request) (*http.Response, error)

	// Get issues a GET to url.
	Get(ctx context.Context, url string) (*http.Response, error)

	// Post issues a POST with a JSON body.
	Post(ctx context.Context, url string, body interface{}) (*http.Response, error)

	// SetRateLimit replaces the request budget at runtime.
	SetRateLimit(limit ratelimit.Rate) error
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout   time.Duration
	RateLimit ratelimit.Rate

	// Transport retry settings. Only network errors are retried.
	MaxRetries uint
	RetryDelay time.Duration

	Logger logging.Logger
}

// DefaultConfig returns a conservative default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		Timeout: 30 * time.Second,
		RateLimit: ratelimit.Rate{
			Limit:    10,
			Interval: time.Second,
		},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NewLogger(),
	}
}

type client struct {
	config     *ClientConfig
	httpClient *http.Client
	limiter    ratelimit.RateLimiter
	logger     logging.Logger
}

// NewHTTPClient creates a rate-limited, retrying HTTP client.
func NewHTTPClient(config *ClientConfig) HTTPClient {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = logging.NewLogger()
	}

	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter: ratelimit.NewTokenBucketLimiter(config.RateLimit),
		logger:  config.Logger,
	}
}

func (c *client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait error: %w", err)
	}

	// Buffer the body once so each retry attempt can replay it.
	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("error reading request body: %w", err)
		}
		_ = req.Body.Close()
	}

	var resp *http.Response
	err := retry.Do(
		func() error {
			attempt := req.Clone(ctx)
			if body != nil {
				attempt.Body = io.NopCloser(bytes.NewReader(body))
			}

			var err error
			resp, err = c.httpClient.Do(attempt)
			if err != nil {
				return fmt.Errorf("http request error: %w", err)
			}
			return nil
		},
		retry.Attempts(c.config.MaxRetries),
		retry.Delay(c.config.RetryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Warn("retrying request",
				logging.Int("attempt", int(n+1)),
				logging.String("url", req.URL.String()),
				logging.Error(err),
			)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("request failed after %d attempts: %w", c.config.MaxRetries, err)
	}

	return resp, nil
}

func (c *client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	return c.Do(ctx, req)
}

func (c *client) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.Do(ctx, req)
}

func (c *client) SetRateLimit(limit ratelimit.Rate) error {
	return c.limiter.SetLimit(limit)
}

// DecodeJSON reads and closes the response body into v.
func DecodeJSON(resp *http.Response, v interface{}) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error decoding response body: %w", err)
	}
	return nil
}
