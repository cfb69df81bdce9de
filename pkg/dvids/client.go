package dvids

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	errs "dvidsharvest/pkg/errors"
	"dvidsharvest/pkg/logger"
	"dvidsharvest/pkg/ratelimit"
	"dvidsharvest/pkg/retry"
)

// ResponseParser turns a received response into a typed result. Any error it
// returns, including a rejected status code, fails the attempt.
type ResponseParser[T any] func(resp *http.Response) (T, error)

// Options configures a Client
type Options struct {
	APIKey    string
	Endpoints Endpoints
	// Timeout bounds connecting, waiting for headers and the whole exchange
	Timeout time.Duration
	// MaxAttempts is the total number of tries per request
	MaxAttempts int
	// RetryDelay is the pause between attempts; zero retries immediately
	RetryDelay time.Duration
	// RequestsPerMinute throttles requests when positive
	RequestsPerMinute int
	Logger            logger.Logger
	HTTPClient        *http.Client
}

// Client talks to the search, asset and CDN endpoints
type Client struct {
	httpClient  *http.Client
	apiKey      string
	endpoints   Endpoints
	maxAttempts int
	backoff     retry.BackoffStrategy
	limiter     ratelimit.Limiter
	logger      logger.Logger
}

// NewClient creates a client from opts, filling in defaults
func NewClient(opts Options) *Client {
	if opts.Logger == nil {
		opts.Logger = logger.GetLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Minute
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = retry.DefaultMaxAttempts
	}
	if opts.Endpoints == (Endpoints{}) {
		opts.Endpoints = DefaultEndpoints()
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   opts.Timeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   opts.Timeout,
				ResponseHeaderTimeout: opts.Timeout,
				MaxIdleConnsPerHost:   100,
				IdleConnTimeout:       90 * time.Second,
			},
		}
	}

	return &Client{
		httpClient:  httpClient,
		apiKey:      opts.APIKey,
		endpoints:   opts.Endpoints,
		maxAttempts: opts.MaxAttempts,
		backoff:     retry.BackoffFor(opts.RetryDelay),
		limiter:     ratelimit.New(opts.RequestsPerMinute),
		logger:      opts.Logger,
	}
}

// Endpoints returns the endpoints the client was built with
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

// Fetch issues a GET for rawURL and hands the response to parse. The whole
// request is retried on any failure up to the client's attempt limit, by
// default without delay; exhaustion yields a FetchFailure carrying the last error.
func Fetch[T any](ctx context.Context, c *Client, rawURL string, parse ResponseParser[T]) (T, error) {
	safeURL := redactURL(rawURL)
	cfg := &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		Logger:      c.logger,
		Fields:      map[string]interface{}{"url": safeURL},
	}

	result, err := retry.DoWithResult(ctx, func(attempt int) (T, error) {
		return fetchOnce(ctx, c, rawURL, safeURL, attempt, parse)
	}, cfg)
	if err != nil {
		var zero T
		return zero, errs.FetchFailure(safeURL, err)
	}
	return result, nil
}

func fetchOnce[T any](ctx context.Context, c *Client, rawURL, safeURL string, attempt int, parse ResponseParser[T]) (T, error) {
	var zero T

	if err := c.limiter.Wait(ctx); err != nil {
		return zero, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return zero, fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.InfoWithFields("Requesting url", map[string]interface{}{
		"url":     safeURL,
		"attempt": attempt,
	})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return zero, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	return parse(resp)
}

// CheckStatus rejects any non-2xx response
func CheckStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
	return fmt.Errorf("unexpected status code %d: %s", resp.StatusCode, strings.TrimSpace(string(preview)))
}

// DecodeJSON is a ResponseParser for JSON bodies
func DecodeJSON[T any](resp *http.Response) (*T, error) {
	if err := CheckStatus(resp); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var target T
	if err := json.Unmarshal(body, &target); err != nil {
		return nil, fmt.Errorf("failed to parse response %s: %w", bodyPreview(body), err)
	}
	return &target, nil
}

func bodyPreview(body []byte) string {
	s := string(body)
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

// Search fetches one page of image results published in [from, to)
func (c *Client) Search(ctx context.Context, from, to time.Time, page int) (*SearchPage, error) {
	return Fetch(ctx, c, c.endpoints.SearchURL(c.apiKey, from, to, page), DecodeJSON[SearchPage])
}

// Asset looks up a single image by bare identifier and checks that the
// returned image URL names that identifier
func (c *Client) Asset(ctx context.Context, id string) (*Asset, error) {
	asset, err := Fetch(ctx, c, c.endpoints.AssetURL(c.apiKey, id), func(resp *http.Response) (*Asset, error) {
		if err := CheckStatus(resp); err != nil {
			return nil, err
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read response body: %w", err)
		}
		asset, err := decodeAsset(body)
		if err != nil {
			return nil, fmt.Errorf("failed to parse response %s: %w", bodyPreview(body), err)
		}
		return asset, nil
	})
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(asset.Image, id+".jpg") {
		return nil, errs.MalformedInput(id, fmt.Sprintf("unexpected image url %s", asset.Image))
	}
	return asset, nil
}

// FetchTo streams the body of rawURL into write. write is invoked once per
// attempt and must tolerate being called again after a failed attempt.
func (c *Client) FetchTo(ctx context.Context, rawURL string, write func(io.Reader) error) error {
	_, err := Fetch(ctx, c, rawURL, func(resp *http.Response) (struct{}, error) {
		if err := CheckStatus(resp); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, write(resp.Body)
	})
	return err
}
