// Package httpclient provides a reusable HTTP client with context
// management, timeouts, and connection pooling. It is used for fetching
// PDFs and public bucket objects.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/diatomlab/diatom-annotator/internal/logging"
)

const (
	// DefaultTimeout applies when the request context has no deadline.
	DefaultTimeout = 30 * time.Second

	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultIdleConnTimeout     = 90 * time.Second
	defaultTLSHandshakeTimeout = 10 * time.Second
	defaultDialTimeout         = 30 * time.Second

	defaultUserAgent = "diatom-annotator"
)

// MaxResponseBytes caps downloaded payloads. Scientific PDFs run large but
// a response past this size indicates a misdirected URL, not a paper.
const MaxResponseBytes = 256 << 20

// Client wraps http.Client with pooling, a default timeout, and User-Agent
// injection. Safe for concurrent use.
type Client struct {
	client         *http.Client
	defaultTimeout time.Duration
	userAgent      string
}

// Config holds optional overrides for New.
type Config struct {
	DefaultTimeout time.Duration
	UserAgent      string
}

// New creates a Client with pooled transport settings.
func New(cfg Config) *Client {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   defaultDialTimeout,
			KeepAlive: defaultDialTimeout,
		}).DialContext,
		MaxIdleConns:        defaultMaxIdleConns,
		MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
		IdleConnTimeout:     defaultIdleConnTimeout,
		TLSHandshakeTimeout: defaultTLSHandshakeTimeout,
	}
	return &Client{
		client:         &http.Client{Transport: transport},
		defaultTimeout: cfg.DefaultTimeout,
		userAgent:      cfg.UserAgent,
	}
}

// Do executes the request, applying the default timeout when the context
// has no deadline, and injecting the User-Agent.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.defaultTimeout)
		// The body reader outlives this function; tie cancelation to it.
		req = req.WithContext(ctx)
		resp, err := c.do(req)
		if err != nil {
			cancel()
			return nil, err
		}
		resp.Body = &cancelReadCloser{ReadCloser: resp.Body, cancel: cancel}
		return resp, nil
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	logging.Trace("outgoing request", "method", req.Method, "url", req.URL.String())
	return c.client.Do(req)
}

// Get fetches a URL and returns the body bytes. Non-2xx statuses are
// errors.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", url, err)
	}
	if len(body) > MaxResponseBytes {
		return nil, fmt.Errorf("response from %s exceeds %d bytes", url, MaxResponseBytes)
	}
	return body, nil
}

// Head checks whether a URL resolves with a 2xx status.
func (c *Client) Head(ctx context.Context, url string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
	if err != nil {
		return false, fmt.Errorf("creating request for %s: %w", url, err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode <= 299, nil
}

type cancelReadCloser struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
