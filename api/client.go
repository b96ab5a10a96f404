package api

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

	"github.com/charmbracelet/log"
)

const (
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 2
	defaultRetryDelay = time.Second
)

// Options configures a Client
type Options struct {
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// Option is a functional option for configuring the client
type Option func(*Options)

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(o *Options) {
		o.Timeout = timeout
	}
}

// WithRetries sets how many times a failed GET is repeated and the base delay
// between attempts.
func WithRetries(max int, delay time.Duration) Option {
	return func(o *Options) {
		o.MaxRetries = max
		o.RetryDelay = delay
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(o *Options) {
		o.HTTPClient = c
	}
}

// WithLogger sets the trace logger
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// Client talks to the gateway REST API under /api.
type Client struct {
	baseURL    string
	options    Options
	httpClient *http.Client
	logger     *log.Logger
}

// NewClient creates a client for the gateway at server (e.g. http://127.0.0.1:3000).
func NewClient(server string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(server, "/"))
	if err != nil {
		return nil, fmt.Errorf("failed to parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url must be http or https, got %q", server)
	}

	options := Options{
		Timeout:    defaultTimeout,
		MaxRetries: defaultMaxRetries,
		RetryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(&options)
	}

	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: options.Timeout}
	}
	logger := options.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}

	return &Client{
		baseURL:    u.String(),
		options:    options,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// BaseURL returns the gateway base URL
func (c *Client) BaseURL() string { return c.baseURL }

// ListAgents returns all configured agents
func (c *Client) ListAgents(ctx context.Context) ([]Agent, error) {
	var body struct {
		Agents []Agent `json:"agents"`
	}
	if err := c.get(ctx, "/api/agents", &body); err != nil {
		return nil, err
	}
	return body.Agents, nil
}

// ListSessions returns the agent's sessions, most recently modified first.
func (c *Client) ListSessions(ctx context.Context, agent string) ([]Session, error) {
	var body struct {
		Sessions []Session `json:"sessions"`
	}
	if err := c.get(ctx, "/api/agents/"+url.PathEscape(agent)+"/sessions", &body); err != nil {
		return nil, err
	}
	return body.Sessions, nil
}

// CurrentSession returns the agent's active session id, or "" when it has none.
func (c *Client) CurrentSession(ctx context.Context, agent string) (string, error) {
	var body struct {
		SessionID *string `json:"session_id"`
	}
	if err := c.get(ctx, "/api/agents/"+url.PathEscape(agent)+"/session/current", &body); err != nil {
		return "", err
	}
	if body.SessionID == nil {
		return "", nil
	}
	return *body.SessionID, nil
}

// GetSession fetches a persisted session transcript
func (c *Client) GetSession(ctx context.Context, agent, session string) (*SessionFile, error) {
	var body SessionFile
	path := "/api/agents/" + url.PathEscape(agent) + "/sessions/" + url.PathEscape(session)
	if err := c.get(ctx, path, &body); err != nil {
		return nil, err
	}
	return &body, nil
}

// GetReceipts fetches the session's receipts file. A session without one
// yields an empty result rather than an error.
func (c *Client) GetReceipts(ctx context.Context, agent, session string) (*ReceiptFile, error) {
	var body ReceiptFile
	path := "/api/agents/" + url.PathEscape(agent) + "/receipts/" + url.PathEscape(session)
	if err := c.get(ctx, path, &body); err != nil {
		if IsNotFound(err) {
			return &ReceiptFile{}, nil
		}
		return nil, err
	}
	return &body, nil
}

// SlashCommands returns the gateway's slash command catalogue
func (c *Client) SlashCommands(ctx context.Context) ([]SlashCommand, error) {
	var body struct {
		Commands []SlashCommand `json:"commands"`
	}
	if err := c.get(ctx, "/api/slash/commands", &body); err != nil {
		return nil, err
	}
	return body.Commands, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doWithRetries(ctx, func() error {
		return c.do(ctx, http.MethodGet, path, out)
	})
}

func (c *Client) do(ctx context.Context, method, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	c.logger.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "elapsed", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, Status: resp.StatusCode}
		var errResp struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(respBody, &errResp); err == nil {
			apiErr.Message = errResp.Error
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &DecodeError{Path: path, Err: err}
	}
	return nil
}

func (c *Client) doWithRetries(ctx context.Context, fn func() error) error {
	var lastErr error

	for i := 0; i <= c.options.MaxRetries; i++ {
		if i > 0 {
			delay := time.Duration(i) * c.options.RetryDelay
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Retryable() {
			c.logger.Debug("retrying request", "attempt", i+1, "err", err)
			continue
		}
		return err
	}

	return lastErr
}
