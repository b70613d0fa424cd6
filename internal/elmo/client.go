package elmo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/oshokin/alarm-gateway/internal/domain/alarm"
	"github.com/oshokin/alarm-gateway/internal/logger"
)

// DefaultTimeout bounds every call when no WithTimeout option is given.
const DefaultTimeout = 5 * time.Second

// Paths of the vendor API, relative to the base URL.
const (
	lockPath        = "/api/panel/syncLogin"
	unlockPath      = "/api/panel/syncLogout"
	sendCommandPath = "/api/panel/syncSendCommand"
)

// Command payload values understood by syncSendCommand.
const (
	commandArm    = 1
	commandDisarm = 2
	// elementsClass and elementsIndexes target all sectors at once.
	elementsClass   = 1
	elementsIndexes = 1
	lockUserID      = 1
)

// maxBodySize caps how much of a vendor response is read.
const maxBodySize = 1 << 20

// sessionIDPattern extracts the session id embedded in the login page.
var sessionIDPattern = regexp.MustCompile(`var\s+sessionId\s*=\s*'([a-fA-F0-9\-]+)'`)

var (
	// errBaseURLRequired is returned when the client is built without a base URL.
	errBaseURLRequired = errors.New("base URL must be provided")
	// errVendorRequired is returned when the client is built without a vendor.
	errVendorRequired = errors.New("vendor must be provided")
	// errNoSession is returned when a call needs a session and none is bound.
	errNoSession = errors.New("no session bound to the client")
)

// Client talks to one vendor deployment on behalf of one session.
// It holds no state shared with other clients.
type Client struct {
	// baseURL is the vendor API root without a trailing slash.
	baseURL string
	// vendor selects the vendor-specific login page.
	vendor string
	// httpClient performs the requests.
	httpClient *http.Client
	// callTimeout is the default timeout for individual calls.
	callTimeout time.Duration
	// sessionID is the bound session token, empty until Auth or WithSession.
	sessionID string
}

// Option configures client behaviour.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for requests.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithTransport sends requests through rt, keeping the tracing wrapper
// around it. Use it for custom TLS roots or proxies.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.httpClient = newHTTPClient(rt)
		}
	}
}

// WithTimeout sets a default timeout for vendor calls.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithSession binds an existing session token without authenticating again.
func WithSession(token alarm.Token) Option {
	return func(c *Client) {
		c.sessionID = token.String()
	}
}

// New creates a client for the vendor API rooted at baseURL.
func New(baseURL, vendor string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}

	if strings.TrimSpace(vendor) == "" {
		return nil, errVendorRequired
	}

	client := &Client{
		baseURL:     baseURL,
		vendor:      vendor,
		httpClient:  newHTTPClient(http.DefaultTransport),
		callTimeout: DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// newHTTPClient wraps rt so every vendor call gets a client span and carries
// the trace context of the incoming request.
func newHTTPClient(rt http.RoundTripper) *http.Client {
	return &http.Client{
		Transport: otelhttp.NewTransport(rt),
	}
}

// Session returns the bound session token, if any.
func (c *Client) Session() alarm.Token {
	return alarm.Token(c.sessionID)
}

// Auth logs in with the given credentials and binds the returned session.
func (c *Client) Auth(ctx context.Context, username, password string) (alarm.Token, error) {
	form := url.Values{
		"UserName":   {username},
		"Password":   {password},
		"RememberMe": {"false"},
	}

	body, err := c.post(ctx, "/"+url.PathEscape(c.vendor), form)
	if err != nil {
		return "", fmt.Errorf("auth: %w", err)
	}

	match := sessionIDPattern.FindSubmatch(body)
	if match == nil {
		return "", fmt.Errorf("auth: session id not found in login response: %w", alarm.ErrPermissionDenied)
	}

	c.sessionID = string(match[1])

	logger.DebugKV(ctx, "Vendor session established", "vendor", c.vendor)

	return alarm.Token(c.sessionID), nil
}

// Lock takes the global system lock with the given access code.
// The returned Lock must be released by the caller.
func (c *Client) Lock(ctx context.Context, code alarm.AccessCode) (*Lock, error) {
	if c.sessionID == "" {
		return nil, fmt.Errorf("lock: %w: %w", errNoSession, alarm.ErrPermissionDenied)
	}

	form := url.Values{
		"userId":    {strconv.Itoa(lockUserID)},
		"password":  {string(code)},
		"sessionId": {c.sessionID},
	}

	body, err := c.post(ctx, lockPath, form)
	if err != nil {
		return nil, fmt.Errorf("lock: %w", err)
	}

	var granted bool
	if err := json.Unmarshal(body, &granted); err != nil {
		return nil, fmt.Errorf("lock: decode response: %w: %w", err, alarm.ErrServiceUnavailable)
	}

	if !granted {
		return nil, fmt.Errorf("lock: refused by the alarm system: %w", alarm.ErrServiceUnavailable)
	}

	return &Lock{client: c}, nil
}

// Arm arms all alarms. The system lock must be held.
func (c *Client) Arm(ctx context.Context) error {
	return c.sendCommand(ctx, commandArm)
}

// Disarm disarms all alarms. The system lock must be held.
func (c *Client) Disarm(ctx context.Context) error {
	return c.sendCommand(ctx, commandDisarm)
}

// sendCommand posts a command for all sectors.
func (c *Client) sendCommand(ctx context.Context, command int) error {
	if c.sessionID == "" {
		return fmt.Errorf("send command: %w: %w", errNoSession, alarm.ErrPermissionDenied)
	}

	form := url.Values{
		"CommandType":     {strconv.Itoa(command)},
		"ElementsClass":   {strconv.Itoa(elementsClass)},
		"ElementsIndexes": {strconv.Itoa(elementsIndexes)},
		"sessionId":       {c.sessionID},
	}

	if _, err := c.post(ctx, sendCommandPath, form); err != nil {
		return fmt.Errorf("send command %d: %w", command, err)
	}

	return nil
}

// unlock releases the global system lock.
func (c *Client) unlock(ctx context.Context) error {
	form := url.Values{
		"sessionId": {c.sessionID},
	}

	if _, err := c.post(ctx, unlockPath, form); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}

	return nil
}

// post sends a form-encoded request and returns the response body.
// Failures are classified as ErrPermissionDenied or ErrServiceUnavailable.
func (c *Client) post(ctx context.Context, path string, form url.Values) ([]byte, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w: %w", err, alarm.ErrServiceUnavailable)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, alarm.ErrServiceUnavailable)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w: %w", err, alarm.ErrServiceUnavailable)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, alarm.ErrPermissionDenied)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, alarm.ErrServiceUnavailable)
	}

	return body, nil
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}
