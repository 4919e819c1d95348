package synology

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boxtrack/boxtrack/pkg/creds"
	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPort    = 5000
	DefaultTimeout = 10 * time.Second
)

type Config struct {
	Scheme   string        `yaml:"scheme" validate:"omitempty,oneof=http https"`
	Host     string        `yaml:"host" validate:"required"`
	Port     int           `yaml:"port" validate:"min=0,max=65535"`
	Account  string        `yaml:"account" validate:"required"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout" validate:"min=0"`
}

var validate = validator.New()

// Client keeps one Surveillance Station session against a single device.
// Safe for concurrent use.
type Client struct {
	cfg    Config
	base   string
	client *http.Client
	reauth bool
	agent  string

	mu     sync.RWMutex
	sid    string
	closed bool

	login singleflight.Group
}

type Option func(c *Client)

// WithHTTPClient replaces the transport owned by the client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithReauth toggles transparent re-login when the device rejects the session.
func WithReauth(enabled bool) Option {
	return func(c *Client) {
		c.reauth = enabled
	}
}

// WithUserAgent sets User-Agent header of every device request.
func WithUserAgent(agent string) Option {
	return func(c *Client) {
		c.agent = agent
	}
}

func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Scheme == "" {
		cfg.Scheme = "http"
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("synology: config: %w", err)
	}

	c := &Client{
		cfg:    cfg,
		base:   cfg.Scheme + "://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		client: &http.Client{Timeout: cfg.Timeout},
		reauth: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	// login query carries the password in encoded form
	creds.AddSecret(cfg.Password)
	creds.AddSecret(url.QueryEscape(cfg.Password))

	return c, nil
}

// URL returns device base address, without credentials.
func (c *Client) URL() string {
	return c.base
}

// Token returns current session token, empty before first successful login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sid
}

// Initialize opens the session.
func (c *Client) Initialize(ctx context.Context) error {
	return c.Authenticate(ctx)
}

// Authenticate logs in and replaces the session token. Concurrent calls share
// one login request and all get its result. The token is changed only on success.
func (c *Client) Authenticate(ctx context.Context) error {
	ch := c.login.DoChan("login", func() (any, error) {
		// the login is shared, so it should not die with the first caller
		return nil, c.authenticate(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return &TransportError{Err: ctx.Err()}
	}
}

func (c *Client) authenticate(ctx context.Context) error {
	query := url.Values{
		"api":     {APIAuth},
		"method":  {"Login"},
		"version": {strconv.Itoa(VersionAuth)},
		"account": {c.cfg.Account},
		"passwd":  {c.cfg.Password},
		"session": {SessionName},
		"format":  {"sid"},
	}

	body, _, err := c.send(ctx, http.MethodGet, PathAuth, query)
	if err != nil {
		return err
	}

	res, err := parseResponse(body)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return &AuthenticationError{Code: apiErr.Code, Raw: body}
		}
		return &AuthenticationError{Raw: body, Err: err}
	}

	var data struct {
		SID string `json:"sid"`
	}
	if err = res.Unmarshal(&data); err != nil {
		return &AuthenticationError{Raw: body, Err: err}
	}
	if data.SID == "" {
		return &AuthenticationError{Raw: body, Err: errNoToken}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return &TransportError{Err: errClosed}
	}

	creds.AddSecret(data.SID)
	if c.sid != data.SID {
		creds.RemoveSecret(c.sid)
	}

	c.sid = data.SID
	return nil
}

// Logout closes the session on the device and forgets the token.
func (c *Client) Logout(ctx context.Context) error {
	sid := c.Token()
	if sid == "" {
		return nil
	}

	query := url.Values{
		"api":     {APIAuth},
		"method":  {"Logout"},
		"version": {strconv.Itoa(VersionAuth)},
		"session": {SessionName},
		ParamSID:  {sid},
	}

	body, _, err := c.send(ctx, http.MethodGet, PathAuth, query)
	if err != nil {
		return err
	}

	c.mu.Lock()
	if c.sid == sid {
		c.sid = ""
		creds.RemoveSecret(sid)
	}
	c.mu.Unlock()

	_, err = parseResponse(body)
	return err
}

// Close releases the transport. The client is unusable after Close.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	creds.RemoveSecret(c.sid)
	c.sid = ""
	c.mu.Unlock()

	c.client.CloseIdleConnections()
	return nil
}

// Dispatch sends an authenticated request and checks the response envelope.
// GET params go to the query string, POST params go to the form body.
func (c *Client) Dispatch(ctx context.Context, req Request) (*Response, error) {
	if err := checkMethod(req.HTTPMethod); err != nil {
		return nil, err
	}

	var res *Response

	err := c.call(ctx, func(sid string) error {
		body, _, err := c.send(ctx, req.HTTPMethod, req.Path, req.values(sid))
		if err != nil {
			return err
		}
		res, err = parseResponse(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// call runs fn with current token. If the device rejects the session, the
// client logs in once and repeats fn once.
func (c *Client) call(ctx context.Context, fn func(sid string) error) error {
	sid := c.Token()
	if sid == "" {
		return &AuthenticationError{Err: errNoSession}
	}

	err := fn(sid)
	if err == nil || !c.reauth || !sessionInvalid(err) {
		return err
	}

	if err = c.refresh(ctx, sid); err != nil {
		return err
	}

	return fn(c.Token())
}

// refresh logs in again unless another caller already replaced the stale token.
func (c *Client) refresh(ctx context.Context, stale string) error {
	if sid := c.Token(); sid != "" && sid != stale {
		return nil
	}
	return c.Authenticate(ctx)
}

func sessionInvalid(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.SessionInvalid()
}

func (c *Client) send(ctx context.Context, method, path string, values url.Values) ([]byte, http.Header, error) {
	var req *http.Request
	var err error

	switch method {
	case http.MethodGet:
		req, err = http.NewRequestWithContext(ctx, method, c.base+path+"?"+values.Encode(), nil)
	case http.MethodPost:
		body := strings.NewReader(values.Encode())
		if req, err = http.NewRequestWithContext(ctx, method, c.base+path, body); err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	default:
		return nil, nil, &UnsupportedMethodError{Method: method}
	}
	if err != nil {
		return nil, nil, &TransportError{Err: c.hideQuery(err, path)}
	}

	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()

	if closed {
		return nil, nil, &TransportError{Err: errClosed}
	}

	res, err := c.client.Do(req)
	if err != nil {
		return nil, nil, &TransportError{Err: c.hideQuery(err, path)}
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil, nil, &TransportError{StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, nil, &TransportError{Err: err}
	}

	return body, res.Header, nil
}

// hideQuery replaces request URL in client errors with one without the query,
// which holds the session token or the password.
func (c *Client) hideQuery(err error, path string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &url.Error{Op: urlErr.Op, URL: c.base + path, Err: urlErr.Err}
	}
	return err
}
