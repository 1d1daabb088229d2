package authapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config configures a [Client].
type Config struct {
	BaseURL     string
	LoginPath   string
	RefreshPath string
	LogoutPath  string
	// Timeout bounds each HTTP exchange. Ignored when HTTPClient is supplied.
	Timeout time.Duration
	// HTTPClient overrides the transport. It should carry a cookie jar when the server
	// uses httpOnly refresh cookies.
	HTTPClient *http.Client
	UserAgent  string
}

// DefaultConfig returns the conventional endpoint layout.
func DefaultConfig() Config {
	return Config{
		LoginPath:   "/auth/login",
		RefreshPath: "/auth/refresh",
		LogoutPath:  "/auth/logout",
		Timeout:     10 * time.Second,
		UserAgent:   "goSession",
	}
}

// Client talks to the authentication endpoints. It is safe for concurrent use.
type Client struct {
	cfg      Config
	base     *url.URL
	http     *http.Client
	validate *validator.Validate
}

// New validates cfg and creates a Client. Zero-valued paths fall back to [DefaultConfig].
func New(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.LoginPath == "" {
		cfg.LoginPath = def.LoginPath
	}
	if cfg.RefreshPath == "" {
		cfg.RefreshPath = def.RefreshPath
	}
	if cfg.LogoutPath == "" {
		cfg.LogoutPath = def.LogoutPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("authapi: parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("authapi: base url must be http or https")
	}

	hc := cfg.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		hc = &http.Client{Timeout: cfg.Timeout, Jar: jar}
	}

	return &Client{cfg: cfg, base: base, http: hc, validate: NewValidator()}, nil
}

// Paths returns the login, refresh, and logout paths. The interceptor keeps them off the
// bearer-token path.
func (c *Client) Paths() []string {
	return []string{c.cfg.LoginPath, c.cfg.RefreshPath, c.cfg.LogoutPath}
}

// Login exchanges credentials for a session.
func (c *Client) Login(ctx context.Context, req LoginRequest) (*LoginData, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	env, err := post[LoginData](ctx, c, "login", c.cfg.LoginPath, req, "")
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: login data missing", ErrInvalidResponse)
	}
	return env.Data, nil
}

// Refresh renews the access token. 401 and 403 come back as a [*StatusError] for which
// [IsUnauthorized] is true.
func (c *Client) Refresh(ctx context.Context, req RefreshRequest) (*RefreshData, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, describe(err))
	}
	env, err := post[RefreshData](ctx, c, "refresh", c.cfg.RefreshPath, req, "")
	if err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, fmt.Errorf("%w: refresh data missing", ErrInvalidResponse)
	}
	return env.Data, nil
}

// Logout tells the server to end the session. The body of a successful response is not
// inspected.
func (c *Client) Logout(ctx context.Context, accessToken string) error {
	httpReq, err := c.newRequest(ctx, c.cfg.LogoutPath, nil, accessToken)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer drain(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: "logout", Code: resp.StatusCode}
	}
	return nil
}

func post[T any](ctx context.Context, c *Client, op, path string, body any, accessToken string) (*Envelope[T], error) {
	httpReq, err := c.newRequest(ctx, path, body, accessToken)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Op: op, Code: resp.StatusCode}
		var env Envelope[json.RawMessage]
		if json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&env) == nil {
			se.Message = env.Message
		}
		return nil, se
	}

	env, err := Decode[T](resp.Body, c.validate)
	if err != nil {
		return nil, err
	}
	if env.Status != http.StatusOK {
		return nil, &StatusError{Op: op, Code: env.Status, Message: env.Message}
	}
	return env, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body any, accessToken string) (*http.Request, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base.String()+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}
	return req, nil
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxBodyBytes))
	_ = body.Close()
}
