package interceptor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/goSession/refresh"
	"github.com/google/uuid"
)

// ErrSessionEnded is returned when a 401 could not be recovered and the session is over.
var ErrSessionEnded = errors.New("session ended")

// DefaultRequestIDHeader carries a per-request correlation id.
const DefaultRequestIDHeader = "X-Request-ID"

// TokenSource exposes the current access token. *session.Store satisfies it.
type TokenSource interface {
	Token() string
}

// Refresher renews the access token. *refresh.Coordinator satisfies it.
type Refresher interface {
	Refresh(ctx context.Context) refresh.Result
}

// Config configures a [Transport].
type Config struct {
	// Base performs the actual exchange. Defaults to http.DefaultTransport.
	Base      http.RoundTripper
	Tokens    TokenSource
	Refresher Refresher
	// NoAuthPaths never carry the bearer header. Entries match exactly, or by prefix when
	// they end in "/*".
	NoAuthPaths []string
	// RequestIDHeader is set to a fresh UUID when absent. "-" disables it.
	RequestIDHeader string
	Logger          *slog.Logger
	// OnReplay runs each time a request is replayed after a 401.
	OnReplay func()
}

// Transport is an http.RoundTripper enforcing the session's credential rules.
type Transport struct {
	base      http.RoundTripper
	tokens    TokenSource
	refresher Refresher
	exact     map[string]struct{}
	prefixes  []string
	idHeader  string
	logger    *slog.Logger
	onReplay  func()
}

// New creates a Transport.
func New(cfg Config) *Transport {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	idHeader := cfg.RequestIDHeader
	if idHeader == "" {
		idHeader = DefaultRequestIDHeader
	}
	t := &Transport{
		base:      base,
		tokens:    cfg.Tokens,
		refresher: cfg.Refresher,
		exact:     make(map[string]struct{}),
		idHeader:  idHeader,
		logger:    logger,
		onReplay:  cfg.OnReplay,
	}
	for _, p := range cfg.NoAuthPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			t.prefixes = append(t.prefixes, prefix+"/")
			t.exact[prefix] = struct{}{}
			continue
		}
		t.exact[trimSlash(p)] = struct{}{}
	}
	return t
}

// Client returns an *http.Client using t.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// Public reports whether path is on the no-auth allowlist.
func (t *Transport) Public(path string) bool {
	path = trimSlash(path)
	if _, ok := t.exact[path]; ok {
		return true
	}
	for _, p := range t.prefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

type replayKey struct{}

// IsReplay reports whether ctx belongs to a request already replayed after a 401.
func IsReplay(ctx context.Context) bool {
	v, _ := ctx.Value(replayKey{}).(bool)
	return v
}

// RoundTrip implements http.RoundTripper. The caller's request is never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	getBody, err := rewindable(req)
	if err != nil {
		return nil, err
	}

	public := t.Public(req.URL.Path)
	sent := ""
	if !public && t.tokens != nil {
		sent = t.tokens.Token()
	}

	requestID := ""
	if t.idHeader != "-" && req.Header.Get(t.idHeader) == "" {
		requestID = uuid.NewString()
	}

	out, err := t.prepare(req.Context(), req, getBody, requestID, sent)
	if err != nil {
		return nil, err
	}
	resp, err := t.base.RoundTrip(out)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || public || IsReplay(req.Context()) || t.tokens == nil {
		return resp, err
	}

	current := t.tokens.Token()
	if sent == "" && current == "" {
		// nothing was authenticated, so there is nothing to renew
		return resp, nil
	}
	if current == "" || current == sent {
		if t.refresher == nil {
			return resp, nil
		}
		res := t.refresher.Refresh(req.Context())
		switch res.Outcome() {
		case refresh.OutcomeMustLogout:
			drain(resp)
			return nil, fmt.Errorf("%w: %s", ErrSessionEnded, res.ErrorType)
		case refresh.OutcomeRetrySilently:
			return resp, nil
		}
		current = t.tokens.Token()
		if current == "" {
			return resp, nil
		}
	}

	drain(resp)
	if t.onReplay != nil {
		t.onReplay()
	}
	t.logger.Debug("goSession: replaying request after 401", "method", req.Method, "path", req.URL.Path)
	replayCtx := context.WithValue(req.Context(), replayKey{}, true)
	replay, err := t.prepare(replayCtx, req, getBody, requestID, current)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(replay)
}

func (t *Transport) prepare(ctx context.Context, req *http.Request, getBody func() (io.ReadCloser, error), requestID, token string) (*http.Request, error) {
	out := req.Clone(ctx)
	if getBody != nil {
		body, err := getBody()
		if err != nil {
			return nil, fmt.Errorf("interceptor: rewind request body: %w", err)
		}
		out.Body = body
		out.GetBody = getBody
	}
	if requestID != "" {
		out.Header.Set(t.idHeader, requestID)
	}
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	}
	return out, nil
}

// rewindable returns a body factory so the request can be replayed.
func rewindable(req *http.Request) (func() (io.ReadCloser, error), error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	if req.GetBody != nil {
		_ = req.Body.Close()
		return req.GetBody, nil
	}
	raw, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("interceptor: buffer request body: %w", err)
	}
	return func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}, nil
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}

func trimSlash(p string) string {
	if len(p) > 1 {
		return strings.TrimRight(p, "/")
	}
	return p
}
