// Package api is the transport to the dashboard server: the table fragment
// endpoint and the two proposal endpoints (price change, restock). It owns
// same-origin credentials (a cookie jar), the anti-forgery token, request
// ids, and per-client request metrics.
package api

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/config"
)

const (
	// RequestedWithHeader marks requests as script-initiated; the table
	// endpoint only returns the bare fragment when it is present.
	RequestedWithHeader = "X-Requested-With"
	requestedWithValue  = "XMLHttpRequest"
	RequestIDHeader     = "X-Request-ID"

	maxResponseBytes = 8 << 20
)

// ErrNoCSRFToken is logged when the jar holds no anti-forgery cookie.
var ErrNoCSRFToken = errors.New("api: anti-forgery cookie not found")

// Endpoint names used in logs and metric labels.
const (
	EndpointTable   = "table"
	EndpointPrice   = "price"
	EndpointRestock = "restock"
)

// Settings captures where the server lives and how to authenticate with it.
type Settings struct {
	BaseURL       string
	TablePath     string
	PricePath     string
	RestockPath   string
	Timeout       time.Duration
	SessionCookie string
	SessionID     string
	CSRFCookie    string
	CSRFHeader    string
	CSRFToken     string
}

// SettingsFromConfig builds Settings from the project configuration.
func SettingsFromConfig(cfg *config.Config) Settings {
	s := Settings{
		BaseURL:       config.DefaultBaseURL,
		TablePath:     config.DefaultTablePath,
		PricePath:     config.DefaultPricePath,
		RestockPath:   config.DefaultRestockPath,
		Timeout:       config.DefaultRequestTimeout,
		SessionCookie: config.DefaultSessionCookie,
		CSRFCookie:    config.DefaultCSRFCookie,
		CSRFHeader:    config.DefaultCSRFHeader,
	}
	if cfg == nil {
		return s
	}
	srv := cfg.Project.Server
	s.BaseURL = srv.BaseURL
	s.TablePath = srv.TablePath
	s.PricePath = srv.PricePath
	s.RestockPath = srv.RestockPath
	s.Timeout = srv.RequestTimeout
	s.SessionCookie = srv.SessionCookie
	s.SessionID = srv.SessionID
	s.CSRFCookie = srv.CSRFCookie
	s.CSRFHeader = srv.CSRFHeader
	s.CSRFToken = srv.CSRFToken
	return s
}

// Client talks to the dashboard server.
type Client struct {
	base     *url.URL
	settings Settings
	http     *http.Client
	csrf     string
	logger   *zap.Logger
	metrics  *metrics
	newID    func() string
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client. A client without a
// cookie jar receives the credential jar.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithRequestIDs overrides the request id generator.
func WithRequestIDs(fn func() string) Option {
	return func(c *Client) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewClient prepares a client for settings. The anti-forgery token is read
// once here, from the cookie jar, and reused for every mutating call.
func NewClient(settings Settings, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(settings.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: invalid base url %q", settings.BaseURL)
	}
	if settings.Timeout <= 0 {
		settings.Timeout = config.DefaultRequestTimeout
	}
	if settings.CSRFHeader == "" {
		settings.CSRFHeader = config.DefaultCSRFHeader
	}
	c := &Client{
		base:     base,
		settings: settings,
		http:     &http.Client{Timeout: settings.Timeout},
		logger:   zap.NewNop(),
		metrics:  newMetrics(),
		newID:    func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("api: cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	c.seedCookies()
	c.csrf = c.readCSRFCookie()
	if c.csrf == "" {
		c.logger.Warn("anti-forgery token unavailable", zap.Error(ErrNoCSRFToken), zap.String("cookie", settings.CSRFCookie))
	}
	return c, nil
}

func (c *Client) seedCookies() {
	var cookies []*http.Cookie
	if c.settings.SessionCookie != "" && c.settings.SessionID != "" {
		cookies = append(cookies, &http.Cookie{Name: c.settings.SessionCookie, Value: c.settings.SessionID, Path: "/"})
	}
	if c.settings.CSRFCookie != "" && c.settings.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: c.settings.CSRFCookie, Value: c.settings.CSRFToken, Path: "/"})
	}
	if len(cookies) > 0 {
		c.http.Jar.SetCookies(c.base, cookies)
	}
}

func (c *Client) readCSRFCookie() string {
	if c.settings.CSRFCookie == "" {
		return ""
	}
	for _, cookie := range c.http.Jar.Cookies(c.base) {
		if cookie.Name == c.settings.CSRFCookie {
			return cookie.Value
		}
	}
	return ""
}

// CSRFToken returns the anti-forgery token captured at construction.
func (c *Client) CSRFToken() string {
	return c.csrf
}

func (c *Client) resolve(path string, query url.Values) string {
	u := *c.base
	u.Path = strings.TrimRight(c.base.Path, "/") + path
	u.RawQuery = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, "", err
	}
	id := c.newID()
	req.Header.Set(RequestedWithHeader, requestedWithValue)
	req.Header.Set(RequestIDHeader, id)
	return req, id, nil
}

// do executes req and returns the status and a bounded body.
func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, data, nil
}

// postJSON sends payload with the anti-forgery header and credentials.
func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, id, err := c.newRequest(ctx, http.MethodPost, c.resolve(path, nil), bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(c.settings.CSRFHeader, c.csrf)
	start := time.Now()
	status, data, err := c.do(req)
	c.logger.Debug("request finished",
		zap.String("endpoint", endpoint),
		zap.String("request_id", id),
		zap.Int("status", status),
		zap.Duration("latency", time.Since(start)),
		zap.Error(err),
	)
	c.metrics.observe(endpoint, time.Since(start))
	return status, data, err
}
