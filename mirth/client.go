package mirth

import (
	"context"
	"crypto/tls"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"

	"github.com/blang/semver"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// Client represents a Mirth Connect API session. The session cookie issued
// at login is carried by the underlying cookie jar, so a single Client must
// be reused across calls.
type Client struct {
	baseURL string
	http    *resty.Client
	logger  zerolog.Logger

	mu           sync.RWMutex
	version      semver.Version
	versionKnown bool
}

// NewClient creates a new Mirth Connect client. The base URL may be given
// with or without the /api suffix. Credentials are not required until Login
// is called.
func NewClient(baseURL string, logger zerolog.Logger, opts ...Option) (*Client, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}

	normalized, err := normalizeBaseURL(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	httpClient := newRestyClient(options)
	httpClient.SetBaseURL(normalized + "/api")

	return &Client{
		baseURL: normalized,
		http:    httpClient,
		logger:  logger,
	}, nil
}

func newRestyClient(o *clientOptions) *resty.Client {
	var rc *resty.Client
	if o.httpClient != nil {
		// The Mirth session lives in a JSESSIONID cookie, so the
		// supplied client must hold cookies.
		if o.httpClient.Jar == nil {
			o.httpClient.Jar, _ = cookiejar.New(nil)
		}
		rc = resty.NewWithClient(o.httpClient)
		// A supplied client keeps its own timeout unless one was
		// requested explicitly.
		if o.timeoutSet {
			rc.SetTimeout(o.timeout)
		}
	} else {
		rc = resty.New()
		rc.SetTimeout(o.timeout)
	}

	rc.SetHeader("Accept", "application/xml")
	rc.SetHeader("X-Requested-With", o.requestedWith)
	if o.userAgent != "" {
		rc.SetHeader("User-Agent", o.userAgent)
	}
	if o.skipVerify {
		rc.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	}

	return rc
}

// normalizeBaseURL validates the configured address, defaults the scheme to
// https and strips any trailing slash or /api suffix.
func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	normalized := strings.TrimRight(u.String(), "/")
	return strings.TrimSuffix(normalized, "/api"), nil
}

// URL returns the normalized server address the client talks to.
func (c *Client) URL() string {
	return c.baseURL
}

// do performs a request against the API and returns the response body.
// Non-2xx responses are mapped to *APIError.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body []byte) ([]byte, error) {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParamsFromValues(params)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/xml")
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(method), path, err)
	}
	if err := c.checkResponse(resp); err != nil {
		return nil, err
	}

	return resp.Body(), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, params, nil)
}

func (c *Client) checkResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &APIError{
		StatusCode: resp.StatusCode(),
		Message:    http.StatusText(resp.StatusCode()),
		Body:       strings.TrimSpace(string(resp.Body())),
	}
}

// Login authenticates against the server and establishes the session
// cookie. Any status other than success yields ErrLoginFailed, with the
// returned LoginStatus carrying the server's reason.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginStatus, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"username": username,
			"password": password,
		}).
		Post("/users/_login")
	if err != nil {
		return nil, fmt.Errorf("login request: %w", err)
	}

	// The login status payload is present on both success and failure
	// responses, so decode it before looking at the HTTP status.
	var status LoginStatus
	if err := xml.Unmarshal(resp.Body(), &status); err != nil {
		if respErr := c.checkResponse(resp); respErr != nil {
			return nil, respErr
		}
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	if !status.LoggedIn() {
		return &status, fmt.Errorf("%w: %s", ErrLoginFailed, status.Status)
	}

	if status.UpdatedUsername != "" && status.UpdatedUsername != username {
		c.logger.Debug().Str("username", status.UpdatedUsername).Msg("Server updated the login username")
	}

	// The message posting endpoint depends on the server version, so
	// resolve it while the session is fresh. Best effort: older servers
	// work fine without it.
	if _, err := c.ServerVersion(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Could not determine server version")
	}

	c.logger.Debug().Str("url", c.baseURL).Msg("Logged in to Mirth")
	return &status, nil
}

// Logout invalidates the server session.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodPost, "/users/_logout", nil, nil)
	return err
}

// ServerVersion returns the Mirth server version, fetching and caching it
// on first use.
func (c *Client) ServerVersion(ctx context.Context) (semver.Version, error) {
	if v, ok := c.cachedVersion(); ok {
		return v, nil
	}

	body, err := c.get(ctx, "/server/version", nil)
	if err != nil {
		return semver.Version{}, err
	}

	version, err := parseServerVersion(string(body))
	if err != nil {
		return semver.Version{}, err
	}

	c.mu.Lock()
	c.version = version
	c.versionKnown = true
	c.mu.Unlock()

	c.logger.Debug().Str("version", version.String()).Msg("Resolved Mirth server version")
	return version, nil
}

func (c *Client) cachedVersion() (semver.Version, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version, c.versionKnown
}

// parseServerVersion parses the plain-text /server/version response. Builds
// after 3.x append a fourth build component which semver does not accept,
// so only the first three components are kept.
func parseServerVersion(raw string) (semver.Version, error) {
	raw = strings.TrimSpace(raw)
	if parts := strings.Split(raw, "."); len(parts) > 3 {
		raw = strings.Join(parts[:3], ".")
	}

	version, err := semver.ParseTolerant(raw)
	if err != nil {
		return semver.Version{}, fmt.Errorf("parse server version %q: %w", raw, err)
	}
	return version, nil
}
