package mirth

import (
	"net/http"
	"time"
)

// Option configures a Client.
type Option func(*clientOptions)

// clientOptions holds configuration options for the Client.
type clientOptions struct {
	timeout       time.Duration
	timeoutSet    bool
	userAgent     string
	requestedWith string
	skipVerify    bool
	httpClient    *http.Client
}

func defaultOptions() *clientOptions {
	return &clientOptions{
		timeout:       30 * time.Second,
		requestedWith: "mirthctl",
	}
}

// WithTimeout sets the HTTP client timeout. When combined with
// WithHTTPClient it replaces the supplied client's own timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(o *clientOptions) {
		if timeout > 0 {
			o.timeout = timeout
			o.timeoutSet = true
		}
	}
}

// WithUserAgent sets a custom user agent string.
func WithUserAgent(userAgent string) Option {
	return func(o *clientOptions) {
		o.userAgent = userAgent
	}
}

// WithRequestedWith overrides the X-Requested-With header value. Mirth's
// CSRF guard rejects API requests that omit this header.
func WithRequestedWith(value string) Option {
	return func(o *clientOptions) {
		if value != "" {
			o.requestedWith = value
		}
	}
}

// WithInsecureSkipVerify disables certificate verification. Mirth ships
// with a self-signed certificate, so this is common for lab instances.
func WithInsecureSkipVerify() Option {
	return func(o *clientOptions) {
		o.skipVerify = true
	}
}

// WithHTTPClient supplies a custom http.Client. A cookie jar is attached if
// the client has none, since the Mirth session lives in a cookie.
func WithHTTPClient(client *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = client
	}
}
