// internal/models/httpclient.go
package models

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Common HTTP errors surfaced on cards when the body carries no message
var (
	ErrUnauthorized   = errors.New("unauthorized (401)")
	ErrNoCredits      = errors.New("insufficient credits (402)")
	ErrRateLimit      = errors.New("rate limit exceeded (429)")
	ErrServerBusy     = errors.New("server busy (503)")
	ErrBadGateway     = errors.New("bad gateway (502)")
	ErrGatewayTimeout = errors.New("gateway timeout (504)")
)

// NewHTTPClient returns the pooled client used for chat-completion calls.
// Extra headers are added to every outgoing request.
func NewHTTPClient(timeout time.Duration, headers map[string]string) *http.Client {
	var transport http.RoundTripper = &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          20,
		MaxIdleConnsPerHost:   10,
	}
	if len(headers) > 0 {
		transport = &headerTransport{base: transport, headers: headers}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// headerTransport sets fixed headers on each request
type headerTransport struct {
	base    http.RoundTripper
	headers map[string]string
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}
	return t.base.RoundTrip(req)
}

// statusError returns a descriptive error for HTTP status
func statusError(code int) error {
	switch code {
	case 401:
		return ErrUnauthorized
	case 402:
		return ErrNoCredits
	case 429:
		return ErrRateLimit
	case 502:
		return ErrBadGateway
	case 503:
		return ErrServerBusy
	case 504:
		return ErrGatewayTimeout
	default:
		return fmt.Errorf("HTTP %d", code)
	}
}
