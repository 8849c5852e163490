package httpclient

import (
	"net"
	"net/http"
	"time"
)

// DefaultTimeout is used when a caller passes a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// NewTransport creates a transport with strict connection timeouts. Request
// deadlines come from the request context.
func NewTransport(timeout time.Duration) *http.Transport {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
}

// Seconds converts a configured number of seconds into a duration.
func Seconds(n int) time.Duration {
	if n <= 0 {
		return DefaultTimeout
	}
	return time.Duration(n) * time.Second
}
