package runner

import (
	"crypto/tls"
	"net/http"
	"time"
)

// HTTPClientConfig contains HTTP client configuration.
type HTTPClientConfig struct {
	// MaxIdleConns controls the maximum number of idle connections
	MaxIdleConns int

	// MaxIdleConnsPerHost controls the maximum idle connections per host
	MaxIdleConnsPerHost int

	// MaxConnsPerHost limits the total connections per host (0 = unlimited)
	MaxConnsPerHost int

	// IdleConnTimeout is how long idle connections are kept alive
	IdleConnTimeout time.Duration

	// InsecureSkipVerify skips TLS certificate verification
	InsecureSkipVerify bool
}

// DefaultHTTPClientConfig returns defaults sized for the given concurrency.
// The idle pool always fits every in-flight request so connections are
// reused between requests.
func DefaultHTTPClientConfig(concurrency int) HTTPClientConfig {
	perHost := concurrency
	if perHost < 100 {
		perHost = 100
	}
	return HTTPClientConfig{
		MaxIdleConns:        perHost * 2,
		MaxIdleConnsPerHost: perHost,
		IdleConnTimeout:     90 * time.Second,
	}
}

// NewHTTPClient creates the HTTP client shared by every request of a test.
//
// The client has no overall timeout: streaming responses are bounded per
// request through the context instead.
func NewHTTPClient(cfg HTTPClientConfig) *http.Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		ForceAttemptHTTP2:   true,
	}
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &http.Client{Transport: transport}
}
