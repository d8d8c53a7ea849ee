// Package httpclient provides a shared HTTP client factory so every
// provider uses the same transport configuration.
package httpclient

import (
	"net"
	"net/http"
	"os"
	"strconv"
	"time"
)

// ClientConfig holds configuration options for creating HTTP clients.
type ClientConfig struct {
	// Timeout specifies a time limit for requests made by the client.
	// Translation calls for large chunks can legitimately run for
	// minutes, so the default is generous.
	Timeout time.Duration

	// DialTimeout is the maximum amount of time a dial will wait for a
	// connect to complete.
	DialTimeout time.Duration

	// TLSHandshakeTimeout bounds the TLS handshake.
	TLSHandshakeTimeout time.Duration

	// MaxIdleConnsPerHost controls keep-alive connections per host.
	MaxIdleConnsPerHost int
}

// DefaultConfig returns a ClientConfig suitable for long-running
// translation requests. The overall timeout can be overridden with the
// HTTP_TIMEOUT environment variable (seconds or a Go duration string).
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeout:             getEnvDuration("HTTP_TIMEOUT", 10*time.Minute),
		DialTimeout:         30 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 10,
	}
}

// New creates an HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used.
func New(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   config.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost:   config.MaxIdleConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   config.TLSHandshakeTimeout,
		ForceAttemptHTTP2:     true,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   config.Timeout,
	}
}

// getEnvDuration reads a duration from an environment variable, accepting
// plain integers (seconds) or Go duration strings.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	if secs, err := strconv.Atoi(val); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	return defaultVal
}
