// Package upstream holds outbound HTTP plumbing shared between services.
package upstream

import (
	"net"
	"net/http"
	"time"
)

const (
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 15 * time.Second
)

func NewTransport(connectTimeout time.Duration, readTimeout time.Duration) *http.Transport {
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}

	dialer := &net.Dialer{Timeout: connectTimeout, KeepAlive: 30 * time.Second}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   connectTimeout,
		ResponseHeaderTimeout: readTimeout,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
}

// NewClient caps a whole exchange at connect plus read timeout.
func NewClient(connectTimeout time.Duration, readTimeout time.Duration) *http.Client {
	transport := NewTransport(connectTimeout, readTimeout)

	return &http.Client{
		Transport: transport,
		Timeout:   transport.TLSHandshakeTimeout + transport.ResponseHeaderTimeout,
	}
}
