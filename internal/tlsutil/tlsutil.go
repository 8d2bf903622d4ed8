// Package tlsutil provides centralized TLS configuration for the gateway's
// inbound server and its outbound provider client.
// 安全加固：TLS 1.2+，仅 AEAD 密码套件。
package tlsutil

import (
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"
)

// DefaultTLSConfig returns a hardened TLS configuration.
// MinVersion TLS 1.2, AEAD-only cipher suites.
func DefaultTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_CHACHA20_POLY1305,
			tls.TLS_ECDHE_RSA_WITH_CHACHA20_POLY1305,
		},
	}
}

// ClientOptions 出站 HTTP 客户端选项
type ClientOptions struct {
	// Timeout 单次请求超时
	Timeout time.Duration
	// ProxyURL 为空时使用 HTTP_PROXY/HTTPS_PROXY 环境变量
	ProxyURL string
	// InsecureSkipVerify 跳过证书校验，仅用于调试代理
	InsecureSkipVerify bool
}

// ProviderTransport returns a hardened transport for calls to AI providers,
// with HTTP/2 negotiated over TLS.
func ProviderTransport(opts ClientOptions) (*http.Transport, error) {
	tlsCfg := DefaultTLSConfig()
	tlsCfg.InsecureSkipVerify = opts.InsecureSkipVerify //nolint:gosec // 由配置显式开启

	proxy := http.ProxyFromEnvironment
	if opts.ProxyURL != "" {
		u, err := url.Parse(opts.ProxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid proxy url %q", opts.ProxyURL)
		}
		proxy = http.ProxyURL(u)
	}

	tr := &http.Transport{
		Proxy:           proxy,
		TLSClientConfig: tlsCfg,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, fmt.Errorf("configure http2: %w", err)
	}
	return tr, nil
}

// ProviderClient returns an http.Client built on ProviderTransport.
func ProviderClient(opts ClientOptions) (*http.Client, error) {
	tr, err := ProviderTransport(opts)
	if err != nil {
		return nil, err
	}
	return &http.Client{Timeout: opts.Timeout, Transport: tr}, nil
}

// ServerTLSConfig returns the hardened config for the inbound HTTPS listener.
func ServerTLSConfig() *tls.Config {
	cfg := DefaultTLSConfig()
	cfg.NextProtos = []string{"h2", "http/1.1"}
	return cfg
}
