package network

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"
)

// ClientFactory builds outbound HTTP clients for the inference API, optionally
// routed through an HTTP(S) or SOCKS5 proxy.
type ClientFactory struct {
	proxyURL string
}

func NewClientFactory(proxyURL string) *ClientFactory {
	return &ClientFactory{proxyURL: strings.TrimSpace(proxyURL)}
}

// NewHTTPClient returns a client with the given overall timeout. A zero timeout
// leaves deadlines to the request context.
func (f *ClientFactory) NewHTTPClient(timeout time.Duration) *http.Client {
	client := &http.Client{Timeout: timeout}
	if f.proxyURL != "" {
		client.Transport = newTransportWithProxy(f.proxyURL)
	}
	return client
}

// ProxyURL returns the configured proxy, empty when direct.
func (f *ClientFactory) ProxyURL() string {
	return f.proxyURL
}

// newTransportWithProxy uses golang.org/x/net/proxy for socks schemes and the
// standard http.ProxyURL for everything else. An unparsable URL yields a
// direct transport.
func newTransportWithProxy(proxyURL string) *http.Transport {
	parsed, err := url.Parse(proxyURL)
	if err != nil || parsed.Host == "" {
		return http.DefaultTransport.(*http.Transport).Clone()
	}

	if strings.HasPrefix(parsed.Scheme, "socks") {
		var auth *proxy.Auth
		if parsed.User != nil {
			auth = &proxy.Auth{User: parsed.User.Username()}
			if password, ok := parsed.User.Password(); ok {
				auth.Password = password
			}
		}

		dialer, err := proxy.SOCKS5("tcp", parsed.Host, auth, proxy.Direct)
		if err != nil {
			return http.DefaultTransport.(*http.Transport).Clone()
		}

		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if cd, ok := dialer.(proxy.ContextDialer); ok {
				return cd.DialContext(ctx, network, addr)
			}
			return dialer.Dial(network, addr)
		}
		return transport
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = http.ProxyURL(parsed)
	return transport
}
