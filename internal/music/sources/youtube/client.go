package youtube

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"time"

	_ "github.com/bdandy/go-socks4"
	youtube "github.com/kkdai/youtube/v2"
	"golang.org/x/net/proxy"

	"github.com/keshon/driveby/pkg/log"
)

// NewHTTPClient builds an http.Client that goes through proxyStr. Supported
// schemes are http, https, socks5 and socks4. An empty or broken proxy
// falls back to a direct client.
func NewHTTPClient(proxyStr string) *http.Client {
	direct := &http.Client{Timeout: 15 * time.Second}
	if proxyStr == "" {
		return direct
	}

	proxyURL, err := url.Parse(proxyStr)
	if err != nil {
		log.Warn(log.Fields{"error": err.Error()}, "[YouTube] Invalid proxy, going direct")
		return direct
	}

	var transport *http.Transport

	switch proxyURL.Scheme {
	case "http", "https":
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	case "socks5":
		auth := &proxy.Auth{}
		if proxyURL.User != nil {
			auth.User = proxyURL.User.Username()
			if pass, ok := proxyURL.User.Password(); ok {
				auth.Password = pass
			}
		}
		dialer, err := proxy.SOCKS5("tcp", proxyURL.Host, auth, &net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 10 * time.Second,
		})
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "[YouTube] SOCKS5 dialer error")
			break
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	case "socks4":
		// registered with x/net/proxy by go-socks4
		dialer, err := proxy.FromURL(proxyURL, &net.Dialer{Timeout: 10 * time.Second})
		if err != nil {
			log.Warn(log.Fields{"error": err.Error()}, "[YouTube] SOCKS4 dialer error")
			break
		}
		transport = &http.Transport{DialContext: dialContext(dialer)}
	default:
		log.Warn(log.Fields{"scheme": proxyURL.Scheme}, "[YouTube] Unsupported proxy scheme")
	}

	if transport == nil {
		return direct
	}

	log.Info(log.Fields{"scheme": proxyURL.Scheme, "host": proxyURL.Host}, "[YouTube] Using proxy")
	return &http.Client{Timeout: 15 * time.Second, Transport: transport}
}

// NewClient returns a kkdai client sharing the proxy setup.
func NewClient(httpClient *http.Client) *youtube.Client {
	return &youtube.Client{HTTPClient: httpClient}
}

func dialContext(d proxy.Dialer) func(ctx context.Context, network, addr string) (net.Conn, error) {
	if cd, ok := d.(proxy.ContextDialer); ok {
		return cd.DialContext
	}
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		return d.Dial(network, addr)
	}
}
