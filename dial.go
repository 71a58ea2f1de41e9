package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

var defaultPorts = map[string]string{
	"mqtt":  "1883",
	"tcp":   "1883",
	"mqtts": "8883",
	"tls":   "8883",
	"ssl":   "8883",
	"ws":    "80",
	"wss":   "443",
	"quic":  "14567",
}

// Dial returns an unstarted Transport for u, chosen by scheme:
//
//	mqtt, tcp          plain TCP
//	mqtts, tls, ssl    TLS over TCP
//	ws, wss            WebSocket, path defaults to /mqtt
//	quic               one QUIC stream, TLS 1.3
//
// TCP based schemes go through options.Proxy when it is set.
func Dial(u *url.URL, options Options) (Transport, error) {
	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return nil, fmt.Errorf("mqtt: unsupported scheme %q", u.Scheme)
	}
	addr := u.Host
	if u.Port() == "" {
		addr = net.JoinHostPort(u.Hostname(), port)
	}

	switch u.Scheme {
	case "mqtt", "tcp":
		return NewConn(dialTCP(addr, nil, options.Proxy)), nil
	case "mqtts", "tls", "ssl":
		return NewConn(dialTCP(addr, tlsConfig(options.TLSConfig, u.Hostname()), options.Proxy)), nil
	case "ws":
		return NewWebsocket(u, nil), nil
	case "wss":
		return NewWebsocket(u, tlsConfig(options.TLSConfig, u.Hostname())), nil
	}
	return NewConn(dialQUIC(addr, tlsConfig(options.TLSConfig, u.Hostname()))), nil
}

func tlsConfig(conf *tls.Config, host string) *tls.Config {
	if conf == nil {
		conf = &tls.Config{}
	} else {
		conf = conf.Clone()
	}
	if conf.ServerName == "" {
		conf.ServerName = host
	}
	return conf
}

// dialTCP dials addr directly or through a SOCKS5 proxy given as socks5://[user:password@]host[:port].
func dialTCP(addr string, tlsConf *tls.Config, proxyURL string) DialFunc {
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialer, err := contextDialer(proxyURL)
		if err != nil {
			return nil, err
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, err
		}
		if tlsConf == nil {
			return conn, nil
		}
		tc := tls.Client(conn, tlsConf)
		if err := tc.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return tc, nil
	}
}

func contextDialer(proxyURL string) (proxy.ContextDialer, error) {
	forward := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	if proxyURL == "" {
		return forward, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("mqtt: proxy url: %w", err)
	}
	if u.Scheme != "socks5" && u.Scheme != "socks5h" {
		return nil, fmt.Errorf("mqtt: unsupported proxy scheme %q", u.Scheme)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "1080")
	}
	var auth *proxy.Auth
	if u.User != nil {
		password, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: password}
	}
	d, err := proxy.SOCKS5("tcp", host, auth, forward)
	if err != nil {
		return nil, fmt.Errorf("mqtt: socks5 dialer: %w", err)
	}
	cd, ok := d.(proxy.ContextDialer)
	if !ok {
		return nil, fmt.Errorf("mqtt: socks5 dialer does not support contexts")
	}
	return cd, nil
}
