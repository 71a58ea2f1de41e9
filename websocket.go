package mqtt

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// WebsocketSubprotocol is negotiated on every WebSocket connection (MQTT v5.0 section 6).
const WebsocketSubprotocol = "mqtt"

// wsConn carries the MQTT byte stream in binary WebSocket messages. A message may hold any part of
// a packet, so reads simply continue across message boundaries.
type wsConn struct {
	ws *websocket.Conn
	r  io.Reader
}

func (c *wsConn) Read(p []byte) (int, error) {
	for {
		if c.r == nil {
			kind, r, err := c.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if kind != websocket.BinaryMessage {
				return 0, fmt.Errorf("%w: websocket message type %d", ErrCorruptData, kind)
			}
			c.r = r
		}
		n, err := c.r.Read(p)
		if err == io.EOF {
			c.r = nil
			if n == 0 {
				continue
			}
			err = nil
		}
		return n, err
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	if err := c.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	return c.ws.Close()
}

// dialWebsocket dials ws:// and wss:// URLs. The path defaults to /mqtt.
func dialWebsocket(u *url.URL, tlsConfig *tls.Config) DialFunc {
	loc := *u
	if loc.Path == "" {
		loc.Path = "/mqtt"
	}
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		dialer := &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
			Subprotocols:     []string{WebsocketSubprotocol},
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			TLSClientConfig:  tlsConfig,
		}
		ws, resp, err := dialer.DialContext(ctx, loc.String(), nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, err
		}
		return &wsConn{ws: ws}, nil
	}
}

// NewWebsocket returns a Transport that speaks MQTT over a WebSocket connection to u.
func NewWebsocket(u *url.URL, tlsConfig *tls.Config) *Conn {
	return NewConn(dialWebsocket(u, tlsConfig))
}
