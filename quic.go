package mqtt

import (
	"context"
	"crypto/tls"
	"io"

	"github.com/quic-go/quic-go"
)

// quicConn runs the MQTT byte stream over a single bidirectional QUIC stream.
type quicConn struct {
	conn   *quic.Conn
	stream *quic.Stream
}

func (c *quicConn) Read(p []byte) (int, error) {
	return c.stream.Read(p)
}

func (c *quicConn) Write(p []byte) (int, error) {
	return c.stream.Write(p)
}

func (c *quicConn) Close() error {
	_ = c.stream.Close()
	return c.conn.CloseWithError(0, "")
}

// dialQUIC requires TLS 1.3 and negotiates the "mqtt" ALPN protocol.
func dialQUIC(addr string, tlsConfig *tls.Config) DialFunc {
	var conf *tls.Config
	if tlsConfig != nil {
		conf = tlsConfig.Clone()
	} else {
		conf = &tls.Config{}
	}
	if conf.MinVersion < tls.VersionTLS13 {
		conf.MinVersion = tls.VersionTLS13
	}
	if len(conf.NextProtos) == 0 {
		conf.NextProtos = []string{"mqtt"}
	}
	return func(ctx context.Context) (io.ReadWriteCloser, error) {
		conn, err := quic.DialAddr(ctx, addr, conf, nil)
		if err != nil {
			return nil, err
		}
		stream, err := conn.OpenStreamSync(ctx)
		if err != nil {
			_ = conn.CloseWithError(0, "")
			return nil, err
		}
		return &quicConn{conn: conn, stream: stream}, nil
	}
}
