package mqtt

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/golang-io/go-mqtt/packet"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{Subprotocols: []string{WebsocketSubprotocol}}

func wsServer(t *testing.T, serve func(*websocket.Conn)) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mqtt" {
			http.NotFound(w, r)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		serve(ws)
	}))
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	u.Scheme = "ws"
	return u
}

func TestWebsocketExchange(t *testing.T) {
	protocol := make(chan string, 1)
	u := wsServer(t, func(ws *websocket.Conn) {
		protocol <- ws.Subprotocol()
		// split one payload over two messages
		kind, msg, err := ws.ReadMessage()
		if err != nil || kind != websocket.BinaryMessage {
			return
		}
		_ = ws.WriteMessage(websocket.BinaryMessage, msg[:2])
		_ = ws.WriteMessage(websocket.BinaryMessage, msg[2:])
		_, _, _ = ws.ReadMessage()
	})

	c := NewWebsocket(u, nil)
	c.Start(context.Background())
	defer c.Cancel()
	require.Equal(t, TransportConnecting, nextEvent(t, c).State)
	require.Equal(t, TransportReady, nextEvent(t, c).State)
	assert.Equal(t, WebsocketSubprotocol, <-protocol)

	require.NoError(t, c.Send([]byte("hello")))
	var got []byte
	for len(got) < 5 {
		chunk, ok := nextChunk(t, c)
		require.True(t, ok)
		got = append(got, chunk...)
	}
	assert.Equal(t, []byte("hello"), got)
}

func TestWebsocketTextMessage(t *testing.T) {
	u := wsServer(t, func(ws *websocket.Conn) {
		_ = ws.WriteMessage(websocket.TextMessage, []byte("nope"))
		_, _, _ = ws.ReadMessage()
	})

	c := NewWebsocket(u, nil)
	c.Start(context.Background())
	defer c.Cancel()
	require.Equal(t, TransportConnecting, nextEvent(t, c).State)
	require.Equal(t, TransportReady, nextEvent(t, c).State)
	ev := nextEvent(t, c)
	assert.Equal(t, TransportFailed, ev.State)
	assert.ErrorIs(t, ev.Err, ErrCorruptData)
}

func TestWebsocketSession(t *testing.T) {
	u := wsServer(t, func(ws *websocket.Conn) {
		rw := &wsConn{ws: ws}
		pkt, err := packet.Unpack(packet.VERSION500, rw)
		if err != nil {
			return
		}
		if _, ok := pkt.(*packet.CONNECT); !ok {
			return
		}
		fh := &packet.FixedHeader{Version: packet.VERSION500}
		raw, _ := packet.Encode(&packet.CONNACK{FixedHeader: fh, ReasonCode: packet.CodeSuccess})
		_, _ = rw.Write(raw)

		pkt, err = packet.Unpack(packet.VERSION500, rw)
		if err != nil {
			return
		}
		if pub, ok := pkt.(*packet.PUBLISH); ok {
			raw, _ = packet.Encode(&packet.PUBACK{FixedHeader: fh, PacketID: pub.PacketID, ReasonCode: packet.CodeSuccess})
			_, _ = rw.Write(raw)
		}
		_, _ = packet.Unpack(packet.VERSION500, rw)
	})

	s := NewSession(NewWebsocket(u, nil), Version(packet.VERSION500), Logger(quietLogger()))
	defer s.Stop()
	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Publish(context.Background(), &packet.Message{TopicName: "a/b", Content: []byte("x")}, 1, false))
}
