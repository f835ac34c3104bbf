package bitflyer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"btcfee/internal/application/port"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	handshakeTimeout = 10 * time.Second
	readTimeout      = 60 * time.Second
	pingInterval     = 25 * time.Second
	writeTimeout     = 5 * time.Second
)

// StreamDialer 连接 bitFlyer Realtime API (JSON-RPC over WebSocket)
type StreamDialer struct {
	wsURL  string
	dialer *websocket.Dialer
}

func NewStreamDialer(wsURL string) *StreamDialer {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultWsURL
	}
	return &StreamDialer{
		wsURL: wsURL,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (d *StreamDialer) Dial(ctx context.Context) (port.StreamConn, error) {
	cctx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	conn, _, err := d.dialer.DialContext(cctx, d.wsURL, nil)
	if err != nil {
		return nil, err
	}

	c := &streamConn{conn: conn, done: make(chan struct{})}
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})
	go c.pingLoop()
	return c, nil
}

type streamConn struct {
	conn *websocket.Conn

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func (c *streamConn) Subscribe(channel string) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("bitflyer channel empty")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(subscribeReq{
		Method: "subscribe",
		Params: subscribeParams{Channel: channel},
	})
}

func (c *streamConn) ReadMessage() ([]byte, error) {
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
	return b, nil
}

func (c *streamConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

func (c *streamConn) pingLoop() {
	t := time.NewTicker(pingInterval)
	defer t.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-t.C:
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(writeTimeout)); err != nil {
				log.Debug().Err(err).Msg("ws ping failed")
			}
		}
	}
}

var _ port.StreamDialer = (*StreamDialer)(nil)
