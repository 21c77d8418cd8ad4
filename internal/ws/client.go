package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"chat_backend/internal/realtime"
)

const writeWait = 10 * time.Second

// client adapts one gorilla connection to realtime.Conn. Outbound frames go
// through a bounded queue drained by writePump, so Send never blocks the
// router.
type client struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, buffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan []byte, buffer),
		done: make(chan struct{}),
	}
}

var _ realtime.Conn = (*client)(nil)

func (c *client) ID() string { return c.id }

func (c *client) Send(ev realtime.Outbound) error {
	data, err := realtime.EncodeOutbound(ev)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return realtime.ErrConnClosed
	default:
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return realtime.ErrConnClosed
	default:
		return realtime.ErrSendBufferFull
	}
}

// Close asks the writer to send a close frame and tear the socket down. The
// read loop then fails and the handler raises Disconnect.
func (c *client) Close() error {
	closed := true
	c.closeOnce.Do(func() {
		close(c.done)
		closed = false
	})
	if closed {
		return realtime.ErrConnClosed
	}
	return nil
}

func (c *client) writePump(ping time.Duration) {
	ticker := time.NewTicker(ping)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
