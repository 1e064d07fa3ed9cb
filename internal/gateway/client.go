package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/meetwire/lounge/internal/proto"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 25 * time.Second

	// Signaling payloads carry full SDP bodies, which run to tens of KB.
	maxMessageSize = 64 * 1024

	outboundBuffer = 64
)

// client is one admitted WebSocket connection. It implements
// directory.Sender: Send enqueues onto a buffered channel drained by a
// single writer goroutine, which gives FIFO delivery per connection and
// keeps the broker non-blocking. When the buffer is full the message is
// dropped rather than stalling everyone else.
type client struct {
	id   string
	conn *websocket.Conn

	out  chan []byte
	done chan struct{}
	once sync.Once
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, outboundBuffer),
		done: make(chan struct{}),
	}
}

func (c *client) ID() string { return c.id }

func (c *client) Send(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		log.Errorw("marshal payload", "event", event, "err", err)
		return
	}
	b, err := json.Marshal(proto.Envelope{Event: event, Data: raw})
	if err != nil {
		log.Errorw("marshal envelope", "event", event, "err", err)
		return
	}

	select {
	case c.out <- b:
	case <-c.done:
	default:
		log.Debugw("slow client, dropping message", "conn", c.id, "event", event)
	}
}

// writePump is the single writer for this connection. Pings keep NAT
// bindings alive and, paired with the read deadline, detect dead TCP
// sessions so BUSY entries never leak.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		case b := <-c.out:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

// close is idempotent; it stops the write pump and closes the socket.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}
