package signalws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	ws "nhooyr.io/websocket"
)

var (
	ErrBackpressure = errors.New("signalws: send queue full")
	ErrClosed       = errors.New("signalws: connection closed")
)

// conn adapts a websocket to signaling.Conn. Frames are queued and written by
// a dedicated goroutine so the coordinator never waits on the network.
type conn struct {
	id           string
	c            *ws.Conn
	send         chan []byte
	closing      chan string
	closeOnce    sync.Once
	done         chan struct{}
	writeTimeout time.Duration
}

func newConn(c *ws.Conn, queue int, writeTimeout time.Duration) *conn {
	return &conn{
		id:           uuid.NewString(),
		c:            c,
		send:         make(chan []byte, queue),
		closing:      make(chan string, 1),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
}

func (c *conn) ID() string { return c.id }

func (c *conn) Send(frame []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return ErrBackpressure
	}
}

func (c *conn) Close(reason string) {
	c.closeOnce.Do(func() { c.closing <- reason })
}

// writePump drains the send queue until a close is requested or a write fails.
// Frames queued before the close request are flushed first.
func (c *conn) writePump() {
	defer close(c.done)
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				log.Warn().Err(err).Str("module", "signalws").Str("conn", c.id).Msg("write failed")
				_ = c.c.Close(ws.StatusInternalError, "write failed")
				return
			}
		case reason := <-c.closing:
			c.flush()
			_ = c.c.Close(ws.StatusNormalClosure, reason)
			return
		}
	}
}

func (c *conn) flush() {
	for {
		select {
		case frame := <-c.send:
			if err := c.write(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *conn) write(frame []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.writeTimeout)
	defer cancel()
	return c.c.Write(ctx, ws.MessageText, frame)
}
