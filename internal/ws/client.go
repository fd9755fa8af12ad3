package ws

import (
	"errors"
	"sync"
	"time"

	"chess_webapp/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 30 * time.Second
	pingPeriod = 25 * time.Second

	sendBuffer   = 256
	maxFrameSize = 4096
)

// Client is one attached transport. The session never touches the
// connection directly; it only queues frames on Send and the write pump
// drains them.
type Client struct {
	UserID int64
	Conn   *websocket.Conn
	Send   chan []byte

	session   *Session
	closeOnce sync.Once
}

func NewClient(userID int64, conn *websocket.Conn) *Client {
	return &Client{
		UserID: userID,
		Conn:   conn,
		Send:   make(chan []byte, sendBuffer),
	}
}

// closeSend is idempotent; the write pump exits and closes the socket
// once the channel drains.
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.Send)
	})
}

// trySend queues a frame without ever blocking the caller.
func (c *Client) trySend(frame []byte) bool {
	select {
	case c.Send <- frame:
		return true
	default:
		return false
	}
}

// Run attaches the transport to its session and drives both pumps until
// the socket dies.
func (c *Client) Run(sess *Session, watch bool) {
	if err := sess.Attach(c, watch); err != nil {
		logger.Debug("attach rejected", "room", sess.ID, "user", c.UserID, "error", err)
		if frame, encErr := EncodeEnvelope(TypeError, ErrorPayload{Code: attachErrorCode(err), Message: err.Error()}); encErr == nil {
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.Conn.WriteMessage(websocket.TextMessage, frame)
		}
		_ = c.Conn.Close()
		return
	}
	go c.writePump()
	c.readPump()
}

// attachErrorCode maps an attach rejection to the wire reason code.
func attachErrorCode(err error) string {
	if errors.Is(err, ErrRoomFull) {
		return CodeRoomFull
	}
	return CodeGameOver
}

// readPump decodes inbound frames and hands them to the session. Frames
// that fail the codec are dropped here and never reach the state machine.
func (c *Client) readPump() {
	defer func() {
		if c.session != nil {
			c.session.Detach(c)
		}
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := DecodeEnvelope(raw)
		if err != nil {
			protocolErrors.Inc()
			logger.Debug("dropping bad frame", "user", c.UserID, "error", err)
			continue
		}

		if c.session != nil {
			c.session.Deliver(c, env)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
