package server

import (
	"bytes"
	"context"
	"sync/atomic"
	"time"

	"chatcore/internal/session"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512 * 1024
	ackTimeout     = 5 * time.Second
)

// Client pumps frames between one websocket and its session. The read pump
// owns the session: when it exits the session is closed.
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	session      *session.Session
	lastActivity atomic.Int64
	logger       *WebSocketLogger
}

func NewClient(hub *Hub, conn *websocket.Conn, sess *session.Session, logger *WebSocketLogger) *Client {
	c := &Client{
		hub:     hub,
		conn:    conn,
		session: sess,
		logger:  logger,
	}
	c.touch()
	return c
}

func (c *Client) touch() {
	c.lastActivity.Store(time.Now().UnixNano())
}

func (c *Client) idleFor() time.Duration {
	return time.Since(time.Unix(0, c.lastActivity.Load()))
}

// Start runs both pumps.
func (c *Client) Start() {
	c.hub.add(c)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.session.Close()
		c.hub.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		c.touch()
		return nil
	})

	userID, sessionID := c.session.UserID(), c.session.ID()
	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Error("websocket unexpected close", userID, sessionID, err)
			}
			return
		}
		c.touch()

		message = bytes.TrimSpace(message)
		if len(message) == 0 {
			continue
		}
		_ = c.session.Dispatch(context.Background(), message)
	}
}

// writePump writes one frame per websocket message, in queue order.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	userID, sessionID := c.session.UserID(), c.session.ID()
	for {
		select {
		case frame := <-c.session.Frames():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame.Payload); err != nil {
				return
			}
			if frame.AckMessageID != nil {
				ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
				if err := c.session.Ack(ctx, *frame.AckMessageID); err != nil {
					c.logger.Error("delivery ack failed", userID, sessionID, err)
				}
				cancel()
			}

		case <-c.session.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

			if c.idleFor() > pongWait*2 {
				c.logger.Info("client idle timeout", userID, sessionID)
				return
			}
		}
	}
}
