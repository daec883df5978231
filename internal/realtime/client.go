package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/date-booking/internal/application"
	"github.com/example/date-booking/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var knownTopics = map[application.Topic]struct{}{
	application.TopicMatches:    {},
	application.TopicScheduling: {},
	application.TopicActivities: {},
	application.TopicMessages:   {},
}

type client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte

	mu     sync.RWMutex
	topics map[application.Topic]struct{}
}

func newClient(h *Hub, conn *websocket.Conn, userID string) *client {
	return &client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, h.sendBuffer),
		topics: make(map[application.Topic]struct{}),
	}
}

func (c *client) subscribed(topic application.Topic) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.topics[topic]
	return ok
}

func (c *client) setTopic(topic application.Topic, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if on {
		c.topics[topic] = struct{}{}
		return
	}
	delete(c.topics, topic)
}

// readPump applies subscribe and unsubscribe frames until the peer goes away.
// Anything else is logged and ignored.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("websocket read failed", "user_id", c.userID, "error", err)
			}
			return
		}

		var frame wire.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.hub.logger.Debug("dropping malformed frame", "user_id", c.userID, "error", err)
			continue
		}
		topic := application.Topic(frame.Topic)
		if _, ok := knownTopics[topic]; !ok {
			c.hub.logger.Debug("dropping frame for unknown topic", "user_id", c.userID, "topic", frame.Topic)
			continue
		}
		switch frame.Type {
		case wire.FrameSubscribe:
			c.setTopic(topic, true)
		case wire.FrameUnsubscribe:
			c.setTopic(topic, false)
		default:
			c.hub.logger.Debug("dropping unsupported frame", "user_id", c.userID, "type", frame.Type)
		}
	}
}

// writePump sends one websocket message per frame and keeps the connection
// alive with pings.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
