package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// AckMessage answers every inbound text frame on the subscribe channel.
const AckMessage = "Websocket connection established Connected"

// fallbackWriteWait applies when a send context carries no deadline.
const fallbackWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browsers on any origin may watch; the channel is read-only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSubscriber adapts a websocket connection to hub.Subscriber.
// gorilla connections allow one concurrent writer, so writes hold mu.
type wsSubscriber struct {
	conn *websocket.Conn
	mu   sync.Mutex
	once sync.Once
}

func (s *wsSubscriber) Send(ctx context.Context, payload []byte) error {
	return s.write(ctx, payload)
}

func (s *wsSubscriber) write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(fallbackWriteWait)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSubscriber) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.mu.Unlock()
		err = s.conn.Close()
	})
	return err
}

// handleSubscribe registers the connection with the hub and keeps reading
// until the peer goes away. Payloads are pushed by the broadcast loop.
func (r *Router) handleSubscribe(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		r.logger.Debug("websocket upgrade failed", "error", err)
		return
	}
	sub := &wsSubscriber{conn: conn}
	id := r.hub.Connect(sub)
	if id == "" {
		return
	}
	defer r.hub.Disconnect(id)

	for {
		mt, _, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Debug("subscriber read failed", "subscriber", id, "error", err)
			}
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		if err := sub.write(context.Background(), []byte(AckMessage)); err != nil {
			r.logger.Debug("ack failed", "subscriber", id, "error", err)
			return
		}
	}
}
