package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"swing-engine/internal/events"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsEnvelope wraps a bus payload with its topic for the dashboard stream.
type wsEnvelope struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// websocket streams engine events (signals, position changes, risk alerts,
// state transitions) to dashboard clients.
func (s *Server) websocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}
	defer conn.Close()

	if s.Bus == nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"bus not ready"}`))
		return
	}

	topics := []events.Event{
		events.EventSignal,
		events.EventPositionOpened,
		events.EventPositionClosed,
		events.EventOrderRejected,
		events.EventRiskAlert,
		events.EventStateChange,
	}

	merged := make(chan wsEnvelope, 100)
	done := make(chan struct{})
	var wg sync.WaitGroup

	for _, topic := range topics {
		stream, unsub := s.Bus.Subscribe(topic, 50)
		wg.Add(1)
		go func(topic events.Event, stream <-chan any, unsub func()) {
			defer wg.Done()
			defer unsub()
			for {
				select {
				case <-done:
					return
				case msg, ok := <-stream:
					if !ok {
						return
					}
					select {
					case merged <- wsEnvelope{Event: string(topic), Payload: msg}:
					case <-done:
						return
					}
				}
			}
		}(topic, stream, unsub)
	}

	// Detect client disconnects so subscriptions are released promptly.
	clientGone := make(chan struct{})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(clientGone)
				return
			}
		}
	}()

	defer func() {
		close(done)
		wg.Wait()
	}()

	for {
		select {
		case <-clientGone:
			return
		case env := <-merged:
			if err := conn.WriteJSON(env); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}
}
