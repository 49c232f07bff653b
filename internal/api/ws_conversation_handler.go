package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"go-llmlab/internal/config"
	"go-llmlab/internal/convo"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// safeWSConn serializes writes; gorilla allows one concurrent writer.
type safeWSConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *safeWSConn) WriteJSON(v interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteJSON(v)
}

func (s *safeWSConn) ReadMessage() (int, []byte, error) {
	return s.conn.ReadMessage()
}

func (s *safeWSConn) Close() error {
	return s.conn.Close()
}

// WSEvent is one message streamed to the client. Type is start, turn, end
// or error.
type WSEvent struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversation_id,omitempty"`
	Rounds         int         `json:"rounds,omitempty"`
	Freshness      string      `json:"freshness,omitempty"`
	Turn           *convo.Turn `json:"turn,omitempty"`
	Round          int         `json:"round,omitempty"`
	Speaker        string      `json:"speaker,omitempty"`
	Error          string      `json:"error,omitempty"`
}

func errorEvent(err error) WSEvent {
	ev := WSEvent{Type: "error", Error: err.Error()}
	var turnErr *convo.TurnError
	if errors.As(err, &turnErr) {
		ev.Round = turnErr.Round
		ev.Speaker = turnErr.SpeakerID
	}
	return ev
}

// WSConversationHandler reads one ConversationRequest, then streams the
// seeds and every reply as it is produced. The run stops when the client
// disconnects.
func WSConversationHandler(cfg *config.Config, svc *Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := requireUserID(c)
		if !ok {
			return
		}

		rawConn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.WithError(err).Warn("WebSocket upgrade failed")
			return
		}
		conn := &safeWSConn{conn: rawConn}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			_ = conn.WriteJSON(WSEvent{Type: "error", Error: "invalid initial payload"})
			return
		}
		var req ConversationRequest
		if len(msg) > 0 {
			if err := json.Unmarshal(msg, &req); err != nil {
				_ = conn.WriteJSON(WSEvent{Type: "error", Error: "invalid JSON"})
				return
			}
		}

		prep, err := prepareConversation(cfg, svc, req)
		if err != nil {
			_ = conn.WriteJSON(errorEvent(err))
			return
		}

		ctx, cancel := context.WithCancel(c.Request.Context())
		defer cancel()
		// Any read error means the client went away.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					cancel()
					return
				}
			}
		}()

		conv, err := svc.Store.StartConversation(ctx, userID, prep.cast, prep.rounds, prep.policy)
		if err != nil {
			_ = conn.WriteJSON(errorEvent(err))
			return
		}
		rec := svc.Store.NewRecorder(ctx, conv)
		prep.coordinator.OnReply(rec.Observe)
		prep.coordinator.OnReply(func(t convo.Turn) {
			if err := conn.WriteJSON(WSEvent{Type: "turn", Turn: &t}); err != nil {
				cancel()
			}
		})

		id := conv.ID.String()
		_ = conn.WriteJSON(WSEvent{Type: "start", ConversationID: id, Rounds: prep.rounds, Freshness: string(prep.policy)})
		for _, t := range prep.coordinator.Turns() {
			t := t
			_ = conn.WriteJSON(WSEvent{Type: "turn", Turn: &t})
		}

		runErr := prep.coordinator.Run(ctx, prep.rounds)
		if err := rec.Finish(runErr); err != nil {
			log.WithError(err).WithField("conversation", id).Error("failed to archive conversation")
		}
		if runErr != nil {
			ev := errorEvent(runErr)
			ev.ConversationID = id
			_ = conn.WriteJSON(ev)
			return
		}
		_ = conn.WriteJSON(WSEvent{Type: "end", ConversationID: id})
		_ = rawConn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"), time.Now().Add(time.Second))
	}
}
