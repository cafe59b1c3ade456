package adjudication

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// handleStream reads one Request per websocket message and answers with
// a status event, one node_update per stage and then a result or error.
func handleStream(p *Pipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("websocket upgrade", zap.Error(err))
			return
		}
		defer conn.Close()

		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					logger.Warn("websocket read", zap.Error(err))
				}
				return
			}

			var req Request
			if err := json.Unmarshal(msg, &req); err != nil {
				sendError(conn, logger, "", "invalid message format")
				continue
			}

			send := func(ev Event) {
				if err := conn.WriteJSON(ev); err != nil {
					logger.Warn("websocket write", zap.Error(err))
				}
			}
			if _, err := p.ProcessClaimStream(r.Context(), req, send); err != nil {
				sendError(conn, logger, req.SessionID, err.Error())
			}
		}
	}
}

func sendError(conn *websocket.Conn, logger *zap.Logger, sessionID, message string) {
	ev := Event{Type: EventError, Error: message, Result: Result{SessionID: sessionID}}
	if err := conn.WriteJSON(ev); err != nil {
		logger.Warn("websocket write error", zap.Error(err))
	}
}
