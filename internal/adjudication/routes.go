package adjudication

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RegisterRoutes mounts the claim processing endpoint and the streaming
// websocket.
func RegisterRoutes(r chi.Router, p *Pipeline, logger *zap.Logger) {
	r.Post("/api/claims/process", handleProcess(p, logger))
	r.Get("/ws/claims", handleStream(p, logger))
}

func handleProcess(p *Pipeline, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		res, err := p.ProcessClaim(r.Context(), req)
		if err != nil {
			status := http.StatusInternalServerError
			if IsInputError(err) {
				status = http.StatusBadRequest
			} else {
				logger.Error("processing claim", zap.String("member_id", req.MemberID), zap.Error(err))
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}

		logger.Info("claim processed",
			zap.String("member_id", req.MemberID),
			zap.String("session_id", res.SessionID),
			zap.String("decision", string(res.Decision)),
			zap.Bool("follow_up", res.FollowUp),
		)
		writeJSON(w, http.StatusOK, res)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
