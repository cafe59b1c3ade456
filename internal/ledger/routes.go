package ledger

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
)

// RegisterRoutes mounts member and review-queue endpoints.
func RegisterRoutes(r chi.Router, store *Store, auditLog audit.Logger, logger *zap.Logger) {
	r.Route("/api/members", func(r chi.Router) {
		r.Get("/", handleListMembers(store))
		r.Get("/{id}", handleGetMember(store))
		r.Get("/{id}/claims", handleListClaims(store))
	})
	r.Route("/api/queue", func(r chi.Router) {
		r.Get("/", handleQueue(store))
		r.Get("/analytics", handleAnalytics(store))
		r.Post("/review", handleReview(store, auditLog, logger))
	})
}

func handleListMembers(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		members, err := store.ListMembers(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		if members == nil {
			members = []MemberSummary{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"members": members, "total": len(members)})
	}
}

func handleGetMember(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, err := store.GetMember(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, m)
	}
}

func handleListClaims(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.GetMember(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		history, err := store.ListClaims(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"member_id": id, "claims": history, "total": len(history)})
	}
}

func handleQueue(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := store.ListQueue(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"claims": items, "total": len(items)})
	}
}

func handleAnalytics(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := store.Analytics(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

func handleReview(store *Store, auditLog audit.Logger, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}

		res, err := store.Review(r.Context(), req)
		if err != nil {
			writeError(w, err)
			return
		}

		logger.Info("claim reviewed",
			zap.String("member_id", req.MemberID),
			zap.String("claim_id", req.ClaimID),
			zap.String("status", string(res.Claim.Status)),
			zap.Int("usage_applied", len(res.Usage.Applied)),
		)
		if auditLog != nil {
			if err := RecordReview(r.Context(), auditLog, req, res); err != nil {
				logger.Warn("recording review audit", zap.Error(err))
			}
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrMemberNotFound), errors.Is(err, ErrClaimNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrAlreadyReviewed), errors.Is(err, ErrLimitExceeded):
		status = http.StatusConflict
	case errors.Is(err, ErrInvalidReview), errors.Is(err, ErrUnknownField), errors.Is(err, ErrInvalidAmount):
		status = http.StatusBadRequest
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
