package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/audit"
	"github.com/ziadkadry99/claimdesk/internal/claims"
)

type recordingAudit struct {
	entries []audit.Entry
}

func (r *recordingAudit) Log(_ context.Context, e audit.Entry) error {
	r.entries = append(r.entries, e)
	return nil
}

func setupRouter(t *testing.T) (chi.Router, *Store, *recordingAudit) {
	t.Helper()
	s := setupStore(t)
	log := &recordingAudit{}
	r := chi.NewRouter()
	RegisterRoutes(r, s, log, zap.NewNop())
	return r, s, log
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHTTPMembers(t *testing.T) {
	r, s, _ := setupRouter(t)
	seedMember(t, s, testMember("MEM-1004"))

	rec := doJSON(t, r, http.MethodGet, "/api/members", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Members []MemberSummary `json:"members"`
		Total   int             `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	assert.Equal(t, 1, list.Total)
	assert.Equal(t, "Aoife Byrne", list.Members[0].Name)

	rec = doJSON(t, r, http.MethodGet, "/api/members/MEM-1004", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m claims.Member
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&m))
	assert.Equal(t, 38, m.Usage.HospitalDays)

	rec = doJSON(t, r, http.MethodGet, "/api/members/MEM-404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, r, http.MethodGet, "/api/members/MEM-404/claims", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPReview(t *testing.T) {
	r, s, log := setupRouter(t)
	seedMember(t, s, testMember("MEM-1004"))
	require.NoError(t, s.AppendClaim(context.Background(), "MEM-1004", pendingClaim("CLM-P")))

	body := ReviewRequest{MemberID: "MEM-1004", ClaimID: "CLM-P", Reviewer: "ops-anne", Status: claims.Approved}
	rec := doJSON(t, r, http.MethodPost, "/api/queue/review", body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res ReviewResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&res))
	assert.Equal(t, claims.Approved, res.Claim.Status)
	assert.Equal(t, claims.Pending, res.PreviousStatus)

	require.Len(t, log.entries, 2)
	assert.Equal(t, audit.ActionClaimReviewed, log.entries[0].Action)
	assert.Equal(t, "PENDING", log.entries[0].PreviousValue)
	assert.Equal(t, audit.ActionUsageApplied, log.entries[1].Action)

	rec = doJSON(t, r, http.MethodPost, "/api/queue/review", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	body.Status = claims.Pending
	rec = doJSON(t, r, http.MethodPost, "/api/queue/review", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHTTPQueue(t *testing.T) {
	r, s, _ := setupRouter(t)
	seedMember(t, s, testMember("MEM-1004"))
	require.NoError(t, s.AppendClaim(context.Background(), "MEM-1004", pendingClaim("CLM-P")))

	rec := doJSON(t, r, http.MethodGet, "/api/queue", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var queue struct {
		Claims []QueueItem `json:"claims"`
		Total  int         `json:"total"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&queue))
	require.Equal(t, 1, queue.Total)
	assert.Equal(t, "MEM-1004", queue.Claims[0].MemberID)
	assert.Equal(t, "HIGH", queue.Claims[0].Priority.Level)

	rec = doJSON(t, r, http.MethodGet, "/api/queue/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var a Analytics
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&a))
	assert.Equal(t, 1, a.TotalClaims)
}
