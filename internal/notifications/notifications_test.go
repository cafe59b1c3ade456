package notifications

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/claims"
	"github.com/ziadkadry99/claimdesk/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func testNotification(id string) Notification {
	return Notification{
		ID:       id,
		Type:     TypeClaimPending,
		Severity: SeverityInfo,
		Title:    "Claim CLM-1 awaiting review",
		Message:  "Sean Murphy submitted GP & A&E for €60.00.",
		MemberID: "MEM-1",
		ClaimID:  "CLM-1",
		Teams:    []string{TeamClaimsOps},
	}
}

// webhookRecorder collects webhook payloads.
type webhookRecorder struct {
	mu       sync.Mutex
	received []Notification
	status   int
}

func (wr *webhookRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var n Notification
	_ = json.Unmarshal(body, &n)
	wr.mu.Lock()
	wr.received = append(wr.received, n)
	status := wr.status
	wr.mu.Unlock()
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
}

func (wr *webhookRecorder) count() int {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	return len(wr.received)
}

func TestStoreCreateAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	n := testNotification("")
	require.NoError(t, store.Create(ctx, &n))
	require.NotEmpty(t, n.ID)

	got, err := store.GetByID(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n.Title, got.Title)
	assert.Equal(t, "CLM-1", got.ClaimID)
	assert.Equal(t, []string{TeamClaimsOps}, got.Teams)
	assert.False(t, got.Delivered)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreListFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := testNotification("a")
	b := testNotification("b")
	b.Type = TypeLegalReview
	b.Severity = SeverityCritical
	b.MemberID = "MEM-2"
	for _, n := range []*Notification{&a, &b} {
		require.NoError(t, store.Create(ctx, n))
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	legal, err := store.List(ctx, ListFilter{Type: TypeLegalReview})
	require.NoError(t, err)
	require.Len(t, legal, 1)
	assert.Equal(t, "b", legal[0].ID)

	critical, err := store.List(ctx, ListFilter{Severity: SeverityCritical})
	require.NoError(t, err)
	assert.Len(t, critical, 1)

	byMember, err := store.List(ctx, ListFilter{MemberID: "MEM-1"})
	require.NoError(t, err)
	require.Len(t, byMember, 1)
	assert.Equal(t, "a", byMember[0].ID)

	limited, err := store.List(ctx, ListFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStoreMarkDeliveredAndPending(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		n := testNotification(id)
		require.NoError(t, store.Create(ctx, &n))
	}
	require.NoError(t, store.MarkDelivered(ctx, "p1"))

	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "p2", pending[0].ID)

	assert.ErrorIs(t, store.MarkDelivered(ctx, "missing"), ErrNotFound)
}

func TestPreferenceUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	prefs, err := store.GetPreferences(ctx, TeamLegal)
	require.NoError(t, err)
	assert.Empty(t, prefs)

	require.NoError(t, store.SetPreference(ctx, Preference{TeamID: TeamLegal, Channel: "webhook", WebhookURL: "http://a"}))
	require.NoError(t, store.SetPreference(ctx, Preference{
		TeamID: TeamLegal, Channel: "webhook", SeverityFilter: SeverityCritical, WebhookURL: "http://b",
	}))

	prefs, err = store.GetPreferences(ctx, TeamLegal)
	require.NoError(t, err)
	require.Len(t, prefs, 1)
	assert.Equal(t, "http://b", prefs[0].WebhookURL)
	assert.Equal(t, SeverityCritical, prefs[0].SeverityFilter)
}

func TestForClaim(t *testing.T) {
	rec := claims.ClaimRecord{
		ClaimID:          "CLM-7",
		TreatmentType:    claims.TreatmentGP,
		TreatmentDate:    claims.MustDate("2026-06-01"),
		ClaimedAmount:    60,
		Status:           claims.Pending,
		AIRecommendation: claims.Approved,
		AIPayout:         20,
		AIFlags:          []claims.Flag{claims.FlagLegalReview},
	}

	got := ForClaim("MEM-1", "Sean Murphy", rec)
	require.Len(t, got, 2)
	assert.Equal(t, TypeClaimPending, got[0].Type)
	assert.Contains(t, got[0].Message, "AI recommends APPROVED (€20.00)")
	assert.Equal(t, TypeLegalReview, got[1].Type)
	assert.Equal(t, SeverityCritical, got[1].Severity)
	assert.ElementsMatch(t, []string{TeamLegal, TeamClaimsOps}, got[1].Teams)

	rec.Status = claims.Approved
	rec.AIFlags = nil
	assert.Empty(t, ForClaim("MEM-1", "Sean Murphy", rec))

	rec.Status = claims.Rejected
	rec.AIFlags = []claims.Flag{claims.FlagDuplicate}
	dup := ForClaim("MEM-1", "Sean Murphy", rec)
	require.Len(t, dup, 1)
	assert.Equal(t, TypeDuplicateSuspected, dup[0].Type)
}

func TestDispatcherDeliversBySeverity(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	ops := &webhookRecorder{}
	opsSrv := httptest.NewServer(ops)
	defer opsSrv.Close()
	legal := &webhookRecorder{}
	legalSrv := httptest.NewServer(legal)
	defer legalSrv.Close()

	require.NoError(t, store.SetPreference(ctx, Preference{TeamID: TeamClaimsOps, Channel: "webhook", WebhookURL: opsSrv.URL}))
	require.NoError(t, store.SetPreference(ctx, Preference{
		TeamID: TeamLegal, Channel: "webhook", SeverityFilter: SeverityCritical, WebhookURL: legalSrv.URL,
	}))

	d := NewDispatcher(store, zap.NewNop())

	info := testNotification("info-1")
	info.Teams = []string{TeamClaimsOps, TeamLegal}
	require.NoError(t, store.Create(ctx, &info))
	d.deliver(ctx, info)

	assert.Equal(t, 1, ops.count())
	assert.Equal(t, 0, legal.count())

	got, err := store.GetByID(ctx, "info-1")
	require.NoError(t, err)
	assert.True(t, got.Delivered)
}

func TestDispatcherFailedWebhookStaysPending(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	hook := &webhookRecorder{status: http.StatusBadGateway}
	srv := httptest.NewServer(hook)
	defer srv.Close()
	require.NoError(t, store.SetPreference(ctx, Preference{TeamID: TeamClaimsOps, Channel: "webhook", WebhookURL: srv.URL}))

	d := NewDispatcher(store, zap.NewNop())
	n := testNotification("f-1")
	require.NoError(t, store.Create(ctx, &n))
	d.deliver(ctx, n)

	assert.Equal(t, 1, hook.count())
	pending, err := store.GetPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestDispatcherRun(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
		goleak.IgnoreTopFunction("internal/poll.runtime_pollWait"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
	)

	store := setupTestStore(t)
	hook := &webhookRecorder{}
	srv := httptest.NewServer(hook)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, store.SetPreference(ctx, Preference{TeamID: TeamClaimsOps, Channel: "webhook", WebhookURL: srv.URL}))

	// Left pending by an earlier run.
	old := testNotification("old")
	require.NoError(t, store.Create(ctx, &old))

	d := NewDispatcher(store, zap.NewNop())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	noPending := func() bool {
		pending, err := store.GetPending(context.Background())
		return err == nil && len(pending) == 0
	}
	require.Eventually(t, noPending, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, hook.count())

	rec := claims.ClaimRecord{ClaimID: "CLM-9", Status: claims.Pending, AIRecommendation: claims.Approved}
	require.NoError(t, d.NotifyClaim(ctx, "MEM-1", "Sean Murphy", rec))

	require.Eventually(t, noPending, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, hook.count())

	cancel()
	require.NoError(t, <-done)
	d.client.CloseIdleConnections()
}

func TestDigestGeneration(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	a := testNotification("d1")
	b := testNotification("d2")
	b.Type = TypeLegalReview
	b.Teams = []string{TeamLegal}
	for _, n := range []*Notification{&a, &b} {
		require.NoError(t, store.Create(ctx, n))
	}

	d := NewDispatcher(store, zap.NewNop())
	digest, err := d.GenerateDigest(ctx, TeamClaimsOps, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, digest.Notifications, 1)
	assert.Equal(t, 1, digest.Counts[TypeClaimPending])
	assert.Equal(t, "1 notification(s) for team claims-ops, 1 claim(s) awaiting review", digest.Summary)
}

func TestHTTPHandlers(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	n := testNotification("h1")
	require.NoError(t, store.Create(ctx, &n))

	r := chi.NewRouter()
	RegisterRoutes(r, store, NewDispatcher(store, zap.NewNop()))

	do := func(method, path string, body []byte) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(method, path, bytes.NewReader(body)))
		return w
	}

	w := do("GET", "/api/notifications/?member_id=MEM-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []Notification
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, do("GET", "/api/notifications/h1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do("GET", "/api/notifications/nope", nil).Code)

	w = do("GET", "/api/notifications/pending", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, do("POST", "/api/notifications/h1/deliver", nil).Code)
	assert.Equal(t, http.StatusNotFound, do("POST", "/api/notifications/nope/deliver", nil).Code)

	assert.Equal(t, http.StatusBadRequest, do("PUT", "/api/notifications/preferences", []byte(`{"team_id":"legal"}`)).Code)
	assert.Equal(t, http.StatusBadRequest, do("PUT", "/api/notifications/preferences",
		[]byte(`{"team_id":"legal","channel":"webhook","severity_filter":"loud"}`)).Code)
	assert.Equal(t, http.StatusOK, do("PUT", "/api/notifications/preferences",
		[]byte(`{"team_id":"legal","channel":"webhook","webhook_url":"http://x"}`)).Code)

	w = do("GET", "/api/notifications/preferences/legal", nil)
	var prefs []Preference
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &prefs))
	require.Len(t, prefs, 1)
	assert.Equal(t, SeverityInfo, prefs[0].SeverityFilter)

	w = do("GET", "/api/notifications/digest/claims-ops", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var digest Digest
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &digest))
	assert.Len(t, digest.Notifications, 1)
}

func TestSeverityMatches(t *testing.T) {
	assert.True(t, severityMatches(SeverityCritical, SeverityWarning))
	assert.True(t, severityMatches(SeverityInfo, ""))
	assert.False(t, severityMatches(SeverityInfo, SeverityWarning))
}
