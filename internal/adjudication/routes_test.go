package adjudication

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/ziadkadry99/claimdesk/internal/claims"
)

func newRouter(h *harness) chi.Router {
	r := chi.NewRouter()
	RegisterRoutes(r, h.pipeline, zap.NewNop())
	return r
}

func TestProcessEndpoint(t *testing.T) {
	h := newHarness(t, member("MEM-R"))
	r := newRouter(h)

	body, _ := json.Marshal(Request{MemberID: "MEM-R", Message: "GP visit with Dr. Mary Walsh on 2026-06-01, cost €60", Role: claims.RoleOperator})
	req := httptest.NewRequest(http.MethodPost, "/api/claims/process", bytes.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var res Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, claims.Approved, res.Decision)
	assert.Equal(t, 20.0, res.Payout)
	assert.NotEmpty(t, res.SessionID)
	assert.NotEmpty(t, res.Trace)
}

func TestProcessEndpointRejectsBadInput(t *testing.T) {
	h := newHarness(t, member("MEM-R"))
	r := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/api/claims/process", strings.NewReader(`{"member_id":"MEM-R","message":"   "}`))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/claims/process", strings.NewReader(`not json`))
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClaimStreamWebSocket(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	h := newHarness(t, member("MEM-S"))
	srv := httptest.NewServer(newRouter(h))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/claims", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(operator("MEM-S", gpDoc(60))))

	var (
		kinds []string
		last  Event
	)
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		kinds = append(kinds, ev.Type)
		if ev.Type == EventResult || ev.Type == EventError {
			last = ev
			break
		}
	}
	assert.Equal(t, EventStatus, kinds[0])
	assert.Len(t, kinds, 7)
	assert.Equal(t, EventResult, last.Type)
	assert.Equal(t, claims.Approved, last.Decision)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var bad Event
	require.NoError(t, conn.ReadJSON(&bad))
	assert.Equal(t, EventError, bad.Type)
	assert.Equal(t, "invalid message format", bad.Error)
}
