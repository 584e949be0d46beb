package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracesim/pkg/auth"
	"tracesim/pkg/metrics"
	"tracesim/pkg/model"
	"tracesim/pkg/store"
	"tracesim/pkg/topology"
	"tracesim/pkg/tracer"
)

func newTestServer(t *testing.T, failure float64) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := auth.NewMemoryDirectory()
	_, err := dir.Add("testuser", "password", true)
	require.NoError(t, err)
	_, err = dir.Add("bob", "hunter2", false)
	require.NoError(t, err)

	tables := topology.DefaultTables()
	tables.Failure = failure
	audit := store.NewMemoryAudit(0)
	m := metrics.New()
	noSleep := func(time.Duration) {}
	svc := tracer.New(topology.NewGenerator(tables), store.NewLedger(store.DefaultCapacity),
		tracer.WithSleeper(noSleep),
		tracer.WithAudit(audit),
		tracer.WithMetrics(m),
	)

	return NewServer(Deps{
		Tracer:    svc,
		Issuer:    auth.NewIssuer("test-secret", time.Hour),
		Directory: dir,
		Audit:     audit,
		Metrics:   m,
		Sleep:     noSleep,
	})
}

func do(s *Server, method, target, token string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("token", token)
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func login(t *testing.T, s *Server, username, password string) string {
	t.Helper()
	w := do(s, http.MethodPost, "/verify-device-auth", "", `{"username":"`+username+`","password":"`+password+`"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var token string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &token))
	require.NotEmpty(t, token)
	return token
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorBody {
	t.Helper()
	var body ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, 0)
	w := do(s, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tracesim backend is running")

	w = do(s, http.MethodGet, "/healthz", "", "")
	assert.Equal(t, "ok", w.Body.String())
}

func TestLogin(t *testing.T) {
	s := newTestServer(t, 0)
	login(t, s, "testuser", "password")

	w := do(s, http.MethodPost, "/verify-device-auth", "", `{"username":"testuser","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "incorrect username or password", decodeError(t, w).Detail)

	w = do(s, http.MethodPost, "/verify-device-auth", "", `{"username":"testuser"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "password", decodeError(t, w).Field)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, 0)
	for _, target := range []string{"/get-route-trace", "/get-mac-trace?ip=a&dg=b", "/audit"} {
		w := do(s, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
	}
	w := do(s, http.MethodPost, "/get-user-routes", "garbage", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBearerHeaderAccepted(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")
	req := httptest.NewRequest(http.MethodPost, "/get-user-routes", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestGetDefaultGateway(t *testing.T) {
	s := newTestServer(t, 0)
	w := do(s, http.MethodGet, "/get-default-gateway?ip=10.1.1.1", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `"10.1.1.254"`, w.Body.String())

	w = do(s, http.MethodGet, "/get-default-gateway", "", "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestRouteTraceAndHistory(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")

	w := do(s, http.MethodGet, "/get-route-trace?source_ip=10.1.1.5&destination_ip=10.2.2.9&source_dg=10.1.1.1&destination_dg=10.2.2.1", token, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var hops []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hops))
	require.GreaterOrEqual(t, len(hops), 5)
	assert.Equal(t, "10.1.1.1", hops[0]["ip"])
	assert.Equal(t, "10.2.2.1", hops[len(hops)-1]["ip"])
	assert.Nil(t, hops[len(hops)-1]["nexthop_int_ip"])
	assert.Contains(t, hops[len(hops)-1], "nexthop_int_ip")

	w = do(s, http.MethodGet, "/get-mac-trace?ip=10.1.1.5&dg=10.1.1.1", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	bob := login(t, s, "bob", "hunter2")
	w = do(s, http.MethodGet, "/get-mac-trace?ip=10.3.3.5&dg=10.3.3.1", bob, "")
	require.Equal(t, http.StatusOK, w.Code)

	var mine []model.HistoryEntry
	w = do(s, http.MethodPost, "/get-user-routes", token, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &mine))
	require.Len(t, mine, 2)
	assert.Equal(t, model.TraceMAC, mine[0].TraceType)
	assert.Equal(t, model.TraceCombined, mine[1].TraceType)
	assert.Equal(t, "testuser", mine[1].Owner.Username)

	var all []model.HistoryEntry
	w = do(s, http.MethodPost, "/get-all-routes", bob, "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 3)

	w = do(s, http.MethodPost, `/get-all-routes?filter=user+%3D%3D+%22bob%22`, token, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Len(t, all, 1)
	assert.Equal(t, "10.3.3.5", all[0].Source)

	w = do(s, http.MethodPost, "/get-all-routes?filter=user+%3D%3D", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "filter", decodeError(t, w).Field)
}

func TestRouteTraceValidation(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")

	w := do(s, http.MethodGet, "/get-route-trace?source_ip=10.1.1.1&source_dg=10.1.1.1&destination_ip=10.2.2.1&destination_dg=10.2.2.1", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "vrf", decodeError(t, w).Field)

	w = do(s, http.MethodGet, "/get-route-trace?source_ip=10.1.1.5&destination_ip=10.2.2.9", token, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "source_dg", decodeError(t, w).Field)

	w = do(s, http.MethodGet, "/get-route-trace?source_ip=10.1.1.1&source_dg=10.1.1.1&destination_ip=10.2.2.1&destination_dg=10.2.2.1&vrf=VRF-A", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	var hops []model.Hop
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hops))
	for _, h := range hops {
		assert.Equal(t, "VRF-A", h.VRF)
	}
}

func TestSimulatedFailureIs503(t *testing.T) {
	s := newTestServer(t, 1)
	token := login(t, s, "testuser", "password")

	w := do(s, http.MethodGet, "/get-mac-trace?ip=10.1.1.5&dg=10.1.1.1", token, "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))

	w = do(s, http.MethodPost, "/get-user-routes", token, "")
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestRouteDOT(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")
	require.Equal(t, http.StatusOK, do(s, http.MethodGet, "/get-mac-trace?ip=10.1.1.5&dg=10.1.1.1", token, "").Code)

	w := do(s, http.MethodGet, "/routes/1/dot", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "digraph route_1"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/vnd.graphviz")

	bob := login(t, s, "bob", "hunter2")
	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/routes/1/dot", bob, "").Code)
	assert.Equal(t, http.StatusUnprocessableEntity, do(s, http.MethodGet, "/routes/x/dot", token, "").Code)
}

func TestAuditAdminOnly(t *testing.T) {
	s := newTestServer(t, 0)
	admin := login(t, s, "testuser", "password")
	bob := login(t, s, "bob", "hunter2")

	assert.Equal(t, http.StatusForbidden, do(s, http.MethodGet, "/audit", bob, "").Code)

	w := do(s, http.MethodGet, "/audit", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp auditResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 2)
	assert.Equal(t, model.AuditLogin, resp.Entries[0].Action)
	assert.Equal(t, "testuser", resp.Entries[0].Actor)

	w = do(s, http.MethodGet, "/audit?limit=1", admin, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 1)

	w = do(s, http.MethodGet, "/audit?limit=abc", admin, "")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.JSONEq(t, `{"detail":"must be an integer","field":"limit"}`, w.Body.String())
}

func TestCORSForFrontend(t *testing.T) {
	s := newTestServer(t, 0)
	req := httptest.NewRequest(http.MethodOptions, "/get-route-trace", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	req.Header.Set("Access-Control-Request-Headers", "token")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, 0)
	login(t, s, "testuser", "password")
	w := do(s, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `tracesim_logins_total{outcome="ok"} 1`)
}

func TestWebsocketStreamsHops(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trace?kind=mac&ip=10.1.1.5&dg=10.1.1.1&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var types []string
	var last WSMessage
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		types = append(types, msg.Type)
		last = msg
	}
	require.GreaterOrEqual(t, len(types), 4)
	assert.Equal(t, "started", types[0])
	assert.Equal(t, "done", last.Type)
	for _, typ := range types[1 : len(types)-1] {
		assert.Equal(t, "hop", typ)
	}
	assert.Equal(t, float64(len(types)-2), last.Payload.(map[string]any)["hops"])
}

func TestWebsocketRejectsMissingToken(t *testing.T) {
	s := newTestServer(t, 0)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trace?kind=mac&ip=10.1.1.5&dg=10.1.1.1"
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func readStream(t *testing.T, srv *httptest.Server, query, token string) []WSMessage {
	t.Helper()
	u := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/trace?" + query + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	defer conn.Close()

	var msgs []WSMessage
	for {
		var msg WSMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return msgs
		}
		msgs = append(msgs, msg)
	}
}

func TestWebsocketErrorFrameCarriesStatus(t *testing.T) {
	tests := []struct {
		name    string
		failure float64
		query   string
		status  float64
		field   string
	}{
		{name: "missing gateway", query: "kind=mac&ip=10.1.1.5", status: http.StatusUnprocessableEntity, field: "dg"},
		{name: "missing vrf", query: "source_ip=10.1.1.1&source_dg=10.1.1.1&destination_ip=10.2.2.1&destination_dg=10.2.2.1", status: http.StatusUnprocessableEntity, field: "vrf"},
		{name: "simulated failure", failure: 1, query: "kind=mac&ip=10.1.1.5&dg=10.1.1.1", status: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, tt.failure)
			token := login(t, s, "testuser", "password")
			srv := httptest.NewServer(s.Handler())
			defer srv.Close()

			msgs := readStream(t, srv, tt.query, token)
			require.Len(t, msgs, 2)
			assert.Equal(t, "started", msgs[0].Type)
			require.Equal(t, "error", msgs[1].Type)
			payload := msgs[1].Payload.(map[string]any)
			assert.Equal(t, tt.status, payload["status"])
			assert.NotEmpty(t, payload["detail"])
			if tt.field != "" {
				assert.Equal(t, tt.field, payload["field"])
			} else {
				assert.NotContains(t, payload, "field")
			}
		})
	}
}

func TestWebsocketStreamsGauge(t *testing.T) {
	s := newTestServer(t, 0)
	token := login(t, s, "testuser", "password")
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	msgs := readStream(t, srv, "kind=mac&ip=10.1.1.5&dg=10.1.1.1", token)
	require.NotEmpty(t, msgs)
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(s.deps.Metrics.WSStreams) == 0
	}, time.Second, 10*time.Millisecond)
}
