package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shortontech/botsense/internal/analyzer"
	"github.com/shortontech/botsense/internal/event"
	"github.com/shortontech/botsense/internal/ingredient"
	"github.com/shortontech/botsense/internal/metrics"
	"github.com/shortontech/botsense/internal/report"
	"github.com/shortontech/botsense/internal/session"
	"github.com/shortontech/botsense/pkg/config"
)

type emitted struct {
	mu      sync.Mutex
	reports []report.Report
}

func (e *emitted) add(r report.Report) {
	e.mu.Lock()
	e.reports = append(e.reports, r)
	e.mu.Unlock()
}

func (e *emitted) all() []report.Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]report.Report(nil), e.reports...)
}

type testServer struct {
	env     Env
	handler http.Handler
	reports *emitted
}

func newTestServer(t *testing.T, kv session.KV) *testServer {
	t.Helper()
	if kv == nil {
		kv = session.NewMemoryKV(time.Hour)
	}
	reg := analyzer.NewRegistry(time.Minute, nil)
	t.Cleanup(reg.Close)

	defaults := analyzer.DefaultOptions()
	defaults.ProbeTimeout = 200 * time.Millisecond

	out := &emitted{}
	env := Env{
		Cfg:         config.Config{MaxBodyBytes: 1 << 20, CORSOrigins: []string{"*"}},
		Defaults:    defaults,
		Sessions:    reg,
		Store:       session.NewStore(kv, nil),
		Signer:      session.NewSigner("test-secret"),
		Ingredients: ingredient.NewMemoryStore(),
		Emit:        out.add,
		Metrics:     metrics.New(nil),
	}
	return &testServer{env: env, handler: NewRouter(env), reports: out}
}

func (ts *testServer) do(t *testing.T, method, path string, body any, mutate ...func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, m := range mutate {
		m(req)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

var humanSnapshot = map[string]any{
	"webgl":     map[string]any{"vendor": "Intel Inc.", "renderer": "Intel Iris OpenGL Engine"},
	"canvas":    "a1b2c3d4",
	"screen":    map[string]any{"width": 1920, "height": 1080, "availWidth": 1920, "availHeight": 1040},
	"fonts":     []string{"Arial", "Georgia"},
	"plugins":   []map[string]any{{"name": "PDF Viewer"}},
	"languages": []string{"en-US", "en"},
}

var headlessSnapshot = map[string]any{
	"canvas": "a1b2c3d4",
	"screen": map[string]any{"width": 800, "height": 600, "availWidth": 800, "availHeight": 600},
}

func scriptedEvents() []event.Event {
	var evs []event.Event
	for i := 0; i < 20; i++ {
		evs = append(evs, event.PointerAt(float64(i*10), float64(i), float64(i)))
	}
	for i := 0; i < 10; i++ {
		evs = append(evs, event.KeyAt(float64(i*100), "a"), event.ScrollTo(float64(i*100), float64(i*100)))
	}
	for i := 0; i < 6; i++ {
		evs = append(evs, event.ClickAt(float64(2000+i*300), 1, 1))
	}
	return evs
}

func createSession(t *testing.T, ts *testServer, snapshot map[string]any, mutate ...func(*http.Request)) (createSessionResponse, *httptest.ResponseRecorder) {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/sessions", map[string]any{"fingerprint": snapshot}, mutate...)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	return decode[createSessionResponse](t, rec), rec
}

func TestHealthEndpoints(t *testing.T) {
	t.Run("healthz", func(t *testing.T) {
		rec := newTestServer(t, nil).do(t, http.MethodGet, "/healthz", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
			t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("readyz", func(t *testing.T) {
		rec := newTestServer(t, nil).do(t, http.MethodGet, "/readyz", nil)
		if rec.Code != http.StatusOK || rec.Body.String() != "ready" {
			t.Errorf("readyz = %d %q", rec.Code, rec.Body.String())
		}
	})

	t.Run("readyz with unreachable store", func(t *testing.T) {
		rec := newTestServer(t, downKV{}).do(t, http.MethodGet, "/readyz", nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("readyz = %d, want 503", rec.Code)
		}
	})
}

type downKV struct{}

func (downKV) Get(context.Context, string) (string, bool, error) { return "", false, errors.New("down") }
func (downKV) Set(context.Context, string, string) error { return errors.New("down") }
func (downKV) Ping(context.Context) error { return errors.New("down") }

func TestAssets(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodGet, "/", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("index = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = ts.do(t, http.MethodGet, "/analyzer.js", nil)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "application/javascript") {
		t.Errorf("analyzer.js = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestCreateSession(t *testing.T) {
	t.Run("sets signed cookie", func(t *testing.T) {
		ts := newTestServer(t, nil)
		resp, rec := createSession(t, ts, humanSnapshot)

		if resp.SessionID == "" || len(resp.FingerprintHash) != 16 {
			t.Errorf("response = %+v", resp)
		}
		cookies := rec.Result().Cookies()
		if len(cookies) != 1 || cookies[0].Name != session.CookieName {
			t.Fatalf("cookies = %v", cookies)
		}
		if id, ok := ts.env.Signer.Verify(cookies[0].Value); !ok || id != resp.SessionID {
			t.Errorf("cookie verifies to %q, %v", id, ok)
		}
		if ts.env.Sessions.Len() != 1 {
			t.Errorf("registry has %d sessions, want 1", ts.env.Sessions.Len())
		}
	})

	t.Run("returning visitor reports previous hash", func(t *testing.T) {
		ts := newTestServer(t, nil)
		first, rec := createSession(t, ts, humanSnapshot)
		cookie := rec.Result().Cookies()[0]

		second, _ := createSession(t, ts, humanSnapshot, func(r *http.Request) { r.AddCookie(cookie) })
		res := decode[analyzer.Result](t, ts.do(t, http.MethodGet, "/api/sessions/"+second.SessionID+"/analysis", nil))
		if res.Details.Fingerprint.PreviousFingerprintHash != first.FingerprintHash {
			t.Errorf("previous hash = %q, want %q", res.Details.Fingerprint.PreviousFingerprintHash, first.FingerprintHash)
		}
	})

	t.Run("forged cookie is ignored", func(t *testing.T) {
		ts := newTestServer(t, nil)
		createSession(t, ts, humanSnapshot)
		forged := &http.Cookie{Name: session.CookieName, Value: "someone-else.deadbeef"}

		second, _ := createSession(t, ts, humanSnapshot, func(r *http.Request) { r.AddCookie(forged) })
		res := decode[analyzer.Result](t, ts.do(t, http.MethodGet, "/api/sessions/"+second.SessionID+"/analysis", nil))
		if res.Details.Fingerprint.PreviousFingerprintHash != "" {
			t.Errorf("previous hash = %q, want empty", res.Details.Fingerprint.PreviousFingerprintHash)
		}
	})

	t.Run("proxy and automation headers", func(t *testing.T) {
		ts := newTestServer(t, nil)
		resp, _ := createSession(t, ts, humanSnapshot, func(r *http.Request) {
			r.Header.Set("Via", "1.1 squid")
			r.Header.Set("User-Agent", "Mozilla/5.0 HeadlessChrome/120.0")
		})
		res := decode[analyzer.Result](t, ts.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/analysis", nil))
		if res.NetworkOK {
			t.Error("NetworkOK = true with a Via header")
		}
		if len(res.Details.Network.AutomationHeaders) != 1 {
			t.Errorf("AutomationHeaders = %v", res.Details.Network.AutomationHeaders)
		}
		if res.Details.Network.ReportedIP != "192.0.2.1" {
			t.Errorf("ReportedIP = %q, want httptest remote address", res.Details.Network.ReportedIP)
		}
	})

	t.Run("bad payloads", func(t *testing.T) {
		ts := newTestServer(t, nil)
		if rec := ts.do(t, http.MethodPost, "/api/sessions", "{not json"); rec.Code != http.StatusBadRequest {
			t.Errorf("malformed = %d, want 400", rec.Code)
		}

		ts.env.Cfg.MaxBodyBytes = 16
		small := NewRouter(ts.env)
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{"fingerprint":{"fonts":["Arial","Georgia"]}}`))
		rec := httptest.NewRecorder()
		small.ServeHTTP(rec, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("oversized = %d, want 413", rec.Code)
		}
	})

	t.Run("cancelled request", func(t *testing.T) {
		ts := newTestServer(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(`{}`)).WithContext(ctx)
		rec := httptest.NewRecorder()
		ts.env.CreateSession(rec, req)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", rec.Code)
		}
	})
}

func TestRecordEvents(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := createSession(t, ts, humanSnapshot)
	path := "/api/sessions/" + resp.SessionID + "/events"

	body := `{"events":[{"type":"click","ts":10,"x":1,"y":2},{"type":"teleport","ts":11},{"type":"scroll","ts":-5}]}`
	rec := ts.do(t, http.MethodPost, path, body)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	got := decode[map[string]int](t, rec)
	if got["accepted"] != 1 || got["rejected"] != 2 {
		t.Errorf("counts = %v", got)
	}

	m := ts.env.Metrics
	if v := testutil.ToFloat64(m.EventsRecorded.WithLabelValues("click")); v != 1 {
		t.Errorf("click events = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.InvalidEvents.WithLabelValues("unknown_kind")); v != 1 {
		t.Errorf("unknown kind = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.InvalidEvents.WithLabelValues("bad_timestamp")); v != 1 {
		t.Errorf("bad timestamp = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/api/sessions/{id}/events", "POST", "202")); v != 1 {
		t.Errorf("http requests = %v, want 1", v)
	}

	t.Run("array and single forms", func(t *testing.T) {
		for _, body := range []string{`[{"type":"copy","ts":20}]`, `{"type":"paste","ts":21}`} {
			rec := ts.do(t, http.MethodPost, path, body)
			if got := decode[map[string]int](t, rec); got["accepted"] != 1 {
				t.Errorf("%s accepted %v", body, got)
			}
		}
	})

	t.Run("unknown session", func(t *testing.T) {
		if rec := ts.do(t, http.MethodPost, "/api/sessions/nope/events", `[]`); rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestVerdictAndReports(t *testing.T) {
	t.Run("scripted headless visitor is a bot", func(t *testing.T) {
		ts := newTestServer(t, nil)
		resp, _ := createSession(t, ts, headlessSnapshot)
		ts.do(t, http.MethodPost, "/api/sessions/"+resp.SessionID+"/events", map[string]any{"events": scriptedEvents()})

		rec := ts.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/verdict", nil)
		v := decode[analyzer.Verdict](t, rec)
		if v.IsHuman || v.BotScore != 0.9 {
			t.Errorf("verdict = %+v, want bot with score 0.9", v)
		}
		if v.Details.Pointer != "Suspicious" || v.Details.Fingerprint != "Inconsistent" || v.Details.Network != "Clean" {
			t.Errorf("labels = %+v", v.Details)
		}

		reports := ts.reports.all()
		if len(reports) != 1 {
			t.Fatalf("emitted %d reports, want 1", len(reports))
		}
		r := reports[0]
		if r.SessionID != resp.SessionID || !r.IsBot || r.Classification() != "bot" || r.ID == "" {
			t.Errorf("report = %+v", r)
		}
		if r.FingerprintHash != resp.FingerprintHash {
			t.Errorf("report hash = %q, want %q", r.FingerprintHash, resp.FingerprintHash)
		}
	})

	t.Run("each analysis emits a fresh report", func(t *testing.T) {
		ts := newTestServer(t, nil)
		resp, _ := createSession(t, ts, humanSnapshot)
		ts.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/analysis", nil)
		ts.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/analysis", nil)

		reports := ts.reports.all()
		if len(reports) != 2 || reports[0].ID == reports[1].ID {
			t.Errorf("reports = %+v, want two with distinct ids", reports)
		}
		if reports[0].IsBot {
			t.Errorf("fresh human session classified as bot: %+v", reports[0])
		}
	})
}

func TestPeerIP(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := createSession(t, ts, humanSnapshot)
	path := "/api/sessions/" + resp.SessionID + "/peer-ip"

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty", `{}`, http.StatusBadRequest},
		{"invalid address", `{"publicIp":"not-an-ip"}`, http.StatusBadRequest},
		{"accepted", `{"localIp":"192.168.1.20","publicIp":"203.0.113.9"}`, http.StatusAccepted},
		{"second delivery", `{"publicIp":"198.51.100.1"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := ts.do(t, http.MethodPost, path, tt.body); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, nil)
	resp, _ := createSession(t, ts, humanSnapshot)

	if rec := ts.do(t, http.MethodDelete, "/api/sessions/"+resp.SessionID, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete = %d, want 204", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/sessions/"+resp.SessionID+"/verdict", nil); rec.Code != http.StatusNotFound {
		t.Errorf("verdict after delete = %d, want 404", rec.Code)
	}
	if rec := ts.do(t, http.MethodDelete, "/api/sessions/"+resp.SessionID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("second delete = %d, want 404", rec.Code)
	}
	if v := testutil.ToFloat64(ts.env.Metrics.ActiveSessions); v != 0 {
		t.Errorf("active sessions = %v, want 0", v)
	}
}

func TestIngredients(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(t, http.MethodPost, "/api/ingredients", map[string]any{"name": "flour", "quantity": 500, "unit": "g"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	flour := decode[ingredient.Ingredient](t, rec)

	if rec := ts.do(t, http.MethodPost, "/api/ingredients", map[string]any{"quantity": 1}); rec.Code != http.StatusBadRequest {
		t.Errorf("invalid create = %d, want 400", rec.Code)
	}

	list := decode[[]ingredient.Ingredient](t, ts.do(t, http.MethodGet, "/api/ingredients", nil))
	if len(list) != 1 || list[0].ID != flour.ID {
		t.Errorf("list = %+v", list)
	}

	rec = ts.do(t, http.MethodPut, "/api/ingredients/"+flour.ID, map[string]any{"name": "flour", "quantity": 750, "unit": "g"})
	if got := decode[ingredient.Ingredient](t, rec); rec.Code != http.StatusOK || got.Quantity != 750 || got.ID != flour.ID {
		t.Errorf("update = %d %+v", rec.Code, got)
	}

	if got := decode[ingredient.Ingredient](t, ts.do(t, http.MethodGet, "/api/ingredients/"+flour.ID, nil)); got.Quantity != 750 {
		t.Errorf("get = %+v", got)
	}

	if rec := ts.do(t, http.MethodDelete, "/api/ingredients/"+flour.ID, nil); rec.Code != http.StatusNoContent {
		t.Errorf("delete = %d, want 204", rec.Code)
	}
	if rec := ts.do(t, http.MethodGet, "/api/ingredients/"+flour.ID, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted = %d, want 404", rec.Code)
	}
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(t, http.MethodOptions, "/api/sessions", nil, func(r *http.Request) {
		r.Header.Set("Origin", "https://shop.example")
		r.Header.Set("Access-Control-Request-Method", "POST")
	})
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
