package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/claudio-seo/claudio/internal/audit"
	"github.com/claudio-seo/claudio/internal/config"
	"github.com/claudio-seo/claudio/internal/store"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const sitePage = `<html><head><title>Acme Widgets</title>
<meta name="description" content="Widgets for everyone"></head>
<body><h1>Widgets</h1><h2>Catalog</h2><img src="a.png"><a href="/about">About</a>
<p>Quality widgets shipped worldwide.</p></body></html>`

const auditText = "## Executive Summary\nAcme has a solid base.\n\n## Quick Wins\n- Add alt text to every product image on the catalog\n\n```json\n" +
	`{"score": 71, "verdict": "Promising", "tasks": [{"task": "Add alt text to product images", "priority": "high"}]}` + "\n```"

type testEnv struct {
	server *Server
	site   *httptest.Server
}

// newTestEnv wires a real audit service to fake upstreams: a target site, the
// Claude Messages API and an Ahrefs API that answers 404 everywhere.
func newTestEnv(t *testing.T, claudeStatus int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	site := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(sitePage))
	}))
	t.Cleanup(site.Close)

	claude := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" || r.Header.Get("x-api-key") != "sk-claude" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if claudeStatus != http.StatusOK {
			w.WriteHeader(claudeStatus)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`))
			return
		}
		body, _ := sjson.Set(`{"content":[{"type":"text","text":""}]}`, "content.0.text", auditText)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(claude.Close)

	ahrefs := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(ahrefs.Close)

	cfg := &config.Config{}
	cfg.Claude.APIKey = "sk-claude"
	cfg.Claude.BaseURL = claude.URL
	cfg.Ahrefs.APIKey = "ahrefs-key"
	cfg.Ahrefs.BaseURL = ahrefs.URL
	cfg.Ahrefs.RequestDelayMS = -1
	cfg.Sanitize()

	svc, err := audit.NewService(cfg, store.NewMemoryStore(10))
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(svc.Close)
	return &testEnv{server: NewServer(cfg, svc), site: site}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestStatusAndModels(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.do(t, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	want := map[string]string{"gemini": "not configured", "claude": "connected", "openai": "not configured", "ahrefs": "connected", "version": "dev"}
	var got map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("status = %s (err %v)", rec.Body.String(), err)
	}

	rec = env.do(t, http.MethodGet, "/api/models", "")
	ids := gjson.GetBytes(rec.Body.Bytes(), "models.#.id").Array()
	if len(ids) != 2 || ids[0].String() != "claude-sonnet-4-5" {
		t.Fatalf("models = %s", rec.Body.String())
	}
}

func TestCreateAudit_BasicAndDownloads(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	rec := env.do(t, http.MethodPost, "/api/audits", `{"url":"`+env.site.URL+`","model":"claude-opus-4-5"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body = %s", rec.Code, rec.Body.String())
	}
	body := gjson.ParseBytes(rec.Body.Bytes())
	id := body.Get("id").String()
	if id == "" || body.Get("type").String() != "basic" || body.Get("model").String() != "claude-opus-4-5" {
		t.Fatalf("create body = %s", rec.Body.String())
	}
	if body.Get("tasks_url").Exists() {
		t.Fatalf("basic audit advertises a task list")
	}
	if body.Get("analysis.title").String() != "Acme Widgets" {
		t.Fatalf("analysis = %s", body.Get("analysis").Raw)
	}

	rec = env.do(t, http.MethodGet, body.Get("report_url").String(), "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != docxMIME {
		t.Fatalf("report status = %d, type = %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	if disp := rec.Header().Get("Content-Disposition"); !strings.HasPrefix(disp, `attachment; filename="SEO_Audit_127.0.0.1_`) || !strings.HasSuffix(disp, `.docx"`) {
		t.Fatalf("disposition = %q", disp)
	}

	rec = env.do(t, http.MethodGet, "/api/audits/"+id+"/tasks.xlsx", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("tasks for basic audit status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/audits/"+id, "")
	if rec.Code != http.StatusOK || gjson.GetBytes(rec.Body.Bytes(), "id").String() != id {
		t.Fatalf("get audit = %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/audits?limit=5", "")
	if n := gjson.GetBytes(rec.Body.Bytes(), "audits.#").Int(); rec.Code != http.StatusOK || n != 1 {
		t.Fatalf("list = %d %s", rec.Code, rec.Body.String())
	}
}

func TestCreateAudit_Errors(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	cases := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"bad json", http.MethodPost, "/api/audits", `{"url":`, http.StatusBadRequest},
		{"missing url", http.MethodPost, "/api/audits", `{"url":""}`, http.StatusBadRequest},
		{"full unconfirmed", http.MethodPost, "/api/audits", `{"url":"acme.example","type":"full"}`, http.StatusBadRequest},
		{"unknown model", http.MethodPost, "/api/audits", `{"url":"` + env.site.URL + `","model":"nope"}`, http.StatusBadRequest},
		{"unknown audit", http.MethodGet, "/api/audits/does-not-exist", "", http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/audits?limit=zero", "", http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			rec := env.do(t, c.method, c.target, c.body)
			if rec.Code != c.want {
				t.Fatalf("status = %d, want %d, body = %s", rec.Code, c.want, rec.Body.String())
			}
			if !gjson.GetBytes(rec.Body.Bytes(), "error").Exists() {
				t.Fatalf("missing error field: %s", rec.Body.String())
			}
		})
	}
}

func TestCreateAudit_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, http.StatusTooManyRequests)
	rec := env.do(t, http.MethodPost, "/api/audits", `{"url":"`+env.site.URL+`"}`)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if msg := gjson.GetBytes(rec.Body.Bytes(), "error").String(); !strings.Contains(msg, "slow down") {
		t.Fatalf("error = %q", msg)
	}
}

func TestAuditWebsocket_FullAudit(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/audits/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status = %d", resp.StatusCode)
	}

	if err = conn.WriteJSON(audit.Request{URL: env.site.URL, Type: "full", ConfirmAhrefs: true}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	// A stray frame after the request must not cancel the audit.
	if err = conn.WriteMessage(websocket.TextMessage, []byte(`{"url":"ignored.example"}`)); err != nil {
		t.Fatalf("write extra frame: %v", err)
	}
	var percents []int
	var result wsMessage
	for {
		var msg wsMessage
		if err = conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		if msg.Type == wsMessageProgress {
			percents = append(percents, msg.Percent)
			continue
		}
		result = msg
		break
	}
	if want := []int{20, 40, 60, 80, 100}; !reflect.DeepEqual(percents, want) {
		t.Fatalf("progress = %v, want %v", percents, want)
	}
	if result.Type != wsMessageResult || result.Audit == nil {
		t.Fatalf("final frame = %+v", result)
	}
	if result.Audit.TasksURL == "" || len(result.Audit.Tasks) != 1 || result.Audit.Summary.Score != 71 {
		t.Fatalf("audit = %+v", result.Audit.Record)
	}
	if len(result.Audit.Warnings) != 1 || !strings.HasPrefix(result.Audit.Warnings[0], "Ahrefs data incomplete: ") {
		t.Fatalf("warnings = %q", result.Audit.Warnings)
	}

	rec := env.do(t, http.MethodGet, result.Audit.TasksURL, "")
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != xlsxMIME {
		t.Fatalf("tasks download = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestAuditWebsocket_ValidationError(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)
	srv := httptest.NewServer(env.server.Handler())
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/audits/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if err = conn.WriteJSON(audit.Request{URL: "acme.example", Type: "full"}); err != nil {
		t.Fatalf("write request: %v", err)
	}
	var msg wsMessage
	if err = conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Type != wsMessageError || msg.Status != http.StatusBadRequest || !strings.Contains(msg.Error, "confirmed") {
		t.Fatalf("frame = %+v", msg)
	}
}

func TestFormPage(t *testing.T) {
	env := newTestEnv(t, http.StatusOK)

	form := url.Values{"url": {env.site.URL}, "type": {"basic"}}
	req := httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("submit status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "Download report (.docx)") || strings.Contains(rec.Body.String(), "Download tasks") {
		t.Fatalf("result page = %s", rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Recent audits") || !strings.Contains(rec.Body.String(), "Claude Sonnet 4.5") {
		t.Fatalf("index = %s", rec.Body.String())
	}

	form = url.Values{"url": {""}}
	req = httptest.NewRequest(http.MethodPost, "/audit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec = httptest.NewRecorder()
	env.server.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "url is required") {
		t.Fatalf("empty submit = %d %s", rec.Code, rec.Body.String())
	}
}
