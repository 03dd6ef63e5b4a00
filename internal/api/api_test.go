package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chatbot-console/internal/auth"
	"chatbot-console/internal/backend"
	"chatbot-console/internal/config"
	"chatbot-console/internal/database"
	"chatbot-console/internal/graph"
	"chatbot-console/internal/logger"
	"chatbot-console/internal/store"
	"chatbot-console/internal/ws"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "test-secret"

type fixture struct {
	t       *testing.T
	router  *gin.Engine
	backend *http.ServeMux
	server  *httptest.Server
	graph   *http.ServeMux
	store   store.Store
	token   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	graphMux := http.NewServeMux()
	graphServer := httptest.NewServer(graphMux)
	t.Cleanup(graphServer.Close)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := database.Open(sqlite.Open(dsn), gormlogger.Silent)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	s := store.NewGormStore(db, nil)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := ws.NewHub(nil, logger.Discard())
	go hub.Run(ctx)

	cfg := &config.Config{
		BackendURL:            server.URL,
		AppURL:                "https://console.example.com",
		CORSOrigins:           "*",
		JWTSecret:             testSecret,
		KnowledgeDeletePolicy: "badge",
		WizardFileLimit:       10,
		DetailFileLimit:       50,
		DashboardCacheTTL:     5 * time.Minute,
	}
	cfg.Settings.N8N.WorkflowID = "wf-default"
	cfg.Settings.N8N.WebhookURL = "https://n8n.example.com/hook"

	deps := &Deps{
		Config: cfg,
		Backend: backend.NewClient(server.URL,
			backend.WithTokenSource(auth.RequestTokens{}),
			backend.WithLogger(logger.Discard())),
		Graph: graph.NewClient(graphServer.URL, nil),
		Hub:   hub,
		Store: s,
		Log:   logger.Discard(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)

	return &fixture{
		t:       t,
		router:  NewRouter(deps),
		backend: mux,
		server:  server,
		graph:   graphMux,
		store:   s,
		token:   signed,
	}
}

func (f *fixture) request(method, path string, body interface{}, authed bool) *httptest.ResponseRecorder {
	f.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(f.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	f.t.Helper()
	return f.request(method, path, body, true)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestProxyChat_PicksEndpointByIdentity(t *testing.T) {
	f := newFixture(t)

	var seen []*http.Request
	handler := func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Clone(context.Background()))
		var body models.ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "hello", body.Message)
		w.Write([]byte(`{"output":"hi","nested":{"kept":true}}`))
	}
	f.backend.HandleFunc("POST /v1/api/n8n/anonymous/chat/custom", handler)
	f.backend.HandleFunc("POST /v1/api/n8n/authenticated/chat/custom", handler)

	payload := models.ChatRequest{
		Message:        "hello",
		WorkflowID:     "wf-1",
		WebhookURL:     "https://n8n.example.com/wf-1",
		SessionID:      "sess-9",
		Attachments:    []models.Attachment{{Name: "a.pdf", Type: "application/pdf", Size: 10}, {Name: "b.pdf"}},
		FileReferences: []models.FileReference{{FileID: "f1"}, {FileID: "f2"}},
	}

	w := f.request(http.MethodPost, "/api/n8n", payload, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"output":"hi","nested":{"kept":true}}`, w.Body.String())

	w = f.request(http.MethodPost, "/api/n8n", payload, true)
	require.Equal(t, http.StatusOK, w.Code)

	require.Len(t, seen, 2)
	anon, authed := seen[0], seen[1]
	assert.Equal(t, "/v1/api/n8n/anonymous/chat/custom", anon.URL.Path)
	assert.Empty(t, anon.Header.Get("Authorization"))
	assert.Equal(t, "/v1/api/n8n/authenticated/chat/custom", authed.URL.Path)
	assert.Equal(t, "Bearer "+f.token, authed.Header.Get("Authorization"))

	assert.Equal(t, "wf-1", anon.Header.Get("X-Workflow-Id"))
	assert.Equal(t, "https://n8n.example.com/wf-1", anon.Header.Get("X-Webhook-Url"))
	assert.Equal(t, "sess-9", anon.Header.Get("X-Session-Id"))
	assert.Equal(t, "2", anon.Header.Get("X-Attachment-Count"))
	assert.Equal(t, "a.pdf,b.pdf", anon.Header.Get("X-Attachment-Names"))
	assert.Equal(t, "2", anon.Header.Get("X-File-Reference-Count"))
	assert.Equal(t, "f1,f2", anon.Header.Get("X-File-Ids"))
}

func TestProxyChat_EscapesFileHeaders(t *testing.T) {
	f := newFixture(t)

	var got http.Header
	f.backend.HandleFunc("POST /v1/api/n8n/anonymous/chat/custom", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.Write([]byte(`{"output":"ok"}`))
	})

	w := f.request(http.MethodPost, "/api/n8n", models.ChatRequest{
		Message:        "hello",
		WorkflowID:     "wf-1\r\n",
		Attachments:    []models.Attachment{{Name: "report\nQ1.pdf"}, {Name: "a,b.pdf"}},
		FileReferences: []models.FileReference{{FileID: "f\r1"}},
	}, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	require.NotNil(t, got)
	assert.Equal(t, "report%0AQ1.pdf,a%2Cb.pdf", got.Get("X-Attachment-Names"))
	assert.Equal(t, "f%0D1", got.Get("X-File-Ids"))
	assert.Equal(t, "wf-1", got.Get("X-Workflow-Id"))
}

func TestProxyChat_Errors(t *testing.T) {
	f := newFixture(t)
	f.backend.HandleFunc("POST /v1/api/n8n/anonymous/chat/custom", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"message": "workflow offline"})
	})

	var perr models.ProxyError

	w := f.request(http.MethodPost, "/api/n8n", map[string]string{"workflowId": "wf"}, false)
	require.Equal(t, http.StatusBadRequest, w.Code)
	decode(t, w, &perr)
	assert.False(t, perr.Success)
	assert.Equal(t, "VALIDATION_ERROR", perr.ErrorCode)
	assert.NotEmpty(t, perr.Timestamp)

	w = f.request(http.MethodPost, "/api/n8n", map[string]string{"message": "hi"}, false)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	decode(t, w, &perr)
	assert.Equal(t, "BACKEND_ERROR", perr.ErrorCode)
	assert.Equal(t, "workflow offline", perr.ErrorMessage)

	f.server.Close()
	w = f.request(http.MethodPost, "/api/n8n", map[string]string{"message": "hi"}, false)
	require.Equal(t, http.StatusBadGateway, w.Code)
	decode(t, w, &perr)
	assert.Equal(t, "PROXY_ERROR", perr.ErrorCode)
}

func TestProxyChat_FallsBackToSavedWorkflow(t *testing.T) {
	f := newFixture(t)
	var workflow string
	f.backend.HandleFunc("POST /v1/api/n8n/authenticated/chat/custom", func(w http.ResponseWriter, r *http.Request) {
		workflow = r.Header.Get("X-Workflow-Id")
		w.Write([]byte(`{}`))
	})

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/n8n", map[string]string{"message": "hi"}).Code)
	assert.Equal(t, "wf-default", workflow)

	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/n8n/config", models.N8NConfig{WorkflowID: "wf-mine", WebhookURL: "https://n8n.example.com/mine"}).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/n8n", map[string]string{"message": "hi"}).Code)
	assert.Equal(t, "wf-mine", workflow)
}

func TestProxyHealth(t *testing.T) {
	f := newFixture(t)
	f.backend.HandleFunc("GET /v1/api/n8n/workflow/health", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wf-1", r.URL.Query().Get("workflowId"))
		assert.Equal(t, "https://hook", r.URL.Query().Get("webhookUrl"))
		w.Write([]byte(`{"healthy":true}`))
	})

	w := f.request(http.MethodGet, "/api/n8n?workflowId=wf-1", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.request(http.MethodGet, "/api/n8n?workflowId=wf-1&webhookUrl=https://hook", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"healthy":true}`, w.Body.String())
}

func TestConfigAndSession_PerUser(t *testing.T) {
	f := newFixture(t)

	var cfg models.N8NConfig
	w := f.do(http.MethodGet, "/api/n8n/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cfg)
	assert.Equal(t, "wf-default", cfg.WorkflowID)

	var first, second map[string]string
	w = f.do(http.MethodGet, "/api/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &first)
	require.NotEmpty(t, first["sessionId"])

	decode(t, f.do(http.MethodGet, "/api/session", nil), &second)
	assert.Equal(t, first["sessionId"], second["sessionId"])

	entry, err := f.store.Get(context.Background(), "user:user-1:"+store.SessionIDKey)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.JSONEq(t, `"`+first["sessionId"]+`"`, string(entry.Data))
}

func TestWorkspaceState_RejectsForgedToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPut, "/api/n8n/config", models.N8NConfig{WorkflowID: "secret-wf", WebhookURL: "https://victim/hook"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte("made-up-key"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/n8n/config", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-wf")
}

func TestWorkspaceRoutes_RequireIdentity(t *testing.T) {
	f := newFixture(t)
	for _, path := range []string{"/api/session", "/api/wizards/abc", "/api/chatbots/7", "/api/dashboard"} {
		w := f.request(http.MethodGet, path, nil, false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
}

func TestCORS_Preflight(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/n8n", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), "PUT")
}

func TestChat_SessionAndFailureReply(t *testing.T) {
	f := newFixture(t)

	var sessions []string
	fail := false
	f.backend.HandleFunc("POST /v1/api/n8n/authenticated/chat", func(w http.ResponseWriter, r *http.Request) {
		var req models.SendChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, models.ID("7"), req.ChatbotID)
		sessions = append(sessions, req.SessionID)
		if fail {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "boom"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"output": `{"output":"<p>Hello</p>"}`})
	})

	var resp chatResponse
	w := f.do(http.MethodPost, "/api/chatbots/7/chat", map[string]string{"message": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.False(t, resp.Error)
	assert.Equal(t, "<p>Hello</p>", resp.Message.Content)
	assert.True(t, resp.Message.HTML)
	assert.Equal(t, "assistant", string(resp.Message.Role))

	fail = true
	w = f.do(http.MethodPost, "/api/chatbots/7/chat", map[string]string{"message": "again"})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &resp)
	assert.True(t, resp.Error)
	assert.Equal(t, "Sorry, I encountered an error. Please try again.", resp.Message.Content)

	require.Len(t, sessions, 2)
	assert.Equal(t, sessions[0], sessions[1])
	assert.Equal(t, sessions[0], resp.SessionID)
}
