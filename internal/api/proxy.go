package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode"

	"chatbot-console/internal/auth"
	"chatbot-console/internal/backend"
	"chatbot-console/internal/store"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	errCodeValidation = "VALIDATION_ERROR"
	errCodeBackend    = "BACKEND_ERROR"
	errCodeProxy      = "PROXY_ERROR"

	isoMillis = "2006-01-02T15:04:05.000Z07:00"
)

// ProxyHandler serves /api/n8n, the thin pass-through to the backend's
// custom chat endpoints, and the per-user workflow settings.
type ProxyHandler struct {
	deps *Deps
}

func NewProxyHandler(d *Deps) *ProxyHandler {
	return &ProxyHandler{deps: d}
}

func (h *ProxyHandler) fail(c *gin.Context, status int, code, msg string) {
	c.JSON(status, models.ProxyError{
		Success:      false,
		ErrorCode:    code,
		ErrorMessage: msg,
		Timestamp:    h.deps.now().UTC().Format(isoMillis),
	})
}

// headerValue drops control characters, which net/http refuses in header
// values.
func headerValue(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}

// forwardHeaders echoes the file metadata of a chat request. List entries are
// query-escaped so names may carry commas or line breaks.
func forwardHeaders(req models.ChatRequest) map[string]string {
	names := make([]string, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		names = append(names, url.QueryEscape(a.Name))
	}
	ids := make([]string, 0, len(req.FileReferences))
	for _, f := range req.FileReferences {
		ids = append(ids, url.QueryEscape(f.FileID))
	}
	return map[string]string{
		"X-Workflow-Id":          headerValue(req.WorkflowID),
		"X-Webhook-Url":          headerValue(req.WebhookURL),
		"X-Session-Id":           headerValue(req.SessionID),
		"X-Attachment-Count":     strconv.Itoa(len(req.Attachments)),
		"X-Attachment-Names":     strings.Join(names, ","),
		"X-File-Reference-Count": strconv.Itoa(len(req.FileReferences)),
		"X-File-Ids":             strings.Join(ids, ","),
	}
}

// Chat forwards a message to the authenticated or anonymous custom chat
// endpoint, depending on whether the caller is signed in, and returns the
// backend body untouched.
func (h *ProxyHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, errCodeValidation, "Message is required")
		return
	}

	ctx := c.Request.Context()
	_, authenticated := auth.FromContext(ctx)
	if req.WorkflowID == "" && req.WebhookURL == "" {
		cfg := h.deps.n8nConfig(ctx, h.deps.workspace(c))
		req.WorkflowID, req.WebhookURL = cfg.WorkflowID, cfg.WebhookURL
	}

	log := h.deps.Log.WithFields(logrus.Fields{
		"authenticated": authenticated,
		"workflow":      req.WorkflowID,
		"attachments":   len(req.Attachments),
	})

	raw, err := h.deps.Backend.CustomChat(ctx, authenticated, req, forwardHeaders(req))
	if err != nil {
		if status := backend.StatusCode(err); status > 0 {
			log.WithError(err).Warn("Backend rejected chat request")
			h.fail(c, status, errCodeBackend, err.Error())
			return
		}
		log.WithError(err).Error("Chat proxy failed")
		h.fail(c, http.StatusBadGateway, errCodeProxy, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

// Health checks that a workflow's webhook answers.
func (h *ProxyHandler) Health(c *gin.Context) {
	workflowID, webhookURL := c.Query("workflowId"), c.Query("webhookUrl")
	if workflowID == "" || webhookURL == "" {
		h.fail(c, http.StatusBadRequest, errCodeValidation, "workflowId and webhookUrl are required")
		return
	}

	raw, err := h.deps.Backend.WorkflowHealth(c.Request.Context(), workflowID, webhookURL)
	if err != nil {
		if status := backend.StatusCode(err); status > 0 {
			h.fail(c, status, errCodeBackend, err.Error())
			return
		}
		h.fail(c, http.StatusBadGateway, errCodeProxy, err.Error())
		return
	}
	c.Data(http.StatusOK, "application/json", raw)
}

func (h *ProxyHandler) GetConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.n8nConfig(c.Request.Context(), h.deps.workspace(c)))
}

func (h *ProxyHandler) SaveConfig(c *gin.Context) {
	var cfg models.N8NConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	w := h.deps.workspace(c)
	if err := w.Store.Set(c.Request.Context(), store.N8NConfigKey, cfg); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save config"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// Session returns the caller's console session id, creating it on first use.
func (h *ProxyHandler) Session(c *gin.Context) {
	id, err := sessionID(c, h.deps.workspace(c).Store, store.SessionIDKey)
	if err != nil {
		h.deps.Log.WithError(err).Error("Failed to resolve session id")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": id})
}

// sessionID reads a session id from s, generating and storing a new one
// when none is saved.
func sessionID(c *gin.Context, s store.Store, key string) (string, error) {
	ctx := c.Request.Context()
	var id string
	found, err := store.GetInto(ctx, s, key, &id)
	if err != nil {
		return "", err
	}
	if found && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := s.Set(ctx, key, id); err != nil {
		return "", err
	}
	return id, nil
}
