package api

import (
	"errors"
	"net/http"

	"chatbot-console/internal/chatbot"
	"chatbot-console/internal/knowledge"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
)

type ChatbotHandler struct {
	deps      *Deps
	knowledge *knowledgeRoutes
}

func NewChatbotHandler(d *Deps) *ChatbotHandler {
	h := &ChatbotHandler{deps: d}
	h.knowledge = &knowledgeRoutes{deps: d, resolve: func(c *gin.Context) (*knowledgeTarget, bool) {
		v, ok := h.existing(c)
		if !ok {
			return nil, false
		}
		draft, err := v.Draft()
		if err != nil {
			respondError(c, err)
			return nil, false
		}
		return &knowledgeTarget{QAPairs: draft.QAPairs, Texts: draft.Texts, Websites: draft.Websites, Files: draft.Files}, true
	}}
	return h
}

func (h *ChatbotHandler) newView(w *Workspace, id models.ID) func() *chatbot.View {
	return func() *chatbot.View {
		cfg := h.deps.Config
		v := chatbot.NewView(id, h.deps.Backend, h.deps.Backend, chatbot.Options{
			FileLimit:    cfg.DetailFileLimit,
			DeletePolicy: knowledge.DeletePolicy(cfg.KnowledgeDeletePolicy),
			Embed:        chatbot.EmbedConfig{AppURL: cfg.AppURL, APIURL: cfg.BackendURL},
			Log:          h.deps.Log.WithField("user", w.UserID),
		})
		v.OnFileChange = h.deps.publishFile(w.UserID, "chatbot:"+id.String())
		return v
	}
}

// existing returns a view opened earlier by Get.
func (h *ChatbotHandler) existing(c *gin.Context) (*chatbot.View, bool) {
	v, ok := h.deps.workspace(c).ExistingView(models.ID(c.Param("id")))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Chatbot is not open"})
		return nil, false
	}
	return v, true
}

func (h *ChatbotHandler) List(c *gin.Context) {
	bots, err := h.deps.Backend.ListChatbots(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if bots == nil {
		bots = []models.Chatbot{}
	}
	c.JSON(http.StatusOK, bots)
}

// ToggleStatus flips a chatbot between ACTIVE and DISABLED.
func (h *ChatbotHandler) ToggleStatus(c *gin.Context) {
	id := models.ID(c.Param("id"))
	bot, err := h.deps.Backend.ToggleChatbot(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if v, ok := h.deps.workspace(c).ExistingView(id); ok && v.Mode() == chatbot.ModeViewing {
		if err := v.Load(c.Request.Context()); err != nil {
			h.deps.Log.WithError(err).Warn("Failed to reload chatbot after status change")
		}
	}
	c.JSON(http.StatusOK, bot)
}

// Get opens the detail page, refetching the record unless a save is running.
func (h *ChatbotHandler) Get(c *gin.Context) {
	w := h.deps.workspace(c)
	id := models.ID(c.Param("id"))
	v, _ := w.View(id, h.newView(w, id))

	if err := v.Load(c.Request.Context()); err != nil && !errors.Is(err, chatbot.ErrSaveInFlight) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.State())
}

func (h *ChatbotHandler) Embed(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	st := v.State()
	if st.Chatbot == nil {
		respondError(c, chatbot.ErrNotLoaded)
		return
	}
	c.JSON(http.StatusOK, gin.H{"embedCode": st.EmbedCode})
}

type sizeRequest struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (h *ChatbotHandler) SetSize(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	var req sizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code, err := v.SetSize(req.Width, req.Height)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"width":     models.ClampDimension(req.Width),
		"height":    models.ClampDimension(req.Height),
		"embedCode": code,
	})
}

func (h *ChatbotHandler) BeginEdit(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	if _, err := v.BeginEdit(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.State())
}

func (h *ChatbotHandler) UpdateDraft(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	var fields chatbot.Fields
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := v.UpdateDraft(fields); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.State())
}

func (h *ChatbotHandler) Save(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	if _, err := v.Save(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.State())
}

func (h *ChatbotHandler) Cancel(c *gin.Context) {
	v, ok := h.existing(c)
	if !ok {
		return
	}
	if err := v.Cancel(); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, v.State())
}
