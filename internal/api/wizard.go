package api

import (
	"net/http"
	"strconv"

	"chatbot-console/internal/auth"
	"chatbot-console/internal/knowledge"
	"chatbot-console/internal/wizard"
	"chatbot-console/internal/ws"

	"github.com/gin-gonic/gin"
)

// workspace returns the caller's workspace, or nil for anonymous requests.
func (d *Deps) workspace(c *gin.Context) *Workspace {
	id, ok := auth.FromContext(c.Request.Context())
	if !ok {
		return nil
	}
	return d.Workspaces.For(id.UserID)
}

// publishFile pushes a file's terminal upload state to the user's console.
func (d *Deps) publishFile(userID, scope string) func(knowledge.File) {
	return func(f knowledge.File) {
		if d.Hub == nil {
			return
		}
		d.Hub.Publish(userID, ws.EventFileUpload, gin.H{"scope": scope, "file": f})
	}
}

type WizardHandler struct {
	deps      *Deps
	knowledge *knowledgeRoutes
}

func NewWizardHandler(d *Deps) *WizardHandler {
	h := &WizardHandler{deps: d}
	h.knowledge = &knowledgeRoutes{deps: d, resolve: func(c *gin.Context) (*knowledgeTarget, bool) {
		wz, ok := h.lookup(c)
		if !ok {
			return nil, false
		}
		return &knowledgeTarget{QAPairs: wz.QAPairs, Texts: wz.Texts, Websites: wz.Websites, Files: wz.Files}, true
	}}
	return h
}

func (h *WizardHandler) lookup(c *gin.Context) (*wizard.Wizard, bool) {
	w := h.deps.workspace(c)
	if w == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": auth.ErrNoIdentity.Error()})
		return nil, false
	}
	wz, ok := w.Wizard(c.Param("wid"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Wizard not found"})
		return nil, false
	}
	return wz, true
}

func (h *WizardHandler) Create(c *gin.Context) {
	w := h.deps.workspace(c)
	cfg := h.deps.Config

	wz := wizard.New(h.deps.Backend, h.deps.Backend, wizard.Options{
		FileLimit:    cfg.WizardFileLimit,
		DeletePolicy: knowledge.DeletePolicy(cfg.KnowledgeDeletePolicy),
		Width:        cfg.Settings.Widget.Width,
		Height:       cfg.Settings.Widget.Height,
		Log:          h.deps.Log.WithField("user", w.UserID),
	})
	wz.Files.OnChange = h.deps.publishFile(w.UserID, "wizard:"+wz.ID)
	w.AddWizard(wz)

	c.JSON(http.StatusCreated, wz.State())
}

func (h *WizardHandler) Get(c *gin.Context) {
	if wz, ok := h.lookup(c); ok {
		c.JSON(http.StatusOK, wz.State())
	}
}

// Discard drops the wizard. Uploads already started keep running.
func (h *WizardHandler) Discard(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}
	h.deps.workspace(c).RemoveWizard(c.Param("wid"))
	c.JSON(http.StatusOK, gin.H{"status": "discarded"})
}

func (h *WizardHandler) UpdateForm(c *gin.Context) {
	wz, ok := h.lookup(c)
	if !ok {
		return
	}
	var form wizard.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := wz.UpdateForm(form); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wz.State())
}

func (h *WizardHandler) Next(c *gin.Context) {
	wz, ok := h.lookup(c)
	if !ok {
		return
	}
	if _, errs := wz.Next(); len(errs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, wz.State())
		return
	}
	c.JSON(http.StatusOK, wz.State())
}

func (h *WizardHandler) Previous(c *gin.Context) {
	wz, ok := h.lookup(c)
	if !ok {
		return
	}
	wz.Previous()
	c.JSON(http.StatusOK, wz.State())
}

func (h *WizardHandler) GoTo(c *gin.Context) {
	wz, ok := h.lookup(c)
	if !ok {
		return
	}
	n, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid step"})
		return
	}
	if err := wz.GoTo(wizard.Step(n)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wz.State())
}

func (h *WizardHandler) Submit(c *gin.Context) {
	wz, ok := h.lookup(c)
	if !ok {
		return
	}
	created, err := wz.Submit(c.Request.Context())
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error(), "state": wz.State()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"status": "created", "chatbot": created, "state": wz.State()})
}
