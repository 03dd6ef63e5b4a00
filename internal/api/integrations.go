package api

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"chatbot-console/internal/integration"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type IntegrationHandler struct {
	deps *Deps
}

func NewIntegrationHandler(d *Deps) *IntegrationHandler {
	return &IntegrationHandler{deps: d}
}

func (h *IntegrationHandler) whatsapp(ctx context.Context, w *Workspace, id models.ID, refresh bool) (*integration.Panel[models.WhatsAppIntegration], error) {
	return w.WhatsAppPanel(ctx, id, refresh, func() *integration.Panel[models.WhatsAppIntegration] {
		ch := integration.WhatsApp{Backend: h.deps.Backend, Verifier: h.deps.Graph}
		return integration.NewPanel[models.WhatsAppIntegration](id, ch, h.deps.Log.WithField("user", w.UserID))
	})
}

func (h *IntegrationHandler) messenger(ctx context.Context, w *Workspace, id models.ID, refresh bool) (*integration.Panel[models.MessengerIntegration], error) {
	return w.MessengerPanel(ctx, id, refresh, func() *integration.Panel[models.MessengerIntegration] {
		ch := integration.Messenger{Backend: h.deps.Backend, Verifier: h.deps.Graph}
		return integration.NewPanel[models.MessengerIntegration](id, ch, h.deps.Log.WithField("user", w.UserID))
	})
}

func (h *IntegrationHandler) calendar(ctx context.Context, w *Workspace, id models.ID, refresh bool) (*integration.CalendarPanel, error) {
	return w.CalendarPanel(ctx, id, refresh, func() *integration.CalendarPanel {
		return integration.NewCalendarPanel(id, h.deps.Backend)
	})
}

type integrationsResponse struct {
	WhatsApp       *integration.View[models.WhatsAppIntegration]  `json:"whatsapp,omitempty"`
	Messenger      *integration.View[models.MessengerIntegration] `json:"messenger,omitempty"`
	GoogleCalendar *integration.CalendarView                      `json:"googleCalendar,omitempty"`
	Errors         map[string]string                              `json:"errors,omitempty"`
}

// List refetches all three integrations concurrently. One failing channel
// does not hide the others.
func (h *IntegrationHandler) List(c *gin.Context) {
	ctx := c.Request.Context()
	w := h.deps.workspace(c)
	id := models.ID(c.Param("id"))

	var (
		mu   sync.Mutex
		resp integrationsResponse
	)
	fail := func(channel string, err error) {
		mu.Lock()
		defer mu.Unlock()
		if resp.Errors == nil {
			resp.Errors = map[string]string{}
		}
		resp.Errors[channel] = err.Error()
	}

	var g errgroup.Group
	g.Go(func() error {
		p, err := h.whatsapp(ctx, w, id, true)
		if err != nil {
			fail("whatsapp", err)
			return nil
		}
		v := p.View()
		resp.WhatsApp = &v
		return nil
	})
	g.Go(func() error {
		p, err := h.messenger(ctx, w, id, true)
		if err != nil {
			fail("messenger", err)
			return nil
		}
		v := p.View()
		resp.Messenger = &v
		return nil
	})
	g.Go(func() error {
		p, err := h.calendar(ctx, w, id, true)
		if err != nil {
			fail("googleCalendar", err)
			return nil
		}
		v := p.View()
		resp.GoogleCalendar = &v
		return nil
	})
	g.Wait()

	c.JSON(http.StatusOK, resp)
}

type toggleRequest struct {
	Enabled *bool `json:"enabled" binding:"required"`
}

func toggle[T any](c *gin.Context, p *integration.Panel[T]) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := p.Toggle(c.Request.Context(), *req.Enabled)
	if err != nil {
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			status = http.StatusBadGateway
		}
		c.JSON(status, gin.H{"error": err.Error(), "result": result, "panel": p.View()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"result": result, "panel": p.View()})
}

func openSetup[T any](c *gin.Context, p *integration.Panel[T]) {
	p.OpenSetup()
	c.JSON(http.StatusOK, p.View())
}

func closeSetup[T any](c *gin.Context, p *integration.Panel[T]) {
	p.CloseSetup()
	c.JSON(http.StatusOK, p.View())
}

func testSetup[T any](c *gin.Context, p *integration.Panel[T]) {
	var form T
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	result, err := p.TestConfiguration(c.Request.Context(), form)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func saveSetup[T any](c *gin.Context, p *integration.Panel[T]) {
	var form T
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := p.SaveSetup(c.Request.Context(), form); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}

var errUnknownChannel = errors.New("unknown channel")

// dispatch runs the WhatsApp or Messenger variant of a panel action.
func (h *IntegrationHandler) dispatch(c *gin.Context,
	wa func(*gin.Context, *integration.Panel[models.WhatsAppIntegration]),
	fb func(*gin.Context, *integration.Panel[models.MessengerIntegration]),
) {
	ctx := c.Request.Context()
	w := h.deps.workspace(c)
	id := models.ID(c.Param("id"))

	switch c.Param("channel") {
	case "whatsapp":
		p, err := h.whatsapp(ctx, w, id, false)
		if err != nil {
			respondError(c, err)
			return
		}
		wa(c, p)
	case "messenger":
		p, err := h.messenger(ctx, w, id, false)
		if err != nil {
			respondError(c, err)
			return
		}
		fb(c, p)
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": errUnknownChannel.Error()})
	}
}

func (h *IntegrationHandler) Toggle(c *gin.Context) {
	h.dispatch(c, toggle[models.WhatsAppIntegration], toggle[models.MessengerIntegration])
}

func (h *IntegrationHandler) OpenSetup(c *gin.Context) {
	h.dispatch(c, openSetup[models.WhatsAppIntegration], openSetup[models.MessengerIntegration])
}

func (h *IntegrationHandler) CloseSetup(c *gin.Context) {
	h.dispatch(c, closeSetup[models.WhatsAppIntegration], closeSetup[models.MessengerIntegration])
}

func (h *IntegrationHandler) Test(c *gin.Context) {
	h.dispatch(c, testSetup[models.WhatsAppIntegration], testSetup[models.MessengerIntegration])
}

func (h *IntegrationHandler) SaveSetup(c *gin.Context) {
	h.dispatch(c, saveSetup[models.WhatsAppIntegration], saveSetup[models.MessengerIntegration])
}

func (h *IntegrationHandler) DisconnectCalendar(c *gin.Context) {
	ctx := c.Request.Context()
	p, err := h.calendar(ctx, h.deps.workspace(c), models.ID(c.Param("id")), false)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := p.Disconnect(ctx); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p.View())
}
