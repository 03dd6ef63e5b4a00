package api

import (
	"net/http"

	"chatbot-console/internal/history"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
)

type HistoryHandler struct {
	drawer *history.Drawer
}

func NewHistoryHandler(d *Deps) *HistoryHandler {
	return &HistoryHandler{drawer: history.NewDrawer(d.Backend, d.now)}
}

func (h *HistoryHandler) Conversations(c *gin.Context) {
	convs, err := h.drawer.Conversations(c.Request.Context(), models.ID(c.Param("id")), c.Query("q"))
	if err != nil {
		respondError(c, err)
		return
	}
	if convs == nil {
		convs = []history.Conversation{}
	}
	c.JSON(http.StatusOK, convs)
}

func (h *HistoryHandler) Messages(c *gin.Context) {
	msgs, err := h.drawer.Messages(c.Request.Context(), models.ID(c.Param("id")), c.Param("conversationId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if msgs == nil {
		msgs = []history.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}
