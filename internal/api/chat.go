package api

import (
	"net/http"

	"chatbot-console/internal/history"
	"chatbot-console/internal/store"
	"chatbot-console/pkg/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const chatFailureReply = "Sorry, I encountered an error. Please try again."

type ChatHandler struct {
	deps *Deps
}

func NewChatHandler(d *Deps) *ChatHandler {
	return &ChatHandler{deps: d}
}

type chatRequest struct {
	Message        string `json:"message" binding:"required"`
	ConversationID string `json:"conversationId"`
}

type chatResponse struct {
	SessionID string          `json:"sessionId"`
	Message   history.Message `json:"message"`
	Error     bool            `json:"error"`
}

// Send posts a message from the test chat of a chatbot. A failed send still
// answers with an assistant bubble so the thread stays readable.
func (h *ChatHandler) Send(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id := models.ID(c.Param("id"))
	session, err := sessionID(c, h.deps.workspace(c).Store, store.ChatSessionKey(id.String()))
	if err != nil {
		h.deps.Log.WithError(err).Warn("Failed to persist chat session id")
		session = uuid.NewString()
	}

	resp := chatResponse{
		SessionID: session,
		Message: history.Message{
			ID:        uuid.NewString(),
			Role:      history.RoleAssistant,
			Timestamp: h.deps.now(),
		},
	}

	reply, err := h.deps.Backend.SendChat(c.Request.Context(), models.SendChatRequest{
		ChatbotID:      id,
		Message:        req.Message,
		SessionID:      session,
		ConversationID: req.ConversationID,
	})
	if err != nil {
		h.deps.Log.WithError(err).WithField("chatbot", id).Error("Failed to send chat message")
		resp.Message.Content = chatFailureReply
		resp.Error = true
		c.JSON(http.StatusOK, resp)
		return
	}

	resp.Message.Content = reply
	resp.Message.HTML = history.IsHTML(reply)
	c.JSON(http.StatusOK, resp)
}
