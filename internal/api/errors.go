package api

import (
	"errors"
	"net/http"

	"chatbot-console/internal/backend"
	"chatbot-console/internal/chatbot"
	"chatbot-console/internal/integration"
	"chatbot-console/internal/knowledge"
	"chatbot-console/internal/wizard"

	"github.com/gin-gonic/gin"
)

var errWorkspaceItem = errors.New("not found in this workspace")

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, knowledge.ErrNotFound),
		errors.Is(err, errWorkspaceItem):
		return http.StatusNotFound
	case errors.Is(err, knowledge.ErrExistingItem),
		errors.Is(err, knowledge.ErrUploadInProgress),
		errors.Is(err, wizard.ErrStepLocked),
		errors.Is(err, wizard.ErrNotFinalStep),
		errors.Is(err, wizard.ErrAlreadySubmitted),
		errors.Is(err, chatbot.ErrNotLoaded),
		errors.Is(err, chatbot.ErrNotEditing),
		errors.Is(err, chatbot.ErrSaveInFlight),
		errors.Is(err, integration.ErrToggleInFlight):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrInvalidStep),
		errors.Is(err, wizard.ErrUnknownSource):
		return http.StatusUnprocessableEntity
	}
	if code := backend.StatusCode(err); code >= 400 {
		return code
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	var invalid *integration.ValidationError
	if errors.As(err, &invalid) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"errors": invalid.Fields})
		return
	}
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
