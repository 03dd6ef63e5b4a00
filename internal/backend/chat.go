package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"chatbot-console/pkg/models"
)

const n8nBase = "/v1/api/n8n/"

// ChatHistory returns every stored exchange of a chatbot.
func (c *Client) ChatHistory(ctx context.Context, chatbotID models.ID) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	endpoint := n8nBase + "authenticated/chatHistory/" + url.PathEscape(chatbotID.String())
	if err := c.getJSON(ctx, http.MethodPost, endpoint, nil, map[string]string{}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// ConversationMessages returns the exchanges of one conversation.
func (c *Client) ConversationMessages(ctx context.Context, chatbotID models.ID, conversationID string) ([]models.HistoryRecord, error) {
	var records []models.HistoryRecord
	endpoint := n8nBase + "authenticated/chatHistory/" + url.PathEscape(chatbotID.String()) + "/" + url.PathEscape(conversationID)
	if err := c.getJSON(ctx, http.MethodPost, endpoint, nil, map[string]string{}, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SendChat posts a message and returns the decoded assistant reply.
func (c *Client) SendChat(ctx context.Context, req models.SendChatRequest) (string, error) {
	raw, err := c.sendRequest(ctx, http.MethodPost, n8nBase+"authenticated/chat", nil, req, nil)
	if err != nil {
		return "", err
	}
	return DecodeChatReply(raw)
}

// CustomChat forwards a proxy chat request to the authenticated or anonymous
// custom endpoint and returns the backend body untouched.
func (c *Client) CustomChat(ctx context.Context, authenticated bool, req models.ChatRequest, headers map[string]string) (json.RawMessage, error) {
	endpoint := n8nBase + "anonymous/chat/custom"
	if authenticated {
		endpoint = n8nBase + "authenticated/chat/custom"
	}
	raw, err := c.sendRequest(ctx, http.MethodPost, endpoint, nil, req, headers)
	if err != nil {
		return raw, err
	}
	return json.RawMessage(raw), nil
}

// WorkflowHealth asks the backend whether a workflow's webhook answers.
func (c *Client) WorkflowHealth(ctx context.Context, workflowID, webhookURL string) (json.RawMessage, error) {
	query := url.Values{"workflowId": {workflowID}, "webhookUrl": {webhookURL}}
	raw, err := c.sendRequest(ctx, http.MethodGet, n8nBase+"workflow/health", query, nil, nil)
	if err != nil {
		return raw, err
	}
	return json.RawMessage(raw), nil
}
