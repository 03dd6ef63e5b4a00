package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"chatbot-console/pkg/models"
)

func chatbotPath(id models.ID) string {
	return "/v1/api/chatbot/" + url.PathEscape(id.String())
}

func (c *Client) GetChatbot(ctx context.Context, id models.ID) (*models.Chatbot, error) {
	var bot models.Chatbot
	if err := c.getJSON(ctx, http.MethodGet, chatbotPath(id), nil, nil, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

// UpdateChatbot replaces the whole chatbot object.
func (c *Client) UpdateChatbot(ctx context.Context, id models.ID, bot *models.Chatbot) (*models.Chatbot, error) {
	raw, err := c.sendRequest(ctx, http.MethodPut, chatbotPath(id), nil, bot, nil)
	if err != nil {
		return nil, err
	}
	return decodeChatbotOr(raw, bot)
}

func (c *Client) CreateChatbot(ctx context.Context, bot *models.Chatbot) (*models.Chatbot, error) {
	raw, err := c.sendRequest(ctx, http.MethodPost, "/v1/api/chatbot/create", nil, bot, nil)
	if err != nil {
		return nil, err
	}
	return decodeChatbotOr(raw, bot)
}

// decodeChatbotOr decodes the echoed chatbot, falling back to what was sent
// when the backend answers with a bare acknowledgement.
func decodeChatbotOr(raw []byte, sent *models.Chatbot) (*models.Chatbot, error) {
	var echoed models.Chatbot
	if err := Decode(raw, &echoed); err != nil {
		return nil, err
	}
	if echoed.ID == "" {
		copied := *sent
		return &copied, nil
	}
	return &echoed, nil
}

func (c *Client) ListChatbots(ctx context.Context) ([]models.Chatbot, error) {
	var bots []models.Chatbot
	if err := c.getJSON(ctx, http.MethodGet, "/v1/api/chatbot/list", nil, nil, &bots); err != nil {
		return nil, err
	}
	if bots == nil {
		bots = []models.Chatbot{}
	}
	return bots, nil
}

// ToggleChatbot flips the chatbot between ACTIVE and DISABLED.
func (c *Client) ToggleChatbot(ctx context.Context, id models.ID) (*models.Chatbot, error) {
	raw, err := c.sendRequest(ctx, http.MethodPut, chatbotPath(id)+"/toggle", nil, nil, nil)
	if err != nil {
		return nil, err
	}
	var bot models.Chatbot
	if err := Decode(raw, &bot); err != nil {
		return nil, err
	}
	return &bot, nil
}

func (c *Client) ListKnowledgeBases(ctx context.Context, id models.ID) ([]models.KnowledgeBase, error) {
	var kbs []models.KnowledgeBase
	if err := c.getJSON(ctx, http.MethodGet, chatbotPath(id)+"/knowledge-bases", nil, nil, &kbs); err != nil {
		return nil, err
	}
	if kbs == nil {
		kbs = []models.KnowledgeBase{}
	}
	return kbs, nil
}

// Stat fetches one dashboard statistic payload. Only the outer response
// envelope is stripped; the statistic's own shape is left as is.
func (c *Client) Stat(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	raw, err := c.sendRequest(ctx, http.MethodGet, "/v1/api/dashboard/"+endpoint, query, nil, nil)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(unwrap(raw, 1)), nil
}
