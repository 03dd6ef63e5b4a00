package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"chatbot-console/pkg/models"
)

const integrationBase = "/v1/api/chatbot/"

// --- WhatsApp ---

// GetWhatsApp returns the chatbot's WhatsApp integration, or nil when none
// has been set up (the backend answers 404).
func (c *Client) GetWhatsApp(ctx context.Context, chatbotID models.ID) (*models.WhatsAppIntegration, error) {
	var integration models.WhatsAppIntegration
	err := c.getJSON(ctx, http.MethodGet, integrationBase+"whatsapp/"+url.PathEscape(chatbotID.String()), nil, nil, &integration)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (c *Client) SetupWhatsApp(ctx context.Context, setup models.WhatsAppIntegration) error {
	_, err := c.sendRequest(ctx, http.MethodPost, integrationBase+"whatsapp/setup", nil, setup, nil)
	return err
}

func (c *Client) ToggleWhatsApp(ctx context.Context, chatbotID models.ID, enabled bool) error {
	return c.toggle(ctx, "whatsapp", chatbotID, enabled)
}

// --- Messenger ---

func (c *Client) GetMessenger(ctx context.Context, chatbotID models.ID) (*models.MessengerIntegration, error) {
	var integration models.MessengerIntegration
	err := c.getJSON(ctx, http.MethodGet, integrationBase+"messenger/"+url.PathEscape(chatbotID.String()), nil, nil, &integration)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (c *Client) SetupMessenger(ctx context.Context, setup models.MessengerIntegration) error {
	_, err := c.sendRequest(ctx, http.MethodPost, integrationBase+"messenger/setup", nil, setup, nil)
	return err
}

func (c *Client) ToggleMessenger(ctx context.Context, chatbotID models.ID, enabled bool) error {
	return c.toggle(ctx, "messenger", chatbotID, enabled)
}

func (c *Client) toggle(ctx context.Context, channel string, chatbotID models.ID, enabled bool) error {
	query := url.Values{"enabled": {strconv.FormatBool(enabled)}}
	endpoint := integrationBase + channel + "/" + url.PathEscape(chatbotID.String()) + "/toggle"
	_, err := c.sendRequest(ctx, http.MethodPut, endpoint, query, nil, nil)
	return err
}

// --- Google Calendar ---

func (c *Client) GetGoogleCalendar(ctx context.Context, chatbotID models.ID) (*models.GoogleCalendarIntegration, error) {
	var integration models.GoogleCalendarIntegration
	err := c.getJSON(ctx, http.MethodGet, integrationBase+"google-calendar/"+url.PathEscape(chatbotID.String()), nil, nil, &integration)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &integration, nil
}

func (c *Client) DeleteGoogleCalendar(ctx context.Context, chatbotID models.ID) error {
	_, err := c.sendRequest(ctx, http.MethodDelete, integrationBase+"google-calendar/"+url.PathEscape(chatbotID.String()), nil, nil, nil)
	return err
}
