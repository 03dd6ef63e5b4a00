package integration

import (
	"context"
	"fmt"

	"chatbot-console/internal/graph"
	"chatbot-console/pkg/models"
)

// Verifier checks Meta credentials; graph.Client implements it.
type Verifier interface {
	PhoneNumber(ctx context.Context, phoneNumberID, token string) (*graph.PhoneNumber, error)
	Page(ctx context.Context, pageID, token string) (*graph.Page, error)
}

type WhatsAppBackend interface {
	GetWhatsApp(ctx context.Context, chatbotID models.ID) (*models.WhatsAppIntegration, error)
	SetupWhatsApp(ctx context.Context, setup models.WhatsAppIntegration) error
	ToggleWhatsApp(ctx context.Context, chatbotID models.ID, enabled bool) error
}

type MessengerBackend interface {
	GetMessenger(ctx context.Context, chatbotID models.ID) (*models.MessengerIntegration, error)
	SetupMessenger(ctx context.Context, setup models.MessengerIntegration) error
	ToggleMessenger(ctx context.Context, chatbotID models.ID, enabled bool) error
}

// --- WhatsApp ---

type WhatsApp struct {
	Backend  WhatsAppBackend
	Verifier Verifier
}

func (WhatsApp) Name() string { return "whatsapp" }

func (c WhatsApp) Get(ctx context.Context, chatbotID models.ID) (*models.WhatsAppIntegration, error) {
	return c.Backend.GetWhatsApp(ctx, chatbotID)
}

func (c WhatsApp) Setup(ctx context.Context, form models.WhatsAppIntegration) error {
	return c.Backend.SetupWhatsApp(ctx, form)
}

func (c WhatsApp) Toggle(ctx context.Context, chatbotID models.ID, enabled bool) error {
	return c.Backend.ToggleWhatsApp(ctx, chatbotID, enabled)
}

func (c WhatsApp) Verify(ctx context.Context, form models.WhatsAppIntegration) (string, error) {
	pn, err := c.Verifier.PhoneNumber(ctx, form.PhoneNumberID, form.AccessToken)
	if err != nil {
		return "", err
	}
	name := pn.VerifiedName
	if name == "" {
		name = pn.DisplayPhoneNumber
	}
	return fmt.Sprintf("Connected to WhatsApp number %s", name), nil
}

func (WhatsApp) Enabled(i *models.WhatsAppIntegration) bool { return i.Enabled }

func (WhatsApp) SetEnabled(i *models.WhatsAppIntegration, enabled bool) { i.Enabled = enabled }

func (WhatsApp) Bind(form *models.WhatsAppIntegration, chatbotID models.ID) {
	form.ChatbotID = chatbotID
}

// --- Messenger ---

type Messenger struct {
	Backend  MessengerBackend
	Verifier Verifier
}

func (Messenger) Name() string { return "messenger" }

func (c Messenger) Get(ctx context.Context, chatbotID models.ID) (*models.MessengerIntegration, error) {
	return c.Backend.GetMessenger(ctx, chatbotID)
}

func (c Messenger) Setup(ctx context.Context, form models.MessengerIntegration) error {
	return c.Backend.SetupMessenger(ctx, form)
}

func (c Messenger) Toggle(ctx context.Context, chatbotID models.ID, enabled bool) error {
	return c.Backend.ToggleMessenger(ctx, chatbotID, enabled)
}

func (c Messenger) Verify(ctx context.Context, form models.MessengerIntegration) (string, error) {
	page, err := c.Verifier.Page(ctx, form.PageID, form.AccessToken)
	if err != nil {
		return "", err
	}
	if page.ID != "" && page.ID != form.PageID {
		return "", fmt.Errorf("access token belongs to page %s, not %s", page.ID, form.PageID)
	}
	return fmt.Sprintf("Connected to Facebook page %s", page.Name), nil
}

func (Messenger) Enabled(i *models.MessengerIntegration) bool { return i.Enabled }

func (Messenger) SetEnabled(i *models.MessengerIntegration, enabled bool) { i.Enabled = enabled }

func (Messenger) Bind(form *models.MessengerIntegration, chatbotID models.ID) {
	form.ChatbotID = chatbotID
}
