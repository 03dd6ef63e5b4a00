package models

// WhatsAppIntegration is the WhatsApp Business credential set of a chatbot.
type WhatsAppIntegration struct {
	ID                 ID     `json:"id,omitempty"`
	ChatbotID          ID     `json:"chatbotId"`
	Name               string `json:"name" validate:"required"`
	BusinessAccountID  string `json:"businessAccountId" validate:"required"`
	AppID              string `json:"appId" validate:"required"`
	PhoneNumberID      string `json:"phoneNumberId" validate:"required,number"`
	PhoneNumber        string `json:"phoneNumber" validate:"required"`
	AccessToken        string `json:"accessToken" validate:"required"`
	WebhookURL         string `json:"webhookUrl,omitempty"`
	WebhookVerifyToken string `json:"webhookVerifyToken" validate:"required"`
	Enabled            bool   `json:"enabled"`
}

// MessengerIntegration is the Facebook Messenger credential set of a chatbot.
type MessengerIntegration struct {
	ID          ID     `json:"id,omitempty"`
	ChatbotID   ID     `json:"chatbotId"`
	PageName    string `json:"pageName" validate:"required"`
	PageID      string `json:"pageId" validate:"required"`
	AccessToken string `json:"accessToken" validate:"required"`
	VerifyToken string `json:"verifyToken" validate:"required"`
	WebhookURL  string `json:"webhookUrl,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// GoogleCalendarIntegration is a connected Google Calendar.
type GoogleCalendarIntegration struct {
	ID          ID           `json:"id,omitempty"`
	ChatbotID   ID           `json:"chatbotId"`
	Email       string       `json:"email,omitempty"`
	CalendarID  string       `json:"calendarId,omitempty"`
	Enabled     bool         `json:"enabled"`
	ConnectedAt *BackendTime `json:"connectedAt,omitempty"`
}
