package models

// ChatRequest is the body accepted by the /api/n8n proxy route.
type ChatRequest struct {
	Message          string                 `json:"message" binding:"required"`
	WorkflowID       string                 `json:"workflowId"`
	WebhookURL       string                 `json:"webhookUrl"`
	SessionID        string                 `json:"sessionId"`
	AdditionalParams map[string]interface{} `json:"additionalParams,omitempty"`
	Attachments      []Attachment           `json:"attachments,omitempty"`
	FileReferences   []FileReference        `json:"fileReferences,omitempty"`
}

type Attachment struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
	Data string `json:"data,omitempty"` // base64
}

type FileReference struct {
	FileID string `json:"fileId"`
	Name   string `json:"name,omitempty"`
}

// SendChatRequest is the body of POST /n8n/authenticated/chat.
type SendChatRequest struct {
	ChatbotID      ID     `json:"chatbotId"`
	Message        string `json:"message"`
	SessionID      string `json:"sessionId"`
	ConversationID string `json:"conversationId,omitempty"`
}

// ProxyError is the structured failure returned by the /api/n8n route.
type ProxyError struct {
	Success      bool   `json:"success"`
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
	Timestamp    string `json:"timestamp"`
}

// N8NConfig is the persisted workflow selection of a user.
type N8NConfig struct {
	WorkflowID string `json:"workflowId"`
	WebhookURL string `json:"webhookUrl"`
}
