package models

// HistoryRecord is one stored exchange: a user message and the AI reply to it.
// Either side may be empty.
type HistoryRecord struct {
	ID             ID          `json:"id"`
	Email          string      `json:"email,omitempty"`
	ConversationID string      `json:"conversationid"`
	UserMessage    string      `json:"userMessage"`
	AIMessage      string      `json:"aiMessage"`
	CreatedAt      BackendTime `json:"createdAt"`
	Mode           string      `json:"mode,omitempty"`
	IsAnonymous    bool        `json:"isAnonymous"`
}
