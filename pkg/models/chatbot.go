package models

type ChatbotStatus string

const (
	ChatbotActive   ChatbotStatus = "ACTIVE"
	ChatbotDisabled ChatbotStatus = "DISABLED"
)

// Chatbot is the full object exchanged with the backend. Updates always send
// the entire object, knowledge collections included.
type Chatbot struct {
	ID                        ID            `json:"id,omitempty"`
	Title                     string        `json:"title"`
	Name                      string        `json:"name"`
	Status                    ChatbotStatus `json:"status,omitempty"`
	Instructions              string        `json:"instructions"`
	FallbackMessage           string        `json:"fallbackMessage"`
	GreetingMessage           string        `json:"greetingMessage"`
	RestrictToDataSource      bool          `json:"restrictToDataSource"`
	Width                     int           `json:"width"`
	Height                    int           `json:"height"`
	EnableWhatsappIntegration bool          `json:"enableWhatsappIntegration"`
	EnableFacebookIntegration bool          `json:"enableFacebookIntegration"`
	FileIDs                   []string      `json:"fileIds"`
	QAPairs                   []QAPair      `json:"qaPairs"`
	AddedTexts                []string      `json:"addedTexts"`
	AddedWebsites             []string      `json:"addedWebsites"`
	CreatedAt                 *BackendTime  `json:"createdAt,omitempty"`
	UpdatedAt                 *BackendTime  `json:"updatedAt,omitempty"`
}

// QAPair is a question/answer training pair. It carries no client-side id.
type QAPair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// KnowledgeBase is the metadata record returned by /chatbot/{id}/knowledge-bases.
type KnowledgeBase struct {
	ID        ID           `json:"id"`
	ChatbotID ID           `json:"chatbotId,omitempty"`
	Type      string       `json:"type"`
	Name      string       `json:"name"`
	Source    string       `json:"source,omitempty"`
	FileID    string       `json:"fileId,omitempty"`
	Size      int64        `json:"size,omitempty"`
	Status    string       `json:"status,omitempty"`
	CreatedAt *BackendTime `json:"createdAt,omitempty"`
}

// FileUploadResult is the backend's answer to POST /file/upload.
type FileUploadResult struct {
	FileID string `json:"fileId"`
}

// Widget size bounds for the embeddable chat widget.
const (
	MinWidgetDimension  = 240
	MaxWidgetDimension  = 1024
	DefaultWidgetWidth  = 400
	DefaultWidgetHeight = 600
)

// ClampDimension bounds a widget width or height to [240, 1024].
func ClampDimension(v int) int {
	if v < MinWidgetDimension {
		return MinWidgetDimension
	}
	if v > MaxWidgetDimension {
		return MaxWidgetDimension
	}
	return v
}
