// Package history turns raw chat history records into the conversation list
// and message threads of the history drawer.
package history

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"chatbot-console/pkg/models"
)

const (
	titleLength   = 50
	previewLength = 100

	NoMessagesPreview = "No messages yet"
)

// Conversation is one grouped thread in the drawer list.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	UpdatedAt    string    `json:"updatedAt"`
	LastActivity time.Time `json:"lastActivity"`
	MessageCount int       `json:"messageCount"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one bubble of a thread.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	HTML      bool      `json:"html"`
	Timestamp time.Time `json:"timestamp"`
}

var htmlPattern = regexp.MustCompile(`(?i)<[a-z][\s\S]*>`)

// IsHTML reports whether content should be rendered as markup rather than
// preformatted text.
func IsHTML(content string) bool {
	return htmlPattern.MatchString(content)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// RelativeTime renders t relative to now: under an hour is "Just now", then
// hours, days, weeks and finally months of 30 days.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return "Unknown"
	}
	diff := now.Sub(t)
	hours := int(diff.Hours())
	days := hours / 24

	switch {
	case diff < time.Hour:
		return "Just now"
	case diff < 24*time.Hour:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	case days < 28:
		return plural(days/7, "week")
	}
	months := days / 30
	if months < 1 {
		months = 1
	}
	return plural(months, "month")
}

func newestFirst(records []models.HistoryRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt.After(records[j].CreatedAt.Time)
	})
}

// Group partitions records by conversation id. Every record lands in exactly
// one conversation; conversations are ordered by latest activity.
func Group(records []models.HistoryRecord, now time.Time) []Conversation {
	groups := map[string][]models.HistoryRecord{}
	var order []string
	for _, r := range records {
		if _, ok := groups[r.ConversationID]; !ok {
			order = append(order, r.ConversationID)
		}
		groups[r.ConversationID] = append(groups[r.ConversationID], r)
	}

	out := make([]Conversation, 0, len(order))
	for _, id := range order {
		group := groups[id]
		newestFirst(group)
		latest := group[0]

		// title comes from the opening message of the conversation
		title := ""
		for i := len(group) - 1; i >= 0; i-- {
			if strings.TrimSpace(group[i].UserMessage) != "" {
				title = truncate(group[i].UserMessage, titleLength)
				break
			}
		}
		if title == "" {
			title = "Conversation " + prefix(id, 8)
		}

		preview := NoMessagesPreview
		switch {
		case strings.TrimSpace(latest.UserMessage) != "":
			preview = truncate(latest.UserMessage, previewLength)
		case strings.TrimSpace(latest.AIMessage) != "":
			preview = truncate(latest.AIMessage, previewLength)
		}

		out = append(out, Conversation{
			ID:           id,
			Title:        title,
			Preview:      preview,
			UpdatedAt:    RelativeTime(latest.CreatedAt.Time, now),
			LastActivity: latest.CreatedAt.Time,
			MessageCount: len(group),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

func prefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// Search keeps conversations whose title, preview or id contains query,
// ignoring case. An empty query keeps everything.
func Search(conversations []Conversation, query string) []Conversation {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return conversations
	}

	out := make([]Conversation, 0, len(conversations))
	for _, c := range conversations {
		if strings.Contains(strings.ToLower(c.Title), query) ||
			strings.Contains(strings.ToLower(c.Preview), query) ||
			strings.Contains(strings.ToLower(c.ID), query) {
			out = append(out, c)
		}
	}
	return out
}

// Thread splits each record into a user and an assistant message, either of
// which may be absent, ordered oldest first.
func Thread(records []models.HistoryRecord) []Message {
	messages := make([]Message, 0, len(records)*2)
	for _, r := range records {
		id := r.ID.String()
		if strings.TrimSpace(r.UserMessage) != "" {
			messages = append(messages, Message{
				ID:        id + "-user",
				Role:      RoleUser,
				Content:   r.UserMessage,
				HTML:      IsHTML(r.UserMessage),
				Timestamp: r.CreatedAt.Time,
			})
		}
		if strings.TrimSpace(r.AIMessage) != "" {
			messages = append(messages, Message{
				ID:        id + "-assistant",
				Role:      RoleAssistant,
				Content:   r.AIMessage,
				HTML:      IsHTML(r.AIMessage),
				Timestamp: r.CreatedAt.Time,
			})
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages
}

type Source interface {
	ChatHistory(ctx context.Context, chatbotID models.ID) ([]models.HistoryRecord, error)
	ConversationMessages(ctx context.Context, chatbotID models.ID, conversationID string) ([]models.HistoryRecord, error)
}

// Drawer loads history for one chatbot.
type Drawer struct {
	source Source
	now    func() time.Time
}

func NewDrawer(source Source, now func() time.Time) *Drawer {
	if now == nil {
		now = time.Now
	}
	return &Drawer{source: source, now: now}
}

func (d *Drawer) Conversations(ctx context.Context, chatbotID models.ID, query string) ([]Conversation, error) {
	records, err := d.source.ChatHistory(ctx, chatbotID)
	if err != nil {
		return nil, err
	}
	return Search(Group(records, d.now()), query), nil
}

func (d *Drawer) Messages(ctx context.Context, chatbotID models.ID, conversationID string) ([]Message, error) {
	records, err := d.source.ConversationMessages(ctx, chatbotID, conversationID)
	if err != nil {
		return nil, err
	}
	return Thread(records), nil
}
