package history

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"chatbot-console/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) models.BackendTime {
	return models.BackendTime{Time: now.Add(-d)}
}

func TestRelativeTime(t *testing.T) {
	cases := []struct {
		ago  time.Duration
		want string
	}{
		{30 * time.Minute, "Just now"},
		{time.Hour, "1 hour ago"},
		{5 * time.Hour, "5 hours ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{27 * 24 * time.Hour, "3 weeks ago"},
		{28 * 24 * time.Hour, "1 month ago"},
		{40 * 24 * time.Hour, "1 month ago"},
		{95 * 24 * time.Hour, "3 months ago"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RelativeTime(now.Add(-tc.ago), now), tc.ago.String())
	}
	assert.Equal(t, "Unknown", RelativeTime(time.Time{}, now))
}

func TestGroup_IsPartition(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: "1", ConversationID: "conv-a", UserMessage: "hello there", CreatedAt: at(3 * time.Hour)},
		{ID: "2", ConversationID: "conv-b", AIMessage: "welcome", CreatedAt: at(2 * time.Hour)},
		{ID: "3", ConversationID: "conv-a", UserMessage: "and again", AIMessage: "sure", CreatedAt: at(10 * time.Minute)},
		{ID: "4", ConversationID: "conversation-c", CreatedAt: at(48 * time.Hour)},
	}

	groups := Group(records, now)
	require.Len(t, groups, 3)

	total := 0
	seen := map[string]bool{}
	for _, g := range groups {
		assert.False(t, seen[g.ID])
		seen[g.ID] = true
		total += g.MessageCount
	}
	assert.Equal(t, len(records), total)

	assert.Equal(t, "conv-a", groups[0].ID)
	assert.Equal(t, "hello there", groups[0].Title)
	assert.Equal(t, "and again", groups[0].Preview)
	assert.Equal(t, "Just now", groups[0].UpdatedAt)

	assert.Equal(t, "conv-b", groups[1].ID)
	assert.Equal(t, "Conversation conv-b", groups[1].Title)
	assert.Equal(t, "welcome", groups[1].Preview)
	assert.Equal(t, "2 hours ago", groups[1].UpdatedAt)

	assert.Equal(t, "Conversation conversa", groups[2].Title)
	assert.Equal(t, NoMessagesPreview, groups[2].Preview)
}

func TestGroup_TruncatesTitleAndPreview(t *testing.T) {
	long := strings.Repeat("x", 120)
	groups := Group([]models.HistoryRecord{{ID: "1", ConversationID: "c", UserMessage: long, CreatedAt: at(0)}}, now)

	require.Len(t, groups, 1)
	assert.Equal(t, strings.Repeat("x", 50)+"...", groups[0].Title)
	assert.Equal(t, strings.Repeat("x", 100)+"...", groups[0].Preview)
}

func TestGroup_MixedTimestampForms(t *testing.T) {
	var records []models.HistoryRecord
	require.NoError(t, json.Unmarshal([]byte(`[
		{"id": 1, "conversationid": "old", "userMessage": "a", "createdAt": 1717200000},
		{"id": 2, "conversationid": "new", "userMessage": "b", "createdAt": "2025-06-01T11:00:00Z"}
	]`), &records))

	groups := Group(records, now)
	require.Len(t, groups, 2)
	assert.Equal(t, "new", groups[0].ID)
	assert.Equal(t, "1 hour ago", groups[0].UpdatedAt)
	assert.Equal(t, "old", groups[1].ID)
}

func TestSearch(t *testing.T) {
	convs := []Conversation{
		{ID: "abc123", Title: "Refund request", Preview: "I want my money"},
		{ID: "def456", Title: "Shipping", Preview: "Where is my PARCEL"},
	}

	assert.Len(t, Search(convs, ""), 2)
	assert.Equal(t, "abc123", Search(convs, "REFUND")[0].ID)
	assert.Equal(t, "def456", Search(convs, "parcel")[0].ID)
	assert.Equal(t, "def456", Search(convs, "F45")[0].ID)
	assert.Empty(t, Search(convs, "nothing"))
}

func TestThread(t *testing.T) {
	records := []models.HistoryRecord{
		{ID: "2", UserMessage: "second", AIMessage: "<p>reply</p>", CreatedAt: at(time.Minute)},
		{ID: "1", UserMessage: "first", CreatedAt: at(time.Hour)},
		{ID: "3", AIMessage: "unprompted", CreatedAt: at(0)},
	}

	msgs := Thread(records)
	require.Len(t, msgs, 4)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, RoleUser, msgs[1].Role)
	assert.Equal(t, RoleAssistant, msgs[2].Role)
	assert.True(t, msgs[2].HTML)
	assert.False(t, msgs[1].HTML)
	assert.Equal(t, "3-assistant", msgs[3].ID)
}

func TestIsHTML(t *testing.T) {
	assert.True(t, IsHTML("<b>bold</b>"))
	assert.True(t, IsHTML("text <DIV>x"))
	assert.False(t, IsHTML("1 < 2 and 3 > 2"))
	assert.False(t, IsHTML("plain"))
}

type fakeSource struct {
	records []models.HistoryRecord
}

func (f fakeSource) ChatHistory(ctx context.Context, id models.ID) ([]models.HistoryRecord, error) {
	return f.records, nil
}

func (f fakeSource) ConversationMessages(ctx context.Context, id models.ID, conv string) ([]models.HistoryRecord, error) {
	var out []models.HistoryRecord
	for _, r := range f.records {
		if r.ConversationID == conv {
			out = append(out, r)
		}
	}
	return out, nil
}

func TestDrawer(t *testing.T) {
	src := fakeSource{records: []models.HistoryRecord{
		{ID: "1", ConversationID: "a", UserMessage: "billing question", AIMessage: "ok", CreatedAt: at(time.Hour)},
		{ID: "2", ConversationID: "b", UserMessage: "shipping", CreatedAt: at(time.Minute)},
	}}
	d := NewDrawer(src, func() time.Time { return now })

	convs, err := d.Conversations(context.Background(), "bot", "billing")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "a", convs[0].ID)

	msgs, err := d.Messages(context.Background(), "bot", "a")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}
