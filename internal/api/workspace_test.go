package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"chatbot-console/internal/chatbot"
	"chatbot-console/internal/dashboard"
	"chatbot-console/internal/history"
	"chatbot-console/internal/integration"
	"chatbot-console/internal/knowledge"
	"chatbot-console/internal/wizard"
	"chatbot-console/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var samplePDF = []byte("%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n")

func (f *fixture) upload(path, name, contentType string, data []byte) *httptest.ResponseRecorder {
	f.t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(f.t, err)
	part.Write(data)
	require.NoError(f.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+f.token)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestWizard_CreateThroughSubmit(t *testing.T) {
	f := newFixture(t)

	var created models.Chatbot
	f.backend.HandleFunc("POST /v1/api/chatbot/create", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
		created.ID = "42"
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": created})
	})

	var st wizard.State
	w := f.do(http.MethodPost, "/api/wizards", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	decode(t, w, &st)
	require.NotEmpty(t, st.ID)
	base := "/api/wizards/" + st.ID

	w = f.do(http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decode(t, w, &st)
	assert.Equal(t, "Title is required", st.Errors["title"])

	w = f.do(http.MethodPost, base+"/step/3", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	form := wizard.Form{
		Title:           "Support",
		Name:            "support-bot",
		Instructions:    "Be helpful",
		GreetingMessage: "Hi!",
		Width:           2000,
		Height:          100,
	}
	w = f.do(http.MethodPut, base+"/form", form)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Equal(t, 1024, st.Form.Width)
	assert.Equal(t, 240, st.Form.Height)
	assert.Equal(t, wizard.SourceURL, st.Form.SelectedDataSource)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, base+"/next", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, base+"/next", nil).Code)

	w = f.do(http.MethodPost, base+"/next", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	decode(t, w, &st)
	assert.Equal(t, "Please add at least one website URL", st.Errors["trainingData"])

	w = f.do(http.MethodPost, base+"/websites", map[string]string{"url": "not a url"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	w = f.do(http.MethodPost, base+"/websites", map[string]string{"url": "https://example.com/docs"})
	require.Equal(t, http.StatusCreated, w.Code)
	w = f.do(http.MethodPost, base+"/qa", models.QAPair{Question: "Hours?", Answer: "9-5"})
	require.Equal(t, http.StatusCreated, w.Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, base+"/next", nil).Code)

	w = f.do(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, base+"/next", nil).Code)
	w = f.do(http.MethodPost, base+"/submit", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	assert.Equal(t, models.ChatbotActive, created.Status)
	assert.Equal(t, []string{"https://example.com/docs"}, created.AddedWebsites)
	assert.Equal(t, []models.QAPair{{Question: "Hours?", Answer: "9-5"}}, created.QAPairs)
	assert.Equal(t, 1024, created.Width)

	w = f.do(http.MethodPost, base+"/submit", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestWizard_FileUploadRunsInBackground(t *testing.T) {
	f := newFixture(t)

	release := make(chan struct{})
	f.backend.HandleFunc("POST /v1/api/file/upload", func(w http.ResponseWriter, r *http.Request) {
		<-release
		assert.Equal(t, "wf-default", r.FormValue("workflowId"))
		file, _, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, samplePDF, data)
		writeJSON(w, http.StatusOK, map[string]string{"fileId": "file-1"})
	})

	var st wizard.State
	decode(t, f.do(http.MethodPost, "/api/wizards", nil), &st)
	base := "/api/wizards/" + st.ID

	w := f.upload(base+"/files", "notes.txt", "text/plain", []byte("plain text"))
	require.Equal(t, http.StatusAccepted, w.Code)
	var result knowledge.SelectResult
	decode(t, w, &result)
	assert.Empty(t, result.Accepted)
	require.Len(t, result.Rejected, 1)

	w = f.upload(base+"/files", "guide.pdf", "application/pdf", samplePDF)
	require.Equal(t, http.StatusAccepted, w.Code)
	decode(t, w, &result)
	require.Len(t, result.Accepted, 1)
	assert.Equal(t, knowledge.FileUploading, result.Accepted[0].State)

	w = f.do(http.MethodDelete, base+"/files/"+result.Accepted[0].ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	close(release)
	require.Eventually(t, func() bool {
		var status fileStatus
		decode(t, f.do(http.MethodGet, base+"/files", nil), &status)
		return status.Uploaded == 1 && status.Files[0].FileID == "file-1"
	}, 2*time.Second, 10*time.Millisecond)
}

func chatbotBackend(t *testing.T, f *fixture) *[]models.Chatbot {
	t.Helper()
	var (
		mu    sync.Mutex
		saved []models.Chatbot
	)
	record := models.Chatbot{
		ID:            "7",
		Title:         "Support",
		Name:          "support",
		Status:        models.ChatbotActive,
		Width:         500,
		Height:        700,
		FileIDs:       []string{"file-a"},
		QAPairs:       []models.QAPair{{Question: "Q1", Answer: "A1"}},
		AddedWebsites: []string{"https://example.com"},
	}
	f.backend.HandleFunc("GET /v1/api/chatbot/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"data": record})
	})
	f.backend.HandleFunc("GET /v1/api/chatbot/7/knowledge-bases", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []models.KnowledgeBase{{ID: "1", Type: "file", Name: "handbook.pdf", FileID: "file-a"}})
	})
	f.backend.HandleFunc("PUT /v1/api/chatbot/7", func(w http.ResponseWriter, r *http.Request) {
		var bot models.Chatbot
		require.NoError(t, json.NewDecoder(r.Body).Decode(&bot))
		mu.Lock()
		saved = append(saved, bot)
		mu.Unlock()
		writeJSON(w, http.StatusOK, bot)
	})
	return &saved
}

func TestChatbot_EditAndSaveSendsFullCollections(t *testing.T) {
	f := newFixture(t)
	saved := chatbotBackend(t, f)

	var st chatbot.State
	w := f.do(http.MethodGet, "/api/chatbots/7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Equal(t, chatbot.ModeViewing, st.Mode)
	require.Len(t, st.KnowledgeBases, 1)
	assert.Contains(t, st.EmbedCode, `"7"`)

	w = f.do(http.MethodPost, "/api/chatbots/7/draft/qa", models.QAPair{Question: "Q2", Answer: "A2"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/api/chatbots/7/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	require.NotNil(t, st.Draft)
	require.Len(t, st.Draft.Files, 1)
	assert.Equal(t, "handbook.pdf", st.Draft.Files[0].Name)
	assert.True(t, st.Draft.QAPairs[0].IsExisting)

	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/chatbots/7/draft/qa", models.QAPair{Question: "Q2", Answer: "A2"}).Code)
	require.Equal(t, http.StatusCreated, f.do(http.MethodPost, "/api/chatbots/7/draft/texts", map[string]string{"text": "Opening hours are 9-5"}).Code)

	fields := chatbot.Fields{Title: "Support v2", Name: "support", Instructions: "Be brief", GreetingMessage: "Hello"}
	require.Equal(t, http.StatusOK, f.do(http.MethodPut, "/api/chatbots/7/draft", fields).Code)

	w = f.do(http.MethodPut, "/api/chatbots/7/size", sizeRequest{Width: 10, Height: 5000})
	require.Equal(t, http.StatusOK, w.Code)
	var size map[string]interface{}
	decode(t, w, &size)
	assert.EqualValues(t, 240, size["width"])
	assert.Contains(t, size["embedCode"], "height: 1024")

	w = f.do(http.MethodPost, "/api/chatbots/7/save", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &st)
	assert.Equal(t, chatbot.ModeViewing, st.Mode)
	assert.Nil(t, st.Draft)

	require.Len(t, *saved, 1)
	put := (*saved)[0]
	assert.Equal(t, "Support v2", put.Title)
	assert.Equal(t, []models.QAPair{{Question: "Q1", Answer: "A1"}, {Question: "Q2", Answer: "A2"}}, put.QAPairs)
	assert.Equal(t, []string{"Opening hours are 9-5"}, put.AddedTexts)
	assert.Equal(t, []string{"https://example.com"}, put.AddedWebsites)
	assert.Equal(t, []string{"file-a"}, put.FileIDs)
	assert.Equal(t, 240, put.Width)
	assert.Equal(t, 1024, put.Height)
}

func TestChatbot_CancelDropsDraft(t *testing.T) {
	f := newFixture(t)
	saved := chatbotBackend(t, f)

	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/chatbots/7", nil).Code)
	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/chatbots/7/edit", nil).Code)

	var st chatbot.State
	decode(t, f.do(http.MethodGet, "/api/chatbots/7", nil), &st)
	require.NotNil(t, st.Draft)
	itemID := st.Draft.Websites[0].ID
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/api/chatbots/7/draft/websites/"+itemID, nil).Code)

	w := f.do(http.MethodPost, "/api/chatbots/7/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.Nil(t, st.Draft)
	assert.Equal(t, []string{"https://example.com"}, st.Chatbot.AddedWebsites)
	assert.Empty(t, *saved)

	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/api/chatbots/7/save", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodPost, "/api/chatbots/8/edit", nil).Code)
}

func TestIntegrations_SetupFlow(t *testing.T) {
	f := newFixture(t)

	var (
		mu       sync.Mutex
		whatsapp *models.WhatsAppIntegration
		toggles  []string
	)
	f.backend.HandleFunc("GET /v1/api/chatbot/whatsapp/7", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		if whatsapp == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
			return
		}
		writeJSON(w, http.StatusOK, whatsapp)
	})
	f.backend.HandleFunc("POST /v1/api/chatbot/whatsapp/setup", func(w http.ResponseWriter, r *http.Request) {
		var in models.WhatsAppIntegration
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, models.ID("7"), in.ChatbotID)
		mu.Lock()
		whatsapp = &in
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	f.backend.HandleFunc("PUT /v1/api/chatbot/whatsapp/7/toggle", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		toggles = append(toggles, r.URL.Query().Get("enabled"))
		whatsapp.Enabled = r.URL.Query().Get("enabled") == "true"
		mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	f.backend.HandleFunc("GET /v1/api/chatbot/messenger/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
	})
	f.backend.HandleFunc("GET /v1/api/chatbot/google-calendar/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.GoogleCalendarIntegration{ChatbotID: "7", Email: "owner@example.com", Enabled: true})
	})
	f.backend.HandleFunc("DELETE /v1/api/chatbot/google-calendar/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	})
	f.graph.HandleFunc("GET /123456", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer EAAB", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, map[string]string{"id": "123456", "display_phone_number": "+1 555 0100", "verified_name": "Acme"})
	})

	var list integrationsResponse
	w := f.do(http.MethodGet, "/api/chatbots/7/integrations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &list)
	assert.Empty(t, list.Errors)
	require.NotNil(t, list.WhatsApp)
	assert.Equal(t, integration.StateDisabled, list.WhatsApp.State)
	assert.True(t, list.GoogleCalendar.Connected)

	var toggled struct {
		Result integration.ToggleResult                      `json:"result"`
		Panel  integration.View[models.WhatsAppIntegration] `json:"panel"`
	}
	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/whatsapp/toggle", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &toggled)
	assert.Equal(t, integration.ActionOpenSetup, toggled.Result.Action)
	assert.Equal(t, int64(300), toggled.Result.DelayMS)
	assert.True(t, toggled.Panel.ModalOpen)
	assert.Empty(t, toggles)

	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/whatsapp/setup", models.WhatsAppIntegration{Name: "Acme", PhoneNumberID: "12ab"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var invalid struct {
		Errors map[string]string `json:"errors"`
	}
	decode(t, w, &invalid)
	assert.Contains(t, invalid.Errors, "accessToken")
	assert.Contains(t, invalid.Errors["phoneNumberId"], "digits")

	form := models.WhatsAppIntegration{
		Name:               "Acme",
		BusinessAccountID:  "biz-1",
		AppID:              "app-1",
		PhoneNumberID:      "123456",
		PhoneNumber:        "+15550100",
		AccessToken:        "EAAB",
		WebhookVerifyToken: "verify",
	}
	var test integration.TestResult
	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/whatsapp/test", form)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &test)
	assert.True(t, test.Success, test.Message)

	var view integration.View[models.WhatsAppIntegration]
	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/whatsapp/setup", form)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &view)
	assert.False(t, view.ModalOpen)
	require.NotNil(t, view.Integration)

	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/whatsapp/toggle", map[string]bool{"enabled": true})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &toggled)
	assert.Equal(t, integration.ActionToggled, toggled.Result.Action)
	assert.Equal(t, integration.StateEnabled, toggled.Panel.State)
	assert.Equal(t, []string{"true"}, toggles)

	w = f.do(http.MethodPost, "/api/chatbots/7/integrations/telegram/toggle", map[string]bool{"enabled": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	var cal integration.CalendarView
	w = f.do(http.MethodDelete, "/api/chatbots/7/integrations/google-calendar", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cal)
	assert.False(t, cal.Connected)
}

func TestHistory_GroupsAndSearches(t *testing.T) {
	f := newFixture(t)
	f.backend.HandleFunc("POST /v1/api/n8n/authenticated/chatHistory/7", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": 1, "conversationid": "conv-aaaaaaaa1", "userMessage": "What are your hours?", "aiMessage": "9-5", "createdAt": 1700000000},
			{"id": 2, "conversationid": "conv-bbbbbbbb2", "userMessage": "Refund policy", "aiMessage": "30 days", "createdAt": "2023-11-15T10:00:00Z"},
			{"id": 3, "conversationid": "conv-aaaaaaaa1", "userMessage": "Thanks", "aiMessage": "<b>Bye</b>", "createdAt": 1700000100},
		})
	})
	f.backend.HandleFunc("POST /v1/api/n8n/authenticated/chatHistory/7/conv-aaaaaaaa1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, []map[string]interface{}{
			{"id": 3, "conversationid": "conv-aaaaaaaa1", "userMessage": "Thanks", "aiMessage": "<b>Bye</b>", "createdAt": 1700000100},
			{"id": 1, "conversationid": "conv-aaaaaaaa1", "userMessage": "What are your hours?", "aiMessage": "9-5", "createdAt": 1700000000},
		})
	})

	var convs []history.Conversation
	w := f.do(http.MethodGet, "/api/chatbots/7/history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &convs)
	require.Len(t, convs, 2)
	assert.Equal(t, "conv-bbbbbbbb2", convs[0].ID)
	assert.Equal(t, "What are your hours?", convs[1].Title)

	decode(t, f.do(http.MethodGet, "/api/chatbots/7/history?q=refund", nil), &convs)
	require.Len(t, convs, 1)
	assert.Equal(t, "Refund policy", convs[0].Title)

	var msgs []history.Message
	decode(t, f.do(http.MethodGet, "/api/chatbots/7/history/conv-aaaaaaaa1", nil), &msgs)
	require.Len(t, msgs, 4)
	assert.Equal(t, "What are your hours?", msgs[0].Content)
	assert.True(t, msgs[3].HTML)
}

func TestDashboard_SnapshotReportsFailuresPerSection(t *testing.T) {
	f := newFixture(t)
	f.backend.HandleFunc("GET /v1/api/dashboard/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/api/dashboard/top/users" {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "data": map[string]string{"path": r.URL.Path}})
	})

	var sections map[string]dashboard.Section
	w := f.do(http.MethodGet, "/api/dashboard?days=7", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &sections)
	require.Len(t, sections, 7)
	assert.Equal(t, dashboard.StatusReady, sections["dashboard_overall_stats"].Status)
	assert.JSONEq(t, `{"path":"/v1/api/dashboard/stats/overall"}`, string(sections["dashboard_overall_stats"].Data))
	assert.Equal(t, dashboard.StatusError, sections["dashboard_top_users"].Status)
	assert.Equal(t, "stats down", sections["dashboard_top_users"].Error)
}
