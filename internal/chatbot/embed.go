package chatbot

import (
	"encoding/json"
	"strings"
	"text/template"

	"chatbot-console/pkg/models"
)

const widgetScript = "/widget-dist/chat-widget.iife.js"

// EmbedConfig locates the widget bundle and the API it talks to.
type EmbedConfig struct {
	AppURL string
	APIURL string
}

var snippetTmpl = template.Must(template.New("embed").Funcs(template.FuncMap{
	"js": func(v interface{}) (string, error) {
		b, err := json.Marshal(v)
		return string(b), err
	},
}).Parse(`<script src="{{html .Script}}"></script>
<script>
  window.initChatWidget({
    chatbotId: {{js .ChatbotID}},
    apiUrl: {{js .APIURL}},
    width: {{.Width}},
    height: {{.Height}}
  });
</script>
`))

// Snippet renders the embed code users paste into their site.
func Snippet(cfg EmbedConfig, id models.ID, width, height int) string {
	var sb strings.Builder
	// the template only fails on marshal errors, impossible for strings
	_ = snippetTmpl.Execute(&sb, struct {
		Script    string
		ChatbotID string
		APIURL    string
		Width     int
		Height    int
	}{
		Script:    strings.TrimRight(cfg.AppURL, "/") + widgetScript,
		ChatbotID: id.String(),
		APIURL:    cfg.APIURL,
		Width:     models.ClampDimension(width),
		Height:    models.ClampDimension(height),
	})
	return sb.String()
}
