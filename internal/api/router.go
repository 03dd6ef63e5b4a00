package api

import (
	"net/http"
	"strings"
	"time"

	"chatbot-console/internal/auth"
	"chatbot-console/internal/backend"
	"chatbot-console/internal/config"
	"chatbot-console/internal/graph"
	"chatbot-console/internal/logger"
	"chatbot-console/internal/store"
	"chatbot-console/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Deps are the collaborators shared by every handler.
type Deps struct {
	Config     *config.Config
	Backend    *backend.Client
	Graph      *graph.Client
	Hub        *ws.Hub
	Store      store.Store
	Workspaces *Workspaces
	Verifier   *auth.Verifier
	Log        *logrus.Entry
	Now        func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func parseOrigins(origins string) map[string]bool {
	allowed := map[string]bool{}
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			allowed[o] = true
		}
	}
	return allowed
}

// OriginChecker accepts websocket upgrades from the configured CORS origins.
func OriginChecker(origins string) func(r *http.Request) bool {
	allowed := parseOrigins(origins)
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || allowed["*"] || allowed[origin]
	}
}

// corsMiddleware answers preflight requests and echoes an allowed origin.
func corsMiddleware(origins string) gin.HandlerFunc {
	allowed := parseOrigins(origins)
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		switch {
		case allowed["*"] && origin == "":
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case allowed["*"] || allowed[origin]:
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// NewRouter builds the console API.
func NewRouter(d *Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logger.For("api")
	}
	if d.Workspaces == nil {
		d.Workspaces = NewWorkspaces(d.Store)
	}
	if d.Verifier == nil {
		d.Verifier = auth.NewVerifier(d.Config.JWTSecret, d.Config.AuthInsecureDev, d.Log)
	}

	r := gin.New()
	r.Use(logger.GinMiddleware(d.Log), gin.Recovery())
	r.Use(corsMiddleware(d.Config.CORSOrigins))
	r.Use(auth.Middleware(d.Verifier, d.Log))

	proxyHandler := NewProxyHandler(d)
	wizardHandler := NewWizardHandler(d)
	chatbotHandler := NewChatbotHandler(d)
	integrationHandler := NewIntegrationHandler(d)
	historyHandler := NewHistoryHandler(d)
	dashboardHandler := NewDashboardHandler(d)
	chatHandler := NewChatHandler(d)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := r.Group("/api")
	{
		// Proxy routes accept anonymous callers
		apiGroup.POST("/n8n", proxyHandler.Chat)
		apiGroup.GET("/n8n", proxyHandler.Health)

		user := apiGroup.Group("", auth.RequireIdentity())
		user.GET("/n8n/config", proxyHandler.GetConfig)
		user.PUT("/n8n/config", proxyHandler.SaveConfig)
		user.GET("/session", proxyHandler.Session)

		// Wizard Routes
		wizards := user.Group("/wizards")
		{
			wizards.POST("", wizardHandler.Create)
			wizards.GET("/:wid", wizardHandler.Get)
			wizards.DELETE("/:wid", wizardHandler.Discard)
			wizards.PUT("/:wid/form", wizardHandler.UpdateForm)
			wizards.POST("/:wid/next", wizardHandler.Next)
			wizards.POST("/:wid/previous", wizardHandler.Previous)
			wizards.POST("/:wid/step/:step", wizardHandler.GoTo)
			wizards.POST("/:wid/submit", wizardHandler.Submit)
			registerKnowledge(wizards.Group("/:wid"), wizardHandler.knowledge)
		}

		// Chatbot Routes
		chatbots := user.Group("/chatbots")
		{
			chatbots.GET("", chatbotHandler.List)
			chatbots.PUT("/:id/status", chatbotHandler.ToggleStatus)
			chatbots.GET("/:id", chatbotHandler.Get)
			chatbots.GET("/:id/embed", chatbotHandler.Embed)
			chatbots.PUT("/:id/size", chatbotHandler.SetSize)
			chatbots.POST("/:id/edit", chatbotHandler.BeginEdit)
			chatbots.PUT("/:id/draft", chatbotHandler.UpdateDraft)
			chatbots.POST("/:id/save", chatbotHandler.Save)
			chatbots.POST("/:id/cancel", chatbotHandler.Cancel)
			registerKnowledge(chatbots.Group("/:id/draft"), chatbotHandler.knowledge)

			chatbots.GET("/:id/integrations", integrationHandler.List)
			chatbots.POST("/:id/integrations/:channel/toggle", integrationHandler.Toggle)
			chatbots.POST("/:id/integrations/:channel/setup/open", integrationHandler.OpenSetup)
			chatbots.POST("/:id/integrations/:channel/setup/close", integrationHandler.CloseSetup)
			chatbots.POST("/:id/integrations/:channel/test", integrationHandler.Test)
			chatbots.POST("/:id/integrations/:channel/setup", integrationHandler.SaveSetup)
			chatbots.DELETE("/:id/integrations/google-calendar", integrationHandler.DisconnectCalendar)

			chatbots.GET("/:id/history", historyHandler.Conversations)
			chatbots.GET("/:id/history/:conversationId", historyHandler.Messages)

			chatbots.POST("/:id/chat", chatHandler.Send)
		}

		user.GET("/dashboard", dashboardHandler.Get)
		user.GET("/dashboard/ws", dashboardHandler.Stream)
	}

	return r
}
