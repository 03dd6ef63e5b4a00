package api

import (
	"context"
	"net/http"
	"strconv"

	"chatbot-console/internal/dashboard"
	"chatbot-console/internal/ws"

	"github.com/gin-gonic/gin"
)

type DashboardHandler struct {
	deps *Deps
}

func NewDashboardHandler(d *Deps) *DashboardHandler {
	return &DashboardHandler{deps: d}
}

func (h *DashboardHandler) aggregator(w *Workspace) *dashboard.Aggregator {
	log := h.deps.Log.WithField("user", w.UserID)
	cache := dashboard.NewCache(w.Store, h.deps.Config.DashboardCacheTTL, h.deps.now, log)
	return dashboard.NewAggregator(h.deps.Backend, cache, log)
}

func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

// Get loads every statistic and returns the final section of each.
func (h *DashboardHandler) Get(c *gin.Context) {
	w := h.deps.workspace(c)
	sections := h.aggregator(w).Snapshot(c.Request.Context(), queryInt(c, "days"), queryInt(c, "limit"))
	c.JSON(http.StatusOK, sections)
}

// Stream upgrades to a websocket and pushes each section as it becomes
// available: cached or loading first, then fresh data.
func (h *DashboardHandler) Stream(c *gin.Context) {
	w := h.deps.workspace(c)
	days, limit := queryInt(c, "days"), queryInt(c, "limit")

	if _, err := h.deps.Hub.ServeWs(c.Writer, c.Request, w.UserID); err != nil {
		return
	}

	ctx := context.WithoutCancel(c.Request.Context())
	agg := h.aggregator(w)
	go agg.Load(ctx, days, limit, func(s dashboard.Section) {
		h.deps.Hub.Publish(w.UserID, ws.EventDashboardSection, s)
	})
}
