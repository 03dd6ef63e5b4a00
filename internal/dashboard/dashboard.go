// Package dashboard loads the seven dashboard statistics. Each one is served
// from a short-lived cache when fresh and always refreshed in the background.
package dashboard

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"sync"
	"time"

	"chatbot-console/internal/store"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTTL   = 5 * time.Minute
	DefaultDays  = 30
	DefaultLimit = 5
)

// Stat is one statistic endpoint and the cache key it is stored under.
type Stat struct {
	Key      string
	Endpoint string
	Query    url.Values
}

// Stats lists the dashboard statistics in display order.
func Stats(days, limit int) []Stat {
	if days <= 0 {
		days = DefaultDays
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	d := url.Values{"days": {strconv.Itoa(days)}}
	l := url.Values{"limit": {strconv.Itoa(limit)}}

	return []Stat{
		{Key: "dashboard_overall_stats", Endpoint: "stats/overall"},
		{Key: "dashboard_chatbot_stats", Endpoint: "stats/chatbots"},
		{Key: "dashboard_conversation_stats", Endpoint: "stats/conversations"},
		{Key: "dashboard_usage_stats", Endpoint: "stats/usage"},
		{Key: "dashboard_usage_over_time", Endpoint: "stats/usage-over-time", Query: d},
		{Key: "dashboard_top_chatbots", Endpoint: "top/chatbots", Query: l},
		{Key: "dashboard_top_users", Endpoint: "top/users", Query: l},
	}
}

// Cache keeps statistic payloads in a store with a TTL.
type Cache struct {
	store store.Store
	ttl   time.Duration
	now   store.Clock
	log   *logrus.Entry
}

func NewCache(s store.Store, ttl time.Duration, now store.Clock, log *logrus.Entry) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Cache{store: s, ttl: ttl, now: now, log: log}
}

// GetCachedData returns the cached payload, or nil when it is missing,
// unreadable or older than the TTL.
func (c *Cache) GetCachedData(ctx context.Context, key string) json.RawMessage {
	entry, err := c.store.Get(ctx, key)
	if err != nil {
		c.log.WithError(err).WithField("key", key).Warn("Failed to read dashboard cache")
		return nil
	}
	if entry == nil || entry.Age(c.now()) >= c.ttl {
		return nil
	}
	return entry.Data
}

func (c *Cache) SetCachedData(ctx context.Context, key string, data json.RawMessage) error {
	return c.store.Set(ctx, key, data)
}

type Status string

const (
	StatusCached  Status = "cached"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// Section is one update of one statistic on the page.
type Section struct {
	Key    string          `json:"key"`
	Status Status          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

type Fetcher interface {
	Stat(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error)
}

type Aggregator struct {
	fetcher Fetcher
	cache   *Cache
	log     *logrus.Entry
}

func NewAggregator(fetcher Fetcher, cache *Cache, log *logrus.Entry) *Aggregator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Aggregator{fetcher: fetcher, cache: cache, log: log}
}

// Load emits every statistic's cached payload or a loading marker first,
// then fetches all of them concurrently. Fresh data is cached and emitted.
// A failed fetch emits an error section only when nothing was cached; a
// cached section stays as it was. emit is never called concurrently.
func (a *Aggregator) Load(ctx context.Context, days, limit int, emit func(Section)) {
	var mu sync.Mutex
	send := func(s Section) {
		mu.Lock()
		defer mu.Unlock()
		emit(s)
	}

	stats := Stats(days, limit)
	hadCache := make([]bool, len(stats))
	for i, st := range stats {
		if data := a.cache.GetCachedData(ctx, st.Key); data != nil {
			hadCache[i] = true
			send(Section{Key: st.Key, Status: StatusCached, Data: data})
			continue
		}
		send(Section{Key: st.Key, Status: StatusLoading})
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range stats {
		g.Go(func() error {
			data, err := a.fetcher.Stat(gctx, st.Endpoint, st.Query)
			if err != nil {
				a.log.WithError(err).WithField("stat", st.Key).Warn("Failed to fetch dashboard statistic")
				if !hadCache[i] {
					send(Section{Key: st.Key, Status: StatusError, Error: err.Error()})
				}
				return nil
			}
			if err := a.cache.SetCachedData(ctx, st.Key, data); err != nil {
				a.log.WithError(err).WithField("stat", st.Key).Warn("Failed to cache dashboard statistic")
			}
			send(Section{Key: st.Key, Status: StatusReady, Data: data})
			return nil
		})
	}
	g.Wait()
}

// Snapshot runs Load and returns the final section of every statistic.
func (a *Aggregator) Snapshot(ctx context.Context, days, limit int) map[string]Section {
	out := map[string]Section{}
	a.Load(ctx, days, limit, func(s Section) {
		out[s.Key] = s
	})
	return out
}
