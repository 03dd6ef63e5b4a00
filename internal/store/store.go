// Package store persists per-user client state: chat session ids, the n8n
// workflow selection and the dashboard statistic cache. Every value is kept
// as {data, timestamp}; writes are last-writer-wins.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// Keys shared with the browser console.
const (
	SessionIDKey = "openwebui_session_id"
	N8NConfigKey = "openwebui_n8n_config"
)

// ChatSessionKey is the key of a chatbot's chat session id.
func ChatSessionKey(chatbotID string) string {
	return "chatbot_session_" + chatbotID
}

// Entry is a stored value and the time it was written.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Age is how long ago the entry was written.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp)
}

type Store interface {
	// Get returns nil, nil when key is absent.
	Get(ctx context.Context, key string) (*Entry, error)
	// Set marshals data and stamps it with the current time.
	Set(ctx context.Context, key string, data interface{}) error
	Delete(ctx context.Context, key string) error
}

// Clock is swapped in tests.
type Clock func() time.Time

type prefixed struct {
	inner  Store
	prefix string
}

// Prefixed namespaces every key of inner under prefix.
func Prefixed(inner Store, prefix string) Store {
	return &prefixed{inner: inner, prefix: prefix + ":"}
}

func (p *prefixed) Get(ctx context.Context, key string) (*Entry, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, data interface{}) error {
	return p.inner.Set(ctx, p.prefix+key, data)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.inner.Delete(ctx, p.prefix+key)
}

// GetInto decodes the entry stored under key into out. It reports false when
// the key is absent.
func GetInto(ctx context.Context, s Store, key string, out interface{}) (bool, error) {
	entry, err := s.Get(ctx, key)
	if err != nil || entry == nil {
		return false, err
	}
	if err := json.Unmarshal(entry.Data, out); err != nil {
		return false, err
	}
	return true, nil
}
