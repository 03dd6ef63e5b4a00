// Package knowledge holds the editable training sources of a chatbot: files,
// Q&A pairs, free text blocks and website URLs.
//
// Items hydrated from a saved chatbot are marked existing; items added since
// are new. The flag only affects presentation and the delete policy. Saving
// always sends the full merged collection, never a diff.
package knowledge

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"chatbot-console/pkg/models"

	"github.com/google/uuid"
)

var (
	ErrExistingItem = errors.New("saved knowledge items cannot be removed")
	ErrNotFound     = errors.New("knowledge item not found")
	ErrDuplicate    = errors.New("item already added")
)

// DeletePolicy decides what happens to items that were already saved.
type DeletePolicy string

const (
	// DeleteBadge hides the delete control for saved items (they render with
	// a view-only badge) but still lets them be removed.
	DeleteBadge DeletePolicy = "badge"
	// DeleteBlock refuses to remove saved items.
	DeleteBlock DeletePolicy = "block"
)

// Item is one entry of a collection as the console renders it.
type Item[T any] struct {
	ID         string `json:"id"`
	Value      T      `json:"value"`
	IsExisting bool   `json:"isExisting"`
	Deletable  bool   `json:"deletable"`
}

// Collection is an ordered, concurrency-safe list of knowledge items.
type Collection[T any] struct {
	mu       sync.Mutex
	items    []Item[T]
	policy   DeletePolicy
	validate func(T, []T) (T, error)
}

func newCollection[T any](policy DeletePolicy, validate func(T, []T) (T, error)) *Collection[T] {
	if policy == "" {
		policy = DeleteBadge
	}
	return &Collection[T]{policy: policy, validate: validate}
}

// NewQAPairs returns a Q&A editor. Both sides must be non-blank.
func NewQAPairs(policy DeletePolicy) *Collection[models.QAPair] {
	return newCollection(policy, func(p models.QAPair, _ []models.QAPair) (models.QAPair, error) {
		p.Question = strings.TrimSpace(p.Question)
		p.Answer = strings.TrimSpace(p.Answer)
		if p.Question == "" || p.Answer == "" {
			return p, errors.New("question and answer are required")
		}
		return p, nil
	})
}

// NewTexts returns a free-text editor.
func NewTexts(policy DeletePolicy) *Collection[string] {
	return newCollection(policy, func(s string, _ []string) (string, error) {
		s = strings.TrimSpace(s)
		if s == "" {
			return s, errors.New("text is required")
		}
		return s, nil
	})
}

// NewWebsites returns a website editor. URLs must be absolute http(s) and
// unique within the collection.
func NewWebsites(policy DeletePolicy) *Collection[string] {
	return newCollection(policy, func(s string, current []string) (string, error) {
		s = strings.TrimSpace(s)
		u, err := url.Parse(s)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return s, fmt.Errorf("%q is not a valid website URL", s)
		}
		for _, existing := range current {
			if strings.EqualFold(existing, s) {
				return s, ErrDuplicate
			}
		}
		return s, nil
	})
}

func (c *Collection[T]) item(v T, existing bool) Item[T] {
	return Item[T]{
		ID:         uuid.NewString(),
		Value:      v,
		IsExisting: existing,
		Deletable:  !existing,
	}
}

// Hydrate replaces the contents with saved values, all marked existing.
func (c *Collection[T]) Hydrate(values []T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make([]Item[T], 0, len(values))
	for _, v := range values {
		c.items = append(c.items, c.item(v, true))
	}
}

// Add validates v and appends it as a new item.
func (c *Collection[T]) Add(v T) (Item[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.validate != nil {
		normalized, err := c.validate(v, c.valuesLocked())
		if err != nil {
			return Item[T]{}, err
		}
		v = normalized
	}
	it := c.item(v, false)
	c.items = append(c.items, it)
	return it, nil
}

// Remove deletes the item with the given id, subject to the delete policy.
func (c *Collection[T]) Remove(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i, it := range c.items {
		if it.ID != id {
			continue
		}
		if it.IsExisting && c.policy == DeleteBlock {
			return ErrExistingItem
		}
		c.items = append(c.items[:i], c.items[i+1:]...)
		return nil
	}
	return ErrNotFound
}

// Items returns a copy of the items in order.
func (c *Collection[T]) Items() []Item[T] {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Item[T], len(c.items))
	copy(out, c.items)
	return out
}

// Values returns the full collection stripped of client-only fields.
func (c *Collection[T]) Values() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valuesLocked()
}

func (c *Collection[T]) valuesLocked() []T {
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it.Value)
	}
	return out
}

func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
