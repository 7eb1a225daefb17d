package chatmedia

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-wrap/domains/media"
)

// Entry is what the process remembers about one media id.
type Entry struct {
	State     media.State `json:"state"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Cache is an in-memory, content-addressed media state store. The downloaded flag is
// sticky; converted thumbnails expire after ttl so large previews do not pile up.
type Cache struct {
	mu    sync.RWMutex
	store map[string]Entry
	ttl   time.Duration
	now   func() time.Time
}

// NewCache returns an empty cache. ttl <= 0 keeps converted thumbnails forever.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		store: make(map[string]Entry),
		ttl:   ttl,
		now:   time.Now,
	}
}

var _ media.IStateStore = (*Cache)(nil)

// Get returns the state for id. Unknown ids yield the zero state.
func (c *Cache) Get(_ context.Context, id string) (media.State, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return media.State{}, nil
	}

	c.mu.RLock()
	e, ok := c.store[id]
	c.mu.RUnlock()
	if !ok {
		return media.State{}, nil
	}

	if c.ttl > 0 && e.State.ThumbConverted && c.now().Sub(e.UpdatedAt) > c.ttl {
		c.mu.Lock()
		if cur, ok := c.store[id]; ok && cur.UpdatedAt.Equal(e.UpdatedAt) {
			cur.State.ThumbConverted = false
			cur.State.ConvertedThumb = nil
			c.store[id] = cur
			e = cur
		}
		c.mu.Unlock()
	}
	return e.State, nil
}

// MarkDownloaded records a successful fetch. An empty url keeps the previous one.
func (c *Cache) MarkDownloaded(_ context.Context, id, url string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.store[id]
	e.State.Downloaded = true
	if url != "" {
		e.State.URL = url
	}
	e.UpdatedAt = c.now()
	c.store[id] = e
	return nil
}

// MarkThumbConverted stores the converted preview bytes for id.
func (c *Cache) MarkThumbConverted(_ context.Context, id string, thumb []byte) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.store[id]
	e.State.ThumbConverted = true
	e.State.ConvertedThumb = thumb
	e.UpdatedAt = c.now()
	c.store[id] = e
	return nil
}

// Len returns the number of tracked ids.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}
