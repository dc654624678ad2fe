package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harunnryd/stackchat/internal/backend"

	"golang.org/x/sync/singleflight"
)

const DefaultTTL = 30 * time.Second

// Catalog memoizes the backend model list for a fixed TTL.
type Catalog struct {
	lister backend.ModelLister
	ttl    time.Duration
	now    func() time.Time

	mu        sync.RWMutex
	models    []string
	fetchedAt time.Time
	gen       uint64

	group singleflight.Group
}

type Option func(*Catalog)

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		c.now = now
	}
}

func New(lister backend.ModelLister, ttl time.Duration, opts ...Option) *Catalog {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Catalog{lister: lister, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Models returns the cached list, fetching it when stale. Failures yield an
// empty list and are not cached.
func (c *Catalog) Models(ctx context.Context) []string {
	if models, ok := c.fresh(); ok {
		return models
	}

	res, _, _ := c.group.Do("models", func() (any, error) {
		if models, ok := c.fresh(); ok {
			return models, nil
		}

		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		models := c.lister.ListModels(ctx)
		if models == nil {
			models = []string{}
		}
		slog.Debug("Fetched model list", "count", len(models))

		if len(models) > 0 {
			c.mu.Lock()
			if c.gen == gen {
				c.models = models
				c.fetchedAt = c.now()
			}
			c.mu.Unlock()
		}
		return models, nil
	})

	return append([]string{}, res.([]string)...)
}

// Refresh drops the cached list so the next Models call hits the backend.
func (c *Catalog) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.models = nil
	c.fetchedAt = time.Time{}
	c.gen++
}

func (c *Catalog) TestConnection(ctx context.Context) bool {
	return c.lister.TestConnection(ctx)
}

func (c *Catalog) fresh() ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.models == nil || c.now().Sub(c.fetchedAt) >= c.ttl {
		return nil, false
	}
	return append([]string{}, c.models...), true
}
