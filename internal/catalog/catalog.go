package catalog

import (
	"context"
	"expvar"
	"strings"
	"sync"
	"time"

	"github.com/airstudent2/Tournament-200-26/internal/changefeed"
	"github.com/airstudent2/Tournament-200-26/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	metricHits   = expvar.NewInt("catalog_hits")
	metricMisses = expvar.NewInt("catalog_misses")
)

type cached[T any] struct {
	value   T
	expires time.Time
}

// Catalog is a read-through cache of tournament documents for listings.
// Join and capacity decisions always read the store directly.
type Catalog struct {
	rs  store.RecordStore
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	list  *cached[[]store.Tournament]
	items map[string]cached[store.Tournament]
	// gen moves on every Invalidate; a read that started under an older gen
	// is returned but not cached.
	gen uint64
}

func New(rs store.RecordStore, ttl time.Duration) *Catalog {
	return &Catalog{rs: rs, ttl: ttl, now: time.Now, items: map[string]cached[store.Tournament]{}}
}

func (c *Catalog) List(ctx context.Context) ([]store.Tournament, error) {
	c.mu.RLock()
	if c.list != nil && c.now().Before(c.list.expires) {
		out := append([]store.Tournament(nil), c.list.value...)
		c.mu.RUnlock()
		metricHits.Add(1)
		return out, nil
	}
	gen := c.gen
	c.mu.RUnlock()
	metricMisses.Add(1)

	ts, err := store.ListJSON[store.Tournament](ctx, c.rs, store.PrefixTournaments, 0, 0)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.list = &cached[[]store.Tournament]{value: ts, expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return append([]store.Tournament(nil), ts...), nil
}

func (c *Catalog) Get(ctx context.Context, id string) (store.Tournament, error) {
	c.mu.RLock()
	if e, ok := c.items[id]; ok && c.now().Before(e.expires) {
		c.mu.RUnlock()
		metricHits.Add(1)
		return e.value, nil
	}
	gen := c.gen
	c.mu.RUnlock()
	metricMisses.Add(1)

	t, err := store.GetJSON[store.Tournament](ctx, c.rs, store.TournamentKey(id))
	if err != nil {
		return store.Tournament{}, err
	}
	c.mu.Lock()
	if c.gen == gen {
		c.items[id] = cached[store.Tournament]{value: t, expires: c.now().Add(c.ttl)}
	}
	c.mu.Unlock()
	return t, nil
}

// Invalidate drops cached state for a changed record key.
func (c *Catalog) Invalidate(key string) {
	if !strings.HasPrefix(key, store.PrefixTournaments) {
		return
	}
	id := strings.TrimPrefix(key, store.PrefixTournaments)
	c.mu.Lock()
	c.gen++
	c.list = nil
	delete(c.items, id)
	c.mu.Unlock()
}

// Watch invalidates entries as tournament changes arrive on the feed. It
// returns when ctx is done or the hub closes.
func (c *Catalog) Watch(ctx context.Context, hub *changefeed.Hub) error {
	sub := hub.Subscribe(store.PrefixTournaments)
	defer sub.Cancel()
	log.Info().Msg("catalog invalidation loop started")
	for {
		select {
		case <-ctx.Done():
			return nil
		case ch, ok := <-sub.C:
			if !ok {
				return nil
			}
			c.Invalidate(ch.Key)
		}
	}
}
