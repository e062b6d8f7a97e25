package client

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/xiaot623/gogo/flightdeck/api"
)

// Cache memoises query results per key. Concurrent loads of the same key
// share one request, and at most one request per key is in flight. A refetch
// starts a new generation: the older request is cancelled and finishes
// before the new one starts, and its callers receive the newer result.
type Cache struct {
	group   singleflight.Group
	mu      sync.Mutex
	entries map[string]entry
	gens    map[string]uint64
	flights map[string]*flight
}

type entry struct {
	val interface{}
	gen uint64
}

// flight is the request currently loading one key.
type flight struct {
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

var errSuperseded = errors.New("load superseded by a newer request")

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		gens:    make(map[string]uint64),
		flights: make(map[string]*flight),
	}
}

// Peek returns the stored value for key without loading.
func (c *Cache) Peek(key string) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e.val, ok
}

// Get returns the stored value or loads it with fetch.
func (c *Cache) Get(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	if v, ok := c.Peek(key); ok {
		return v, nil
	}
	return c.load(ctx, key, fetch, false)
}

// Refetch ignores the stored value and supersedes any load in flight.
func (c *Cache) Refetch(ctx context.Context, key string, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	return c.load(ctx, key, fetch, true)
}

// Invalidate drops the stored value for key and cancels its load.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.supersede(key)
}

// supersede starts a new generation for key. Callers hold c.mu.
func (c *Cache) supersede(key string) {
	c.gens[key]++
	if f := c.flights[key]; f != nil {
		f.cancel()
	}
}

func (c *Cache) load(ctx context.Context, key string, fetch func(context.Context) (interface{}, error), fresh bool) (interface{}, error) {
	c.mu.Lock()
	if fresh {
		c.supersede(key)
	}
	gen := c.gens[key]
	c.mu.Unlock()

	for {
		c.mu.Lock()
		e, ok := c.entries[key]
		c.mu.Unlock()
		if ok && e.gen == gen {
			return e.val, nil
		}

		ch := c.group.DoChan(fmt.Sprintf("%s#%d", key, gen), func() (interface{}, error) {
			return c.fetchGen(ctx, key, gen, fetch)
		})

		var res singleflight.Result
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res = <-ch:
		}

		c.mu.Lock()
		current := c.gens[key]
		c.mu.Unlock()
		if current == gen {
			return res.Val, res.Err
		}
		// Superseded while waiting: follow the newest generation.
		gen = current
	}
}

// fetchGen runs fetch for one generation of key. It waits for the previous
// generation's request to return so only one request per key is in flight.
func (c *Cache) fetchGen(ctx context.Context, key string, gen uint64, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	// The shared fetch outlives any single caller's context.
	fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()
	f := &flight{gen: gen, cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	if c.gens[key] != gen {
		c.mu.Unlock()
		return nil, errSuperseded
	}
	prev := c.flights[key]
	c.flights[key] = f
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.flights[key] == f {
			delete(c.flights, key)
		}
		c.mu.Unlock()
		close(f.done)
	}()

	if prev != nil {
		<-prev.done
		if fctx.Err() != nil {
			return nil, errSuperseded
		}
	}

	v, err := fetch(fctx)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[key] != gen {
		return nil, errSuperseded
	}
	if err != nil {
		return nil, err
	}
	c.entries[key] = entry{val: v, gen: gen}
	return v, nil
}

// CachedClient answers queries from a Cache, keyed by resource.
type CachedClient struct {
	*Client
	cache *Cache
}

// NewCachedClient wraps c with a fresh cache.
func NewCachedClient(c *Client) *CachedClient {
	return &CachedClient{Client: c, cache: NewCache()}
}

// Cache exposes the underlying cache.
func (c *CachedClient) Cache() *Cache {
	return c.cache
}

func (c *CachedClient) lookup(ctx context.Context, key string, refetch bool, fetch func(context.Context) (interface{}, error)) (interface{}, error) {
	if refetch {
		return c.cache.Refetch(ctx, key, fetch)
	}
	return c.cache.Get(ctx, key, fetch)
}

// Runs returns the first page of runs for opts.
func (c *CachedClient) Runs(ctx context.Context, opts ListRunsOptions, refetch bool) (*api.ListRunsResponse, error) {
	v, err := c.lookup(ctx, "runs?"+opts.values().Encode(), refetch, func(ctx context.Context) (interface{}, error) {
		return c.Client.ListRuns(ctx, opts)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.ListRunsResponse), nil
}

// Run returns one run's detail.
func (c *CachedClient) Run(ctx context.Context, runID string, refetch bool) (*api.RunDetailResponse, error) {
	v, err := c.lookup(ctx, "run:"+runID, refetch, func(ctx context.Context) (interface{}, error) {
		return c.Client.GetRun(ctx, runID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.RunDetailResponse), nil
}

// Events returns a run's whole timeline.
func (c *CachedClient) Events(ctx context.Context, runID string, refetch bool) ([]api.Event, error) {
	v, err := c.lookup(ctx, "events:"+runID, refetch, func(ctx context.Context) (interface{}, error) {
		return c.Client.ListAllRunEvents(ctx, runID, ListEventsOptions{})
	})
	if err != nil {
		return nil, err
	}
	return v.([]api.Event), nil
}

// GetReplayStatus always refetches so a Poller reading through the cache
// sees fresh state while other readers share the latest result.
func (c *CachedClient) GetReplayStatus(ctx context.Context, sessionID string) (*api.ReplayStatus, error) {
	v, err := c.cache.Refetch(ctx, "replay:"+sessionID, func(ctx context.Context) (interface{}, error) {
		return c.Client.GetReplayStatus(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.ReplayStatus), nil
}

// Replay returns the last known status of a session, loading it if needed.
func (c *CachedClient) Replay(ctx context.Context, sessionID string) (*api.ReplayStatus, error) {
	v, err := c.cache.Get(ctx, "replay:"+sessionID, func(ctx context.Context) (interface{}, error) {
		return c.Client.GetReplayStatus(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*api.ReplayStatus), nil
}
