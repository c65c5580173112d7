package lookup

import (
	"context"
	"errors"
	"log"
	"sort"
	"time"
)

// Result is a fetched table plus where it came from.
type Result struct {
	Group    string
	Items    []Item
	Cached   bool
	Degraded bool
	Err      error
}

// Service serves lookup tables from a Source through a TTL cache. When the
// source fails, the configured static list for the group is served instead
// and the result is marked degraded.
type Service struct {
	source    Source
	cache     *Cache
	fallbacks map[string][]Item
	timeout   time.Duration
}

// ServiceOptions configures a Service.
type ServiceOptions struct {
	CacheTTL  time.Duration
	CacheSize int
	Timeout   time.Duration
	Fallbacks map[string][]Item
}

// NewService creates a service over source.
func NewService(source Source, opts ServiceOptions) *Service {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	fallbacks := make(map[string][]Item, len(opts.Fallbacks))
	for group, items := range opts.Fallbacks {
		fallbacks[group] = append([]Item(nil), items...)
	}
	return &Service{
		source:    source,
		cache:     NewCache(opts.CacheSize, opts.CacheTTL),
		fallbacks: fallbacks,
		timeout:   opts.Timeout,
	}
}

// Get returns the table for group, from cache when fresh.
func (s *Service) Get(ctx context.Context, group string) Result {
	if items, ok := s.cache.Get(group); ok {
		return Result{Group: group, Items: items, Cached: true}
	}
	return s.fetch(ctx, group)
}

// Refresh bypasses the cache for group.
func (s *Service) Refresh(ctx context.Context, group string) Result {
	s.cache.Invalidate(group)
	return s.fetch(ctx, group)
}

// Invalidate drops the cached table of group, or of every group when group
// is empty.
func (s *Service) Invalidate(group string) {
	s.cache.Invalidate(group)
}

func (s *Service) fetch(ctx context.Context, group string) Result {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	items, err := s.source.Fetch(ctx, group)
	if err == nil {
		s.cache.Set(group, items)
		return Result{Group: group, Items: items}
	}

	fallback, ok := s.Fallback(group)
	if !ok {
		return Result{Group: group, Err: err}
	}
	if !errors.Is(err, ErrGroupNotFound) {
		log.Printf("lookup: serving fallback for %s: %v", group, err)
	}
	return Result{Group: group, Items: fallback, Degraded: true, Err: err}
}

// Groups merges remote group codes with the groups that have fallbacks.
// A source error is returned alongside the fallback groups.
func (s *Service) Groups(ctx context.Context) ([]string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	remote, err := s.source.Groups(ctx)

	seen := make(map[string]bool)
	var groups []string
	for _, g := range remote {
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}
	for g := range s.fallbacks {
		if !seen[g] {
			seen[g] = true
			groups = append(groups, g)
		}
	}

	sort.Strings(groups)
	return groups, err
}

// Fallback returns the static list for group.
func (s *Service) Fallback(group string) ([]Item, bool) {
	items, ok := s.fallbacks[group]
	return items, ok
}

// Metrics exposes the cache metrics.
func (s *Service) Metrics() *CacheMetrics {
	return s.cache.Metrics()
}

// Filter returns the items matching query, preserving order.
func Filter(items []Item, query string) []Item {
	if query == "" {
		return items
	}
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if item.Matches(query) {
			out = append(out, item)
		}
	}
	return out
}
