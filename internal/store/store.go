// Package store is a small persisted key/value store. Reads are served from
// memory; writes go to memory at once and reach disk through a debounced
// write-through.
package store

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// DefaultWriteDelay is how long a write waits for newer writes before it is
// persisted.
const DefaultWriteDelay = 100 * time.Millisecond

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store is closed")

// Option configures a Store.
type Option func(*Store)

// WithHub shares change notifications and pending writes with other stores
// on the same hub.
func WithHub(h *Hub) Option {
	return func(s *Store) {
		s.hub = h
	}
}

// WithWriteDelay overrides DefaultWriteDelay.
func WithWriteDelay(d time.Duration) Option {
	return func(s *Store) {
		s.delay = d
	}
}

// Store is one instance of the key/value store backed by a YAML file.
type Store struct {
	id    uuid.UUID
	path  string
	hub   *Hub
	delay time.Duration

	mu        sync.RWMutex
	data      map[string]any
	listeners map[string]map[int]func(any)
	nextID    int
	closed    bool
	lastErr   error
}

// Open loads path, or starts empty when the file does not exist yet.
func Open(path string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve store path: %w", err)
	}

	s := &Store{
		id:        uuid.New(),
		path:      abs,
		delay:     DefaultWriteDelay,
		data:      make(map[string]any),
		listeners: make(map[string]map[int]func(any)),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub == nil {
		s.hub = NewHub()
	}

	raw, err := os.ReadFile(abs)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read store: %w", err)
	default:
		if err := yaml.Unmarshal(raw, &s.data); err != nil {
			return nil, fmt.Errorf("failed to parse store %s: %w", abs, err)
		}
		if s.data == nil {
			s.data = make(map[string]any)
		}
	}

	s.hub.register(s)
	return s, nil
}

// ID identifies this instance among stores sharing a hub.
func (s *Store) ID() uuid.UUID {
	return s.id
}

// Path is the absolute path of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for key, or def when the key is absent.
func (s *Store) Get(key string, def any) any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.data[key]; ok {
		return v
	}
	return def
}

// GetAs returns the value for key converted to T. Values loaded from disk are
// generic YAML nodes, so anything that is not already a T is re-decoded.
func GetAs[T any](s *Store, key string, def T) T {
	v := s.Get(key, nil)
	if v == nil {
		return def
	}
	if typed, ok := v.(T); ok {
		return typed
	}

	raw, err := yaml.Marshal(v)
	if err != nil {
		return def
	}
	var out T
	if err := yaml.Unmarshal(raw, &out); err != nil {
		log.Printf("Warning: store key %q does not decode as %T: %v", key, out, err)
		return def
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Set stores value under key, notifies other instances and schedules a write.
func (s *Store) Set(key string, value any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.data[key] = value
	s.mu.Unlock()

	s.hub.broadcast(s, key, value, false)
	s.scheduleWrite()
	return nil
}

// Delete removes key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if _, ok := s.data[key]; !ok {
		s.mu.Unlock()
		return nil
	}
	delete(s.data, key)
	s.mu.Unlock()

	s.hub.broadcast(s, key, nil, true)
	s.scheduleWrite()
	return nil
}

// Subscribe calls fn when another instance changes key. A deleted key is
// reported as nil. The returned func removes the subscription.
func (s *Store) Subscribe(key string, fn func(value any)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	if s.listeners[key] == nil {
		s.listeners[key] = make(map[int]func(any))
	}
	s.listeners[key][id] = fn

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners[key], id)
		if len(s.listeners[key]) == 0 {
			delete(s.listeners, key)
		}
	}
}

// Flush writes pending changes immediately.
func (s *Store) Flush() error {
	s.mu.RLock()
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return ErrClosed
	}

	s.hub.writes.Cancel(s.path)
	return s.persist()
}

// Close detaches the store. A pending write is dropped without being flushed
// unless other instances on the same file are still open.
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.listeners = make(map[string]map[int]func(any))
	s.mu.Unlock()

	if s.hub.unregister(s) {
		s.hub.writes.Cancel(s.path)
	}
}

// LastError returns the error of the most recent background write.
func (s *Store) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// receive applies a change made by another instance.
func (s *Store) receive(key string, value any, deleted bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if deleted {
		delete(s.data, key)
	} else {
		s.data[key] = value
	}
	fns := make([]func(any), 0, len(s.listeners[key]))
	for _, fn := range s.listeners[key] {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(value)
	}
}

func (s *Store) scheduleWrite() {
	s.hub.writes.Debounce(s.path, s.delay, func() {
		if err := s.persist(); err != nil {
			log.Printf("Warning: failed to persist store %s: %v", s.path, err)
		}
	})
}

// persist writes a snapshot through a temp file and rename.
func (s *Store) persist() error {
	s.mu.RLock()
	out, err := yaml.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return s.recordErr(fmt.Errorf("failed to marshal store: %w", err))
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return s.recordErr(fmt.Errorf("failed to create store directory: %w", err))
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return s.recordErr(fmt.Errorf("failed to create temp file: %w", err))
	}
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return s.recordErr(fmt.Errorf("failed to write store: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return s.recordErr(fmt.Errorf("failed to write store: %w", err))
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return s.recordErr(fmt.Errorf("failed to replace store: %w", err))
	}
	return s.recordErr(nil)
}

func (s *Store) recordErr(err error) error {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	return err
}
