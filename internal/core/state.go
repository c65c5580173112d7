package core

import (
	"sync"

	"github.com/HamStudy/gridwatch/internal/lookup"
)

// State holds the application state
type State struct {
	mu sync.RWMutex

	// Current view state
	CurrentGroup     string
	CurrentNamespace string
	CurrentContext   string
	SelectedIndex    int
	ScrollOffset     float64

	// Lookup data
	Groups   []string
	Items    []lookup.Item
	Filtered []lookup.Item
	Degraded bool
	LastErr  error

	// UI state
	ShowHelp     bool
	FilterString string

	config *Config
}

// NewState creates a new application state
func NewState(config *Config) *State {
	return &State{
		CurrentGroup:     config.InitialGroup,
		CurrentNamespace: config.CurrentNamespace,
		CurrentContext:   config.CurrentContext,
		config:           config,
	}
}

// SetGroups updates the known group codes
func (s *State) SetGroups(groups []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Groups = groups
}

// SetGroup switches the displayed group and resets the view position
func (s *State) SetGroup(group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CurrentGroup == group {
		return
	}
	s.CurrentGroup = group
	s.SelectedIndex = 0
	s.ScrollOffset = 0
	s.Items = nil
	s.Filtered = nil
}

// UpdateItems replaces the items of the current group and reapplies the filter
func (s *State) UpdateItems(result lookup.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if result.Group != s.CurrentGroup {
		return
	}
	s.Items = result.Items
	s.Degraded = result.Degraded
	s.LastErr = result.Err
	s.Filtered = lookup.Filter(s.Items, s.FilterString)
}

// SetFilter applies a case-insensitive filter to the current items
func (s *State) SetFilter(filter string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.FilterString = filter
	s.Filtered = lookup.Filter(s.Items, filter)
}

// GetCurrentItemCount returns the number of rows after filtering
func (s *State) GetCurrentItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.Filtered)
}

// VisibleItems returns the filtered rows
func (s *State) VisibleItems() []lookup.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Filtered
}

// Config returns the runtime configuration the state was built from
func (s *State) Config() *Config {
	return s.config
}
