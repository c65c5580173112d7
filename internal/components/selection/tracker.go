package selection

import (
	"sync"
)

// Identity uniquely identifies a lookup row
type Identity struct {
	Group string
	Code  string
}

// Tracker keeps the selected row pinned to the same lookup code while the
// visible rows are filtered, refreshed or reordered.
type Tracker struct {
	selected *Identity
	rows     []Identity
	index    map[Identity]int
	row      int
	mu       sync.RWMutex
}

// New creates a new selection tracker
func New() *Tracker {
	return &Tracker{index: make(map[Identity]int)}
}

// SetRows replaces the row order.
func (t *Tracker) SetRows(rows []Identity) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rows = append(t.rows[:0:0], rows...)
	t.index = make(map[Identity]int, len(rows))
	for i, id := range t.rows {
		if _, dup := t.index[id]; !dup {
			t.index[id] = i
		}
	}
}

// UpdateSelection selects row and remembers its identity
func (t *Tracker) UpdateSelection(row int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.selectLocked(row)
}

func (t *Tracker) selectLocked(row int) {
	t.row = row
	if row >= 0 && row < len(t.rows) {
		id := t.rows[row]
		t.selected = &id
		return
	}
	t.selected = nil
}

// Selected returns a copy of the selected identity
func (t *Tracker) Selected() (Identity, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.selected == nil {
		return Identity{}, false
	}
	return *t.selected, true
}

// Restore finds the previously selected identity in the current rows. When
// it is gone the previous row index is kept if still in range, otherwise the
// last row is selected.
func (t *Tracker) Restore() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	total := len(t.rows)
	if total == 0 {
		t.row = 0
		return 0
	}

	if t.selected != nil {
		if i, ok := t.index[*t.selected]; ok {
			t.row = i
			return i
		}
	}

	row := t.row
	if row < 0 {
		row = 0
	}
	if row >= total {
		row = total - 1
	}
	t.selectLocked(row)
	return row
}

// Clear clears all selection data
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.selected = nil
	t.rows = nil
	t.index = make(map[Identity]int)
	t.row = 0
}

// Len returns the number of tracked rows
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}
