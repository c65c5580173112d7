package performance

import "sync"

// PositionedItem is a row the host must paint and where to put it inside the
// virtual canvas.
type PositionedItem struct {
	Index  int
	Offset float64
}

// Window is what the host needs to paint one frame.
type Window struct {
	Range       RenderRange
	Items       []PositionedItem
	TotalHeight float64
}

// Publish projects a render range into paintable rows. It is a pure function
// of its inputs.
func Publish(itemCount int, vp Viewport, r RenderRange) Window {
	w := Window{Range: r}
	if itemCount > 0 && vp.ItemHeight > 0 {
		w.TotalHeight = float64(itemCount) * vp.ItemHeight
	}
	if r.IsEmpty() {
		return w
	}

	w.Items = make([]PositionedItem, 0, r.Len())
	for i := r.RenderStart; i <= r.RenderEnd; i++ {
		w.Items = append(w.Items, PositionedItem{Index: i, Offset: float64(i) * vp.ItemHeight})
	}
	return w
}

// ViewportStats is a snapshot of the manager's state.
type ViewportStats struct {
	TotalItems     int
	ScrollOffset   float64
	Range          RenderRange
	ViewportHeight float64
	ItemHeight     float64
	Overscan       int
	CacheSize      int
}

// ViewportManager owns the scroll offset of one virtualized list and keeps its
// render range current.
type ViewportManager struct {
	viewport   Viewport
	totalItems int

	// Raw offset as reported by the scroll surface. Clamping happens in Compute.
	scrollOffset float64
	current      RenderRange
	err          error

	// Painted rows keyed by index
	renderCache map[int]string
	cacheSize   int
	cacheMutex  sync.RWMutex

	onRangeChange func(Window)
}

// NewViewportManager creates a manager with a zero scroll offset.
func NewViewportManager(vp Viewport) *ViewportManager {
	vm := &ViewportManager{
		viewport:    vp,
		current:     EmptyRange,
		renderCache: make(map[int]string),
		cacheSize:   1000,
	}
	vm.recompute()
	return vm
}

// SetTotalItems updates the dataset size.
func (vm *ViewportManager) SetTotalItems(count int) {
	if count < 0 {
		count = 0
	}
	if count != vm.totalItems {
		vm.ClearCache()
	}
	vm.totalItems = count
	vm.recompute()
}

// TotalItems returns the dataset size last supplied.
func (vm *ViewportManager) TotalItems() int {
	return vm.totalItems
}

// SetViewport replaces the viewport, e.g. after a resize. The stored offset is
// left untouched.
func (vm *ViewportManager) SetViewport(vp Viewport) {
	vm.viewport = vp
	vm.recompute()
}

// Viewport returns the current viewport.
func (vm *ViewportManager) Viewport() Viewport {
	return vm.viewport
}

// OnScroll records the latest offset from the scroll surface. Last write wins.
func (vm *ViewportManager) OnScroll(rawOffset float64) {
	vm.scrollOffset = rawOffset
	vm.recompute()
}

// CurrentOffset returns the raw offset last reported.
func (vm *ViewportManager) CurrentOffset() float64 {
	return vm.scrollOffset
}

// EffectiveOffset returns the offset actually used for the current range.
func (vm *ViewportManager) EffectiveOffset() float64 {
	return vm.viewport.ClampOffset(vm.totalItems, vm.scrollOffset)
}

// ScrollToIndex puts the top edge of index at the top of the viewport.
func (vm *ViewportManager) ScrollToIndex(index int) {
	vm.OnScroll(float64(index) * vm.viewport.ItemHeight)
}

// ScrollBy scrolls by delta rows from the effective offset, so that repeated
// scrolling past an edge does not accumulate.
func (vm *ViewportManager) ScrollBy(delta int) {
	vm.OnScroll(vm.EffectiveOffset() + float64(delta)*vm.viewport.ItemHeight)
}

// EnsureVisible scrolls the minimum amount needed to show index fully.
func (vm *ViewportManager) EnsureVisible(index int) {
	if vm.totalItems == 0 || index < 0 || index >= vm.totalItems {
		return
	}
	ih := vm.viewport.ItemHeight
	top := float64(index) * ih
	offset := vm.EffectiveOffset()
	switch {
	case top < offset:
		vm.OnScroll(top)
	case top+ih > offset+vm.viewport.Height:
		vm.OnScroll(top + ih - vm.viewport.Height)
	}
}

// Range returns the current render range.
func (vm *ViewportManager) Range() RenderRange {
	return vm.current
}

// Err returns the dimension error from the last recompute, if any.
func (vm *ViewportManager) Err() error {
	return vm.err
}

// Window publishes the current range for the host.
func (vm *ViewportManager) Window() Window {
	return Publish(vm.totalItems, vm.viewport, vm.current)
}

// recompute runs the window calculation and notifies on change. A dimension
// error empties the range instead of interrupting rendering.
func (vm *ViewportManager) recompute() {
	r, err := Compute(vm.totalItems, vm.viewport, vm.scrollOffset)
	vm.err = err
	if r == vm.current {
		return
	}
	vm.current = r
	if vm.onRangeChange != nil {
		vm.onRangeChange(vm.Window())
	}
}

// CacheRenderedItem caches a rendered item
func (vm *ViewportManager) CacheRenderedItem(index int, content string) {
	vm.cacheMutex.Lock()
	defer vm.cacheMutex.Unlock()

	if _, ok := vm.renderCache[index]; !ok && len(vm.renderCache) >= vm.cacheSize {
		vm.evictLocked()
	}
	vm.renderCache[index] = content
}

// evictLocked drops one entry, preferring rows outside the render range.
func (vm *ViewportManager) evictLocked() {
	victim, found := 0, false
	for i := range vm.renderCache {
		if !vm.current.Contains(i) {
			delete(vm.renderCache, i)
			return
		}
		if !found {
			victim, found = i, true
		}
	}
	if found {
		delete(vm.renderCache, victim)
	}
}

// GetCachedItem retrieves a cached rendered item
func (vm *ViewportManager) GetCachedItem(index int) (string, bool) {
	vm.cacheMutex.RLock()
	defer vm.cacheMutex.RUnlock()

	content, exists := vm.renderCache[index]
	return content, exists
}

// ClearCache clears the render cache
func (vm *ViewportManager) ClearCache() {
	vm.cacheMutex.Lock()
	defer vm.cacheMutex.Unlock()

	vm.renderCache = make(map[int]string)
}

// SetCacheSize bounds the number of cached rows.
func (vm *ViewportManager) SetCacheSize(size int) {
	vm.cacheMutex.Lock()
	defer vm.cacheMutex.Unlock()

	if size < 1 {
		size = 1
	}
	vm.cacheSize = size
	for len(vm.renderCache) > vm.cacheSize {
		vm.evictLocked()
	}
}

// SetOnRangeChange sets the callback fired whenever the render range changes.
func (vm *ViewportManager) SetOnRangeChange(callback func(Window)) {
	vm.onRangeChange = callback
}

// Stats returns a snapshot of the manager.
func (vm *ViewportManager) Stats() ViewportStats {
	vm.cacheMutex.RLock()
	defer vm.cacheMutex.RUnlock()

	return ViewportStats{
		TotalItems:     vm.totalItems,
		ScrollOffset:   vm.scrollOffset,
		Range:          vm.current,
		ViewportHeight: vm.viewport.Height,
		ItemHeight:     vm.viewport.ItemHeight,
		Overscan:       vm.viewport.Overscan,
		CacheSize:      len(vm.renderCache),
	}
}
