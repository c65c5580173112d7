package performance

import (
	"errors"
	"testing"
)

func TestViewportManagerCreation(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 10, ItemHeight: 1, Overscan: 2})

	if vm.CurrentOffset() != 0 {
		t.Errorf("Expected initial offset 0, got %v", vm.CurrentOffset())
	}

	if !vm.Range().IsEmpty() {
		t.Errorf("Expected empty range before items are set, got %+v", vm.Range())
	}

	if vm.renderCache == nil {
		t.Error("Expected render cache to be initialized")
	}
}

func TestViewportScrolling(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 1})
	vm.SetTotalItems(20)

	r := vm.Range()
	start, end := r.VisibleStart, r.VisibleEnd
	if start != 0 || end != 4 {
		t.Errorf("Expected initial visible range [0, 4], got [%d, %d]", start, end)
	}

	vm.ScrollToIndex(10)
	r = vm.Range()
	start, end = r.VisibleStart, r.VisibleEnd
	if start != 10 || end != 14 {
		t.Errorf("Expected visible range [10, 14] after scroll, got [%d, %d]", start, end)
	}

	vm.ScrollBy(3)
	r = vm.Range()
	start, end = r.VisibleStart, r.VisibleEnd
	if start != 13 || end != 17 {
		t.Errorf("Expected visible range [13, 17] after scroll by 3, got [%d, %d]", start, end)
	}

	// Past the end the last page stays filled
	vm.ScrollToIndex(100)
	r = vm.Range()
	start, end = r.VisibleStart, r.VisibleEnd
	if start != 15 || end != 19 {
		t.Errorf("Expected visible range [15, 19] after scroll beyond bounds, got [%d, %d]", start, end)
	}

	vm.ScrollToIndex(-5)
	r = vm.Range()
	start, end = r.VisibleStart, r.VisibleEnd
	if start != 0 || end != 4 {
		t.Errorf("Expected visible range [0, 4] after scroll to negative, got [%d, %d]", start, end)
	}
}

func TestViewportStoresRawOffset(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 400, ItemHeight: 40, Overscan: 5})
	vm.SetTotalItems(1000)

	vm.OnScroll(39999)
	if vm.CurrentOffset() != 39999 {
		t.Errorf("Expected raw offset 39999 to be kept, got %v", vm.CurrentOffset())
	}
	if vm.EffectiveOffset() != 39600 {
		t.Errorf("Expected effective offset 39600, got %v", vm.EffectiveOffset())
	}

	r := vm.Range()
	if r.VisibleStart != 990 || r.VisibleEnd != 999 || r.RenderEnd != 999 {
		t.Errorf("Unexpected range at end of list: %+v", r)
	}

	// Scrolling back from past the end moves from the clamped position
	vm.ScrollBy(-1)
	if vm.CurrentOffset() != 39560 {
		t.Errorf("Expected offset 39560 after scrolling up one row, got %v", vm.CurrentOffset())
	}
}

func TestViewportRenderRange(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 2})
	vm.SetTotalItems(20)

	r := vm.Range()
	start, end := r.RenderStart, r.RenderEnd
	if start != 0 || end != 6 {
		t.Errorf("Expected initial render range [0, 6], got [%d, %d]", start, end)
	}

	vm.ScrollToIndex(10)
	r = vm.Range()
	start, end = r.RenderStart, r.RenderEnd
	if start != 8 || end != 16 {
		t.Errorf("Expected render range [8, 16] after scroll, got [%d, %d]", start, end)
	}

	vm.ScrollToIndex(15)
	r = vm.Range()
	start, end = r.RenderStart, r.RenderEnd
	if start != 13 || end != 19 {
		t.Errorf("Expected render range [13, 19] at end, got [%d, %d]", start, end)
	}
}

func TestViewportItemVisibility(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 1})
	vm.SetTotalItems(20)

	if !vm.Range().IsVisible(0) {
		t.Error("Expected item 0 to be visible initially")
	}
	if !vm.Range().IsVisible(4) {
		t.Error("Expected item 4 to be visible initially")
	}
	if vm.Range().IsVisible(5) {
		t.Error("Expected item 5 to not be visible initially")
	}

	if !vm.Range().Contains(5) {
		t.Error("Expected item 5 to be rendered (in overscan)")
	}
	if vm.Range().Contains(7) {
		t.Error("Expected item 7 to not be rendered initially")
	}
}

func TestViewportResizeKeepsOffset(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 0})
	vm.SetTotalItems(20)
	vm.OnScroll(15)

	vm.SetViewport(Viewport{Height: 10, ItemHeight: 1, Overscan: 0})
	if vm.CurrentOffset() != 15 {
		t.Errorf("Expected stored offset to survive resize, got %v", vm.CurrentOffset())
	}

	r := vm.Range()
	start, end := r.VisibleStart, r.VisibleEnd
	if start != 10 || end != 19 {
		t.Errorf("Expected visible range [10, 19] after grow, got [%d, %d]", start, end)
	}

	vm.SetViewport(Viewport{Height: 5, ItemHeight: 1, Overscan: 0})
	r = vm.Range()
	start, end = r.VisibleStart, r.VisibleEnd
	if start != 15 || end != 19 {
		t.Errorf("Expected visible range [15, 19] after shrink, got [%d, %d]", start, end)
	}
}

func TestViewportDatasetShrink(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 0})
	vm.SetTotalItems(100)
	vm.ScrollToIndex(80)

	vm.SetTotalItems(10)
	r := vm.Range()
	start, end := r.VisibleStart, r.VisibleEnd
	if start != 5 || end != 9 {
		t.Errorf("Expected visible range [5, 9] after shrink, got [%d, %d]", start, end)
	}

	vm.SetTotalItems(0)
	if !vm.Range().IsEmpty() {
		t.Errorf("Expected empty range for empty dataset, got %+v", vm.Range())
	}
}

func TestViewportInvalidDimension(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 0})
	vm.SetTotalItems(10)

	if !errors.Is(vm.Err(), ErrInvalidDimension) {
		t.Errorf("Expected ErrInvalidDimension, got %v", vm.Err())
	}
	if !vm.Range().IsEmpty() {
		t.Errorf("Expected empty range with invalid dimensions, got %+v", vm.Range())
	}

	vm.SetViewport(Viewport{Height: 5, ItemHeight: 1})
	if vm.Err() != nil {
		t.Errorf("Expected error to clear after fixing dimensions, got %v", vm.Err())
	}
}

func TestViewportEnsureVisible(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 0})
	vm.SetTotalItems(50)

	vm.EnsureVisible(3)
	if vm.CurrentOffset() != 0 {
		t.Errorf("Expected no scroll for visible item, got offset %v", vm.CurrentOffset())
	}

	vm.EnsureVisible(9)
	if vm.CurrentOffset() != 5 {
		t.Errorf("Expected offset 5 to reveal item 9, got %v", vm.CurrentOffset())
	}

	vm.EnsureVisible(2)
	if vm.CurrentOffset() != 2 {
		t.Errorf("Expected offset 2 to reveal item 2, got %v", vm.CurrentOffset())
	}
}

func TestViewportCache(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 1})

	vm.CacheRenderedItem(0, "rendered content 0")
	vm.CacheRenderedItem(1, "rendered content 1")

	content, exists := vm.GetCachedItem(0)
	if !exists || content != "rendered content 0" {
		t.Errorf("Expected cached content 'rendered content 0', got '%s' (exists: %v)", content, exists)
	}

	_, exists = vm.GetCachedItem(99)
	if exists {
		t.Error("Expected non-existent item to not be cached")
	}

	vm.ClearCache()
	_, exists = vm.GetCachedItem(0)
	if exists {
		t.Error("Expected cache to be cleared")
	}
}

func TestViewportCacheEviction(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 2, ItemHeight: 1, Overscan: 0})
	vm.SetTotalItems(100)
	vm.SetCacheSize(3)

	vm.CacheRenderedItem(0, "content 0")
	vm.CacheRenderedItem(1, "content 1")
	vm.CacheRenderedItem(50, "content 50")
	vm.CacheRenderedItem(2, "content 2")

	if len(vm.renderCache) > 3 {
		t.Errorf("Expected cache size <= 3, got %d", len(vm.renderCache))
	}
	if _, ok := vm.GetCachedItem(0); !ok {
		t.Error("Expected rendered row 0 to survive eviction")
	}
	if _, ok := vm.GetCachedItem(50); ok {
		t.Error("Expected off-screen row 50 to be evicted first")
	}
}

func TestViewportRangeChangeCallback(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 0})

	var windows []Window
	vm.SetOnRangeChange(func(w Window) {
		windows = append(windows, w)
	})

	vm.SetTotalItems(20)
	vm.OnScroll(0) // same rows
	vm.OnScroll(3)

	if len(windows) != 2 {
		t.Fatalf("Expected 2 range changes, got %d", len(windows))
	}
	last := windows[1]
	if last.Range.VisibleStart != 3 || len(last.Items) != 5 || last.TotalHeight != 20 {
		t.Errorf("Unexpected published window: %+v", last)
	}
	if last.Items[0].Offset != 3 {
		t.Errorf("Expected first item at offset 3, got %v", last.Items[0].Offset)
	}
}

func TestViewportStats(t *testing.T) {
	vm := NewViewportManager(Viewport{Height: 5, ItemHeight: 1, Overscan: 2})
	vm.SetTotalItems(100)
	vm.ScrollToIndex(20)

	stats := vm.Stats()

	if stats.TotalItems != 100 {
		t.Errorf("Expected total items 100, got %v", stats.TotalItems)
	}
	if stats.Range.VisibleStart != 20 || stats.Range.VisibleEnd != 24 {
		t.Errorf("Expected visible range [20, 24], got %+v", stats.Range)
	}
	if stats.ViewportHeight != 5 || stats.Overscan != 2 {
		t.Errorf("Unexpected viewport in stats: %+v", stats)
	}
}
