package performance

import (
	"errors"
	"fmt"
	"math"
)

// DefaultOverscan is the number of extra rows rendered on each side of the
// visible window when no overscan is configured.
const DefaultOverscan = 5

// ErrInvalidDimension is returned when a viewport or row height is not a
// positive, finite number.
var ErrInvalidDimension = errors.New("invalid dimension")

// DimensionError reports which dimension was rejected.
type DimensionError struct {
	Field string
	Value float64
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: %s must be > 0, got %v", ErrInvalidDimension, e.Field, e.Value)
}

// Is makes errors.Is(err, ErrInvalidDimension) match.
func (e *DimensionError) Is(target error) bool {
	return target == ErrInvalidDimension
}

// Viewport describes the visible surface. Heights share one unit (pixels,
// terminal lines); rows are uniform.
type Viewport struct {
	Height     float64
	ItemHeight float64
	Overscan   int
}

// NewViewport returns a viewport with the default overscan.
func NewViewport(height, itemHeight float64) Viewport {
	return Viewport{Height: height, ItemHeight: itemHeight, Overscan: DefaultOverscan}
}

// Validate checks that both heights are usable as divisors.
func (v Viewport) Validate() error {
	if !positive(v.Height) {
		return &DimensionError{Field: "height", Value: v.Height}
	}
	if !positive(v.ItemHeight) {
		return &DimensionError{Field: "itemHeight", Value: v.ItemHeight}
	}
	return nil
}

// MaxOffset is the largest scroll offset that still fills the viewport.
func (v Viewport) MaxOffset(itemCount int) float64 {
	if itemCount <= 0 {
		return 0
	}
	return math.Max(0, float64(itemCount)*v.ItemHeight-v.Height)
}

// ClampOffset pins a raw scroll offset into [0, MaxOffset].
func (v Viewport) ClampOffset(itemCount int, offset float64) float64 {
	if math.IsNaN(offset) || offset < 0 {
		return 0
	}
	if limit := v.MaxOffset(itemCount); offset > limit {
		return limit
	}
	return offset
}

// RenderRange is the result of a window computation. All indices are -1 for
// an empty dataset.
type RenderRange struct {
	VisibleStart int
	VisibleEnd   int
	RenderStart  int
	RenderEnd    int
}

// EmptyRange is returned for datasets with no rows.
var EmptyRange = RenderRange{VisibleStart: -1, VisibleEnd: -1, RenderStart: -1, RenderEnd: -1}

// IsEmpty reports whether the range materializes no rows.
func (r RenderRange) IsEmpty() bool {
	return r.RenderEnd < 0
}

// Len is the number of rows to materialize.
func (r RenderRange) Len() int {
	if r.IsEmpty() {
		return 0
	}
	return r.RenderEnd - r.RenderStart + 1
}

// Contains reports whether index must be materialized.
func (r RenderRange) Contains(index int) bool {
	return !r.IsEmpty() && index >= r.RenderStart && index <= r.RenderEnd
}

// IsVisible reports whether index is on screen, as opposed to overscan.
func (r RenderRange) IsVisible(index int) bool {
	return !r.IsEmpty() && index >= r.VisibleStart && index <= r.VisibleEnd
}

// Compute works out which rows are visible and which must be rendered for the
// given scroll offset. The offset is clamped, never rejected.
func Compute(itemCount int, vp Viewport, scrollOffset float64) (RenderRange, error) {
	if err := vp.Validate(); err != nil {
		return EmptyRange, err
	}
	if itemCount <= 0 {
		return EmptyRange, nil
	}

	overscan := vp.Overscan
	if overscan < 0 {
		overscan = 0
	}
	offset := vp.ClampOffset(itemCount, scrollOffset)
	last := itemCount - 1

	visibleStart := floorIndex(offset/vp.ItemHeight, last)
	// Last row whose top edge is above the bottom of the viewport.
	visibleEnd := ceilIndex((offset+vp.Height)/vp.ItemHeight, last+1) - 1
	if visibleEnd > last {
		visibleEnd = last
	}
	// offset+Height rounds back to offset when Height is below the float step.
	if visibleEnd < visibleStart {
		visibleEnd = visibleStart
	}

	renderStart := 0
	if overscan < visibleStart {
		renderStart = visibleStart - overscan
	}
	renderEnd := last
	if overscan < last-visibleEnd {
		renderEnd = visibleEnd + overscan
	}

	return RenderRange{
		VisibleStart: visibleStart,
		VisibleEnd:   visibleEnd,
		RenderStart:  renderStart,
		RenderEnd:    renderEnd,
	}, nil
}

// floorIndex floors v and caps it at limit. The comparison happens in float64
// so counts beyond 32 bits stay exact.
func floorIndex(v float64, limit int) int {
	f := math.Floor(v)
	if f >= float64(limit) {
		return limit
	}
	return int(f)
}

func ceilIndex(v float64, limit int) int {
	c := math.Ceil(v)
	if c >= float64(limit) {
		return limit
	}
	return int(c)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}
