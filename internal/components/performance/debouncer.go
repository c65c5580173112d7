package performance

import (
	"sync"
	"time"
)

// Debouncer runs a callback once calls to Trigger have stopped for delay.
type Debouncer struct {
	delay    time.Duration
	timer    *time.Timer
	callback func()
	mutex    sync.Mutex
	pending  bool
	gen      uint64
}

// NewDebouncer creates a new debouncer with the specified delay
func NewDebouncer(delay time.Duration, callback func()) *Debouncer {
	return &Debouncer{
		delay:    delay,
		callback: callback,
	}
}

// Trigger (re)starts the timer. Only the last trigger fires.
func (d *Debouncer) Trigger() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = true
	d.gen++
	gen := d.gen

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, func() {
		d.fire(gen)
	})
}

func (d *Debouncer) fire(gen uint64) {
	d.mutex.Lock()
	if !d.pending || gen != d.gen {
		d.mutex.Unlock()
		return
	}
	d.pending = false
	d.timer = nil
	callback := d.callback
	d.mutex.Unlock()

	if callback != nil {
		callback()
	}
}

// Flush runs a pending callback immediately on the calling goroutine.
func (d *Debouncer) Flush() bool {
	d.mutex.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if !d.pending {
		d.mutex.Unlock()
		return false
	}
	d.pending = false
	d.gen++
	callback := d.callback
	d.mutex.Unlock()

	if callback != nil {
		callback()
	}
	return true
}

// Cancel drops any pending call without running it.
func (d *Debouncer) Cancel() {
	d.mutex.Lock()
	defer d.mutex.Unlock()

	d.pending = false
	d.gen++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// IsPending returns whether a call is pending
func (d *Debouncer) IsPending() bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.pending
}

// SetDelay updates the debounce delay
func (d *Debouncer) SetDelay(delay time.Duration) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.delay = delay
}

// SetCallback replaces the callback used by the next firing.
func (d *Debouncer) SetCallback(callback func()) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.callback = callback
}

// UpdateDebouncer handles debouncing of update operations
type UpdateDebouncer struct {
	debouncers map[string]*Debouncer
	mutex      sync.RWMutex
}

// NewUpdateDebouncer creates a new update debouncer
func NewUpdateDebouncer() *UpdateDebouncer {
	return &UpdateDebouncer{
		debouncers: make(map[string]*Debouncer),
	}
}

// Debounce debounces a function call by key
func (ud *UpdateDebouncer) Debounce(key string, delay time.Duration, callback func()) {
	ud.mutex.Lock()
	debouncer, exists := ud.debouncers[key]
	if !exists {
		debouncer = NewDebouncer(delay, callback)
		ud.debouncers[key] = debouncer
	}
	ud.mutex.Unlock()

	if exists {
		debouncer.SetCallback(callback)
		debouncer.SetDelay(delay)
	}
	debouncer.Trigger()
}

// Cancel cancels a debounced call by key
func (ud *UpdateDebouncer) Cancel(key string) {
	ud.mutex.RLock()
	debouncer, exists := ud.debouncers[key]
	ud.mutex.RUnlock()

	if exists {
		debouncer.Cancel()
	}
}

// GetPendingCount returns the number of pending debounced calls
func (ud *UpdateDebouncer) GetPendingCount() int {
	ud.mutex.RLock()
	defer ud.mutex.RUnlock()

	count := 0
	for _, debouncer := range ud.debouncers {
		if debouncer.IsPending() {
			count++
		}
	}
	return count
}

// Value holds the trailing-edge debounced copy of a fast-changing input.
// Current returns the latest input that stayed unchanged for the delay.
type Value[T comparable] struct {
	mutex     sync.Mutex
	raw       T
	current   T
	debouncer *Debouncer
	onSettle  func(T)
}

// NewValue creates a debounced value starting at initial.
func NewValue[T comparable](initial T, delay time.Duration) *Value[T] {
	v := &Value[T]{raw: initial, current: initial}
	v.debouncer = NewDebouncer(delay, v.settle)
	return v
}

// OnSettle registers a callback run, on the timer goroutine, each time a new
// value settles.
func (v *Value[T]) OnSettle(fn func(T)) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.onSettle = fn
}

// Set records a new raw input and restarts the delay.
func (v *Value[T]) Set(value T) {
	v.mutex.Lock()
	v.raw = value
	v.mutex.Unlock()
	v.debouncer.Trigger()
}

// Raw returns the latest input, settled or not.
func (v *Value[T]) Raw() T {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.raw
}

// Current returns the last settled value.
func (v *Value[T]) Current() T {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	return v.current
}

// Pending reports whether a newer input is waiting to settle.
func (v *Value[T]) Pending() bool {
	return v.debouncer.IsPending()
}

// Flush settles a pending input now. It reports whether one was pending.
func (v *Value[T]) Flush() bool {
	return v.debouncer.Flush()
}

// Stop cancels a pending emission without firing it.
func (v *Value[T]) Stop() {
	v.debouncer.Cancel()
}

func (v *Value[T]) settle() {
	v.mutex.Lock()
	changed := v.current != v.raw
	v.current = v.raw
	value, fn := v.current, v.onSettle
	v.mutex.Unlock()

	if changed && fn != nil {
		fn(value)
	}
}
