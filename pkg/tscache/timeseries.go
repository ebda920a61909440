// Package tscache implements the sliding-window time series and its LRU
// cache.
package tscache

import "github.com/orneryd/mlgraph/pkg/mlgdao"

// TimeSeries is a deque of samples with a "now" cursor and a radius/
// direction-derived active window around it. Indices are used instead
// of raw iterators so push/pop on the backing slice never invalidate a
// held cursor; the window is re-clamped after every structural change.
type TimeSeries struct {
	samples    []float64
	current    int
	sliceBegin int
	sliceEnd   int
	radius     int
	direction  mlgdao.Direction
}

// NewTimeSeries builds an empty series.
func NewTimeSeries() *TimeSeries {
	return &TimeSeries{}
}

// NewTimeSeriesAt builds a series from samples with current positioned
// at currentIndex.
func NewTimeSeriesAt(samples []float64, currentIndex int) *TimeSeries {
	t := &TimeSeries{samples: append([]float64(nil), samples...), current: currentIndex}
	t.reclamp()
	return t
}

func (t *TimeSeries) SetRadius(r int) {
	t.radius = r
	t.reclamp()
}

func (t *TimeSeries) SetDirection(d mlgdao.Direction) {
	t.direction = d
	t.reclamp()
}

func (t *TimeSeries) PushBack(v float64) {
	t.samples = append(t.samples, v)
	t.reclamp()
}

func (t *TimeSeries) PushFront(v float64) {
	t.samples = append([]float64{v}, t.samples...)
	t.current++
	t.reclamp()
}

func (t *TimeSeries) PopBack() {
	if len(t.samples) == 0 {
		return
	}
	t.samples = t.samples[:len(t.samples)-1]
	t.reclamp()
}

func (t *TimeSeries) PopFront() {
	if len(t.samples) == 0 {
		return
	}
	t.samples = t.samples[1:]
	t.current--
	t.reclamp()
}

// Scroll moves current by delta, re-clamping to the deque extents.
func (t *TimeSeries) Scroll(delta int) {
	t.current += delta
	t.reclamp()
}

// Shrink drops every sample outside the current slice.
func (t *TimeSeries) Shrink() {
	if len(t.samples) == 0 {
		return
	}
	t.samples = append([]float64(nil), t.samples[t.sliceBegin:t.sliceEnd]...)
	t.current -= t.sliceBegin
	t.reclamp()
}

func (t *TimeSeries) Clear() {
	t.samples = nil
	t.current = 0
	t.sliceBegin = 0
	t.sliceEnd = 0
}

func (t *TimeSeries) reclamp() {
	n := len(t.samples)
	if n == 0 {
		t.current, t.sliceBegin, t.sliceEnd = 0, 0, 0
		return
	}
	if t.current < 0 {
		t.current = 0
	}
	if t.current >= n {
		t.current = n - 1
	}

	var begin, end int
	switch t.direction {
	case mlgdao.Past:
		begin, end = t.current-t.radius, t.current+1
	case mlgdao.Future:
		begin, end = t.current, t.current+t.radius+1
	default: // Both
		begin, end = t.current-t.radius, t.current+t.radius+1
	}
	if begin < 0 {
		begin = 0
	}
	if end > n {
		end = n
	}
	t.sliceBegin, t.sliceEnd = begin, end
}

func (t *TimeSeries) Current() int    { return t.current }
func (t *TimeSeries) SliceBegin() int { return t.sliceBegin }
func (t *TimeSeries) SliceEnd() int   { return t.sliceEnd }
func (t *TimeSeries) Len() int        { return len(t.samples) }

func (t *TimeSeries) At(i int) float64 { return t.samples[i] }

// Slice returns the active window [slice_begin, slice_end).
func (t *TimeSeries) Slice() []float64 {
	return t.samples[t.sliceBegin:t.sliceEnd]
}

// ValueAtOffset returns the sample at current+offset, or (0, false) if
// that index falls outside the deque.
func (t *TimeSeries) ValueAtOffset(offset int) (float64, bool) {
	idx := t.current + offset
	if idx < 0 || idx >= len(t.samples) {
		return 0, false
	}
	return t.samples[idx], true
}
