// Package slicer accumulates multi-channel sample buffers and hands them out
// as merged slices once a configured duration has elapsed since the slice
// was opened.
package slicer

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// SliceFunc receives one merged buffer per channel and the time the slice
// was open.
type SliceFunc[S any] func(channels [][]S, elapsed time.Duration)

type Options[S any] struct {
	// TimeSlice is the target slice duration. Zero or negative emits on
	// every push.
	TimeSlice time.Duration
	OnSlice   SliceFunc[S]
	Clock     clockwork.Clock
}

// Slicer buffers pushed segments per channel. Segments are retained by
// reference until the slice is emitted, so callers must not reuse them.
type Slicer[S any] struct {
	clock   clockwork.Clock
	onSlice SliceFunc[S]

	mu        sync.Mutex
	timeSlice time.Duration
	queues    [][][]S
	started   time.Time
	open      bool
}

func New[S any](opts Options[S]) *Slicer[S] {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Slicer[S]{
		clock:     clock,
		onSlice:   opts.OnSlice,
		timeSlice: opts.TimeSlice,
	}
}

// Push appends one segment per channel, index-aligned to channel number.
func (s *Slicer[S]) Push(channels [][]S) {
	if len(channels) == 0 {
		return
	}

	s.mu.Lock()
	now := s.clock.Now()
	if !s.open {
		s.open = true
		s.started = now
	}

	for len(s.queues) < len(channels) {
		s.queues = append(s.queues, nil)
	}
	for i, segment := range channels {
		s.queues[i] = append(s.queues[i], segment)
	}

	passThrough := s.timeSlice <= 0
	if !passThrough && now.Sub(s.started) < s.timeSlice {
		s.mu.Unlock()
		return
	}
	s.emitLocked(now)

	// Pass-through mode always forces a second emit. It finds the slice
	// closed unless another goroutine pushed in between.
	if passThrough {
		s.mu.Lock()
		s.emitLocked(s.clock.Now())
	}
}

// Flush emits whatever has been accumulated regardless of the slice
// duration.
func (s *Slicer[S]) Flush() {
	s.mu.Lock()
	s.emitLocked(s.clock.Now())
}

// Reset discards accumulated data without emitting it.
func (s *Slicer[S]) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Duration reports how long the current slice has been open.
func (s *Slicer[S]) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return 0
	}
	return s.clock.Since(s.started)
}

func (s *Slicer[S]) TimeSlice() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timeSlice
}

// SetTimeSlice changes the slice duration. It takes effect at the next
// push.
func (s *Slicer[S]) SetTimeSlice(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.timeSlice = d
}

// Channels reports how many channel queues exist.
func (s *Slicer[S]) Channels() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}

// emitLocked closes the open slice and releases the lock before calling
// OnSlice.
func (s *Slicer[S]) emitLocked(now time.Time) {
	if !s.open {
		s.mu.Unlock()
		return
	}

	empty := true
	for _, q := range s.queues {
		if len(q) > 0 {
			empty = false
			break
		}
	}
	if empty {
		s.clearLocked()
		s.mu.Unlock()
		return
	}

	merged := make([][]S, len(s.queues))
	for i, q := range s.queues {
		merged[i] = concat(q)
	}
	elapsed := now.Sub(s.started)
	s.clearLocked()
	onSlice := s.onSlice
	s.mu.Unlock()

	if onSlice != nil {
		onSlice(merged, elapsed)
	}
}

func (s *Slicer[S]) clearLocked() {
	for i := range s.queues {
		s.queues[i] = nil
	}
	s.open = false
	s.started = time.Time{}
}

func concat[S any](segments [][]S) []S {
	n := 0
	for _, seg := range segments {
		n += len(seg)
	}
	out := make([]S, 0, n)
	for _, seg := range segments {
		out = append(out, seg...)
	}
	return out
}
