package slicer

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type emitted struct {
	channels [][]float32
	elapsed  time.Duration
}

type sink struct {
	slices []emitted
}

func (s *sink) onSlice(channels [][]float32, elapsed time.Duration) {
	s.slices = append(s.slices, emitted{channels: channels, elapsed: elapsed})
}

func newTestSlicer(timeSlice time.Duration) (*Slicer[float32], *clockwork.FakeClock, *sink) {
	fc := clockwork.NewFakeClock()
	out := &sink{}
	s := New(Options[float32]{TimeSlice: timeSlice, OnSlice: out.onSlice, Clock: fc})
	return s, fc, out
}

func samples(start, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(start + i)
	}
	return out
}

func TestSlicer_BelowThreshold(t *testing.T) {
	s, fc, out := newTestSlicer(100 * time.Millisecond)

	for i := 0; i < 9; i++ {
		s.Push([][]float32{samples(i*10, 10)})
		fc.Advance(10 * time.Millisecond)
	}

	assert.Empty(t, out.slices)
	assert.Equal(t, 90*time.Millisecond, s.Duration())
}

func TestSlicer_ThresholdCrossing(t *testing.T) {
	s, fc, out := newTestSlicer(100 * time.Millisecond)

	s.Push([][]float32{samples(0, 4), samples(100, 4)})
	fc.Advance(60 * time.Millisecond)
	s.Push([][]float32{samples(4, 4), samples(104, 4)})
	require.Empty(t, out.slices)

	fc.Advance(40 * time.Millisecond)
	s.Push([][]float32{samples(8, 4), samples(108, 4)})

	require.Len(t, out.slices, 1)
	want := [][]float32{samples(0, 12), samples(100, 12)}
	if diff := cmp.Diff(want, out.slices[0].channels); diff != "" {
		t.Errorf("merged channels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 100*time.Millisecond, out.slices[0].elapsed)
	assert.Zero(t, s.Duration())

	s.Flush()
	assert.Len(t, out.slices, 1)
}

func TestSlicer_FlushRoundTrip(t *testing.T) {
	s, fc, out := newTestSlicer(time.Second)

	a, b, c := []float32{1, 2, 3}, []float32{4}, []float32{5, 6}
	s.Push([][]float32{a})
	s.Push([][]float32{b})
	s.Push([][]float32{c})
	fc.Advance(20 * time.Millisecond)
	s.Flush()

	require.Len(t, out.slices, 1)
	if diff := cmp.Diff([][]float32{{1, 2, 3, 4, 5, 6}}, out.slices[0].channels); diff != "" {
		t.Errorf("merged channels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 20*time.Millisecond, out.slices[0].elapsed)
}

func TestSlicer_Example(t *testing.T) {
	s, fc, out := newTestSlicer(100 * time.Millisecond)

	s.Push([][]float32{samples(0, 10)})
	fc.Advance(50 * time.Millisecond)
	s.Push([][]float32{samples(10, 10)})
	fc.Advance(10 * time.Millisecond)
	s.Flush()

	require.Len(t, out.slices, 1)
	require.Len(t, out.slices[0].channels, 1)
	assert.Equal(t, samples(0, 20), out.slices[0].channels[0])
	assert.Equal(t, 60*time.Millisecond, out.slices[0].elapsed)
}

func TestSlicer_PassThrough(t *testing.T) {
	tests := []struct {
		name      string
		timeSlice time.Duration
	}{
		{name: "zero", timeSlice: 0},
		{name: "negative", timeSlice: -time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _, out := newTestSlicer(tt.timeSlice)

			for i := 0; i < 5; i++ {
				s.Push([][]float32{samples(i, 2)})
				require.Len(t, out.slices, i+1)
				assert.Equal(t, samples(i, 2), out.slices[i].channels[0])
			}

			s.Push(nil)
			s.Push([][]float32{})
			assert.Len(t, out.slices, 5)
		})
	}
}

func TestSlicer_Reset(t *testing.T) {
	s, fc, out := newTestSlicer(100 * time.Millisecond)

	s.Reset()

	s.Push([][]float32{samples(0, 10)})
	fc.Advance(50 * time.Millisecond)
	s.Reset()
	s.Reset()
	assert.Zero(t, s.Duration())

	s.Flush()
	assert.Empty(t, out.slices)

	s.Push([][]float32{samples(10, 3)})
	s.Flush()
	require.Len(t, out.slices, 1)
	assert.Equal(t, samples(10, 3), out.slices[0].channels[0])
}

func TestSlicer_ChannelGrowth(t *testing.T) {
	s, fc, out := newTestSlicer(time.Second)

	s.Push([][]float32{{1}})
	s.Push([][]float32{{2}, {20}, {200}})
	s.Push([][]float32{{3}})
	s.Flush()

	require.Len(t, out.slices, 1)
	want := [][]float32{{1, 2, 3}, {20}, {200}}
	if diff := cmp.Diff(want, out.slices[0].channels); diff != "" {
		t.Errorf("merged channels mismatch (-want +got):\n%s", diff)
	}

	s.Push([][]float32{{4}})
	fc.Advance(time.Second)
	s.Flush()

	require.Len(t, out.slices, 2)
	assert.Equal(t, 3, s.Channels())
	assert.Equal(t, [][]float32{{4}, {}, {}}, out.slices[1].channels)
}

func TestSlicer_MismatchedLengths(t *testing.T) {
	s, _, out := newTestSlicer(time.Second)

	s.Push([][]float32{{1, 2, 3}, {9}})
	s.Push([][]float32{{4}, {8, 7, 6, 5}})
	s.Flush()

	require.Len(t, out.slices, 1)
	assert.Equal(t, [][]float32{{1, 2, 3, 4}, {9, 8, 7, 6, 5}}, out.slices[0].channels)
}

func TestSlicer_EmptySegments(t *testing.T) {
	s, _, out := newTestSlicer(time.Second)

	s.Push([][]float32{{}, {}})
	s.Flush()

	require.Len(t, out.slices, 1)
	assert.Equal(t, [][]float32{{}, {}}, out.slices[0].channels)
}

func TestSlicer_SetTimeSlice(t *testing.T) {
	s, fc, out := newTestSlicer(time.Second)
	assert.Equal(t, time.Second, s.TimeSlice())

	s.Push([][]float32{{1}})
	fc.Advance(200 * time.Millisecond)
	s.SetTimeSlice(100 * time.Millisecond)
	assert.Empty(t, out.slices)

	s.Push([][]float32{{2}})
	require.Len(t, out.slices, 1)
	assert.Equal(t, 200*time.Millisecond, out.slices[0].elapsed)

	s.SetTimeSlice(0)
	s.Push([][]float32{{3}})
	assert.Len(t, out.slices, 2)
}

func TestSlicer_ReentrantPush(t *testing.T) {
	fc := clockwork.NewFakeClock()
	var got [][]int16
	var s *Slicer[int16]
	s = New(Options[int16]{
		Clock: fc,
		OnSlice: func(channels [][]int16, _ time.Duration) {
			got = append(got, channels[0])
			if len(got) == 1 {
				s.Push([][]int16{{2}})
			}
		},
	})

	s.Push([][]int16{{1}})

	assert.Equal(t, [][]int16{{1}, {2}}, got)
	assert.Zero(t, s.Duration())
}

func TestSlicer_NilCallback(t *testing.T) {
	s := New(Options[byte]{TimeSlice: 0})

	assert.NotPanics(t, func() {
		s.Push([][]byte{[]byte("abc")})
		s.Flush()
	})
	assert.Zero(t, s.Duration())
}

func TestSlicer_PanickingCallback(t *testing.T) {
	tests := []struct {
		name      string
		timeSlice time.Duration
		trigger   func(s *Slicer[float32], fc *clockwork.FakeClock)
	}{
		{
			name:      "flush",
			timeSlice: time.Hour,
			trigger: func(s *Slicer[float32], _ *clockwork.FakeClock) {
				s.Push([][]float32{samples(0, 3), samples(100, 3)})
				s.Flush()
			},
		},
		{
			name:      "threshold crossing",
			timeSlice: 100 * time.Millisecond,
			trigger: func(s *Slicer[float32], fc *clockwork.FakeClock) {
				s.Push([][]float32{samples(0, 3), samples(100, 3)})
				fc.Advance(100 * time.Millisecond)
				s.Push([][]float32{samples(3, 1), samples(103, 1)})
			},
		},
		{
			name: "pass-through",
			trigger: func(s *Slicer[float32], _ *clockwork.FakeClock) {
				s.Push([][]float32{samples(0, 3), samples(100, 3)})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := clockwork.NewFakeClock()
			out := &sink{}
			calls := 0
			s := New(Options[float32]{
				TimeSlice: tt.timeSlice,
				Clock:     fc,
				OnSlice: func(channels [][]float32, elapsed time.Duration) {
					calls++
					if calls == 1 {
						panic("boom")
					}
					out.onSlice(channels, elapsed)
				},
			})

			assert.PanicsWithValue(t, "boom", func() { tt.trigger(s, fc) })
			assert.Zero(t, s.Duration())

			s.SetTimeSlice(time.Hour)
			s.Push([][]float32{samples(50, 2), samples(150, 2)})
			s.Flush()

			want := []emitted{{channels: [][]float32{samples(50, 2), samples(150, 2)}}}
			if diff := cmp.Diff(want, out.slices, cmp.AllowUnexported(emitted{})); diff != "" {
				t.Errorf("slices after panic mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
