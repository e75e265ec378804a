package capture

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"

	"github.com/vcnkl/coalesce/logger"
	"github.com/vcnkl/coalesce/models"
	"github.com/vcnkl/coalesce/slicer"
)

type Sink interface {
	Store(slice *models.Slice) error
}

type SinkFunc func(slice *models.Slice) error

func (f SinkFunc) Store(slice *models.Slice) error {
	return f(slice)
}

type SessionOptions struct {
	ID        string
	TimeSlice time.Duration
	Sink      Sink
	Clock     clockwork.Clock
	Logger    logger.Logger
}

// Session is one capture stream: a slicer plus slice numbering. It is owned
// by a single goroutine.
type Session struct {
	id     string
	format Format
	clock  clockwork.Clock
	sink   Sink
	log    logger.Logger
	slices *slicer.Slicer[float32]
	start  time.Time

	mu      sync.Mutex
	index   int
	frames  int64
	aborted bool
	sinkErr error
}

func NewSession(format Format, opts SessionOptions) (*Session, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if opts.ID == "" {
		opts.ID = uuid.NewString()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}

	s := &Session{
		id:     opts.ID,
		format: format,
		clock:  opts.Clock,
		sink:   opts.Sink,
		log:    opts.Logger.With(logger.String("session", opts.ID)),
		start:  opts.Clock.Now(),
	}
	s.slices = slicer.New(slicer.Options[float32]{
		TimeSlice: opts.TimeSlice,
		OnSlice:   s.onSlice,
		Clock:     opts.Clock,
	})
	return s, nil
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Format() Format {
	return s.format
}

// Write pushes one block of per-channel samples and returns the error of any
// sink write it triggered.
func (s *Session) Write(channels [][]float32) error {
	if len(channels) == 0 || len(channels[0]) == 0 {
		return nil
	}
	s.mu.Lock()
	s.frames += int64(len(channels[0]))
	s.mu.Unlock()

	s.slices.Push(channels)
	return s.takeErr()
}

// Flush emits whatever has accumulated without waiting for the slice
// duration.
func (s *Session) Flush() error {
	s.slices.Flush()
	return s.takeErr()
}

// Close emits any trailing partial slice.
func (s *Session) Close() error {
	return s.Flush()
}

// Reset drops the open slice. The session stays usable.
func (s *Session) Reset() {
	s.slices.Reset()
}

// Abort drops accumulated data without emitting it and marks the session
// aborted.
func (s *Session) Abort() {
	s.slices.Reset()
	s.mu.Lock()
	s.aborted = true
	s.mu.Unlock()
	s.log.Warn("capture aborted, partial slice discarded")
}

func (s *Session) SetTimeSlice(d time.Duration) {
	s.slices.SetTimeSlice(d)
}

func (s *Session) TimeSlice() time.Duration {
	return s.slices.TimeSlice()
}

// Buffered reports how long the current slice has been accumulating.
func (s *Session) Buffered() time.Duration {
	return s.slices.Duration()
}

func (s *Session) Result() *models.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &models.Result{
		SessionID: s.id,
		Slices:    s.index,
		Frames:    s.frames,
		Aborted:   s.aborted,
		Duration:  s.clock.Since(s.start),
	}
}

func (s *Session) onSlice(channels [][]float32, elapsed time.Duration) {
	s.mu.Lock()
	slice := &models.Slice{
		SessionID:  s.id,
		Index:      s.index,
		Channels:   channels,
		SampleRate: s.format.SampleRate,
		Elapsed:    elapsed,
		CreatedAt:  s.clock.Now(),
	}
	s.index++
	s.mu.Unlock()

	s.log.Debug("slice emitted",
		logger.Int("index", slice.Index),
		logger.Int("frames", slice.Frames()),
		logger.Duration("elapsed", elapsed))

	if s.sink == nil {
		return
	}
	if err := s.sink.Store(slice); err != nil {
		s.log.Error("failed to store slice", logger.Int("index", slice.Index), logger.Err(err))
		s.mu.Lock()
		if s.sinkErr == nil {
			s.sinkErr = errors.Wrapf(err, "store slice %d", slice.Index)
		}
		s.mu.Unlock()
	}
}

func (s *Session) takeErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.sinkErr
	s.sinkErr = nil
	return err
}

// Run pumps the decoder into the session until the stream ends. A clean end
// of stream (including a truncated final frame) flushes the trailing slice;
// cancellation, read errors and sink errors abort it.
func Run(ctx context.Context, dec *Decoder, s *Session) error {
	for {
		if err := ctx.Err(); err != nil {
			s.Abort()
			return err
		}

		channels, err := dec.Next()
		if werr := s.Write(channels); werr != nil {
			s.Abort()
			return werr
		}

		switch {
		case err == nil:
			continue
		case errors.Is(err, io.EOF):
			return s.Close()
		case errors.Is(err, ErrShortFrame):
			s.log.Warn("stream ended mid-frame, dropping partial frame")
			return s.Close()
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.Abort()
				return ctxErr
			}
			s.Abort()
			return errors.Wrap(err, "read pcm")
		}
	}
}
