package models

import "time"

type Slice struct {
	SessionID  string
	Index      int
	Channels   [][]float32
	SampleRate int
	Elapsed    time.Duration
	CreatedAt  time.Time
}

// Frames is the length of the longest channel.
func (s *Slice) Frames() int {
	n := 0
	for _, ch := range s.Channels {
		if len(ch) > n {
			n = len(ch)
		}
	}
	return n
}

// AudioDuration is the playback length of the slice at its sample rate.
func (s *Slice) AudioDuration() time.Duration {
	if s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}
