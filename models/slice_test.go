package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSlice_Frames(t *testing.T) {
	tests := []struct {
		name     string
		channels [][]float32
		expected int
	}{
		{name: "no channels", channels: nil, expected: 0},
		{name: "mono", channels: [][]float32{make([]float32, 480)}, expected: 480},
		{name: "uneven channels", channels: [][]float32{make([]float32, 10), make([]float32, 12), {}}, expected: 12},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Slice{Channels: tt.channels}
			assert.Equal(t, tt.expected, s.Frames())
		})
	}
}

func TestSlice_AudioDuration(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		sampleRate int
		expected   time.Duration
	}{
		{name: "one second", frames: 48000, sampleRate: 48000, expected: time.Second},
		{name: "ten milliseconds", frames: 160, sampleRate: 16000, expected: 10 * time.Millisecond},
		{name: "unknown rate", frames: 100, sampleRate: 0, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Slice{Channels: [][]float32{make([]float32, tt.frames)}, SampleRate: tt.sampleRate}
			assert.Equal(t, tt.expected, s.AudioDuration())
		})
	}
}
