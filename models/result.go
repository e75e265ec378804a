package models

import "time"

type Result struct {
	SessionID string
	Slices    int
	Frames    int64
	Aborted   bool
	Duration  time.Duration
}
