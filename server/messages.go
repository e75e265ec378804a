package server

const (
	TypeSession   = "session"
	TypeSlice     = "slice"
	TypeError     = "error"
	TypeFlush     = "flush"
	TypeReset     = "reset"
	TypeTimeSlice = "time_slice"
)

// Control is a text message sent by the client.
type Control struct {
	Type string `json:"type"`
	MS   int64  `json:"ms,omitempty"`
}

// Event is a text message sent to the client. Which fields are set depends
// on Type. Zero counters are omitted, so a missing index means slice 0.
type Event struct {
	Type      string `json:"type"`
	Session   string `json:"session,omitempty"`
	Index     int    `json:"index,omitempty"`
	Frames    int    `json:"frames,omitempty"`
	ElapsedMs int64  `json:"elapsed_ms,omitempty"`
	Error     string `json:"error,omitempty"`
}
