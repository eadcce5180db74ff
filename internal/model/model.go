package model

// Execution mode constants. The mode decides how a worker interprets the
// outcome of a statement and which payload it produces.
const (
	ModeGeneric = "generic"
	ModeChange  = "change"
	ModeInsert  = "insert"
	ModeSelect  = "select"
)

// ValidMode reports whether s names a known execution mode.
func ValidMode(s string) bool {
	switch s {
	case ModeGeneric, ModeChange, ModeInsert, ModeSelect:
		return true
	}
	return false
}

// Request is one unit of work queued for execution. Created by the
// connector, consumed exactly once by exactly one worker.
type Request struct {
	// ID is the correlation id joining this request to its eventual result.
	// Assigned monotonically per connector instance.
	ID    uint64 `json:"id"`
	Mode  string `json:"mode"`
	Query string `json:"query"`
	Args  []any  `json:"args"`
}

// Result is the envelope a worker pushes onto the inbound queue after
// executing a request: exactly one per dequeued request, on both success
// and failure.
type Result struct {
	ID      uint64  `json:"id"`
	Payload Payload `json:"payload"`
}
