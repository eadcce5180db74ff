package model

import "github.com/oklog/ulid/v2"

// NewWorkerID generates a new ULID string identifying a worker in logs
// and metrics.
func NewWorkerID() string {
	return ulid.Make().String()
}
