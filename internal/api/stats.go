package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Workers             int     `json:"workers"`
	WorkerLimit         int     `json:"worker_limit"`
	Pending             int     `json:"pending"`
	InFlight            int     `json:"in_flight"`
	Load                float64 `json:"load"`
	Statements          int     `json:"statements"`
	ConnectionUp        bool    `json:"connection_up"`
	LastConnectionError string  `json:"last_connection_error,omitempty"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	p := s.connector.Pool()
	s.writeJSON(w, http.StatusOK, statsResponse{
		Workers:             p.WorkerCount(),
		WorkerLimit:         p.Limit(),
		Pending:             p.Pending(),
		InFlight:            s.connector.InFlight(),
		Load:                p.Load(),
		Statements:          len(s.connector.Statements()),
		ConnectionUp:        p.ConnectionEstablished(),
		LastConnectionError: p.LastConnectionError(),
	})
}
