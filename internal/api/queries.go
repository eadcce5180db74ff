package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/quill/internal/model"
	"github.com/seantiz/quill/internal/statement"
)

const (
	maxBodySize = 1 << 20 // 1 MB

	// resultWait caps how long a poll blocks for a result that has not
	// been drained yet.
	resultWait = 30 * time.Second
)

// submitQueryRequest is the JSON body for POST /v1/queries.
type submitQueryRequest struct {
	Statement string         `json:"statement"`
	Mode      string         `json:"mode"`
	Args      map[string]any `json:"args"`
}

// submitQueryResponse carries the correlation id of an accepted query.
type submitQueryResponse struct {
	ID   uint64 `json:"id"`
	Mode string `json:"mode"`
}

// queryResultResponse is the JSON rendering of one result envelope.
type queryResultResponse struct {
	ID     uint64        `json:"id"`
	Kind   string        `json:"kind"`
	Result model.Payload `json:"result,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func (s *Server) handleSubmitQuery(w http.ResponseWriter, r *http.Request) {
	var req submitQueryRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Statement == "" {
		s.writeError(w, http.StatusBadRequest, "statement is required")
		return
	}
	if req.Mode == "" {
		req.Mode = model.ModeGeneric
	}
	if !model.ValidMode(req.Mode) {
		s.writeError(w, http.StatusBadRequest, "unknown mode")
		return
	}

	id, err := s.submit(req)
	if err != nil {
		switch {
		case errors.Is(err, statement.ErrUnknownStatement):
			s.writeError(w, http.StatusNotFound, err.Error())
		case isMissingArgument(err):
			s.writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.logger.Error("submit query", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to submit query")
		}
		return
	}

	s.writeJSON(w, http.StatusAccepted, submitQueryResponse{ID: id, Mode: req.Mode})
}

// submit dispatches to the mode-specific Execute method, wiring callbacks
// that publish the outcome to the result broker.
func (s *Server) submit(req submitQueryRequest) (uint64, error) {
	// The correlation id is only known once the Execute call returns, but
	// the drain cycle may dispatch the callback concurrently. The ready
	// gate makes the callback wait for the id assignment below.
	var id uint64
	ready := make(chan struct{})
	defer close(ready)

	publish := func(payload model.Payload) {
		<-ready
		s.broker.Publish(id, payload)
	}
	onError := func(err error) {
		payload, ok := err.(*model.ExecError)
		if !ok {
			payload = &model.ExecError{Message: err.Error()}
		}
		publish(payload)
	}

	var err error
	switch req.Mode {
	case model.ModeChange:
		id, err = s.connector.ExecuteChange(req.Statement, req.Args, func(affected int64) {
			publish(&model.ChangeResult{Affected: affected})
		}, onError)
	case model.ModeInsert:
		id, err = s.connector.ExecuteInsert(req.Statement, req.Args, func(insertID, affected int64) {
			publish(&model.InsertResult{InsertID: insertID, Affected: affected})
		}, onError)
	case model.ModeSelect:
		id, err = s.connector.ExecuteSelect(req.Statement, req.Args, func(rows []map[string]any) {
			publish(&model.SelectResult{Rows: rows})
		}, onError)
	default:
		id, err = s.connector.ExecuteGeneric(req.Statement, req.Args, func() {
			publish(model.GenericOK{})
		}, onError)
	}
	return id, err
}

func (s *Server) handleQueryResult(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid query id")
		return
	}

	ch, unsub := s.broker.Subscribe(id)
	defer unsub()

	select {
	case payload, ok := <-ch:
		if !ok {
			s.writeError(w, http.StatusNotFound, "no result for query id")
			return
		}
		s.writeResult(w, id, payload)
	case <-time.After(resultWait):
		s.writeError(w, http.StatusRequestTimeout, "result not available yet")
	case <-r.Context().Done():
	}
}

func (s *Server) writeResult(w http.ResponseWriter, id uint64, payload model.Payload) {
	resp := queryResultResponse{ID: id, Kind: payload.Kind()}
	if execErr, ok := payload.(*model.ExecError); ok {
		resp.Error = execErr.Message
	} else {
		resp.Result = payload
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// handleListStatements returns the names of all loaded statements.
func (s *Server) handleListStatements(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"statements": s.connector.Statements(),
	})
}

func isMissingArgument(err error) bool {
	var missing *statement.MissingArgumentError
	return errors.As(err, &missing)
}

// writeJSON writes v as a JSON response with the given status.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
