package worker

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/jmoiron/sqlx"

	"github.com/seantiz/quill/internal/model"
	"github.com/seantiz/quill/internal/queue"

	_ "modernc.org/sqlite"
)

// Compile-time interface satisfaction check.
var _ Worker = (*SQLite)(nil)

// SQLite executes requests against its own SQLite connection. Requests
// dequeued by one worker are processed in dequeue order; ordering across
// workers is unspecified.
type SQLite struct {
	id       string
	db       *sqlx.DB
	requests *queue.FIFO[model.Request]
	results  *queue.FIFO[model.Result]
	logger   *slog.Logger

	busy    atomic.Bool
	stopped atomic.Bool
	done    chan struct{}

	connected bool
	connErr   string
}

// NewSQLite opens a dedicated connection to the database at dsn and starts
// the worker loop. A connection failure does not fail construction: the
// worker still runs and reports the failure through its status accessors,
// and every request it picks up produces an ExecError envelope.
func NewSQLite(dsn string, requests *queue.FIFO[model.Request], results *queue.FIFO[model.Result], logger *slog.Logger) (*SQLite, error) {
	w := &SQLite{
		id:       model.NewWorkerID(),
		requests: requests,
		results:  results,
		logger:   logger,
		done:     make(chan struct{}),
	}

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		w.connErr = err.Error()
	} else if err := db.Ping(); err != nil {
		w.connErr = err.Error()
		db.Close()
	} else {
		// One connection per worker: no sharing across execution contexts.
		db.SetMaxOpenConns(1)
		w.db = db
		w.connected = true
	}

	if w.connErr != "" {
		w.logger.Error("worker connection failed", "worker_id", w.id, "error", w.connErr)
	} else {
		w.logger.Debug("worker connected", "worker_id", w.id, "dsn", dsn)
	}

	go w.run()
	return w, nil
}

// SQLiteFactory returns a Factory producing SQLite workers for dsn.
func SQLiteFactory(dsn string, logger *slog.Logger) Factory {
	return func(requests *queue.FIFO[model.Request], results *queue.FIFO[model.Result]) (Worker, error) {
		return NewSQLite(dsn, requests, results, logger)
	}
}

// ID returns the worker's ULID, used in logs and metrics.
func (w *SQLite) ID() string { return w.id }

// Busy reports whether the worker is executing a request.
func (w *SQLite) Busy() bool { return w.busy.Load() }

// RequestStop asks the worker loop to exit after the current request.
func (w *SQLite) RequestStop() { w.stopped.Store(true) }

// Join blocks until the worker loop has terminated.
func (w *SQLite) Join() { <-w.done }

// ConnectionEstablished reports whether the connection came up.
func (w *SQLite) ConnectionEstablished() bool { return w.connected }

// HasConnectionError reports whether connecting failed.
func (w *SQLite) HasConnectionError() bool { return w.connErr != "" }

// LastConnectionError returns the connection failure message, if any.
func (w *SQLite) LastConnectionError() string { return w.connErr }

// run is the worker loop: pop, execute, push one envelope. It exits when
// the request queue is closed and drained, or after a stop request.
func (w *SQLite) run() {
	defer close(w.done)
	defer func() {
		if w.db != nil {
			w.db.Close()
		}
	}()

	for !w.stopped.Load() {
		req, ok := w.requests.Pop()
		if !ok {
			return
		}
		w.busy.Store(true)
		w.results.Push(model.Result{ID: req.ID, Payload: w.execute(req)})
		w.busy.Store(false)
	}
}

// execute runs one request and maps its outcome to the mode's payload.
func (w *SQLite) execute(req model.Request) model.Payload {
	if w.db == nil {
		return &model.ExecError{
			Message: fmt.Sprintf("no backend connection: %s", w.connErr),
			Query:   req.Query,
			Args:    req.Args,
		}
	}

	switch req.Mode {
	case model.ModeSelect:
		return w.executeSelect(req)
	default:
		return w.executeExec(req)
	}
}

func (w *SQLite) executeExec(req model.Request) model.Payload {
	res, err := w.db.Exec(req.Query, req.Args...)
	if err != nil {
		return execError(req, err)
	}

	switch req.Mode {
	case model.ModeChange:
		affected, err := res.RowsAffected()
		if err != nil {
			return execError(req, err)
		}
		return &model.ChangeResult{Affected: affected}
	case model.ModeInsert:
		insertID, err := res.LastInsertId()
		if err != nil {
			return execError(req, err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return execError(req, err)
		}
		return &model.InsertResult{InsertID: insertID, Affected: affected}
	default:
		return model.GenericOK{}
	}
}

func (w *SQLite) executeSelect(req model.Request) model.Payload {
	rows, err := w.db.Queryx(req.Query, req.Args...)
	if err != nil {
		return execError(req, err)
	}
	defer rows.Close()

	// Rows come back as column-name keyed maps so callers need no
	// destination struct.
	out := []map[string]any{}
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return execError(req, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return execError(req, err)
	}
	return &model.SelectResult{Rows: out}
}

func execError(req model.Request, err error) *model.ExecError {
	return &model.ExecError{
		Message: err.Error(),
		Query:   req.Query,
		Args:    req.Args,
	}
}
