// Package connector is the public-facing orchestrator: it loads named
// statement templates, assigns correlation ids, formats and enqueues work
// on the pool, and routes each drained result to the callback registered
// for it. Format and lookup failures surface synchronously from the
// Execute calls; execution failures always arrive asynchronously through
// the registered onError or the default reporter.
package connector

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/seantiz/quill/internal/model"
	"github.com/seantiz/quill/internal/pool"
	"github.com/seantiz/quill/internal/source"
	"github.com/seantiz/quill/internal/statement"
)

// Driver is the external periodic source that invokes CheckResults.
// Close stops an attached driver.
type Driver interface {
	Stop()
}

// Options configures a Connector.
type Options struct {
	// Style is the placeholder style used for formatting, fixed for the
	// connector's lifetime.
	Style statement.Style
	// LogQueries enables logging of every formatted query and its bound
	// arguments before queuing. Mutable at runtime via SetQueryLogging.
	LogQueries bool
	// CaptureCallSites records a stack trace per Execute call and logs it
	// when the request fails without an onError handler. Diagnostic only;
	// it never affects delivery.
	CaptureCallSites bool
}

// entry is one registered callback, keyed by correlation id. Every id
// inserted is removed exactly once, by dispatch during CheckResults.
type entry struct {
	onResult pool.Callback
	callSite []byte
}

// Connector submits named statements for asynchronous execution. One
// controller context calls the Execute methods and CheckResults; the
// connector never blocks it.
type Connector struct {
	store  *statement.Store
	pool   *pool.Pool
	logger *slog.Logger

	logQueries atomic.Bool
	capture    bool

	mu      sync.Mutex
	nextID  uint64
	entries map[uint64]*entry
	driver  Driver
}

// New creates a connector dispatching onto p.
func New(p *pool.Pool, logger *slog.Logger, opts Options) *Connector {
	c := &Connector{
		store:   statement.NewStore(opts.Style),
		pool:    p,
		logger:  logger,
		capture: opts.CaptureCallSites,
		entries: make(map[uint64]*entry),
	}
	c.logQueries.Store(opts.LogQueries)
	return c
}

// LoadQuery registers a single statement template.
func (c *Connector) LoadQuery(t statement.Template) error {
	return c.store.Load(t)
}

// LoadQueryFile parses the statement definition file at path and registers
// every template it contains.
func (c *Connector) LoadQueryFile(path string) error {
	templates, err := source.ParseFile(path)
	if err != nil {
		return err
	}
	for _, t := range templates {
		if err := c.store.Load(t); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	c.logger.Debug("statement file loaded", "path", path, "statements", len(templates))
	return nil
}

// Statements returns the names of all loaded templates.
func (c *Connector) Statements() []string {
	return c.store.Names()
}

// ExecuteGeneric submits a statement whose result carries no data.
func (c *Connector) ExecuteGeneric(name string, args map[string]any, onSuccess func(), onError func(error)) (uint64, error) {
	return c.submit(model.ModeGeneric, name, args, func(p model.Payload) bool {
		if _, ok := p.(model.GenericOK); !ok {
			return false
		}
		if onSuccess != nil {
			onSuccess()
		}
		return true
	}, onError)
}

// ExecuteChange submits an UPDATE/DELETE-style statement; onSuccess
// receives the affected row count.
func (c *Connector) ExecuteChange(name string, args map[string]any, onSuccess func(affected int64), onError func(error)) (uint64, error) {
	return c.submit(model.ModeChange, name, args, func(p model.Payload) bool {
		change, ok := p.(*model.ChangeResult)
		if !ok {
			return false
		}
		if onSuccess != nil {
			onSuccess(change.Affected)
		}
		return true
	}, onError)
}

// ExecuteInsert submits an INSERT-style statement; onSuccess receives the
// generated key and the affected row count.
func (c *Connector) ExecuteInsert(name string, args map[string]any, onSuccess func(insertID, affected int64), onError func(error)) (uint64, error) {
	return c.submit(model.ModeInsert, name, args, func(p model.Payload) bool {
		insert, ok := p.(*model.InsertResult)
		if !ok {
			return false
		}
		if onSuccess != nil {
			onSuccess(insert.InsertID, insert.Affected)
		}
		return true
	}, onError)
}

// ExecuteSelect submits a SELECT; onSuccess receives the row set.
func (c *Connector) ExecuteSelect(name string, args map[string]any, onSuccess func(rows []map[string]any), onError func(error)) (uint64, error) {
	return c.submit(model.ModeSelect, name, args, func(p model.Payload) bool {
		sel, ok := p.(*model.SelectResult)
		if !ok {
			return false
		}
		if onSuccess != nil {
			onSuccess(sel.Rows)
		}
		return true
	}, onError)
}

// submit formats the statement, registers the callback entry under a fresh
// correlation id, and enqueues the request. Format and lookup errors are
// returned directly: nothing is queued and no callback will fire for them.
// adapt dispatches a success payload to the caller's typed onSuccess and
// reports whether the payload matched the expected mode.
func (c *Connector) submit(mode, name string, args map[string]any, adapt func(model.Payload) bool, onError func(error)) (uint64, error) {
	query, bound, err := c.store.Format(name, args)
	if err != nil {
		return 0, err
	}

	e := &entry{}
	if c.capture {
		e.callSite = debug.Stack()
	}
	e.onResult = func(p model.Payload) {
		if execErr, ok := p.(*model.ExecError); ok {
			c.reportError(execErr, onError, e.callSite)
			return
		}
		if !adapt(p) {
			// A payload of the wrong kind means the correlation layer
			// broke; say so loudly.
			c.logger.Error("payload kind does not match request mode",
				"statement", name, "mode", mode, "kind", p.Kind())
		}
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.entries[id] = e
	c.mu.Unlock()

	if c.logQueries.Load() {
		c.logger.Info("query", "id", id, "statement", name, "query", query, "args", bound)
	}

	req := model.Request{ID: id, Mode: mode, Query: query, Args: bound}
	if err := c.pool.Enqueue(req); err != nil {
		c.mu.Lock()
		delete(c.entries, id)
		c.mu.Unlock()
		return 0, fmt.Errorf("enqueue %q: %w", name, err)
	}

	return id, nil
}

// reportError routes an asynchronous execution failure to the caller's
// onError, or absorbs it into logging when none was supplied.
func (c *Connector) reportError(execErr *model.ExecError, onError func(error), callSite []byte) {
	if onError != nil {
		onError(execErr)
		return
	}
	c.logger.Error("statement execution failed", "error", execErr.Message)
	if execErr.Query != "" {
		c.logger.Debug("failing statement", "query", execErr.Query, "args", execErr.Args)
	}
	if len(callSite) > 0 {
		c.logger.Debug("submitted from", "stack", string(callSite))
	}
}

// CheckResults drains all currently-available results and dispatches their
// callbacks. It is the single drain entry point and must be driven
// periodically by the host; the connector never schedules itself.
func (c *Connector) CheckResults() error {
	_, err := c.pool.Drain(func(id uint64) (pool.Callback, bool) {
		c.mu.Lock()
		defer c.mu.Unlock()
		e, ok := c.entries[id]
		if !ok {
			return nil, false
		}
		delete(c.entries, id)
		return e.onResult, true
	})
	return err
}

// SetQueryLogging toggles query logging at runtime.
func (c *Connector) SetQueryLogging(enabled bool) {
	c.logQueries.Store(enabled)
}

// QueryLogging reports whether query logging is enabled.
func (c *Connector) QueryLogging() bool {
	return c.logQueries.Load()
}

// InFlight returns the number of requests awaiting dispatch.
func (c *Connector) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Pool exposes the underlying pool for status and saturation queries.
func (c *Connector) Pool() *pool.Pool {
	return c.pool
}

// AttachDriver records the periodic driver so Close can stop it.
func (c *Connector) AttachDriver(d Driver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.driver = d
}

// Close stops the attached driver, shuts the pool down, and waits for all
// workers to terminate.
func (c *Connector) Close() {
	c.mu.Lock()
	d := c.driver
	c.driver = nil
	c.mu.Unlock()

	if d != nil {
		d.Stop()
	}
	c.pool.Shutdown()
}
