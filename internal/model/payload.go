package model

// Payload kind constants, used for JSON tagging and metrics labels.
const (
	KindGeneric = "generic_ok"
	KindChange  = "change"
	KindInsert  = "insert"
	KindSelect  = "select"
	KindError   = "error"
)

// Payload is the tagged result type carried by a Result envelope. Exactly
// one of the concrete types below is produced per request; the connector
// dispatches on the concrete type at drain time.
type Payload interface {
	Kind() string
}

// GenericOK reports successful execution with no result data.
type GenericOK struct{}

// ChangeResult reports the row count affected by an UPDATE or DELETE.
type ChangeResult struct {
	Affected int64 `json:"affected"`
}

// InsertResult reports the generated key and row count of an INSERT.
type InsertResult struct {
	InsertID int64 `json:"insert_id"`
	Affected int64 `json:"affected"`
}

// SelectResult carries the row set of a SELECT. Each row maps column name
// to scanned value.
type SelectResult struct {
	Rows []map[string]any `json:"rows"`
}

// ExecError reports an execution failure. Query and Args are populated
// when the failing statement is known, for diagnostic logging only.
type ExecError struct {
	Message string `json:"message"`
	Query   string `json:"query,omitempty"`
	Args    []any  `json:"args,omitempty"`
}

func (GenericOK) Kind() string     { return KindGeneric }
func (*ChangeResult) Kind() string { return KindChange }
func (*InsertResult) Kind() string { return KindInsert }
func (*SelectResult) Kind() string { return KindSelect }
func (*ExecError) Kind() string    { return KindError }

// Error implements the error interface so an ExecError can flow through
// onError callbacks unchanged.
func (e *ExecError) Error() string { return e.Message }
