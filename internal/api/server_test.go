package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/seantiz/quill/internal/connector"
	"github.com/seantiz/quill/internal/pool"
	"github.com/seantiz/quill/internal/statement"
	"github.com/seantiz/quill/internal/worker"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	p, err := pool.New(worker.SQLiteFactory(":memory:", logger), 1, logger)
	if err != nil {
		t.Fatalf("pool.New: %v", err)
	}
	c := connector.New(p, logger, connector.Options{Style: "?"})
	t.Cleanup(c.Close)

	templates := []statement.Template{
		{Name: "createUsers", Text: "CREATE TABLE users (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT)"},
		{Name: "insertUser", Text: "INSERT INTO users(name) VALUES (:name)"},
		{Name: "allUsers", Text: "SELECT id, name FROM users"},
		{Name: "badQuery", Text: "SELECT * FROM no_such_table"},
	}
	for _, tpl := range templates {
		if err := c.LoadQuery(tpl); err != nil {
			t.Fatalf("LoadQuery(%s): %v", tpl.Name, err)
		}
	}

	connector.StartTicker(c, 5*time.Millisecond)

	return NewServer(":0", c, logger)
}

func postQuery(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/queries", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/queries: %v", err)
	}
	return resp
}

// submitAndAwait submits a query and polls its result, returning the
// decoded result body.
func submitAndAwait(t *testing.T, ts *httptest.Server, body string) map[string]any {
	t.Helper()
	resp := postQuery(t, ts, body)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("submit status = %d, body %s", resp.StatusCode, raw)
	}
	var accepted submitQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&accepted); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}

	res, err := http.Get(fmt.Sprintf("%s/v1/queries/%d", ts.URL, accepted.ID))
	if err != nil {
		t.Fatalf("GET result: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(res.Body)
		t.Fatalf("result status = %d, body %s", res.StatusCode, raw)
	}
	var result map[string]any
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return result
}

func TestHealthzEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want %q", body.Status, "ok")
	}
}

func TestQueryRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := submitAndAwait(t, ts, `{"statement":"createUsers","mode":"generic"}`)
	if created["kind"] != "generic_ok" {
		t.Fatalf("create result = %v, want generic_ok", created)
	}

	inserted := submitAndAwait(t, ts, `{"statement":"insertUser","mode":"insert","args":{"name":"Alice"}}`)
	if inserted["kind"] != "insert" {
		t.Fatalf("insert result = %v, want insert kind", inserted)
	}
	insertResult := inserted["result"].(map[string]any)
	if insertResult["insert_id"] != float64(1) || insertResult["affected"] != float64(1) {
		t.Errorf("insert result = %v, want insert_id 1 affected 1", insertResult)
	}

	selected := submitAndAwait(t, ts, `{"statement":"allUsers","mode":"select"}`)
	if selected["kind"] != "select" {
		t.Fatalf("select result = %v, want select kind", selected)
	}
	rows := selected["result"].(map[string]any)["rows"].([]any)
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want one row", rows)
	}
	if rows[0].(map[string]any)["name"] != "Alice" {
		t.Errorf("row = %v, want name Alice", rows[0])
	}
}

func TestQueryExecutionFailureReportedAsErrorResult(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	result := submitAndAwait(t, ts, `{"statement":"badQuery","mode":"select"}`)
	if result["kind"] != "error" {
		t.Fatalf("result = %v, want error kind", result)
	}
	if msg, _ := result["error"].(string); msg == "" {
		t.Error("error result carries no message")
	}
}

func TestSubmitUnknownStatement(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postQuery(t, ts, `{"statement":"unknownQuery","mode":"select"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSubmitMissingArgument(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postQuery(t, ts, `{"statement":"insertUser","mode":"insert","args":{}}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSubmitInvalidMode(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postQuery(t, ts, `{"statement":"allUsers","mode":"upsert"}`)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestListStatements(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/statements")
	if err != nil {
		t.Fatalf("GET /v1/statements: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Statements []string `json:"statements"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(body.Statements) != 4 {
		t.Errorf("statements = %v, want 4 names", body.Statements)
	}
}

func TestStatsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("GET /v1/stats: %v", err)
	}
	defer resp.Body.Close()

	var stats statsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Workers != 1 {
		t.Errorf("workers = %d, want 1", stats.Workers)
	}
	if stats.WorkerLimit != 1 {
		t.Errorf("worker_limit = %d, want 1", stats.WorkerLimit)
	}
	if !stats.ConnectionUp {
		t.Error("connection_up = false for in-memory database")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// Generate one measured request first.
	if resp, err := http.Get(ts.URL + "/healthz"); err == nil {
		resp.Body.Close()
	}

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(raw), "quill_http_requests_total") {
		t.Error("metrics output missing quill_http_requests_total")
	}
	if !strings.Contains(string(raw), "quill_workers") {
		t.Error("metrics output missing quill_workers")
	}
}

func TestPanicRecovery(t *testing.T) {
	srv := newTestServer(t)
	srv.Router().Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("test panic")
	})

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/panic")
	if err != nil {
		t.Fatalf("GET /panic: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", resp.StatusCode)
	}
}
