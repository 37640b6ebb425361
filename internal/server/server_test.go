package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/lazypower/lifeaxes/internal/catalog"
	"github.com/lazypower/lifeaxes/internal/engine"
	"github.com/lazypower/lifeaxes/internal/store"
)

const testCatalogYAML = `
axes:
  - key: body
    label: Corpo & Movimento
    evidence:
      habits: [corrida, yoga]
      journal: [treino]
    minimum_signals:
      habit_days: 10
      months_active: 2
  - key: mind
    label: Estudo & Leitura
    evidence:
      habits: [leitura]
      journal: [livro, estudo]
achievements:
  - id: ten_runs
    axis_key: body
    title: Ten runs
    signal: activity_count
    threshold: 10
  - id: mind_mentions
    axis_key: mind
    signal: diary_mentions
    threshold: 3
`

var testNow = time.Date(2024, time.June, 20, 12, 0, 0, 0, time.UTC)

type fakeReloader struct {
	err   error
	calls int
}

func (f *fakeReloader) Reload() error {
	f.calls++
	return f.err
}

func testServerWith(t *testing.T, reloader Reloader) (*Server, *store.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat, err := catalog.Parse([]byte(testCatalogYAML))
	require.NoError(t, err)
	eng := engine.New(db, catalog.Static{C: cat}, nil)
	eng.Location = time.UTC
	eng.Now = func() time.Time { return testNow }

	return New(db, eng, Options{Version: "test-version", Reloader: reloader}), db
}

func testServer(t *testing.T) *Server {
	t.Helper()
	srv, _ := testServerWith(t, nil)
	return srv
}

// runDays is twelve distinct run days across April, May and June.
func runDays(user string) string {
	var b strings.Builder
	n := 0
	for _, m := range []time.Month{time.April, time.May, time.June} {
		for _, d := range []int{1, 3, 5, 7} {
			n++
			fmt.Fprintf(&b, `{"id":"r%d","user_id":%q,"type":"habit","subtype":"corrida","timestamp":"%s"}`+"\n",
				n, user, time.Date(2024, m, d, 9, 0, 0, 0, time.UTC).Format(time.RFC3339))
		}
	}
	return b.String()
}

func do(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), "body: %s", w.Body.String())
}

func TestHealthEndpoint(t *testing.T) {
	srv := testServer(t)

	w := do(t, srv, "GET", "/api/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var body map[string]any
	decode(t, w, &body)

	if body["status"] != "ok" {
		t.Errorf("status = %v, want ok", body["status"])
	}
	if body["version"] != "test-version" {
		t.Errorf("version = %v, want test-version", body["version"])
	}
	if body["db"] != true {
		t.Errorf("db = %v, want true", body["db"])
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := testServer(t)
	for _, path := range []string{"/api/sessions", "/api/search?q=x", "/nope"} {
		w := do(t, srv, "GET", path, "")
		if w.Code != http.StatusNotFound {
			t.Errorf("GET %s = %d, want 404", path, w.Code)
		}
	}
	w := do(t, srv, "DELETE", "/api/users/ana/axes", "")
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("DELETE axes = %d, want 405", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("wrap: %w", engine.ErrUnknownWindow), http.StatusBadRequest},
		{engine.ErrEmptyLabel, http.StatusBadRequest},
		{engine.ErrDuplicateLabel, http.StatusBadRequest},
		{engine.ErrLabelNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: %q", engine.ErrUnknownFeedbackContext, "x"), http.StatusBadRequest},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}
	for _, c := range cases {
		if got := statusFor(c.err); got != c.want {
			t.Errorf("statusFor(%v) = %d, want %d", c.err, got, c.want)
		}
	}
}

func TestErrorBodyIsJSON(t *testing.T) {
	srv := testServer(t)
	w := do(t, srv, "GET", "/api/users/ana/axes?window=2w", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	decode(t, w, &body)
	require.Contains(t, body["error"], "unknown window")
}

func TestBodyTooLarge(t *testing.T) {
	srv := testServer(t)
	big := bytes.Repeat([]byte("x"), maxBodyBytes+1)
	req := httptest.NewRequest("POST", "/api/users/ana/activities", bytes.NewReader(big))
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}
