package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

type requestLog struct {
	mu   sync.Mutex
	reqs []recordedRequest
}

func (l *requestLog) all() []recordedRequest {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]recordedRequest(nil), l.reqs...)
}

// fakeAPI answers every request with the canned response for its method and
// path and records what it received.
func fakeAPI(t *testing.T, responses map[string]func(w http.ResponseWriter)) (*httptest.Server, *requestLog) {
	t.Helper()
	seen := &requestLog{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			assert.NoError(t, json.Unmarshal(b, &rec.Body))
		}
		seen.mu.Lock()
		seen.reqs = append(seen.reqs, rec)
		seen.mu.Unlock()

		respond, ok := responses[r.Method+" "+r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		respond(w)
	}))
	t.Cleanup(ts.Close)
	return ts, seen
}

func envelopeJSON(status int, body string) func(w http.ResponseWriter) {
	return func(w http.ResponseWriter) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func execute(t *testing.T, server string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", server}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestRun(t *testing.T) {
	ts, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/allocations/run": envelopeJSON(http.StatusOK, `{"code":2000,"type":"success","message":"ok","result":{"run_id":"r1","group_count":3}}`),
	})

	out, err := execute(t, ts.URL, "run", "--strategy", "2", "--labels", "A,B", "--date", "2026-12-14")
	require.NoError(t, err)
	assert.Contains(t, out, `"run_id": "r1"`)

	reqs := seen.all()
	require.Len(t, reqs, 1)
	body := reqs[0].Body
	assert.Equal(t, float64(2), body["strategy_id"])
	assert.Equal(t, []any{"A", "B"}, body["course_labels"])
	assert.Equal(t, "2026-12-14", body["exam_date"])
	assert.NotContains(t, body, "roster_limit")
}

func TestPlace_ReportsDomainError(t *testing.T) {
	ts, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/placements": envelopeJSON(http.StatusConflict, `{"code":-1,"type":"error","message":"RoomAlreadyOccupied (room 3)","kind":"RoomAlreadyOccupied","id":"3","result":null}`),
	})

	_, err := execute(t, ts.URL, "place", "--course", "1", "--room", "3")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "RoomAlreadyOccupied", apiErr.Kind)
	assert.Equal(t, "3", apiErr.ID)

	reqs := seen.all()
	require.Len(t, reqs, 1)
	assert.NotContains(t, reqs[0].Body, "auto_enroll")
}

func TestPlace_AutoEnrollFlag(t *testing.T) {
	ts, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/placements": envelopeJSON(http.StatusCreated, `{"code":2000,"type":"success","message":"ok","result":{"placed_count":20}}`),
	})

	_, err := execute(t, ts.URL, "place", "--course", "3", "--room", "2", "--auto-enroll")
	require.NoError(t, err)
	assert.Equal(t, true, seen.all()[0].Body["auto_enroll"])
}

func TestUnplace(t *testing.T) {
	ts, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"DELETE /api/placements": envelopeJSON(http.StatusOK, `{"code":2000,"type":"success","message":"ok","result":{"removed":30}}`),
	})

	out, err := execute(t, ts.URL, "unplace", "--course", "1", "--room", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"removed": 30`)
	assert.Equal(t, "course_id=1&room_id=3", seen.all()[0].Query)
}

func TestStrategies(t *testing.T) {
	ts, seen := fakeAPI(t, map[string]func(http.ResponseWriter){
		"POST /api/strategies/7/activate": envelopeJSON(http.StatusOK, `{"code":2000,"type":"success","message":"ok","result":{"id":7,"active":true}}`),
		"POST /api/strategies":            envelopeJSON(http.StatusCreated, `{"code":2000,"type":"success","message":"ok","result":{"id":8}}`),
	})

	_, err := execute(t, ts.URL, "strategies", "activate", "7")
	require.NoError(t, err)

	_, err = execute(t, ts.URL, "strategies", "create", "Spread", "--type", "round_robin", "--rules", "balance_load")
	require.NoError(t, err)

	_, err = execute(t, ts.URL, "strategies", "delete", "abc")
	assert.ErrorContains(t, err, "invalid id")

	reqs := seen.all()
	require.Len(t, reqs, 2)
	assert.Equal(t, "/api/strategies/7/activate", reqs[0].Path)
	assert.Equal(t, "Spread", reqs[1].Body["name"])
	assert.Equal(t, "round_robin", reqs[1].Body["type"])
	assert.Equal(t, []any{"balance_load"}, reqs[1].Body["rules"])
}

func TestAssignmentsExport(t *testing.T) {
	payload := []byte("PK\x03\x04 fake xlsx")
	ts, _ := fakeAPI(t, map[string]func(http.ResponseWriter){
		"GET /api/assignments/export": func(w http.ResponseWriter) {
			w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
			_, _ = w.Write(payload)
		},
	})

	path := filepath.Join(t.TempDir(), "ledger.xlsx")
	out, err := execute(t, ts.URL, "assignments", "--export", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestUnknownRoute(t *testing.T) {
	ts, _ := fakeAPI(t, nil)

	_, err := execute(t, ts.URL, "clear")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not Found", apiErr.Message)
}
