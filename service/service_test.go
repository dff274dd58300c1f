package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethereum-optimism/infra/op-testengine/reporting"
	"github.com/ethereum-optimism/infra/op-testengine/types"
)

func testTree() *reporting.Tree {
	start := time.Now()
	b := reporting.NewTreeBuilder()
	events := []types.Event{
		{Sequence: 1, Path: "", ElementKind: types.KindSession, Kind: types.EventStart, Start: start},
		{Sequence: 2, Path: "suite1", ElementKind: types.KindSuite, Kind: types.EventStart, Start: start},
		{Sequence: 3, Path: "suite1.test1", ElementKind: types.KindTest, Kind: types.EventStart, Start: start},
		{Sequence: 4, Path: "suite1.test1", ElementKind: types.KindTest, Kind: types.EventFinish, Status: types.TestStatusFail, Cause: "boom", Start: start, End: start.Add(time.Millisecond)},
		{Sequence: 5, Path: "suite1", ElementKind: types.KindSuite, Kind: types.EventFinish, Status: types.TestStatusFail, Start: start, End: start.Add(time.Millisecond)},
		{Sequence: 6, Path: "", ElementKind: types.KindSession, Kind: types.EventFinish, Status: types.TestStatusFail, Start: start, End: start.Add(time.Millisecond)},
	}
	for _, ev := range events {
		b.Add(ev)
	}
	return b.Build("run-1")
}

func testService(results ResultsFunc) *Service {
	return New(log.NewLogger(log.DiscardHandler()), "127.0.0.1:0", results)
}

func TestRoutes(t *testing.T) {
	router := testService(testTree).Router()

	tests := []struct {
		name       string
		method     string
		path       string
		wantStatus int
		wantBody   string
	}{
		{name: "healthz", method: http.MethodGet, path: "/healthz", wantStatus: http.StatusOK, wantBody: "OK"},
		{name: "metrics", method: http.MethodGet, path: "/metrics", wantStatus: http.StatusOK, wantBody: "go_goroutines"},
		{name: "results", method: http.MethodGet, path: "/results", wantStatus: http.StatusOK, wantBody: `"runId": "run-1"`},
		{name: "element", method: http.MethodGet, path: "/results/suite1.test1", wantStatus: http.StatusOK, wantBody: `"cause": "boom"`},
		{name: "unknown element", method: http.MethodGet, path: "/results/suite9", wantStatus: http.StatusNotFound, wantBody: "unknown element suite9"},
		{name: "wrong method", method: http.MethodPost, path: "/results", wantStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestResultsBeforeFirstSession(t *testing.T) {
	router := testService(func() *reporting.Tree { return nil }).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/results", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartShutdown(t *testing.T) {
	svc := testService(testTree)
	require.NoError(t, svc.Start(context.Background()))
	require.Error(t, svc.Start(context.Background()), "second start")

	resp, err := http.Get("http://" + svc.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, "OK", string(body))

	require.NoError(t, svc.Shutdown())
	_, err = http.Get("http://" + svc.Addr() + "/healthz")
	assert.Error(t, err)
}

func TestShutdownOnContextCancel(t *testing.T) {
	svc := testService(testTree)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))
	cancel()
	require.NoError(t, svc.Shutdown())
}

func TestShutdownWithoutStart(t *testing.T) {
	assert.NoError(t, testService(nil).Shutdown())
}
