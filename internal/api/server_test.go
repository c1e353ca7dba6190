package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/config"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/publish"
)

type fakeRuns struct {
	runs []acquire.RunInfo
	err  error
}

func (f *fakeRuns) RecentRuns(_ context.Context, limit int) ([]acquire.RunInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.runs[:min(limit, len(f.runs))], nil
}

type testEnv struct {
	engine *acquire.Engine
	hub    *publish.Hub
	server *Server
	mux    *http.ServeMux
}

func newTestEnv(t *testing.T, runs RunLister) *testEnv {
	t.Helper()
	hub := publish.NewHub(publish.DefaultConfig())
	hub.Start()
	eng := acquire.New(acquire.Options{MaxSizeX: 64, MaxSizeY: 16, MaxPeaks: 4, Publisher: hub, Seed: 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
		hub.Stop()
	})

	srv := NewServer(Options{Engine: eng, Frames: hub, Runs: runs, AssetsHost: "/assets/"})
	return &testEnv{engine: eng, hub: hub, server: srv, mux: srv.ServeMux()}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	e.mux.ServeHTTP(w, req)
	return w
}

// acquireOne runs a single-image acquisition and waits for its frame.
func (e *testEnv) acquireOne(t *testing.T, cfg string) *ndarray.Array {
	t.Helper()
	w := e.do(t, http.MethodPut, "/api/config", cfg)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	before := e.hub.Stats().Published
	w = e.do(t, http.MethodPost, "/api/acquire/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Eventually(t, func() bool {
		return e.hub.Stats().Published > before && e.engine.State() == acquire.StateIdle
	}, 5*time.Second, 5*time.Millisecond)
	return e.hub.Latest()
}

const singleShot = `{"size_x": 8, "size_y": 1, "image_mode": "single", "acquire_period": "0s",
	"background": {"x": {"kind": "polynomial", "c0": 2}}}`

func TestStatus(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Idle", got["state"])
	assert.Equal(t, acquire.MessageIdle, got["message"])
	assert.Contains(t, got, "publisher")

	w = env.do(t, http.MethodPost, "/api/status", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
}

func TestReport(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "state: Idle")
	assert.NotContains(t, w.Body.String(), "max size:")

	w = env.do(t, http.MethodGet, "/api/report?details=1", "")
	assert.Contains(t, w.Body.String(), "max size: 64 x 16")

	w = env.do(t, http.MethodGet, "/api/report?details=-1", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/api/report?details=lots", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConfig_GetPut(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPut, "/api/config",
		`{"size_x": 1000, "data_type": "uint8", "peaks": [{"slot": 1, "type_1d": "gaussian", "pos_x": 3, "fwhm_x": 2, "amplitude": 5}]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var cfg config.SimConfig
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cfg))
	require.NotNil(t, cfg.SizeX)
	assert.Equal(t, 64, *cfg.SizeX, "size is clamped to the maximum")
	assert.Equal(t, ndarray.UInt8, cfg.GetDataType())
	require.Len(t, cfg.Peaks, 1)
	assert.Equal(t, 1, cfg.Peaks[0].Slot)

	w = env.do(t, http.MethodGet, "/api/config", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"data_type":"UInt8"`)
	assert.Equal(t, ndarray.UInt8, env.engine.Settings().DataType)
}

func TestConfig_Rejects(t *testing.T) {
	env := newTestEnv(t, nil)
	before := env.engine.Settings()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"malformed", `{"size_x":`, http.StatusBadRequest},
		{"unknown field", `{"colour": "red"}`, http.StatusBadRequest},
		{"slot out of range", `{"size_x": 10, "peaks": [{"slot": 9, "amplitude": 1}]}`, http.StatusBadRequest},
		{"too large", `{"size_x": 1` + strings.Repeat(" ", maxConfigBody) + `}`, http.StatusRequestEntityTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/config", tt.body)
			assert.Equal(t, tt.code, w.Code, w.Body.String())
		})
	}
	// Failed updates leave settings untouched.
	assert.Equal(t, before.SizeX, env.engine.Settings().SizeX)

	w := env.do(t, http.MethodDelete, "/api/config", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFrame_NotYetPublished(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/api/frame", "/api/frame/plot.png", "/api/frame/chart"} {
		w := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
	}
}

func TestFrame_NonFiniteValues(t *testing.T) {
	env := newTestEnv(t, nil)
	a, err := ndarray.New([]int{3, 2}, ndarray.Float64)
	require.NoError(t, err)
	a.Accumulate([]float64{1, math.NaN(), 2, math.Inf(1), 0, 5})
	env.hub.Publish(a)

	for _, path := range []string{"/api/frame", "/api/frame/plot.png", "/api/frame/chart"} {
		w := env.do(t, http.MethodGet, path, "")
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
	ev := summarize(a)
	assert.Equal(t, 0.0, ev.Min)
	assert.Equal(t, 5.0, ev.Max)
	_, err = json.Marshal(ev)
	assert.NoError(t, err)
}

func TestAcquireAndFetchFrame(t *testing.T) {
	env := newTestEnv(t, nil)
	a := env.acquireOne(t, singleShot)
	require.NotNil(t, a)

	w := env.do(t, http.MethodGet, "/api/frame", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got struct {
		UniqueID    int       `json:"unique_id"`
		ImageNumber int       `json:"image_number"`
		Dims        []int     `json:"dims"`
		DataType    string    `json:"data_type"`
		Data        []float64 `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, a.UniqueID, got.UniqueID)
	assert.Equal(t, 1, got.ImageNumber)
	assert.Equal(t, []int{8}, got.Dims)
	assert.Equal(t, "Float64", got.DataType)
	assert.Equal(t, []float64{2, 2, 2, 2, 2, 2, 2, 2}, got.Data)

	w = env.do(t, http.MethodGet, "/api/frame/plot.png", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	_, err := png.Decode(w.Body)
	assert.NoError(t, err)

	w = env.do(t, http.MethodGet, "/api/frame/chart", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/assets/echarts.min.js")

	w = env.do(t, http.MethodGet, "/api/frame/chart?max_points=x", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var st map[string]any
	w = env.do(t, http.MethodGet, "/api/status", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.EqualValues(t, 1, st["array_counter"])
}

func TestAcquireStopAndReset(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(t, http.MethodPut, "/api/config", `{"image_mode": "continuous", "acquire_period": "10ms"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/acquire/start", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), acquire.MessageRunning)

	w = env.do(t, http.MethodPost, "/api/acquire/reset", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost, "/api/acquire/stop", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"state":"Idle"`)

	w = env.do(t, http.MethodGet, "/api/acquire/start", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestFrameEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	ts := httptest.NewServer(LoggingMiddleware(env.mux))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/api/frame/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan())
	assert.True(t, strings.HasPrefix(scanner.Text(), ": ping"))

	require.Eventually(t, func() bool { return env.hub.Stats().Clients == 1 }, 2*time.Second, 5*time.Millisecond)
	a, err := ndarray.New([]int{3}, ndarray.Int32)
	require.NoError(t, err)
	a.Accumulate([]float64{-4, 0, 9})
	a.UniqueID = 77
	env.hub.Publish(a)

	var data string
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
			data = strings.TrimPrefix(line, "data: ")
			break
		}
	}
	var ev frameEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, frameEvent{UniqueID: 77, Dims: []int{3}, DataType: "Int32", Min: -4, Max: 9}, ev)
}

func TestRuns(t *testing.T) {
	disabled := newTestEnv(t, nil)
	w := disabled.do(t, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	runs := &fakeRuns{runs: []acquire.RunInfo{
		{ID: "b", Mode: acquire.ImageMultiple, SizeX: 4, SizeY: 1, DataType: ndarray.Int16, NumImages: 3,
			Started: time.Unix(20, 0), Frames: 1, FinalState: acquire.StateAcquiring},
		{ID: "a", Mode: acquire.ImageSingle, SizeX: 4, SizeY: 1, DataType: ndarray.Float64, NumImages: 1,
			Started: time.Unix(10, 0), Ended: time.Unix(11, 0), Frames: 1, FinalState: acquire.StateIdle},
	}}
	env := newTestEnv(t, runs)

	w = env.do(t, http.MethodGet, "/api/runs?limit=1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var got []runResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "Multiple", got[0].Mode)
	assert.Equal(t, "Int16", got[0].DataType)
	assert.True(t, got[0].Ended.IsZero())
	assert.NotContains(t, w.Body.String(), `"ended"`)

	w = env.do(t, http.MethodGet, "/api/runs?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	runs.err = errors.New("disk on fire")
	w = env.do(t, http.MethodGet, "/api/runs", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestAttachAdminRoutes(t *testing.T) {
	env := newTestEnv(t, nil)
	mux := http.NewServeMux()
	env.server.AttachAdminRoutes(mux)

	for _, path := range []string{"/debug/", "/debug/report", "/debug/chart"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, req)
		assert.NotEqual(t, http.StatusNotFound, w.Code, path)
	}
}

func TestJSONFloats(t *testing.T) {
	b, err := json.Marshal(jsonFloats{1, 0.5, math.NaN(), math.Inf(-1), -3e20})
	require.NoError(t, err)
	assert.Equal(t, `[1,0.5,null,null,-3e+20]`, string(b))

	b, err = json.Marshal(jsonFloats{})
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(b))
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"304"+colorReset, statusCodeColor(304))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "101", statusCodeColor(101))
}
