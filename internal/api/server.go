// Package api exposes the simulation engine over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/config"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/publish"
	"github.com/banshee-data/simpeaks/internal/render"
)

// maxConfigBody matches the config file size limit.
const maxConfigBody = 1 << 20

// Controller is the engine surface the API drives.
type Controller interface {
	Start()
	Stop()
	ResetIntegration()
	Configure(func(*acquire.Settings))
	Settings() acquire.Settings
	Status() acquire.Status
	Report(w io.Writer, details int) error
}

// FrameSource provides published frames.
type FrameSource interface {
	Latest() *ndarray.Array
	Subscribe() (id string, frames <-chan *ndarray.Array, ok bool)
	Unsubscribe(id string)
	Stats() publish.Stats
}

// RunLister reads run history.
type RunLister interface {
	RecentRuns(ctx context.Context, limit int) ([]acquire.RunInfo, error)
}

// Options configures a Server. Runs may be nil when no database is used.
type Options struct {
	Engine     Controller
	Frames     FrameSource
	Runs       RunLister
	AssetsHost string
}

// Server holds the HTTP handlers.
type Server struct {
	engine     Controller
	frames     FrameSource
	runs       RunLister
	assetsHost string
}

// NewServer creates a Server.
func NewServer(o Options) *Server {
	return &Server{
		engine:     o.Engine,
		frames:     o.Frames,
		runs:       o.Runs,
		assetsHost: o.AssetsHost,
	}
}

// ServeMux returns a mux with all API routes registered.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.showStatus)
	mux.HandleFunc("/api/report", s.showReport)
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/acquire/start", s.acquireStart)
	mux.HandleFunc("/api/acquire/stop", s.acquireStop)
	mux.HandleFunc("/api/acquire/reset", s.acquireReset)
	mux.HandleFunc("/api/frame", s.showFrame)
	mux.HandleFunc("/api/frame/plot.png", s.framePlot)
	mux.HandleFunc("/api/frame/chart", s.frameChart)
	mux.HandleFunc("/api/frame/events", s.frameEvents)
	mux.HandleFunc("/api/runs", s.listRuns)
	return mux
}

type statusResponse struct {
	acquire.Status
	Publisher publish.Stats `json:"publisher"`
}

func (s *Server) showStatus(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status:    s.engine.Status(),
		Publisher: s.frames.Stats(),
	})
}

func (s *Server) showReport(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	details, err := intParam(r, "details", 0)
	if err != nil || details < 0 {
		writeJSONError(w, http.StatusBadRequest, "details must be a non-negative integer")
		return
	}
	var buf bytes.Buffer
	if err := s.engine.Report(&buf, details); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to build report: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut, http.MethodPost) {
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, config.FromSettings(s.engine.Settings()))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigBody+1))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("failed to read body: %v", err))
		return
	}
	if len(body) > maxConfigBody {
		writeJSONError(w, http.StatusRequestEntityTooLarge, "config body too large")
		return
	}
	cfg, err := config.ParseSimConfig(body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	if applyErr := cfg.ApplyTo(s.engine); applyErr != nil {
		status := http.StatusInternalServerError
		if errors.Is(applyErr, acquire.ErrSlotOutOfRange) {
			status = http.StatusBadRequest
		}
		writeJSONError(w, status, applyErr.Error())
		return
	}
	writeJSON(w, http.StatusOK, config.FromSettings(s.engine.Settings()))
}

func (s *Server) acquireStart(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	s.engine.Start()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) acquireStop(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	s.engine.Stop()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

func (s *Server) acquireReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	s.engine.ResetIntegration()
	writeJSON(w, http.StatusOK, s.engine.Status())
}

type frameResponse struct {
	UniqueID    int        `json:"unique_id"`
	ImageNumber int        `json:"image_number"`
	TimeStamp   time.Time  `json:"timestamp,omitzero"`
	ElapsedNs   int64      `json:"elapsed_ns"`
	Dims        []int      `json:"dims"`
	DataType    string     `json:"data_type"`
	Data        jsonFloats `json:"data"`
}

func (s *Server) latestFrame(w http.ResponseWriter) *ndarray.Array {
	a := s.frames.Latest()
	if a == nil {
		writeJSONError(w, http.StatusNotFound, "no frame published yet")
	}
	return a
}

func (s *Server) showFrame(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	a := s.latestFrame(w)
	if a == nil {
		return
	}
	writeJSON(w, http.StatusOK, frameResponse{
		UniqueID:    a.UniqueID,
		ImageNumber: a.ImageNumber,
		TimeStamp:   a.TimeStamp,
		ElapsedNs:   a.Elapsed.Nanoseconds(),
		Dims:        a.Dims,
		DataType:    a.DataType.String(),
		Data:        a.Float64s(),
	})
}

func (s *Server) framePlot(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	a := s.latestFrame(w)
	if a == nil {
		return
	}
	var buf bytes.Buffer
	if err := render.PNG(&buf, a, render.PlotOptions{}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render plot: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

func (s *Server) frameChart(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	a := s.latestFrame(w)
	if a == nil {
		return
	}
	maxPoints, err := intParam(r, "max_points", 0)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "max_points must be an integer")
		return
	}
	var buf bytes.Buffer
	if err := render.ChartHTML(&buf, a, render.ChartOptions{AssetsHost: s.assetsHost, MaxPoints: maxPoints}); err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

type runResponse struct {
	ID         string    `json:"id"`
	Mode       string    `json:"image_mode"`
	SizeX      int       `json:"size_x"`
	SizeY      int       `json:"size_y"`
	DataType   string    `json:"data_type"`
	NumImages  int       `json:"num_images"`
	Started    time.Time `json:"started"`
	Ended      time.Time `json:"ended,omitzero"`
	Frames     int       `json:"frames"`
	FinalState string    `json:"final_state"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	if s.runs == nil {
		writeJSONError(w, http.StatusServiceUnavailable, "run history is disabled")
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil || limit <= 0 {
		writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	runs, err := s.runs.RecentRuns(r.Context(), limit)
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list runs: %v", err))
		return
	}
	out := make([]runResponse, len(runs))
	for i, run := range runs {
		out[i] = runResponse{
			ID:         run.ID,
			Mode:       run.Mode.String(),
			SizeX:      run.SizeX,
			SizeY:      run.SizeY,
			DataType:   run.DataType.String(),
			NumImages:  run.NumImages,
			Started:    run.Started,
			Ended:      run.Ended,
			Frames:     run.Frames,
			FinalState: run.FinalState.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}
