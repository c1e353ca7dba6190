package acquire

import (
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/simpeaks/internal/frame"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/version"
)

// Status messages shown alongside the state.
const (
	MessageRunning = "Simulation Running"
	MessageIdle    = "Simulation Idle"
)

// Status is a snapshot of the run counters.
type Status struct {
	State         State              `json:"state"`
	Message       string             `json:"message"`
	Acquiring     bool               `json:"acquiring"`
	ArrayCounter  int                `json:"array_counter"`
	ImagesCounter int                `json:"images_counter"`
	AllocFailures int                `json:"alloc_failures"`
	AllocError    string             `json:"alloc_error,omitempty"`
	RunID         string             `json:"run_id,omitempty"`
	RunStarted    time.Time          `json:"run_started,omitzero"`
	LastFrame     time.Time          `json:"last_frame,omitzero"`
	Pool          *ndarray.PoolStats `json:"pool,omitempty"`
}

type poolStatser interface {
	Stats() ndarray.PoolStats
}

// Status returns the current counters.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.statusLocked()
}

// AllocError returns the most recent buffer allocation failure, or nil.
func (e *Engine) AllocError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.allocErr
}

func (e *Engine) statusLocked() Status {
	st := Status{
		State:         e.state,
		Message:       MessageIdle,
		Acquiring:     e.acquiring,
		ArrayCounter:  e.arrayCounter,
		ImagesCounter: e.imagesCounter,
		AllocFailures: e.allocFailures,
		RunID:         e.run.ID,
		RunStarted:    e.run.Started,
		LastFrame:     e.lastFrame,
	}
	if e.acquiring {
		st.Message = MessageRunning
	}
	if e.allocErr != nil {
		st.AllocError = e.allocErr.Error()
	}
	if ps, ok := e.pool.(poolStatser); ok {
		stats := ps.Stats()
		st.Pool = &stats
	}
	return st
}

// Report writes a human readable dump. details 0 prints identity and
// counters, 1 adds limits, settings and enabled peaks, 2 or more lists
// every peak slot.
func (e *Engine) Report(w io.Writer, details int) error {
	e.mu.Lock()
	st := e.statusLocked()
	s := e.settings.Clone()
	e.mu.Unlock()

	pw := &reportWriter{w: w}
	pw.printf("%s\n", version.String())
	pw.printf("  state: %s (%s)\n", st.State, st.Message)
	pw.printf("  array counter: %d  images counter: %d\n", st.ArrayCounter, st.ImagesCounter)
	if st.RunID != "" {
		pw.printf("  run: %s started %s\n", st.RunID, st.RunStarted.Format(time.RFC3339))
	}
	if details <= 0 {
		return pw.err
	}

	pw.printf("  max size: %d x %d  max peaks: %d\n", e.limits.MaxSizeX, e.limits.MaxSizeY, e.limits.MaxPeaks)
	if st.Pool != nil {
		pw.printf("  pool: %d in use, %d free, %d bytes\n", st.Pool.InUse, st.Pool.Free, st.Pool.Bytes)
	}
	pw.printf("  size: %v  data type: %s\n", s.Dims(), s.DataType)
	pw.printf("  image mode: %s  num images: %d  acquire period: %s\n", s.ImageMode, s.NumImages, s.AcquirePeriod)
	pw.printf("  integrate: %t  array callbacks: %t\n", s.Frame.Integrate, s.ArrayCallbacks)
	pw.printf("  background x: %s\n", axisString(s.Frame.Background.X))
	if s.SizeY > 1 {
		pw.printf("  background y: %s\n", axisString(s.Frame.Background.Y))
	}
	n := s.Frame.Noise
	pw.printf("  noise: %s level=%g", n.Kind, n.Level)
	if n.Clamp {
		pw.printf(" clamp=[%g,%g]", n.Lower, n.Upper)
	}
	pw.printf("\n")

	twoD := s.SizeY > 1
	for i, p := range s.Frame.Peaks {
		enabled := (twoD && p.Enabled2D()) || (!twoD && p.Enabled1D())
		if !enabled && details < 2 {
			continue
		}
		shape := p.Type1D.String()
		if twoD {
			shape = p.Type2D.String()
		}
		pw.printf("  peak %d: %s pos=(%g,%g) fwhm=(%g,%g) amp=%g rho=%g p1=%g p2=%g bins=[%d,%d]x[%d,%d]\n",
			i, shape, p.PosX, p.PosY, p.FWHMX, p.FWHMY, p.Amplitude, p.Correlation, p.P1, p.P2,
			p.MinX, p.MaxX, p.MinY, p.MaxY)
	}
	return pw.err
}

func axisString(a frame.Axis) string {
	return fmt.Sprintf("%s c=[%g %g %g %g] shift=%g", a.Kind, a.C0, a.C1, a.C2, a.C3, a.Shift)
}

// reportWriter keeps the first write error so Report can print without
// checking every line.
type reportWriter struct {
	w   io.Writer
	err error
}

func (r *reportWriter) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}
