package acquire

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/simpeaks/internal/frame"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/peaks"
	"github.com/banshee-data/simpeaks/internal/timeutil"
)

// ErrSlotOutOfRange is returned for a peak slot outside [0, MaxPeaks).
var ErrSlotOutOfRange = errors.New("acquire: peak slot out of range")

// Default limits applied when Options leaves them unset.
const (
	DefaultMaxSize  = 1024
	DefaultMaxPeaks = 10
)

// Allocator supplies frame buffers. *ndarray.Pool satisfies it.
type Allocator interface {
	Alloc(dims []int, dt ndarray.DataType) (*ndarray.Array, error)
	Release(a *ndarray.Array)
}

// Publisher receives a private copy of every completed frame when array
// callbacks are enabled. Publish must not block.
type Publisher interface {
	Publish(a *ndarray.Array)
}

// RunInfo describes one acquisition run.
type RunInfo struct {
	ID         string
	Mode       ImageMode
	SizeX      int
	SizeY      int
	DataType   ndarray.DataType
	NumImages  int
	Started    time.Time
	Ended      time.Time // zero while running
	Frames     int
	FinalState State
}

// RunRecorder persists run boundaries. Errors are logged and otherwise
// ignored by the engine.
type RunRecorder interface {
	RecordRunStart(RunInfo) error
	RecordRunEnd(RunInfo) error
}

// Options configures an Engine. Zero values select defaults.
type Options struct {
	MaxSizeX int
	MaxSizeY int
	MaxPeaks int

	Pool      Allocator
	Publisher Publisher
	Recorder  RunRecorder
	Clock     timeutil.Clock

	// Seed for the noise stream.
	Seed uint64
}

// Engine owns the settings, the frame buffer and the worker loop. All
// fields below mu are guarded by it.
type Engine struct {
	limits    Limits
	pool      Allocator
	publisher Publisher
	recorder  RunRecorder
	clock     timeutil.Clock
	comp      *frame.Compositor

	// Binary events. Repeated signals before the worker wakes coalesce.
	startCh chan struct{}
	stopCh  chan struct{}

	mu            sync.Mutex
	settings      Settings
	state         State
	acquiring     bool
	resetPending  bool
	startGen      uint64
	runGen        uint64
	buf           *ndarray.Array
	arrayCounter  int
	imagesCounter int
	allocFailures int
	allocErr      error
	run           RunInfo
	lastFrame     time.Time
}

// New builds an engine with default settings and MaxPeaks empty peak
// slots. Call Run to start the worker.
func New(opts Options) *Engine {
	lim := Limits{
		MaxSizeX: opts.MaxSizeX,
		MaxSizeY: opts.MaxSizeY,
		MaxPeaks: opts.MaxPeaks,
	}
	if lim.MaxSizeX <= 0 {
		lim.MaxSizeX = DefaultMaxSize
	}
	if lim.MaxSizeY <= 0 {
		lim.MaxSizeY = DefaultMaxSize
	}
	if lim.MaxPeaks <= 0 {
		lim.MaxPeaks = DefaultMaxPeaks
	}

	e := &Engine{
		limits:    lim,
		pool:      opts.Pool,
		publisher: opts.Publisher,
		recorder:  opts.Recorder,
		clock:     opts.Clock,
		comp:      frame.NewCompositor(opts.Seed),
		startCh:   make(chan struct{}, 1),
		stopCh:    make(chan struct{}, 1),
		settings:  defaultSettings(lim),
		state:     StateIdle,
	}
	if e.pool == nil {
		e.pool = ndarray.NewPool(0, 0)
	}
	if e.clock == nil {
		e.clock = timeutil.RealClock{}
	}
	return e
}

// Limits returns the construction-time bounds.
func (e *Engine) Limits() Limits { return e.limits }

// Start requests a new run. It does nothing while a run is in progress.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.acquiring {
		return
	}
	e.acquiring = true
	e.startGen++
	e.state = StateAcquiring
	signal(e.startCh)
}

// Stop ends the current run. A continuous run returns to Idle; a bounded
// run that has not finished is Aborted. Stop does nothing while idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.acquiring {
		return
	}
	e.acquiring = false
	e.state = stoppedState(e.settings.ImageMode)
	signal(e.stopCh)
}

func stoppedState(mode ImageMode) State {
	if mode == ImageContinuous {
		return StateIdle
	}
	return StateAborted
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func drain(ch chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

// Configure applies fn to a copy of the settings and installs the
// normalized result. The worker picks the change up on its next frame.
func (e *Engine) Configure(fn func(*Settings)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	next := e.settings.Clone()
	fn(&next)
	next.normalize(e.limits, e.settings)
	e.settings = next
}

// SetPeak replaces one peak slot.
func (e *Engine) SetPeak(slot int, p peaks.Peak) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot < 0 || slot >= len(e.settings.Frame.Peaks) {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSlotOutOfRange, slot, len(e.settings.Frame.Peaks))
	}
	normalizePeak(&p)
	e.settings.Frame.Peaks[slot] = p
	return nil
}

// Peak returns one peak slot.
func (e *Engine) Peak(slot int) (peaks.Peak, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slot < 0 || slot >= len(e.settings.Frame.Peaks) {
		return peaks.Peak{}, fmt.Errorf("%w: %d not in [0,%d)", ErrSlotOutOfRange, slot, len(e.settings.Frame.Peaks))
	}
	return e.settings.Frame.Peaks[slot], nil
}

// ResetIntegration zeroes the buffer before the next frame is composed.
func (e *Engine) ResetIntegration() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resetPending = true
}

// Settings returns a copy of the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.Clone()
}

// State returns the current detector state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
