// Package acquire runs the acquisition loop that regenerates or integrates
// synthetic frames under the Idle/Acquiring/Aborted state machine.
package acquire

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/banshee-data/simpeaks/internal/frame"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/peaks"
)

// ImageMode controls how many frames a run produces.
type ImageMode int

const (
	ImageSingle ImageMode = iota
	ImageMultiple
	ImageContinuous
)

var imageModeNames = map[ImageMode]string{
	ImageSingle:     "Single",
	ImageMultiple:   "Multiple",
	ImageContinuous: "Continuous",
}

func (m ImageMode) String() string {
	if n, ok := imageModeNames[m]; ok {
		return n
	}
	return fmt.Sprintf("ImageMode(%d)", int(m))
}

// Valid reports whether m is a defined mode.
func (m ImageMode) Valid() bool {
	_, ok := imageModeNames[m]
	return ok
}

// ParseImageMode accepts "single", "multiple" or "continuous" in any case.
func ParseImageMode(name string) (ImageMode, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for m, n := range imageModeNames {
		if strings.ToLower(n) == key {
			return m, nil
		}
	}
	return ImageSingle, fmt.Errorf("unknown image mode %q", name)
}

func (m ImageMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *ImageMode) UnmarshalText(text []byte) error {
	v, err := ParseImageMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// State is the detector state reported to clients.
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateAcquiring:
		return "Acquiring"
	case StateAborted:
		return "Aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// ParseState parses a state name as produced by String.
func ParseState(name string) (State, error) {
	for _, s := range []State{StateIdle, StateAcquiring, StateAborted} {
		if strings.EqualFold(s.String(), strings.TrimSpace(name)) {
			return s, nil
		}
	}
	return StateIdle, fmt.Errorf("unknown state %q", name)
}

// Settings is the full engine configuration. It is read once at the start
// of each frame.
type Settings struct {
	SizeX         int
	SizeY         int // 1 or less produces 1D frames
	DataType      ndarray.DataType
	ImageMode     ImageMode
	NumImages     int
	AcquirePeriod time.Duration

	// ArrayCallbacks enables publishing of each completed frame.
	ArrayCallbacks bool

	// Frame holds the background, the peak slots, noise and the integrate
	// flag handed to the compositor.
	Frame frame.Settings
}

// Dims returns the frame dimensions implied by the sizes.
func (s Settings) Dims() []int {
	if s.SizeY <= 1 {
		return []int{s.SizeX}
	}
	return []int{s.SizeX, s.SizeY}
}

// Clone returns a copy that shares no slices with s.
func (s Settings) Clone() Settings {
	s.Frame.Peaks = append([]peaks.Peak(nil), s.Frame.Peaks...)
	return s
}

// Limits are the fixed engine bounds from construction.
type Limits struct {
	MaxSizeX int
	MaxSizeY int
	MaxPeaks int
}

// normalize clamps s into the legal ranges. Values that cannot be clamped,
// such as an unknown data type, fall back to prev.
func (s *Settings) normalize(lim Limits, prev Settings) {
	s.SizeX = clampInt(s.SizeX, 1, lim.MaxSizeX)
	s.SizeY = clampInt(s.SizeY, 1, lim.MaxSizeY)
	if !s.DataType.Valid() {
		s.DataType = prev.DataType
	}
	if !s.ImageMode.Valid() {
		s.ImageMode = prev.ImageMode
	}
	if s.NumImages < 1 {
		s.NumImages = 1
	}
	if s.AcquirePeriod < 0 {
		s.AcquirePeriod = 0
	}

	switch {
	case len(s.Frame.Peaks) > lim.MaxPeaks:
		s.Frame.Peaks = s.Frame.Peaks[:lim.MaxPeaks]
	case len(s.Frame.Peaks) < lim.MaxPeaks:
		s.Frame.Peaks = append(s.Frame.Peaks, make([]peaks.Peak, lim.MaxPeaks-len(s.Frame.Peaks))...)
	}
	for i := range s.Frame.Peaks {
		normalizePeak(&s.Frame.Peaks[i])
	}
	s.Frame.Noise = s.Frame.Noise.Normalize()
}

func normalizePeak(p *peaks.Peak) {
	p.Correlation = math.Max(-1, math.Min(1, p.Correlation))
	if p.MinX < 0 {
		p.MinX = 0
	}
	if p.MinY < 0 {
		p.MinY = 0
	}
	if p.MaxX < 0 {
		p.MaxX = 0
	}
	if p.MaxY < 0 {
		p.MaxY = 0
	}
}

func clampInt(v, lo, hi int) int {
	if v > hi {
		v = hi
	}
	if v < lo {
		v = lo
	}
	return v
}

func defaultSettings(lim Limits) Settings {
	return Settings{
		SizeX:          lim.MaxSizeX,
		SizeY:          1,
		DataType:       ndarray.Float64,
		ImageMode:      ImageContinuous,
		NumImages:      1,
		AcquirePeriod:  time.Second,
		ArrayCallbacks: true,
		Frame: frame.Settings{
			Peaks: make([]peaks.Peak, lim.MaxPeaks),
		},
	}
}
