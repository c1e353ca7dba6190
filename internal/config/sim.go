package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/frame"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/peaks"
)

// DefaultConfigPath is the checked-in default configuration.
const DefaultConfigPath = "config/simpeaks.defaults.json"

// SimConfig is the JSON form of the engine settings. The same schema is
// used for the startup file and for PUT /api/config, so every field is
// optional and only the fields present are applied.
type SimConfig struct {
	SizeX          *int    `json:"size_x,omitempty"`
	SizeY          *int    `json:"size_y,omitempty"`
	DataType       *string `json:"data_type,omitempty"`  // "UInt16", "Float64", ...
	ImageMode      *string `json:"image_mode,omitempty"` // "single", "multiple" or "continuous"
	NumImages      *int    `json:"num_images,omitempty"`
	AcquirePeriod  *string `json:"acquire_period,omitempty"` // duration string like "250ms"
	Integrate      *bool   `json:"integrate,omitempty"`
	ArrayCallbacks *bool   `json:"array_callbacks,omitempty"`

	Background *BackgroundConfig `json:"background,omitempty"`
	Noise      *NoiseConfig      `json:"noise,omitempty"`
	Peaks      []PeakConfig      `json:"peaks,omitempty"`
}

// BackgroundConfig holds the per-axis background forms.
type BackgroundConfig struct {
	X *AxisConfig `json:"x,omitempty"`
	Y *AxisConfig `json:"y,omitempty"`
}

// AxisConfig is one background axis.
type AxisConfig struct {
	Kind  *string  `json:"kind,omitempty"` // "none", "polynomial" or "exponential"
	C0    *float64 `json:"c0,omitempty"`
	C1    *float64 `json:"c1,omitempty"`
	C2    *float64 `json:"c2,omitempty"`
	C3    *float64 `json:"c3,omitempty"`
	Shift *float64 `json:"shift,omitempty"`
}

// NoiseConfig is the noise descriptor.
type NoiseConfig struct {
	Kind  *string  `json:"kind,omitempty"` // "none", "uniform" or "gaussian"
	Level *float64 `json:"level,omitempty"`
	Clamp *bool    `json:"clamp,omitempty"`
	Lower *float64 `json:"lower,omitempty"`
	Upper *float64 `json:"upper,omitempty"`
}

// PeakConfig updates one peak slot.
type PeakConfig struct {
	Slot        int      `json:"slot"`
	Type1D      *string  `json:"type_1d,omitempty"`
	Type2D      *string  `json:"type_2d,omitempty"`
	PosX        *float64 `json:"pos_x,omitempty"`
	PosY        *float64 `json:"pos_y,omitempty"`
	FWHMX       *float64 `json:"fwhm_x,omitempty"`
	FWHMY       *float64 `json:"fwhm_y,omitempty"`
	Amplitude   *float64 `json:"amplitude,omitempty"`
	Correlation *float64 `json:"correlation,omitempty"`
	P1          *float64 `json:"p1,omitempty"`
	P2          *float64 `json:"p2,omitempty"`
	MinX        *int     `json:"min_x,omitempty"`
	MaxX        *int     `json:"max_x,omitempty"`
	MinY        *int     `json:"min_y,omitempty"`
	MaxY        *int     `json:"max_y,omitempty"`
}

func ptr[T any](v T) *T { return &v }

// LoadSimConfig reads a SimConfig from a JSON file. The file must have a
// .json extension and be under 1MB.
func LoadSimConfig(path string) (*SimConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseSimConfig(data)
}

// ParseSimConfig decodes and validates a SimConfig. Unknown fields are
// rejected so that typos do not silently do nothing.
func ParseSimConfig(data []byte) (*SimConfig, error) {
	cfg := &SimConfig{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks names and durations. Numeric ranges are not checked
// here; the engine clamps them.
func (c *SimConfig) Validate() error {
	if c.DataType != nil {
		if _, err := ndarray.ParseDataType(*c.DataType); err != nil {
			return err
		}
	}
	if c.ImageMode != nil {
		if _, err := acquire.ParseImageMode(*c.ImageMode); err != nil {
			return err
		}
	}
	if c.AcquirePeriod != nil && *c.AcquirePeriod != "" {
		d, err := time.ParseDuration(*c.AcquirePeriod)
		if err != nil {
			return fmt.Errorf("invalid acquire_period '%s': %w", *c.AcquirePeriod, err)
		}
		if d < 0 {
			return fmt.Errorf("acquire_period must be non-negative, got %s", d)
		}
	}
	if c.Background != nil {
		for name, a := range map[string]*AxisConfig{"x": c.Background.X, "y": c.Background.Y} {
			if a != nil && a.Kind != nil {
				if _, err := frame.ParseAxisKind(*a.Kind); err != nil {
					return fmt.Errorf("background %s: %w", name, err)
				}
			}
		}
	}
	if c.Noise != nil && c.Noise.Kind != nil {
		if _, err := frame.ParseNoiseKind(*c.Noise.Kind); err != nil {
			return err
		}
	}

	seen := make(map[int]bool, len(c.Peaks))
	for _, p := range c.Peaks {
		if p.Slot < 0 {
			return fmt.Errorf("peak slot must be non-negative, got %d", p.Slot)
		}
		if seen[p.Slot] {
			return fmt.Errorf("peak slot %d listed twice", p.Slot)
		}
		seen[p.Slot] = true
		if p.Type1D != nil {
			if _, err := peaks.ParseShape1D(*p.Type1D); err != nil {
				return fmt.Errorf("peak %d: %w", p.Slot, err)
			}
		}
		if p.Type2D != nil {
			if _, err := peaks.ParseShape2D(*p.Type2D); err != nil {
				return fmt.Errorf("peak %d: %w", p.Slot, err)
			}
		}
	}
	return nil
}

// GetAcquirePeriod parses AcquirePeriod, defaulting to 1s.
func (c *SimConfig) GetAcquirePeriod() time.Duration {
	if c.AcquirePeriod == nil || *c.AcquirePeriod == "" {
		return time.Second
	}
	d, err := time.ParseDuration(*c.AcquirePeriod)
	if err != nil {
		return time.Second
	}
	return d
}

// GetDataType returns the data type or Float64.
func (c *SimConfig) GetDataType() ndarray.DataType {
	if c.DataType == nil {
		return ndarray.Float64
	}
	dt, err := ndarray.ParseDataType(*c.DataType)
	if err != nil {
		return ndarray.Float64
	}
	return dt
}

// GetImageMode returns the image mode or Continuous.
func (c *SimConfig) GetImageMode() acquire.ImageMode {
	if c.ImageMode == nil {
		return acquire.ImageContinuous
	}
	m, err := acquire.ParseImageMode(*c.ImageMode)
	if err != nil {
		return acquire.ImageContinuous
	}
	return m
}

// GetNumImages returns the frame count for multiple mode or 1.
func (c *SimConfig) GetNumImages() int {
	if c.NumImages == nil {
		return 1
	}
	return *c.NumImages
}

// GetIntegrate returns the integrate flag or false.
func (c *SimConfig) GetIntegrate() bool {
	if c.Integrate == nil {
		return false
	}
	return *c.Integrate
}

// GetArrayCallbacks returns the publish flag or true.
func (c *SimConfig) GetArrayCallbacks() bool {
	if c.ArrayCallbacks == nil {
		return true
	}
	return *c.ArrayCallbacks
}

// Apply copies every set field onto s. Peak slots outside the engine's
// arena return an error wrapping acquire.ErrSlotOutOfRange and leave s
// partially updated, so callers apply to a copy.
func (c *SimConfig) Apply(s *acquire.Settings) error {
	if c.SizeX != nil {
		s.SizeX = *c.SizeX
	}
	if c.SizeY != nil {
		s.SizeY = *c.SizeY
	}
	if c.DataType != nil {
		s.DataType = c.GetDataType()
	}
	if c.ImageMode != nil {
		s.ImageMode = c.GetImageMode()
	}
	if c.NumImages != nil {
		s.NumImages = c.GetNumImages()
	}
	if c.AcquirePeriod != nil {
		s.AcquirePeriod = c.GetAcquirePeriod()
	}
	if c.Integrate != nil {
		s.Frame.Integrate = c.GetIntegrate()
	}
	if c.ArrayCallbacks != nil {
		s.ArrayCallbacks = c.GetArrayCallbacks()
	}
	if c.Background != nil {
		c.Background.X.apply(&s.Frame.Background.X)
		c.Background.Y.apply(&s.Frame.Background.Y)
	}
	if c.Noise != nil {
		c.Noise.apply(&s.Frame.Noise)
	}
	for _, p := range c.Peaks {
		if p.Slot < 0 || p.Slot >= len(s.Frame.Peaks) {
			return fmt.Errorf("peak %d: %w", p.Slot, acquire.ErrSlotOutOfRange)
		}
		p.apply(&s.Frame.Peaks[p.Slot])
	}
	return nil
}

// Configurer is the engine's settings update hook.
type Configurer interface {
	Configure(func(*acquire.Settings))
}

// ApplyTo applies c to the engine atomically: on error the engine
// settings are left unchanged.
func (c *SimConfig) ApplyTo(e Configurer) error {
	var err error
	e.Configure(func(s *acquire.Settings) {
		next := s.Clone()
		if err = c.Apply(&next); err == nil {
			*s = next
		}
	})
	return err
}

func (a *AxisConfig) apply(dst *frame.Axis) {
	if a == nil {
		return
	}
	if a.Kind != nil {
		if k, err := frame.ParseAxisKind(*a.Kind); err == nil {
			dst.Kind = k
		}
	}
	setFloat(&dst.C0, a.C0)
	setFloat(&dst.C1, a.C1)
	setFloat(&dst.C2, a.C2)
	setFloat(&dst.C3, a.C3)
	setFloat(&dst.Shift, a.Shift)
}

func (n *NoiseConfig) apply(dst *frame.Noise) {
	if n.Kind != nil {
		if k, err := frame.ParseNoiseKind(*n.Kind); err == nil {
			dst.Kind = k
		}
	}
	setFloat(&dst.Level, n.Level)
	if n.Clamp != nil {
		dst.Clamp = *n.Clamp
	}
	setFloat(&dst.Lower, n.Lower)
	setFloat(&dst.Upper, n.Upper)
}

func (p PeakConfig) apply(dst *peaks.Peak) {
	if p.Type1D != nil {
		if s, err := peaks.ParseShape1D(*p.Type1D); err == nil {
			dst.Type1D = s
		}
	}
	if p.Type2D != nil {
		if s, err := peaks.ParseShape2D(*p.Type2D); err == nil {
			dst.Type2D = s
		}
	}
	setFloat(&dst.PosX, p.PosX)
	setFloat(&dst.PosY, p.PosY)
	setFloat(&dst.FWHMX, p.FWHMX)
	setFloat(&dst.FWHMY, p.FWHMY)
	setFloat(&dst.Amplitude, p.Amplitude)
	setFloat(&dst.Correlation, p.Correlation)
	setFloat(&dst.P1, p.P1)
	setFloat(&dst.P2, p.P2)
	setInt(&dst.MinX, p.MinX)
	setInt(&dst.MaxX, p.MaxX)
	setInt(&dst.MinY, p.MinY)
	setInt(&dst.MaxY, p.MaxY)
}

func setFloat(dst *float64, v *float64) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

// FromSettings returns a fully populated SimConfig for s. Only peak slots
// with a shape selected are listed.
func FromSettings(s acquire.Settings) *SimConfig {
	c := &SimConfig{
		SizeX:          ptr(s.SizeX),
		SizeY:          ptr(s.SizeY),
		DataType:       ptr(s.DataType.String()),
		ImageMode:      ptr(s.ImageMode.String()),
		NumImages:      ptr(s.NumImages),
		AcquirePeriod:  ptr(s.AcquirePeriod.String()),
		Integrate:      ptr(s.Frame.Integrate),
		ArrayCallbacks: ptr(s.ArrayCallbacks),
		Background: &BackgroundConfig{
			X: axisConfig(s.Frame.Background.X),
			Y: axisConfig(s.Frame.Background.Y),
		},
		Noise: &NoiseConfig{
			Kind:  ptr(s.Frame.Noise.Kind.String()),
			Level: ptr(s.Frame.Noise.Level),
			Clamp: ptr(s.Frame.Noise.Clamp),
			Lower: ptr(s.Frame.Noise.Lower),
			Upper: ptr(s.Frame.Noise.Upper),
		},
	}
	for i, p := range s.Frame.Peaks {
		if !p.Enabled1D() && !p.Enabled2D() {
			continue
		}
		c.Peaks = append(c.Peaks, PeakConfig{
			Slot:        i,
			Type1D:      ptr(p.Type1D.String()),
			Type2D:      ptr(p.Type2D.String()),
			PosX:        ptr(p.PosX),
			PosY:        ptr(p.PosY),
			FWHMX:       ptr(p.FWHMX),
			FWHMY:       ptr(p.FWHMY),
			Amplitude:   ptr(p.Amplitude),
			Correlation: ptr(p.Correlation),
			P1:          ptr(p.P1),
			P2:          ptr(p.P2),
			MinX:        ptr(p.MinX),
			MaxX:        ptr(p.MaxX),
			MinY:        ptr(p.MinY),
			MaxY:        ptr(p.MaxY),
		})
	}
	return c
}

func axisConfig(a frame.Axis) *AxisConfig {
	return &AxisConfig{
		Kind:  ptr(a.Kind.String()),
		C0:    ptr(a.C0),
		C1:    ptr(a.C1),
		C2:    ptr(a.C2),
		C3:    ptr(a.C3),
		Shift: ptr(a.Shift),
	}
}
