package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/banshee-data/simpeaks/internal/acquire"
	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/render"
)

// snapshotTimeout bounds a single acquisition in snapshot mode.
const snapshotTimeout = 30 * time.Second

// capture keeps the first published frame.
type capture struct {
	frames chan *ndarray.Array
}

func (c *capture) Publish(a *ndarray.Array) {
	select {
	case c.frames <- a:
	default:
	}
}

// runSnapshot acquires a single frame with the configured settings and
// writes it to path as a PNG plot.
func runSnapshot(ctx context.Context, path string) error {
	c := &capture{frames: make(chan *ndarray.Array, 1)}
	eng := acquire.New(engineOptions(c))
	if err := loadConfig(eng); err != nil {
		return err
	}
	a, err := acquireOne(ctx, eng, c)
	if err != nil {
		return err
	}
	return writePNG(path, a)
}

func acquireOne(ctx context.Context, eng *acquire.Engine, c *capture) (*ndarray.Array, error) {
	eng.Configure(func(s *acquire.Settings) {
		s.ImageMode = acquire.ImageSingle
		s.ArrayCallbacks = true
	})

	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()

	eng.Start()
	select {
	case a := <-c.frames:
		return a, nil
	case <-ctx.Done():
		if err := eng.AllocError(); err != nil {
			return nil, fmt.Errorf("no frame after %d allocation failures: %w", eng.Status().AllocFailures, err)
		}
		return nil, errors.New("timed out waiting for a frame")
	}
}

func writePNG(path string, a *ndarray.Array) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render.PNG(f, a, render.PlotOptions{}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Printf("wrote frame %d (%v %s) to %s", a.UniqueID, a.Dims, a.DataType, path)
	return nil
}
