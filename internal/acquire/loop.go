package acquire

import (
	"context"

	"github.com/google/uuid"

	"github.com/banshee-data/simpeaks/internal/monitoring"
)

// Run is the worker loop. It holds the engine lock except while waiting for
// a start signal or for the inter-frame period, and returns ctx.Err() once
// ctx is cancelled, after releasing the frame buffer.
func (e *Engine) Run(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.releaseBuffer()

	inRun := false
	for {
		if !inRun {
			e.mu.Unlock()
			select {
			case <-ctx.Done():
				e.mu.Lock()
				return ctx.Err()
			case <-e.startCh:
			}
			e.mu.Lock()

			if !e.acquiring {
				// Stopped before the worker woke up.
				drain(e.stopCh)
				continue
			}
			// Any stop seen now predates this start.
			drain(e.stopCh)
			e.beginRun()
			inRun = true
		}

		produced := e.produceFrame()
		if produced && e.runComplete() {
			e.acquiring = false
			e.state = StateIdle
			e.endRun(StateIdle)
			inRun = false
			continue
		}

		period := e.settings.AcquirePeriod
		e.mu.Unlock()
		timer := e.clock.NewTimer(period)
		select {
		case <-ctx.Done():
			timer.Stop()
			e.mu.Lock()
			e.acquiring = false
			e.state = stoppedState(e.settings.ImageMode)
			e.endRun(e.state)
			return ctx.Err()
		case <-e.stopCh:
		case <-timer.C():
		}
		timer.Stop()
		e.mu.Lock()

		switch {
		case !e.acquiring:
			monitoring.Logf("[acquire] stopping simulation")
			e.endRun(e.state)
			inRun = false
		case e.startGen != e.runGen:
			// Stopped and started again while waiting.
			monitoring.Logf("[acquire] restarting simulation")
			e.endRun(stoppedState(e.run.Mode))
			drain(e.startCh)
			drain(e.stopCh)
			e.beginRun()
		}
	}
}

func (e *Engine) beginRun() {
	monitoring.Logf("[acquire] starting simulation")
	e.resetPending = true
	e.imagesCounter = 0
	e.runGen = e.startGen
	s := e.settings
	e.run = RunInfo{
		ID:        uuid.NewString(),
		Mode:      s.ImageMode,
		SizeX:     s.SizeX,
		SizeY:     s.SizeY,
		DataType:  s.DataType,
		NumImages: s.NumImages,
		Started:   e.clock.Now(),
	}
	if e.recorder != nil {
		if err := e.recorder.RecordRunStart(e.run); err != nil {
			monitoring.Logf("[acquire] failed to record start of run %s: %v", e.run.ID, err)
		}
	}
}

func (e *Engine) endRun(final State) {
	e.run.Ended = e.clock.Now()
	e.run.Frames = e.imagesCounter
	e.run.FinalState = final
	if e.recorder != nil {
		if err := e.recorder.RecordRunEnd(e.run); err != nil {
			monitoring.Logf("[acquire] failed to record end of run %s: %v", e.run.ID, err)
		}
	}
}

// runComplete decides whether a bounded run has produced all its frames.
func (e *Engine) runComplete() bool {
	switch e.settings.ImageMode {
	case ImageSingle:
		return true
	case ImageMultiple:
		return e.imagesCounter >= e.settings.NumImages
	}
	return false
}

// produceFrame composes, stamps and publishes one frame. It reports false
// when no buffer could be allocated, in which case the frame is skipped.
func (e *Engine) produceFrame() bool {
	s := e.settings
	dims := s.Dims()

	if !e.buf.SameShape(dims, s.DataType) {
		e.releaseBuffer()
		buf, err := e.pool.Alloc(dims, s.DataType)
		if err != nil {
			e.allocFailures++
			e.allocErr = err
			monitoring.Logf("[acquire] failed to allocate %v %v frame: %v", dims, s.DataType, err)
			return false
		}
		e.buf = buf
		e.resetPending = true
	}

	e.comp.Compose(e.buf, s.Frame, e.resetPending)
	e.resetPending = false

	e.arrayCounter++
	e.imagesCounter++
	now := e.clock.Now()
	e.buf.UniqueID = e.arrayCounter
	e.buf.ImageNumber = e.imagesCounter
	e.buf.TimeStamp = now
	e.buf.Elapsed = now.Sub(e.run.Started)
	e.lastFrame = now
	monitoring.Debugf("[acquire] frame %d (image %d) %v %v", e.arrayCounter, e.imagesCounter, dims, s.DataType)

	if s.ArrayCallbacks && e.publisher != nil {
		e.publisher.Publish(e.buf.Clone())
	}
	return true
}

func (e *Engine) releaseBuffer() {
	if e.buf == nil {
		return
	}
	e.pool.Release(e.buf)
	e.buf = nil
}
