package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/banshee-data/simpeaks/internal/ndarray"
	"github.com/banshee-data/simpeaks/internal/render"
)

type frameEvent struct {
	UniqueID    int     `json:"unique_id"`
	ImageNumber int     `json:"image_number"`
	Dims        []int   `json:"dims"`
	DataType    string  `json:"data_type"`
	Min         float64 `json:"min"`
	Max         float64 `json:"max"`
}

func summarize(a *ndarray.Array) frameEvent {
	ev := frameEvent{
		UniqueID:    a.UniqueID,
		ImageNumber: a.ImageNumber,
		Dims:        a.Dims,
		DataType:    a.DataType.String(),
	}
	ev.Min, ev.Max, _ = render.Range(a)
	return ev
}

// frameEvents streams a summary of each published frame as server-sent
// events.
func (s *Server) frameEvents(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	id, frames, ok := s.frames.Subscribe()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "too many frame subscribers")
		return
	}
	defer s.frames.Unsubscribe(id)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case a, ok := <-frames:
			if !ok {
				return
			}
			payload, err := json.Marshal(summarize(a))
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
