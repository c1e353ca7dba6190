package api

import (
	"net/http"
	"strconv"

	"tailscale.com/tsweb"

	"github.com/banshee-data/simpeaks/internal/version"
)

// AttachAdminRoutes adds engine state and the text report to the /debug/
// page. Debug access rules are those of tsweb.
func (s *Server) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.KV("Version", version.String())
	debug.KVFunc("State", func() any {
		st := s.engine.Status()
		return st.State.String() + " (" + st.Message + ")"
	})
	debug.KVFunc("Array counter", func() any { return s.engine.Status().ArrayCounter })
	debug.KVFunc("Images counter", func() any { return s.engine.Status().ImagesCounter })
	debug.KVFunc("Published frames", func() any { return s.frames.Stats().Published })
	debug.KVFunc("Dropped frames", func() any { return s.frames.Stats().Dropped })

	debug.HandleFunc("report", "Full engine report", func(w http.ResponseWriter, r *http.Request) {
		details, err := strconv.Atoi(r.URL.Query().Get("details"))
		if err != nil {
			details = 2
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if err := s.engine.Report(w, details); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	debug.HandleFunc("chart", "Latest frame chart", s.frameChart)
}
