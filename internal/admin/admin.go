// Package admin serves the operator-facing listener: probes, metrics, the
// debug views of live sessions and the gRPC health service.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"handoff/signal/internal/events"
	"handoff/signal/internal/health"
	"handoff/signal/internal/httpx"
	"handoff/signal/internal/signaling"
)

type Deps struct {
	Coord   *signaling.Coordinator
	Events  *events.Store
	Checker *health.Checker
}

func NewMux(d Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if res := d.Checker.Ready(r.Context()); !res.OK {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: " + res.Error + "\n"))
			return
		}
		w.Write([]byte("ok\n"))
	})
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		st := d.Checker.CheckAll(r.Context())
		status := http.StatusOK
		if !st.OK {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, st)
	})
	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("GET /debug/sessions", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		counts, err := d.Coord.Counts(ctx)
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		total := 0
		for _, n := range counts {
			total += n
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"shards": counts, "total": total})
	})
	mux.HandleFunc("GET /debug/sessions/{code}", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		info, ok, err := d.Coord.Inspect(ctx, r.PathValue("code"))
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, "session not found")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, info)
	})
	mux.HandleFunc("GET /debug/sessions/{code}/events", func(w http.ResponseWriter, r *http.Request) {
		code := r.PathValue("code")
		evts, ok := d.Events.List(code)
		if !ok {
			httpx.WriteError(w, http.StatusNotFound, "no events for code")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{"code": code, "events": evts})
	})

	return mux
}
