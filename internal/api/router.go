package api

import (
	"net/http"

	"handoff/signal/internal/httpx"
)

const (
	PathSignalWS   = "/api/ws/file-share-session"
	PathFallback   = "/api/file-share-session"
	PathICEServers = "/api/ice-servers"
)

func NewRouter(h *Handlers) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Browsers do not preflight WebSocket upgrades; no CORS here.
	mux.HandleFunc(PathSignalWS, h.signal.HandleSignalWS)

	mux.Handle(PathFallback, httpx.CORS(h.fallback))
	mux.Handle(PathICEServers, httpx.CORS(h.ice))
	mux.Handle("/api/", httpx.CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteError(w, http.StatusNotFound, "Not found")
	})))

	mux.HandleFunc("/", h.HandleStatic)

	return httpx.Chain(mux, httpx.Recover, httpx.Logger)
}
