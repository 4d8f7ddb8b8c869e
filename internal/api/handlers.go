package api

import (
	"net/http"
	"os"

	"handoff/signal/internal/config"
	"handoff/signal/internal/fallback"
	"handoff/signal/internal/iceproxy"
	"handoff/signal/internal/signalws"
)

type Handlers struct {
	signal   *signalws.Server
	fallback http.Handler
	ice      http.Handler
	static   http.Handler
}

func NewHandlers(cfg config.Config, ws *signalws.Server, fb *fallback.Store, ice *iceproxy.Service) *Handlers {
	h := &Handlers{
		signal:   ws,
		fallback: &fallback.Handler{Store: fb, MaxBodyBytes: cfg.Fallback.MaxBodyBytes},
		ice:      ice,
	}
	if dir := cfg.Server.StaticDir; dir != "" {
		if st, err := os.Stat(dir); err == nil && st.IsDir() {
			h.static = http.FileServer(http.Dir(dir))
		}
	}
	return h
}

func (h *Handlers) HandleStatic(w http.ResponseWriter, r *http.Request) {
	if h.static == nil {
		http.NotFound(w, r)
		return
	}
	h.static.ServeHTTP(w, r)
}
