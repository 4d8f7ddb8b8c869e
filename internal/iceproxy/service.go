package iceproxy

import (
	"context"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog/log"

	"handoff/signal/internal/config"
	"handoff/signal/internal/httpx"
)

var metricFetches = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ice_turn_fetches_total",
	Help: "TURN credential fetches by provider and result (ok, error)",
}, []string{"provider", "result"})

// Service merges static STUN servers with whatever the TURN provider
// returns. It never fails: a provider error degrades to STUN only.
type Service struct {
	stun     []webrtc.ICEServer
	provider Provider
	timeout  time.Duration
}

func NewService(stunURLs []string, provider Provider, timeout time.Duration) *Service {
	var stun []webrtc.ICEServer
	if len(stunURLs) > 0 {
		stun = []webrtc.ICEServer{{URLs: append([]string(nil), stunURLs...)}}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Service{stun: stun, provider: provider, timeout: timeout}
}

// New picks the TURN provider from cfg: the HTTP API when a URL is set,
// local TURN REST when a shared secret is set, otherwise none.
func New(cfg config.Config) (*Service, error) {
	var p Provider
	switch {
	case cfg.ICE.TURNAPIURL != "":
		p = NewHTTPProvider(cfg.ICE.TURNAPIURL, cfg.ICE.TURNAPIKey, cfg.ICE.TURNTimeout)
	case cfg.ICE.TURNSharedSecret != "":
		rp, err := NewRESTProvider(cfg.ICE.TURNURLs, cfg.ICE.TURNSharedSecret, cfg.ICE.TURNTTL, cfg.ICE.TURNUsernamePrefix)
		if err != nil {
			return nil, err
		}
		p = rp
	}
	for _, u := range cfg.ICE.STUNURLs {
		if !allowedScheme(u) {
			log.Warn().Str("module", "iceproxy").Str("url", u).Msg("ignoring stun url with unsupported scheme")
		}
	}
	return NewService(filterSTUN(cfg.ICE.STUNURLs), p, cfg.ICE.TURNTimeout), nil
}

func filterSTUN(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if allowedScheme(u) {
			out = append(out, u)
		}
	}
	return out
}

// Provider returns the configured TURN provider, nil when only STUN is served.
func (s *Service) Provider() Provider { return s.provider }

func (s *Service) Servers(ctx context.Context) []webrtc.ICEServer {
	out := make([]webrtc.ICEServer, 0, len(s.stun)+1)
	out = append(out, s.stun...)
	if s.provider == nil {
		return out
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	turn, err := s.provider.TURNServers(ctx)
	if err != nil {
		metricFetches.WithLabelValues(s.provider.Name(), "error").Inc()
		log.Warn().Err(err).Str("module", "iceproxy").Str("provider", s.provider.Name()).Msg("turn fetch failed, serving stun only")
		return out
	}
	metricFetches.WithLabelValues(s.provider.Name(), "ok").Inc()
	return append(out, turn...)
}

func (s *Service) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		httpx.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"iceServers": s.Servers(r.Context())})
}
