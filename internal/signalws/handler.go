package signalws

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	ws "nhooyr.io/websocket"

	"handoff/signal/internal/config"
	"handoff/signal/internal/signaling"
)

type Server struct {
	Coord        *signaling.Coordinator
	ReadLimit    int64
	SendQueue    int
	WriteTimeout time.Duration
}

func NewServer(cfg config.Config, coord *signaling.Coordinator) *Server {
	return &Server{
		Coord:        coord,
		ReadLimit:    cfg.Signal.ReadLimit,
		SendQueue:    cfg.Signal.SendQueue,
		WriteTimeout: cfg.Signal.WriteTimeout,
	}
}

// HandleSignalWS upgrades a request carrying ?code=&role= and attaches the
// socket to that session role until it closes.
func (s *Server) HandleSignalWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	code := q.Get("code")
	if code == "" {
		http.Error(w, "Missing code parameter", http.StatusBadRequest)
		return
	}
	if !isUpgrade(r) {
		http.Error(w, "Expected WebSocket", http.StatusBadRequest)
		return
	}
	rawRole := q.Get("role")
	if rawRole == "" {
		http.Error(w, "Missing code or role parameter", http.StatusBadRequest)
		return
	}
	role, err := signaling.ParseRole(rawRole)
	if err != nil {
		http.Error(w, "Invalid role parameter", http.StatusBadRequest)
		return
	}

	c, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("code", code).Msg("ws accept")
		return
	}
	c.SetReadLimit(s.readLimit())

	conn := newConn(c, s.sendQueue(), s.writeTimeout())
	go conn.writePump()

	ctx := r.Context()
	if err := s.Coord.Attach(ctx, code, role, conn); err != nil {
		log.Warn().Err(err).Str("module", "signalws").Str("code", code).Msg("attach")
		conn.Close("server shutting down")
		<-conn.done
		return
	}

	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			logReadEnd(code, role, conn.id, err)
			break
		}
		if typ != ws.MessageText && typ != ws.MessageBinary {
			continue
		}
		if err := s.Coord.Deliver(ctx, code, role, conn, data); err != nil {
			log.Warn().Err(err).Str("module", "signalws").Str("code", code).Msg("deliver")
			break
		}
	}

	conn.Close("")
	detachCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Coord.Detach(detachCtx, code, role, conn); err != nil && !errors.Is(err, signaling.ErrStopped) {
		log.Warn().Err(err).Str("module", "signalws").Str("code", code).Msg("detach")
	}
}

func logReadEnd(code string, role signaling.Role, id string, err error) {
	status := ws.CloseStatus(err)
	if status == ws.StatusNormalClosure || status == ws.StatusGoingAway {
		log.Debug().Str("module", "signalws").Str("code", code).Str("role", string(role)).
			Str("conn", id).Int("status", int(status)).Msg("peer closed")
		return
	}
	log.Info().Err(err).Str("module", "signalws").Str("code", code).Str("role", string(role)).
		Str("conn", id).Msg("read ended")
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func (s *Server) readLimit() int64 {
	if s.ReadLimit <= 0 {
		return 64 * 1024
	}
	return s.ReadLimit
}

func (s *Server) sendQueue() int {
	if s.SendQueue <= 0 {
		return 32
	}
	return s.SendQueue
}

func (s *Server) writeTimeout() time.Duration {
	if s.WriteTimeout <= 0 {
		return 5 * time.Second
	}
	return s.WriteTimeout
}
