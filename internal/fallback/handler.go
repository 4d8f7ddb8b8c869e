package fallback

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"handoff/signal/internal/httpx"
)

type Handler struct {
	Store        *Store
	MaxBodyBytes int64
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		metricRequests.WithLabelValues(r.Method, "204").Inc()
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		h.reply(w, r, http.StatusMethodNotAllowed, map[string]any{"error": "Method not allowed"})
	}
}

type postBody struct {
	Code  string          `json:"code"`
	Offer json.RawMessage `json:"offer"`
}

func (h *Handler) handlePost(w http.ResponseWriter, r *http.Request) {
	limit := h.MaxBodyBytes
	if limit <= 0 {
		limit = 64 * 1024
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)

	var body postBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.reply(w, r, http.StatusRequestEntityTooLarge, map[string]any{"error": "Request body too large"})
			return
		}
		h.reply(w, r, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	if body.Code == "" || isEmptyJSON(body.Offer) {
		h.reply(w, r, http.StatusBadRequest, map[string]any{"error": "Missing code or offer"})
		return
	}

	h.Store.Put(body.Code, body.Offer)
	log.Info().Str("module", "fallback").Str("code", body.Code).Msg("offer stored")
	h.reply(w, r, http.StatusOK, map[string]any{"success": true, "code": body.Code})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	if code == "" {
		h.reply(w, r, http.StatusBadRequest, map[string]any{"error": "Missing code parameter"})
		return
	}
	offer, err := h.Store.Get(code)
	if err != nil {
		h.reply(w, r, http.StatusNotFound, map[string]any{"error": "Session not found or expired"})
		return
	}
	h.reply(w, r, http.StatusOK, map[string]any{"success": true, "offer": offer})
}

func (h *Handler) reply(w http.ResponseWriter, r *http.Request, status int, body any) {
	metricRequests.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
	httpx.WriteJSON(w, status, body)
}

// isEmptyJSON reports whether raw is missing or a falsy JSON value.
func isEmptyJSON(raw json.RawMessage) bool {
	v := bytes.TrimSpace(raw)
	switch string(v) {
	case "", "null", "false", `""`, "0":
		return true
	}
	return false
}
