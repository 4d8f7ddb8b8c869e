// Package events keeps a short in-memory lifecycle log per session code for
// the admin debug endpoint.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        string         `json:"id"`
	Code      string         `json:"code"`
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

const (
	defaultMaxEvents = 50
	defaultMaxCodes  = 1024
)

// Store caps both the events kept per code and the number of codes tracked.
// When the code cap is hit the oldest code is forgotten.
type Store struct {
	mu        sync.RWMutex
	byCode    map[string][]Event
	order     []string
	maxEvents int
	maxCodes  int
	now       func() time.Time
}

func NewStore(maxEvents, maxCodes int) *Store {
	if maxEvents <= 1 {
		maxEvents = defaultMaxEvents
	}
	if maxCodes <= 0 {
		maxCodes = defaultMaxCodes
	}
	return &Store{
		byCode:    make(map[string][]Event),
		maxEvents: maxEvents,
		maxCodes:  maxCodes,
		now:       time.Now,
	}
}

// Record appends an event. It satisfies signaling.Recorder.
func (s *Store) Record(code, typ string, payload map[string]any) {
	s.Append(code, typ, payload)
}

func (s *Store) Append(code, typ string, payload map[string]any) Event {
	evt := Event{
		ID:        uuid.NewString(),
		Code:      code,
		Type:      typ,
		Timestamp: s.now().UTC(),
		Payload:   payload,
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byCode[code]; !ok {
		if len(s.order) >= s.maxCodes {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.byCode, oldest)
		}
		s.order = append(s.order, code)
	}
	s.byCode[code] = append(s.byCode[code], evt)

	// Keep room for one truncation marker so the total stays at maxEvents.
	if l := len(s.byCode[code]); l > s.maxEvents {
		keep := s.maxEvents - 1
		dropped := l - keep
		kept := append([]Event(nil), s.byCode[code][l-keep:]...)
		kept = append(kept, Event{
			ID:        uuid.NewString(),
			Code:      code,
			Type:      "events_truncated",
			Timestamp: evt.Timestamp,
			Payload:   map[string]any{"dropped": dropped, "kept": keep},
		})
		s.byCode[code] = kept
	}
	return evt
}

// List returns a copy of the events recorded for code, oldest first.
func (s *Store) List(code string) ([]Event, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.byCode[code]
	if !ok {
		return nil, false
	}
	out := make([]Event, len(src))
	copy(out, src)
	return out, true
}

func (s *Store) Codes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byCode)
}
