// Package fallback serves the stateless HTTP offer exchange used by clients
// that cannot hold a WebSocket open.
package fallback

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/rs/zerolog/log"
)

var ErrNotFound = errors.New("fallback: offer not found or expired")

type entry struct {
	offer   json.RawMessage
	expires time.Time
}

// Store keeps offers by code until their TTL passes. Expired entries are
// invisible to Get and dropped by Purge.
type Store struct {
	m   *hashmap.Map[string, entry]
	ttl time.Duration
	now func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{m: hashmap.New[string, entry](), ttl: ttl, now: time.Now}
}

// Put stores offer under code, replacing any previous value.
func (s *Store) Put(code string, offer json.RawMessage) {
	s.m.Set(code, entry{offer: offer, expires: s.now().Add(s.ttl)})
	gaugeOffers.Set(float64(s.m.Len()))
}

func (s *Store) Get(code string) (json.RawMessage, error) {
	e, ok := s.m.Get(code)
	if !ok {
		return nil, ErrNotFound
	}
	if !s.now().Before(e.expires) {
		s.m.Del(code)
		gaugeOffers.Set(float64(s.m.Len()))
		return nil, ErrNotFound
	}
	return e.offer, nil
}

func (s *Store) Len() int { return s.m.Len() }

// Purge removes expired entries and returns how many were dropped.
func (s *Store) Purge() int {
	now := s.now()
	var expired []string
	s.m.Range(func(code string, e entry) bool {
		if !now.Before(e.expires) {
			expired = append(expired, code)
		}
		return true
	})
	n := 0
	for _, code := range expired {
		if s.m.Del(code) {
			n++
		}
	}
	gaugeOffers.Set(float64(s.m.Len()))
	return n
}

// RunPurger calls Purge every interval until ctx is done.
func (s *Store) RunPurger(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := s.Purge(); n > 0 {
				log.Debug().Str("module", "fallback").Int("purged", n).Msg("expired offers dropped")
			}
		}
	}
}
