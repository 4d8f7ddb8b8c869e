package signaling

import "time"

// registry maps codes to sessions for a single shard. It is not safe for
// concurrent use; the owning shard goroutine is its only caller.
type registry struct {
	sessions map[string]*session
}

func newRegistry() *registry {
	return &registry{sessions: make(map[string]*session)}
}

func (r *registry) get(code string) (*session, bool) {
	s, ok := r.sessions[code]
	return s, ok
}

// getOrCreate returns the session for code, creating an empty one stamped
// with now if absent.
func (r *registry) getOrCreate(code string, now time.Time) (*session, bool) {
	if s, ok := r.sessions[code]; ok {
		return s, false
	}
	s := &session{code: code, createdAt: now, lastActivity: now}
	r.sessions[code] = s
	return s, true
}

func (r *registry) delete(code string) { delete(r.sessions, code) }

// forEach visits every session. fn may delete the visited session.
func (r *registry) forEach(fn func(*session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}

func (r *registry) len() int { return len(r.sessions) }
