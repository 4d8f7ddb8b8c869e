package signaling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("signaling: coordinator stopped")

// GraceMode selects the reference time for the disconnect grace check.
type GraceMode string

const (
	// GraceFromActivity measures the grace from the last attach or inbound
	// message, so a session is kept for the grace after it was last used.
	GraceFromActivity GraceMode = "activity"
	// GraceFromCreated measures the grace from session creation.
	GraceFromCreated GraceMode = "created"
)

// Recorder receives lifecycle events per session code.
type Recorder interface {
	Record(code, typ string, payload map[string]any)
}

type Options struct {
	Shards          int
	MaxAge          time.Duration
	DisconnectGrace time.Duration
	GraceFrom       GraceMode
	// Mailbox is the per-shard operation queue depth.
	Mailbox  int
	Now      func() time.Time
	Recorder Recorder
}

func (o Options) withDefaults() Options {
	if o.Shards <= 0 {
		o.Shards = 16
	}
	if o.MaxAge <= 0 {
		o.MaxAge = 24 * time.Hour
	}
	if o.DisconnectGrace <= 0 {
		o.DisconnectGrace = time.Hour
	}
	if o.GraceFrom == "" {
		o.GraceFrom = GraceFromActivity
	}
	if o.Mailbox <= 0 {
		o.Mailbox = 64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Coordinator routes every operation for a code to the shard that owns it.
type Coordinator struct {
	opts   Options
	shards []*shard

	stopOnce sync.Once
	wg       sync.WaitGroup
}

type shard struct {
	id    int
	opts  *Options
	reg   *registry
	ops   chan func()
	quit  chan struct{}
	ended chan struct{}
}

func New(opts Options) *Coordinator {
	c := &Coordinator{opts: opts.withDefaults()}
	c.shards = make([]*shard, c.opts.Shards)
	for i := range c.shards {
		s := &shard{
			id:    i,
			opts:  &c.opts,
			reg:   newRegistry(),
			ops:   make(chan func(), c.opts.Mailbox),
			quit:  make(chan struct{}),
			ended: make(chan struct{}),
		}
		c.shards[i] = s
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			s.loop()
		}()
	}
	return c
}

func (c *Coordinator) shardFor(code string) *shard {
	return c.shards[xxhash.Sum64String(code)%uint64(len(c.shards))]
}

// Attach binds conn to the role slot of code's session, creating the session
// if needed. A connection already holding the slot is closed first.
func (c *Coordinator) Attach(ctx context.Context, code string, role Role, conn Conn) error {
	s := c.shardFor(code)
	return s.do(ctx, func() { s.attach(code, role, conn) })
}

// Detach releases the role slot if conn still holds it.
func (c *Coordinator) Detach(ctx context.Context, code string, role Role, conn Conn) error {
	s := c.shardFor(code)
	return s.do(ctx, func() { s.detach(code, role, conn) })
}

// Deliver applies one inbound frame from conn. Callers submit frames from a
// single connection sequentially to preserve their order.
func (c *Coordinator) Deliver(ctx context.Context, code string, role Role, conn Conn, frame []byte) error {
	s := c.shardFor(code)
	return s.do(ctx, func() { s.deliver(code, role, conn, frame) })
}

// Inspect returns a snapshot of code's session.
func (c *Coordinator) Inspect(ctx context.Context, code string) (SessionInfo, bool, error) {
	var (
		info SessionInfo
		ok   bool
	)
	s := c.shardFor(code)
	err := s.do(ctx, func() {
		var sess *session
		if sess, ok = s.reg.get(code); ok {
			info = sess.info()
		}
	})
	return info, ok, err
}

// Counts returns the number of sessions held by each shard.
func (c *Coordinator) Counts(ctx context.Context) ([]int, error) {
	out := make([]int, len(c.shards))
	for i, s := range c.shards {
		if err := s.do(ctx, func() { out[i] = s.reg.len() }); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Close closes every live connection, drops all sessions and stops the
// shards. Operations submitted afterwards fail with ErrStopped.
func (c *Coordinator) Close() {
	c.stopOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, s := range c.shards {
			if err := s.do(ctx, s.closeAll); err != nil {
				log.Warn().Err(err).Str("module", "signaling").Int("shard", s.id).Msg("close shard")
			}
			close(s.quit)
		}
		c.wg.Wait()
	})
}

func (s *shard) loop() {
	defer close(s.ended)
	for {
		select {
		case op := <-s.ops:
			s.run(op)
		case <-s.quit:
			return
		}
	}
}

// run executes op, keeping the shard alive if it panics.
func (s *shard) run(op func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("module", "signaling").Int("shard", s.id).Interface("panic", r).Msg("shard operation panicked")
		}
	}()
	op()
}

// do runs fn on the shard goroutine and waits for it to finish.
func (s *shard) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	op := func() {
		defer close(done)
		fn()
	}
	select {
	case s.ops <- op:
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-s.ended:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *shard) now() time.Time { return s.opts.Now() }

func (s *shard) record(code, typ string, payload map[string]any) {
	if s.opts.Recorder != nil {
		s.opts.Recorder.Record(code, typ, payload)
	}
}

func (s *shard) attach(code string, role Role, conn Conn) {
	now := s.now()
	sess, created := s.reg.getOrCreate(code, now)
	if created {
		gaugeSessions.Inc()
		metricSessionsCreated.Inc()
		s.record(code, "session_created", nil)
	}

	if old := sess.conn(role); old != nil {
		old.Close("new connection from " + string(role))
		gaugeConnections.Dec()
		metricSuperseded.WithLabelValues(string(role)).Inc()
		s.record(code, "connection_superseded", map[string]any{"role": string(role), "conn": old.ID()})
		log.Info().Str("module", "signaling").Str("code", code).Str("role", string(role)).
			Str("old_conn", old.ID()).Str("conn", conn.ID()).Msg("connection superseded")
	}
	sess.setConn(role, conn)
	sess.lastActivity = now
	gaugeConnections.Inc()
	s.record(code, "connected", map[string]any{"role": string(role), "conn": conn.ID()})
	log.Info().Str("module", "signaling").Str("code", code).Str("role", string(role)).
		Str("conn", conn.ID()).Bool("created", created).Msg("attached")

	switch role {
	case RoleCreator:
		if present(sess.answer) {
			s.send(code, conn, Message{Type: TypeAnswer, Answer: sess.answer})
			metricRelays.WithLabelValues(TypeAnswer, "reconnect").Inc()
		}
	case RoleJoiner:
		if present(sess.offer) {
			s.send(code, conn, Message{Type: TypeOffer, Offer: sess.offer})
			metricRelays.WithLabelValues(TypeOffer, "reconnect").Inc()
		} else {
			s.send(code, conn, errorMessage(ErrTextOfferUnavailable))
		}
	}
}

func (s *shard) detach(code string, role Role, conn Conn) {
	sess, ok := s.reg.get(code)
	if !ok {
		return
	}
	if sess.conn(role) != conn {
		// Stale close from a connection that was already superseded or swept.
		return
	}
	sess.setConn(role, nil)
	gaugeConnections.Dec()
	s.record(code, "disconnected", map[string]any{"role": string(role), "conn": conn.ID()})
	log.Info().Str("module", "signaling").Str("code", code).Str("role", string(role)).
		Str("conn", conn.ID()).Msg("detached")

	if sess.idle() && s.graceElapsed(sess, s.now()) {
		s.remove(sess, "disconnect")
	}
}

// graceElapsed reports whether an idle session is past the disconnect grace.
func (s *shard) graceElapsed(sess *session, now time.Time) bool {
	ref := sess.lastActivity
	if s.opts.GraceFrom == GraceFromCreated {
		ref = sess.createdAt
	}
	return now.Sub(ref) > s.opts.DisconnectGrace
}

// remove deletes sess. Live connections must already be closed or cleared.
func (s *shard) remove(sess *session, reason string) {
	s.reg.delete(sess.code)
	gaugeSessions.Dec()
	metricSessionsDeleted.WithLabelValues(reason).Inc()
	s.record(sess.code, "session_deleted", map[string]any{"reason": reason})
	log.Info().Str("module", "signaling").Str("code", sess.code).Str("reason", reason).
		Dur("age", s.now().Sub(sess.createdAt)).Msg("session deleted")
}

// evict closes any live connections with reason and deletes the session.
func (s *shard) evict(sess *session, reason, closeReason string) {
	for _, r := range []Role{RoleCreator, RoleJoiner} {
		if c := sess.conn(r); c != nil {
			c.Close(closeReason)
			sess.setConn(r, nil)
			gaugeConnections.Dec()
		}
	}
	s.remove(sess, reason)
}

func (s *shard) closeAll() {
	s.reg.forEach(func(sess *session) {
		s.evict(sess, "shutdown", "server shutting down")
	})
}
