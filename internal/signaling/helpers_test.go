package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeConn struct {
	id string

	mu       sync.Mutex
	frames   []Message
	closed   bool
	reason   string
	failSend bool
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failSend || c.closed {
		return errors.New("fake: send failed")
	}
	var m Message
	if err := json.Unmarshal(frame, &m); err != nil {
		return err
	}
	c.frames = append(c.frames, m)
	return nil
}

func (c *fakeConn) Close(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.reason = reason
}

// take returns and clears the frames received so far.
func (c *fakeConn) take() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.frames
	c.frames = nil
	return out
}

func (c *fakeConn) closedWith() (bool, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.reason
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type testRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *testRecorder) Record(code, typ string, _ map[string]any) {
	r.mu.Lock()
	r.events = append(r.events, code+":"+typ)
	r.mu.Unlock()
}

func newTestCoordinator(t *testing.T, mode GraceMode) (*Coordinator, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	c := New(Options{
		Shards:          4,
		MaxAge:          24 * time.Hour,
		DisconnectGrace: time.Hour,
		GraceFrom:       mode,
		Now:             clk.Now,
	})
	t.Cleanup(c.Close)
	return c, clk
}

func mustAttach(t *testing.T, c *Coordinator, code string, role Role, conn Conn) {
	t.Helper()
	if err := c.Attach(context.Background(), code, role, conn); err != nil {
		t.Fatalf("attach %s/%s: %v", code, role, err)
	}
}

func mustDetach(t *testing.T, c *Coordinator, code string, role Role, conn Conn) {
	t.Helper()
	if err := c.Detach(context.Background(), code, role, conn); err != nil {
		t.Fatalf("detach %s/%s: %v", code, role, err)
	}
}

func mustDeliver(t *testing.T, c *Coordinator, code string, role Role, conn Conn, frame string) {
	t.Helper()
	if err := c.Deliver(context.Background(), code, role, conn, []byte(frame)); err != nil {
		t.Fatalf("deliver %s: %v", frame, err)
	}
}

func mustInspect(t *testing.T, c *Coordinator, code string) (SessionInfo, bool) {
	t.Helper()
	info, ok, err := c.Inspect(context.Background(), code)
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	return info, ok
}

func expectFrames(t *testing.T, conn *fakeConn, want ...string) {
	t.Helper()
	got := conn.take()
	if len(got) != len(want) {
		t.Fatalf("%s: expected %d frames %v, got %d: %s", conn.id, len(want), want, len(got), describe(got))
	}
	for i := range want {
		b, _ := json.Marshal(got[i])
		if string(b) != want[i] {
			t.Fatalf("%s frame %d: expected %s, got %s", conn.id, i, want[i], b)
		}
	}
}

func describe(ms []Message) string {
	out := ""
	for _, m := range ms {
		b, _ := json.Marshal(m)
		out += fmt.Sprintf("%s ", b)
	}
	return out
}
