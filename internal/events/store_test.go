package events

import (
	"fmt"
	"testing"
)

func TestAppendAndList(t *testing.T) {
	s := NewStore(10, 10)
	s.Record("A", "session_created", nil)
	s.Record("A", "connected", map[string]any{"role": "creator"})
	s.Record("B", "session_created", nil)

	got, ok := s.List("A")
	if !ok || len(got) != 2 {
		t.Fatalf("expected 2 events for A, got %d (ok=%v)", len(got), ok)
	}
	if got[0].Type != "session_created" || got[1].Type != "connected" {
		t.Fatalf("unexpected order: %s, %s", got[0].Type, got[1].Type)
	}
	if got[1].Payload["role"] != "creator" {
		t.Fatalf("payload lost: %v", got[1].Payload)
	}
	if _, ok := s.List("missing"); ok {
		t.Fatalf("unknown code reported present")
	}
}

func TestEventsTruncatedPerCode(t *testing.T) {
	s := NewStore(5, 10)
	for i := 0; i < 8; i++ {
		s.Append("A", fmt.Sprintf("e%d", i), nil)
	}
	got, _ := s.List("A")
	if len(got) != 5 {
		t.Fatalf("expected cap of 5, got %d", len(got))
	}
	last := got[len(got)-1]
	if last.Type != "events_truncated" {
		t.Fatalf("expected truncation marker last, got %s", last.Type)
	}
	if got[len(got)-2].Type != "e7" {
		t.Fatalf("expected newest event e7 before the marker, got %s", got[len(got)-2].Type)
	}
}

func TestOldestCodeEvicted(t *testing.T) {
	s := NewStore(5, 2)
	s.Append("A", "x", nil)
	s.Append("B", "x", nil)
	s.Append("A", "y", nil)
	s.Append("C", "x", nil)

	if _, ok := s.List("A"); ok {
		t.Fatalf("oldest code A should be evicted")
	}
	if s.Codes() != 2 {
		t.Fatalf("expected 2 codes, got %d", s.Codes())
	}
}
