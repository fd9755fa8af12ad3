package ws

import (
	"testing"
	"time"
)

func TestStoreGetOrCreateIsIdempotent(t *testing.T) {
	st := NewStore(testCfg(), nil)
	defer st.Shutdown()

	a := st.GetOrCreate("room-1")
	b := st.GetOrCreate("room-1")
	if a != b {
		t.Fatal("same room id must map to the same session")
	}
	if st.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", st.Len())
	}

	got, ok := st.Get("room-1")
	if !ok || got != a {
		t.Fatal("Get did not find the session")
	}
	if _, ok := st.Get("missing"); ok {
		t.Fatal("Get invented a session")
	}
}

func TestStoreCreateMatchedPinsSeats(t *testing.T) {
	st := NewStore(testCfg(), nil)
	defer st.Shutdown()

	s, ok := st.CreateMatched("room-m", 10, 20)
	if !ok {
		t.Fatal("CreateMatched failed")
	}
	if _, ok := st.CreateMatched("room-m", 30, 40); ok {
		t.Fatal("duplicate room id accepted")
	}

	// the promised colors hold even when black connects first
	black := NewClient(20, nil)
	if err := s.Attach(black, false); err != nil {
		t.Fatalf("attach: %v", err)
	}
	env := recvType(t, black, TypeInit)
	var p InitPayload
	if err := env.Decode(&p); err != nil {
		t.Fatalf("decode init: %v", err)
	}
	if p.Color != "black" {
		t.Fatalf("identity 20 was promised black, got %q", p.Color)
	}
	if p.White != 10 || p.Black != 20 {
		t.Fatalf("seats wrong: %+v", p)
	}

	// a stranger cannot take a reserved seat
	if err := s.Attach(NewClient(99, nil), false); err == nil {
		t.Fatal("stranger took a reserved seat")
	}
}

func TestStoreRemovesReleasedSessions(t *testing.T) {
	cfg := testCfg()
	cfg.AwaitingTimeout = 100 * time.Millisecond
	st := NewStore(cfg, nil)

	s := st.GetOrCreate("short-lived")
	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("session was never released")
	}

	// remove happens on the session goroutine just before Done closes
	deadline := time.After(time.Second)
	for st.Len() != 0 {
		select {
		case <-deadline:
			t.Fatalf("released session still indexed, len=%d", st.Len())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestStoreShutdownDrainsEverything(t *testing.T) {
	st := NewStore(testCfg(), nil)
	for _, id := range []string{"a", "b", "c"} {
		st.GetOrCreate(id)
	}

	st.Shutdown()
	if st.Len() != 0 {
		t.Fatalf("expected empty store after shutdown, got %d", st.Len())
	}
}
