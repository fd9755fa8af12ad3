package ws

import (
	"testing"
	"time"
)

func TestSeqTimerFires(t *testing.T) {
	var tm seqTimer
	fired := make(chan uint64, 1)

	tm.arm(20*time.Millisecond, func(seq uint64) { fired <- seq })

	select {
	case seq := <-fired:
		if !tm.current(seq) {
			t.Fatal("fired seq should still be current")
		}
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestSeqTimerRearmInvalidatesOldSeq(t *testing.T) {
	var tm seqTimer
	fired := make(chan uint64, 2)

	tm.arm(time.Hour, func(seq uint64) { fired <- seq })
	oldSeq := tm.seq

	tm.arm(20*time.Millisecond, func(seq uint64) { fired <- seq })
	if tm.current(oldSeq) {
		t.Fatal("old seq survived a rearm")
	}

	select {
	case seq := <-fired:
		if seq == oldSeq {
			t.Fatal("superseded timer fired")
		}
		if !tm.current(seq) {
			t.Fatal("new seq should be current")
		}
	case <-time.After(time.Second):
		t.Fatal("rearmed timer never fired")
	}
}

func TestSeqTimerStop(t *testing.T) {
	var tm seqTimer
	fired := make(chan uint64, 1)

	tm.arm(20*time.Millisecond, func(seq uint64) { fired <- seq })
	seq := tm.seq
	tm.stop()

	if tm.current(seq) {
		t.Fatal("stopped timer still current")
	}
	if !tm.Deadline().IsZero() {
		t.Fatal("stopped timer kept a deadline")
	}
}

func TestSeqTimerDeadline(t *testing.T) {
	var tm seqTimer
	if !tm.Deadline().IsZero() {
		t.Fatal("unarmed timer has a deadline")
	}

	before := time.Now()
	tm.arm(time.Minute, func(uint64) {})
	d := tm.Deadline()
	if d.Before(before.Add(59*time.Second)) || d.After(before.Add(61*time.Second)) {
		t.Fatalf("deadline off: %v", d)
	}
	tm.stop()
}
