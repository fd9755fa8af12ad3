package ws

import "time"

// seqTimer arms one-shot timers whose callbacks carry a sequence number.
// A callback whose seq no longer matches the current one belongs to a
// timer that was superseded and must be ignored by the receiver. The
// session loop is the only caller, so no locking here.
type seqTimer struct {
	seq      uint64
	timer    *time.Timer
	deadline time.Time
}

// arm cancels any pending timer and schedules a new one. fire runs on the
// timer goroutine, so it should only post a message somewhere.
func (t *seqTimer) arm(d time.Duration, fire func(seq uint64)) time.Time {
	t.stop()
	t.seq++
	seq := t.seq
	t.deadline = time.Now().Add(d)
	t.timer = time.AfterFunc(d, func() { fire(seq) })
	return t.deadline
}

// stop invalidates the pending timer. A callback already in flight still
// carries the old seq and self-cancels at the receiver.
func (t *seqTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.seq++
}

// current reports whether seq belongs to the live timer.
func (t *seqTimer) current(seq uint64) bool {
	return t.timer != nil && seq == t.seq
}

// Deadline of the live timer; zero time when nothing is armed.
func (t *seqTimer) Deadline() time.Time {
	if t.timer == nil {
		return time.Time{}
	}
	return t.deadline
}
