package scheduler

import (
	"testing"
	"time"
)

func TestOnceSchedule(t *testing.T) {
	at := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	t.Run("future time fires once", func(t *testing.T) {
		s := &onceSchedule{at: at}
		if got := s.Next(at.Add(-time.Minute)); !got.Equal(at) {
			t.Errorf("Next(before) = %v, want %v", got, at)
		}
		// Cron asks again after running the job.
		if got := s.Next(at.Add(time.Millisecond)); !got.IsZero() {
			t.Errorf("Next(after run) = %v, want zero", got)
		}
	})

	t.Run("past time fires immediately then never", func(t *testing.T) {
		s := &onceSchedule{at: at}
		now := at.Add(time.Hour)
		if got := s.Next(now); !got.Equal(now) {
			t.Errorf("Next(past) = %v, want %v", got, now)
		}
		if got := s.Next(now.Add(time.Second)); !got.IsZero() {
			t.Errorf("second Next = %v, want zero", got)
		}
	})
}

func newTestTimer(t *testing.T) (*Timer, chan string) {
	t.Helper()
	fired := make(chan string, 10)
	tm := New(nil, nil)
	tm.Start()
	t.Cleanup(func() { <-tm.Stop().Done() })
	return tm, fired
}

func TestTimer_At(t *testing.T) {
	tm, fired := newTestTimer(t)

	tm.At(time.Now().Add(20*time.Millisecond), func() { fired <- "soon" })
	tm.At(time.Now().Add(-time.Second), func() { fired <- "past" })

	got := map[string]bool{}
	for len(got) < 2 {
		select {
		case name := <-fired:
			got[name] = true
		case <-time.After(3 * time.Second):
			t.Fatalf("timed out, fired so far: %v", got)
		}
	}

	// Entries remove themselves once fired.
	deadline := time.Now().Add(time.Second)
	for tm.Pending() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if tm.Pending() != 0 {
		t.Errorf("Pending() = %d after firing, want 0", tm.Pending())
	}
}

func TestTimer_Cancel(t *testing.T) {
	tm, fired := newTestTimer(t)

	cancel := tm.At(time.Now().Add(50*time.Millisecond), func() { fired <- "cancelled" })
	tm.At(time.Now().Add(150*time.Millisecond), func() { fired <- "kept" })
	cancel()
	cancel()

	select {
	case name := <-fired:
		if name != "kept" {
			t.Errorf("fired %q, want only kept", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("kept callback never fired")
	}
}

func TestTimer_Post(t *testing.T) {
	posted := make(chan func(), 1)
	tm := New(func(fn func()) { posted <- fn }, nil)
	tm.Start()
	defer func() { <-tm.Stop().Done() }()

	ran := false
	cancel := tm.At(time.Now(), func() { ran = true })

	var fn func()
	select {
	case fn = <-posted:
	case <-time.After(3 * time.Second):
		t.Fatal("callback was not posted")
	}

	// Cancelling after hand-off but before the loop runs it drops the call.
	cancel()
	fn()
	if ran {
		t.Error("callback ran after cancel")
	}
}
