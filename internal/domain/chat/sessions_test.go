package chat

import (
	"sync"
	"testing"
	"time"
)

func TestSessions_AcquireCreates(t *testing.T) {
	s := NewSessions(30 * time.Minute)

	st, release := s.Acquire("s1")
	st.Summary = "kept"
	release()

	st2, release2 := s.Acquire("s1")
	defer release2()
	if st2.Summary != "kept" {
		t.Errorf("state not preserved across acquires: %+v", st2)
	}
	if s.Len() != 1 {
		t.Errorf("len = %d", s.Len())
	}
}

func TestSessions_Lookup(t *testing.T) {
	s := NewSessions(30 * time.Minute)
	if s.Lookup("s1") {
		t.Error("Lookup created a session")
	}
	_, release := s.Acquire("s1")
	release()
	if !s.Lookup("s1") {
		t.Error("Lookup missed an existing session")
	}
}

func TestSessions_SweepEvictsIdle(t *testing.T) {
	s := NewSessions(30 * time.Minute)
	current := time.Now()
	s.now = func() time.Time { return current }

	_, release := s.Acquire("old")
	release()

	current = current.Add(31 * time.Minute)
	_, release = s.Acquire("fresh")
	release()

	if evicted := s.Sweep(); evicted != 1 {
		t.Errorf("evicted = %d, want 1", evicted)
	}
	if s.Lookup("old") {
		t.Error("idle session survived sweep")
	}
	if !s.Lookup("fresh") {
		t.Error("fresh session evicted")
	}
}

func TestSessions_SweepDuringActiveTurn(t *testing.T) {
	s := NewSessions(time.Nanosecond)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				st, release := s.Acquire(id)
				st.Reply = "r"
				release()
			}
		}(string(rune('a' + i)))
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			s.Sweep()
		}
	}()
	wg.Wait()
}

func TestSessions_SweepSkipsHeldSessionWhenFresh(t *testing.T) {
	s := NewSessions(30 * time.Minute)

	_, release := s.Acquire("busy")
	defer release()

	// A session in the middle of a turn is fresh and must survive a sweep
	// without the sweeper blocking on its lock.
	if evicted := s.Sweep(); evicted != 0 {
		t.Errorf("evicted = %d, want 0", evicted)
	}
	if !s.Lookup("busy") {
		t.Error("held session evicted")
	}
}

func TestSessions_ConcurrentSameSessionSerializes(t *testing.T) {
	s := NewSessions(30 * time.Minute)

	st, release := s.Acquire("s1")
	st.Reply = "first"

	done := make(chan struct{})
	go func() {
		st2, release2 := s.Acquire("s1")
		st2.Reply = "second"
		release2()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second acquire proceeded while the first held the lock")
	case <-time.After(50 * time.Millisecond):
	}

	release()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("second acquire never proceeded after release")
	}
	if st.Reply != "second" {
		t.Errorf("reply = %q", st.Reply)
	}
}
