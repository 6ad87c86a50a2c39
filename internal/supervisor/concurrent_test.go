package supervisor

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/loykin/solo/internal/pidfile"
)

// Two invocations racing on the same pid file must never both spawn: the
// exclusive create on the pid file lets at most one through, and the loser
// observes the winner's file.
func TestConcurrentStartSpawnsAtMostOnce(t *testing.T) {
	spec := testSpec(t)
	r := newFakeRunner()
	r.spawnDelay = 20 * time.Millisecond // widen the race window
	p := &fakePort{}
	bindOnSpawn(r, p)

	const racers = 4
	var wg sync.WaitGroup
	errs := make([]error, racers)
	results := make([]StartResult, racers)
	for i := 0; i < racers; i++ {
		// Each racer is an independent invocation with its own supervisor.
		s := newTestSupervisor(t, spec, r, p)
		wg.Add(1)
		go func(i int, s *Supervisor) {
			defer wg.Done()
			results[i], errs[i] = s.Start()
		}(i, s)
	}
	wg.Wait()

	if n := r.spawnCount(); n > 1 {
		t.Fatalf("%d children spawned by %d racing starts", n, racers)
	}

	succeeded := 0
	for i := 0; i < racers; i++ {
		if errs[i] == nil && !results[i].AlreadyRunning && results[i].Status.State == StateRunning {
			succeeded++
		}
	}
	if succeeded > 1 {
		t.Fatalf("%d racers concluded they performed the start", succeeded)
	}
	if n := r.spawnCount(); n == 1 && succeeded == 0 {
		// A spawn happened, so some racer must have won; losers may error
		// or observe already-running, but the winner reports success.
		t.Fatalf("child spawned but no racer reported a successful start")
	}
}

// A second invocation arriving while the first sits between claiming the
// pid file and writing its pid must refuse, not treat the empty claim as a
// stale record and reclaim it. The window spans the whole child spawn, so
// the first invocation is held inside spawn to pin the interleaving.
func TestStartDuringSpawnWindowRefuses(t *testing.T) {
	spec := testSpec(t)
	r := newFakeRunner()
	p := &fakePort{}
	bindOnSpawn(r, p)
	gate := make(chan struct{})
	markBound := r.onSpawn
	r.onSpawn = func(pid int) {
		<-gate
		markBound(pid)
	}

	first := newTestSupervisor(t, spec, r, p)
	second := newTestSupervisor(t, spec, r, p)

	type outcome struct {
		res StartResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := first.Start()
		done <- outcome{res, err}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !pidfile.Exists(spec.PIDFile) {
		if time.Now().After(deadline) {
			t.Fatalf("first invocation never claimed the pid file")
		}
		time.Sleep(time.Millisecond)
	}

	st, err := second.Status()
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.State != StateStarting {
		t.Fatalf("mid-spawn state = %s, want %s", st.State, StateStarting)
	}

	_, err = second.Start()
	var se *StartError
	if !errors.As(err, &se) || se.Reason != ReasonPending {
		t.Fatalf("second Start = %v, want pending refusal", err)
	}
	if !pidfile.Exists(spec.PIDFile) {
		t.Fatalf("second Start removed the live claim")
	}

	close(gate)
	out := <-done
	if out.err != nil {
		t.Fatalf("gated Start: %v", out.err)
	}
	if out.res.Status.State != StateRunning {
		t.Fatalf("gated Start state = %s, want %s", out.res.Status.State, StateRunning)
	}
	if n := r.spawnCount(); n != 1 {
		t.Fatalf("%d children spawned across the race, want exactly 1", n)
	}
}

// Sequential starts across fresh supervisor instances behave like repeated
// invocations of the CLI: one spawn total.
func TestSequentialInvocationsShareState(t *testing.T) {
	spec := testSpec(t)
	r := newFakeRunner()
	p := &fakePort{}
	bindOnSpawn(r, p)

	for i := 0; i < 3; i++ {
		s := newTestSupervisor(t, spec, r, p)
		res, err := s.Start()
		if err != nil {
			t.Fatalf("invocation %d: %v", i, err)
		}
		if i > 0 && !res.AlreadyRunning {
			t.Fatalf("invocation %d did not observe the running child", i)
		}
	}
	if n := r.spawnCount(); n != 1 {
		t.Fatalf("spawned %d children across invocations, want 1", n)
	}
}
