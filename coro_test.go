package coro_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coropkg/coro"
)

func TestPingPongProducesExpectedOrder(t *testing.T) {
	sched := coro.Open(coro.WithName("ping-pong"))
	defer sched.Close()

	var out []string
	id := sched.New(func(s *coro.Scheduler, ud any) {
		out = append(out, "A")
		s.Yield()
		out = append(out, "B")
		s.Yield()
		out = append(out, "C")
	}, nil)

	require.Equal(t, coro.StatusReady, sched.Status(id))

	require.NoError(t, sched.Resume(id))
	assert.Equal(t, []string{"A"}, out)
	assert.Equal(t, coro.StatusSuspend, sched.Status(id))

	require.NoError(t, sched.Resume(id))
	assert.Equal(t, []string{"A", "B"}, out)
	assert.Equal(t, coro.StatusSuspend, sched.Status(id))

	require.NoError(t, sched.Resume(id))
	assert.Equal(t, []string{"A", "B", "C"}, out)
	assert.Equal(t, coro.StatusDead, sched.Status(id))
}

func TestTwoCoroutinesInterleaved(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	var out []string
	x := sched.New(func(s *coro.Scheduler, ud any) {
		out = append(out, "x")
		s.Yield()
		out = append(out, "x")
	}, nil)
	y := sched.New(func(s *coro.Scheduler, ud any) {
		out = append(out, "y")
		s.Yield()
		out = append(out, "y")
	}, nil)

	require.NoError(t, sched.Resume(x))
	require.NoError(t, sched.Resume(y))
	require.NoError(t, sched.Resume(x))
	require.NoError(t, sched.Resume(y))

	assert.Equal(t, []string{"x", "y", "x", "y"}, out)
	assert.Equal(t, coro.StatusDead, sched.Status(x))
	assert.Equal(t, coro.StatusDead, sched.Status(y))
}

func TestArgumentDeliveryViaPointer(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	type counter struct{ n int }
	c := &counter{}

	id := sched.New(func(s *coro.Scheduler, ud any) {
		cc := ud.(*counter)
		cc.n++
		s.Yield()
		cc.n++
	}, c)

	require.NoError(t, sched.Resume(id))
	assert.Equal(t, 1, c.n)
	require.NoError(t, sched.Resume(id))
	assert.Equal(t, 2, c.n)
}

func TestResumeDeadCoroutineIsNoop(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	id := sched.New(func(s *coro.Scheduler, ud any) {}, nil)
	require.NoError(t, sched.Resume(id))
	require.Equal(t, coro.StatusDead, sched.Status(id))

	// Cleared slot: resuming it again is a silent no-op, not an error.
	require.NoError(t, sched.Resume(id))
	assert.Equal(t, coro.StatusDead, sched.Status(id))
}

func TestResumeUnknownIDReturnsError(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	err := sched.Resume(999)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrInvalidID))

	err = sched.Resume(-1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrInvalidID))
}

func TestNestedResumeReturnsError(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	ready := make(chan struct{})
	unblock := make(chan struct{})
	running := sched.New(func(s *coro.Scheduler, ud any) {
		close(ready)
		<-unblock
	}, nil)
	other := sched.New(func(s *coro.Scheduler, ud any) {}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sched.Resume(running)
	}()

	<-ready
	err := sched.Resume(other)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrAlreadyRunning))

	close(unblock)
	wg.Wait()

	assert.Equal(t, coro.StatusDead, sched.Status(running))
}

func TestCoroutineTableGrowsAndSlotIsReused(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	var ids []int
	for i := 0; i < 17; i++ {
		ids = append(ids, sched.New(func(s *coro.Scheduler, ud any) {}, nil))
	}

	assert.GreaterOrEqual(t, sched.Stats().Capacity, 32)
	assert.Equal(t, 0, ids[0])
	assert.Equal(t, 16, ids[16])

	for _, id := range ids {
		require.NoError(t, sched.Resume(id))
		assert.Equal(t, coro.StatusDead, sched.Status(id))
	}

	reused := sched.New(func(s *coro.Scheduler, ud any) {}, nil)
	assert.Equal(t, 0, reused)
}

func TestCoroutinePanicDeliveredOnce(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	id := sched.New(func(s *coro.Scheduler, ud any) {
		panic("boom")
	}, nil)

	err := sched.Resume(id)
	require.Error(t, err)

	var panicErr *coro.CoroutinePanic
	require.True(t, errors.As(err, &panicErr))
	assert.Equal(t, id, panicErr.ID)
	assert.Equal(t, "boom", panicErr.Value)
	assert.Equal(t, coro.StatusDead, sched.Status(id))

	// Resuming a dead (cleared) slot is a no-op: the panic is never
	// re-delivered.
	require.NoError(t, sched.Resume(id))
}

func TestCloseRejectsFurtherOperationsAndIsIdempotent(t *testing.T) {
	sched := coro.Open()

	id := sched.New(func(s *coro.Scheduler, ud any) {
		s.Yield()
	}, nil)
	require.NoError(t, sched.Resume(id))

	require.NoError(t, sched.Close())

	select {
	case <-sched.Done():
	default:
		t.Fatal("Done() channel should be closed after Close")
	}

	err := sched.Resume(id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrSchedulerClosed))

	err = sched.Close()
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrSchedulerClosed))
}

func TestStatusStringAndUnknownID(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	assert.Equal(t, "dead", sched.Status(42).String())
	assert.Equal(t, "dead", coro.StatusDead.String())
	assert.Equal(t, "ready", coro.StatusReady.String())
	assert.Equal(t, "running", coro.StatusRunning.String())
	assert.Equal(t, "suspend", coro.StatusSuspend.String())
}

func TestStatsSnapshotStructural(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	id := sched.New(func(s *coro.Scheduler, ud any) { s.Yield() }, nil)
	require.NoError(t, sched.Resume(id))

	want := coro.Stats{Capacity: 16, Count: 1, Running: -1}
	got := sched.Stats()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Stats() mismatch (-want +got):\n%s", diff)
	}
}

func TestRunningReflectsActiveCoroutine(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	assert.Equal(t, -1, sched.Running())

	var observed int
	id := sched.New(func(s *coro.Scheduler, ud any) {
		observed = s.Running()
	}, nil)

	require.NoError(t, sched.Resume(id))
	assert.Equal(t, id, observed)
	assert.Equal(t, -1, sched.Running())
}

func TestResumeNotResumableStatusReturnsError(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	ready := make(chan struct{})
	unblock := make(chan struct{})
	id := sched.New(func(s *coro.Scheduler, ud any) {
		close(ready)
		<-unblock
	}, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = sched.Resume(id)
	}()
	<-ready

	// id is RUNNING, not Ready/Suspend: a resume attempt on the same id
	// from elsewhere trips the already-running guard before it ever
	// reaches the not-resumable branch.
	err := sched.Resume(id)
	require.Error(t, err)
	assert.True(t, errors.Is(err, coro.ErrAlreadyRunning))

	close(unblock)
	wg.Wait()
}

func TestMultipleSchedulersRunIndependently(t *testing.T) {
	s1 := coro.Open(coro.WithName("s1"))
	defer s1.Close()
	s2 := coro.Open(coro.WithName("s2"))
	defer s2.Close()

	var seen string
	id1 := s1.New(func(s *coro.Scheduler, ud any) { seen += "1" }, nil)
	id2 := s2.New(func(s *coro.Scheduler, ud any) { seen += "2" }, nil)

	require.NoError(t, s1.Resume(id1))
	require.NoError(t, s2.Resume(id2))

	assert.Equal(t, "12", seen)
	assert.Equal(t, coro.StatusDead, s1.Status(id1))
	assert.Equal(t, coro.StatusDead, s2.Status(id2))
}

func TestWithLoggerIgnoresNil(t *testing.T) {
	// A nil logger must not panic Open; it is silently ignored in favor
	// of the default.
	require.NotPanics(t, func() {
		sched := coro.Open(coro.WithLogger(nil))
		defer sched.Close()
		id := sched.New(func(s *coro.Scheduler, ud any) {}, nil)
		require.NoError(t, sched.Resume(id))
	})
}

func TestCoroutinePanicErrorMessage(t *testing.T) {
	sched := coro.Open()
	defer sched.Close()

	id := sched.New(func(s *coro.Scheduler, ud any) {
		panic(fmt.Errorf("inner failure"))
	}, nil)

	err := sched.Resume(id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inner failure")
	assert.Contains(t, err.Error(), fmt.Sprintf("coroutine %d", id))
}
