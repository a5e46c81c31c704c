package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingPruner struct {
	calls atomic.Int32
	err   error
}

func (p *countingPruner) PruneSessions(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return 0, errors.New("prune called without deadline")
	}
	return 1, p.err
}

func TestScheduler_PrunesOnStartAndOnTick(t *testing.T) {
	p := &countingPruner{}
	s := New(p, 10*time.Millisecond)
	s.Start()
	t.Cleanup(s.Stop)

	require.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	p := &countingPruner{err: errors.New("db locked")}
	s := New(p, time.Hour)
	s.Start()

	require.Eventually(t, func() bool { return p.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()
	require.Equal(t, int32(1), p.calls.Load())
}

func TestNew_CapsTimeout(t *testing.T) {
	require.Equal(t, time.Minute, New(&countingPruner{}, time.Hour).timeout)
	require.Equal(t, time.Second, New(&countingPruner{}, time.Second).timeout)
}
