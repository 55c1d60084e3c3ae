package processor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/bcgov/nr-forest-client-sub003/pkg/runcontext"
)

type PollerSuite struct {
	suite.Suite
}

func TestPollerSuite(t *testing.T) {
	suite.Run(t, new(PollerSuite))
}

func (s *PollerSuite) TestItemFailuresAreIsolated() {
	var mu sync.Mutex
	var handled []int64

	p := NewPoller(LoopMatching, time.Minute, 0, 10, "tester",
		func(context.Context, int) ([]int64, error) {
			return []int64{1, 2, 3}, nil
		},
		func(_ context.Context, id int64) error {
			mu.Lock()
			defer mu.Unlock()
			handled = append(handled, id)
			if id == 2 {
				return errors.New("boom")
			}
			return nil
		},
		nil, nil)

	p.tick(context.Background())

	s.Equal([]int64{1, 2, 3}, handled)
}

func (s *PollerSuite) TestPanicIsRecovered() {
	var handled []int64

	p := NewPoller(LoopMatching, time.Minute, 0, 10, "tester",
		func(context.Context, int) ([]int64, error) {
			return []int64{1, 2}, nil
		},
		func(_ context.Context, id int64) error {
			handled = append(handled, id)
			if id == 1 {
				panic("corrupt row")
			}
			return nil
		},
		nil, nil)

	p.tick(context.Background())

	s.Equal([]int64{1, 2}, handled)
}

func (s *PollerSuite) TestTickStampsBatchContext() {
	var gotBatch, gotActor string
	var gotTime time.Time

	p := NewPoller(LoopCompletion, time.Minute, 0, 5, "completion-worker",
		func(context.Context, int) ([]int64, error) {
			return []int64{7}, nil
		},
		func(ctx context.Context, _ int64) error {
			gotBatch = runcontext.BatchID(ctx)
			gotActor = runcontext.Actor(ctx)
			gotTime = runcontext.Now(ctx)
			return nil
		},
		nil, nil)

	before := time.Now()
	p.tick(context.Background())

	s.NotEmpty(gotBatch)
	s.Equal("completion-worker", gotActor)
	s.WithinDuration(before, gotTime, time.Second)
}

func (s *PollerSuite) TestListFailureSkipsTick() {
	called := false
	p := NewPoller(LoopMatching, time.Minute, 0, 5, "tester",
		func(context.Context, int) ([]int64, error) {
			return nil, errors.New("store down")
		},
		func(context.Context, int64) error {
			called = true
			return nil
		},
		nil, nil)

	p.tick(context.Background())
	s.False(called)
}

func (s *PollerSuite) TestRunStopsOnCancel() {
	p := NewPoller(LoopMatching, 5*time.Millisecond, 0, 5, "tester",
		func(context.Context, int) ([]int64, error) { return nil, nil },
		func(context.Context, int64) error { return nil },
		nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		s.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		s.Fail("poller did not stop")
	}
}

func (s *PollerSuite) TestOffsetDelaysFirstTick() {
	ticked := make(chan struct{}, 1)
	p := NewPoller(LoopCompletion, time.Minute, 30*time.Millisecond, 5, "tester",
		func(context.Context, int) ([]int64, error) {
			select {
			case ticked <- struct{}{}:
			default:
			}
			return nil, nil
		},
		func(context.Context, int64) error { return nil },
		nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	select {
	case <-ticked:
		s.Fail("ticked before offset elapsed")
	case <-time.After(10 * time.Millisecond):
	}

	select {
	case <-ticked:
	case <-time.After(time.Second):
		s.Fail("never ticked after offset")
	}
}
