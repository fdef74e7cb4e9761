package monitor

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

type fakeSource struct {
	ids         []int
	angles      []float64
	readErrs    int // fail the next n AngleVector calls
	discoverErr error
	rescans     int
}

func (s *fakeSource) Discover(context.Context) ([]int, error) {
	if s.discoverErr != nil {
		return nil, s.discoverErr
	}
	return s.ids, nil
}

func (s *fakeSource) Rescan(context.Context) ([]int, error) {
	s.rescans++
	return s.ids, nil
}

func (s *fakeSource) AngleVector(context.Context, ...int) ([]float64, error) {
	if s.readErrs > 0 {
		s.readErrs--
		return nil, errors.New("read timeout")
	}
	return s.angles, nil
}

func newTestPoller(src *fakeSource) *Poller {
	p := New(src, Config{Hz: 100, RescanAfter: 3})
	p.ids = src.ids
	return p
}

func TestPollOnce(t *testing.T) {
	src := &fakeSource{ids: []int{1, 3}, angles: []float64{0.5, -2}}
	p := newTestPoller(src)

	p.pollOnce(context.Background())

	select {
	case s := <-p.States():
		if s.Seq != 1 {
			t.Errorf("State.Seq = %d, want 1", s.Seq)
		}
		if !reflect.DeepEqual(s.Angles, src.angles) {
			t.Errorf("State.Angles = %v, want %v", s.Angles, src.angles)
		}
		if !reflect.DeepEqual(s.ServoIDs, src.ids) {
			t.Errorf("State.ServoIDs = %v, want %v", s.ServoIDs, src.ids)
		}
	default:
		t.Fatal("no state published")
	}

	if last := p.Last(); last.Seq != 1 {
		t.Errorf("Last().Seq = %d, want 1", last.Seq)
	}
}

func TestPollerLatestWins(t *testing.T) {
	src := &fakeSource{ids: []int{1}, angles: []float64{0}}
	p := newTestPoller(src)

	for i := 0; i < 3; i++ {
		p.pollOnce(context.Background())
	}

	s := <-p.States()
	if s.Seq != 3 {
		t.Errorf("State.Seq = %d, want the latest snapshot 3", s.Seq)
	}
	select {
	case s := <-p.States():
		t.Errorf("unexpected extra state with Seq %d", s.Seq)
	default:
	}
}

func TestPollerRescanAfterFailures(t *testing.T) {
	src := &fakeSource{ids: []int{1}, angles: []float64{0}, readErrs: 3}
	p := newTestPoller(src)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		p.pollOnce(ctx)
	}
	if src.rescans != 1 {
		t.Fatalf("rescans = %d, want 1 after %d consecutive failures", src.rescans, p.rescanAfter)
	}

	// The bus recovered; polling resumes without another rescan.
	p.pollOnce(ctx)
	if src.rescans != 1 {
		t.Errorf("rescans = %d, want still 1", src.rescans)
	}
	if s := <-p.States(); s.Seq != 1 {
		t.Errorf("State.Seq = %d, want 1", s.Seq)
	}
}

func TestPollerLogsDropWhenFull(t *testing.T) {
	src := &fakeSource{ids: []int{1}}
	p := newTestPoller(src)

	for i := 0; i < 2*cap(p.logCh); i++ {
		p.logf("message %d", i)
	}
	if n := len(p.logCh); n != cap(p.logCh) {
		t.Errorf("log channel holds %d messages, want full at %d", n, cap(p.logCh))
	}
}

func TestRunDiscoverError(t *testing.T) {
	src := &fakeSource{discoverErr: errors.New("unreachable")}
	p := New(src, Config{})

	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "discover servos") {
		t.Errorf("Run() error = %v, want a discovery failure", err)
	}
}

func TestRunAlreadyRunning(t *testing.T) {
	src := &fakeSource{ids: []int{1}}
	p := newTestPoller(src)
	p.running = true

	err := p.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Errorf("Run() error = %v, want already running", err)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{ids: []int{1}, angles: []float64{0}}
	p := New(src, Config{Hz: 200})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not stop on cancel")
	}
}

func TestNewDefaults(t *testing.T) {
	p := New(&fakeSource{}, Config{})
	if p.Hz() != 20 {
		t.Errorf("default Hz = %d, want 20", p.Hz())
	}
	if p.rescanAfter != 5 {
		t.Errorf("default rescanAfter = %d, want 5", p.rescanAfter)
	}
}
