// Package monitor polls an RCB-4 board and streams joint state to a UI.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source is the board surface the poller needs.
type Source interface {
	Discover(ctx context.Context) ([]int, error)
	Rescan(ctx context.Context) ([]int, error)
	AngleVector(ctx context.Context, servoIDs ...int) ([]float64, error)
}

// State is one sampled snapshot of the bus.
type State struct {
	Seq       int
	Timestamp time.Time
	ServoIDs  []int
	Angles    []float64
	Latency   time.Duration
}

// Config holds configuration for the poller.
type Config struct {
	Hz          int // sampling frequency, default 20
	RescanAfter int // consecutive read failures before a bus rescan, default 5
	Logger      *zerolog.Logger
}

// Poller samples joint angles at a fixed rate. Consumers read States for a
// latest-wins stream of snapshots and Logs for human-readable events.
type Poller struct {
	src         Source
	hz          int
	rescanAfter int
	log         zerolog.Logger

	stateCh chan State
	logCh   chan string

	mu      sync.Mutex
	running bool
	ids     []int
	seq     int
	last    State

	fails int // consecutive read failures, poll loop only
}

// New creates a poller for the given board.
func New(src Source, cfg Config) *Poller {
	if cfg.Hz <= 0 {
		cfg.Hz = 20
	}
	if cfg.RescanAfter <= 0 {
		cfg.RescanAfter = 5
	}
	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = *cfg.Logger
	}
	return &Poller{
		src:         src,
		hz:          cfg.Hz,
		rescanAfter: cfg.RescanAfter,
		log:         log,
		stateCh:     make(chan State, 1),
		logCh:       make(chan string, 10),
	}
}

// States returns a channel that receives state updates.
func (p *Poller) States() <-chan State {
	return p.stateCh
}

// Logs returns a channel that receives log messages.
func (p *Poller) Logs() <-chan string {
	return p.logCh
}

// Hz returns the sampling frequency.
func (p *Poller) Hz() int {
	return p.hz
}

// Last returns the most recent snapshot.
func (p *Poller) Last() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

func (p *Poller) logf(format string, args ...any) {
	p.log.Debug().Msgf(format, args...)
	msg := fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), fmt.Sprintf(format, args...))
	select {
	case p.logCh <- msg:
	default:
		// Drop if channel full
	}
}

// Run begins the sampling loop and blocks until the context ends.
func (p *Poller) Run(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("already running")
	}
	p.running = true
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
	}()

	ids, err := p.src.Discover(ctx)
	if err != nil {
		return fmt.Errorf("discover servos: %w", err)
	}
	p.mu.Lock()
	p.ids = ids
	p.mu.Unlock()
	p.logf("Monitoring %d servos at %d Hz", len(ids), p.hz)

	ticker := time.NewTicker(time.Second / time.Duration(p.hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logf("Monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

func (p *Poller) pollOnce(ctx context.Context) {
	start := time.Now()
	angles, err := p.src.AngleVector(ctx)
	if err != nil {
		p.fails++
		p.logf("Read error (%d in a row): %v", p.fails, err)
		if p.fails >= p.rescanAfter {
			p.fails = 0
			p.rescan(ctx)
		}
		return
	}
	p.fails = 0

	p.mu.Lock()
	p.seq++
	s := State{
		Seq:       p.seq,
		Timestamp: start,
		ServoIDs:  p.ids,
		Angles:    angles,
		Latency:   time.Since(start),
	}
	p.last = s
	p.mu.Unlock()

	p.sendState(s)
}

func (p *Poller) rescan(ctx context.Context) {
	ids, err := p.src.Rescan(ctx)
	if err != nil {
		p.logf("Rescan failed: %v", err)
		return
	}
	p.mu.Lock()
	p.ids = ids
	p.mu.Unlock()
	p.logf("Bus rescanned: %d servos", len(ids))
}

func (p *Poller) sendState(s State) {
	select {
	case p.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-p.stateCh:
		default:
		}
		p.stateCh <- s
	}
}
