package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

// Reason records why a simulation stopped
type Reason string

const (
	None Reason = ""
	Won  Reason = "won"
	Lost Reason = "lost"
	Quit Reason = "quit"
)

const (
	DefaultTick      = 100 * time.Millisecond
	DefaultInputPoll = 10 * time.Millisecond

	// TempoScale converts a level TEMPO value to milliseconds
	TempoScale = 10
)

// Options tune unit timing. Zero values use the defaults.
type Options struct {
	// Tick is the chaser period and the runner's pause after a scripted move.
	// Zero derives it from the level tempo.
	Tick      time.Duration
	InputPoll time.Duration
	Logger    *log.Entry
}

// State is a consistent copy of a simulation taken under its lock
type State struct {
	Board             engine.Snapshot `json:"board"`
	Running           bool            `json:"running"`
	Reason            Reason          `json:"reason,omitempty"`
	CheckpointPending bool            `json:"checkpoint_pending"`
	Depth             int             `json:"depth"`
	Threat            string          `json:"threat"`
}

// Simulation runs one level: one unit goroutine per agent, all serialised by
// a single lock. The lock is never held while a unit sleeps.
type Simulation struct {
	mu       sync.Mutex
	board    *engine.Board
	running  bool
	reason   Reason
	pending  bool
	depth    int
	injected *engine.Command

	tick time.Duration
	poll time.Duration
	opts Options
	log  *log.Entry

	group *errgroup.Group
}

// New wraps a board in a simulation. depth is zero for a live game and
// grows by one for every checkpoint branch.
func New(board *engine.Board, depth int, opts Options) *Simulation {
	s := &Simulation{
		board:   board,
		running: true,
		depth:   depth,
		opts:    opts,
		tick:    TickFor(board.Tempo, opts.Tick),
		poll:    opts.InputPoll,
		log:     opts.Logger,
	}
	if s.poll <= 0 {
		s.poll = DefaultInputPoll
	}
	if s.log == nil {
		s.log = log.NewEntry(log.StandardLogger())
	}
	s.log = s.log.WithFields(log.Fields{"level_name": board.Name, "depth": depth})
	return s
}

// TickFor returns the unit period for a level tempo. A positive override
// wins over the tempo.
func TickFor(tempo int, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if tempo > 0 {
		return time.Duration(tempo*TempoScale) * time.Millisecond
	}
	return DefaultTick
}

// Start launches one unit for the runner and one per chaser. Units stop when
// the simulation stops running or ctx is cancelled; Wait joins them.
func (s *Simulation) Start(ctx context.Context) {
	s.mu.Lock()
	chasers := len(s.board.Chasers)
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.runRunner(gctx) })
	for i := 0; i < chasers; i++ {
		i := i
		g.Go(func() error { return s.runChaser(gctx, i) })
	}

	s.mu.Lock()
	s.group = g
	s.mu.Unlock()
	s.log.WithField("chasers", chasers).Debug("simulation started")
}

// Wait blocks until every unit has exited
func (s *Simulation) Wait() error {
	s.mu.Lock()
	g := s.group
	s.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Suspend stops the units without recording a reason and joins them. The
// board is left exactly as the last unit saw it.
func (s *Simulation) Suspend() error {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return s.Wait()
}

// Resume clears a pending checkpoint and restarts the units
func (s *Simulation) Resume(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	s.reason = None
	s.pending = false
	s.mu.Unlock()
	s.Start(ctx)
}

// Fork validates the board and returns an unstarted copy one level deeper,
// including any injected command not yet consumed. The copy shares nothing
// with s.
func (s *Simulation) Fork() (*Simulation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.board.Validate(); err != nil {
		return nil, fmt.Errorf("fork: %w", err)
	}
	fork := New(s.board.Clone(), s.depth+1, s.opts)
	if s.injected != nil {
		cmd := *s.injected
		fork.injected = &cmd
	}
	return fork, nil
}

// Inject queues a command for the runner. A later command replaces one that
// has not been consumed yet.
func (s *Simulation) Inject(cmd engine.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cmd.Turns < 1 {
		cmd = engine.NewCommand(cmd.Op, 1)
	}
	s.injected = &cmd
}

// Quit stops a running simulation with reason Quit
func (s *Simulation) Quit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endLocked(Quit)
}

// Finish records the final reason of a suspended or running simulation
func (s *Simulation) Finish(reason Reason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.reason = reason
	s.pending = false
}

// RequestCheckpoint marks a checkpoint as pending. It is refused inside a
// branch and while another request is pending.
func (s *Simulation) RequestCheckpoint() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requestLocked()
}

// ClearCheckpoint drops a pending checkpoint request
func (s *Simulation) ClearCheckpoint() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = false
}

// CheckpointPending reports whether a checkpoint is waiting for the controller
func (s *Simulation) CheckpointPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Running reports whether the units are still playing
func (s *Simulation) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reason returns why the simulation stopped
func (s *Simulation) Reason() Reason {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reason
}

// Depth returns the checkpoint branch depth
func (s *Simulation) Depth() int {
	return s.depth
}

// Points returns the runner's score
func (s *Simulation) Points() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Points()
}

// Validate checks the board invariants under the lock
func (s *Simulation) Validate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board.Validate()
}

// State takes a consistent snapshot
func (s *Simulation) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Board:             s.board.Snapshot(),
		Running:           s.running,
		Reason:            s.reason,
		CheckpointPending: s.pending,
		Depth:             s.depth,
		Threat:            engine.AnalyzeThreat(s.board),
	}
}

// StepRunner runs one runner turn synchronously
func (s *Simulation) StepRunner() engine.Outcome {
	return s.runnerTurn().outcome
}

// StepChaser runs one turn for chaser i synchronously
func (s *Simulation) StepChaser(i int) engine.Outcome {
	return s.chaserTurn(i).outcome
}

func (s *Simulation) requestLocked() bool {
	if s.depth > 0 || s.pending || !s.running {
		return false
	}
	s.pending = true
	s.log.Info("checkpoint requested")
	return true
}

func (s *Simulation) endLocked(reason Reason) {
	if !s.running {
		return
	}
	s.running = false
	s.reason = reason
	s.log.WithFields(log.Fields{
		"reason": reason,
		"points": s.board.Points(),
	}).Info("simulation ended")
}
