package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

var (
	ErrCheckpointFailed = errors.New("checkpoint failed")
	ErrCheckpointActive = errors.New("checkpoint already active")
)

// Signal is how a branch hands control back to the original
type Signal string

const (
	// Restore resumes the original exactly where the checkpoint was taken
	Restore Signal = "restore"
	// Abandon ends the original with reason Quit
	Abandon Signal = "abandon"
	// Completed adopts the branch's finished session
	Completed Signal = "completed"
)

// SignalFor maps the way a branch session ended onto a signal
func SignalFor(reason sim.Reason) Signal {
	switch reason {
	case sim.Quit:
		return Abandon
	case sim.Won:
		return Completed
	}
	return Restore
}

// Branch plays the rest of a session from a forked simulation. The fork has
// not been started. Branch must return once ctx is cancelled.
type Branch func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error)

// Options configure a Manager
type Options struct {
	// BranchTimeout bounds how long the original waits. Zero waits until the
	// branch finishes; an expired branch counts as Restore.
	BranchTimeout time.Duration
	Logger        *log.Entry
}

// Stats counts checkpoint outcomes
type Stats struct {
	Created   int64 `json:"created"`
	Restored  int64 `json:"restored"`
	Abandoned int64 `json:"abandoned"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
}

// Manager takes checkpoints of a live simulation. At most one checkpoint is
// active per Manager.
type Manager struct {
	opts   Options
	log    *log.Entry
	active atomic.Bool

	created, restored, abandoned, completed, failed atomic.Int64
}

// NewManager creates a checkpoint manager
func NewManager(opts Options) *Manager {
	l := opts.Logger
	if l == nil {
		l = log.NewEntry(log.StandardLogger())
	}
	return &Manager{opts: opts, log: l.WithField("component", "checkpoint")}
}

type branchResult struct {
	reason sim.Reason
	err    error
}

// Create suspends live, forks it and plays the fork with run while the
// original waits. Depending on the branch result the original is resumed
// unchanged (Restore), ended with Quit (Abandon) or ended with Won after the
// branch finished every level (Completed).
//
// If the fork cannot be taken the original resumes and ErrCheckpointFailed is
// returned. If ctx is cancelled the original is ended with Quit and ctx.Err()
// is returned.
func (m *Manager) Create(ctx context.Context, live *sim.Simulation, run Branch) (Signal, error) {
	if !m.active.CompareAndSwap(false, true) {
		return "", ErrCheckpointActive
	}
	defer m.active.Store(false)

	if err := live.Suspend(); err != nil {
		m.log.WithError(err).Warn("units returned an error while suspending")
	}

	fork, err := live.Fork()
	if err != nil {
		m.failed.Add(1)
		live.Resume(ctx)
		m.log.WithError(err).Warn("checkpoint failed, resuming")
		return "", fmt.Errorf("%w: %v", ErrCheckpointFailed, err)
	}
	m.created.Add(1)
	m.log.WithField("depth", fork.Depth()).Info("checkpoint taken, branch started")

	bctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan branchResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				sentry.CurrentHub().Recover(r)
				results <- branchResult{err: fmt.Errorf("branch panic: %v", r)}
			}
		}()
		reason, err := run(bctx, fork)
		results <- branchResult{reason: reason, err: err}
	}()

	var timeout <-chan time.Time
	if m.opts.BranchTimeout > 0 {
		timer := time.NewTimer(m.opts.BranchTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var res branchResult
	select {
	case res = <-results:
	case <-timeout:
		cancel()
		<-results
		m.log.WithField("timeout", m.opts.BranchTimeout).Warn("branch timed out, restoring")
		res = branchResult{reason: sim.Lost}
	case <-ctx.Done():
		cancel()
		<-results
	}

	if err := ctx.Err(); err != nil {
		live.Finish(sim.Quit)
		return "", err
	}
	if res.err != nil {
		m.log.WithError(res.err).Warn("branch failed, restoring")
		res.reason = sim.Lost
	}

	signal := SignalFor(res.reason)
	switch signal {
	case Restore:
		m.restored.Add(1)
		live.Resume(ctx)
	case Abandon:
		m.abandoned.Add(1)
		live.Finish(sim.Quit)
	case Completed:
		m.completed.Add(1)
		live.Finish(sim.Won)
	}
	m.log.WithField("signal", signal).Info("branch returned")
	return signal, nil
}

// Active reports whether a branch is currently running
func (m *Manager) Active() bool {
	return m.active.Load()
}

// Stats returns the outcome counters
func (m *Manager) Stats() Stats {
	return Stats{
		Created:   m.created.Load(),
		Restored:  m.restored.Load(),
		Abandoned: m.abandoned.Load(),
		Completed: m.completed.Load(),
		Failed:    m.failed.Load(),
	}
}
