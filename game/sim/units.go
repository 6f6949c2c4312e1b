package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

type turn struct {
	outcome engine.Outcome
	// scripted is set when the runner consumed a script command
	scripted bool
	stop     bool
}

func (s *Simulation) runRunner(ctx context.Context) error {
	defer s.recoverUnit("runner")

	wait := s.poll
	for {
		if !sleep(ctx, wait) {
			return nil
		}
		t := s.runnerTurn()
		if t.stop {
			return nil
		}
		wait = s.poll
		if t.scripted {
			wait = s.tick
		}
	}
}

func (s *Simulation) runChaser(ctx context.Context, i int) error {
	defer s.recoverUnit(fmt.Sprintf("chaser-%d", i))

	for {
		if !sleep(ctx, s.tick) {
			return nil
		}
		if s.chaserTurn(i).stop {
			return nil
		}
	}
}

func (s *Simulation) runnerTurn() turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return turn{stop: true}
	}
	// A pending checkpoint freezes the board until the controller forks it
	if s.pending {
		return turn{}
	}

	r := s.board.Runner
	var t turn
	switch {
	case s.injected != nil:
		cmd := *s.injected
		s.injected = nil
		t.outcome = s.runnerCommandLocked(cmd, nil)
	case r.Scripted():
		t.scripted = true
		t.outcome = s.runnerCommandLocked(*r.NextCommand(), r)
	default:
		return turn{outcome: engine.Invalid}
	}

	s.settleLocked(t.outcome)
	t.stop = !s.running
	return t
}

// runnerCommandLocked applies cmd to the runner. script is the runner when
// cmd came from its script, nil for injected commands.
func (s *Simulation) runnerCommandLocked(cmd engine.Command, script *engine.Agent) engine.Outcome {
	r := s.board.Runner
	switch cmd.Op {
	case engine.OpCheckpoint:
		if script != nil {
			script.Advance()
		}
		s.requestLocked()
		return engine.Valid
	case engine.OpQuit:
		if script != nil {
			script.Advance()
		}
		s.endLocked(Quit)
		return engine.Valid
	}

	var out engine.Outcome
	if script != nil {
		out = s.board.Step(r)
	} else {
		out = s.board.ApplyMove(r, cmd)
	}
	s.log.WithFields(log.Fields{
		"agent":   r.Name,
		"command": cmd.String(),
		"outcome": out.String(),
		"pos":     r.Pos,
	}).Debug("runner move")
	return out
}

func (s *Simulation) chaserTurn(i int) turn {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || i >= len(s.board.Chasers) {
		return turn{stop: true}
	}
	if s.pending {
		return turn{}
	}

	c := s.board.Chasers[i]
	if !c.Placed {
		return turn{outcome: engine.Invalid}
	}

	var out engine.Outcome
	if c.Scripted() {
		out = s.board.Step(c)
	} else {
		out = s.board.ApplyMove(c, engine.NewCommand(s.board.RandomDirection(), 1))
	}
	s.log.WithFields(log.Fields{
		"agent":   c.Name,
		"outcome": out.String(),
		"pos":     c.Pos,
	}).Debug("chaser move")

	s.settleLocked(out)
	return turn{outcome: out, stop: !s.running}
}

func (s *Simulation) settleLocked(out engine.Outcome) {
	switch {
	case out == engine.PortalReached:
		s.endLocked(Won)
	case out == engine.RunnerDestroyed, !s.board.Runner.Alive:
		s.endLocked(Lost)
	}
}

// recoverUnit is deferred by every unit. A panicking unit ends the level with
// reason Quit so nothing waits on a dead goroutine.
func (s *Simulation) recoverUnit(unit string) {
	r := recover()
	if r == nil {
		return
	}
	sentry.CurrentHub().Recover(r)
	s.log.WithField("unit", unit).Errorf("unit panic: %v", r)

	s.mu.Lock()
	s.endLocked(Quit)
	s.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
