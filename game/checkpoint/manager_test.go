package checkpoint

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

// idleOptions keeps resumed units asleep so tests can inspect state
func idleOptions() sim.Options {
	return sim.Options{Tick: time.Hour, InputPoll: time.Hour}
}

// scenarioSim is a 5x5 board with a scripted runner at (0,0) running E E S
// and a chaser parked at (2,2)
func scenarioSim(t *testing.T) *sim.Simulation {
	t.Helper()
	b := engine.NewBoard(5, 5)
	runner := &engine.Agent{
		Name:   "runner",
		Pos:    engine.Position{X: 0, Y: 0},
		Script: []engine.Command{engine.NewCommand(engine.OpEast, 1), engine.NewCommand(engine.OpEast, 1), engine.NewCommand(engine.OpSouth, 1)},
	}
	if err := b.PlaceRunner(runner); err != nil {
		t.Fatalf("Failed to place runner: %v", err)
	}
	chaser := &engine.Agent{Name: "chaser", Pos: engine.Position{X: 2, Y: 2}, Script: []engine.Command{engine.NewCommand(engine.OpTurn, 1)}}
	if !b.PlaceChaser(chaser) {
		t.Fatal("Failed to place chaser")
	}
	return sim.New(b, 0, idleOptions())
}

func stopLive(t *testing.T, cancel context.CancelFunc, s *sim.Simulation) {
	t.Helper()
	s.Quit()
	cancel()
	s.Wait()
}

func TestSignalFor(t *testing.T) {
	tests := []struct {
		reason   sim.Reason
		expected Signal
	}{
		{sim.Lost, Restore},
		{sim.Quit, Abandon},
		{sim.Won, Completed},
		{sim.None, Restore},
	}
	for _, test := range tests {
		if got := SignalFor(test.reason); got != test.expected {
			t.Errorf("SignalFor(%q): expected %s, got %s", test.reason, test.expected, got)
		}
	}
}

func TestRestoreAfterBranchLoses(t *testing.T) {
	live := scenarioSim(t)
	live.StepRunner()
	live.StepRunner()

	if pos := live.State().Board.Runner.Pos; pos != (engine.Position{X: 2, Y: 0}) {
		t.Fatalf("Expected runner at (2,0) after two ticks, got %+v", pos)
	}
	if !live.RequestCheckpoint() {
		t.Fatal("Expected checkpoint request accepted")
	}
	before := live.State().Board

	ctx, cancel := context.WithCancel(context.Background())
	defer stopLive(t, cancel, live)

	m := NewManager(Options{})
	signal, err := m.Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		// Walk the fork's runner south into the chaser
		fork.StepRunner()
		fork.Inject(engine.NewCommand(engine.OpSouth, 1))
		if out := fork.StepRunner(); out != engine.RunnerDestroyed {
			t.Errorf("Expected branch runner destroyed, got %v", out)
		}
		return fork.Reason(), nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if signal != Restore {
		t.Fatalf("Expected Restore, got %s", signal)
	}

	st := live.State()
	if !reflect.DeepEqual(st.Board, before) {
		t.Errorf("Expected board restored to checkpoint state\nbefore: %+v\nafter:  %+v", before, st.Board)
	}
	if st.Board.Runner.Pos != (engine.Position{X: 2, Y: 0}) || !st.Board.Runner.Alive {
		t.Errorf("Expected live runner alive at (2,0), got %+v", st.Board.Runner)
	}
	if !st.Running || st.CheckpointPending {
		t.Errorf("Expected live running without pending checkpoint, got running=%v pending=%v", st.Running, st.CheckpointPending)
	}
	if m.Stats().Restored != 1 || m.Stats().Created != 1 {
		t.Errorf("Unexpected stats %+v", m.Stats())
	}
}

func TestBranchKeepsInjectedCommand(t *testing.T) {
	live := scenarioSim(t)
	if !live.RequestCheckpoint() {
		t.Fatal("Expected checkpoint request accepted")
	}
	// Pressed in the same frame as the checkpoint key
	live.Inject(engine.NewCommand(engine.OpSouth, 1))

	ctx, cancel := context.WithCancel(context.Background())
	defer stopLive(t, cancel, live)

	var branchPos engine.Position
	signal, err := NewManager(Options{}).Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		if out := fork.StepRunner(); out != engine.Valid {
			t.Errorf("Expected branch to apply the injected command, got %v", out)
		}
		branchPos = fork.State().Board.Runner.Pos
		return sim.Lost, nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if signal != Restore {
		t.Fatalf("Expected Restore, got %s", signal)
	}
	if branchPos != (engine.Position{X: 0, Y: 1}) {
		t.Errorf("Expected branch runner at (0,1), got %+v", branchPos)
	}

	if out := live.StepRunner(); out != engine.Valid {
		t.Fatalf("Expected restored step Valid, got %v", out)
	}
	if pos := live.State().Board.Runner.Pos; pos != branchPos {
		t.Errorf("Expected restored runner to follow the branch to %+v, got %+v", branchPos, pos)
	}
}

func TestBranchSeesCheckpointState(t *testing.T) {
	live := scenarioSim(t)
	live.StepRunner()
	live.RequestCheckpoint()
	want := live.State().Board

	ctx, cancel := context.WithCancel(context.Background())
	defer stopLive(t, cancel, live)

	var got engine.Snapshot
	var depth int
	_, err := NewManager(Options{}).Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		got = fork.State().Board
		depth = fork.Depth()
		return sim.Lost, nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Fork does not match checkpoint state")
	}
	if depth != 1 {
		t.Errorf("Expected fork depth 1, got %d", depth)
	}
}

func TestAbandonAndComplete(t *testing.T) {
	tests := []struct {
		name   string
		reason sim.Reason
		signal Signal
		final  sim.Reason
	}{
		{"quit in branch", sim.Quit, Abandon, sim.Quit},
		{"branch finished", sim.Won, Completed, sim.Won},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			live := scenarioSim(t)
			live.RequestCheckpoint()

			signal, err := NewManager(Options{}).Create(context.Background(), live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
				return test.reason, nil
			})
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if signal != test.signal {
				t.Errorf("Expected %s, got %s", test.signal, signal)
			}
			if live.Running() || live.Reason() != test.final {
				t.Errorf("Expected live stopped with %q, got running=%v reason=%q", test.final, live.Running(), live.Reason())
			}
		})
	}
}

func TestCheckpointFailedResumes(t *testing.T) {
	b := engine.NewBoard(3, 1)
	b.PlaceRunner(&engine.Agent{Pos: engine.Position{X: 0, Y: 0}})
	b.Cell(2, 0).Occupant = engine.RunnerMark
	live := sim.New(b, 0, idleOptions())
	live.RequestCheckpoint()

	ctx, cancel := context.WithCancel(context.Background())
	defer stopLive(t, cancel, live)

	m := NewManager(Options{})
	called := false
	_, err := m.Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		called = true
		return sim.Lost, nil
	})
	if !errors.Is(err, ErrCheckpointFailed) {
		t.Fatalf("Expected ErrCheckpointFailed, got %v", err)
	}
	if called {
		t.Error("Branch must not run when the fork fails")
	}
	if !live.Running() || live.CheckpointPending() {
		t.Error("Expected live to resume with the request cleared")
	}
	if m.Stats().Failed != 1 {
		t.Errorf("Expected 1 failure, got %+v", m.Stats())
	}
}

func TestBranchTimeoutRestores(t *testing.T) {
	live := scenarioSim(t)
	live.RequestCheckpoint()

	ctx, cancel := context.WithCancel(context.Background())
	defer stopLive(t, cancel, live)

	m := NewManager(Options{BranchTimeout: 20 * time.Millisecond})
	signal, err := m.Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		<-ctx.Done()
		return sim.Won, ctx.Err()
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if signal != Restore {
		t.Errorf("Expected Restore on timeout, got %s", signal)
	}
	if !live.Running() {
		t.Error("Expected live running after timeout")
	}
}

func TestBranchErrorRestores(t *testing.T) {
	tests := []struct {
		name string
		run  Branch
	}{
		{"error", func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
			return sim.Won, errors.New("boom")
		}},
		{"panic", func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
			panic("boom")
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			live := scenarioSim(t)
			live.RequestCheckpoint()
			ctx, cancel := context.WithCancel(context.Background())
			defer stopLive(t, cancel, live)

			signal, err := NewManager(Options{}).Create(ctx, live, test.run)
			if err != nil {
				t.Fatalf("Create failed: %v", err)
			}
			if signal != Restore {
				t.Errorf("Expected Restore, got %s", signal)
			}
		})
	}
}

func TestContextCancelEndsOriginal(t *testing.T) {
	live := scenarioSim(t)
	live.RequestCheckpoint()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := NewManager(Options{}).Create(ctx, live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		<-ctx.Done()
		return sim.None, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if live.Running() || live.Reason() != sim.Quit {
		t.Errorf("Expected original ended with Quit, got running=%v reason=%q", live.Running(), live.Reason())
	}
}

func TestOneActiveCheckpoint(t *testing.T) {
	live := scenarioSim(t)
	live.RequestCheckpoint()

	m := NewManager(Options{})
	var nested error
	_, err := m.Create(context.Background(), live, func(ctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		if !m.Active() {
			t.Error("Expected manager active during branch")
		}
		_, nested = m.Create(ctx, fork, func(context.Context, *sim.Simulation) (sim.Reason, error) {
			return sim.Lost, nil
		})
		return sim.Quit, nil
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if !errors.Is(nested, ErrCheckpointActive) {
		t.Errorf("Expected ErrCheckpointActive for nested checkpoint, got %v", nested)
	}
	if m.Active() {
		t.Error("Expected manager inactive after branch")
	}
}
