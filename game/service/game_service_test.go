package service_test

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/service"
	"github.com/wricardo/mcp-training/mazechase/game/session"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

// MockLevelManager implements service.LevelManager with in-memory layouts
type MockLevelManager struct {
	layouts map[string][]string
}

func NewMockLevelManager() *MockLevelManager {
	return &MockLevelManager{
		layouts: map[string][]string{
			// Manual runner with no way out
			"1.lvl": {"C  ", "   "},
			// Manual runner next to the portal
			"2.lvl": {"C@"},
		},
	}
}

func (m *MockLevelManager) Levels() ([]string, error) {
	var names []string
	for name := range m.layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MockLevelManager) Load(name string, points int) (*engine.Board, error) {
	rows, ok := m.layouts[name]
	if !ok {
		return nil, config.ErrLevelNotFound
	}
	b := engine.NewBoard(len(rows[0]), len(rows))
	b.Name = name
	b.SetRand(rand.New(rand.NewSource(1)))
	for y, row := range rows {
		for x := 0; x < len(row); x++ {
			switch row[x] {
			case '@':
				b.Cell(x, y).Portal = true
			case 'C':
				r := &engine.Agent{Name: "runner", Pos: engine.Position{X: x, Y: y}, Points: points}
				if err := b.PlaceRunner(r); err != nil {
					return nil, err
				}
			}
		}
	}
	return b, nil
}

func (m *MockLevelManager) ListLevels() ([]*config.LevelInfo, error) {
	names, _ := m.Levels()
	var infos []*config.LevelInfo
	for _, name := range names {
		infos = append(infos, &config.LevelInfo{
			Filename: name,
			Name:     strings.TrimSuffix(name, config.LevelExt),
			Width:    len(m.layouts[name][0]),
			Height:   len(m.layouts[name]),
			Manual:   true,
		})
	}
	return infos, nil
}

func newTestService(t *testing.T) service.GameService {
	t.Helper()
	sessions := session.NewManager()
	t.Cleanup(sessions.Shutdown)
	opts := session.Options{
		FrameInterval: 2 * time.Millisecond,
		Sim:           sim.Options{Tick: time.Millisecond, InputPoll: time.Millisecond},
	}
	return service.NewGameService(sessions, NewMockLevelManager(), nil, opts)
}

func waitFinished(t *testing.T, svc service.GameService, id string) *service.SessionInfo {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		info, err := svc.GetSession(context.Background(), id)
		if err != nil {
			t.Fatalf("GetSession failed: %v", err)
		}
		if info.Finished {
			return info
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("session %s did not finish", id)
	return nil
}

func TestCreateSession(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	t.Run("All levels", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, service.CreateSessionRequest{})
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(info.Levels) != 2 {
			t.Errorf("Expected 2 levels, got %v", info.Levels)
		}
		if info.Finished {
			t.Error("New session should be running")
		}
	})

	t.Run("Level subset without extension", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, service.CreateSessionRequest{ID: "subset", Levels: []string{"2"}})
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if len(info.Levels) != 1 || info.Levels[0] != "2.lvl" {
			t.Errorf("Expected only 2.lvl, got %v", info.Levels)
		}
	})

	t.Run("Unknown level", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, service.CreateSessionRequest{Levels: []string{"nope"}})
		if !errors.Is(err, service.ErrUnknownLevel) {
			t.Errorf("Expected ErrUnknownLevel, got %v", err)
		}
		if err != nil && !strings.Contains(err.Error(), "1.lvl") {
			t.Errorf("Error should list available levels: %v", err)
		}
	})

	t.Run("Duplicate ID", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, service.CreateSessionRequest{ID: "SUBSET"})
		if !errors.Is(err, session.ErrSessionAlreadyExists) {
			t.Errorf("Expected ErrSessionAlreadyExists, got %v", err)
		}
	})
}

func TestSendCommandPlaysLevel(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{Levels: []string{"2.lvl"}})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	res, err := svc.SendCommand(ctx, info.ID, "right")
	if err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	if !res.Accepted || res.Command != "E" {
		t.Errorf("Expected E accepted, got %+v", res)
	}

	final := waitFinished(t, svc, info.ID)
	if final.Result == nil || final.Result.Reason != sim.Won {
		t.Errorf("Expected Won, got %+v", final.Result)
	}
	if final.Frame.Mode != session.ModeFinished {
		t.Errorf("Expected finished frame, got %s", final.Frame.Mode)
	}

	if _, err := svc.SendCommand(ctx, info.ID, "E"); !errors.Is(err, service.ErrSessionFinished) {
		t.Errorf("Expected ErrSessionFinished, got %v", err)
	}
}

func TestSendCommandQuit(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{Levels: []string{"1"}})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	if _, err := svc.SendCommand(ctx, info.ID, "q"); err != nil {
		t.Fatalf("SendCommand failed: %v", err)
	}
	final := waitFinished(t, svc, info.ID)
	if final.Result.Reason != sim.Quit {
		t.Errorf("Expected Quit, got %q", final.Result.Reason)
	}
}

func TestSendCommandErrors(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	if _, err := svc.SendCommand(ctx, "missing", "N"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound, got %v", err)
	}

	info, _ := svc.CreateSession(ctx, service.CreateSessionRequest{Levels: []string{"1"}})
	for _, cmd := range []string{"", "T", "C", "jump", "NE"} {
		if _, err := svc.SendCommand(ctx, info.ID, cmd); !errors.Is(err, service.ErrInvalidCommand) {
			t.Errorf("SendCommand(%q): expected ErrInvalidCommand, got %v", cmd, err)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  rune
		ok    bool
	}{
		{"N", 'N', true},
		{"s", 'S', true},
		{" e ", 'E', true},
		{"w", 'W', true},
		{"up", 'N', true},
		{"Down", 'S', true},
		{"left", 'W', true},
		{"right", 'E', true},
		{"g", 'G', true},
		{"checkpoint", 'G', true},
		{"quit", 'Q', true},
		{"R", 0, false},
		{"x", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			got, err := service.ParseCommand(tt.input)
			if tt.ok && (err != nil || got != tt.want) {
				t.Errorf("ParseCommand(%q) = %q, %v; want %q", tt.input, got, err, tt.want)
			}
			if !tt.ok && err == nil {
				t.Errorf("ParseCommand(%q) should fail", tt.input)
			}
		})
	}
}

func TestGetStateAndList(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	info, err := svc.CreateSession(ctx, service.CreateSessionRequest{ID: "viewer", Levels: []string{"1"}})
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	var frame *session.Frame
	for time.Now().Before(deadline) {
		frame, err = svc.GetState(ctx, info.ID)
		if err != nil {
			t.Fatalf("GetState failed: %v", err)
		}
		if frame.Mode == session.ModePlaying {
			break
		}
		time.Sleep(2 * time.Millisecond)
	}
	if frame.Mode != session.ModePlaying || frame.Level != "1.lvl" {
		t.Fatalf("Expected playing frame on 1.lvl, got %s on %q", frame.Mode, frame.Level)
	}
	if frame.State.Board.Width != 3 || frame.State.Board.Height != 2 {
		t.Errorf("Unexpected board size %dx%d", frame.State.Board.Width, frame.State.Board.Height)
	}

	sessions, _ := svc.ListSessions(ctx)
	if len(sessions) != 1 || sessions[0].ID != "viewer" {
		t.Errorf("Expected one listed session, got %d", len(sessions))
	}

	if err := svc.DeleteSession(ctx, "viewer"); err != nil {
		t.Fatalf("DeleteSession failed: %v", err)
	}
	if _, err := svc.GetState(ctx, "viewer"); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("Expected ErrSessionNotFound after delete, got %v", err)
	}
}

func TestListLevels(t *testing.T) {
	svc := newTestService(t)
	levels, err := svc.ListLevels(context.Background())
	if err != nil {
		t.Fatalf("ListLevels failed: %v", err)
	}
	if len(levels) != 2 || levels[0].Name != "1" {
		t.Errorf("Unexpected levels %+v", levels)
	}
}
