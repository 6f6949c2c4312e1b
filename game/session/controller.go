package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/mazechase/game/checkpoint"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

// ErrNoLevels is returned when the level directory has nothing to play
var ErrNoLevels = errors.New("no playable levels")

// DefaultFrameInterval is roughly 30 frames per second
const DefaultFrameInterval = 33 * time.Millisecond

// Renderer draws frames. Render is called from the controller goroutine.
type Renderer interface {
	Render(frame Frame) error
}

// RendererFunc adapts a function to Renderer
type RendererFunc func(frame Frame) error

func (f RendererFunc) Render(frame Frame) error {
	return f(frame)
}

// InputSource yields key presses without blocking
type InputSource interface {
	Poll() (rune, bool)
}

// LevelLoader lists levels in play order and builds fresh boards
type LevelLoader interface {
	Levels() ([]string, error)
	Load(name string, points int) (*engine.Board, error)
}

// Mode describes what a frame shows
type Mode string

const (
	ModePlaying  Mode = "playing"
	ModeLevelWon Mode = "level_won"
	ModeGameOver Mode = "game_over"
	ModeFinished Mode = "finished"
	ModeQuit     Mode = "quit"
)

// Frame is one rendered view of a session
type Frame struct {
	Session    string    `json:"session,omitempty"`
	Level      string    `json:"level"`
	LevelIndex int       `json:"level_index"`
	LevelCount int       `json:"level_count"`
	Mode       Mode      `json:"mode"`
	Branch     int       `json:"branch"`
	Points     int       `json:"points"`
	Message    string    `json:"message,omitempty"`
	State      sim.State `json:"state"`
	Time       time.Time `json:"time"`
}

// Result is how a session ended
type Result struct {
	Reason        sim.Reason `json:"reason"`
	Points        int        `json:"points"`
	LevelsCleared int        `json:"levels_cleared"`
	LastLevel     string     `json:"last_level,omitempty"`
}

// Options configure a Controller
type Options struct {
	ID            string
	FrameInterval time.Duration
	// EndScreen is how long win and game over frames stay up
	EndScreen  time.Duration
	Sim        sim.Options
	Checkpoint checkpoint.Options
	Logger     *log.Entry
}

// Controller plays every level of a directory in order, forwarding input to
// the running simulation and rendering frames at a fixed rate
type Controller struct {
	loader      LevelLoader
	renderer    Renderer
	input       InputSource
	opts        Options
	checkpoints *checkpoint.Manager
	log         *log.Entry

	mu   sync.RWMutex
	last Frame
}

// NewController creates a controller. input may be nil for sessions driven
// only by scripts.
func NewController(loader LevelLoader, renderer Renderer, input InputSource, opts Options) *Controller {
	if opts.FrameInterval <= 0 {
		opts.FrameInterval = DefaultFrameInterval
	}
	l := opts.Logger
	if l == nil {
		l = log.NewEntry(log.StandardLogger())
	}
	if opts.ID != "" {
		l = l.WithField("session", opts.ID)
	}
	if opts.Sim.Logger == nil {
		opts.Sim.Logger = l
	}
	if opts.Checkpoint.Logger == nil {
		opts.Checkpoint.Logger = l
	}

	return &Controller{
		loader:      loader,
		renderer:    renderer,
		input:       input,
		opts:        opts,
		checkpoints: checkpoint.NewManager(opts.Checkpoint),
		log:         l,
	}
}

// Run plays the session to completion. It returns ctx.Err() if ctx is
// cancelled first.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	names, err := c.loader.Levels()
	if err != nil {
		return Result{}, fmt.Errorf("list levels: %w", err)
	}
	if len(names) == 0 {
		return Result{}, ErrNoLevels
	}

	c.log.WithField("levels", len(names)).Info("session started")
	res, err := c.play(ctx, names, 0, Result{}, nil)
	if err != nil {
		return res, err
	}
	c.log.WithFields(log.Fields{
		"reason":  res.Reason,
		"points":  res.Points,
		"cleared": res.LevelsCleared,
	}).Info("session finished")
	return res, nil
}

// LastFrame returns the most recently rendered frame
func (c *Controller) LastFrame() Frame {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.last
}

// Checkpoints returns the checkpoint counters for this session
func (c *Controller) Checkpoints() checkpoint.Stats {
	return c.checkpoints.Stats()
}

// play runs levels from start onwards. fork, when set, is the forked
// simulation of level start and is played instead of loading it.
func (c *Controller) play(ctx context.Context, names []string, start int, res Result, fork *sim.Simulation) (Result, error) {
	depth := 0
	if fork != nil {
		depth = fork.Depth()
	}

	var last sim.State
	for i := start; i < len(names); i++ {
		s := fork
		fork = nil
		if s == nil {
			board, err := c.loader.Load(names[i], res.Points)
			if err != nil {
				c.log.WithError(err).WithField("level_name", names[i]).Warn("skipping level")
				continue
			}
			s = sim.New(board, depth, c.opts.Sim)
		}
		s.Start(ctx)

		adopted, err := c.playLevel(ctx, s, names, i, res)
		if err != nil {
			return res, err
		}
		if adopted != nil {
			return *adopted, nil
		}

		last = s.State()
		res.Points = s.Points()
		res.LastLevel = names[i]

		switch s.Reason() {
		case sim.Won:
			res.LevelsCleared++
			if err := c.endScreen(ctx, c.frame(names, i, ModeLevelWon, last, "level complete")); err != nil {
				return res, err
			}
		case sim.Lost:
			res.Reason = sim.Lost
			return res, c.endScreen(ctx, c.frame(names, i, ModeGameOver, last, "game over"))
		default:
			res.Reason = sim.Quit
			c.render(c.frame(names, i, ModeQuit, last, "quit"))
			return res, nil
		}
	}

	res.Reason = sim.Won
	c.render(c.frame(names, len(names)-1, ModeFinished, last, fmt.Sprintf("all levels cleared with %d points", res.Points)))
	return res, nil
}

// playLevel drives one running simulation until it stops. A non-nil Result
// means a checkpoint branch finished the session and its result replaces
// this one.
func (c *Controller) playLevel(ctx context.Context, s *sim.Simulation, names []string, i int, res Result) (*Result, error) {
	ticker := time.NewTicker(c.opts.FrameInterval)
	defer ticker.Stop()

	for {
		st := s.State()
		c.render(c.frame(names, i, ModePlaying, st, ""))
		if !st.Running {
			return nil, s.Wait()
		}

		if st.CheckpointPending {
			adopted, err := c.checkpoint(ctx, s, names, i, res)
			switch {
			case errors.Is(err, checkpoint.ErrCheckpointFailed):
				continue
			case err != nil:
				s.Wait()
				return nil, err
			case adopted != nil:
				s.Wait()
				return adopted, nil
			}
			continue
		}

		c.pollInput(s)

		select {
		case <-ctx.Done():
			s.Quit()
			s.Wait()
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Controller) checkpoint(ctx context.Context, s *sim.Simulation, names []string, i int, res Result) (*Result, error) {
	var branch Result
	signal, err := c.checkpoints.Create(ctx, s, func(bctx context.Context, fork *sim.Simulation) (sim.Reason, error) {
		r, err := c.play(bctx, names, i, res, fork)
		branch = r
		return r.Reason, err
	})
	if err != nil {
		return nil, err
	}
	if signal == checkpoint.Completed {
		return &branch, nil
	}
	return nil, nil
}

func (c *Controller) pollInput(s *sim.Simulation) {
	if c.input == nil {
		return
	}
	for {
		r, ok := c.input.Poll()
		if !ok {
			return
		}
		op, ok := engine.ParseOp(r)
		if !ok {
			continue
		}
		switch op {
		case engine.OpQuit:
			s.Quit()
		case engine.OpCheckpoint:
			if !s.RequestCheckpoint() {
				c.log.WithField("depth", s.Depth()).Debug("checkpoint refused")
			}
		default:
			if engine.IsDirection(op) {
				s.Inject(engine.NewCommand(op, 1))
			}
		}
	}
}

func (c *Controller) frame(names []string, i int, mode Mode, st sim.State, msg string) Frame {
	return Frame{
		Session:    c.opts.ID,
		Level:      names[i],
		LevelIndex: i,
		LevelCount: len(names),
		Mode:       mode,
		Branch:     st.Depth,
		Points:     st.Board.Runner.Points,
		Message:    msg,
		State:      st,
		Time:       time.Now(),
	}
}

func (c *Controller) render(f Frame) {
	c.mu.Lock()
	c.last = f
	c.mu.Unlock()

	if c.renderer == nil {
		return
	}
	if err := c.renderer.Render(f); err != nil {
		c.log.WithError(err).Debug("render failed")
	}
}

func (c *Controller) endScreen(ctx context.Context, f Frame) error {
	c.render(f)
	if c.opts.EndScreen <= 0 {
		return nil
	}
	timer := time.NewTimer(c.opts.EndScreen)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
