package engine

import (
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// ErrCorruptBoard is returned by Validate when cell markers and agent
// records disagree
var ErrCorruptBoard = errors.New("board invariants violated")

// Board is the grid, its agents and the random source used for R commands
// and unscripted chasers. A Board is not safe for concurrent use; the
// simulation serialises every access behind its own lock.
type Board struct {
	Name    string
	Width   int
	Height  int
	Tempo   int
	Cells   []Cell
	Runner  *Agent
	Chasers []*Agent

	rng *rand.Rand
}

// NewBoard creates a width x height board of empty floor cells
func NewBoard(width, height int) *Board {
	return &Board{
		Width:  width,
		Height: height,
		Cells:  make([]Cell, width*height),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetRand replaces the board's random source
func (b *Board) SetRand(r *rand.Rand) {
	b.rng = r
}

// InBounds reports whether x,y is on the grid
func (b *Board) InBounds(x, y int) bool {
	return x >= 0 && x < b.Width && y >= 0 && y < b.Height
}

// Index converts a position to a Cells offset
func (b *Board) Index(x, y int) int {
	return y*b.Width + x
}

// Cell returns the cell at x,y or nil when off the grid
func (b *Board) Cell(x, y int) *Cell {
	if !b.InBounds(x, y) {
		return nil
	}
	return &b.Cells[b.Index(x, y)]
}

// PlaceRunner puts the runner on the board at its recorded position. The
// spawn cell's collectible is consumed without scoring.
func (b *Board) PlaceRunner(a *Agent) error {
	c := b.Cell(a.Pos.X, a.Pos.Y)
	switch {
	case c == nil:
		return fmt.Errorf("runner position (%d,%d) outside %dx%d board", a.Pos.X, a.Pos.Y, b.Width, b.Height)
	case c.Wall:
		return fmt.Errorf("runner position (%d,%d) is a wall", a.Pos.X, a.Pos.Y)
	case c.Portal:
		return fmt.Errorf("runner position (%d,%d) is the portal", a.Pos.X, a.Pos.Y)
	case c.Occupant != Empty:
		return fmt.Errorf("runner position (%d,%d) is occupied", a.Pos.X, a.Pos.Y)
	}
	a.Kind = Runner
	a.Alive = true
	a.Placed = true
	c.Collectible = false
	c.Occupant = RunnerMark
	b.Runner = a
	return nil
}

// PlaceChaser adds a chaser to the board. Chasers whose position is off the
// grid, a wall, the portal or an occupied cell are kept but never drawn and
// never move; PlaceChaser reports whether the chaser was placed.
func (b *Board) PlaceChaser(a *Agent) bool {
	a.Kind = Chaser
	a.Alive = true
	a.Placed = false
	b.Chasers = append(b.Chasers, a)

	c := b.Cell(a.Pos.X, a.Pos.Y)
	if c == nil || c.Wall || c.Portal || c.Occupant != Empty {
		return false
	}
	c.Occupant = ChaserMark
	a.Placed = true
	return true
}

// Clone returns an independent deep copy of the board. The copy gets its own
// random source seeded from the original.
func (b *Board) Clone() *Board {
	cp := &Board{
		Name:   b.Name,
		Width:  b.Width,
		Height: b.Height,
		Tempo:  b.Tempo,
		Cells:  make([]Cell, len(b.Cells)),
	}
	copy(cp.Cells, b.Cells)
	if b.Runner != nil {
		cp.Runner = b.Runner.clone()
	}
	cp.Chasers = make([]*Agent, len(b.Chasers))
	for i, c := range b.Chasers {
		cp.Chasers[i] = c.clone()
	}
	seed := time.Now().UnixNano()
	if b.rng != nil {
		seed = b.rng.Int63()
	}
	cp.rng = rand.New(rand.NewSource(seed))
	return cp
}

// Validate checks that every cell marker matches exactly one agent record
// and that no agent stands on a wall
func (b *Board) Validate() error {
	if b.Width < MinDim || b.Height < MinDim || len(b.Cells) != b.Width*b.Height {
		return fmt.Errorf("%w: bad dimensions %dx%d with %d cells", ErrCorruptBoard, b.Width, b.Height, len(b.Cells))
	}

	runnerMarks, chaserMarks := 0, 0
	for i, c := range b.Cells {
		if c.Occupant == Empty {
			continue
		}
		if c.Wall {
			return fmt.Errorf("%w: agent on wall at (%d,%d)", ErrCorruptBoard, i%b.Width, i/b.Width)
		}
		switch c.Occupant {
		case RunnerMark:
			runnerMarks++
		case ChaserMark:
			chaserMarks++
		}
	}

	wantRunner := 0
	if b.Runner != nil && b.Runner.Alive && b.Runner.Placed {
		wantRunner = 1
		c := b.Cell(b.Runner.Pos.X, b.Runner.Pos.Y)
		if c == nil || c.Occupant != RunnerMark {
			return fmt.Errorf("%w: runner record (%d,%d) has no marker", ErrCorruptBoard, b.Runner.Pos.X, b.Runner.Pos.Y)
		}
	}
	if runnerMarks != wantRunner {
		return fmt.Errorf("%w: %d runner markers, expected %d", ErrCorruptBoard, runnerMarks, wantRunner)
	}

	placed := 0
	for i, ch := range b.Chasers {
		if !ch.Placed {
			continue
		}
		placed++
		c := b.Cell(ch.Pos.X, ch.Pos.Y)
		if c == nil || c.Occupant != ChaserMark {
			return fmt.Errorf("%w: chaser %d record (%d,%d) has no marker", ErrCorruptBoard, i, ch.Pos.X, ch.Pos.Y)
		}
	}
	if chaserMarks != placed {
		return fmt.Errorf("%w: %d chaser markers, expected %d", ErrCorruptBoard, chaserMarks, placed)
	}
	return nil
}

// RemainingCollectibles counts collectibles still on the board
func (b *Board) RemainingCollectibles() int {
	return CountCollectibles(b.Cells)
}

// Points returns the runner's score
func (b *Board) Points() int {
	if b.Runner == nil {
		return 0
	}
	return b.Runner.Points
}

// Rows renders the board one string per row
func (b *Board) Rows() []string {
	rows := make([]string, b.Height)
	line := make([]byte, b.Width)
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			line[x] = b.Cells[b.Index(x, y)].Glyph()
		}
		rows[y] = string(line)
	}
	return rows
}

// Snapshot copies the renderable state of the board
func (b *Board) Snapshot() Snapshot {
	s := Snapshot{
		Name:      b.Name,
		Width:     b.Width,
		Height:    b.Height,
		Tempo:     b.Tempo,
		Rows:      b.Rows(),
		Remaining: b.RemainingCollectibles(),
		Chasers:   make([]AgentView, 0, len(b.Chasers)),
	}
	if b.Runner != nil {
		s.Runner = viewOf(b.Runner)
	}
	for _, c := range b.Chasers {
		s.Chasers = append(s.Chasers, viewOf(c))
	}
	return s
}

// RandomDirection picks one of the four directions from the board's source
func (b *Board) RandomDirection() byte {
	dirs := [...]byte{OpNorth, OpSouth, OpEast, OpWest}
	return dirs[b.rng.Intn(len(dirs))]
}

func viewOf(a *Agent) AgentView {
	return AgentView{
		Name:    a.Name,
		Pos:     a.Pos,
		Alive:   a.Alive,
		Placed:  a.Placed,
		Points:  a.Points,
		Charged: a.Charged,
	}
}
