package engine

import "strconv"

// Kind tells runners and chasers apart
type Kind string

const (
	Runner Kind = "runner"
	Chaser Kind = "chaser"
)

// Occupant is the agent marker held by a cell
type Occupant int

const (
	Empty Occupant = iota
	RunnerMark
	ChaserMark
)

// Outcome is the result of applying one command to the board
type Outcome int

const (
	Valid Outcome = iota
	Invalid
	PortalReached
	RunnerDestroyed
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case PortalReached:
		return "portal_reached"
	case RunnerDestroyed:
		return "runner_destroyed"
	}
	return "unknown"
}

// Command ops
const (
	OpNorth      byte = 'N'
	OpSouth      byte = 'S'
	OpEast       byte = 'E'
	OpWest       byte = 'W'
	OpTurn       byte = 'T'
	OpRandom     byte = 'R'
	OpCharge     byte = 'C'
	OpCheckpoint byte = 'G'
	OpQuit       byte = 'Q'
)

const (
	// Limits
	MinDim       = 1
	MaxDim       = 100
	MaxChasers   = 25
	MaxScriptLen = 100
	MaxLevels    = 20

	// Glyphs used by Board.Rows
	GlyphWall        = 'X'
	GlyphRunner      = 'C'
	GlyphChaser      = 'M'
	GlyphPortal      = '@'
	GlyphCollectible = '.'
	GlyphFloor       = ' '

	CollectiblePoints = 1
)

// Position represents column (X) and row (Y) coordinates
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Cell represents a single board cell
type Cell struct {
	Wall        bool     `json:"wall,omitempty"`
	Collectible bool     `json:"collectible,omitempty"`
	Portal      bool     `json:"portal,omitempty"`
	Occupant    Occupant `json:"occupant,omitempty"`
}

// Glyph returns the character used to draw the cell
func (c Cell) Glyph() byte {
	switch {
	case c.Occupant == RunnerMark:
		return GlyphRunner
	case c.Occupant == ChaserMark:
		return GlyphChaser
	case c.Wall:
		return GlyphWall
	case c.Portal:
		return GlyphPortal
	case c.Collectible:
		return GlyphCollectible
	}
	return GlyphFloor
}

// Command is one script step. Turns is the declared count for T commands
// and TurnsLeft the remaining countdown.
type Command struct {
	Op        byte `json:"op"`
	Turns     int  `json:"turns"`
	TurnsLeft int  `json:"turns_left"`
}

// NewCommand builds a command with its countdown initialised
func NewCommand(op byte, turns int) Command {
	if turns < 1 {
		turns = 1
	}
	return Command{Op: op, Turns: turns, TurnsLeft: turns}
}

func (c Command) String() string {
	if c.Turns > 1 {
		return string(c.Op) + strconv.Itoa(c.Turns)
	}
	return string(c.Op)
}

// ParseOp maps an input character onto a command op. Letters are case
// insensitive; anything outside the command alphabet is rejected.
func ParseOp(r rune) (byte, bool) {
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	if r < 0 || r > 'Z' {
		return 0, false
	}
	switch op := byte(r); op {
	case OpNorth, OpSouth, OpEast, OpWest, OpTurn, OpRandom, OpCharge, OpCheckpoint, OpQuit:
		return op, true
	}
	return 0, false
}

// IsDirection reports whether op moves an agent
func IsDirection(op byte) bool {
	switch op {
	case OpNorth, OpSouth, OpEast, OpWest:
		return true
	}
	return false
}

// Delta returns the column and row offsets for a direction op
func Delta(op byte) (int, int) {
	switch op {
	case OpNorth:
		return 0, -1
	case OpSouth:
		return 0, 1
	case OpEast:
		return 1, 0
	case OpWest:
		return -1, 0
	}
	return 0, 0
}

// Agent is a runner or a chaser with its movement script
type Agent struct {
	Name    string    `json:"name,omitempty"`
	Kind    Kind      `json:"kind"`
	Pos     Position  `json:"pos"`
	Alive   bool      `json:"alive"`
	Placed  bool      `json:"placed"`
	Points  int       `json:"points"`
	Passo   int       `json:"passo"`
	Waiting int       `json:"waiting"`
	Script  []Command `json:"script,omitempty"`
	Current int       `json:"current"`
	Charged bool      `json:"charged,omitempty"`
}

// Scripted reports whether the agent follows a command list
func (a *Agent) Scripted() bool {
	return len(a.Script) > 0
}

// NextCommand returns the command at the script cursor, or nil when the agent
// has no script
func (a *Agent) NextCommand() *Command {
	if len(a.Script) == 0 {
		return nil
	}
	return &a.Script[a.Current%len(a.Script)]
}

// Advance moves the script cursor, wrapping at the end
func (a *Agent) Advance() {
	if len(a.Script) == 0 {
		return
	}
	a.Current = (a.Current + 1) % len(a.Script)
}

func (a *Agent) clone() *Agent {
	cp := *a
	if a.Script != nil {
		cp.Script = make([]Command, len(a.Script))
		copy(cp.Script, a.Script)
	}
	return &cp
}

// AgentView is the read-only agent summary carried by snapshots
type AgentView struct {
	Name    string   `json:"name,omitempty"`
	Pos     Position `json:"pos"`
	Alive   bool     `json:"alive"`
	Placed  bool     `json:"placed"`
	Points  int      `json:"points"`
	Charged bool     `json:"charged,omitempty"`
}

// Snapshot is a copy of the board suitable for rendering
type Snapshot struct {
	Name      string      `json:"name"`
	Width     int         `json:"width"`
	Height    int         `json:"height"`
	Tempo     int         `json:"tempo"`
	Rows      []string    `json:"rows"`
	Runner    AgentView   `json:"runner"`
	Chasers   []AgentView `json:"chasers"`
	Remaining int         `json:"remaining_collectibles"`
}
