package config

import (
	"fmt"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

// ManualRunnerName names the keyboard controlled runner used when a level
// has no PAC line
const ManualRunnerName = "manual"

// DefaultSpawn is where a runner without a POS line starts
var DefaultSpawn = engine.Position{X: 1, Y: 1}

// NoPosition is given to chasers without a POS line. They stay unplaced.
var NoPosition = engine.Position{X: -1, Y: -1}

// BuildBoard assembles a playable board from a level and its agent scripts.
// runner may be nil for a manual runner. points seeds the runner's score so
// it accumulates across levels.
func BuildBoard(level *Level, runner *AgentScript, chasers []*AgentScript, points int) (*engine.Board, error) {
	if err := ValidateLevel(level); err != nil {
		return nil, err
	}

	b := engine.NewBoard(level.Width, level.Height)
	b.Name = level.Name
	b.Tempo = level.Tempo

	for y := 0; y < level.Height; y++ {
		var row string
		if y < len(level.Layout) {
			row = level.Layout[y]
		}
		for x := 0; x < level.Width && x < len(row); x++ {
			c := b.Cell(x, y)
			switch row[x] {
			case 'X':
				c.Wall = true
			case '@':
				c.Portal = true
			case 'o', '0':
				c.Collectible = true
			}
		}
	}

	ra := &engine.Agent{Name: ManualRunnerName, Points: points}
	var pos *engine.Position
	if runner != nil {
		ra.Name = level.RunnerFile
		ra.Passo = runner.Passo
		ra.Script = copyCommands(runner.Commands)
		pos = runner.Pos
	}
	if pos != nil {
		ra.Pos = *pos
	} else {
		ra.Pos = spawnFor(b)
	}
	if err := b.PlaceRunner(ra); err != nil {
		return nil, fmt.Errorf("level validation: %v", err)
	}

	for i, cs := range chasers {
		ca := &engine.Agent{Passo: cs.Passo, Script: copyCommands(cs.Commands)}
		if i < len(level.ChaserFiles) {
			ca.Name = level.ChaserFiles[i]
		}
		ca.Pos = NoPosition
		if cs.Pos != nil {
			ca.Pos = *cs.Pos
		}
		b.PlaceChaser(ca)
	}
	return b, nil
}

func spawnFor(b *engine.Board) engine.Position {
	if c := b.Cell(DefaultSpawn.X, DefaultSpawn.Y); c != nil && !c.Wall && !c.Portal {
		return DefaultSpawn
	}
	for i, c := range b.Cells {
		if !c.Wall && !c.Portal {
			return engine.Position{X: i % b.Width, Y: i / b.Width}
		}
	}
	return DefaultSpawn
}

func copyCommands(cmds []engine.Command) []engine.Command {
	if len(cmds) == 0 {
		return nil
	}
	cp := make([]engine.Command, len(cmds))
	copy(cp, cmds)
	return cp
}
