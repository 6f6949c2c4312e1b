// Package validate checks the levels of a level directory. For every level it
// checks that:
//   - the level and its agent scripts parse
//   - the board builds and its invariants hold
//   - there is a portal and the runner can walk to it
//   - chasers are placed on the board
//
// It also reports heuristics: grid size, tempo, collectibles, portal
// distance and the starting threat level.
package validate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

// ValidationResult captures the outcome of validating a single level.
// Errors make the level invalid; Warnings and Info never do.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) info(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// Dir validates every level file in dir, including files past the play
// limit, which are reported as a warning.
func Dir(dir string) ([]ValidationResult, error) {
	m, err := config.NewManager(dir)
	if err != nil {
		return nil, err
	}

	files, err := filepath.Glob(filepath.Join(dir, "*"+config.LevelExt))
	if err != nil {
		return nil, fmt.Errorf("error finding level files: %w", err)
	}
	played, err := m.Levels()
	if err != nil {
		return nil, err
	}
	inPlay := make(map[string]bool, len(played))
	for _, name := range played {
		inPlay[name] = true
	}

	results := make([]ValidationResult, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		result := Level(m, name)
		if !inPlay[name] {
			result.warn("Not played: only the first %d levels in name order are used", engine.MaxLevels)
		}
		results = append(results, result)
	}
	return results, nil
}

// Level loads and validates one level of m
func Level(m *config.Manager, name string) ValidationResult {
	result := ValidationResult{
		File:  name,
		Valid: true,
	}

	level, err := m.LoadLevel(name)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	board, err := m.Load(name, 0)
	if err != nil {
		result.fail("%v", err)
		return result
	}
	if err := board.Validate(); err != nil {
		result.fail("Board invariants: %v", err)
	}

	portal, ok := engine.FindPortal(board)
	distance := -1
	if !ok {
		result.fail("No portal (@) on the map")
	} else {
		distance = engine.PortalDistance(board, board.Runner.Pos)
		if distance < 0 {
			result.fail("Portal at (%d,%d) is unreachable from the runner at (%d,%d)",
				portal.X, portal.Y, board.Runner.Pos.X, board.Runner.Pos.Y)
		}
	}

	for _, c := range board.Chasers {
		if !c.Placed {
			result.warn("Chaser %s is not placed: missing, off-grid or blocked POS", c.Name)
		}
		if len(c.Script) == 0 {
			result.warn("Chaser %s has no commands and moves randomly", c.Name)
		}
	}
	for y, row := range level.Layout {
		if len(row) > level.Width {
			result.warn("Row %d is longer than %d columns and is truncated", y+1, level.Width)
		}
	}

	control := "manual"
	if level.RunnerFile != "" {
		control = "scripted by " + level.RunnerFile
	}
	result.info("Grid: %dx%d (rows x columns)", board.Height, board.Width)
	result.info("Tempo: %d", board.Tempo)
	result.info("Runner: %s, spawns at (%d,%d)", control, board.Runner.Pos.X, board.Runner.Pos.Y)
	result.info("Chasers: %d", len(board.Chasers))
	result.info("Collectibles: %d", board.RemainingCollectibles())
	if distance >= 0 {
		result.info("Portal: (%d,%d), %d steps away", portal.X, portal.Y, distance)
	}
	result.info("Starting threat: %s", engine.AnalyzeThreat(board))
	return result
}

// Report prints results and reports whether every level is valid
func Report(w io.Writer, results []ValidationResult) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			fmt.Fprintln(w, "✅ VALID")
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
		}
		for _, err := range result.Errors {
			fmt.Fprintln(w, "  ❌ "+err)
		}
		for _, warning := range result.Warnings {
			fmt.Fprintln(w, "  ⚠ "+warning)
		}
		for _, info := range result.Info {
			fmt.Fprintln(w, "  ✓ "+info)
		}
	}

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	switch {
	case len(results) == 0:
		fmt.Fprintln(w, "❌ No levels found")
		return false
	case allValid:
		fmt.Fprintln(w, "✅ All levels are valid!")
	default:
		fmt.Fprintln(w, "❌ Some levels have errors")
	}
	return allValid
}

// Run validates dir and prints the report to stdout
func Run(dir string) (bool, error) {
	results, err := Dir(dir)
	if err != nil {
		return false, err
	}
	return Report(os.Stdout, results), nil
}
