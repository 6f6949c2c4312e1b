package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

// Level is a parsed .lvl file
type Level struct {
	Name        string   `json:"name"`
	Width       int      `json:"width"`
	Height      int      `json:"height"`
	Tempo       int      `json:"tempo"`
	RunnerFile  string   `json:"runner_file,omitempty"`
	ChaserFiles []string `json:"chaser_files,omitempty"`
	Layout      []string `json:"layout"`
}

// AgentScript is a parsed agent file (.p for the runner, .m for chasers)
type AgentScript struct {
	Passo    int              `json:"passo"`
	Pos      *engine.Position `json:"pos,omitempty"`
	Commands []engine.Command `json:"commands"`
}

// ParseLevel reads a level definition. Header lines (DIM, TEMPO, PAC, MON)
// come first; the first line that is not a header starts the map. Lines
// starting with # are comments.
func ParseLevel(name string, r io.Reader) (*Level, error) {
	l := &Level{Name: name}
	sc := bufio.NewScanner(r)
	lineNo := 0
	inMap := false

	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			continue
		}

		if inMap {
			if len(l.Layout) < l.Height {
				l.Layout = append(l.Layout, line)
			}
			continue
		}
		if trimmed == "" {
			continue
		}

		fields := strings.Fields(trimmed)
		switch strings.ToUpper(fields[0]) {
		case "DIM":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: DIM expects rows and columns", lineNo)
			}
			rows, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad DIM rows %q", lineNo, fields[1])
			}
			cols, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad DIM columns %q", lineNo, fields[2])
			}
			l.Height, l.Width = rows, cols
		case "TEMPO":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: TEMPO expects one value", lineNo)
			}
			tempo, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, fmt.Errorf("line %d: bad TEMPO %q", lineNo, fields[1])
			}
			l.Tempo = tempo
		case "PAC":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: PAC expects one file", lineNo)
			}
			l.RunnerFile = fields[1]
		case "MON":
			l.ChaserFiles = append(l.ChaserFiles, fields[1:]...)
		default:
			if l.Height == 0 {
				return nil, fmt.Errorf("line %d: map data before DIM", lineNo)
			}
			inMap = true
			l.Layout = append(l.Layout, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read level: %w", err)
	}
	if l.Height == 0 && l.Width == 0 {
		return nil, fmt.Errorf("missing DIM")
	}
	return l, nil
}

// ValidateLevel checks a parsed level for correctness
func ValidateLevel(l *Level) error {
	if l.Width < engine.MinDim || l.Width > engine.MaxDim {
		return fmt.Errorf("level validation: width must be between %d and %d, got %d", engine.MinDim, engine.MaxDim, l.Width)
	}
	if l.Height < engine.MinDim || l.Height > engine.MaxDim {
		return fmt.Errorf("level validation: height must be between %d and %d, got %d", engine.MinDim, engine.MaxDim, l.Height)
	}
	if l.Tempo < 0 {
		return fmt.Errorf("level validation: tempo must not be negative, got %d", l.Tempo)
	}
	if len(l.ChaserFiles) > engine.MaxChasers {
		return fmt.Errorf("level validation: at most %d chasers, got %d", engine.MaxChasers, len(l.ChaserFiles))
	}
	if len(l.Layout) > l.Height {
		return fmt.Errorf("level validation: %d map rows for height %d", len(l.Layout), l.Height)
	}
	return nil
}

// ParseAgentScript reads an agent file: optional PASSO and POS lines followed
// by whitespace separated commands such as E, T3 or C
func ParseAgentScript(r io.Reader) (*AgentScript, error) {
	s := &AgentScript{}
	sc := bufio.NewScanner(r)
	lineNo := 0

	for sc.Scan() {
		lineNo++
		trimmed := strings.TrimSpace(sc.Text())
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		fields := strings.Fields(trimmed)
		switch strings.ToUpper(fields[0]) {
		case "PASSO":
			if len(fields) != 2 {
				return nil, fmt.Errorf("line %d: PASSO expects one value", lineNo)
			}
			passo, err := strconv.Atoi(fields[1])
			if err != nil || passo < 0 {
				return nil, fmt.Errorf("line %d: bad PASSO %q", lineNo, fields[1])
			}
			s.Passo = passo
		case "POS":
			if len(fields) != 3 {
				return nil, fmt.Errorf("line %d: POS expects row and column", lineNo)
			}
			row, err1 := strconv.Atoi(fields[1])
			col, err2 := strconv.Atoi(fields[2])
			if err1 != nil || err2 != nil {
				return nil, fmt.Errorf("line %d: bad POS %q %q", lineNo, fields[1], fields[2])
			}
			s.Pos = &engine.Position{X: col, Y: row}
		default:
			for _, tok := range fields {
				cmd, err := ParseCommandToken(tok)
				if err != nil {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				if len(s.Commands) < engine.MaxScriptLen {
					s.Commands = append(s.Commands, cmd)
				}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read agent script: %w", err)
	}
	return s, nil
}

// ParseCommandToken parses one script token: a letter followed by an optional
// repeat count
func ParseCommandToken(tok string) (engine.Command, error) {
	if tok == "" || !unicode.IsLetter(rune(tok[0])) {
		return engine.Command{}, fmt.Errorf("bad command %q", tok)
	}
	op := byte(unicode.ToUpper(rune(tok[0])))
	turns := 1
	if len(tok) > 1 {
		n, err := strconv.Atoi(tok[1:])
		if err != nil {
			return engine.Command{}, fmt.Errorf("bad command count %q", tok)
		}
		turns = n
	}
	return engine.NewCommand(op, turns), nil
}
