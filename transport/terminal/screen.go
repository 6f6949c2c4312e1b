package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/wricardo/mcp-training/mazechase/game/session"
)

const (
	clearScreen = "\x1b[H\x1b[2J"
	newline     = "\r\n"
)

// Screen is a session.Renderer drawing frames on an ANSI terminal. Frames
// identical to the previous one are skipped.
type Screen struct {
	mu   sync.Mutex
	w    io.Writer
	last string
}

// NewScreen creates a screen writing to w
func NewScreen(w io.Writer) *Screen {
	return &Screen{w: w}
}

// Render draws the frame
func (s *Screen) Render(frame session.Frame) error {
	text := Draw(frame)

	s.mu.Lock()
	defer s.mu.Unlock()
	if text == s.last {
		return nil
	}
	s.last = text
	_, err := io.WriteString(s.w, clearScreen+text)
	return err
}

// Draw renders a frame as terminal text with CRLF line endings
func Draw(frame session.Frame) string {
	board := frame.State.Board
	var b strings.Builder

	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteString(newline)
	}

	line("Level %d/%d: %s   Points: %d   Left: %d   Threat: %s",
		frame.LevelIndex+1, frame.LevelCount, frame.Level, frame.Points, board.Remaining, frame.State.Threat)
	if frame.Branch > 0 {
		line("[checkpoint branch]")
	} else if frame.State.CheckpointPending {
		line("[checkpoint...]")
	}
	line("")

	for _, row := range board.Rows {
		line("%s", row)
	}
	line("")

	switch frame.Mode {
	case session.ModePlaying:
		line("arrows or N/S/E/W move   G checkpoint   Q quit")
	case session.ModeLevelWon:
		line("*** LEVEL COMPLETE ***")
	case session.ModeGameOver:
		line("*** GAME OVER ***")
	case session.ModeFinished:
		line("*** YOU WIN ***")
	}
	if frame.Message != "" && frame.Mode != session.ModePlaying {
		line("%s", frame.Message)
	}
	return b.String()
}
