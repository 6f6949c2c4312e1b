package service

import (
	"time"

	"github.com/wricardo/mcp-training/mazechase/game/checkpoint"
	"github.com/wricardo/mcp-training/mazechase/game/session"
)

// CreateSessionRequest configures a new session. Empty Levels plays every
// level in the directory.
type CreateSessionRequest struct {
	ID     string   `json:"id,omitempty"`
	Levels []string `json:"levels,omitempty"`
	TickMS int      `json:"tick_ms,omitempty"`
}

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string           `json:"id"`
	Levels         []string         `json:"levels"`
	CreatedAt      time.Time        `json:"created_at"`
	LastAccessedAt time.Time        `json:"last_accessed_at"`
	Finished       bool             `json:"finished"`
	Result         *session.Result  `json:"result,omitempty"`
	Error          string           `json:"error,omitempty"`
	Frame          session.Frame    `json:"frame"`
	Checkpoints    checkpoint.Stats `json:"checkpoints"`
}

// CommandResult is the answer to a key press sent to a session
type CommandResult struct {
	Accepted bool          `json:"accepted"`
	Command  string        `json:"command"`
	Message  string        `json:"message"`
	Frame    session.Frame `json:"frame"`
}
