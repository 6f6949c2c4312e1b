package service

import (
	"context"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/session"
)

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	DeleteSession(ctx context.Context, sessionID string) error

	// Game Operations
	SendCommand(ctx context.Context, sessionID, command string) (*CommandResult, error)

	// Game State
	GetState(ctx context.Context, sessionID string) (*session.Frame, error)

	// Levels
	ListLevels(ctx context.Context) ([]*config.LevelInfo, error)
}

// SessionManager defines live session operations
type SessionManager interface {
	Create(id string, loader session.LevelLoader, renderer session.Renderer, opts session.Options) (*session.Session, error)
	Get(id string) (*session.Session, error)
	List() []*session.Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// LevelManager lists and builds levels
type LevelManager interface {
	Levels() ([]string, error)
	Load(name string, points int) (*engine.Board, error)
	ListLevels() ([]*config.LevelInfo, error)
}
