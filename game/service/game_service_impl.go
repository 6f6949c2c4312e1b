package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/session"
)

var (
	ErrInvalidCommand  = errors.New("invalid command")
	ErrSessionFinished = errors.New("session finished")
	ErrUnknownLevel    = errors.New("unknown level")
	ErrInputFull       = errors.New("input buffer full")
)

// commandAliases maps words accepted by the API onto command letters
var commandAliases = map[string]rune{
	"up":         'N',
	"north":      'N',
	"down":       'S',
	"south":      'S',
	"right":      'E',
	"east":       'E',
	"left":       'W',
	"west":       'W',
	"checkpoint": 'G',
	"quit":       'Q',
}

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	sessions SessionManager
	levels   LevelManager
	renderer session.Renderer
	opts     session.Options
}

// NewGameService creates a new game service instance. renderer receives the
// frames of every session and may be nil.
func NewGameService(sessions SessionManager, levels LevelManager, renderer session.Renderer, opts session.Options) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		levels:   levels,
		renderer: renderer,
		opts:     opts,
	}
}

// CreateSession starts a new game session
func (s *gameServiceImpl) CreateSession(ctx context.Context, req CreateSessionRequest) (*SessionInfo, error) {
	loader, err := s.loaderFor(req.Levels)
	if err != nil {
		return nil, err
	}

	opts := s.opts
	if req.TickMS > 0 {
		opts.Sim.Tick = time.Duration(req.TickMS) * time.Millisecond
	}

	sess, err := s.sessions.Create(req.ID, loader, s.renderer, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return sessionInfo(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sessionInfo(sess), nil
}

// ListSessions returns all sessions
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	sessions := s.sessions.List()
	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, sessionInfo(sess))
	}
	return result, nil
}

// DeleteSession stops and removes a session
func (s *gameServiceImpl) DeleteSession(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// SendCommand queues a key press for a session. Accepted commands are the
// directions N S E W (or up, down, left, right), G to checkpoint and Q to
// quit.
func (s *gameServiceImpl) SendCommand(ctx context.Context, sessionID, command string) (*CommandResult, error) {
	key, err := ParseCommand(command)
	if err != nil {
		return nil, err
	}

	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Finished() {
		return nil, fmt.Errorf("%w: %s", ErrSessionFinished, sess.ID)
	}

	result := &CommandResult{
		Command: string(key),
		Frame:   sess.Controller.LastFrame(),
	}
	if !sess.Send(key) {
		return nil, fmt.Errorf("%w: %s", ErrInputFull, sess.ID)
	}
	result.Accepted = true
	result.Message = fmt.Sprintf("command %c queued", key)

	log.WithFields(log.Fields{
		"session": sess.ID,
		"command": string(key),
	}).Debug("command queued")
	return result, nil
}

// GetState returns the latest frame of a session
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*session.Frame, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	frame := sess.Controller.LastFrame()
	return &frame, nil
}

// ListLevels returns the playable levels
func (s *gameServiceImpl) ListLevels(ctx context.Context) ([]*config.LevelInfo, error) {
	return s.levels.ListLevels()
}

// ParseCommand maps an API command onto an input key. Single letters are
// case insensitive; words from the alias table are accepted too.
func ParseCommand(command string) (rune, error) {
	c := strings.ToLower(strings.TrimSpace(command))
	if key, ok := commandAliases[c]; ok {
		return key, nil
	}
	if len(c) == 1 {
		if op, ok := engine.ParseOp(rune(c[0])); ok && (engine.IsDirection(op) || op == engine.OpCheckpoint || op == engine.OpQuit) {
			return rune(op), nil
		}
	}
	return 0, fmt.Errorf("%w: %q (use N, S, E, W, G or Q)", ErrInvalidCommand, command)
}

func (s *gameServiceImpl) get(sessionID string) (*session.Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", sessionID, err)
	}
	s.sessions.UpdateLastAccessed(sessionID)
	return sess, nil
}

// loaderFor restricts the level manager to names, keeping directory order
func (s *gameServiceImpl) loaderFor(names []string) (session.LevelLoader, error) {
	if len(names) == 0 {
		return s.levels, nil
	}

	available, err := s.levels.Levels()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		if !strings.HasSuffix(name, config.LevelExt) {
			name += config.LevelExt
		}
		wanted[name] = true
	}

	var subset []string
	for _, name := range available {
		if wanted[name] {
			subset = append(subset, name)
			delete(wanted, name)
		}
	}
	if len(wanted) > 0 {
		var missing []string
		for name := range wanted {
			missing = append(missing, name)
		}
		return nil, fmt.Errorf("%w: %v. Available levels: %v", ErrUnknownLevel, missing, available)
	}
	return &levelSubset{LevelManager: s.levels, names: subset}, nil
}

type levelSubset struct {
	LevelManager
	names []string
}

func (l *levelSubset) Levels() ([]string, error) {
	return l.names, nil
}

func sessionInfo(sess *session.Session) *SessionInfo {
	info := &SessionInfo{
		ID:             sess.ID,
		Levels:         sess.Levels,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessed(),
		Finished:       sess.Finished(),
		Frame:          sess.Controller.LastFrame(),
		Checkpoints:    sess.Controller.Checkpoints(),
	}
	if info.Finished {
		res, err := sess.Outcome()
		info.Result = &res
		if err != nil {
			info.Error = err.Error()
		}
	}
	return info
}
