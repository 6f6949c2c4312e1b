package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
)

var (
	ErrLevelNotFound = errors.New("level not found")
	ErrInvalidLevel  = errors.New("invalid level")
)

// LevelExt is the extension of level files
const LevelExt = ".lvl"

// LevelInfo summarises a level for listings
type LevelInfo struct {
	Filename     string `json:"filename"`
	Name         string `json:"name"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Tempo        int    `json:"tempo"`
	Chasers      int    `json:"chasers"`
	Collectibles int    `json:"collectibles"`
	Manual       bool   `json:"manual"`
}

// Manager loads levels and agent scripts from a directory and caches the
// parsed files
type Manager struct {
	levelDir string
	levels   map[string]*Level
	scripts  map[string]*AgentScript
	mu       sync.RWMutex
}

// NewManager creates a level manager for levelDir
func NewManager(levelDir string) (*Manager, error) {
	info, err := os.Stat(levelDir)
	if err != nil {
		return nil, fmt.Errorf("level directory does not exist: %s", levelDir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("level directory is not a directory: %s", levelDir)
	}

	return &Manager{
		levelDir: levelDir,
		levels:   make(map[string]*Level),
		scripts:  make(map[string]*AgentScript),
	}, nil
}

// Dir returns the managed directory
func (m *Manager) Dir() string {
	return m.levelDir
}

// Levels returns the level file names in play order: sorted by name and
// capped at engine.MaxLevels
func (m *Manager) Levels() ([]string, error) {
	entries, err := os.ReadDir(m.levelDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read level directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), LevelExt) {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	if len(names) > engine.MaxLevels {
		log.WithFields(log.Fields{
			"dir":   m.levelDir,
			"found": len(names),
		}).Warnf("only the first %d levels are played", engine.MaxLevels)
		names = names[:engine.MaxLevels]
	}
	return names, nil
}

// LoadLevel loads a level by file name, with or without the .lvl extension
func (m *Manager) LoadLevel(name string) (*Level, error) {
	filename := name
	if !strings.HasSuffix(filename, LevelExt) {
		filename += LevelExt
	}

	m.mu.RLock()
	if level, exists := m.levels[filename]; exists {
		m.mu.RUnlock()
		return level, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	// Double-check after acquiring write lock
	if level, exists := m.levels[filename]; exists {
		return level, nil
	}

	f, err := m.open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	level, err := ParseLevel(filename, f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, filename, err)
	}
	if err := ValidateLevel(level); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, filename, err)
	}

	m.levels[filename] = level
	return level, nil
}

// LoadScript loads an agent file relative to the level directory
func (m *Manager) LoadScript(name string) (*AgentScript, error) {
	m.mu.RLock()
	if script, exists := m.scripts[name]; exists {
		m.mu.RUnlock()
		return script, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()

	if script, exists := m.scripts[name]; exists {
		return script, nil
	}

	f, err := m.open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	script, err := ParseAgentScript(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, name, err)
	}

	m.scripts[name] = script
	return script, nil
}

// Load builds a fresh board for the named level. points seeds the runner's
// score.
func (m *Manager) Load(name string, points int) (*engine.Board, error) {
	level, err := m.LoadLevel(name)
	if err != nil {
		return nil, err
	}

	var runner *AgentScript
	if level.RunnerFile != "" {
		runner, err = m.LoadScript(level.RunnerFile)
		if err != nil {
			return nil, fmt.Errorf("runner script: %w", err)
		}
	}

	chasers := make([]*AgentScript, 0, len(level.ChaserFiles))
	for _, file := range level.ChaserFiles {
		script, err := m.LoadScript(file)
		if err != nil {
			return nil, fmt.Errorf("chaser script: %w", err)
		}
		chasers = append(chasers, script)
	}

	board, err := BuildBoard(level, runner, chasers, points)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidLevel, level.Name, err)
	}
	return board, nil
}

// ListLevels returns information about every playable level. Levels that
// fail to load are skipped.
func (m *Manager) ListLevels() ([]*LevelInfo, error) {
	names, err := m.Levels()
	if err != nil {
		return nil, err
	}

	var infos []*LevelInfo
	for _, name := range names {
		board, err := m.Load(name, 0)
		if err != nil {
			log.WithError(err).WithField("level_name", name).Debug("skipping level")
			continue
		}
		level, _ := m.LoadLevel(name)
		infos = append(infos, &LevelInfo{
			Filename:     name,
			Name:         strings.TrimSuffix(name, LevelExt),
			Width:        board.Width,
			Height:       board.Height,
			Tempo:        board.Tempo,
			Chasers:      len(board.Chasers),
			Collectibles: board.RemainingCollectibles(),
			Manual:       level.RunnerFile == "",
		})
	}
	return infos, nil
}

// RefreshCache drops every cached level and script
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels = make(map[string]*Level)
	m.scripts = make(map[string]*AgentScript)
}

func (m *Manager) open(name string) (*os.File, error) {
	if !filepath.IsLocal(name) {
		return nil, fmt.Errorf("%w: %s escapes the level directory", ErrInvalidLevel, name)
	}
	f, err := os.Open(filepath.Join(m.levelDir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLevelNotFound, name)
		}
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	return f, nil
}
