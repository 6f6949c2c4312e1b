package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/service"
	"github.com/wricardo/mcp-training/mazechase/game/session"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Maze Chase",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Maze Chase - MCP Interface

This is a thin client that proxies all requests to the REST API server.

GAME OBJECTIVE:
Steer the runner (C) to the portal (@) on every level while chasers (M) hunt
you. Collectibles (.) add points. The game runs in real time: commands are
queued and take effect on the runner's next turn.

AVAILABLE TOOLS:
- create_session: Start a new session (optionally a subset of levels)
- list_sessions: List all sessions
- get_session: Session details, result and checkpoint counters
- game_state: Latest frame of a session
- send_command: Send N/S/E/W, G (checkpoint) or Q (quit) - requires intent explanation
- delete_session: Stop and remove a session
- list_levels: List playable levels
- game_instructions: Full rules

NOTE: The 'intent' parameter on send_command serves as rubber duck debugging - explain your reasoning!`),
	)

	c.registerTools()
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID",
	}
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	// Session management
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "create_session",
		Description: "Start a new game session. It begins playing immediately.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"levels": map[string]interface{}{
					"type":        "array",
					"items":       map[string]interface{}{"type": "string"},
					"description": "Level names to play, in directory order (optional, default all)",
				},
				"tick_ms": map[string]interface{}{
					"type":        "number",
					"description": "Override the turn period in milliseconds (optional)",
				},
			},
		},
	}, c.handleCreateSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_sessions",
		Description: "List all game sessions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListSessions)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_session",
		Description: "Get details of a specific session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGetSession)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "delete_session",
		Description: "Stop and remove a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleDeleteSession)

	// Game operations
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_state",
		Description: "Get the latest frame of a session",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{"session_id": sessionIDProperty()},
			Required:   []string{"session_id"},
		},
	}, c.handleGameState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "send_command",
		Description: "Queue a command for the runner",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"session_id": sessionIDProperty(),
				"command": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"N", "S", "E", "W", "G", "Q"},
					"description": "N/S/E/W to move, G to checkpoint, Q to quit",
				},
				"intent": map[string]interface{}{
					"type":        "string",
					"description": "Brief explanation of the intent behind this command (serves as a rubber duck to help explain your reasoning)",
				},
			},
			Required: []string{"session_id", "command"},
		},
	}, c.handleSendCommand)

	// Levels
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_levels",
		Description: "List playable levels",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListLevels)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "game_instructions",
		Description: "Get the complete game rules",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleGameInstructions)
}

// GetMCPServer returns the underlying MCP server for serving
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["error"].(string); ok {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

func arguments(request mcp.CallToolRequest) map[string]interface{} {
	args, _ := request.Params.Arguments.(map[string]interface{})
	if args == nil {
		return map[string]interface{}{}
	}
	return args
}

func sessionPath(sessionID string, suffix string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + suffix
}

// Tool handlers

func (c *Client) handleCreateSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)

	var req service.CreateSessionRequest
	if levels, ok := args["levels"].([]interface{}); ok {
		for _, l := range levels {
			if name, ok := l.(string); ok && name != "" {
				req.Levels = append(req.Levels, name)
			}
		}
	}
	if tick, ok := args["tick_ms"].(float64); ok {
		req.TickMS = int(tick)
	}

	var info service.SessionInfo
	if err := c.apiCall(ctx, "POST", "/api/sessions", req, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Created session: %s\nLevels: %s\n", info.ID, strings.Join(info.Levels, ", "))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count    int                   `json:"count"`
		Sessions []service.SessionInfo `json:"sessions"`
	}
	if err := c.apiCall(ctx, "GET", "/api/sessions", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Sessions: %d\n", response.Count))
	for _, s := range response.Sessions {
		status := string(s.Frame.Mode)
		if s.Finished && s.Result != nil {
			status = "finished: " + string(s.Result.Reason)
		}
		result.WriteString(fmt.Sprintf("- %s | level %s | points %d | %s\n", s.ID, s.Frame.Level, s.Frame.Points, status))
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGetSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var info service.SessionInfo
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, ""), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSessionInfo(&info)), nil
}

func (c *Client) handleDeleteSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	if err := c.apiCall(ctx, "DELETE", sessionPath(sessionID, ""), nil, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session %s deleted", sessionID)), nil
}

func (c *Client) handleGameState(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, _ := arguments(request)["session_id"].(string)

	var frame session.Frame
	if err := c.apiCall(ctx, "GET", sessionPath(sessionID, "/state"), nil, &frame); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatFrame(&frame)), nil
}

func (c *Client) handleSendCommand(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := arguments(request)
	sessionID, _ := args["session_id"].(string)
	command, _ := args["command"].(string)

	var result service.CommandResult
	if err := c.apiCall(ctx, "POST", sessionPath(sessionID, "/input"), map[string]string{"command": command}, &result); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var out strings.Builder
	out.WriteString(fmt.Sprintf("✓ %s\n", result.Message))
	out.WriteString("The command runs on the runner's next turn; call game_state to see the effect.\n\n")
	out.WriteString(formatFrame(&result.Frame))
	return mcp.NewToolResultText(out.String()), nil
}

func (c *Client) handleListLevels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Count  int                 `json:"count"`
		Levels []*config.LevelInfo `json:"levels"`
	}
	if err := c.apiCall(ctx, "GET", "/api/levels", nil, &response); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var result strings.Builder
	result.WriteString(fmt.Sprintf("Levels: %d\n", response.Count))
	for _, l := range response.Levels {
		control := "scripted runner"
		if l.Manual {
			control = "manual runner"
		}
		result.WriteString(fmt.Sprintf("- %s: %dx%d, %d chasers, %d collectibles, tempo %d, %s\n",
			l.Name, l.Width, l.Height, l.Chasers, l.Collectibles, l.Tempo, control))
	}
	return mcp.NewToolResultText(result.String()), nil
}

func (c *Client) handleGameInstructions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	instructions := `Maze Chase - Complete Instructions

GAME OBJECTIVE:
Reach the portal (@) on every level. Levels are played in order and points
carry over. If a chaser reaches you, or you walk into one, the game is over.

GRID LEGEND:
- C: the runner (you)
- M: a chaser
- @: the portal
- .: a collectible worth 1 point
- X: wall
- space: floor
Coordinates are (x, y) with (0, 0) in the top-left corner; y grows downwards.

MOVEMENT COMMANDS:
- N: north (up)
- S: south (down)
- E: east (right)
- W: west (left)
Moves into walls or off the grid are ignored. Walking onto the portal wins the level.

REAL TIME:
The game does not wait for you. Chasers move every tick whether or not you
send anything. Only the most recent unconsumed command is kept, so send one
command, check game_state, then decide the next one.

CHECKPOINTS (G):
G freezes the game and forks it. You keep playing the fork:
- If you lose in the fork, the game rewinds to the moment you pressed G.
- If you quit in the fork, the whole game ends.
- If you clear every remaining level in the fork, that result counts.
Only one checkpoint can be active, and none can be taken inside a fork.
The frame's "branch" field is 1 while you are in a fork.

CHASERS:
Chasers follow their own scripts: fixed moves, random moves, waiting turns,
and a charge that slides them in a straight line until something blocks them.
They never enter the portal cell.

THREAT LEVEL:
game_state reports the distance to the nearest chaser as SAFE, CAUTION,
DANGER or CRITICAL. At CRITICAL a chaser is next to you.

Good luck!`
	return mcp.NewToolResultText(instructions), nil
}

// Formatting helpers

func formatSessionInfo(info *service.SessionInfo) string {
	var result strings.Builder
	result.WriteString(fmt.Sprintf("Session: %s\nLevels: %s\nCreated: %s\n",
		info.ID, strings.Join(info.Levels, ", "),
		info.CreatedAt.Format("2006-01-02 15:04:05")))
	result.WriteString(fmt.Sprintf("Checkpoints: created %d, restored %d, completed %d, abandoned %d\n",
		info.Checkpoints.Created, info.Checkpoints.Restored, info.Checkpoints.Completed, info.Checkpoints.Abandoned))
	if info.Finished && info.Result != nil {
		result.WriteString(fmt.Sprintf("Finished: %s with %d points, %d levels cleared\n",
			info.Result.Reason, info.Result.Points, info.Result.LevelsCleared))
	}
	if info.Error != "" {
		result.WriteString(fmt.Sprintf("Error: %s\n", info.Error))
	}
	result.WriteString("\n")
	result.WriteString(formatFrame(&info.Frame))
	return result.String()
}

func formatFrame(frame *session.Frame) string {
	if frame == nil || frame.Mode == "" {
		return "No frame available yet"
	}

	board := frame.State.Board
	var result strings.Builder

	result.WriteString(fmt.Sprintf("Level: %s (%d/%d) | Mode: %s | Points: %d | Collectibles left: %d\n",
		frame.Level, frame.LevelIndex+1, frame.LevelCount, frame.Mode, frame.Points, board.Remaining))
	result.WriteString(fmt.Sprintf("Runner: (%d,%d) | Threat: %s", board.Runner.Pos.X, board.Runner.Pos.Y, frame.State.Threat))
	if frame.Branch > 0 {
		result.WriteString(" | IN CHECKPOINT BRANCH")
	}
	if frame.State.CheckpointPending {
		result.WriteString(" | checkpoint pending")
	}
	result.WriteString("\n\n")

	border := "+" + strings.Repeat("-", board.Width) + "+\n"
	result.WriteString(border)
	for _, row := range board.Rows {
		result.WriteString("|" + row + "|\n")
	}
	result.WriteString(border)

	for _, ch := range board.Chasers {
		if !ch.Placed {
			continue
		}
		charged := ""
		if ch.Charged {
			charged = " (charged)"
		}
		result.WriteString(fmt.Sprintf("%c %s at (%d,%d)%s\n", engine.GlyphChaser, ch.Name, ch.Pos.X, ch.Pos.Y, charged))
	}

	switch frame.Mode {
	case session.ModeLevelWon:
		result.WriteString("\n🎉 LEVEL COMPLETE!")
	case session.ModeFinished:
		result.WriteString("\n🎉 ALL LEVELS CLEARED!")
	case session.ModeGameOver:
		result.WriteString("\n💀 GAME OVER")
	}
	if frame.Message != "" {
		result.WriteString(fmt.Sprintf("\nMessage: %s", frame.Message))
	}
	return result.String()
}
