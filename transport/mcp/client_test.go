package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/mcp-training/mazechase/game/config"
	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/service"
	"github.com/wricardo/mcp-training/mazechase/game/session"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

func toolRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil {
		t.Fatal("Expected result, got nil")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text
}

func sampleFrame() session.Frame {
	return session.Frame{
		Session:    "abc12345",
		Level:      "2.lvl",
		LevelIndex: 1,
		LevelCount: 3,
		Mode:       session.ModePlaying,
		Branch:     1,
		Points:     4,
		State: sim.State{
			Running: true,
			Threat:  "DANGER",
			Board: engine.Snapshot{
				Width:     4,
				Height:    2,
				Rows:      []string{"C. M", "X  @"},
				Runner:    engine.AgentView{Name: "runner", Pos: engine.Position{X: 0, Y: 0}, Alive: true, Placed: true},
				Chasers:   []engine.AgentView{{Name: "2a.m", Pos: engine.Position{X: 3, Y: 0}, Alive: true, Placed: true, Charged: true}},
				Remaining: 1,
			},
		},
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient("http://localhost:8080/")

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash trimmed, got %s", client.baseURL)
	}
	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}
	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

func TestClient_apiCall(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"name": "mazechase"})
	}))
	defer server.Close()

	client := NewClient(server.URL)

	var response map[string]interface{}
	if err := client.apiCall(context.Background(), "GET", "/api", nil, &response); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if response["name"] != "mazechase" {
		t.Errorf("Unexpected response %v", response)
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://invalid-url-that-does-not-exist:9999")

	if err := client.apiCall(context.Background(), "GET", "/api", nil, nil); err == nil {
		t.Error("Expected error for invalid URL")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	t.Run("JSON error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"error": "session not found", "code": 404})
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		if err == nil || err.Error() != "session not found" {
			t.Errorf("Expected the API error message, got %v", err)
		}
	})

	t.Run("Plain error body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "API error") {
			t.Errorf("Expected 'API error', got %v", err)
		}
	})
}

func TestClient_createSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions" {
			t.Errorf("Expected POST /api/sessions, got %s %s", r.Method, r.URL.Path)
		}
		var req service.CreateSessionRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Levels) != 1 || req.Levels[0] != "2" || req.TickMS != 40 {
			t.Errorf("Unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.SessionInfo{ID: "test-session-123", Levels: []string{"2.lvl"}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleCreateSession(context.Background(), toolRequest("create_session", map[string]interface{}{
		"levels":  []interface{}{"2"},
		"tick_ms": float64(40),
	}))
	if err != nil {
		t.Fatalf("createSession failed: %v", err)
	}

	text := resultText(t, result)
	if !strings.Contains(text, "test-session-123") || !strings.Contains(text, "2.lvl") {
		t.Errorf("Expected session ID and levels in result, got: %s", text)
	}
}

func TestClient_sendCommand(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" || r.URL.Path != "/api/sessions/abc12345/input" {
			t.Errorf("Expected POST input, got %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["command"] != "E" {
			t.Errorf("Expected command E, got %q", body["command"])
		}
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(service.CommandResult{Accepted: true, Command: "E", Message: "command E queued", Frame: sampleFrame()})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.handleSendCommand(context.Background(), toolRequest("send_command", map[string]interface{}{
		"session_id": "abc12345",
		"command":    "E",
		"intent":     "grab the collectible",
	}))
	if err != nil {
		t.Fatalf("sendCommand failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "command E queued") || !strings.Contains(text, "|C. M|") {
		t.Errorf("Unexpected result: %s", text)
	}
}

func TestClient_sendCommandError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{"error": "invalid command: \"jump\"", "code": 400})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleSendCommand(context.Background(), toolRequest("send_command", map[string]interface{}{
		"session_id": "abc12345",
		"command":    "jump",
	}))
	if err != nil {
		t.Fatalf("Tool errors are returned as results, got %v", err)
	}
	if !result.IsError || !strings.Contains(resultText(t, result), "invalid command") {
		t.Errorf("Expected an error result, got %+v", result)
	}
}

func TestClient_listLevels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count": 1,
			"levels": []*config.LevelInfo{
				{Name: "1", Filename: "1.lvl", Width: 9, Height: 5, Chasers: 1, Collectibles: 8, Tempo: 20, Manual: true},
			},
		})
	}))
	defer server.Close()

	result, err := NewClient(server.URL).handleListLevels(context.Background(), toolRequest("list_levels", nil))
	if err != nil {
		t.Fatalf("listLevels failed: %v", err)
	}
	text := resultText(t, result)
	if !strings.Contains(text, "1: 9x5, 1 chasers, 8 collectibles, tempo 20, manual runner") {
		t.Errorf("Unexpected listing: %s", text)
	}
}

func TestFormatFrame(t *testing.T) {
	frame := sampleFrame()
	result := formatFrame(&frame)

	expected := []string{
		"Level: 2.lvl (2/3)",
		"Points: 4",
		"Collectibles left: 1",
		"Runner: (0,0)",
		"Threat: DANGER",
		"IN CHECKPOINT BRANCH",
		"+----+",
		"|C. M|",
		"|X  @|",
		"M 2a.m at (3,0) (charged)",
	}
	for _, field := range expected {
		if !strings.Contains(result, field) {
			t.Errorf("Expected %q in formatted output, got: %s", field, result)
		}
	}
}

func TestFormatFrame_Modes(t *testing.T) {
	tests := []struct {
		mode session.Mode
		want string
	}{
		{session.ModeGameOver, "💀 GAME OVER"},
		{session.ModeLevelWon, "🎉 LEVEL COMPLETE!"},
		{session.ModeFinished, "🎉 ALL LEVELS CLEARED!"},
	}
	for _, tt := range tests {
		frame := sampleFrame()
		frame.Mode = tt.mode
		if result := formatFrame(&frame); !strings.Contains(result, tt.want) {
			t.Errorf("Mode %s: expected %q, got: %s", tt.mode, tt.want, result)
		}
	}

	if result := formatFrame(&session.Frame{}); result != "No frame available yet" {
		t.Errorf("Unexpected empty frame output: %s", result)
	}
}

func TestClient_handleGameInstructions(t *testing.T) {
	client := NewClient("http://localhost:8080")

	result, err := client.handleGameInstructions(context.Background(), toolRequest("game_instructions", map[string]interface{}{}))
	if err != nil {
		t.Fatalf("handleGameInstructions failed: %v", err)
	}

	text := resultText(t, result)
	for _, content := range []string{
		"Maze Chase - Complete Instructions",
		"GAME OBJECTIVE:",
		"GRID LEGEND:",
		"MOVEMENT COMMANDS:",
		"CHECKPOINTS (G):",
		"THREAT LEVEL:",
	} {
		if !strings.Contains(text, content) {
			t.Errorf("Expected '%s' in instructions", content)
		}
	}
}
