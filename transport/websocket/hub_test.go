package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/mcp-training/mazechase/game/engine"
	"github.com/wricardo/mcp-training/mazechase/game/session"
	"github.com/wricardo/mcp-training/mazechase/game/sim"
)

func testFrame(sessionID string) session.Frame {
	return session.Frame{
		Session: sessionID,
		Level:   "1.lvl",
		Mode:    session.ModePlaying,
		Points:  3,
		State: sim.State{
			Running: true,
			Board: engine.Snapshot{
				Width:  3,
				Height: 1,
				Rows:   []string{"C.@"},
				Runner: engine.AgentView{Name: "runner", Pos: engine.Position{X: 0, Y: 0}, Alive: true},
			},
		},
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.sessions == nil {
		t.Error("Hub sessions map is nil")
	}
	if hub.broadcast == nil || hub.register == nil || hub.unregister == nil {
		t.Error("Hub channels are not initialised")
	}
}

func TestHubRegisterClient(t *testing.T) {
	hub := NewHub()

	client := &Client{
		hub:       hub,
		sessionID: "Test-Session",
		send:      make(chan []byte, 256),
	}
	hub.registerClient(client)

	if !hub.sessions["test-session"][client] {
		t.Error("Client was not registered under the lower-cased session ID")
	}

	hub.unregisterClient(client)
	if _, exists := hub.sessions["test-session"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}
	if _, ok := <-client.send; ok {
		t.Error("Unregistering should close the send channel")
	}
}

func TestHubMultipleClientsInSession(t *testing.T) {
	hub := NewHub()
	sessionID := "multi-client-session"

	client1 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
	client2 := &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
	hub.registerClient(client1)
	hub.registerClient(client2)

	if len(hub.sessions[sessionID]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions[sessionID]))
	}

	hub.unregisterClient(client1)

	if len(hub.sessions[sessionID]) != 1 {
		t.Errorf("Expected 1 client remaining in session, got %d", len(hub.sessions[sessionID]))
	}
	if !hub.sessions[sessionID][client2] {
		t.Error("client2 should still be registered")
	}
}

func TestHubDeliverOnlyToSession(t *testing.T) {
	hub := NewHub()

	mine := &Client{hub: hub, sessionID: "mine", send: make(chan []byte, 256)}
	other := &Client{hub: hub, sessionID: "other", send: make(chan []byte, 256)}
	hub.registerClient(mine)
	hub.registerClient(other)

	frame := testFrame("MINE")
	hub.deliver(&Message{SessionID: frame.Session, Event: EventFrame, Frame: &frame})

	select {
	case data := <-mine.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventFrame || message.Frame == nil {
			t.Fatalf("Expected a frame message, got %+v", message)
		}
		if message.Frame.Points != 3 || message.Frame.State.Board.Rows[0] != "C.@" {
			t.Error("Frame not correctly transmitted")
		}
	default:
		t.Error("Client of the session received nothing")
	}

	select {
	case <-other.send:
		t.Error("Client of another session received the frame")
	default:
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{hub: hub, sessionID: "slow", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.deliver(&Message{SessionID: "slow", Event: EventFrame})

	if _, exists := hub.sessions["slow"]; exists {
		t.Error("Slow client should be unregistered")
	}
}

func TestHubRenderDoesNotBlock(t *testing.T) {
	hub := NewHub()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.Render(testFrame("busy"))
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Render blocked without a running hub")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected a full buffer of %d, got %d", broadcastBuffer, len(hub.broadcast))
	}
}

func TestHubBroadcastEvent(t *testing.T) {
	hub := NewHub()
	hub.BroadcastEvent("event-test", "custom-event", "test-data")

	select {
	case message := <-hub.broadcast:
		if message.SessionID != "event-test" || message.Event != "custom-event" || message.Data != "test-data" {
			t.Errorf("Unexpected message %+v", message)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("No broadcast message received within timeout")
	}
}

func startServer(t *testing.T, hub *Hub) string {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func TestWebSocketReceivesFrames(t *testing.T) {
	hub := NewHub()
	wsURL := startServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?session=ws-test", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	// Frames are only delivered once the client is registered
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				hub.Render(testFrame("ws-test"))
			}
		}
	}()

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}
	var message Message
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.SessionID != "ws-test" || message.Frame == nil || message.Frame.Level != "1.lvl" {
		t.Errorf("Unexpected message %+v", message)
	}
}

func TestWebSocketCommands(t *testing.T) {
	hub := NewHub()

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 4)
	hub.OnCommand(func(sessionID, command string) error {
		mu.Lock()
		got = append(got, sessionID+":"+command)
		mu.Unlock()
		received <- struct{}{}
		if command == "X" {
			return errors.New("invalid command")
		}
		return nil
	})
	wsURL := startServer(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?session=cmd-test", nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := conn.WriteJSON(Command{Command: "E"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if err := conn.WriteJSON(Command{Command: "X"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("Command not received")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 || got[0] != "cmd-test:E" || got[1] != "cmd-test:X" {
		t.Errorf("Unexpected commands %v", got)
	}
}
