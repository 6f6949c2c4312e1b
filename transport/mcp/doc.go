// Package mcp exposes the maze chase game to AI agents over the Model
// Context Protocol.
//
// The Client is a thin proxy: every tool call becomes a request to the REST
// API of a running server, so agents and browsers share the same sessions.
//
// MCP Tools:
//   - create_session: Start a session over all or some levels
//   - list_sessions: List sessions with their level and status
//   - get_session: Session details, result and checkpoint counters
//   - delete_session: Stop and remove a session
//   - game_state: Latest frame rendered as text
//   - send_command: Queue N/S/E/W, G or Q for the runner
//   - list_levels: Playable levels
//   - game_instructions: Rules and strategy notes
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
package mcp
