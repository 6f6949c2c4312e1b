// Package api provides HTTP REST API handlers for the maze chase game.
//
// Endpoints:
//
//   - GET /api - Endpoint and command index
//   - GET /api/levels - List playable levels
//   - POST /api/sessions - Start a session: {"id"?, "levels"?: ["1.lvl"], "tick_ms"?: 50}
//   - GET /api/sessions - List sessions (?sort=created|accessed&order=asc|desc&limit=n)
//   - GET /api/sessions/{id} - Session details and latest frame
//   - DELETE /api/sessions/{id} - Stop and remove a session
//   - GET /api/sessions/{id}/state - Latest frame
//   - POST /api/sessions/{id}/input - Queue a command: {"command": "N"}
//   - GET /ws?session={id} - WebSocket frame stream
//   - GET /health - Liveness probe
//
// Sessions play in the background; input is queued and the effect shows up
// in a later frame.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
package api
