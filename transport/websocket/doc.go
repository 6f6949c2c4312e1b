// Package websocket streams maze chase frames to browsers and reads player
// commands back.
//
// Architecture:
//
// A central Hub owns every connection. Each client has a read goroutine and
// a write goroutine; the hub loop registers clients and fans frames out to
// the clients of the matching session. The Hub is a session.Renderer, so a
// controller can render straight into it without blocking on slow clients.
//
// Message Protocol:
//
//   - Outgoing: {"session_id":"ab12cd34","event":"frame","frame":{...}}
//   - Incoming: {"command":"E"}
//
// Clients pick their session with the query parameter ?session=ab12cd34.
//
// Usage:
//
//	hub := websocket.NewHub()
//	hub.OnCommand(func(id, cmd string) error {
//		_, err := svc.SendCommand(ctx, id, cmd)
//		return err
//	})
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
