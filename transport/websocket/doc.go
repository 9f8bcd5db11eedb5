// Package websocket pushes live puzzle updates to browsers and accepts their
// input.
//
// The Hub is registered as the service.Listener, so every state change made
// through any transport (REST, MCP, websocket or the game clock) is pushed to
// the clients watching that session. Listener callbacks never block: updates
// are queued on a buffered channel and dropped with a warning when the hub
// falls behind.
//
// Message Protocol:
//
// Outgoing frames are JSON objects with a type:
//   - state: the current snapshot, sent on connect and on request
//   - state_update: snapshot plus the events of one step, each with a cue
//     ("click", "scan" or "alert") the client may map to a sound
//   - session_closed: the session was closed, the connection follows
//   - error: a rejected command, sent to its sender only
//
// Incoming frames are commands:
//
//	{"action": "start"}
//	{"action": "select", "index": 3}
//	{"action": "begin", "x": 0, "y": 2}
//	{"action": "extend", "x": 1, "y": 2}
//	{"action": "end"}
//	{"action": "state"}
//
// Usage:
//
//	hub := websocket.NewHub()
//	hub.Bind(svc)
//	svc.SetListener(hub)
//	go hub.Run(ctx)
//
//	http.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
//		hub.ServeWS(w, r, r.URL.Query().Get("session"))
//	})
package websocket
