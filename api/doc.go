// Package api provides the HTTP REST API for the arcade puzzles.
//
// Endpoints:
//
// Session Management:
//   - POST /api/sessions - Create a session: {"kind": "match|routing", "preset_id": "classic"}
//   - GET /api/sessions - List sessions (?kind=, ?sort=created|accessed, ?order=asc|desc, ?limit=)
//   - GET /api/sessions/{id} - Session info with its current state
//   - DELETE /api/sessions/{id} - Close a session
//
// Lifecycle:
//   - GET /api/sessions/{id}/state - Current snapshot
//   - POST /api/sessions/{id}/start - Start or restart
//   - POST /api/sessions/{id}/tick - Advance the clock manually: {"delta_ms": 100}
//
// Match-pair:
//   - POST /api/sessions/{id}/select - Flip a card: {"index": 3}
//
// Grid-routing:
//   - POST /api/sessions/{id}/drag/begin - Press on a cell: {"x": 0, "y": 2}
//   - POST /api/sessions/{id}/drag/extend - Move into a cell: {"x": 1, "y": 2}
//   - POST /api/sessions/{id}/drag/end - Release
//   - POST /api/sessions/{id}/route - Whole gesture: {"points": [{"x":0,"y":2}, ...]}
//
// Presets:
//   - GET /api/presets - List presets
//   - GET /api/presets/{name} - Load one preset
//   - POST /api/presets - Save a preset: {"id": "quick", "name": "Quick", "match": {...}}
//
// Other:
//   - GET /health
//   - GET /ws?session={id} - Upgrade to the websocket feed
//
// Every mutating call returns the new state together with the events the
// step produced, for example:
//
//	{
//	  "state": {"session_id": "ab12", "kind": "match", "phase": "playing", "match": {...}},
//	  "events": [{"kind": "match_found", "score": 100, "target": [2, 9]}]
//	}
//
// Input the engine ignores (a matched card, a non-adjacent cell) is not an
// error: the response carries the unchanged state and, for routing, a
// route_rejected event.
//
// Error Handling:
//
// Errors are returned as {"error": "message"} with 404 for unknown sessions
// and presets, 400 for malformed bodies and operations the session kind does
// not support, and 500 otherwise.
package api
