// Package mcp exposes the arcade puzzles to AI agents over the Model Context
// Protocol.
//
// The Client is a thin proxy: every tool call becomes a REST request against
// the api package, so agents, browsers and websocket viewers all act on the
// same sessions. Results are rendered as plain text boards.
//
// MCP Tools:
//   - list_presets: tuning presets for new sessions
//   - create_session: new match or routing session
//   - list_sessions: all live sessions
//   - get_state: board, score and remaining time
//   - start_game: start or restart a session
//   - select_card: flip one card of a match session
//   - route: draw a whole route in a routing session
//   - close_session: end a session
//   - game_instructions: complete rules
//
// Transport Modes:
//   - HTTP: the server mounts GetMCPServer().HandleMessage on /mcp
//   - Stdio: server.ServeStdio(client.GetMCPServer()) with an internal HTTP
//     server behind it
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	if err := server.ServeStdio(client.GetMCPServer()); err != nil {
//		log.Fatal().Err(err).Msg("stdio server")
//	}
package mcp
