// Package service provides the business logic layer for the arcade puzzles.
//
// The service package implements:
//   - Multi-session management for match-pair and grid-routing games
//   - Preset lookup for per-session tuning
//   - Input dispatch with kind checks
//   - The shared game clock
//
// Core Interfaces:
//
// GameService is the main service interface used by every transport.
// SessionManager stores live sessions and PresetStore resolves presets.
// Listener receives each state change together with the advisory events the
// engine emitted, which is how the websocket hub learns about updates.
//
// Concurrency:
//
// The engines are single-threaded state machines. The service serialises all
// calls behind one mutex, so input from HTTP, websocket and MCP clients and the
// clock goroutine interleave as discrete steps. A tick that expires a session
// is applied before any input that arrives after it.
//
// Usage:
//
//	sessions := session.NewManager()
//	presets, _ := config.NewManager("presets")
//	svc := service.NewGameService(sessions, presets)
//	go service.RunClock(ctx, svc, service.DefaultTickInterval)
//
//	info, err := svc.CreateSession(ctx, service.KindMatch, "classic")
//	if err != nil {
//		return err
//	}
//	svc.Start(ctx, info.ID)
//	result, err := svc.SelectCard(ctx, info.ID, 3)
package service
