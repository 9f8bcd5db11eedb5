// Package session stores live puzzle sessions.
//
// Each session owns exactly one engine, match-pair or grid-routing, built from
// the preset it was created with, and an event recorder the engine reports
// into. Sessions are identified by 4-character hex ids, looked up
// case-insensitively, and kept in memory only: best scores last as long as
// the process.
//
// Concurrency:
//
// The manager is safe for concurrent use. It guards the session map only;
// calls into a session's engine are serialised by the service layer.
//
// Usage:
//
//	manager := session.NewManager()
//	sess, err := manager.Create("", service.KindMatch, "classic", preset)
//	if err != nil {
//		return err
//	}
//
//	go manager.RunJanitor(ctx, time.Minute, 2*time.Hour)
package session
