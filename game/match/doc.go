// Package match implements the timed match-pair puzzle.
//
// A session deals a shuffled deck of symbol pairs and counts down from the
// start time. Selecting two face-up cards resolves them:
//   - Match: both stay up, score += BasePoints * combo, combo grows by one up
//     to MaxCombo and the clock gains MatchBonus (capped at MaxTime). Clearing
//     the board redeals a fresh deck after ClearDelay with a ClearBonus on the
//     clock; score and combo carry over.
//   - Mismatch: both turn back down after RevealDelay and combo drops to 1.
//
// The session ends when the countdown reaches zero; the best score is kept
// for the lifetime of the Engine.
//
// Time only moves through Tick. Reveal and redeal delays are queued on the
// engine clock and bound to an epoch that Start and every redeal advance, so a
// delayed action never touches a session that was restarted in the meantime.
//
// Usage:
//
//	eng := match.NewEngineWithDefaults(match.WithSink(sink))
//	eng.Start()
//	eng.SelectCard(3)
//	eng.SelectCard(7)
//	eng.Tick(100 * time.Millisecond)
//	state := eng.State()
package match
