// Package routing implements the timed grid-routing puzzle.
//
// Each level is an N×N grid (6 in the reference tuning) with a start cell on
// the first column, an end cell at least MinEndpointDistance away and a
// scatter of obstacles that never touch either endpoint or their direct
// neighbours. The player drags a simple lattice path from start to end:
//
//	BeginDrag(start)  -> path = [start]
//	ExtendDrag(p)     -> unit step onto a free, unvisited cell, or one step back
//	EndDrag()         -> an unfinished path collapses to [start]
//
// Reaching the end solves the level at once: score grows by one and the next
// level is generated for the new score with a budget of
// max(MinTime, BaseTime - score*TimeDecay). The session ends when the clock
// reaches zero.
//
// Generation uses bounded rejection sampling with deterministic fallbacks.
// The endpoint-neighbour rule makes unsolvable layouts rare but possible; set
// Rules.RequireSolvable to reject them with a breadth-first search.
package routing
