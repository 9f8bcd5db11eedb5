// Package event defines the advisory notifications the engines emit on state
// transitions. Hosts use them for sound and visual feedback; dropping them
// never changes game logic.
package event

// Kind identifies a notification
type Kind string

const (
	SessionStarted Kind = "session_started"
	SessionExpired Kind = "session_expired"
	CloseRequested Kind = "close_requested"

	// Match-pair engine
	SelectionMade Kind = "selection_made"
	MatchFound    Kind = "match_found"
	Mismatch      Kind = "mismatch"
	LevelCleared  Kind = "level_cleared"

	// Grid-routing engine
	RouteStep     Kind = "route_step"
	RouteUndo     Kind = "route_undo"
	RouteRejected Kind = "route_rejected"
	RouteReset    Kind = "route_reset"
	LevelSolved   Kind = "level_solved"
)

// Event is a single notification. Target carries card indices for match
// events and an (x, y) pair for routing events.
type Event struct {
	Kind    Kind   `json:"kind"`
	Score   int    `json:"score"`
	Target  []int  `json:"target,omitempty"`
	Message string `json:"message,omitempty"`
}

// Sink receives events. Implementations must not call back into the engine.
type Sink interface {
	Notify(Event)
}

// SinkFunc adapts a function to Sink
type SinkFunc func(Event)

// Notify calls f(e)
func (f SinkFunc) Notify(e Event) { f(e) }

// Discard drops every event
var Discard Sink = SinkFunc(func(Event) {})

// Recorder buffers events until drained
type Recorder struct {
	events []Event
}

// Notify appends e to the buffer
func (r *Recorder) Notify(e Event) {
	r.events = append(r.events, e)
}

// Drain returns the buffered events and empties the buffer
func (r *Recorder) Drain() []Event {
	out := r.events
	r.events = nil
	return out
}

// Kinds lists the kinds currently buffered, oldest first
func (r *Recorder) Kinds() []Kind {
	kinds := make([]Kind, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind
	}
	return kinds
}

// Cue maps a kind to the host sound cue that should accompany it.
// Kinds without feedback map to "".
func Cue(k Kind) string {
	switch k {
	case SelectionMade, RouteStep, RouteUndo:
		return "click"
	case MatchFound, LevelCleared, LevelSolved, SessionStarted:
		return "scan"
	case Mismatch, RouteRejected, SessionExpired:
		return "alert"
	default:
		return ""
	}
}
