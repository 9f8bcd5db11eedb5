package service

import (
	"time"

	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

// SessionInfo provides information about a game session
type SessionInfo struct {
	ID             string     `json:"id"`
	Kind           Kind       `json:"kind"`
	PresetID       string     `json:"preset_id"`
	PresetName     string     `json:"preset_name"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt time.Time  `json:"last_accessed_at"`
	State          *StateView `json:"state"`
}

// StateView wraps the snapshot of either engine
type StateView struct {
	SessionID string         `json:"session_id"`
	Kind      Kind           `json:"kind"`
	Phase     string         `json:"phase"`
	Match     *match.State   `json:"match,omitempty"`
	Routing   *routing.State `json:"routing,omitempty"`
}

// ActionResult is returned by every mutating operation
type ActionResult struct {
	State  *StateView    `json:"state"`
	Events []event.Event `json:"events"`
}

// RouteResult reports a whole drag gesture applied in one call
type RouteResult struct {
	ActionResult
	Requested int  `json:"requested"`
	Applied   int  `json:"applied"`              // points accepted, undos included
	Solved    bool `json:"solved"`               // the route reached the end cell
	StoppedAt int  `json:"stopped_at,omitempty"` // 1-based index of the rejected point
}
