package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrUnknownKind     = errors.New("unknown game kind")
	ErrWrongKind       = errors.New("operation not supported by this game kind")
	ErrEmptyRoute      = errors.New("route needs at least one point")
)

// Kind selects which puzzle a session runs
type Kind string

const (
	KindMatch   Kind = "match"
	KindRouting Kind = "routing"
)

// ParseKind validates a kind name
func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindMatch, KindRouting:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrUnknownKind, s, KindMatch, KindRouting)
	}
}

// GameService defines all game-related operations
type GameService interface {
	// Session Management
	CreateSession(ctx context.Context, kind Kind, presetID string) (*SessionInfo, error)
	GetSession(ctx context.Context, sessionID string) (*SessionInfo, error)
	ListSessions(ctx context.Context) ([]*SessionInfo, error)
	CloseSession(ctx context.Context, sessionID string) error

	// Lifecycle
	Start(ctx context.Context, sessionID string) (*ActionResult, error)
	Tick(ctx context.Context, sessionID string, delta time.Duration) (*ActionResult, error)
	TickAll(ctx context.Context, delta time.Duration) int
	GetState(ctx context.Context, sessionID string) (*StateView, error)

	// Match-pair input
	SelectCard(ctx context.Context, sessionID string, index int) (*ActionResult, error)

	// Grid-routing input
	BeginDrag(ctx context.Context, sessionID string, p routing.Point) (*ActionResult, error)
	ExtendDrag(ctx context.Context, sessionID string, p routing.Point) (*ActionResult, error)
	EndDrag(ctx context.Context, sessionID string) (*ActionResult, error)
	Route(ctx context.Context, sessionID string, points []routing.Point) (*RouteResult, error)

	// Presets
	ListPresets(ctx context.Context) ([]*config.PresetInfo, error)
	LoadPreset(ctx context.Context, presetID string) (*config.Preset, error)
	SavePreset(ctx context.Context, presetID string, p *config.Preset) error

	// Notifications
	SetListener(l Listener)
}

// Listener receives every state change. Implementations must not block and
// must not call back into the service.
type Listener interface {
	OnUpdate(sessionID string, state *StateView, events []event.Event)
	OnClose(sessionID string)
}

// SessionManager defines session storage operations
type SessionManager interface {
	Create(id string, kind Kind, presetID string, preset *config.Preset) (*Session, error)
	Get(id string) (*Session, error)
	List() []*Session
	Delete(id string) error
	UpdateLastAccessed(id string) error
}

// PresetStore loads tuning presets
type PresetStore interface {
	Load(name string) (*config.Preset, error)
	List() ([]*config.PresetInfo, error)
	Default() *config.Preset
	Save(name string, p *config.Preset) error
}

// Session is one live puzzle. Exactly one of Match and Routing is set.
type Session struct {
	ID             string
	Kind           Kind
	PresetID       string
	Preset         *config.Preset
	Match          *match.Engine
	Routing        *routing.Engine
	Events         *event.Recorder // engine sink, drained after every action
	CreatedAt      time.Time
	LastAccessedAt time.Time
}

// View returns the state snapshot of whichever engine the session runs
func (s *Session) View() *StateView {
	v := &StateView{SessionID: s.ID, Kind: s.Kind}
	switch s.Kind {
	case KindMatch:
		v.Match = s.Match.State()
		v.Phase = string(v.Match.Phase)
	case KindRouting:
		v.Routing = s.Routing.State()
		v.Phase = string(v.Routing.Phase)
	}
	return v
}

// Tick advances the session's engine
func (s *Session) Tick(delta time.Duration) {
	switch s.Kind {
	case KindMatch:
		s.Match.Tick(delta)
	case KindRouting:
		s.Routing.Tick(delta)
	}
}

// Start restarts the session's engine
func (s *Session) Start() {
	switch s.Kind {
	case KindMatch:
		s.Match.Start()
	case KindRouting:
		s.Routing.Start()
	}
}

// Active reports whether the clock has anything to advance
func (s *Session) Active() bool {
	switch s.Kind {
	case KindMatch:
		return s.Match.IsPlaying() || s.Match.HasScheduled()
	case KindRouting:
		return s.Routing.IsPlaying()
	}
	return false
}
