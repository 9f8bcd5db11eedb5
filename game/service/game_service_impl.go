package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

// gameServiceImpl implements the GameService interface. One mutex serialises
// every engine call, so each session sees a single logical thread.
type gameServiceImpl struct {
	sessions SessionManager
	presets  PresetStore
	listener Listener
	mu       sync.Mutex
}

// NewGameService creates a new game service instance
func NewGameService(sessions SessionManager, presets PresetStore) GameService {
	return &gameServiceImpl{
		sessions: sessions,
		presets:  presets,
	}
}

// SetListener registers the receiver of state changes
func (s *gameServiceImpl) SetListener(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listener = l
}

// CreateSession creates a new, not yet started session
func (s *gameServiceImpl) CreateSession(ctx context.Context, kind Kind, presetID string) (*SessionInfo, error) {
	kind, err := ParseKind(string(kind))
	if err != nil {
		return nil, err
	}

	preset, err := s.presets.Load(presetID)
	if err != nil {
		if errors.Is(err, config.ErrPresetNotFound) {
			if infos, listErr := s.presets.List(); listErr == nil && len(infos) > 0 {
				ids := make([]string, 0, len(infos))
				for _, info := range infos {
					ids = append(ids, info.ID)
				}
				return nil, fmt.Errorf("%w: %q, available presets: %v", config.ErrPresetNotFound, presetID, ids)
			}
		}
		return nil, fmt.Errorf("failed to load preset %q: %w", presetID, err)
	}
	if presetID == "" {
		presetID = config.DefaultPresetName
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.sessions.Create("", kind, presetID, preset)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().Str("session", sess.ID).Str("kind", string(kind)).Str("preset", presetID).Msg("session created")
	return s.info(sess), nil
}

// GetSession retrieves session information
func (s *gameServiceImpl) GetSession(ctx context.Context, sessionID string) (*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(sess), nil
}

// ListSessions returns all live sessions, oldest first
func (s *gameServiceImpl) ListSessions(ctx context.Context) ([]*SessionInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sessions := s.sessions.List()
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})

	result := make([]*SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		result = append(result, s.info(sess))
	}
	return result, nil
}

// CloseSession signals close-requested to listeners and drops the session
func (s *gameServiceImpl) CloseSession(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	sess, err := s.lookup(sessionID)
	if err != nil {
		s.mu.Unlock()
		return err
	}

	view := sess.View()
	closing := []event.Event{{Kind: event.CloseRequested, Score: scoreOf(view)}}
	if err := s.sessions.Delete(sess.ID); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to close session %s: %w", sess.ID, err)
	}
	listener := s.listener
	s.mu.Unlock()

	log.Info().Str("session", sess.ID).Msg("session closed")
	if listener != nil {
		listener.OnUpdate(sess.ID, view, closing)
		listener.OnClose(sess.ID)
	}
	return nil
}

// Start begins or restarts a session
func (s *gameServiceImpl) Start(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(sessionID, "", func(sess *Session) { sess.Start() })
}

// Tick advances one session's clock by delta
func (s *gameServiceImpl) Tick(ctx context.Context, sessionID string, delta time.Duration) (*ActionResult, error) {
	return s.act(sessionID, "", func(sess *Session) { sess.Tick(delta) })
}

// TickAll advances every active session and returns how many were ticked
func (s *gameServiceImpl) TickAll(ctx context.Context, delta time.Duration) int {
	type update struct {
		id     string
		view   *StateView
		events []event.Event
	}

	s.mu.Lock()
	var updates []update
	for _, sess := range s.sessions.List() {
		if !sess.Active() {
			continue
		}
		sess.Tick(delta)
		updates = append(updates, update{id: sess.ID, view: sess.View(), events: sess.Events.Drain()})
	}
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		for _, u := range updates {
			listener.OnUpdate(u.id, u.view, u.events)
		}
	}
	return len(updates)
}

// GetState returns the current snapshot
func (s *gameServiceImpl) GetState(ctx context.Context, sessionID string) (*StateView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// SelectCard flips a card of a match session
func (s *gameServiceImpl) SelectCard(ctx context.Context, sessionID string, index int) (*ActionResult, error) {
	return s.act(sessionID, KindMatch, func(sess *Session) { sess.Match.SelectCard(index) })
}

// BeginDrag starts a route on a routing session
func (s *gameServiceImpl) BeginDrag(ctx context.Context, sessionID string, p routing.Point) (*ActionResult, error) {
	return s.act(sessionID, KindRouting, func(sess *Session) { sess.Routing.BeginDrag(p) })
}

// ExtendDrag moves the pointer into cell p
func (s *gameServiceImpl) ExtendDrag(ctx context.Context, sessionID string, p routing.Point) (*ActionResult, error) {
	return s.act(sessionID, KindRouting, func(sess *Session) { sess.Routing.ExtendDrag(p) })
}

// EndDrag releases the pointer
func (s *gameServiceImpl) EndDrag(ctx context.Context, sessionID string) (*ActionResult, error) {
	return s.act(sessionID, KindRouting, func(sess *Session) { sess.Routing.EndDrag() })
}

// Route plays a whole drag gesture: press on the first point, move through
// the rest and release. It stops at the first rejected point or once the
// level is solved; an unfinished route is discarded on release.
func (s *gameServiceImpl) Route(ctx context.Context, sessionID string, points []routing.Point) (*RouteResult, error) {
	if len(points) == 0 {
		return nil, ErrEmptyRoute
	}

	result := &RouteResult{Requested: len(points)}
	action, err := s.act(sessionID, KindRouting, func(sess *Session) {
		eng := sess.Routing
		startScore := eng.Score()

		eng.BeginDrag(points[0])
		if !eng.Dragging() {
			result.StoppedAt = 1
			return
		}
		result.Applied = 1

		for i, p := range points[1:] {
			before := len(eng.Path())
			eng.ExtendDrag(p)
			if kinds := sess.Events.Kinds(); len(kinds) > 0 && kinds[len(kinds)-1] == event.RouteRejected {
				result.StoppedAt = i + 2
				break
			}
			// the pointer staying on the last cell changes nothing
			if eng.Score() == startScore && len(eng.Path()) == before {
				continue
			}
			result.Applied++
			if eng.Score() > startScore || !eng.Dragging() {
				break
			}
		}

		result.Solved = eng.Score() > startScore
		eng.EndDrag()
	})
	if err != nil {
		return nil, err
	}

	result.ActionResult = *action
	return result, nil
}

// ListPresets returns all available presets
func (s *gameServiceImpl) ListPresets(ctx context.Context) ([]*config.PresetInfo, error) {
	return s.presets.List()
}

// LoadPreset returns one preset
func (s *gameServiceImpl) LoadPreset(ctx context.Context, presetID string) (*config.Preset, error) {
	return s.presets.Load(presetID)
}

// SavePreset validates and stores a preset for later sessions
func (s *gameServiceImpl) SavePreset(ctx context.Context, presetID string, p *config.Preset) error {
	if err := s.presets.Save(presetID, p); err != nil {
		return err
	}
	log.Info().Str("preset", presetID).Msg("preset saved")
	return nil
}

// act runs fn against a session under the service lock, then reports the
// resulting state and events to the caller and the listener
func (s *gameServiceImpl) act(sessionID string, want Kind, fn func(*Session)) (*ActionResult, error) {
	s.mu.Lock()
	sess, err := s.lookup(sessionID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if want != "" && sess.Kind != want {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session %s is a %s game", ErrWrongKind, sess.ID, sess.Kind)
	}

	fn(sess)

	events := sess.Events.Drain()
	if events == nil {
		events = []event.Event{}
	}
	result := &ActionResult{State: sess.View(), Events: events}
	listener := s.listener
	s.mu.Unlock()

	for _, e := range events {
		log.Debug().Str("session", sess.ID).Str("event", string(e.Kind)).Int("score", e.Score).Msg("game event")
	}
	if listener != nil {
		listener.OnUpdate(sess.ID, result.State, result.Events)
	}
	return result, nil
}

// lookup finds a session and marks it accessed. Caller holds s.mu.
func (s *gameServiceImpl) lookup(sessionID string) (*Session, error) {
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", sessionID, err)
	}
	if err := s.sessions.UpdateLastAccessed(sess.ID); err != nil {
		log.Warn().Err(err).Str("session", sess.ID).Msg("update last accessed")
	}
	return sess, nil
}

func (s *gameServiceImpl) info(sess *Session) *SessionInfo {
	name := sess.PresetID
	if sess.Preset != nil && sess.Preset.Name != "" {
		name = sess.Preset.Name
	}
	return &SessionInfo{
		ID:             sess.ID,
		Kind:           sess.Kind,
		PresetID:       sess.PresetID,
		PresetName:     name,
		CreatedAt:      sess.CreatedAt,
		LastAccessedAt: sess.LastAccessedAt,
		State:          sess.View(),
	}
}

func scoreOf(v *StateView) int {
	switch {
	case v.Match != nil:
		return v.Match.Score
	case v.Routing != nil:
		return v.Routing.Score
	}
	return 0
}
