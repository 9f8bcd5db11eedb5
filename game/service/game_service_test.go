package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/rng"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

// MockSessionManager implements service.SessionManager with seeded engines
// and a fixed routing level: start (0,2), end (5,2), one obstacle at (3,4)
type MockSessionManager struct {
	sessions map[string]*service.Session
	seed     uint64
}

func NewMockSessionManager() *MockSessionManager {
	return &MockSessionManager{sessions: make(map[string]*service.Session)}
}

func (m *MockSessionManager) Create(id string, kind service.Kind, presetID string, preset *config.Preset) (*service.Session, error) {
	if id == "" {
		id = fmt.Sprintf("s%d", len(m.sessions)+1)
	}
	if _, exists := m.sessions[id]; exists {
		return nil, errors.New("session already exists")
	}
	m.seed++

	sess := &service.Session{
		ID:             id,
		Kind:           kind,
		PresetID:       presetID,
		Preset:         preset,
		Events:         &event.Recorder{},
		CreatedAt:      time.Now().Add(time.Duration(len(m.sessions)) * time.Millisecond),
		LastAccessedAt: time.Now(),
	}

	var err error
	switch kind {
	case service.KindMatch:
		sess.Match, err = match.NewEngine(preset.MatchRules(),
			match.WithSource(rng.New(m.seed)), match.WithSink(sess.Events))
	case service.KindRouting:
		rules := preset.RoutingRules()
		fixed := routing.LevelSourceFunc(func(score int) *routing.Level {
			return routing.NewLevel(rules.GridSize, routing.Point{X: 0, Y: 2}, routing.Point{X: 5, Y: 2},
				rules.TimeLimit(score), routing.Point{X: 3, Y: 4})
		})
		sess.Routing, err = routing.NewEngine(rules, routing.WithLevelSource(fixed), routing.WithSink(sess.Events))
	default:
		err = service.ErrUnknownKind
	}
	if err != nil {
		return nil, err
	}

	m.sessions[id] = sess
	return sess, nil
}

func (m *MockSessionManager) Get(id string) (*service.Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return nil, service.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MockSessionManager) List() []*service.Session {
	out := make([]*service.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *MockSessionManager) Delete(id string) error {
	if _, ok := m.sessions[id]; !ok {
		return service.ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *MockSessionManager) UpdateLastAccessed(id string) error {
	sess, ok := m.sessions[id]
	if !ok {
		return service.ErrSessionNotFound
	}
	sess.LastAccessedAt = time.Now()
	return nil
}

// recordingListener captures listener callbacks
type recordingListener struct {
	mu      sync.Mutex
	updates map[string][]event.Kind
	closed  []string
	count   int
}

func newRecordingListener() *recordingListener {
	return &recordingListener{updates: make(map[string][]event.Kind)}
}

func (l *recordingListener) OnUpdate(id string, state *service.StateView, events []event.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.count++
	for _, e := range events {
		l.updates[id] = append(l.updates[id], e.Kind)
	}
}

func (l *recordingListener) OnClose(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = append(l.closed, id)
}

func (l *recordingListener) calls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.count
}

func (l *recordingListener) kinds(id string) []event.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]event.Kind(nil), l.updates[id]...)
}

func newTestService(t *testing.T) (service.GameService, *recordingListener) {
	t.Helper()
	presets, err := config.NewManager("")
	if err != nil {
		t.Fatalf("Failed to create preset manager: %v", err)
	}
	svc := service.NewGameService(NewMockSessionManager(), presets)
	l := newRecordingListener()
	svc.SetListener(l)
	return svc, l
}

func pairIndices(t *testing.T, cards []match.Card) (int, int) {
	t.Helper()
	for i := range cards {
		for j := i + 1; j < len(cards); j++ {
			if !cards[i].IsMatched && cards[i].SymbolKey == cards[j].SymbolKey {
				return i, j
			}
		}
	}
	t.Fatal("No pair found")
	return -1, -1
}

func mismatchIndices(t *testing.T, cards []match.Card) (int, int) {
	t.Helper()
	for i := range cards {
		for j := i + 1; j < len(cards); j++ {
			if !cards[i].IsMatched && !cards[j].IsMatched && cards[i].SymbolKey != cards[j].SymbolKey {
				return i, j
			}
		}
	}
	t.Fatal("No mismatch found")
	return -1, -1
}

func contains(kinds []event.Kind, k event.Kind) bool {
	for _, x := range kinds {
		if x == k {
			return true
		}
	}
	return false
}

func TestParseKind(t *testing.T) {
	for _, s := range []string{"match", "MATCH", " routing "} {
		if _, err := service.ParseKind(s); err != nil {
			t.Errorf("ParseKind(%q): unexpected error %v", s, err)
		}
	}
	if _, err := service.ParseKind("chess"); !errors.Is(err, service.ErrUnknownKind) {
		t.Errorf("Expected ErrUnknownKind, got %v", err)
	}
}

func TestGameService_CreateSession(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("default preset", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, service.KindMatch, "")
		if err != nil {
			t.Fatalf("Failed to create session: %v", err)
		}
		if info.PresetID != config.DefaultPresetName || info.PresetName != "Classic" {
			t.Errorf("Expected classic preset, got %s/%s", info.PresetID, info.PresetName)
		}
		if info.State.Phase != string(match.NotStarted) || info.State.Match == nil {
			t.Errorf("Expected a not-started match snapshot, got %+v", info.State)
		}
	})

	t.Run("routing session", func(t *testing.T) {
		info, err := svc.CreateSession(ctx, service.KindRouting, "classic")
		if err != nil {
			t.Fatal(err)
		}
		if info.Kind != service.KindRouting || info.State.Routing == nil {
			t.Errorf("Expected routing session, got %+v", info)
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		if _, err := svc.CreateSession(ctx, "poker", ""); !errors.Is(err, service.ErrUnknownKind) {
			t.Errorf("Expected ErrUnknownKind, got %v", err)
		}
	})

	t.Run("unknown preset", func(t *testing.T) {
		_, err := svc.CreateSession(ctx, service.KindMatch, "nightmare")
		if !errors.Is(err, config.ErrPresetNotFound) {
			t.Errorf("Expected ErrPresetNotFound, got %v", err)
		}
	})
}

func TestGameService_SessionNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.GetSession(ctx, "nope"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("GetSession: expected ErrSessionNotFound, got %v", err)
	}
	if _, err := svc.Start(ctx, "nope"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Start: expected ErrSessionNotFound, got %v", err)
	}
	if err := svc.CloseSession(ctx, "nope"); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("CloseSession: expected ErrSessionNotFound, got %v", err)
	}
}

func TestGameService_MatchFlow(t *testing.T) {
	svc, listener := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindMatch, "")
	started, err := svc.Start(ctx, info.ID)
	if err != nil {
		t.Fatalf("Failed to start: %v", err)
	}
	if len(started.Events) != 1 || started.Events[0].Kind != event.SessionStarted {
		t.Errorf("Expected session_started, got %v", started.Events)
	}

	i, j := pairIndices(t, started.State.Match.Cards)
	if _, err := svc.SelectCard(ctx, info.ID, i); err != nil {
		t.Fatal(err)
	}
	result, err := svc.SelectCard(ctx, info.ID, j)
	if err != nil {
		t.Fatal(err)
	}

	if result.State.Match.Score != 100 || result.State.Match.Combo != 2 {
		t.Errorf("Expected score 100 combo 2, got %d/%d", result.State.Match.Score, result.State.Match.Combo)
	}
	if len(result.Events) != 2 || result.Events[1].Kind != event.MatchFound {
		t.Errorf("Expected selection then match, got %v", result.Events)
	}

	kinds := listener.kinds(info.ID)
	for _, want := range []event.Kind{event.SessionStarted, event.SelectionMade, event.MatchFound} {
		if !contains(kinds, want) {
			t.Errorf("Listener missed %s: %v", want, kinds)
		}
	}

	// out-of-range input is a silent no-op
	noop, err := svc.SelectCard(ctx, info.ID, 99)
	if err != nil {
		t.Fatalf("Expected no error for ignored input, got %v", err)
	}
	if len(noop.Events) != 0 {
		t.Errorf("Expected no events, got %v", noop.Events)
	}
}

func TestGameService_WrongKind(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m, _ := svc.CreateSession(ctx, service.KindMatch, "")
	r, _ := svc.CreateSession(ctx, service.KindRouting, "")

	if _, err := svc.BeginDrag(ctx, m.ID, routing.Point{}); !errors.Is(err, service.ErrWrongKind) {
		t.Errorf("Expected ErrWrongKind for drag on match, got %v", err)
	}
	if _, err := svc.Route(ctx, m.ID, []routing.Point{{}}); !errors.Is(err, service.ErrWrongKind) {
		t.Errorf("Expected ErrWrongKind for route on match, got %v", err)
	}
	if _, err := svc.SelectCard(ctx, r.ID, 0); !errors.Is(err, service.ErrWrongKind) {
		t.Errorf("Expected ErrWrongKind for select on routing, got %v", err)
	}
}

func TestGameService_DragFlow(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindRouting, "")
	svc.Start(ctx, info.ID)

	if _, err := svc.BeginDrag(ctx, info.ID, routing.Point{X: 0, Y: 2}); err != nil {
		t.Fatal(err)
	}
	res, err := svc.ExtendDrag(ctx, info.ID, routing.Point{X: 1, Y: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.State.Routing.Path) != 2 {
		t.Errorf("Expected two-cell path, got %v", res.State.Routing.Path)
	}
	if len(res.Events) != 1 || res.Events[0].Kind != event.RouteStep {
		t.Errorf("Expected route_step, got %v", res.Events)
	}

	res, err = svc.EndDrag(ctx, info.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.State.Routing.Path) != 1 {
		t.Errorf("Expected path reset on release, got %v", res.State.Routing.Path)
	}
}

func TestGameService_Route(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindRouting, "")
	svc.Start(ctx, info.ID)

	t.Run("empty", func(t *testing.T) {
		if _, err := svc.Route(ctx, info.ID, nil); !errors.Is(err, service.ErrEmptyRoute) {
			t.Errorf("Expected ErrEmptyRoute, got %v", err)
		}
	})

	t.Run("rejected point stops the gesture", func(t *testing.T) {
		res, err := svc.Route(ctx, info.ID, []routing.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 3, Y: 3}, {X: 2, Y: 2}})
		if err != nil {
			t.Fatal(err)
		}
		if res.StoppedAt != 3 || res.Applied != 2 || res.Solved {
			t.Errorf("Expected stop at 3 after 2 applied, got %+v", res)
		}
		if len(res.State.Routing.Path) != 1 {
			t.Errorf("Expected unfinished route discarded, got %v", res.State.Routing.Path)
		}
	})

	t.Run("wrong start", func(t *testing.T) {
		res, err := svc.Route(ctx, info.ID, []routing.Point{{X: 1, Y: 2}})
		if err != nil {
			t.Fatal(err)
		}
		if res.StoppedAt != 1 || res.Applied != 0 {
			t.Errorf("Expected stop at the first point, got %+v", res)
		}
	})

	t.Run("repeated points are not counted", func(t *testing.T) {
		points := []routing.Point{{X: 0, Y: 2}, {X: 0, Y: 2}, {X: 1, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}}
		res, err := svc.Route(ctx, info.ID, points)
		if err != nil {
			t.Fatal(err)
		}
		if res.Applied != 3 || res.Requested != 5 || res.StoppedAt != 0 || res.Solved {
			t.Errorf("Expected 3 of 5 applied without a stop, got %+v", res)
		}
		steps := 0
		for _, e := range res.Events {
			if e.Kind == event.RouteStep {
				steps++
			}
		}
		if steps != 2 {
			t.Errorf("Expected 2 route steps, got %v", res.Events)
		}
	})

	t.Run("solve", func(t *testing.T) {
		points := []routing.Point{{X: 0, Y: 2}, {X: 1, Y: 2}, {X: 2, Y: 2}, {X: 3, Y: 2}, {X: 4, Y: 2}, {X: 5, Y: 2}}
		res, err := svc.Route(ctx, info.ID, points)
		if err != nil {
			t.Fatal(err)
		}
		if !res.Solved || res.Applied != 6 || res.Requested != 6 {
			t.Errorf("Expected solved with 6 applied, got %+v", res)
		}
		if res.State.Routing.Score != 1 {
			t.Errorf("Expected score 1, got %d", res.State.Routing.Score)
		}
		if res.State.Routing.TimeRemaining != 14.2 {
			t.Errorf("Expected 14.2s, got %v", res.State.Routing.TimeRemaining)
		}
		if res.Events[len(res.Events)-1].Kind != event.LevelSolved {
			t.Errorf("Expected level_solved last, got %v", res.Events)
		}
	})
}

func TestGameService_TickExpires(t *testing.T) {
	svc, listener := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindMatch, "")
	svc.Start(ctx, info.ID)

	res, err := svc.Tick(ctx, info.ID, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !res.State.Match.IsOver || res.State.Match.TimeRemaining != 0 {
		t.Errorf("Expected expiry at 0, got %+v", res.State.Match)
	}
	if res.State.Phase != string(match.GameOver) {
		t.Errorf("Expected phase game_over, got %s", res.State.Phase)
	}
	if !contains(listener.kinds(info.ID), event.SessionExpired) {
		t.Error("Expected listener to see session_expired")
	}
}

func TestGameService_TickAll(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	idle, _ := svc.CreateSession(ctx, service.KindMatch, "")
	m, _ := svc.CreateSession(ctx, service.KindMatch, "")
	r, _ := svc.CreateSession(ctx, service.KindRouting, "")
	svc.Start(ctx, m.ID)
	svc.Start(ctx, r.ID)

	if n := svc.TickAll(ctx, time.Second); n != 2 {
		t.Errorf("Expected 2 active sessions ticked, got %d", n)
	}

	state, _ := svc.GetState(ctx, m.ID)
	if state.Match.TimeRemaining != 29 {
		t.Errorf("Expected 29s, got %v", state.Match.TimeRemaining)
	}
	state, _ = svc.GetState(ctx, r.ID)
	if state.Routing.TimeRemaining != 14 {
		t.Errorf("Expected 14s, got %v", state.Routing.TimeRemaining)
	}
	state, _ = svc.GetState(ctx, idle.ID)
	if state.Match.TimeRemaining != 30 {
		t.Errorf("Expected idle session untouched, got %v", state.Match.TimeRemaining)
	}
}

func TestGameService_TickAllSkipsFinishedMatch(t *testing.T) {
	svc, listener := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindMatch, "")
	started, _ := svc.Start(ctx, info.ID)
	if _, err := svc.Tick(ctx, info.ID, 29500*time.Millisecond); err != nil {
		t.Fatal(err)
	}

	// a mismatch right before expiry leaves its reveal queued past the end
	i, j := mismatchIndices(t, started.State.Match.Cards)
	svc.SelectCard(ctx, info.ID, i)
	svc.SelectCard(ctx, info.ID, j)
	res, err := svc.Tick(ctx, info.ID, 600*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	if !res.State.Match.IsOver {
		t.Fatal("Expected the session to expire")
	}

	if n := svc.TickAll(ctx, 100*time.Millisecond); n != 1 {
		t.Errorf("Expected the pending reveal to keep the session ticking, got %d", n)
	}
	if n := svc.TickAll(ctx, 100*time.Millisecond); n != 1 {
		t.Errorf("Expected the reveal to fall due on this tick, got %d", n)
	}
	state, _ := svc.GetState(ctx, info.ID)
	if state.Match.Cards[i].IsFlipped || len(state.Match.Pending) != 0 {
		t.Errorf("Expected mismatched cards turned back, got %+v", state.Match.Cards[i])
	}

	calls := listener.calls()
	for n := 0; n < 5; n++ {
		if ticked := svc.TickAll(ctx, 100*time.Millisecond); ticked != 0 {
			t.Fatalf("Expected finished session skipped, got %d ticked", ticked)
		}
	}
	if got := listener.calls(); got != calls {
		t.Errorf("Expected no further updates, got %d more", got-calls)
	}
}

func TestRunClock(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())

	info, _ := svc.CreateSession(ctx, service.KindMatch, "")
	svc.Start(ctx, info.ID)

	done := make(chan struct{})
	go func() {
		service.RunClock(ctx, svc, 10*time.Millisecond)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		state, _ := svc.GetState(context.Background(), info.ID)
		if state.Match.TimeRemaining < 30 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()
	<-done

	state, _ := svc.GetState(context.Background(), info.ID)
	if state.Match.TimeRemaining >= 30 {
		t.Error("Expected the clock to advance the countdown")
	}
}

func TestGameService_CloseSession(t *testing.T) {
	svc, listener := newTestService(t)
	ctx := context.Background()

	info, _ := svc.CreateSession(ctx, service.KindRouting, "")
	if err := svc.CloseSession(ctx, info.ID); err != nil {
		t.Fatalf("Failed to close: %v", err)
	}

	if !contains(listener.kinds(info.ID), event.CloseRequested) {
		t.Error("Expected close_requested to reach the listener")
	}
	if len(listener.closed) != 1 || listener.closed[0] != info.ID {
		t.Errorf("Expected OnClose for %s, got %v", info.ID, listener.closed)
	}
	if _, err := svc.GetSession(ctx, info.ID); !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("Expected session removed, got %v", err)
	}
}

func TestGameService_ListSessions(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	first, _ := svc.CreateSession(ctx, service.KindMatch, "")
	second, _ := svc.CreateSession(ctx, service.KindRouting, "")

	sessions, err := svc.ListSessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].ID != first.ID || sessions[1].ID != second.ID {
		t.Errorf("Expected creation order, got %s %s", sessions[0].ID, sessions[1].ID)
	}
}

func TestGameService_Presets(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	infos, err := svc.ListPresets(ctx)
	if err != nil || len(infos) != 1 || infos[0].ID != "classic" {
		t.Errorf("Expected built-in classic only, got %v %v", infos, err)
	}
	p, err := svc.LoadPreset(ctx, "classic")
	if err != nil || p.Name != "Classic" {
		t.Errorf("Expected classic preset, got %v %v", p, err)
	}
}

func TestGameService_SavePreset(t *testing.T) {
	ctx := context.Background()
	presets, err := config.NewManager(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewGameService(NewMockSessionManager(), presets)

	custom := &config.Preset{Name: "Quick", Match: config.MatchPreset{StartSeconds: 10}}
	if err := svc.SavePreset(ctx, "quick", custom); err != nil {
		t.Fatalf("Failed to save preset: %v", err)
	}

	info, err := svc.CreateSession(ctx, service.KindMatch, "quick")
	if err != nil {
		t.Fatal(err)
	}
	if info.PresetName != "Quick" || info.State.Match.TimeRemaining != 10 {
		t.Errorf("Expected session on the saved preset, got %s with %vs", info.PresetName, info.State.Match.TimeRemaining)
	}

	bad := &config.Preset{Name: "Bad", Match: config.MatchPreset{MaxCombo: 99}}
	if err := svc.SavePreset(ctx, "bad", bad); !errors.Is(err, config.ErrInvalidPreset) {
		t.Errorf("Expected ErrInvalidPreset, got %v", err)
	}
}
