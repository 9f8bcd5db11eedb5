package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
	"github.com/wricardo/mcp-training/arcade/game/session"
)

// MockGameService overrides the service calls a test cares about. Calls
// without an override panic through the nil embedded interface.
type MockGameService struct {
	service.GameService

	CreateSessionFunc func(ctx context.Context, kind service.Kind, presetID string) (*service.SessionInfo, error)
	ListSessionsFunc  func(ctx context.Context) ([]*service.SessionInfo, error)
	TickFunc          func(ctx context.Context, sessionID string, delta time.Duration) (*service.ActionResult, error)
	SelectCardFunc    func(ctx context.Context, sessionID string, index int) (*service.ActionResult, error)
	SavePresetFunc    func(ctx context.Context, presetID string, p *config.Preset) error
}

func (m *MockGameService) CreateSession(ctx context.Context, kind service.Kind, presetID string) (*service.SessionInfo, error) {
	return m.CreateSessionFunc(ctx, kind, presetID)
}

func (m *MockGameService) ListSessions(ctx context.Context) ([]*service.SessionInfo, error) {
	return m.ListSessionsFunc(ctx)
}

func (m *MockGameService) Tick(ctx context.Context, sessionID string, delta time.Duration) (*service.ActionResult, error) {
	return m.TickFunc(ctx, sessionID, delta)
}

func (m *MockGameService) SelectCard(ctx context.Context, sessionID string, index int) (*service.ActionResult, error) {
	return m.SelectCardFunc(ctx, sessionID, index)
}

func (m *MockGameService) SavePreset(ctx context.Context, presetID string, p *config.Preset) error {
	return m.SavePresetFunc(ctx, presetID, p)
}

// Helper functions

func makeRequest(method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to parse response: %v (body %q)", err, w.Body.String())
	}
}

func do(server http.Handler, method, url string, body interface{}) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	server.ServeHTTP(w, makeRequest(method, url, body))
	return w
}

func newLiveServer(t *testing.T) (*Server, service.GameService) {
	t.Helper()
	presets, err := config.NewManager("")
	if err != nil {
		t.Fatal(err)
	}
	svc := service.NewGameService(session.NewManager(), presets)
	return NewServer(svc, nil), svc
}

func TestCreateSession(t *testing.T) {
	tests := []struct {
		name           string
		requestBody    interface{}
		createErr      error
		expectedStatus int
		expectedKind   service.Kind
		expectedPreset string
	}{
		{
			name:           "match session with default preset",
			requestBody:    map[string]string{"kind": "match"},
			expectedStatus: http.StatusCreated,
			expectedKind:   service.KindMatch,
		},
		{
			name:           "routing session with preset",
			requestBody:    map[string]string{"kind": "routing", "preset_id": "maze"},
			expectedStatus: http.StatusCreated,
			expectedKind:   service.KindRouting,
			expectedPreset: "maze",
		},
		{
			name:           "unknown kind",
			requestBody:    map[string]string{"kind": "chess"},
			createErr:      service.ErrUnknownKind,
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "unknown preset",
			requestBody:    map[string]string{"kind": "match", "preset_id": "nope"},
			createErr:      fmt.Errorf("%w: %q", config.ErrPresetNotFound, "nope"),
			expectedStatus: http.StatusNotFound,
		},
		{
			name:           "unexpected failure",
			requestBody:    map[string]string{"kind": "match"},
			createErr:      fmt.Errorf("disk on fire"),
			expectedStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotKind service.Kind
			var gotPreset string
			mock := &MockGameService{
				CreateSessionFunc: func(ctx context.Context, kind service.Kind, presetID string) (*service.SessionInfo, error) {
					gotKind, gotPreset = kind, presetID
					if tt.createErr != nil {
						return nil, tt.createErr
					}
					return &service.SessionInfo{ID: "ab12", Kind: kind, PresetID: presetID}, nil
				},
			}

			w := do(NewServer(mock, nil), "POST", "/api/sessions", tt.requestBody)
			if w.Code != tt.expectedStatus {
				t.Fatalf("Expected status %d, got %d (%s)", tt.expectedStatus, w.Code, w.Body.String())
			}
			if tt.createErr != nil {
				var resp map[string]string
				parseResponse(t, w, &resp)
				if resp["error"] == "" {
					t.Error("Expected error message in response")
				}
				return
			}
			if gotKind != tt.expectedKind || gotPreset != tt.expectedPreset {
				t.Errorf("Expected %s/%q, got %s/%q", tt.expectedKind, tt.expectedPreset, gotKind, gotPreset)
			}
		})
	}
}

func TestCreateSession_InvalidBody(t *testing.T) {
	mock := &MockGameService{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/sessions", strings.NewReader("{not json"))
	NewServer(mock, nil).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now()
	mock := &MockGameService{
		ListSessionsFunc: func(ctx context.Context) ([]*service.SessionInfo, error) {
			return []*service.SessionInfo{
				{ID: "a", Kind: service.KindMatch, CreatedAt: now.Add(-3 * time.Minute), LastAccessedAt: now.Add(-time.Minute)},
				{ID: "b", Kind: service.KindRouting, CreatedAt: now.Add(-2 * time.Minute), LastAccessedAt: now.Add(-3 * time.Minute)},
				{ID: "c", Kind: service.KindMatch, CreatedAt: now.Add(-time.Minute), LastAccessedAt: now.Add(-2 * time.Minute)},
			}, nil
		},
	}
	server := NewServer(mock, nil)

	tests := []struct {
		name     string
		query    string
		expected []string
		total    int
	}{
		{"default sorts by access desc", "", []string{"a", "c", "b"}, 3},
		{"created ascending", "?sort=created&order=asc", []string{"a", "b", "c"}, 3},
		{"limit", "?sort=created&limit=2", []string{"c", "b"}, 3},
		{"kind filter", "?kind=match&sort=created&order=asc", []string{"a", "c"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(server, "GET", "/api/sessions"+tt.query, nil)
			if w.Code != http.StatusOK {
				t.Fatalf("Expected status 200, got %d", w.Code)
			}

			var resp struct {
				Count    int                    `json:"count"`
				Total    int                    `json:"total"`
				Sessions []*service.SessionInfo `json:"sessions"`
			}
			parseResponse(t, w, &resp)

			if resp.Total != tt.total || resp.Count != len(tt.expected) {
				t.Errorf("Expected count %d total %d, got %d/%d", len(tt.expected), tt.total, resp.Count, resp.Total)
			}
			for i, id := range tt.expected {
				if i >= len(resp.Sessions) || resp.Sessions[i].ID != id {
					t.Errorf("Expected session %s at %d, got %+v", id, i, resp.Sessions)
					break
				}
			}
		})
	}
}

func TestTick(t *testing.T) {
	var got time.Duration
	mock := &MockGameService{
		TickFunc: func(ctx context.Context, sessionID string, delta time.Duration) (*service.ActionResult, error) {
			got = delta
			return &service.ActionResult{State: &service.StateView{SessionID: sessionID}, Events: []event.Event{}}, nil
		},
	}
	server := NewServer(mock, nil)

	w := do(server, "POST", "/api/sessions/ab12/tick", map[string]int{"delta_ms": 250})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	if got != 250*time.Millisecond {
		t.Errorf("Expected 250ms, got %s", got)
	}

	w = do(server, "POST", "/api/sessions/ab12/tick", map[string]int{"delta_ms": -5})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for negative delta, got %d", w.Code)
	}

	got = 0
	w = do(server, "POST", "/api/sessions/ab12/tick", map[string]int64{"delta_ms": 10_000_000_000_000})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for a delta that overflows, got %d", w.Code)
	}
	if got != 0 {
		t.Errorf("Expected service not called for a huge delta, got %s", got)
	}

	w = do(server, "POST", "/api/sessions/ab12/tick", map[string]int64{"delta_ms": maxTickDeltaMs})
	if w.Code != http.StatusOK || got != 24*time.Hour {
		t.Errorf("Expected the cap itself to be accepted, got %d %s", w.Code, got)
	}
}

func TestSelect_ErrorMapping(t *testing.T) {
	tests := []struct {
		name           string
		body           interface{}
		err            error
		expectedStatus int
	}{
		{"ok", map[string]int{"index": 3}, nil, http.StatusOK},
		{"missing index", map[string]int{}, nil, http.StatusBadRequest},
		{"not found", map[string]int{"index": 0}, fmt.Errorf("session %q: %w", "zz", service.ErrSessionNotFound), http.StatusNotFound},
		{"wrong kind", map[string]int{"index": 0}, service.ErrWrongKind, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockGameService{
				SelectCardFunc: func(ctx context.Context, sessionID string, index int) (*service.ActionResult, error) {
					if tt.err != nil {
						return nil, tt.err
					}
					return &service.ActionResult{Events: []event.Event{}}, nil
				},
			}
			w := do(NewServer(mock, nil), "POST", "/api/sessions/zz/select", tt.body)
			if w.Code != tt.expectedStatus {
				t.Errorf("Expected status %d, got %d (%s)", tt.expectedStatus, w.Code, w.Body.String())
			}
		})
	}
}

func TestSavePreset(t *testing.T) {
	var saved *config.Preset
	mock := &MockGameService{
		SavePresetFunc: func(ctx context.Context, presetID string, p *config.Preset) error {
			if presetID == "broken" {
				return fmt.Errorf("%w: name is required", config.ErrInvalidPreset)
			}
			saved = p
			return nil
		},
	}
	server := NewServer(mock, nil)

	body := map[string]interface{}{
		"id":    "quick",
		"name":  "Quick",
		"match": map[string]interface{}{"start_seconds": 10},
	}
	w := do(server, "POST", "/api/presets", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d (%s)", w.Code, w.Body.String())
	}
	if saved == nil || saved.Name != "Quick" || saved.Match.StartSeconds != 10 {
		t.Errorf("Expected preset fields decoded, got %+v", saved)
	}

	if w := do(server, "POST", "/api/presets", map[string]string{"name": "NoID"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 without id, got %d", w.Code)
	}
	if w := do(server, "POST", "/api/presets", map[string]string{"id": "broken"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for invalid preset, got %d", w.Code)
	}
}

func TestMatchSessionFlow(t *testing.T) {
	server, _ := newLiveServer(t)

	w := do(server, "POST", "/api/sessions", map[string]string{"kind": "match"})
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}
	var info service.SessionInfo
	parseResponse(t, w, &info)
	base := "/api/sessions/" + info.ID

	var started service.ActionResult
	parseResponse(t, do(server, "POST", base+"/start", nil), &started)
	if started.State.Phase != string(match.Playing) {
		t.Fatalf("Expected playing, got %s", started.State.Phase)
	}

	cards := started.State.Match.Cards
	first, second := -1, -1
	for i := range cards {
		for j := i + 1; j < len(cards) && first < 0; j++ {
			if cards[i].SymbolKey == cards[j].SymbolKey {
				first, second = i, j
			}
		}
	}

	do(server, "POST", base+"/select", map[string]int{"index": first})
	var result service.ActionResult
	parseResponse(t, do(server, "POST", base+"/select", map[string]int{"index": second}), &result)
	if result.State.Match.Score != 100 {
		t.Errorf("Expected score 100, got %d", result.State.Match.Score)
	}
	if len(result.Events) != 2 || result.Events[1].Kind != event.MatchFound {
		t.Errorf("Expected selection and match events, got %v", result.Events)
	}

	parseResponse(t, do(server, "POST", base+"/tick", map[string]int{"delta_ms": 60000}), &result)
	if !result.State.Match.IsOver {
		t.Error("Expected session to expire")
	}

	if w := do(server, "POST", base+"/drag/begin", map[string]int{"x": 0, "y": 0}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400 for drag on match, got %d", w.Code)
	}

	if w := do(server, "DELETE", base, nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 on close, got %d", w.Code)
	}
	if w := do(server, "GET", base, nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 after close, got %d", w.Code)
	}
}

func TestRoutingSessionFlow(t *testing.T) {
	server, _ := newLiveServer(t)

	var info service.SessionInfo
	parseResponse(t, do(server, "POST", "/api/sessions", map[string]string{"kind": "routing"}), &info)
	base := "/api/sessions/" + info.ID

	var started service.ActionResult
	parseResponse(t, do(server, "POST", base+"/start", nil), &started)
	st := started.State.Routing
	if st == nil || st.Start == nil || st.End == nil {
		t.Fatalf("Expected a loaded level, got %+v", st)
	}

	t.Run("drag handlers", func(t *testing.T) {
		if w := do(server, "POST", base+"/drag/begin", map[string]int{"x": 0}); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 without y, got %d", w.Code)
		}

		var res service.ActionResult
		parseResponse(t, do(server, "POST", base+"/drag/begin", *st.Start), &res)
		if !res.State.Routing.Dragging {
			t.Error("Expected drag to begin at the start cell")
		}
		parseResponse(t, do(server, "POST", base+"/drag/end", nil), &res)
		if res.State.Routing.Dragging {
			t.Error("Expected drag released")
		}
	})

	t.Run("empty route", func(t *testing.T) {
		if w := do(server, "POST", base+"/route", map[string]interface{}{"points": []routing.Point{}}); w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("route solves the level", func(t *testing.T) {
		level := routing.NewLevel(st.GridSize, *st.Start, *st.End, 0, st.Obstacles...)
		path := level.ShortestRoute()
		if path == nil {
			t.Skip("generated level has no route")
		}

		var res service.RouteResult
		parseResponse(t, do(server, "POST", base+"/route", map[string]interface{}{"points": path}), &res)
		if !res.Solved || res.State.Routing.Score != 1 {
			t.Errorf("Expected solved route with score 1, got %+v", res)
		}
	})
}

func TestPresetsEndpoints(t *testing.T) {
	server, _ := newLiveServer(t)

	w := do(server, "GET", "/api/presets", nil)
	var infos []*config.PresetInfo
	parseResponse(t, w, &infos)
	if len(infos) != 1 || infos[0].ID != config.DefaultPresetName {
		t.Errorf("Expected the built-in classic preset, got %+v", infos)
	}

	w = do(server, "GET", "/api/presets/classic.json", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	w = do(server, "GET", "/api/presets/nope", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestSavePreset_RejectsPathIDs(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "presets")
	if err := os.Mkdir(dir, 0755); err != nil {
		t.Fatal(err)
	}
	presets, err := config.NewManager(dir)
	if err != nil {
		t.Fatal(err)
	}
	server := NewServer(service.NewGameService(session.NewManager(), presets), nil)

	for _, id := range []string{"../escaped", "../../tmp/x", "nested/preset"} {
		w := do(server, "POST", "/api/presets", map[string]string{"id": id, "name": "Escaped"})
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400 for id %q, got %d (%s)", id, w.Code, w.Body.String())
		}
	}
	if _, err := os.Stat(filepath.Join(root, "escaped.json")); !os.IsNotExist(err) {
		t.Errorf("Expected nothing written outside the preset directory, stat err=%v", err)
	}

	w := do(server, "POST", "/api/presets", map[string]string{"id": "fine", "name": "Fine"})
	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201 for a plain id, got %d (%s)", w.Code, w.Body.String())
	}
	if _, err := os.Stat(filepath.Join(dir, "fine.json")); err != nil {
		t.Errorf("Expected preset file in the preset directory: %v", err)
	}
}

func TestHealthAndWebSocketGuards(t *testing.T) {
	server, _ := newLiveServer(t)

	if w := do(server, "GET", "/health", nil); w.Code != http.StatusOK {
		t.Errorf("Expected status 200 from /health, got %d", w.Code)
	}
	if w := do(server, "GET", "/ws?session=ab12", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 with websocket disabled, got %d", w.Code)
	}
	if w := do(server, "GET", "/api/sessions/nope/state", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 for unknown session, got %d", w.Code)
	}
}
