package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
	"github.com/wricardo/mcp-training/arcade/transport/websocket"
)

var errBadRequest = errors.New("invalid request body")

// Server represents the REST API server
type Server struct {
	service service.GameService
	hub     *websocket.Hub
	router  *mux.Router
}

// NewServer creates a new API server. hub may be nil to disable /ws.
func NewServer(gameService service.GameService, hub *websocket.Hub) *Server {
	s := &Server{
		service: gameService,
		hub:     hub,
		router:  mux.NewRouter(),
	}

	s.setupRoutes()
	return s
}

// Router exposes the mux so callers can mount extra handlers
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	// Session management
	api.HandleFunc("/sessions", s.handleCreateSession).Methods("POST")
	api.HandleFunc("/sessions", s.handleListSessions).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleGetSession).Methods("GET")
	api.HandleFunc("/sessions/{id}", s.handleCloseSession).Methods("DELETE")

	// Lifecycle
	api.HandleFunc("/sessions/{id}/state", s.handleGetState).Methods("GET")
	api.HandleFunc("/sessions/{id}/start", s.handleStart).Methods("POST")
	api.HandleFunc("/sessions/{id}/tick", s.handleTick).Methods("POST")

	// Match-pair input
	api.HandleFunc("/sessions/{id}/select", s.handleSelect).Methods("POST")

	// Grid-routing input
	api.HandleFunc("/sessions/{id}/drag/begin", s.handleBeginDrag).Methods("POST")
	api.HandleFunc("/sessions/{id}/drag/extend", s.handleExtendDrag).Methods("POST")
	api.HandleFunc("/sessions/{id}/drag/end", s.handleEndDrag).Methods("POST")
	api.HandleFunc("/sessions/{id}/route", s.handleRoute).Methods("POST")

	// Presets
	api.HandleFunc("/presets", s.handleListPresets).Methods("GET")
	api.HandleFunc("/presets", s.handleSavePreset).Methods("POST")
	api.HandleFunc("/presets/{name}", s.handleGetPreset).Methods("GET")

	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service errors onto HTTP status codes
func respondServiceError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrSessionNotFound), errors.Is(err, config.ErrPresetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrWrongKind),
		errors.Is(err, service.ErrUnknownKind),
		errors.Is(err, service.ErrEmptyRoute),
		errors.Is(err, config.ErrInvalidPreset),
		errors.Is(err, errBadRequest):
		status = http.StatusBadRequest
	}
	respondError(w, status, err.Error())
}

// decodeBody decodes an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return nil
	}
	return fmt.Errorf("%w: %v", errBadRequest, err)
}

// maxTickDeltaMs caps manual ticks well below time.Duration overflow
const maxTickDeltaMs = int64(24 * time.Hour / time.Millisecond)

// Session Handlers

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Kind     string `json:"kind"`
		PresetID string `json:"preset_id,omitempty"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	info, err := s.service.CreateSession(r.Context(), service.Kind(req.Kind), req.PresetID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, info)
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.service.ListSessions(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}

	query := r.URL.Query()
	kind := query.Get("kind")
	sortBy := query.Get("sort") // "created" or "accessed" (default)
	order := query.Get("order") // "asc" or "desc" (default)
	if sortBy == "" {
		sortBy = "accessed"
	}
	if order == "" {
		order = "desc"
	}

	if kind != "" {
		filtered := sessions[:0]
		for _, sess := range sessions {
			if string(sess.Kind) == kind {
				filtered = append(filtered, sess)
			}
		}
		sessions = filtered
	}
	total := len(sessions)

	sort.SliceStable(sessions, func(i, j int) bool {
		var ti, tj time.Time
		if sortBy == "created" {
			ti, tj = sessions[i].CreatedAt, sessions[j].CreatedAt
		} else {
			ti, tj = sessions[i].LastAccessedAt, sessions[j].LastAccessedAt
		}
		if order == "asc" {
			return ti.Before(tj)
		}
		return ti.After(tj)
	})

	if l, err := strconv.Atoi(query.Get("limit")); err == nil && l > 0 && l < len(sessions) {
		sessions = sessions[:l]
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(sessions),
		"total":    total,
		"sessions": sessions,
		"sort":     sortBy,
		"order":    order,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	info, err := s.service.GetSession(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if err := s.service.CloseSession(r.Context(), sessionID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Session %s closed", sessionID),
	})
}

// Lifecycle Handlers

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	state, err := s.service.GetState(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, state)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.Start(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeltaMs int64 `json:"delta_ms"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	if req.DeltaMs < 0 {
		respondError(w, http.StatusBadRequest, "delta_ms must not be negative")
		return
	}
	if req.DeltaMs > maxTickDeltaMs {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("delta_ms must not exceed %d", maxTickDeltaMs))
		return
	}

	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.Tick(r.Context(), mux.Vars(r)["id"], time.Duration(req.DeltaMs)*time.Millisecond)
	})
}

// Input Handlers

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index *int `json:"index"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	if req.Index == nil {
		respondError(w, http.StatusBadRequest, "index is required")
		return
	}

	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.SelectCard(r.Context(), mux.Vars(r)["id"], *req.Index)
	})
}

func (s *Server) handleBeginDrag(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}
	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.BeginDrag(r.Context(), mux.Vars(r)["id"], p)
	})
}

func (s *Server) handleExtendDrag(w http.ResponseWriter, r *http.Request) {
	p, ok := decodePoint(w, r)
	if !ok {
		return
	}
	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.ExtendDrag(r.Context(), mux.Vars(r)["id"], p)
	})
}

func (s *Server) handleEndDrag(w http.ResponseWriter, r *http.Request) {
	s.respondAction(w, func() (*service.ActionResult, error) {
		return s.service.EndDrag(r.Context(), mux.Vars(r)["id"])
	})
}

func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]

	var req struct {
		Points []routing.Point `json:"points"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}

	result, err := s.service.Route(r.Context(), sessionID, req.Points)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	log.Info().Str("session", sessionID).Int("applied", result.Applied).Int("requested", result.Requested).
		Int("stopped_at", result.StoppedAt).Bool("solved", result.Solved).Msg("route")
	respondJSON(w, http.StatusOK, result)
}

func decodePoint(w http.ResponseWriter, r *http.Request) (routing.Point, bool) {
	var req struct {
		X *int `json:"x"`
		Y *int `json:"y"`
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return routing.Point{}, false
	}
	if req.X == nil || req.Y == nil {
		respondError(w, http.StatusBadRequest, "x and y are required")
		return routing.Point{}, false
	}
	return routing.Point{X: *req.X, Y: *req.Y}, true
}

func (s *Server) respondAction(w http.ResponseWriter, fn func() (*service.ActionResult, error)) {
	result, err := fn()
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Preset Handlers

func (s *Server) handleListPresets(w http.ResponseWriter, r *http.Request) {
	presets, err := s.service.ListPresets(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, presets)
}

func (s *Server) handleGetPreset(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSuffix(mux.Vars(r)["name"], ".json")

	preset, err := s.service.LoadPreset(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, preset)
}

func (s *Server) handleSavePreset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
		config.Preset
	}
	if err := decodeBody(r, &req); err != nil {
		respondServiceError(w, err)
		return
	}
	if req.ID == "" {
		respondError(w, http.StatusBadRequest, "preset id is required")
		return
	}

	if err := s.service.SavePreset(r.Context(), req.ID, &req.Preset); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"message":   "Preset saved successfully",
		"preset_id": req.ID,
	})
}

// WebSocket Handler

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "websocket disabled", http.StatusNotFound)
		return
	}

	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		http.Error(w, "session parameter required", http.StatusBadRequest)
		return
	}
	if _, err := s.service.GetSession(r.Context(), sessionID); err != nil {
		http.Error(w, "Invalid session", http.StatusNotFound)
		return
	}

	s.hub.ServeWS(w, r, sessionID)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}
