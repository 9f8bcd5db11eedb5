package config

import (
	"fmt"
	"math"
	"time"

	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

// DefaultPresetName is the preset used when none is requested
const DefaultPresetName = "classic"

// Preset is a named tuning for both puzzles. Zero or missing fields fall
// back to the reference values.
type Preset struct {
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Match       MatchPreset   `json:"match"`
	Routing     RoutingPreset `json:"routing"`
}

// MatchPreset tunes the match-pair puzzle
type MatchPreset struct {
	StartSeconds      float64        `json:"start_seconds,omitempty"`
	MaxSeconds        float64        `json:"max_seconds,omitempty"`
	MatchBonusSeconds float64        `json:"match_bonus_seconds,omitempty"`
	ClearBonusSeconds float64        `json:"clear_bonus_seconds,omitempty"`
	BasePoints        int            `json:"base_points,omitempty"`
	MaxCombo          int            `json:"max_combo,omitempty"`
	RevealDelayMs     int            `json:"reveal_delay_ms,omitempty"`
	ClearDelayMs      int            `json:"clear_delay_ms,omitempty"`
	Symbols           []match.Symbol `json:"symbols,omitempty"`
}

// RoutingPreset tunes the grid-routing puzzle
type RoutingPreset struct {
	GridSize            int      `json:"grid_size,omitempty"`
	BaseSeconds         float64  `json:"base_seconds,omitempty"`
	TimeDecayMs         int      `json:"time_decay_ms,omitempty"`
	MinSeconds          float64  `json:"min_seconds,omitempty"`
	ObstacleDensity     *float64 `json:"obstacle_density,omitempty"`
	ObstacleGrowth      int      `json:"obstacle_growth,omitempty"`
	MaxObstacles        *int     `json:"max_obstacles,omitempty"`
	MinEndpointDistance int      `json:"min_endpoint_distance,omitempty"`
	RequireSolvable     bool     `json:"require_solvable,omitempty"`
}

// PresetInfo describes an available preset
type PresetInfo struct {
	ID          string `json:"id"` // identifier to pass when creating sessions
	Name        string `json:"name"`
	Description string `json:"description"`
	Builtin     bool   `json:"builtin"`
	GridSize    int    `json:"grid_size"`
	PairCount   int    `json:"pair_count"`
}

// ClassicPreset is the reference tuning
func ClassicPreset() *Preset {
	return &Preset{
		Name:        "Classic",
		Description: "Reference tuning: 30s match board with 8 pairs, 6x6 routing grid",
	}
}

// MatchRules converts the preset into engine rules
func (p *Preset) MatchRules() match.Rules {
	r := match.DefaultRules()
	m := p.Match

	if m.StartSeconds != 0 {
		r.StartTime = seconds(m.StartSeconds)
	}
	if m.MaxSeconds != 0 {
		r.MaxTime = seconds(m.MaxSeconds)
	}
	if m.MatchBonusSeconds != 0 {
		r.MatchBonus = seconds(m.MatchBonusSeconds)
	}
	if m.ClearBonusSeconds != 0 {
		r.ClearBonus = seconds(m.ClearBonusSeconds)
	}
	if m.BasePoints != 0 {
		r.BasePoints = m.BasePoints
	}
	if m.MaxCombo != 0 {
		r.MaxCombo = m.MaxCombo
	}
	if m.RevealDelayMs != 0 {
		r.RevealDelay = time.Duration(m.RevealDelayMs) * time.Millisecond
	}
	if m.ClearDelayMs != 0 {
		r.ClearDelay = time.Duration(m.ClearDelayMs) * time.Millisecond
	}
	if len(m.Symbols) > 0 {
		r.Catalog = append([]match.Symbol(nil), m.Symbols...)
	}
	return r
}

// RoutingRules converts the preset into engine rules
func (p *Preset) RoutingRules() routing.Rules {
	r := routing.DefaultRules()
	g := p.Routing

	if g.GridSize != 0 {
		r.GridSize = g.GridSize
	}
	if g.BaseSeconds != 0 {
		r.BaseTime = seconds(g.BaseSeconds)
	}
	if g.TimeDecayMs != 0 {
		r.TimeDecay = time.Duration(g.TimeDecayMs) * time.Millisecond
	}
	if g.MinSeconds != 0 {
		r.MinTime = seconds(g.MinSeconds)
	}
	if g.ObstacleDensity != nil {
		r.ObstacleDensity = *g.ObstacleDensity
	}
	if g.ObstacleGrowth != 0 {
		r.ObstacleGrowth = g.ObstacleGrowth
	}
	if g.MaxObstacles != nil {
		r.MaxObstacles = *g.MaxObstacles
	}
	if g.MinEndpointDistance != 0 {
		r.MinEndpointDistance = g.MinEndpointDistance
	}
	r.RequireSolvable = g.RequireSolvable
	return r
}

// Validate checks that both rule sets are usable
func (p *Preset) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidPreset)
	}
	if err := p.MatchRules().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	if err := p.RoutingRules().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}
	return nil
}

func (p *Preset) info(id string, builtin bool) *PresetInfo {
	return &PresetInfo{
		ID:          id,
		Name:        p.Name,
		Description: p.Description,
		Builtin:     builtin,
		GridSize:    p.RoutingRules().GridSize,
		PairCount:   len(p.MatchRules().Catalog),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
