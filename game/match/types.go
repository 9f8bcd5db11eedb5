package match

import "time"

// Phase is the coarse lifecycle position of a session
type Phase string

const (
	NotStarted    Phase = "not_started"
	Playing       Phase = "playing"
	LevelComplete Phase = "level_complete"
	GameOver      Phase = "game_over"
)

// Symbol is one entry of the icon catalog
type Symbol struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Card is a single tile of the deck. Exactly two cards share a SymbolKey.
type Card struct {
	ID        string `json:"id"`
	SymbolKey string `json:"symbol_key"`
	Label     string `json:"label"`
	IsFlipped bool   `json:"is_flipped"`
	IsMatched bool   `json:"is_matched"`
}

// State is the read-only snapshot handed to renderers
type State struct {
	Phase         Phase   `json:"phase"`
	Score         int     `json:"score"`
	Combo         int     `json:"combo"`
	TimeRemaining float64 `json:"time_remaining"` // seconds
	IsPlaying     bool    `json:"is_playing"`
	IsOver        bool    `json:"is_over"`
	BestScore     int     `json:"best_score"`
	NewRecord     bool    `json:"new_record,omitempty"`
	Level         int     `json:"level"`
	Cards         []Card  `json:"cards"`
	Pending       []int   `json:"pending"`
}

// delayed is an action scheduled on the engine clock. It is dropped when the
// engine epoch has moved on by the time it falls due.
type delayed struct {
	remaining time.Duration
	epoch     uint64
	apply     func()
}
