package match

import (
	"fmt"
	"time"
)

// Tuning limits
const (
	MinCatalogSize = 2
	MaxCatalogSize = 32
	MaxComboLimit  = 10
)

// DefaultCatalog is the 8-symbol catalog of the reference game (4x4 board)
var DefaultCatalog = []Symbol{
	{Key: "key", Label: "AES-256"},
	{Key: "hash", Label: "SHA-512"},
	{Key: "shield", Label: "TLS-1.3"},
	{Key: "file-key", Label: "RSA-2048"},
	{Key: "lock", Label: "SSH-KEY"},
	{Key: "database", Label: "SQL-DB"},
	{Key: "server", Label: "VPN-TUN"},
	{Key: "cpu", Label: "CORE-I9"},
}

// Rules holds the scoring and timing constants of a match session
type Rules struct {
	StartTime   time.Duration // countdown at Start
	MaxTime     time.Duration // cap applied when a match extends the clock
	MatchBonus  time.Duration // added per match
	ClearBonus  time.Duration // added when a fresh deck is dealt
	BasePoints  int           // points per match before the combo multiplier
	MaxCombo    int           // multiplier cap
	RevealDelay time.Duration // how long a mismatched pair stays face up
	ClearDelay  time.Duration // grace period before a cleared board is redealt
	Catalog     []Symbol
}

// DefaultRules returns the reference tuning
func DefaultRules() Rules {
	catalog := make([]Symbol, len(DefaultCatalog))
	copy(catalog, DefaultCatalog)

	return Rules{
		StartTime:   30 * time.Second,
		MaxTime:     45 * time.Second,
		MatchBonus:  2 * time.Second,
		ClearBonus:  5 * time.Second,
		BasePoints:  100,
		MaxCombo:    5,
		RevealDelay: 800 * time.Millisecond,
		ClearDelay:  500 * time.Millisecond,
		Catalog:     catalog,
	}
}

// Validate reports the first inconsistent value
func (r Rules) Validate() error {
	if r.StartTime <= 0 {
		return fmt.Errorf("match rules: start time must be positive, got %s", r.StartTime)
	}
	if r.MaxTime < r.StartTime {
		return fmt.Errorf("match rules: max time %s must be at least start time %s", r.MaxTime, r.StartTime)
	}
	if r.MatchBonus < 0 || r.ClearBonus < 0 {
		return fmt.Errorf("match rules: time bonuses cannot be negative")
	}
	if r.BasePoints <= 0 {
		return fmt.Errorf("match rules: base points must be positive, got %d", r.BasePoints)
	}
	if r.MaxCombo < 1 || r.MaxCombo > MaxComboLimit {
		return fmt.Errorf("match rules: max combo must be between 1 and %d, got %d", MaxComboLimit, r.MaxCombo)
	}
	if r.RevealDelay < 0 || r.ClearDelay < 0 {
		return fmt.Errorf("match rules: delays cannot be negative")
	}
	if len(r.Catalog) < MinCatalogSize || len(r.Catalog) > MaxCatalogSize {
		return fmt.Errorf("match rules: catalog must hold between %d and %d symbols, got %d",
			MinCatalogSize, MaxCatalogSize, len(r.Catalog))
	}

	seen := make(map[string]bool, len(r.Catalog))
	for i, s := range r.Catalog {
		if s.Key == "" {
			return fmt.Errorf("match rules: catalog entry %d has an empty key", i)
		}
		if seen[s.Key] {
			return fmt.Errorf("match rules: duplicate catalog key %q", s.Key)
		}
		seen[s.Key] = true
	}

	return nil
}
