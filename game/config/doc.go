// Package config manages tuning presets for the arcade puzzles.
//
// A preset is a JSON file in the preset directory. Its file name without the
// .json extension is the id clients pass when creating sessions. Every field
// is optional; anything left out takes the reference value:
//
//	{
//	  "name": "Blitz",
//	  "description": "Short clocks",
//	  "match":   {"start_seconds": 15, "max_seconds": 20},
//	  "routing": {"base_seconds": 8, "min_seconds": 2, "require_solvable": true}
//	}
//
// classic.json is the default preset. When it is missing the built-in
// reference tuning is used instead, so a server runs without any files.
//
// Usage:
//
//	manager, err := config.NewManager("presets")
//	if err != nil {
//		log.Fatal().Err(err).Msg("presets")
//	}
//	go manager.Watch(ctx, nil) // pick up edits without a restart
//
//	preset, err := manager.Load("blitz")
//	rules := preset.MatchRules()
//
// Validation:
//
// Presets are rejected with ErrInvalidPreset when either rule set fails its
// own Validate, for example a start time above the cap, a duplicate symbol
// key or an endpoint distance the grid cannot hold.
package config
