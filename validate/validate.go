// Command validate checks the preset JSON files of a preset directory. It
// checks:
//   - JSON structure, rejecting unknown fields
//   - Match and routing rule ranges, as enforced when presets are loaded
//   - Catalog symbols (unique keys, labels present)
//   - Obstacle capacity of the routing grid
//   - Generated levels: probes seeded levels for structural problems and
//     warns when too many of them have no route
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/rng"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

const (
	probeLevels  = 100
	probeSeed    = 1
	minSolvable  = 0.75
	endpointArea = 9 // both endpoints plus their neighbours, start on the edge
)

// ValidationResult captures the outcome of validating a single file.
// Warnings never make a file invalid.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
}

func (r *ValidationResult) fail(format string, args ...interface{}) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) warn(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ValidationResult) note(format string, args ...interface{}) {
	r.Info = append(r.Info, fmt.Sprintf(format, args...))
}

// validatePreset loads and validates a single preset file
func validatePreset(filePath string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(filePath),
		Valid: true,
	}

	data, err := os.ReadFile(filePath)
	if err != nil {
		result.fail("Failed to read file: %v", err)
		return result
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var raw config.Preset
	if err := dec.Decode(&raw); err != nil {
		result.fail("Invalid JSON: %v", err)
		return result
	}

	preset, err := config.ParsePreset(data)
	if err != nil {
		result.fail("%v", err)
		return result
	}

	m := preset.MatchRules()
	for i, s := range m.Catalog {
		if strings.TrimSpace(s.Label) == "" {
			result.warn("Symbol %d (%s) has no label", i, s.Key)
		}
	}

	r := preset.RoutingRules()
	if free := r.GridSize*r.GridSize - endpointArea; r.MaxObstacles > free {
		result.warn("max_obstacles %d may exceed the %d cells left free around the endpoints", r.MaxObstacles, free)
	}

	probeRouting(&result, r)

	if result.Valid {
		result.note("✓ Name: %s", preset.Name)
		result.note("✓ Match: %d pairs, %s start, %s cap", len(m.Catalog), m.StartTime, m.MaxTime)
		result.note("✓ Grid: %dx%d", r.GridSize, r.GridSize)
		result.note("✓ Time: %s at score 0, %s floor%s", r.BaseTime, r.MinTime, floorNote(r))
	}

	return result
}

// probeRouting generates seeded levels at the easiest and hardest obstacle
// targets and checks them
func probeRouting(result *ValidationResult, r routing.Rules) {
	hardest := saturationScore(r)
	gen := routing.NewGenerator(r, rng.New(probeSeed))

	for _, score := range []int{0, hardest} {
		solved := 0
		for i := 0; i < probeLevels; i++ {
			lvl := gen.Generate(score)
			if err := routing.CheckLevel(lvl, r); err != nil {
				result.fail("Generated level at score %d is broken: %v", score, err)
				return
			}
			if lvl.Solvable() {
				solved++
			}
		}

		rate := float64(solved) / probeLevels
		if rate < minSolvable {
			result.warn("Only %.0f%% of levels at score %d have a route; consider require_solvable", rate*100, score)
		} else {
			result.note("✓ Routes: %.0f%% of levels at score %d solvable", rate*100, score)
		}
	}
}

// saturationScore is the first score whose obstacle target stops growing
func saturationScore(r routing.Rules) int {
	score := 0
	for r.ObstacleTarget(score) < r.MaxObstacles && score < r.GridSize*r.GridSize*r.ObstacleGrowth {
		score++
	}
	return score
}

func floorNote(r routing.Rules) string {
	if r.TimeDecay <= 0 {
		return ", no decay"
	}
	span := r.BaseTime - r.MinTime
	score := int((span + r.TimeDecay - 1) / r.TimeDecay)
	return fmt.Sprintf(" reached at score %d", score)
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "validate",
		Usage: "Validate puzzle preset files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "presets", Usage: "Preset directory"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(out, cmd.String("dir"))
		},
	}
}

// run validates every *.json file in dir and fails if any is invalid
func run(out io.Writer, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("error finding preset files: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no preset files in %s", dir)
	}

	allValid := true
	for _, file := range files {
		result := validatePreset(file)

		fmt.Fprintf(out, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		if result.Valid {
			color.Fprintf(out, "<green>✅ VALID</>\n")
			for _, info := range result.Info {
				fmt.Fprintln(out, "  "+info)
			}
		} else {
			color.Fprintf(out, "<red>❌ INVALID</>\n")
			allValid = false
			for _, e := range result.Errors {
				color.Fprintf(out, "  <red>❌ %s</>\n", e)
			}
		}
		for _, w := range result.Warnings {
			color.Fprintf(out, "  <yellow>⚠️  %s</>\n", w)
		}
	}

	fmt.Fprintf(out, "\n%s\n", strings.Repeat("=", 40))
	if !allValid {
		color.Fprintf(out, "<red>❌ Some presets have errors</>\n")
		return fmt.Errorf("invalid presets in %s", dir)
	}
	color.Fprintf(out, "<green>✅ All presets are valid!</>\n")
	return nil
}
