// Command analyze prints quick, human-readable difficulty heuristics for the
// presets in a preset directory. For every preset it samples generated
// routing levels at increasing scores and reports obstacle counts, how many
// levels can actually be solved, shortest route lengths and the time each
// step may take. It also summarises the match board tuning.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gookit/color"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/mcp-training/arcade/game/config"
	"github.com/wricardo/mcp-training/arcade/game/rng"
	"github.com/wricardo/mcp-training/arcade/game/routing"
)

// LevelStats summarises the sampled levels of one score
type LevelStats struct {
	Score        int
	TimeLimit    time.Duration
	Samples      int
	AvgObstacles float64
	SolvableRate float64
	AvgRoute     float64 // cells on the shortest route, start and end included
	MaxRoute     int
	Invalid      int // levels breaking generator invariants
}

// SecondsPerStep is the time budget per move along an average shortest route
func (s LevelStats) SecondsPerStep() float64 {
	if s.AvgRoute <= 1 {
		return 0
	}
	return s.TimeLimit.Seconds() / (s.AvgRoute - 1)
}

func main() {
	if err := newApp(os.Stdout).Run(context.Background(), os.Args); err != nil {
		color.Error.Println(err)
		os.Exit(1)
	}
}

func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "Report difficulty heuristics for puzzle presets",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "presets", Usage: "Preset directory (empty for built-ins only)"},
			&cli.IntFlag{Name: "samples", Value: 200, Usage: "Routing levels sampled per score"},
			&cli.IntFlag{Name: "max-score", Value: 15, Usage: "Highest score to sample"},
			&cli.Uint64Flag{Name: "seed", Value: 1, Usage: "Random seed for level sampling"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return run(out, cmd.String("dir"), int(cmd.Int("samples")), int(cmd.Int("max-score")), cmd.Uint64("seed"))
		},
	}
}

func run(out io.Writer, dir string, samples, maxScore int, seed uint64) error {
	if samples <= 0 || maxScore < 0 {
		return fmt.Errorf("samples must be positive and max-score not negative")
	}

	presets, err := config.NewManager(dir)
	if err != nil {
		return err
	}
	infos, err := presets.List()
	if err != nil {
		return err
	}

	for _, info := range infos {
		preset, err := presets.Load(info.ID)
		if err != nil {
			color.Fprintf(out, "<red>Error loading %s: %v</>\n", info.ID, err)
			continue
		}
		color.Fprintf(out, "\n<cyan>=== Analyzing %s ===</>\n", info.ID)
		report(out, preset, analyzeRouting(preset.RoutingRules(), samples, maxScore, seed))
	}
	return nil
}

// analyzeRouting samples generated levels for scores 0..maxScore
func analyzeRouting(rules routing.Rules, samples, maxScore int, seed uint64) []LevelStats {
	gen := routing.NewGenerator(rules, rng.New(seed))
	stats := make([]LevelStats, 0, maxScore+1)

	for score := 0; score <= maxScore; score++ {
		s := LevelStats{Score: score, TimeLimit: rules.TimeLimit(score), Samples: samples}
		obstacles, routes, solved := 0, 0, 0

		for i := 0; i < samples; i++ {
			lvl := gen.Generate(score)
			if routing.CheckLevel(lvl, rules) != nil {
				s.Invalid++
			}
			obstacles += lvl.Obstacles.Size()

			route := lvl.ShortestRoute()
			if route == nil {
				continue
			}
			solved++
			routes += len(route)
			s.MaxRoute = max(s.MaxRoute, len(route))
		}

		s.AvgObstacles = float64(obstacles) / float64(samples)
		s.SolvableRate = float64(solved) / float64(samples)
		if solved > 0 {
			s.AvgRoute = float64(routes) / float64(solved)
		}
		stats = append(stats, s)
	}
	return stats
}

func report(out io.Writer, preset *config.Preset, stats []LevelStats) {
	m := preset.MatchRules()
	fmt.Fprintf(out, "Name: %s\n", preset.Name)
	fmt.Fprintf(out, "Match: %d pairs, %s to start (max %s), +%s per pair, +%s per board, combo up to x%d\n",
		len(m.Catalog), m.StartTime, m.MaxTime, m.MatchBonus, m.ClearBonus, m.MaxCombo)

	r := preset.RoutingRules()
	fmt.Fprintf(out, "Routing: %dx%d grid, solvable levels guaranteed: %v\n\n", r.GridSize, r.GridSize, r.RequireSolvable)
	fmt.Fprintf(out, "%5s %7s %9s %9s %9s %7s %8s\n", "score", "time", "obstacles", "solvable", "avg route", "max", "s/step")

	for _, s := range stats {
		line := fmt.Sprintf("%5d %7s %9.1f %8.0f%% %9.1f %7d %8.2f",
			s.Score, s.TimeLimit, s.AvgObstacles, s.SolvableRate*100, s.AvgRoute, s.MaxRoute, s.SecondsPerStep())
		switch {
		case s.Invalid > 0:
			color.Fprintf(out, "<red>%s  %d invalid</>\n", line, s.Invalid)
		case s.SolvableRate < 0.9:
			color.Fprintf(out, "<yellow>%s</>\n", line)
		default:
			fmt.Fprintln(out, line)
		}
	}

	worst := 1.0
	for _, s := range stats {
		worst = min(worst, s.SolvableRate)
	}
	if worst < 1 {
		color.Fprintf(out, "<yellow>⚠️  Up to %.0f%% of levels have no route; consider require_solvable</>\n", (1-worst)*100)
	} else {
		color.Fprintf(out, "<green>✅ Every sampled level can be solved</>\n")
	}
}
