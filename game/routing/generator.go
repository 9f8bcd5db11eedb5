package routing

import (
	"fmt"

	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/mcp-training/arcade/game/rng"
)

// LevelSource produces the level for a given score
type LevelSource interface {
	Generate(score int) *Level
}

// LevelSourceFunc adapts a function to LevelSource
type LevelSourceFunc func(score int) *Level

// Generate calls f(score)
func (f LevelSourceFunc) Generate(score int) *Level { return f(score) }

// Generator builds random levels by rejection sampling. Every loop is bounded
// by Rules.SampleLimit and falls back to a deterministic choice, so Generate
// always terminates with a level that satisfies CheckLevel.
type Generator struct {
	rules Rules
	src   rng.Source
}

// NewGenerator creates a generator. Rules are assumed valid.
func NewGenerator(rules Rules, src rng.Source) *Generator {
	return &Generator{rules: rules, src: src}
}

// Generate returns a new level for score
func (g *Generator) Generate(score int) *Level {
	if !g.rules.RequireSolvable {
		return g.layout(score)
	}

	for attempt := 0; attempt < g.rules.SampleLimit; attempt++ {
		if lvl := g.layout(score); lvl.Solvable() {
			return lvl
		}
	}

	// an empty board is always solvable
	lvl := g.layout(score)
	lvl.Obstacles = mapset.New[Point]()
	return lvl
}

func (g *Generator) layout(score int) *Level {
	n := g.rules.GridSize
	start := Point{X: 0, Y: rng.Intn(g.src, n)}
	end := g.pickEnd(start)

	return &Level{
		Size:      n,
		Start:     start,
		End:       end,
		Obstacles: g.scatter(start, end, g.rules.ObstacleTarget(score)),
		TimeLimit: g.rules.TimeLimit(score),
	}
}

// pickEnd samples the far column first and then the whole grid until the
// endpoint distance holds
func (g *Generator) pickEnd(start Point) Point {
	n := g.rules.GridSize
	end := Point{X: n - 1, Y: rng.Intn(g.src, n)}

	for draws := 0; start.Manhattan(end) < g.rules.MinEndpointDistance; draws++ {
		if draws >= g.rules.SampleLimit {
			return farthestFrom(start, n)
		}
		end = Point{X: rng.Intn(g.src, n), Y: rng.Intn(g.src, n)}
	}
	return end
}

// scatter places up to target obstacles away from both endpoints
func (g *Generator) scatter(start, end Point, target int) mapset.Set[Point] {
	n := g.rules.GridSize
	obstacles := mapset.New[Point]()

	eligible := func(p Point) bool {
		return p != start && p != end &&
			!start.Adjacent(p) && !end.Adjacent(p) &&
			!obstacles.Has(p)
	}

	for draws := 0; obstacles.Size() < target && draws < g.rules.SampleLimit; draws++ {
		p := Point{X: rng.Intn(g.src, n), Y: rng.Intn(g.src, n)}
		if eligible(p) {
			obstacles.Put(p)
		}
	}

	// row-major fill when sampling ran dry
	for y := 0; y < n && obstacles.Size() < target; y++ {
		for x := 0; x < n && obstacles.Size() < target; x++ {
			if p := (Point{X: x, Y: y}); eligible(p) {
				obstacles.Put(p)
			}
		}
	}

	return obstacles
}

// farthestFrom returns the first cell in row-major order at maximum distance
func farthestFrom(from Point, n int) Point {
	best, bestDist := from, -1
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			p := Point{X: x, Y: y}
			if d := from.Manhattan(p); d > bestDist {
				best, bestDist = p, d
			}
		}
	}
	return best
}

// CheckLevel reports the first structural problem of lvl under rules
func CheckLevel(lvl *Level, rules Rules) error {
	if lvl == nil {
		return fmt.Errorf("level is nil")
	}
	if lvl.Size != rules.GridSize {
		return fmt.Errorf("grid size %d, want %d", lvl.Size, rules.GridSize)
	}
	if !lvl.Start.InBounds(lvl.Size) || !lvl.End.InBounds(lvl.Size) {
		return fmt.Errorf("endpoint out of bounds: start %s end %s", lvl.Start, lvl.End)
	}
	if lvl.Start == lvl.End {
		return fmt.Errorf("start equals end at %s", lvl.Start)
	}
	if d := lvl.Start.Manhattan(lvl.End); d < rules.MinEndpointDistance {
		return fmt.Errorf("endpoints %s and %s only %d apart", lvl.Start, lvl.End, d)
	}
	if size := lvl.Obstacles.Size(); size > rules.MaxObstacles {
		return fmt.Errorf("%d obstacles exceed the cap of %d", size, rules.MaxObstacles)
	}

	var err error
	lvl.Obstacles.Each(func(p Point) {
		if err != nil {
			return
		}
		switch {
		case !p.InBounds(lvl.Size):
			err = fmt.Errorf("obstacle %s out of bounds", p)
		case p == lvl.Start || p == lvl.End:
			err = fmt.Errorf("obstacle %s on an endpoint", p)
		case p.Adjacent(lvl.Start) || p.Adjacent(lvl.End):
			err = fmt.Errorf("obstacle %s next to an endpoint", p)
		}
	})
	return err
}
