package routing

import (
	"fmt"
	"time"
)

// Tuning limits
const (
	MinGridSize = 3
	MaxGridSize = 32
)

// Rules holds grid and timing constants of a routing session
type Rules struct {
	GridSize            int
	BaseTime            time.Duration // budget at score 0
	TimeDecay           time.Duration // budget lost per point of score
	MinTime             time.Duration // budget floor
	ObstacleDensity     float64       // base share of cells blocked
	ObstacleGrowth      int           // one extra obstacle per this many points
	MaxObstacles        int
	MinEndpointDistance int
	SampleLimit         int  // rejection sampling draws before falling back
	RequireSolvable     bool // reject layouts with no route from start to end
}

// DefaultRules returns the reference tuning
func DefaultRules() Rules {
	return Rules{
		GridSize:            6,
		BaseTime:            15 * time.Second,
		TimeDecay:           800 * time.Millisecond,
		MinTime:             3 * time.Second,
		ObstacleDensity:     0.15,
		ObstacleGrowth:      2,
		MaxObstacles:        12,
		MinEndpointDistance: 4,
		SampleLimit:         1000,
	}
}

// Validate reports the first inconsistent value
func (r Rules) Validate() error {
	if r.GridSize < MinGridSize || r.GridSize > MaxGridSize {
		return fmt.Errorf("routing rules: grid size must be between %d and %d, got %d", MinGridSize, MaxGridSize, r.GridSize)
	}
	if r.BaseTime <= 0 || r.MinTime <= 0 {
		return fmt.Errorf("routing rules: time budgets must be positive")
	}
	if r.MinTime > r.BaseTime {
		return fmt.Errorf("routing rules: min time %s exceeds base time %s", r.MinTime, r.BaseTime)
	}
	if r.TimeDecay < 0 {
		return fmt.Errorf("routing rules: time decay cannot be negative, got %s", r.TimeDecay)
	}
	if r.ObstacleDensity < 0 || r.ObstacleDensity > 1 {
		return fmt.Errorf("routing rules: obstacle density must be within [0,1], got %g", r.ObstacleDensity)
	}
	if r.ObstacleGrowth < 1 {
		return fmt.Errorf("routing rules: obstacle growth must be at least 1, got %d", r.ObstacleGrowth)
	}
	if r.MaxObstacles < 0 || r.MaxObstacles > r.GridSize*r.GridSize {
		return fmt.Errorf("routing rules: max obstacles must be between 0 and %d, got %d", r.GridSize*r.GridSize, r.MaxObstacles)
	}
	// start sits on the first column, so any far-column end satisfies this
	if r.MinEndpointDistance < 1 || r.MinEndpointDistance > r.GridSize-1 {
		return fmt.Errorf("routing rules: min endpoint distance must be between 1 and %d, got %d", r.GridSize-1, r.MinEndpointDistance)
	}
	if r.SampleLimit < 1 {
		return fmt.Errorf("routing rules: sample limit must be positive, got %d", r.SampleLimit)
	}
	return nil
}

// TimeLimit returns the budget for a level generated at score
func (r Rules) TimeLimit(score int) time.Duration {
	return max(r.MinTime, r.BaseTime-time.Duration(score)*r.TimeDecay)
}

// ObstacleTarget returns how many obstacles a level at score should carry
func (r Rules) ObstacleTarget(score int) int {
	cells := r.GridSize * r.GridSize
	base := int(float64(cells) * r.ObstacleDensity)
	return min(base+score/r.ObstacleGrowth, r.MaxObstacles)
}
