package routing

import (
	"fmt"
	"sort"
	"time"

	"github.com/zyedidia/generic/mapset"
)

// Point is a grid cell; X is the column and Y the row
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Manhattan returns the L1 distance between p and q
func (p Point) Manhattan(q Point) int {
	return abs(p.X-q.X) + abs(p.Y-q.Y)
}

// Adjacent reports whether p and q are one unit step apart
func (p Point) Adjacent(q Point) bool {
	return p.Manhattan(q) == 1
}

// InBounds reports whether p lies on an n×n grid
func (p Point) InBounds(n int) bool {
	return p.X >= 0 && p.Y >= 0 && p.X < n && p.Y < n
}

// Neighbors returns the four orthogonal neighbours, in bounds or not
func (p Point) Neighbors() [4]Point {
	return [4]Point{
		{X: p.X, Y: p.Y - 1},
		{X: p.X + 1, Y: p.Y},
		{X: p.X, Y: p.Y + 1},
		{X: p.X - 1, Y: p.Y},
	}
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Level is one generated routing puzzle
type Level struct {
	Size      int
	Start     Point
	End       Point
	Obstacles mapset.Set[Point]
	TimeLimit time.Duration
}

// NewLevel builds a level from explicit cells
func NewLevel(size int, start, end Point, timeLimit time.Duration, obstacles ...Point) *Level {
	set := mapset.New[Point]()
	for _, o := range obstacles {
		set.Put(o)
	}
	return &Level{
		Size:      size,
		Start:     start,
		End:       end,
		Obstacles: set,
		TimeLimit: timeLimit,
	}
}

// IsObstacle reports whether p is blocked
func (l *Level) IsObstacle(p Point) bool {
	return l.Obstacles.Has(p)
}

// Passable reports whether a route may enter p
func (l *Level) Passable(p Point) bool {
	return p.InBounds(l.Size) && !l.Obstacles.Has(p)
}

// ObstacleList returns the obstacles in row-major order
func (l *Level) ObstacleList() []Point {
	out := make([]Point, 0, l.Obstacles.Size())
	l.Obstacles.Each(func(p Point) {
		out = append(out, p)
	})
	sortPoints(out)
	return out
}

// Clone returns a deep copy
func (l *Level) Clone() *Level {
	return NewLevel(l.Size, l.Start, l.End, l.TimeLimit, l.ObstacleList()...)
}

// ShortestRoute returns a shortest simple route from Start to End, or nil
// when the obstacles cut End off
func (l *Level) ShortestRoute() []Point {
	visited := mapset.New[Point]()
	prev := make(map[Point]Point)
	queue := []Point{l.Start}
	visited.Put(l.Start)

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if cur == l.End {
			route := []Point{cur}
			for cur != l.Start {
				cur = prev[cur]
				route = append(route, cur)
			}
			for i, j := 0, len(route)-1; i < j; i, j = i+1, j-1 {
				route[i], route[j] = route[j], route[i]
			}
			return route
		}

		for _, next := range cur.Neighbors() {
			if !l.Passable(next) || visited.Has(next) {
				continue
			}
			visited.Put(next)
			prev[next] = cur
			queue = append(queue, next)
		}
	}

	return nil
}

// Solvable reports whether End is reachable from Start
func (l *Level) Solvable() bool {
	return l.ShortestRoute() != nil
}

func sortPoints(points []Point) {
	sort.Slice(points, func(i, j int) bool {
		if points[i].Y != points[j].Y {
			return points[i].Y < points[j].Y
		}
		return points[i].X < points[j].X
	})
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
