package routing

import (
	"time"

	"github.com/zyedidia/generic/mapset"

	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/rng"
)

// Phase is the lifecycle position of a routing session. Solving a level
// loads the next one in the same step, so there is no visible level-complete
// phase.
type Phase string

const (
	NotStarted Phase = "not_started"
	Playing    Phase = "playing"
	GameOver   Phase = "game_over"
)

// State is a read-only snapshot for rendering
type State struct {
	Phase         Phase   `json:"phase"`
	Score         int     `json:"score"`
	TimeRemaining float64 `json:"time_remaining"`
	IsPlaying     bool    `json:"is_playing"`
	IsOver        bool    `json:"is_over"`
	GridSize      int     `json:"grid_size"`
	Start         *Point  `json:"start,omitempty"`
	End           *Point  `json:"end,omitempty"`
	Obstacles     []Point `json:"obstacles"`
	Path          []Point `json:"path"`
	Dragging      bool    `json:"dragging"`
	Level         int     `json:"level"`
}

// Engine is the routing session state machine. It is not safe for concurrent
// use; callers serialise every method.
type Engine struct {
	rules  Rules
	src    rng.Source
	levels LevelSource
	sink   event.Sink

	level  *Level
	path   []Point
	onPath mapset.Set[Point]

	score     int
	levelNum  int
	remaining time.Duration

	started  bool
	playing  bool
	over     bool
	dragging bool
}

// Option customises an Engine
type Option func(*Engine)

// WithSource sets the random source of the built-in generator
func WithSource(src rng.Source) Option {
	return func(e *Engine) { e.src = src }
}

// WithLevelSource replaces the built-in generator
func WithLevelSource(levels LevelSource) Option {
	return func(e *Engine) { e.levels = levels }
}

// WithSink sets the receiver of advisory events
func WithSink(sink event.Sink) Option {
	return func(e *Engine) { e.sink = sink }
}

// NewEngine creates an engine for the given rules
func NewEngine(rules Rules, opts ...Option) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		rules:  rules,
		sink:   event.Discard,
		onPath: mapset.New[Point](),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.levels == nil {
		if e.src == nil {
			e.src = rng.NewTimeSeeded()
		}
		e.levels = NewGenerator(rules, e.src)
	}
	e.remaining = rules.BaseTime

	return e, nil
}

// NewEngineWithDefaults creates an engine with the reference rules
func NewEngineWithDefaults(opts ...Option) *Engine {
	e, err := NewEngine(DefaultRules(), opts...)
	if err != nil {
		panic(err) // reference rules are valid
	}
	return e
}

// Start begins a new session from any state
func (e *Engine) Start() {
	e.score = 0
	e.levelNum = 0
	e.started = true
	e.playing = true
	e.over = false
	e.dragging = false
	e.loadLevel()

	e.emit(event.Event{Kind: event.SessionStarted})
}

// Tick advances the countdown by delta while playing
func (e *Engine) Tick(delta time.Duration) {
	if !e.playing || e.over || delta <= 0 {
		return
	}

	e.remaining -= delta
	if e.remaining <= 0 {
		e.expire()
	}
}

// BeginDrag starts a route when p is the start cell
func (e *Engine) BeginDrag(p Point) {
	if !e.playing || e.over {
		return
	}
	if p != e.level.Start {
		return
	}

	e.dragging = true
	e.resetPath()
}

// ExtendDrag handles the pointer entering cell p during a drag. Stepping back
// onto the previous cell undoes one step; any other move must be a unit step
// onto a free cell that is not yet on the path.
func (e *Engine) ExtendDrag(p Point) {
	if !e.playing || e.over || !e.dragging {
		return
	}

	last := e.path[len(e.path)-1]
	if p == last {
		return
	}

	if len(e.path) >= 2 && p == e.path[len(e.path)-2] {
		e.path = e.path[:len(e.path)-1]
		e.onPath.Remove(last)
		e.emit(event.Event{Kind: event.RouteUndo, Target: []int{last.X, last.Y}})
		return
	}

	if !last.Adjacent(p) || !e.level.Passable(p) || e.onPath.Has(p) {
		e.emit(event.Event{Kind: event.RouteRejected, Target: []int{p.X, p.Y}})
		return
	}

	e.path = append(e.path, p)
	e.onPath.Put(p)

	if p == e.level.End {
		e.solve()
		return
	}
	e.emit(event.Event{Kind: event.RouteStep, Target: []int{p.X, p.Y}})
}

// EndDrag releases the pointer; an unfinished route is discarded
func (e *Engine) EndDrag() {
	e.dragging = false
	if e.level == nil {
		return
	}

	if e.path[len(e.path)-1] != e.level.End {
		abandoned := len(e.path) > 1
		e.resetPath()
		if abandoned {
			e.emit(event.Event{Kind: event.RouteReset})
		}
	}
}

func (e *Engine) solve() {
	end := e.level.End
	e.score++
	e.dragging = false
	e.emit(event.Event{Kind: event.LevelSolved, Target: []int{end.X, end.Y}})

	e.loadLevel()
}

// loadLevel generates the level for the current score and resets the clock
func (e *Engine) loadLevel() {
	e.level = e.levels.Generate(e.score)
	e.levelNum++
	e.remaining = e.level.TimeLimit
	e.resetPath()
}

func (e *Engine) resetPath() {
	e.path = []Point{e.level.Start}
	e.onPath = mapset.New[Point]()
	e.onPath.Put(e.level.Start)
}

func (e *Engine) expire() {
	e.remaining = 0
	e.over = true
	e.playing = false
	e.dragging = false

	e.emit(event.Event{Kind: event.SessionExpired})
}

func (e *Engine) emit(ev event.Event) {
	ev.Score = e.score
	e.sink.Notify(ev)
}

// Phase returns the lifecycle position
func (e *Engine) Phase() Phase {
	switch {
	case !e.started:
		return NotStarted
	case e.over:
		return GameOver
	default:
		return Playing
	}
}

// Score returns the number of solved levels
func (e *Engine) Score() int { return e.score }

// TimeRemaining returns the countdown value
func (e *Engine) TimeRemaining() time.Duration { return e.remaining }

// IsPlaying reports whether the countdown is running
func (e *Engine) IsPlaying() bool { return e.playing }

// IsOver reports whether the session expired
func (e *Engine) IsOver() bool { return e.over }

// Dragging reports whether a drag is active
func (e *Engine) Dragging() bool { return e.dragging }

// Rules returns the engine tuning
func (e *Engine) Rules() Rules { return e.rules }

// Level returns a copy of the current level, nil before Start
func (e *Engine) Level() *Level {
	if e.level == nil {
		return nil
	}
	return e.level.Clone()
}

// Path returns a copy of the current route
func (e *Engine) Path() []Point {
	out := make([]Point, len(e.path))
	copy(out, e.path)
	return out
}

// State returns a snapshot for rendering
func (e *Engine) State() *State {
	s := &State{
		Phase:         e.Phase(),
		Score:         e.score,
		TimeRemaining: e.remaining.Seconds(),
		IsPlaying:     e.playing,
		IsOver:        e.over,
		GridSize:      e.rules.GridSize,
		Obstacles:     []Point{},
		Path:          e.Path(),
		Dragging:      e.dragging,
		Level:         e.levelNum,
	}
	if e.level != nil {
		start, end := e.level.Start, e.level.End
		s.Start = &start
		s.End = &end
		s.GridSize = e.level.Size
		s.Obstacles = e.level.ObstacleList()
	}
	return s
}
