package match

import (
	"time"

	"github.com/wricardo/mcp-training/arcade/game/event"
	"github.com/wricardo/mcp-training/arcade/game/rng"
)

// Engine is the match-pair session state machine. It is not safe for
// concurrent use; callers serialise Start, Tick and SelectCard.
type Engine struct {
	rules Rules
	src   rng.Source
	sink  event.Sink

	cards   []Card
	pending []int // face-up, unresolved card indices (0..2)

	score     int
	combo     int
	bestScore int
	level     int
	remaining time.Duration

	started  bool
	playing  bool
	over     bool
	clearing bool

	epoch     uint64
	scheduled []delayed
}

// Option customises an Engine
type Option func(*Engine)

// WithSource sets the random source used to shuffle decks
func WithSource(src rng.Source) Option {
	return func(e *Engine) { e.src = src }
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
		rules: rules,
		combo: 1,
		sink:  event.Discard,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.src == nil {
		e.src = rng.NewTimeSeeded()
	}
	e.remaining = rules.StartTime

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

// Start begins a new session from any state. Best score survives.
func (e *Engine) Start() {
	e.epoch++
	e.score = 0
	e.combo = 1
	e.level = 1
	e.remaining = e.rules.StartTime
	e.started = true
	e.playing = true
	e.over = false
	e.clearing = false
	e.pending = nil
	e.cards = GenerateDeck(e.src, e.rules.Catalog)

	e.emit(event.Event{Kind: event.SessionStarted})
}

// Tick advances the engine clock by delta. The countdown only runs while
// playing; scheduled reveal and redeal actions advance regardless.
func (e *Engine) Tick(delta time.Duration) {
	if delta < 0 {
		delta = 0
	}

	if e.playing && !e.over {
		e.remaining -= delta
		if e.remaining <= 0 {
			e.expire()
		}
	}

	e.runScheduled(delta)
}

// SelectCard flips the card at index. Invalid selections are ignored.
func (e *Engine) SelectCard(index int) {
	if !e.playing || e.over {
		return
	}
	if index < 0 || index >= len(e.cards) {
		return
	}
	card := &e.cards[index]
	if card.IsFlipped || card.IsMatched {
		return
	}
	if len(e.pending) >= 2 {
		return
	}

	card.IsFlipped = true
	e.pending = append(e.pending, index)
	e.emit(event.Event{Kind: event.SelectionMade, Target: []int{index}})

	if len(e.pending) == 2 {
		e.resolve()
	}
}

// resolve compares the two pending cards
func (e *Engine) resolve() {
	first, second := e.pending[0], e.pending[1]

	if e.cards[first].SymbolKey == e.cards[second].SymbolKey {
		e.cards[first].IsMatched = true
		e.cards[second].IsMatched = true
		e.pending = nil

		e.score += e.rules.BasePoints * e.combo
		e.combo = min(e.combo+1, e.rules.MaxCombo)
		e.remaining = min(e.remaining+e.rules.MatchBonus, e.rules.MaxTime)

		e.emit(event.Event{Kind: event.MatchFound, Target: []int{first, second}})

		if allMatched(e.cards) {
			e.clearing = true
			e.schedule(e.rules.ClearDelay, e.redeal)
		}
		return
	}

	e.emit(event.Event{Kind: event.Mismatch, Target: []int{first, second}})
	e.schedule(e.rules.RevealDelay, func() {
		e.cards[first].IsFlipped = false
		e.cards[second].IsFlipped = false
		e.pending = nil
		e.combo = 1
	})
}

// redeal replaces a cleared board. A session that expired during the grace
// period stays on its finished board.
func (e *Engine) redeal() {
	e.clearing = false
	if e.over {
		return
	}

	e.epoch++
	e.level++
	e.cards = GenerateDeck(e.src, e.rules.Catalog)
	e.pending = nil
	e.remaining += e.rules.ClearBonus

	e.emit(event.Event{Kind: event.LevelCleared})
}

// expire ends the session on timer expiry
func (e *Engine) expire() {
	e.remaining = 0
	e.over = true
	e.playing = false
	if e.score > e.bestScore {
		e.bestScore = e.score
	}

	e.emit(event.Event{Kind: event.SessionExpired})
}

// schedule queues fn to run after d of engine time, bound to the current epoch
func (e *Engine) schedule(d time.Duration, fn func()) {
	e.scheduled = append(e.scheduled, delayed{remaining: d, epoch: e.epoch, apply: fn})
}

// runScheduled advances queued actions and applies those that fell due.
// Actions from an earlier epoch are discarded unapplied.
func (e *Engine) runScheduled(delta time.Duration) {
	if len(e.scheduled) == 0 {
		return
	}

	var due []delayed
	kept := e.scheduled[:0]
	for _, d := range e.scheduled {
		d.remaining -= delta
		switch {
		case d.epoch != e.epoch:
			// stale
		case d.remaining <= 0:
			due = append(due, d)
		default:
			kept = append(kept, d)
		}
	}
	e.scheduled = kept

	for _, d := range due {
		if d.epoch == e.epoch {
			d.apply()
		}
	}
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
	case e.clearing:
		return LevelComplete
	default:
		return Playing
	}
}

// Score returns the current score
func (e *Engine) Score() int { return e.score }

// Combo returns the current multiplier
func (e *Engine) Combo() int { return e.combo }

// BestScore returns the best score recorded by this engine
func (e *Engine) BestScore() int { return e.bestScore }

// TimeRemaining returns the countdown value
func (e *Engine) TimeRemaining() time.Duration { return e.remaining }

// IsPlaying reports whether the countdown is running
func (e *Engine) IsPlaying() bool { return e.playing }

// HasScheduled reports whether reveal or redeal actions are still queued
func (e *Engine) HasScheduled() bool { return len(e.scheduled) > 0 }

// IsOver reports whether the session expired
func (e *Engine) IsOver() bool { return e.over }

// Rules returns the engine tuning
func (e *Engine) Rules() Rules { return e.rules }

// Cards returns a copy of the deck
func (e *Engine) Cards() []Card {
	out := make([]Card, len(e.cards))
	copy(out, e.cards)
	return out
}

// Pending returns a copy of the pending selection
func (e *Engine) Pending() []int {
	out := make([]int, len(e.pending))
	copy(out, e.pending)
	return out
}

// State returns a snapshot for rendering
func (e *Engine) State() *State {
	return &State{
		Phase:         e.Phase(),
		Score:         e.score,
		Combo:         e.combo,
		TimeRemaining: e.remaining.Seconds(),
		IsPlaying:     e.playing,
		IsOver:        e.over,
		BestScore:     e.bestScore,
		NewRecord:     e.over && e.score > 0 && e.score >= e.bestScore,
		Level:         e.level,
		Cards:         e.Cards(),
		Pending:       e.Pending(),
	}
}
