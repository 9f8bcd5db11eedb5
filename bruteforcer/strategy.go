package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wricardo/mcp-training/arcade/game/match"
	"github.com/wricardo/mcp-training/arcade/game/routing"
	"github.com/wricardo/mcp-training/arcade/game/service"
)

// maxWaits bounds polling while the board is locked
const maxWaits = 1000

// MatchMemory remembers the symbols of cards that were seen face up. It only
// ever looks at flipped cards, like a player would.
type MatchMemory struct {
	level int
	known map[int]string // card index -> symbol key
}

func NewMatchMemory() *MatchMemory {
	return &MatchMemory{known: make(map[int]string)}
}

// Observe records the face-up cards of st and forgets matched ones. A new
// board clears the memory.
func (m *MatchMemory) Observe(st *match.State) {
	if st.Level != m.level {
		m.level = st.Level
		m.known = make(map[int]string)
	}
	for i, c := range st.Cards {
		switch {
		case c.IsMatched:
			delete(m.known, i)
		case c.IsFlipped:
			m.known[i] = c.SymbolKey
		}
	}
}

// Next picks the card to flip. ok is false when nothing can be selected.
func (m *MatchMemory) Next(st *match.State) (index int, ok bool) {
	selectable := func(i int) bool {
		c := st.Cards[i]
		return !c.IsFlipped && !c.IsMatched
	}
	unseen := func() (int, bool) {
		for i := range st.Cards {
			if _, seen := m.known[i]; !seen && selectable(i) {
				return i, true
			}
		}
		for i := range st.Cards {
			if selectable(i) {
				return i, true
			}
		}
		return 0, false
	}

	switch len(st.Pending) {
	case 0:
		byKey := make(map[string]int)
		for i := range st.Cards {
			key, seen := m.known[i]
			if !seen || !selectable(i) {
				continue
			}
			if _, dup := byKey[key]; dup {
				return byKey[key], true
			}
			byKey[key] = i
		}
		return unseen()
	case 1:
		key := m.known[st.Pending[0]]
		for i := range st.Cards {
			if i != st.Pending[0] && selectable(i) && m.known[i] == key {
				return i, true
			}
		}
		return unseen()
	default:
		return 0, false
	}
}

// Bot plays one session through a Client
type Bot struct {
	client   *Client
	tick     time.Duration // manual clock step while waiting, 0 waits on the server clock
	delay    time.Duration
	maxMoves int
}

// Play starts (or restarts) the session and plays it until it is over or
// the move budget runs out. It returns the final score.
func (b *Bot) Play(ctx context.Context, kind service.Kind) (int, error) {
	view, err := b.client.Start(ctx)
	if err != nil {
		return 0, fmt.Errorf("start: %w", err)
	}

	switch kind {
	case service.KindMatch:
		return b.playMatch(ctx, view)
	case service.KindRouting:
		return b.playRouting(ctx, view)
	default:
		return 0, fmt.Errorf("%w: %s", service.ErrUnknownKind, kind)
	}
}

func (b *Bot) playMatch(ctx context.Context, view *service.StateView) (int, error) {
	memory := NewMatchMemory()
	moves, waits := 0, 0

	for moves < b.maxMoves && waits < maxWaits {
		st := view.Match
		if st.IsOver {
			break
		}
		memory.Observe(st)

		index, ok := memory.Next(st)
		if !ok {
			var err error
			if view, err = b.wait(ctx); err != nil {
				return 0, err
			}
			waits++
			continue
		}

		next, err := b.client.Select(ctx, index)
		if err != nil {
			return 0, err
		}
		view = next
		moves++
		log.Debug().Int("index", index).Int("score", view.Match.Score).Int("combo", view.Match.Combo).Msg("select")
	}

	log.Info().Int("moves", moves).Int("score", view.Match.Score).Int("level", view.Match.Level).Bool("over", view.Match.IsOver).Msg("match played")
	return view.Match.Score, nil
}

func (b *Bot) playRouting(ctx context.Context, view *service.StateView) (int, error) {
	moves, waits := 0, 0

	for moves < b.maxMoves && waits < maxWaits {
		st := view.Routing
		if st.IsOver {
			break
		}
		if st.Start == nil || st.End == nil {
			return 0, fmt.Errorf("routing session has no level loaded")
		}

		path := routing.NewLevel(st.GridSize, *st.Start, *st.End, 0, st.Obstacles...).ShortestRoute()
		if path == nil {
			// unsolvable level, only the clock can end it
			log.Debug().Int("level", st.Level).Msg("no route, waiting for expiry")
			var err error
			if view, err = b.wait(ctx); err != nil {
				return 0, err
			}
			waits++
			continue
		}

		result, err := b.client.Route(ctx, path)
		if err != nil {
			return 0, err
		}
		moves++
		view = result.State
		log.Debug().Int("applied", result.Applied).Bool("solved", result.Solved).Int("score", view.Routing.Score).Msg("route")
	}

	log.Info().Int("routes", moves).Int("score", view.Routing.Score).Bool("over", view.Routing.IsOver).Msg("routing played")
	return view.Routing.Score, nil
}

// wait lets engine time pass, either by ticking the session or by polling
// a server that runs its own clock
func (b *Bot) wait(ctx context.Context) (*service.StateView, error) {
	if b.tick > 0 {
		return b.client.Tick(ctx, b.tick)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(b.delay):
	}
	return b.client.State(ctx)
}
