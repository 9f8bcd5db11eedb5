package match

import (
	"fmt"

	"github.com/wricardo/mcp-training/arcade/game/rng"
)

// GenerateDeck deals two face-down cards per catalog symbol in uniformly
// random order
func GenerateDeck(src rng.Source, catalog []Symbol) []Card {
	cards := make([]Card, 0, len(catalog)*2)
	for i, s := range catalog {
		label := s.Label
		if label == "" {
			label = s.Key
		}
		cards = append(cards,
			Card{ID: fmt.Sprintf("pair-%d-a", i), SymbolKey: s.Key, Label: label},
			Card{ID: fmt.Sprintf("pair-%d-b", i), SymbolKey: s.Key, Label: label},
		)
	}

	rng.Shuffle(src, cards)
	return cards
}

// allMatched reports whether every card has been paired
func allMatched(cards []Card) bool {
	for _, c := range cards {
		if !c.IsMatched {
			return false
		}
	}
	return len(cards) > 0
}
