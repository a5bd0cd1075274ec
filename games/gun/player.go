package gun

import (
	"fmt"
	"strings"
)

// Chambers is the number of chambers in every revolver.
const Chambers = 6

const (
	chamberEmpty  = 0
	chamberLoaded = 1
)

// Rand is the source used to load revolvers. *rand.Rand from math/rand/v2 satisfies it.
type Rand interface {
	IntN(n int) int
}

// Player is one seat at the table. The JSON field names are the persisted format.
type Player struct {
	ID                  int            `json:"id"`
	Name                string         `json:"name"`
	IsEliminated        bool           `json:"isEliminated"`
	Chambers            [Chambers]int  `json:"chambers"`
	FiredChambers       [Chambers]bool `json:"firedChambers"`
	CurrentChamberIndex int            `json:"currentChamberIndex"`
}

// NewChambers returns a revolver with exactly one loaded chamber, picked uniformly.
func NewChambers(r Rand) [Chambers]int {
	var chambers [Chambers]int
	chambers[r.IntN(Chambers)] = chamberLoaded

	return chambers
}

// DefaultName is the name given to the player created at position n (zero-based).
func DefaultName(n int) string {
	return fmt.Sprintf("Player %d", n+1)
}

func newPlayer(id int, name string, r Rand) Player {
	if strings.TrimSpace(name) == "" {
		name = DefaultName(id)
	}

	return Player{
		ID:       id,
		Name:     name,
		Chambers: NewChambers(r),
	}
}

// Loaded reports whether the chamber under the hammer holds the round.
func (p Player) Loaded() bool {
	return p.Chambers[p.CurrentChamberIndex] == chamberLoaded
}

// Shots counts the chambers this player has already fired.
func (p Player) Shots() int {
	n := 0
	for _, fired := range p.FiredChambers {
		if fired {
			n++
		}
	}

	return n
}

// fire resolves one pull of the trigger. Eliminated players are frozen.
func (p Player) fire() Player {
	if p.IsEliminated {
		return p
	}

	p.FiredChambers[p.CurrentChamberIndex] = true

	if p.Loaded() {
		p.IsEliminated = true

		return p
	}

	p.CurrentChamberIndex = (p.CurrentChamberIndex + 1) % Chambers

	return p
}

// reload keeps the seat and hands the player a freshly loaded revolver.
func (p Player) reload(r Rand) Player {
	return Player{
		ID:       p.ID,
		Name:     p.Name,
		Chambers: NewChambers(r),
	}
}
