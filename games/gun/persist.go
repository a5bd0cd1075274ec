package gun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Key is the slot a table is saved under.
const Key = "gameState"

// Slot is a single session's key/value storage.
type Slot interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
}

var ErrInvalidState = errors.New("invalid game state")

// Encode serializes s in the flat snapshot format.
func Encode(s State) ([]byte, error) {
	if s.Players == nil {
		s.Players = []Player{}
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode game state: %w", err)
	}

	return data, nil
}

type storedPlayer struct {
	ID                  *int    `json:"id"`
	Name                *string `json:"name"`
	IsEliminated        *bool   `json:"isEliminated"`
	Chambers            []int   `json:"chambers"`
	FiredChambers       []bool  `json:"firedChambers"`
	CurrentChamberIndex *int    `json:"currentChamberIndex"`
}

type storedState struct {
	Players            *[]storedPlayer `json:"players"`
	CurrentPlayerIndex *int            `json:"currentPlayerIndex"`
	GameStarted        *bool           `json:"gameStarted"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidState, fmt.Sprintf(format, args...))
}

// Decode parses a snapshot, rejecting anything that does not have the exact saved shape.
func Decode(data []byte) (State, error) {
	var raw storedState
	if err := json.Unmarshal(data, &raw); err != nil {
		return State{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	switch {
	case raw.Players == nil:
		return State{}, invalid("missing players")
	case raw.CurrentPlayerIndex == nil:
		return State{}, invalid("missing currentPlayerIndex")
	case raw.GameStarted == nil:
		return State{}, invalid("missing gameStarted")
	}

	s := State{
		Players:            make([]Player, 0, len(*raw.Players)),
		CurrentPlayerIndex: *raw.CurrentPlayerIndex,
		GameStarted:        *raw.GameStarted,
	}

	for i, rp := range *raw.Players {
		p, err := rp.player()
		if err != nil {
			return State{}, fmt.Errorf("player %d: %w", i, err)
		}
		s.Players = append(s.Players, p)
	}

	if len(s.Players) == 0 && s.CurrentPlayerIndex != 0 {
		return State{}, invalid("currentPlayerIndex %d with no players", s.CurrentPlayerIndex)
	}
	if len(s.Players) > 0 && (s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= len(s.Players)) {
		return State{}, invalid("currentPlayerIndex %d out of range", s.CurrentPlayerIndex)
	}

	return s, nil
}

func (rp storedPlayer) player() (Player, error) {
	switch {
	case rp.ID == nil:
		return Player{}, invalid("missing id")
	case rp.Name == nil:
		return Player{}, invalid("missing name")
	case rp.IsEliminated == nil:
		return Player{}, invalid("missing isEliminated")
	case rp.CurrentChamberIndex == nil:
		return Player{}, invalid("missing currentChamberIndex")
	case len(rp.Chambers) != Chambers:
		return Player{}, invalid("want %d chambers, got %d", Chambers, len(rp.Chambers))
	case len(rp.FiredChambers) != Chambers:
		return Player{}, invalid("want %d fired chambers, got %d", Chambers, len(rp.FiredChambers))
	case *rp.CurrentChamberIndex < 0 || *rp.CurrentChamberIndex >= Chambers:
		return Player{}, invalid("currentChamberIndex %d out of range", *rp.CurrentChamberIndex)
	}

	p := Player{
		ID:                  *rp.ID,
		Name:                *rp.Name,
		IsEliminated:        *rp.IsEliminated,
		CurrentChamberIndex: *rp.CurrentChamberIndex,
	}

	loaded := 0
	for i, c := range rp.Chambers {
		switch c {
		case chamberLoaded:
			loaded++
		case chamberEmpty:
		default:
			return Player{}, invalid("chamber %d holds %d", i, c)
		}
		p.Chambers[i] = c
	}
	if loaded != 1 {
		return Player{}, invalid("want 1 loaded chamber, got %d", loaded)
	}

	copy(p.FiredChambers[:], rp.FiredChambers)

	return p, nil
}

// Load restores the table saved in slot. When nothing usable is stored it returns
// the empty table together with the reason, so the caller can decide whether to log it.
func Load(ctx context.Context, slot Slot) (State, error) {
	data, err := slot.Get(ctx, Key)
	if err != nil {
		return NewState(), err
	}

	s, err := Decode(data)
	if err != nil {
		return NewState(), err
	}

	return s, nil
}

// Save writes s to slot.
func Save(ctx context.Context, slot Slot, s State) error {
	data, err := Encode(s)
	if err != nil {
		return err
	}

	if err := slot.Put(ctx, Key, data); err != nil {
		return fmt.Errorf("save game state: %w", err)
	}

	return nil
}
