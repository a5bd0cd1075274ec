package gun

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errMissing = errors.New("missing")

type mapSlot map[string][]byte

func (m mapSlot) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := m[key]
	if !ok {
		return nil, errMissing
	}

	return v, nil
}

func (m mapSlot) Put(_ context.Context, key string, value []byte) error {
	m[key] = value

	return nil
}

func sampleState() State {
	r := &fixedRand{values: []int{2, 5, 0}}

	s := NewState()
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		s = AddPlayer(s, name, r)
	}
	s = StartGame(s)
	s, _ = FireChamber(s, 0)
	s, _ = FireChamber(s, 1)
	s, _ = EliminatePlayer(s, 2)

	return s
}

func TestEncodeLayout(t *testing.T) {
	s := NewState()
	s.Players = []Player{playerWith(0, [Chambers]int{0, 0, 1, 0, 0, 0}, 1)}
	s.Players[0].FiredChambers[0] = true

	data, err := Encode(s)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"players": [{
			"id": 0,
			"name": "Player 1",
			"isEliminated": false,
			"chambers": [0,0,1,0,0,0],
			"firedChambers": [true,false,false,false,false,false],
			"currentChamberIndex": 1
		}],
		"currentPlayerIndex": 0,
		"gameStarted": false
	}`, string(data))
}

func TestEncodeEmptyRoster(t *testing.T) {
	data, err := Encode(State{})
	require.NoError(t, err)

	assert.JSONEq(t, `{"players":[],"currentPlayerIndex":0,"gameStarted":false}`, string(data))
}

func TestRoundTrip(t *testing.T) {
	for _, s := range []State{NewState(), sampleState(), RestartGame(sampleState())} {
		data, err := Encode(s)
		require.NoError(t, err)

		got, err := Decode(data)
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	player := `{"id":0,"name":"A","isEliminated":false,"chambers":[0,1,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}`

	tests := []struct {
		name string
		data string
	}{
		{"not json", `not json`},
		{"not an object", `[1,2,3]`},
		{"empty object", `{}`},
		{"missing players", `{"currentPlayerIndex":0,"gameStarted":false}`},
		{"null players", `{"players":null,"currentPlayerIndex":0,"gameStarted":false}`},
		{"missing index", `{"players":[],"gameStarted":false}`},
		{"missing started", `{"players":[],"currentPlayerIndex":0}`},
		{"index without players", `{"players":[],"currentPlayerIndex":1,"gameStarted":false}`},
		{"index out of range", `{"players":[` + player + `],"currentPlayerIndex":1,"gameStarted":true}`},
		{"short chambers", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[0,1],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"two rounds", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[1,1,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"no round", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[0,0,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"bad chamber value", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[2,0,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"long fired", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[0,1,0,0,0,0],"firedChambers":[false,false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"chamber index", `{"players":[{"id":0,"name":"A","isEliminated":false,"chambers":[0,1,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":6}],"currentPlayerIndex":0,"gameStarted":true}`},
		{"missing name", `{"players":[{"id":0,"isEliminated":false,"chambers":[0,1,0,0,0,0],"firedChambers":[false,false,false,false,false,false],"currentChamberIndex":0}],"currentPlayerIndex":0,"gameStarted":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalidState)
		})
	}
}

func TestLoadFallsBackToDefault(t *testing.T) {
	ctx := context.Background()

	s, err := Load(ctx, mapSlot{})
	assert.ErrorIs(t, err, errMissing)
	assert.Equal(t, NewState(), s)

	s, err = Load(ctx, mapSlot{Key: []byte(`{"players":"nope"}`)})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, NewState(), s)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	slot := mapSlot{}
	want := sampleState()

	require.NoError(t, Save(ctx, slot, want))
	assert.Contains(t, slot, Key)

	got, err := Load(ctx, slot)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
