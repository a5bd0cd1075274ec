package gun

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
)

// Hook is called with a snapshot after every mutation the store applies.
type Hook func(State)

// Store owns one table. It is not safe for concurrent use; the owner serializes calls.
type Store struct {
	state State
	rand  Rand
	hook  Hook
}

// Option configures a Store.
type Option func(*Store)

// WithRand sets the source used to load revolvers.
func WithRand(r Rand) Option {
	return func(s *Store) {
		s.rand = r
	}
}

// WithHook registers the post-mutation hook, typically a persistence call.
func WithHook(h Hook) Option {
	return func(s *Store) {
		s.hook = h
	}
}

// NewStore returns a store starting from initial.
func NewStore(initial State, opts ...Option) *Store {
	if initial.Players == nil {
		initial.Players = []Player{}
	}

	s := &Store{
		state: initial.Clone(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.rand == nil {
		s.rand = NewRand()
	}

	return s
}

// NewRand returns a PCG source seeded from crypto/rand.
func NewRand() *rand.Rand {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("crypto/rand failure: " + err.Error())
	}

	return rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
}

func (s *Store) commit(next State) {
	s.state = next

	if s.hook != nil {
		s.hook(s.state.Clone())
	}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	return s.state.Clone()
}

// SetPlayers replaces the roster.
func (s *Store) SetPlayers(players []Player) {
	s.commit(SetPlayers(s.state, players))
}

// AddPlayer seats a new player with a freshly loaded revolver.
func (s *Store) AddPlayer(name string) {
	s.commit(AddPlayer(s.state, name, s.rand))
}

// EliminatePlayer reports whether playerID was found.
func (s *Store) EliminatePlayer(playerID int) bool {
	next, ok := EliminatePlayer(s.state, playerID)
	if !ok {
		return false
	}

	s.commit(next)

	return true
}

// FireChamber reports whether a shot was taken. Unknown or eliminated players are ignored.
func (s *Store) FireChamber(playerID int) bool {
	next, ok := FireChamber(s.state, playerID)
	if !ok {
		return false
	}

	s.commit(next)

	return true
}

// ResetGame reloads every revolver and keeps the roster.
func (s *Store) ResetGame() {
	s.commit(ResetGame(s.state, s.rand))
}

// RestartGame clears the table.
func (s *Store) RestartGame() {
	s.commit(RestartGame(s.state))
}

// StartGame leaves setup.
func (s *Store) StartGame() {
	s.commit(StartGame(s.state))
}

// NextPlayer passes the turn.
func (s *Store) NextPlayer() {
	s.commit(NextPlayer(s.state))
}
