package gun

// State is everything needed to render and resume a table.
type State struct {
	Players            []Player `json:"players"`
	CurrentPlayerIndex int      `json:"currentPlayerIndex"`
	GameStarted        bool     `json:"gameStarted"`
}

// NewState returns the empty, not-started table.
func NewState() State {
	return State{
		Players: []Player{},
	}
}

// Clone returns a copy that shares nothing with s.
func (s State) Clone() State {
	players := make([]Player, len(s.Players))
	copy(players, s.Players)
	s.Players = players

	return s
}

func (s State) indexOf(playerID int) int {
	for i := range s.Players {
		if s.Players[i].ID == playerID {
			return i
		}
	}

	return -1
}

// Player looks up a player by id.
func (s State) Player(playerID int) (Player, bool) {
	i := s.indexOf(playerID)
	if i < 0 {
		return Player{}, false
	}

	return s.Players[i], true
}

// SetPlayers replaces the roster wholesale. The players are taken as given;
// only the turn pointer is moved back to the first seat if the new roster no longer reaches it.
func SetPlayers(s State, players []Player) State {
	s = s.Clone()
	s.Players = make([]Player, len(players))
	copy(s.Players, players)

	if s.CurrentPlayerIndex < 0 || s.CurrentPlayerIndex >= max(len(s.Players), 1) {
		s.CurrentPlayerIndex = 0
	}

	return s
}

// AddPlayer appends a new player whose id is its position in the roster.
// A name that is empty or only whitespace falls back to DefaultName.
func AddPlayer(s State, name string, r Rand) State {
	s = s.Clone()
	s.Players = append(s.Players, newPlayer(len(s.Players), name, r))

	return s
}

// EliminatePlayer takes a player out without firing. ok is false if the id is unknown.
func EliminatePlayer(s State, playerID int) (State, bool) {
	i := s.indexOf(playerID)
	if i < 0 {
		return s, false
	}

	s = s.Clone()
	s.Players[i].IsEliminated = true

	return s, true
}

// FireChamber pulls the trigger for one player and then passes the turn.
// ok is false, and s is returned untouched, if the id is unknown or the player is already out.
func FireChamber(s State, playerID int) (State, bool) {
	i := s.indexOf(playerID)
	if i < 0 || s.Players[i].IsEliminated {
		return s, false
	}

	s = s.Clone()
	s.Players[i] = s.Players[i].fire()

	return NextPlayer(s), true
}

// ResetGame reloads every revolver for a new round, keeping ids, names and order.
func ResetGame(s State, r Rand) State {
	s = s.Clone()
	for i := range s.Players {
		s.Players[i] = s.Players[i].reload(r)
	}
	s.CurrentPlayerIndex = 0

	return s
}

// RestartGame clears the table back to setup.
func RestartGame(State) State {
	return NewState()
}

// StartGame leaves setup.
func StartGame(s State) State {
	s = s.Clone()
	s.GameStarted = true

	return s
}

// NextPlayer moves the turn pointer to the next player still in, wrapping around.
// With nobody left in, the pointer lands on the seat after the current one.
func NextPlayer(s State) State {
	n := len(s.Players)
	if n == 0 {
		return s
	}

	s = s.Clone()

	next := (s.CurrentPlayerIndex + 1) % n
	if next < 0 {
		next += n
	}

	if Remaining(s) > 0 {
		for s.Players[next].IsEliminated {
			next = (next + 1) % n
		}
	}

	s.CurrentPlayerIndex = next

	return s
}

// Remaining counts the players still in.
func Remaining(s State) int {
	n := 0
	for _, p := range s.Players {
		if !p.IsEliminated {
			n++
		}
	}

	return n
}

// Winner returns the last player standing, if there is exactly one.
func Winner(s State) (Player, bool) {
	if len(s.Players) == 0 || Remaining(s) != 1 {
		return Player{}, false
	}

	for _, p := range s.Players {
		if !p.IsEliminated {
			return p, true
		}
	}

	return Player{}, false
}

// NewlyEliminated lists the players that are out in next but were still in during prev.
func NewlyEliminated(prev, next State) []Player {
	var out []Player
	for _, p := range next.Players {
		if !p.IsEliminated {
			continue
		}

		if before, ok := prev.Player(p.ID); ok && before.IsEliminated {
			continue
		}

		out = append(out, p)
	}

	return out
}
