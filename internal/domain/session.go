package domain

// Snapshot is a read-only copy of a session handed to renderers.
type Snapshot struct {
	SessionID       string          `json:"session_id"`
	Generation      uint64          `json:"generation"`
	Rows            int             `json:"rows"`
	Columns         int             `json:"columns"`
	Board           Board           `json:"board"`
	GameState       GameState       `json:"game_state"`
	StartingPlayer  Player          `json:"starting_player,omitempty"`
	WinningSequence []Move          `json:"winning_sequence"`
	Solver          *SolverIdentity `json:"solver,omitempty"`
	Busy            bool            `json:"busy"`
	LastError       string          `json:"last_error,omitempty"`
}

func (s Snapshot) IsPending() bool {
	return s.StartingPlayer == PlayerUnset
}

// HumanToMove reports whether the next piece belongs to the human. Turns
// alternate, so the piece count parity decides it.
func (s Snapshot) HumanToMove() bool {
	if s.IsPending() {
		return false
	}
	even := CountPieces(s.Board)%2 == 0
	return even == (s.StartingPlayer == PlayerHuman)
}

// CanDrop reports whether a renderer should accept a click on column.
func (s Snapshot) CanDrop(column int) bool {
	return !s.Busy &&
		s.HumanToMove() &&
		s.GameState == StateContinue &&
		s.Solver != nil &&
		!IsColumnFull(s.Board, column)
}

func (s Snapshot) IsWinningCell(row, col int) bool {
	return Contains(s.WinningSequence, row, col)
}
