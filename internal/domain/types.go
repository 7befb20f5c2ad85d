package domain

// Piece is the occupancy of a single cell.
type Piece int

const (
	Empty     Piece = 0
	PlayerOne Piece = 1 // human
	PlayerTwo Piece = 2 // solver
)

const (
	DefaultRows    = 6
	DefaultColumns = 7
)

// GameState is the verdict returned by the solver after every turn.
type GameState string

const (
	StateContinue GameState = "CONTINUE"
	StateWin      GameState = "WIN"
	StateLose     GameState = "LOSE"
	StateTie      GameState = "TIE"
)

func (s GameState) IsValid() bool {
	switch s {
	case StateContinue, StateWin, StateLose, StateTie:
		return true
	}
	return false
}

func (s GameState) IsTerminal() bool {
	return s == StateWin || s == StateLose || s == StateTie
}

// Player picks who moves first. The zero value means no choice yet.
type Player string

const (
	PlayerUnset Player = ""
	PlayerHuman Player = "human"
	PlayerCPU   Player = "cpu"
)

func (p Player) IsValid() bool {
	return p == PlayerHuman || p == PlayerCPU
}

// Move identifies the cell that a piece landed in.
type Move struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// SolverIdentity selects the remote opponent. Type is either "heuristic" or
// the name of a model provider; Name is the heuristic or the model.
type SolverIdentity struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

func (s SolverIdentity) IsComplete() bool {
	return s.Type != "" && s.Name != ""
}

func (s SolverIdentity) String() string {
	return s.Type + "/" + s.Name
}

// basic errors that can occur
type Error string

func (e Error) Error() string {
	return string(e)
}

const (
	ErrInvalidShape     Error = "board dimensions must be positive"
	ErrOutOfBounds      Error = "position is outside the board"
	ErrColumnFull       Error = "column is full"
	ErrCellOccupied     Error = "cell is already occupied"
	ErrGameOver         Error = "game is over"
	ErrNotStarted       Error = "starting player not chosen"
	ErrAlreadyStarted   Error = "starting player already chosen"
	ErrInvalidPlayer    Error = "invalid player"
	ErrInvalidState     Error = "invalid game state"
	ErrStaleSession     Error = "session was reset"
	ErrMoveNotAllowed   Error = "move not allowed"
	ErrMoveFailed       Error = "move failed"
	ErrSolverUnresolved Error = "solver type and name are required"
	ErrBusy             Error = "a move is already in flight"
	ErrSolverToMove     Error = "waiting for the solver to move"
)
