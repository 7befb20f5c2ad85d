package domain

// MoveRequest is sent to the solver for every human move.
type MoveRequest struct {
	Board          Board          `json:"board"`
	StartingPlayer Player         `json:"starting_player"`
	PlayerMove     Move           `json:"player_move"`
	Solver         SolverIdentity `json:"solver"`
}

// MoveResponse carries the authoritative verdict and the solver's reply.
type MoveResponse struct {
	State           GameState `json:"state"`
	SolverMove      *Move     `json:"solver_move"`
	WinningSequence []Move    `json:"winning_sequence"`
}

// Envelope wraps every payload returned by the solver API.
type Envelope[T any] struct {
	Data T `json:"data"`
}

type ModelInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// messages exchanged with renderers over the bridge websocket
type ClientMessage struct {
	Type   string          `json:"type"`
	JWT    string          `json:"jwt,omitempty"`
	Column int             `json:"column"`
	Player Player          `json:"player,omitempty"`
	Solver *SolverIdentity `json:"solver,omitempty"`
}

type ServerMessage struct {
	Type      string    `json:"type"`
	Message   string    `json:"message,omitempty"`
	State     *Snapshot `json:"state,omitempty"`
	Connected *bool     `json:"connected,omitempty"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}
