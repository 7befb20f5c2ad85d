package session

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/pkg/uid"
)

// Listener receives a snapshot after every mutation.
type Listener func(domain.Snapshot)

// Machine owns a single game session. Every mutation goes through one of its
// actions; readers get copies.
type Machine struct {
	rows int
	cols int

	id              string
	generation      uint64
	board           domain.Board
	state           domain.GameState
	startingPlayer  domain.Player
	winningSequence []domain.Move

	listeners map[int]Listener
	nextID    int

	mu sync.RWMutex
}

func New(rows, cols int) (*Machine, error) {
	board, err := domain.NewBoard(rows, cols)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		rows:       rows,
		cols:       cols,
		id:         uid.GenerateSessionID(),
		generation: 1,
		board:      board,
		state:      domain.StateContinue,
		listeners:  make(map[int]Listener),
	}
	log.Debug().Str("component", "session").Str("session", m.id).
		Int("rows", rows).Int("cols", cols).Msg("session created")
	return m, nil
}

// Subscribe registers fn and returns a function that removes it.
func (m *Machine) Subscribe(fn Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners, id)
		m.mu.Unlock()
	}
}

// SetStartingPlayer moves the session from pending to active.
func (m *Machine) SetStartingPlayer(player domain.Player) error {
	if !player.IsValid() {
		return domain.ErrInvalidPlayer
	}

	m.mu.Lock()
	if m.startingPlayer != domain.PlayerUnset {
		m.mu.Unlock()
		return domain.ErrAlreadyStarted
	}
	m.startingPlayer = player
	snap := m.snapshotLocked()
	m.mu.Unlock()

	log.Info().Str("component", "session").Str("session", snap.SessionID).
		Str("starting_player", string(player)).Msg("session started")
	m.notify(snap)
	return nil
}

// ApplyMove places piece at move on a fresh copy of the board. It does not
// look for a winner; the verdict always comes from the solver.
func (m *Machine) ApplyMove(move domain.Move, piece domain.Piece) error {
	m.mu.Lock()
	return m.applyLocked(move, piece)
}

// ApplyMoveFor is ApplyMove guarded by the generation the caller captured
// before suspending.
func (m *Machine) ApplyMoveFor(generation uint64, move domain.Move, piece domain.Piece) error {
	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		return domain.ErrStaleSession
	}
	return m.applyLocked(move, piece)
}

// applyLocked must be called with mu held and releases it.
func (m *Machine) applyLocked(move domain.Move, piece domain.Piece) error {
	if err := m.checkMoveLocked(move, piece); err != nil {
		m.mu.Unlock()
		if err == errAlreadyApplied {
			return nil
		}
		return err
	}

	newBoard, err := domain.Place(m.board, move, piece)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.board = newBoard
	snap := m.snapshotLocked()
	m.mu.Unlock()

	log.Debug().Str("component", "session").Str("session", snap.SessionID).
		Int("row", move.Row).Int("col", move.Col).Int("piece", int(piece)).Msg("move applied")
	m.notify(snap)
	return nil
}

const errAlreadyApplied domain.Error = "move already applied"

func (m *Machine) checkMoveLocked(move domain.Move, piece domain.Piece) error {
	if piece != domain.PlayerOne && piece != domain.PlayerTwo {
		return domain.ErrInvalidPlayer
	}
	if m.startingPlayer == domain.PlayerUnset {
		return domain.ErrNotStarted
	}
	if m.state.IsTerminal() {
		return domain.ErrGameOver
	}
	if !m.board.InBounds(move.Row, move.Col) {
		return domain.ErrOutOfBounds
	}

	current := m.board[move.Row][move.Col]
	if current == piece {
		// same assignment twice leaves the session untouched
		return errAlreadyApplied
	}
	if current != domain.Empty {
		return domain.ErrCellOccupied
	}
	return nil
}

// SetGameState records the verdict returned by the solver.
func (m *Machine) SetGameState(state domain.GameState) error {
	m.mu.Lock()
	return m.setVerdictLocked(state, nil, false)
}

// SetWinningSequence retains seq for highlighting until the next Reset.
func (m *Machine) SetWinningSequence(seq []domain.Move) error {
	m.mu.Lock()
	for _, mv := range seq {
		if !m.board.InBounds(mv.Row, mv.Col) {
			m.mu.Unlock()
			return domain.ErrOutOfBounds
		}
	}
	m.winningSequence = copyMoves(seq)
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notify(snap)
	return nil
}

// SetVerdictFor records state and the winning run in one step, unless the
// session was reset since generation was read.
func (m *Machine) SetVerdictFor(generation uint64, state domain.GameState, seq []domain.Move) error {
	m.mu.Lock()
	if generation != m.generation {
		m.mu.Unlock()
		return domain.ErrStaleSession
	}
	return m.setVerdictLocked(state, seq, true)
}

// setVerdictLocked must be called with mu held and releases it.
func (m *Machine) setVerdictLocked(state domain.GameState, seq []domain.Move, withSequence bool) error {
	if !state.IsValid() {
		m.mu.Unlock()
		return domain.ErrInvalidState
	}
	if m.startingPlayer == domain.PlayerUnset {
		m.mu.Unlock()
		return domain.ErrNotStarted
	}
	if m.state.IsTerminal() && m.state != state {
		m.mu.Unlock()
		return domain.ErrGameOver
	}
	if withSequence {
		for _, mv := range seq {
			if !m.board.InBounds(mv.Row, mv.Col) {
				m.mu.Unlock()
				return domain.ErrOutOfBounds
			}
		}
	}

	previous := m.state
	m.state = state
	if withSequence && len(seq) > 0 {
		m.winningSequence = copyMoves(seq)
	}
	snap := m.snapshotLocked()
	m.mu.Unlock()

	if previous != state {
		log.Info().Str("component", "session").Str("session", snap.SessionID).
			Str("state", string(state)).Int("winning_cells", len(snap.WinningSequence)).Msg("game state changed")
	}
	m.notify(snap)
	return nil
}

// Reset discards the session and starts a pending one in its place.
func (m *Machine) Reset() {
	board, _ := domain.NewBoard(m.rows, m.cols)

	m.mu.Lock()
	previousID := m.id
	m.id = uid.GenerateSessionID()
	m.generation++
	m.board = board
	m.state = domain.StateContinue
	m.startingPlayer = domain.PlayerUnset
	m.winningSequence = nil
	snap := m.snapshotLocked()
	m.mu.Unlock()

	log.Info().Str("component", "session").Str("previous", previousID).
		Str("session", snap.SessionID).Uint64("generation", snap.Generation).Msg("session reset")
	m.notify(snap)
}

func (m *Machine) Board() domain.Board {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.board.Clone()
}

func (m *Machine) GameState() domain.GameState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Machine) StartingPlayer() domain.Player {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.startingPlayer
}

func (m *Machine) WinningSequence() []domain.Move {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return copyMoves(m.winningSequence)
}

func (m *Machine) Generation() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation
}

func (m *Machine) ID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.id
}

func (m *Machine) Shape() (rows, cols int) {
	return m.rows, m.cols
}

func (m *Machine) Snapshot() domain.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() domain.Snapshot {
	return domain.Snapshot{
		SessionID:       m.id,
		Generation:      m.generation,
		Rows:            m.rows,
		Columns:         m.cols,
		Board:           m.board.Clone(),
		GameState:       m.state,
		StartingPlayer:  m.startingPlayer,
		WinningSequence: copyMoves(m.winningSequence),
	}
}

func (m *Machine) notify(snap domain.Snapshot) {
	m.mu.RLock()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, fn := range m.listeners {
		listeners = append(listeners, fn)
	}
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func copyMoves(seq []domain.Move) []domain.Move {
	if seq == nil {
		return nil
	}
	out := make([]domain.Move, len(seq))
	copy(out, seq)
	return out
}
