package game

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/session"
)

// DefaultPacing is how long the human piece stays alone on the board before
// the solver's reply is shown.
const DefaultPacing = 50 * time.Millisecond

// ErrStaleResponse is returned when the session was reset while the solver
// was thinking; the response is dropped.
const ErrStaleResponse domain.Error = "response belongs to a reset session"

const (
	errNotSolverOpening domain.Error = "solver does not start this session"
	errBoardNotEmpty    domain.Error = "board already has pieces"
)

// SolverClient is the remote decision maker.
type SolverClient interface {
	Move(ctx context.Context, req domain.MoveRequest) (*domain.MoveResponse, error)
	FirstMove(ctx context.Context, solver domain.SolverIdentity) (domain.Move, error)
}

type Option func(*Service)

func WithPacing(d time.Duration) Option {
	return func(s *Service) { s.pacing = d }
}

// WithSleeper replaces time.Sleep for the pacing step.
func WithSleeper(fn func(time.Duration)) Option {
	return func(s *Service) { s.sleep = fn }
}

// Service sequences one full turn: the human move, the remote call and the
// solver's reply, in that order on the board.
type Service struct {
	machine *session.Machine
	solver  SolverClient
	pacing  time.Duration
	sleep   func(time.Duration)

	identity *domain.SolverIdentity
	busyGen  uint64 // generation of the turn in flight, 0 when idle
	lastErr  error

	listeners   map[int]session.Listener
	nextID      int
	unsubscribe func()

	mu sync.Mutex
}

func NewService(machine *session.Machine, solver SolverClient, opts ...Option) *Service {
	s := &Service{
		machine:   machine,
		solver:    solver,
		pacing:    DefaultPacing,
		sleep:     time.Sleep,
		listeners: make(map[int]session.Listener),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.unsubscribe = machine.Subscribe(func(snap domain.Snapshot) {
		s.emit(s.decorate(snap))
	})
	return s
}

// Close detaches the service from its machine.
func (s *Service) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// SelectSolver records the opponent resolved by the caller (route, flag...).
func (s *Service) SelectSolver(identity domain.SolverIdentity) error {
	if !identity.IsComplete() {
		return domain.ErrSolverUnresolved
	}

	s.mu.Lock()
	s.identity = &identity
	s.mu.Unlock()

	log.Info().Str("component", "game").Str("solver", identity.String()).Msg("solver selected")
	s.emit(s.Snapshot())
	return nil
}

func (s *Service) Solver() (domain.SolverIdentity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return domain.SolverIdentity{}, false
	}
	return *s.identity, true
}

func (s *Service) SetStartingPlayer(player domain.Player) error {
	return s.machine.SetStartingPlayer(player)
}

// Start chooses who moves first. When the solver starts, its opening move is
// requested right away.
func (s *Service) Start(ctx context.Context, player domain.Player) error {
	var identity domain.SolverIdentity
	if player == domain.PlayerCPU {
		id, ok := s.Solver()
		if !ok {
			return notAllowed(domain.ErrSolverUnresolved)
		}
		identity = id
	}

	if err := s.machine.SetStartingPlayer(player); err != nil {
		return err
	}
	if player != domain.PlayerCPU {
		return nil
	}
	return s.RequestOpeningMove(ctx, identity)
}

// SubmitHumanMove plays column for the human and applies the solver's reply.
// Calls that break a precondition return ErrMoveNotAllowed and change
// nothing. Transport failures return ErrMoveFailed and change nothing.
func (s *Service) SubmitHumanMove(ctx context.Context, column int) error {
	req, gen, err := s.beginTurn(column)
	if err != nil {
		log.Debug().Str("component", "game").Int("column", column).Err(err).Msg("move rejected")
		return err
	}
	defer s.endTurn(gen)

	log.Info().Str("component", "game").Str("solver", req.Solver.String()).
		Int("row", req.PlayerMove.Row).Int("col", req.PlayerMove.Col).Msg("submitting move")

	resp, err := s.solver.Move(ctx, req)
	if err == nil {
		err = validateResponse(req, resp)
	}
	if err != nil {
		return s.fail(gen, err)
	}

	return s.applyTurn(gen, req.PlayerMove, resp)
}

func (s *Service) beginTurn(column int) (domain.MoveRequest, uint64, error) {
	s.mu.Lock()
	snap := s.machine.Snapshot()
	var reason error
	switch {
	case s.busyGen == snap.Generation:
		reason = domain.ErrBusy
	case s.identity == nil:
		reason = domain.ErrSolverUnresolved
	case snap.IsPending():
		reason = domain.ErrNotStarted
	case snap.GameState.IsTerminal():
		reason = domain.ErrGameOver
	case !snap.HumanToMove():
		reason = domain.ErrSolverToMove
	}
	if reason != nil {
		s.mu.Unlock()
		return domain.MoveRequest{}, 0, notAllowed(reason)
	}

	move, err := domain.DropTarget(snap.Board, column)
	if err != nil {
		s.mu.Unlock()
		return domain.MoveRequest{}, 0, notAllowed(err)
	}

	s.busyGen = snap.Generation
	s.lastErr = nil
	req := domain.MoveRequest{
		Board:          snap.Board,
		StartingPlayer: snap.StartingPlayer,
		PlayerMove:     move,
		Solver:         *s.identity,
	}
	decorated := s.decorateLocked(snap)
	s.mu.Unlock()

	s.emit(decorated)
	return req, snap.Generation, nil
}

// applyTurn applies the human move, waits, applies the solver move and then
// records the verdict. Each step is dropped if the session was reset.
func (s *Service) applyTurn(gen uint64, human domain.Move, resp *domain.MoveResponse) error {
	if err := s.machine.ApplyMoveFor(gen, human, domain.PlayerOne); err != nil {
		return s.discard(gen, err)
	}

	if resp.SolverMove != nil {
		s.sleep(s.pacing)
		if err := s.machine.ApplyMoveFor(gen, *resp.SolverMove, domain.PlayerTwo); err != nil {
			return s.discard(gen, err)
		}
	}

	if err := s.machine.SetVerdictFor(gen, resp.State, winningSequence(resp)); err != nil {
		return s.discard(gen, err)
	}

	log.Info().Str("component", "game").Str("state", string(resp.State)).
		Bool("solver_moved", resp.SolverMove != nil).Msg("turn applied")
	return nil
}

// RequestOpeningMove fetches and applies the solver's first move of a
// session the solver starts.
func (s *Service) RequestOpeningMove(ctx context.Context, identity domain.SolverIdentity) error {
	if !identity.IsComplete() {
		return notAllowed(domain.ErrSolverUnresolved)
	}

	board, gen, err := s.beginOpening()
	if err != nil {
		log.Debug().Str("component", "game").Err(err).Msg("opening move rejected")
		return err
	}
	defer s.endTurn(gen)

	log.Info().Str("component", "game").Str("solver", identity.String()).Msg("requesting opening move")

	move, err := s.solver.FirstMove(ctx, identity)
	if err != nil {
		return s.fail(gen, err)
	}
	target, err := domain.DropTarget(board, move.Col)
	if err != nil || target != move {
		return s.fail(gen, fmt.Errorf("opening move (%d,%d) is not a legal drop", move.Row, move.Col))
	}

	if err := s.machine.ApplyMoveFor(gen, move, domain.PlayerTwo); err != nil {
		return s.discard(gen, err)
	}
	return nil
}

func (s *Service) beginOpening() (domain.Board, uint64, error) {
	s.mu.Lock()
	snap := s.machine.Snapshot()
	var reason error
	switch {
	case s.busyGen == snap.Generation:
		reason = domain.ErrBusy
	case snap.StartingPlayer != domain.PlayerCPU:
		reason = errNotSolverOpening
	case snap.GameState.IsTerminal():
		reason = domain.ErrGameOver
	case !domain.IsEmpty(snap.Board):
		reason = errBoardNotEmpty
	}
	if reason != nil {
		s.mu.Unlock()
		return nil, 0, notAllowed(reason)
	}

	s.busyGen = snap.Generation
	s.lastErr = nil
	decorated := s.decorateLocked(snap)
	s.mu.Unlock()

	s.emit(decorated)
	return snap.Board, snap.Generation, nil
}

func (s *Service) endTurn(gen uint64) {
	s.mu.Lock()
	if s.busyGen == gen {
		s.busyGen = 0
	}
	s.mu.Unlock()
	s.emit(s.Snapshot())
}

func (s *Service) fail(gen uint64, cause error) error {
	err := fmt.Errorf("%w: %w", domain.ErrMoveFailed, cause)

	s.mu.Lock()
	if gen == s.machine.Generation() {
		s.lastErr = err
	}
	s.mu.Unlock()

	log.Warn().Str("component", "game").Err(cause).Msg("solver request failed, board left untouched")
	return err
}

func (s *Service) discard(gen uint64, err error) error {
	if errors.Is(err, domain.ErrStaleSession) {
		log.Info().Str("component", "game").Uint64("generation", gen).Msg("dropping response for a reset session")
		return ErrStaleResponse
	}
	log.Error().Str("component", "game").Err(err).Msg("failed to apply solver response")
	return fmt.Errorf("failed to apply solver response: %w", err)
}

// Reset restores a pending session. A turn still in flight is dropped when
// its response arrives.
func (s *Service) Reset() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
	s.machine.Reset()
}

func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyGen != 0 && s.busyGen == s.machine.Generation()
}

func (s *Service) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

func (s *Service) Machine() *session.Machine {
	return s.machine
}

func (s *Service) Snapshot() domain.Snapshot {
	return s.decorate(s.machine.Snapshot())
}

// Subscribe registers fn for every machine change and every busy/error change.
func (s *Service) Subscribe(fn session.Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Service) decorate(snap domain.Snapshot) domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decorateLocked(snap)
}

func (s *Service) decorateLocked(snap domain.Snapshot) domain.Snapshot {
	snap.Busy = s.busyGen != 0 && s.busyGen == snap.Generation
	if s.lastErr != nil {
		snap.LastError = s.lastErr.Error()
	}
	if s.identity != nil {
		id := *s.identity
		snap.Solver = &id
	}
	return snap
}

func (s *Service) emit(snap domain.Snapshot) {
	s.mu.Lock()
	listeners := s.listenersLocked()
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Service) listenersLocked() []session.Listener {
	listeners := make([]session.Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func notAllowed(reason error) error {
	return fmt.Errorf("%w: %w", domain.ErrMoveNotAllowed, reason)
}

// validateResponse rejects replies that cannot be applied as a whole, so a
// turn is either applied completely or not at all.
func validateResponse(req domain.MoveRequest, resp *domain.MoveResponse) error {
	if resp == nil {
		return errors.New("empty solver response")
	}
	if !resp.State.IsValid() {
		return fmt.Errorf("unknown game state %q", resp.State)
	}

	switch resp.State {
	case domain.StateContinue, domain.StateLose:
		if resp.SolverMove == nil {
			return fmt.Errorf("state %s requires a solver move", resp.State)
		}
	case domain.StateWin:
		if resp.SolverMove != nil {
			return errors.New("solver moved after the human won")
		}
	}

	afterHuman, err := domain.Place(req.Board, req.PlayerMove, domain.PlayerOne)
	if err != nil {
		return err
	}
	if resp.SolverMove != nil {
		target, err := domain.DropTarget(afterHuman, resp.SolverMove.Col)
		if err != nil || target != *resp.SolverMove {
			return fmt.Errorf("solver move (%d,%d) is not a legal drop", resp.SolverMove.Row, resp.SolverMove.Col)
		}
	}

	for _, m := range winningSequence(resp) {
		if !afterHuman.InBounds(m.Row, m.Col) {
			return fmt.Errorf("winning cell (%d,%d) is outside the board", m.Row, m.Col)
		}
	}
	return nil
}

// winningSequence returns the cells to highlight. Only a finished game with a
// winner has any.
func winningSequence(resp *domain.MoveResponse) []domain.Move {
	if resp.State != domain.StateWin && resp.State != domain.StateLose {
		return nil
	}
	return resp.WinningSequence
}
