package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/session"
)

var testSolver = domain.SolverIdentity{Type: "heuristic", Name: "minimax"}

type fakeSolver struct {
	mu        sync.Mutex
	move      func(req domain.MoveRequest) (*domain.MoveResponse, error)
	firstMove func(id domain.SolverIdentity) (domain.Move, error)
	requests  []domain.MoveRequest
}

func (f *fakeSolver) Move(ctx context.Context, req domain.MoveRequest) (*domain.MoveResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	fn := f.move
	f.mu.Unlock()
	return fn(req)
}

func (f *fakeSolver) FirstMove(ctx context.Context, id domain.SolverIdentity) (domain.Move, error) {
	return f.firstMove(id)
}

func (f *fakeSolver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func reply(state domain.GameState, solverMove *domain.Move, seq ...domain.Move) func(domain.MoveRequest) (*domain.MoveResponse, error) {
	return func(domain.MoveRequest) (*domain.MoveResponse, error) {
		return &domain.MoveResponse{State: state, SolverMove: solverMove, WinningSequence: seq}, nil
	}
}

func newTestService(t *testing.T, solver *fakeSolver, opts ...Option) *Service {
	t.Helper()
	m, err := session.New(domain.DefaultRows, domain.DefaultColumns)
	if err != nil {
		t.Fatal(err)
	}
	opts = append([]Option{WithPacing(0)}, opts...)
	svc := NewService(m, solver, opts...)
	t.Cleanup(svc.Close)
	return svc
}

// started returns a service whose human player moves first.
func started(t *testing.T, solver *fakeSolver, opts ...Option) *Service {
	t.Helper()
	svc := newTestService(t, solver, opts...)
	if err := svc.SelectSolver(testSolver); err != nil {
		t.Fatal(err)
	}
	if err := svc.Start(context.Background(), domain.PlayerHuman); err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestSubmitHumanMove_ContinueScenario(t *testing.T) {
	solver := &fakeSolver{move: reply(domain.StateContinue, &domain.Move{Row: 5, Col: 2})}
	svc := started(t, solver)

	if err := svc.SubmitHumanMove(context.Background(), 3); err != nil {
		t.Fatalf("SubmitHumanMove: %v", err)
	}

	req := solver.requests[0]
	if req.PlayerMove != (domain.Move{Row: 5, Col: 3}) {
		t.Fatalf("player move = %+v, want {5 3}", req.PlayerMove)
	}
	if req.StartingPlayer != domain.PlayerHuman || req.Solver != testSolver {
		t.Fatalf("request = %+v", req)
	}
	if !domain.IsEmpty(req.Board) {
		t.Fatalf("request board should be the board before the human move")
	}

	snap := svc.Snapshot()
	if domain.CountPieces(snap.Board) != 2 {
		t.Fatalf("pieces = %d, want 2", domain.CountPieces(snap.Board))
	}
	if snap.Board[5][3] != domain.PlayerOne || snap.Board[5][2] != domain.PlayerTwo {
		t.Fatalf("unexpected board %v", snap.Board)
	}
	if snap.GameState != domain.StateContinue || snap.WinningSequence != nil {
		t.Fatalf("state = %s seq = %v", snap.GameState, snap.WinningSequence)
	}
	if snap.Busy {
		t.Fatalf("busy after the turn completed")
	}
}

func TestSubmitHumanMove_HumanPieceVisibleBeforeSolverPiece(t *testing.T) {
	solver := &fakeSolver{move: reply(domain.StateContinue, &domain.Move{Row: 4, Col: 3})}

	var svc *Service
	var atPause domain.Board
	var paused time.Duration
	svc = started(t, solver, WithPacing(75*time.Millisecond), WithSleeper(func(d time.Duration) {
		paused = d
		atPause = svc.Machine().Board()
	}))

	var boards []domain.Board
	svc.Subscribe(func(s domain.Snapshot) { boards = append(boards, s.Board) })

	if err := svc.SubmitHumanMove(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	if paused != 75*time.Millisecond {
		t.Fatalf("paused %v, want 75ms", paused)
	}
	if atPause[5][3] != domain.PlayerOne || atPause[4][3] != domain.Empty {
		t.Fatalf("during the pause the board should only hold the human piece: %v", atPause)
	}

	humanAt, solverAt := -1, -1
	for i, b := range boards {
		if humanAt < 0 && b[5][3] == domain.PlayerOne {
			humanAt = i
		}
		if solverAt < 0 && b[4][3] == domain.PlayerTwo {
			solverAt = i
		}
	}
	if humanAt < 0 || solverAt < 0 || humanAt >= solverAt {
		t.Fatalf("human piece seen at %d, solver piece at %d", humanAt, solverAt)
	}
	for _, b := range boards[humanAt:solverAt] {
		if b[4][3] != domain.Empty {
			t.Fatalf("solver piece visible before the human piece settled")
		}
	}
}

func TestSubmitHumanMove_TransportFailureChangesNothing(t *testing.T) {
	boom := errors.New("connection refused")
	solver := &fakeSolver{move: func(domain.MoveRequest) (*domain.MoveResponse, error) { return nil, boom }}
	svc := started(t, solver)
	before := svc.Snapshot()

	err := svc.SubmitHumanMove(context.Background(), 0)
	if !errors.Is(err, domain.ErrMoveFailed) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrMoveFailed wrapping the cause", err)
	}

	after := svc.Snapshot()
	if !domain.Equal(before.Board, after.Board) {
		t.Fatalf("board changed after a failed move")
	}
	if after.GameState != before.GameState || after.WinningSequence != nil {
		t.Fatalf("state changed after a failed move")
	}
	if after.Busy {
		t.Fatalf("still busy after the failure")
	}
	if after.LastError == "" || svc.LastError() == nil {
		t.Fatalf("failure not surfaced")
	}

	// the user may simply try again
	solver.move = reply(domain.StateContinue, &domain.Move{Row: 5, Col: 1})
	if err := svc.SubmitHumanMove(context.Background(), 0); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if svc.LastError() != nil {
		t.Fatalf("last error not cleared by the next turn")
	}
}

func TestSubmitHumanMove_WinEndsTheSession(t *testing.T) {
	seq := []domain.Move{{Row: 5, Col: 0}, {Row: 5, Col: 1}, {Row: 5, Col: 2}, {Row: 5, Col: 3}}
	solver := &fakeSolver{move: reply(domain.StateWin, nil, seq...)}
	svc := started(t, solver)

	if err := svc.SubmitHumanMove(context.Background(), 3); err != nil {
		t.Fatal(err)
	}

	snap := svc.Snapshot()
	if snap.GameState != domain.StateWin {
		t.Fatalf("state = %s, want WIN", snap.GameState)
	}
	for _, m := range seq {
		if !snap.IsWinningCell(m.Row, m.Col) {
			t.Fatalf("(%d,%d) not flagged", m.Row, m.Col)
		}
	}
	if domain.CountPieces(snap.Board) != 1 {
		t.Fatalf("solver piece applied after a human win")
	}

	err := svc.SubmitHumanMove(context.Background(), 4)
	if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrGameOver) {
		t.Fatalf("err = %v, want ErrMoveNotAllowed/ErrGameOver", err)
	}
	if solver.calls() != 1 {
		t.Fatalf("solver called after the game ended")
	}

	svc.Reset()
	if err := svc.Start(context.Background(), domain.PlayerHuman); err != nil {
		t.Fatal(err)
	}
	solver.move = reply(domain.StateContinue, &domain.Move{Row: 5, Col: 0})
	if err := svc.SubmitHumanMove(context.Background(), 4); err != nil {
		t.Fatalf("after reset: %v", err)
	}
}

func TestSubmitHumanMove_LoseAppliesSolverMoveAndSequence(t *testing.T) {
	seq := []domain.Move{{Row: 5, Col: 6}, {Row: 4, Col: 6}, {Row: 3, Col: 6}, {Row: 2, Col: 6}}
	solver := &fakeSolver{move: reply(domain.StateLose, &domain.Move{Row: 5, Col: 6}, seq...)}
	svc := started(t, solver)

	if err := svc.SubmitHumanMove(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	snap := svc.Snapshot()
	if snap.GameState != domain.StateLose || len(snap.WinningSequence) != 4 {
		t.Fatalf("state = %s seq = %v", snap.GameState, snap.WinningSequence)
	}
	if snap.Board[5][6] != domain.PlayerTwo {
		t.Fatalf("solver move missing")
	}
}

func TestSubmitHumanMove_Preconditions(t *testing.T) {
	solver := &fakeSolver{move: reply(domain.StateContinue, &domain.Move{Row: 5, Col: 0})}

	t.Run("no solver", func(t *testing.T) {
		svc := newTestService(t, solver)
		svc.SetStartingPlayer(domain.PlayerHuman)
		err := svc.SubmitHumanMove(context.Background(), 0)
		if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrSolverUnresolved) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("pending", func(t *testing.T) {
		svc := newTestService(t, solver)
		svc.SelectSolver(testSolver)
		err := svc.SubmitHumanMove(context.Background(), 0)
		if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrNotStarted) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("out of range", func(t *testing.T) {
		svc := started(t, solver)
		err := svc.SubmitHumanMove(context.Background(), domain.DefaultColumns)
		if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrOutOfBounds) {
			t.Fatalf("err = %v", err)
		}
	})

	t.Run("full column", func(t *testing.T) {
		svc := started(t, solver)
		for row := 0; row < domain.DefaultRows; row++ {
			if err := svc.Machine().ApplyMove(domain.Move{Row: row, Col: 1}, domain.PlayerTwo); err != nil {
				t.Fatal(err)
			}
		}
		err := svc.SubmitHumanMove(context.Background(), 1)
		if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrColumnFull) {
			t.Fatalf("err = %v", err)
		}
	})

	if solver.calls() != 0 {
		t.Fatalf("solver called %d times for rejected moves", solver.calls())
	}
}

func TestSubmitHumanMove_MalformedResponsesChangeNothing(t *testing.T) {
	cases := []struct {
		name string
		resp *domain.MoveResponse
	}{
		{"nil", nil},
		{"unknown state", &domain.MoveResponse{State: "MAYBE", SolverMove: &domain.Move{Row: 5, Col: 1}}},
		{"continue without move", &domain.MoveResponse{State: domain.StateContinue}},
		{"lose without move", &domain.MoveResponse{State: domain.StateLose}},
		{"win with move", &domain.MoveResponse{State: domain.StateWin, SolverMove: &domain.Move{Row: 5, Col: 1}}},
		{"floating move", &domain.MoveResponse{State: domain.StateContinue, SolverMove: &domain.Move{Row: 2, Col: 1}}},
		{"onto the human piece", &domain.MoveResponse{State: domain.StateContinue, SolverMove: &domain.Move{Row: 5, Col: 0}}},
		{"move off the board", &domain.MoveResponse{State: domain.StateContinue, SolverMove: &domain.Move{Row: 5, Col: 9}}},
		{"sequence off the board", &domain.MoveResponse{
			State:           domain.StateLose,
			SolverMove:      &domain.Move{Row: 5, Col: 1},
			WinningSequence: []domain.Move{{Row: 6, Col: 1}},
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := tc.resp
			solver := &fakeSolver{move: func(domain.MoveRequest) (*domain.MoveResponse, error) { return resp, nil }}
			svc := started(t, solver)

			err := svc.SubmitHumanMove(context.Background(), 0)
			if !errors.Is(err, domain.ErrMoveFailed) {
				t.Fatalf("err = %v, want ErrMoveFailed", err)
			}
			snap := svc.Snapshot()
			if !domain.IsEmpty(snap.Board) || snap.GameState != domain.StateContinue || snap.WinningSequence != nil {
				t.Fatalf("malformed response changed the session: %+v", snap)
			}
		})
	}
}

func TestSubmitHumanMove_SequenceIgnoredWhileContinuing(t *testing.T) {
	solver := &fakeSolver{move: reply(domain.StateContinue, &domain.Move{Row: 5, Col: 1}, domain.Move{Row: 5, Col: 0})}
	svc := started(t, solver)

	if err := svc.SubmitHumanMove(context.Background(), 0); err != nil {
		t.Fatal(err)
	}
	if seq := svc.Snapshot().WinningSequence; seq != nil {
		t.Fatalf("winning sequence = %v, want nil", seq)
	}
}

func TestSubmitHumanMove_BusyAndStaleAfterReset(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	solver := &fakeSolver{move: func(domain.MoveRequest) (*domain.MoveResponse, error) {
		close(entered)
		<-release
		return &domain.MoveResponse{State: domain.StateContinue, SolverMove: &domain.Move{Row: 5, Col: 1}}, nil
	}}
	svc := started(t, solver)

	result := make(chan error, 1)
	go func() { result <- svc.SubmitHumanMove(context.Background(), 0) }()
	<-entered

	if !svc.Busy() || !svc.Snapshot().Busy {
		t.Fatalf("service not busy while the solver thinks")
	}
	if svc.Snapshot().CanDrop(2) {
		t.Fatalf("renderers should disable input while busy")
	}
	err := svc.SubmitHumanMove(context.Background(), 2)
	if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("concurrent move err = %v, want ErrBusy", err)
	}

	svc.Reset()
	if svc.Busy() {
		t.Fatalf("reset session inherited the busy flag")
	}
	close(release)

	if err := <-result; !errors.Is(err, ErrStaleResponse) {
		t.Fatalf("err = %v, want ErrStaleResponse", err)
	}
	snap := svc.Snapshot()
	if !domain.IsEmpty(snap.Board) || !snap.IsPending() {
		t.Fatalf("stale response leaked into the new session: %+v", snap)
	}
	if snap.LastError != "" {
		t.Fatalf("stale response reported as an error: %s", snap.LastError)
	}
}

func TestStart_CPURequestsOpeningMove(t *testing.T) {
	var asked domain.SolverIdentity
	solver := &fakeSolver{firstMove: func(id domain.SolverIdentity) (domain.Move, error) {
		asked = id
		return domain.Move{Row: 5, Col: 3}, nil
	}}
	svc := newTestService(t, solver)
	svc.SelectSolver(testSolver)

	if err := svc.Start(context.Background(), domain.PlayerCPU); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if asked != testSolver {
		t.Fatalf("asked %v for the opening move", asked)
	}

	snap := svc.Snapshot()
	if domain.CountPieces(snap.Board) != 1 || snap.Board[5][3] != domain.PlayerTwo {
		t.Fatalf("board = %v, want one solver piece at (5,3)", snap.Board)
	}
	if solver.calls() != 0 {
		t.Fatalf("a human move was submitted")
	}
	if snap.StartingPlayer != domain.PlayerCPU || snap.Busy {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestStart_CPUWithoutSolverIsRejected(t *testing.T) {
	svc := newTestService(t, &fakeSolver{})
	err := svc.Start(context.Background(), domain.PlayerCPU)
	if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrSolverUnresolved) {
		t.Fatalf("err = %v", err)
	}
	if !svc.Snapshot().IsPending() {
		t.Fatalf("session left pending state")
	}
}

func TestRequestOpeningMove_Failures(t *testing.T) {
	t.Run("transport", func(t *testing.T) {
		solver := &fakeSolver{firstMove: func(domain.SolverIdentity) (domain.Move, error) {
			return domain.Move{}, errors.New("timeout")
		}}
		svc := newTestService(t, solver)
		svc.SelectSolver(testSolver)

		err := svc.Start(context.Background(), domain.PlayerCPU)
		if !errors.Is(err, domain.ErrMoveFailed) {
			t.Fatalf("err = %v, want ErrMoveFailed", err)
		}
		if !domain.IsEmpty(svc.Snapshot().Board) {
			t.Fatalf("board changed")
		}

		solver.firstMove = func(domain.SolverIdentity) (domain.Move, error) { return domain.Move{Row: 5, Col: 0}, nil }
		if err := svc.RequestOpeningMove(context.Background(), testSolver); err != nil {
			t.Fatalf("retry: %v", err)
		}
		if domain.CountPieces(svc.Snapshot().Board) != 1 {
			t.Fatalf("retry did not apply the opening move")
		}
	})

	t.Run("illegal cell", func(t *testing.T) {
		solver := &fakeSolver{firstMove: func(domain.SolverIdentity) (domain.Move, error) {
			return domain.Move{Row: 0, Col: 3}, nil
		}}
		svc := newTestService(t, solver)
		svc.SelectSolver(testSolver)

		if err := svc.Start(context.Background(), domain.PlayerCPU); !errors.Is(err, domain.ErrMoveFailed) {
			t.Fatalf("err = %v, want ErrMoveFailed", err)
		}
		if !domain.IsEmpty(svc.Snapshot().Board) {
			t.Fatalf("floating opening move applied")
		}
	})

	t.Run("human starts", func(t *testing.T) {
		svc := started(t, &fakeSolver{})
		err := svc.RequestOpeningMove(context.Background(), testSolver)
		if !errors.Is(err, domain.ErrMoveNotAllowed) {
			t.Fatalf("err = %v, want ErrMoveNotAllowed", err)
		}
	})
}

func TestSelectSolver_RequiresTypeAndName(t *testing.T) {
	svc := newTestService(t, &fakeSolver{})
	if err := svc.SelectSolver(domain.SolverIdentity{Type: "heuristic"}); !errors.Is(err, domain.ErrSolverUnresolved) {
		t.Fatalf("err = %v, want ErrSolverUnresolved", err)
	}
	if _, ok := svc.Solver(); ok {
		t.Fatalf("incomplete identity was stored")
	}
	if err := svc.SelectSolver(testSolver); err != nil {
		t.Fatal(err)
	}
	if got := svc.Snapshot().Solver; got == nil || *got != testSolver {
		t.Fatalf("snapshot solver = %v", got)
	}
}

func TestReset_Idempotent(t *testing.T) {
	solver := &fakeSolver{move: reply(domain.StateContinue, &domain.Move{Row: 5, Col: 1})}
	svc := started(t, solver)
	svc.SubmitHumanMove(context.Background(), 0)

	svc.Reset()
	once := svc.Snapshot()
	svc.Reset()
	twice := svc.Snapshot()

	if !domain.Equal(once.Board, twice.Board) || once.GameState != twice.GameState ||
		once.StartingPlayer != twice.StartingPlayer || twice.WinningSequence != nil {
		t.Fatalf("second reset changed observable state")
	}
	if !domain.IsEmpty(twice.Board) || !twice.IsPending() || twice.GameState != domain.StateContinue {
		t.Fatalf("reset state = %+v", twice)
	}
}

func TestSubmitHumanMove_RejectedWhileSolverToMove(t *testing.T) {
	solver := &fakeSolver{
		move: reply(domain.StateContinue, &domain.Move{Row: 4, Col: 3}),
		firstMove: func(domain.SolverIdentity) (domain.Move, error) {
			return domain.Move{}, errors.New("solver unavailable")
		},
	}
	svc := newTestService(t, solver)
	svc.SelectSolver(testSolver)

	if err := svc.Start(context.Background(), domain.PlayerCPU); !errors.Is(err, domain.ErrMoveFailed) {
		t.Fatalf("Start err = %v, want ErrMoveFailed", err)
	}

	err := svc.SubmitHumanMove(context.Background(), 3)
	if !errors.Is(err, domain.ErrMoveNotAllowed) || !errors.Is(err, domain.ErrSolverToMove) {
		t.Fatalf("err = %v, want ErrSolverToMove", err)
	}
	if solver.calls() != 0 {
		t.Fatalf("a move request was sent before the opening move")
	}
	if !domain.IsEmpty(svc.Snapshot().Board) {
		t.Fatalf("board changed: %v", svc.Snapshot().Board)
	}

	solver.firstMove = func(domain.SolverIdentity) (domain.Move, error) { return domain.Move{Row: 5, Col: 3}, nil }
	if err := svc.RequestOpeningMove(context.Background(), testSolver); err != nil {
		t.Fatalf("opening move: %v", err)
	}
	if err := svc.SubmitHumanMove(context.Background(), 3); err != nil {
		t.Fatalf("human reply after the opening move: %v", err)
	}
	board := svc.Snapshot().Board
	if board[5][3] != domain.PlayerTwo || board[4][3] != domain.PlayerOne {
		t.Fatalf("board = %v", board)
	}
}

func TestValidateResponse_LeavesResponseUntouched(t *testing.T) {
	board, _ := domain.NewBoard(domain.DefaultRows, domain.DefaultColumns)
	req := domain.MoveRequest{Board: board, PlayerMove: domain.Move{Row: 5, Col: 0}}
	seq := []domain.Move{{Row: 5, Col: 0}, {Row: 5, Col: 1}}
	resp := &domain.MoveResponse{
		State:           domain.StateContinue,
		SolverMove:      &domain.Move{Row: 5, Col: 1},
		WinningSequence: seq,
	}
	if err := validateResponse(req, resp); err != nil {
		t.Fatalf("validateResponse: %v", err)
	}
	if len(resp.WinningSequence) != len(seq) {
		t.Fatalf("winning sequence rewritten to %v", resp.WinningSequence)
	}
	if winningSequence(resp) != nil {
		t.Fatalf("sequence kept for a game still in progress")
	}
}
