package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/game"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	boardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("27")).Padding(0, 1)
	humanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	solverStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	emptyStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	winStyle     = lipgloss.NewStyle().Background(lipgloss.Color("28")).Bold(true)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Bold(true)
	blockedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

// SnapshotMsg carries a session change into the program.
type SnapshotMsg domain.Snapshot

// ErrMsg reports a command that failed.
type ErrMsg struct{ Err error }

// Model renders one session and turns key presses into service calls.
type Model struct {
	svc     *game.Service
	updates chan domain.Snapshot
	snap    domain.Snapshot
	cursor  int
	status  string

	autoStart domain.Player
}

// New subscribes to svc. The returned cancel function detaches the model.
func New(svc *game.Service) (Model, func()) {
	updates := make(chan domain.Snapshot, 16)
	cancel := svc.Subscribe(forward(updates))

	snap := svc.Snapshot()
	return Model{
		svc:     svc,
		updates: updates,
		snap:    snap,
		cursor:  snap.Columns / 2,
	}, cancel
}

// forward pushes snapshots without ever blocking the session; when the
// program falls behind the oldest queued snapshot is dropped.
func forward(updates chan domain.Snapshot) func(domain.Snapshot) {
	return func(snap domain.Snapshot) {
		for {
			select {
			case updates <- snap:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	}
}

func waitForUpdate(updates chan domain.Snapshot) tea.Cmd {
	return func() tea.Msg {
		return SnapshotMsg(<-updates)
	}
}

// StartWith makes the program pick the starting player as soon as it runs.
func (m Model) StartWith(player domain.Player) Model {
	m.autoStart = player
	return m
}

func (m Model) Init() tea.Cmd {
	if m.autoStart != domain.PlayerUnset {
		return tea.Batch(waitForUpdate(m.updates), m.start(m.autoStart))
	}
	return waitForUpdate(m.updates)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case SnapshotMsg:
		m.snap = domain.Snapshot(msg)
		return m, waitForUpdate(m.updates)
	case ErrMsg:
		m.status = msg.Err.Error()
		return m, nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "left":
		if m.cursor > 0 {
			m.cursor--
		}
	case "right":
		if m.cursor < m.snap.Columns-1 {
			m.cursor++
		}
	case "enter", " ":
		if !m.snap.CanDrop(m.cursor) {
			return m, nil
		}
		m.status = ""
		return m, m.drop(m.cursor)
	case "h":
		if m.snap.IsPending() {
			m.status = ""
			return m, m.start(domain.PlayerHuman)
		}
	case "c":
		if m.snap.IsPending() {
			m.status = ""
			return m, m.start(domain.PlayerCPU)
		}
	case "o":
		if m.snap.Solver != nil && !m.snap.IsPending() && !m.snap.HumanToMove() && !m.snap.Busy {
			m.status = ""
			return m, m.openingMove()
		}
	case "r":
		m.status = ""
		m.svc.Reset()
	}
	return m, nil
}

func (m Model) drop(column int) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		if err := svc.SubmitHumanMove(context.Background(), column); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) start(player domain.Player) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		if err := svc.Start(context.Background(), player); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) openingMove() tea.Cmd {
	svc := m.svc
	identity := *m.snap.Solver
	return func() tea.Msg {
		if err := svc.RequestOpeningMove(context.Background(), identity); err != nil {
			return ErrMsg{Err: err}
		}
		return nil
	}
}

func (m Model) View() string {
	var b strings.Builder

	title := "Connect Four"
	if m.snap.Solver != nil {
		title += " vs " + m.snap.Solver.String()
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	b.WriteString(boardStyle.Render(m.renderBoard()))
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")

	if m.snap.LastError != "" {
		b.WriteString(errorStyle.Render(m.snap.LastError))
		b.WriteString("\n")
	} else if m.status != "" {
		b.WriteString(errorStyle.Render(m.status))
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render("←/→ move • enter drop • h you start • c solver starts • o retry opening • r reset • q quit"))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderBoard() string {
	var b strings.Builder

	for col := 0; col < m.snap.Columns; col++ {
		switch {
		case col != m.cursor:
			b.WriteString("  ")
		case m.snap.CanDrop(col):
			b.WriteString(cursorStyle.Render("▼ "))
		default:
			b.WriteString(blockedStyle.Render("▽ "))
		}
	}
	b.WriteString("\n")

	for row := 0; row < m.snap.Rows; row++ {
		for col := 0; col < m.snap.Columns; col++ {
			b.WriteString(m.renderCell(row, col))
			if col < m.snap.Columns-1 {
				b.WriteString(" ")
			}
		}
		if row < m.snap.Rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func (m Model) renderCell(row, col int) string {
	var cell string
	switch m.snap.Board[row][col] {
	case domain.PlayerOne:
		cell = humanStyle.Render("●")
	case domain.PlayerTwo:
		cell = solverStyle.Render("●")
	default:
		cell = emptyStyle.Render("·")
	}
	if m.snap.IsWinningCell(row, col) {
		return winStyle.Render(cell)
	}
	return cell
}

func (m Model) statusLine() string {
	switch {
	case m.snap.Solver == nil:
		return "No solver selected."
	case m.snap.IsPending():
		return "Who starts? h: you, c: " + m.snap.Solver.Name
	case m.snap.Busy:
		return m.snap.Solver.Name + " is thinking..."
	case m.snap.GameState == domain.StateContinue && !m.snap.HumanToMove():
		return "Waiting for " + m.snap.Solver.Name + " to open. o: ask again"
	}

	switch m.snap.GameState {
	case domain.StateWin:
		return "You win!"
	case domain.StateLose:
		return m.snap.Solver.Name + " wins."
	case domain.StateTie:
		return "Draw."
	default:
		return fmt.Sprintf("Your move (%d pieces on the board)", domain.CountPieces(m.snap.Board))
	}
}
