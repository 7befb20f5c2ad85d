package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mehdidhammou/ai-connect-four/internal/config"
	"github.com/mehdidhammou/ai-connect-four/internal/domain"
	"github.com/mehdidhammou/ai-connect-four/internal/service/game"
	"github.com/mehdidhammou/ai-connect-four/internal/service/session"
	"github.com/mehdidhammou/ai-connect-four/internal/transport/solver"
	"github.com/mehdidhammou/ai-connect-four/internal/ui/tui"
)

func main() {
	config.LoadEnvFiles()
	cfg := config.LoadConfig()

	solverType := flag.String("type", cfg.DefaultSolver.Type, "Solver type, e.g. heuristic or an LLM provider")
	solverName := flag.String("name", cfg.DefaultSolver.Name, "Solver name within its type")
	start := flag.String("start", "", "Starting player: human or cpu (asked interactively when empty)")
	logPath := flag.String("log-file", "", "Log file (defaults to the XDG state dir)")
	flag.Parse()

	closeLog, err := setupFileLogging(*logPath, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to open log file:", err)
		os.Exit(1)
	}
	defer closeLog()

	identity := domain.SolverIdentity{Type: *solverType, Name: *solverName}
	if !identity.IsComplete() {
		fmt.Fprintln(os.Stderr, "a solver is required: pass -type and -name or set SOLVER_TYPE and SOLVER_NAME")
		os.Exit(2)
	}

	player := domain.Player(*start)
	if player != domain.PlayerUnset && !player.IsValid() {
		fmt.Fprintf(os.Stderr, "invalid -start %q: want human or cpu\n", *start)
		os.Exit(2)
	}

	machine, err := session.New(cfg.BoardRows, cfg.BoardColumns)
	if err != nil {
		fmt.Fprintln(os.Stderr, "invalid board shape:", err)
		os.Exit(2)
	}
	svc := game.NewService(machine, solver.NewClient(cfg.SolverAPIURL, cfg.SolverTimeout), game.WithPacing(cfg.MovePacing))
	defer svc.Close()

	if err := svc.SelectSolver(identity); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	model, cancel := tui.New(svc)
	defer cancel()

	p := tea.NewProgram(model.StartWith(player), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Error().Err(err).Msg("program exited with error")
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupFileLogging sends zerolog output to a file so it stays off the screen.
func setupFileLogging(path, level string) (func(), error) {
	if path == "" {
		p, err := xdg.StateFile("ai-connect-four/play.log")
		if err != nil {
			return nil, err
		}
		path = p
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	if lvl, err := zerolog.ParseLevel(level); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return func() { f.Close() }, nil
}
