// cmd/comdesk/main.go
//
// This is the entry point for the comdesk terminal dashboard.
// When you run `comdesk` from a project directory, this is what executes.
//
// Flow:
// 1. Handle one-shot subcommands (check-hooks)
// 2. Initialize the .comdesk folder and load its config
// 3. Open the session log and launch the TUI

package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/kingrea/comdesk/internal/config"
	"github.com/kingrea/comdesk/internal/logging"
	"github.com/kingrea/comdesk/internal/tui"
)

func main() {
	if handleCheckHooksCommand(os.Args[1:]) {
		return
	}

	// The current working directory holds the .comdesk project folder
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting working directory: %v\n", err)
		os.Exit(1)
	}

	if err := config.InitDir(cwd); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing .comdesk directory: %v\n", err)
		os.Exit(1)
	}
	cfg, err := config.NewConfig(cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := logging.New(cfg.LogPath(), cfg.Project.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = closeLog() }()

	app, err := tui.NewApp(cwd, tui.WithLogger(logger))
	if err != nil {
		logger.Error("dashboard setup failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
		os.Exit(1)
	}

	// Run blocks until the user quits
	p := tea.NewProgram(app, tea.WithAltScreen())
	_, runErr := p.Run()
	logger.Info("dashboard closed", zap.Any("requests", app.Client().RequestCounts()))
	if runErr != nil {
		logger.Error("tui exited with error", zap.Error(runErr))
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", runErr)
		_ = closeLog()
		os.Exit(1)
	}
}
