package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for the CLI.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	stderr  io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		stderr:  os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	be, ok := AsBaseError(err)
	if !ok {
		return 1
	}
	switch be.Category {
	case CategoryValidation:
		return 2 // Invalid usage
	case CategoryAuth:
		return 5
	case CategoryNetwork, CategoryAPI:
		return 8 // External system error
	case CategoryFile, CategoryStorage:
		return 11
	case CategoryAudio, CategoryTTS:
		return 12
	default:
		return 1
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	be, ok := AsBaseError(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return err.Error()
	}
	switch be.Category {
	case CategoryValidation, CategoryAuth:
		return be.Message
	default:
		return fmt.Sprintf("%s: %s", be.Category, be.Message)
	}
}

// HandleError prints err and exits the program with the mapped code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintf(a.stderr, "%s\n", a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}
	if be, ok := AsBaseError(err); ok {
		return be.Severity >= SeverityHigh
	}
	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	if be, ok := AsBaseError(err); ok {
		a.logger.LogAttrs(context.Background(), SlogLevel(be.Severity), be.Message,
			slog.String("category", string(be.Category)),
			slog.String("code", be.Code),
		)
		return
	}

	a.logger.Error("Unclassified error", "error", err)
}

// SlogLevel maps a severity onto the slog level it is logged at:
// LOW is debug, MEDIUM is warn, HIGH and CRITICAL are error.
func SlogLevel(s ErrorSeverity) slog.Level {
	switch s {
	case SeverityLow:
		return slog.LevelDebug
	case SeverityMedium:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
