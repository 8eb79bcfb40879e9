package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// Run shows the dashboard until the user quits or ctx is cancelled.
func Run(ctx context.Context, logger *zap.Logger, opts Options) error {
	handler := NewRecoveryHandler(logger.Named("ui"), func() (tea.Model, []tea.ProgramOption) {
		return NewSafeModel(NewModel(opts), logger), []tea.ProgramOption{
			tea.WithAltScreen(),
			tea.WithContext(ctx),
		}
	})
	return handler.RunWithRecovery(ctx)
}
