// Package controller projects certification results onto the console.
package controller

import (
	"context"
	"os"

	"github.com/mattn/go-isatty"

	m "hydra.dev/pkg/hydra/internal/model"
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	diagnostics bool
}

// WithDiagnostics makes the UI list every recorded degradation.
func WithDiagnostics() StartOption {
	return func(c *StartConfig) {
		c.diagnostics = true
	}
}

// UI defines how a certification run is shown to the user.
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	DisplayRunInfo(ctx context.Context, runID string, modules int, workers int)
	DisplayModuleResult(ctx context.Context, result m.ModuleResult)
	DisplayBatchResult(ctx context.Context, result m.BatchResult) error
	DisplayModules(ctx context.Context, modules []*m.Module) error
}

// IsTTY reports whether f is an interactive terminal.
func IsTTY(f *os.File) bool {
	if f == nil {
		return false
	}

	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
