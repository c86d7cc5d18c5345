// Package ports defines the core interfaces for the application.
package ports

import (
	"context"

	"go.trai.ch/strata/internal/core/domain"
)

// CommandRunner defines the interface for running shell commands on behalf of run and
// install steps.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type CommandRunner interface {
	// Run executes the command and waits for it to finish.
	//
	// A command that starts and exits non-zero is not an error: the exit code is reported
	// in the result. An error is returned only when the command cannot be started or the
	// context ends first.
	Run(ctx context.Context, cmd domain.Command) (domain.CommandResult, error)
}
