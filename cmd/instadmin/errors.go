package main

import (
	"errors"
	"fmt"

	"github.com/osg-htc/topology-institutions-admin/internal/core/validation"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/institutions"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/ror"
	"github.com/osg-htc/topology-institutions-admin/internal/shell/session"
)

// =============================================================================
// Exit Codes
// =============================================================================

const (
	ExitSuccess         = 0
	ExitConfigError     = 1
	ExitUsageError      = 2
	ExitValidationError = 3
	ExitTransportError  = 4
)

// =============================================================================
// Errors
// =============================================================================

// CLIError carries the operation that failed and the exit code to report.
type CLIError struct {
	Op       string
	Err      error
	ExitCode int
}

func (e *CLIError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *CLIError) Unwrap() error {
	return e.Err
}

// exitCode maps an error returned by a command to a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode
	}

	var verr *validation.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, session.ErrFieldLocked),
		errors.Is(err, ror.ErrNotRegistered):
		return ExitValidationError
	case errors.Is(err, session.ErrMissingID):
		return ExitUsageError
	}

	var terr *institutions.TransportError
	if errors.As(err, &terr) {
		return ExitTransportError
	}

	return ExitUsageError
}
