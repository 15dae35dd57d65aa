// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"

	"github.com/jeranaias/cleo/internal/attach"
	"github.com/jeranaias/cleo/internal/cloud"
	"github.com/jeranaias/cleo/internal/config"
	"github.com/jeranaias/cleo/internal/storage"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates authentication failure
	ExitAuthError = 4
	// ExitNetworkError indicates network or connectivity error
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
)

// ErrUsage marks errors caused by bad arguments.
var ErrUsage = errors.New("usage error")

// usageErrorf builds an error that maps to ExitUsageError.
func usageErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUsage, fmt.Sprintf(format, args...))
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var verr config.ValidateErrors
	var terr *cloud.TransportError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.Is(err, ErrUsage):
		return ExitUsageError
	case errors.Is(err, cloud.ErrNotConfigured), errors.As(err, &verr):
		return ExitConfigError
	case errors.Is(err, cloud.ErrAuthFailed):
		return ExitAuthError
	case errors.As(err, &terr) && terr.IsNetwork():
		return ExitNetworkError
	case errors.Is(err, storage.ErrSessionNotFound), errors.Is(err, attach.ErrFileNotFound):
		return ExitNotFoundError
	default:
		return ExitGeneralError
	}
}
