// Copyright (C) 2025 Dyne.org foundation
// designed, written and maintained by Denis Roio <jaromil@dyne.org>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package tools

import (
	"errors"
	"fmt"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/paths"
)

// Common tool errors
var (
	// ErrToolNotFound indicates the requested tool doesn't exist in the registry.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidArguments indicates tool arguments are invalid or malformed.
	ErrInvalidArguments = errors.New("invalid tool arguments")

	// ErrToolDeniedByUser indicates the user denied executing a tool.
	ErrToolDeniedByUser = errors.New("tool execution denied by user")

	// ErrToolPanicked indicates a capability function panicked.
	ErrToolPanicked = errors.New("tool panicked")

	// ErrScriptTimeout indicates run_script exceeded its timeout.
	ErrScriptTimeout = errors.New("script timed out")
)

// NewUnknownToolError reports a tool name absent from the registry.
func NewUnknownToolError(name string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodeUnknownTool, fmt.Sprintf("unknown tool %s", name), ErrToolNotFound)
}

// NewToolExecutionError wraps a tool execution error with a shared error code.
func NewToolExecutionError(toolName, operation string, err error) *apperrors.Error {
	if operation != "" {
		return apperrors.Wrap(apperrors.CodeToolInvocation, fmt.Sprintf("tool %s failed during %s", toolName, operation), err)
	}
	return apperrors.Wrap(apperrors.CodeToolInvocation, fmt.Sprintf("tool %s failed", toolName), err)
}

// NewPermissionError wraps a permission error with a shared error code.
func NewPermissionError(toolName, reason string) *apperrors.Error {
	return apperrors.Wrap(apperrors.CodePermission, fmt.Sprintf("permission denied for tool %s: %s", toolName, reason), ErrToolDeniedByUser)
}

// resolveError converts a resolver failure into the capability's error text.
// verb is the action phrase, e.g. "read" or "list".
func resolveError(verb, path string, err error) *apperrors.Error {
	var violation *paths.SandboxViolation
	if errors.As(err, &violation) {
		return apperrors.Wrap(apperrors.CodeSandbox,
			fmt.Sprintf("Cannot %s %q as it is outside the permitted working directory", verb, path), nil)
	}
	return apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("Invalid path %q", path), err)
}
