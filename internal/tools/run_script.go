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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/paths"
)

// ScriptResult is the run_script payload. A non-zero exit code is still a
// successful invocation.
type ScriptResult struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// scriptWaitDelay bounds how long Wait blocks on pipes held open by
// grandchildren after the process group was killed.
const scriptWaitDelay = 2 * time.Second

var interpreters = map[string]string{
	".py": "python3",
	".sh": "sh",
}

// RunScript executes the script at path inside root with root as working
// directory. Scripts ending in .py and .sh run under python3 and sh, anything
// else is executed directly. The whole process group is killed once
// limits.ScriptTimeout elapses.
func RunScript(ctx context.Context, root, path string, args []string, limits Limits, filters OutputFilterConfig) (ScriptResult, error) {
	limits = normalizeLimits(limits)
	filters = normalizeOutputFilterConfig(filters)
	if ctx == nil {
		ctx = context.Background()
	}

	resolved, err := paths.Resolve(root, path)
	if err != nil {
		return ScriptResult{}, resolveError("run", path, err)
	}
	if err := checkScript(resolved, path); err != nil {
		return ScriptResult{}, err
	}
	if err := ensureContext(ctx); err != nil {
		return ScriptResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, limits.ScriptTimeout)
	defer cancel()

	name, argv := scriptCommand(resolved, args)
	cmd := exec.CommandContext(runCtx, name, argv...)
	cmd.Dir = root
	cmd.WaitDelay = scriptWaitDelay
	killProcessGroupOnCancel(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return ScriptResult{}, apperrors.Wrap(apperrors.CodeToolInvocation,
			fmt.Sprintf("Script %q timed out after %s", path, limits.ScriptTimeout), ErrScriptTimeout)
	}
	if ctx.Err() != nil {
		return ScriptResult{}, ctx.Err()
	}

	result := ScriptResult{
		Stdout: filters.sanitize("stdout", stdout.String()),
		Stderr: filters.sanitize("stderr", stderr.String()),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return ScriptResult{}, apperrors.Wrap(apperrors.CodeIO,
				fmt.Sprintf("An error occurred while running the script %q", path), runErr)
		}
		result.ExitCode = exitErr.ExitCode()
	}
	return result, nil
}

func scriptCommand(resolved string, args []string) (string, []string) {
	interpreter, ok := interpreters[strings.ToLower(filepath.Ext(resolved))]
	if !ok {
		return resolved, args
	}
	argv := make([]string, 0, len(args)+1)
	argv = append(argv, resolved)
	argv = append(argv, args...)
	return interpreter, argv
}

// checkScript requires resolved to be an existing regular file. path is the
// caller's spelling used in messages.
func checkScript(resolved, path string) error {
	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.New(apperrors.CodeNotFound, fmt.Sprintf("Script not found or is not a regular file: %q", path))
		}
		return apperrors.Wrap(apperrors.CodeIO, fmt.Sprintf("An error occurred while checking the script %q", path), err)
	}
	if !info.Mode().IsRegular() {
		return apperrors.New(apperrors.CodeNotARegularFile, fmt.Sprintf("Script not found or is not a regular file: %q", path))
	}
	return nil
}
