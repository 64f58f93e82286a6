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

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"golang.org/x/term"

	"toolloop/internal/tools"
)

type approvalDecision int

const (
	approvalUnknown approvalDecision = iota
	approvalYes
	approvalNo
	approvalAlways
)

type toolPromptFunc func(ctx context.Context, call tools.ToolCall) (approvalDecision, error)

// newToolApprover asks on the controlling terminal before each confirmed
// tool runs.
func newToolApprover() tools.ApprovalFunc {
	return newToolApproverWithPrompt(promptToolApproval)
}

func newToolApproverWithPrompt(prompt toolPromptFunc) tools.ApprovalFunc {
	alwaysAllowed := make(map[string]bool)
	var mu sync.Mutex
	return func(ctx context.Context, call tools.ToolCall) (bool, error) {
		mu.Lock()
		defer mu.Unlock()
		if alwaysAllowed[call.Name] {
			return true, nil
		}

		decision, err := prompt(ctx, call)
		if err != nil {
			return false, err
		}
		if decision == approvalAlways {
			alwaysAllowed[call.Name] = true
			return true, nil
		}
		return decision == approvalYes, nil
	}
}

func promptToolApproval(ctx context.Context, call tools.ToolCall) (approvalDecision, error) {
	cfg := &readline.Config{
		Prompt:          fmt.Sprintf("Allow tool %s%s? (Yes/no/always): ", call.Name, approvalArgs(call)),
		InterruptPrompt: "^C",
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return approvalNo, fmt.Errorf("no TTY available for tool approval")
		}
		defer tty.Close()
		cfg.Stdin = tty
		cfg.Stdout = tty
		cfg.Stderr = tty
	}

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return approvalNo, err
	}
	defer rl.Close()

	return askApproval(ctx, rl.Readline, rl.Stdout())
}

// askApproval repeats the question until it gets a usable answer. Ctrl-C
// and end of input deny the call.
func askApproval(ctx context.Context, readLine func() (string, error), out io.Writer) (approvalDecision, error) {
	for {
		if err := ctx.Err(); err != nil {
			return approvalNo, err
		}
		line, err := readLine()
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return approvalNo, nil
		}
		if err != nil {
			return approvalNo, err
		}
		decision := parseApprovalInput(line)
		if decision != approvalUnknown {
			return decision, nil
		}
		fmt.Fprintln(out, "Please enter yes, no, or always.")
	}
}

func parseApprovalInput(input string) approvalDecision {
	normalized := strings.TrimSpace(strings.ToLower(input))
	if normalized == "" {
		return approvalYes
	}
	switch {
	case isPrefixToken(normalized, "yes"):
		return approvalYes
	case isPrefixToken(normalized, "no"):
		return approvalNo
	case isPrefixToken(normalized, "always"):
		return approvalAlways
	default:
		return approvalUnknown
	}
}

func isPrefixToken(input, target string) bool {
	if input == "" || len(input) > len(target) {
		return false
	}
	return strings.HasPrefix(target, input)
}

// approvalArgs renders the call arguments for the prompt with file content
// left out.
func approvalArgs(call tools.ToolCall) string {
	args := call.Arguments
	if args == nil {
		raw := strings.TrimSpace(call.RawArguments)
		if raw == "" || raw == "{}" || raw == "null" {
			return ""
		}
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			return fmt.Sprintf(" with args %s", raw)
		}
	}
	if len(args) == 0 {
		return ""
	}
	shown := make(map[string]interface{}, len(args))
	for k, v := range args {
		if k == "content" {
			continue
		}
		shown[k] = v
	}
	encoded, err := json.Marshal(shown)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(" with args %s", encoded)
}
