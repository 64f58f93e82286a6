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
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ApprovalFunc asks the user whether call may run. Returning false denies the
// call without failing the run.
type ApprovalFunc func(ctx context.Context, call ToolCall) (bool, error)

// Recorder receives one observation per dispatched call.
type Recorder interface {
	ObserveToolCall(tool string, outcome string, elapsed time.Duration)
}

// Outcomes reported to a Recorder.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeDenied  = "denied"
	OutcomeUnknown = "unknown_tool"
	OutcomePanic   = "panic"
)

type invokeFunc func(ctx context.Context, spec Spec, args map[string]interface{}) (interface{}, error)

// Dispatcher turns tool-call requests into results. Every call yields
// exactly one result; failures never propagate to the caller.
type Dispatcher struct {
	registry *Registry
	logger   zerolog.Logger
	approve  ApprovalFunc
	recorder Recorder
	invoke   invokeFunc
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger zerolog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithApproval installs a hook consulted for tools in the confirmation list.
func WithApproval(fn ApprovalFunc) DispatcherOption {
	return func(d *Dispatcher) {
		d.approve = fn
	}
}

// WithRecorder reports per-call outcomes and latency.
func WithRecorder(rec Recorder) DispatcherOption {
	return func(d *Dispatcher) {
		d.recorder = rec
	}
}

// NewDispatcher creates a dispatcher over registry.
func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		logger:   zerolog.Nop(),
	}
	d.invoke = d.invokeBuiltin
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Specs returns the tools advertised to the model.
func (d *Dispatcher) Specs() []Spec {
	return d.registry.Specs()
}

// Dispatch runs one call and returns its result. It never panics.
func (d *Dispatcher) Dispatch(ctx context.Context, call ToolCall) (result ToolResult) {
	start := time.Now()
	outcome := OutcomeOK
	defer func() {
		if outcome == OutcomeOK && result.IsError() {
			outcome = OutcomeError
		}
		if d.recorder != nil {
			d.recorder.ObserveToolCall(call.Name, outcome, time.Since(start))
		}
		event := d.logger.Debug()
		if result.IsError() {
			event = d.logger.Warn().Err(result.Err())
		}
		event.Str("tool", call.Name).
			Str("call_id", call.ID).
			Str("outcome", outcome).
			Dur("elapsed", time.Since(start)).
			Msg("tool call finished")
	}()

	spec, ok := d.registry.Lookup(call.Name)
	if !ok {
		outcome = OutcomeUnknown
		return Failed(call, NewUnknownToolError(call.Name))
	}

	defer func() {
		if rec := recover(); rec != nil {
			outcome = OutcomePanic
			d.logger.Error().Str("tool", spec.Name).Interface("panic", rec).Msg("tool panicked")
			result = Failed(call, NewToolExecutionError(spec.Name, "execution", fmt.Errorf("%w: %v", ErrToolPanicked, rec)))
		}
	}()

	args := call.Arguments
	if args == nil && strings.TrimSpace(call.RawArguments) != "" {
		if err := json.Unmarshal([]byte(call.RawArguments), &args); err != nil {
			return Failed(call, NewToolExecutionError(spec.Name, "argument decoding", fmt.Errorf("%w: %v", ErrInvalidArguments, err)))
		}
	}

	if d.approve != nil && d.registry.RequiresConfirmation(spec.Name) {
		approved, err := d.approve(ctx, call)
		if err != nil {
			outcome = OutcomeDenied
			return Failed(call, NewPermissionError(spec.Name, err.Error()))
		}
		if !approved {
			outcome = OutcomeDenied
			return Failed(call, NewPermissionError(spec.Name, "the user declined"))
		}
	}

	payload, err := d.invoke(ctx, spec, args)
	if err != nil {
		return Failed(call, d.redact(err))
	}
	return Succeeded(call, payload)
}

func (d *Dispatcher) invokeBuiltin(ctx context.Context, spec Spec, args map[string]interface{}) (interface{}, error) {
	root := d.registry.root.String()
	limits := d.registry.limits

	switch spec.Kind {
	case KindListDirectory:
		in, err := unmarshalAndValidate[listDirectoryArgs](args)
		if err != nil {
			return nil, NewToolExecutionError(spec.Name, "argument validation", err)
		}
		return ListDirectory(ctx, root, in.Path, limits)
	case KindReadFile:
		in, err := unmarshalAndValidate[readFileArgs](args)
		if err != nil {
			return nil, NewToolExecutionError(spec.Name, "argument validation", err)
		}
		return ReadFile(ctx, root, in.Path, limits)
	case KindWriteFile:
		in, err := unmarshalAndValidate[writeFileArgs](args)
		if err != nil {
			return nil, NewToolExecutionError(spec.Name, "argument validation", err)
		}
		return WriteFile(ctx, root, in.Path, *in.Content, limits)
	case KindRunScript:
		in, err := unmarshalAndValidate[runScriptArgs](args)
		if err != nil {
			return nil, NewToolExecutionError(spec.Name, "argument validation", err)
		}
		return RunScript(ctx, root, in.Path, in.Args, limits, d.registry.filters)
	default:
		return nil, NewUnknownToolError(spec.Name)
	}
}

// redact keeps the absolute working root out of text shown to the model.
// A filesystem root is left alone since every separator would match it.
func (d *Dispatcher) redact(err error) error {
	root := d.registry.root.String()
	if root == "" || filepath.Dir(root) == root || !strings.Contains(err.Error(), root) {
		return err
	}
	return &redactedError{err: err, root: root}
}

type redactedError struct {
	err  error
	root string
}

// Error drops "root/" prefixes and replaces the bare root with "." only where
// it ends at a path boundary, so /work does not match inside /workspace.
func (e *redactedError) Error() string {
	msg := e.err.Error()
	var b strings.Builder
	for {
		i := strings.Index(msg, e.root)
		if i < 0 {
			b.WriteString(msg)
			return b.String()
		}
		b.WriteString(msg[:i])
		rest := msg[i+len(e.root):]
		switch {
		case strings.HasPrefix(rest, string(filepath.Separator)):
			rest = rest[1:]
		case rest == "" || !isPathChar(rest[0]):
			b.WriteString(".")
		default:
			b.WriteString(e.root)
		}
		msg = rest
	}
}

func isPathChar(c byte) bool {
	return c == '.' || c == '-' || c == '_' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func (e *redactedError) Unwrap() error {
	return e.err
}
