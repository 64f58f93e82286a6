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

package agent

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/tools"
)

// DefaultMaxIterations bounds the number of tool dispatch cycles per run.
const DefaultMaxIterations = 20

// State is the position of a run in the driver state machine.
type State int

const (
	StateAwaitingModel State = iota
	StateDispatchingTools
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAwaitingModel:
		return "awaiting_model"
	case StateDispatchingTools:
		return "dispatching_tools"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// Status is how a run ended.
type Status int

const (
	// StatusFinal means the model produced a reply without tool calls.
	StatusFinal Status = iota
	// StatusLoopExceeded means the iteration cap was reached first.
	StatusLoopExceeded
)

func (s Status) String() string {
	if s == StatusLoopExceeded {
		return "loop_exceeded"
	}
	return "final"
}

// Result is the outcome of Run. Text is the final model text for
// StatusFinal and empty otherwise.
type Result struct {
	RunID      string
	Status     Status
	Text       string
	Iterations int
	History    []Turn
	Usage      Usage
}

// Driver runs the model/tool loop for one request at a time.
type Driver struct {
	model         Model
	dispatcher    Dispatcher
	system        string
	maxIterations int
	onEvent       func(Event)
	logger        zerolog.Logger
}

// Option configures a Driver.
type Option func(*Driver)

// WithSystemPrompt sets the system instruction sent with every request.
func WithSystemPrompt(prompt string) Option {
	return func(d *Driver) {
		d.system = prompt
	}
}

// WithMaxIterations overrides DefaultMaxIterations. Values below one are
// ignored.
func WithMaxIterations(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.maxIterations = n
		}
	}
}

// WithEventHandler receives model replies and tool activity as they happen.
func WithEventHandler(fn func(Event)) Option {
	return func(d *Driver) {
		d.onEvent = fn
	}
}

// WithLogger sets the driver logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(d *Driver) {
		d.logger = logger
	}
}

// NewDriver creates a driver that sends requests to model and runs the
// returned tool calls through dispatcher.
func NewDriver(model Model, dispatcher Dispatcher, opts ...Option) *Driver {
	d := &Driver{
		model:         model,
		dispatcher:    dispatcher,
		maxIterations: DefaultMaxIterations,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run answers prompt. Reaching the iteration cap is not an error: the
// returned Result has StatusLoopExceeded. Model failures abort the run with
// an error carrying the api code.
func (d *Driver) Run(ctx context.Context, prompt string) (Result, error) {
	runID := uuid.NewString()
	logger := d.logger.With().Str("run_id", runID).Logger()

	history := &History{}
	history.Append(Turn{Role: RoleUser, Text: prompt})
	specs := d.dispatcher.Specs()

	var (
		state      = StateAwaitingModel
		iterations int
		usage      Usage
		pending    []tools.ToolCall
		final      string
		status     = StatusFinal
	)

	for state != StateDone {
		switch state {
		case StateAwaitingModel:
			if iterations >= d.maxIterations {
				logger.Warn().Int("iterations", iterations).Msg("iteration cap reached")
				d.emit(Event{Type: EventLoopExceeded, Iteration: iterations})
				status = StatusLoopExceeded
				state = StateDone
				continue
			}
			if err := ctx.Err(); err != nil {
				return d.result(runID, status, "", iterations, history, usage), err
			}

			logger.Debug().Int("iteration", iterations).Int("turns", history.Len()).Msg("requesting model completion")
			reply, err := d.model.Complete(ctx, Request{
				System:  d.system,
				History: history.Snapshot(),
				Tools:   specs,
			})
			if err != nil {
				logger.Error().Err(err).Msg("model request failed")
				return d.result(runID, status, "", iterations, history, usage),
					apperrors.Wrap(apperrors.CodeAPI, "model request failed", &APIError{Operation: "complete", Err: err})
			}
			usage = usage.Add(reply.Usage)
			history.Append(Turn{Role: RoleModel, Text: reply.Text, Calls: reply.Calls})
			d.emit(newReplyEvent(iterations, reply))

			if len(reply.Calls) == 0 {
				if reply.Text == "" {
					logger.Warn().Msg("model returned neither text nor tool calls")
				}
				final = reply.Text
				state = StateDone
				continue
			}
			pending = reply.Calls
			state = StateDispatchingTools

		case StateDispatchingTools:
			results := make([]tools.ToolResult, 0, len(pending))
			for _, call := range pending {
				d.emit(newToolCallEvent(iterations, call))
				logger.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("dispatching tool call")
				result := d.dispatcher.Dispatch(ctx, call)
				d.emit(newToolResultEvent(iterations, result))
				results = append(results, result)
			}
			history.Append(Turn{Role: RoleTool, Results: results})
			pending = nil
			iterations++
			state = StateAwaitingModel
		}
	}

	logger.Info().
		Str("status", status.String()).
		Int("iterations", iterations).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Msg("run finished")
	return d.result(runID, status, final, iterations, history, usage), nil
}

func (d *Driver) result(runID string, status Status, text string, iterations int, history *History, usage Usage) Result {
	return Result{
		RunID:      runID,
		Status:     status,
		Text:       text,
		Iterations: iterations,
		History:    history.Snapshot(),
		Usage:      usage,
	}
}

func (d *Driver) emit(event Event) {
	if d.onEvent != nil {
		d.onEvent(event)
	}
}
