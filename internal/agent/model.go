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
	"fmt"

	"toolloop/internal/tools"
)

// Model is the remote chat-completion service as seen by the driver.
type Model interface {
	Complete(ctx context.Context, req Request) (Reply, error)
}

// Dispatcher runs tool calls. Dispatch must return exactly one result per
// call and never fail the run.
type Dispatcher interface {
	Specs() []tools.Spec
	Dispatch(ctx context.Context, call tools.ToolCall) tools.ToolResult
}

// Request is everything the model sees for one completion.
type Request struct {
	System  string
	History []Turn
	Tools   []tools.Spec
}

// Reply is one model response: text, tool calls, or both.
type Reply struct {
	Text  string
	Calls []tools.ToolCall
	Usage Usage
}

// Usage counts tokens reported by the model service.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Add returns the sum of u and other.
func (u Usage) Add(other Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + other.PromptTokens,
		CompletionTokens: u.CompletionTokens + other.CompletionTokens,
		TotalTokens:      u.TotalTokens + other.TotalTokens,
	}
}

// APIError reports a failed model request.
type APIError struct {
	Operation string
	Err       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error during %s: %v", e.Operation, e.Err)
}

func (e *APIError) Unwrap() error {
	return e.Err
}
