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

import "toolloop/internal/tools"

// EventType identifies the type of driver event.
type EventType int

const (
	// EventModelReply carries the text, calls and usage of one model reply.
	EventModelReply EventType = iota
	// EventToolCall is emitted before a call is dispatched.
	EventToolCall
	// EventToolResult is emitted after a call returned.
	EventToolResult
	// EventLoopExceeded is emitted when the iteration cap stops the run.
	EventLoopExceeded
)

// Event is passed to the handler installed with WithEventHandler.
type Event struct {
	Type      EventType
	Iteration int
	Reply     Reply
	Call      tools.ToolCall
	Result    tools.ToolResult
}

func newReplyEvent(iteration int, reply Reply) Event {
	return Event{Type: EventModelReply, Iteration: iteration, Reply: reply}
}

func newToolCallEvent(iteration int, call tools.ToolCall) Event {
	return Event{Type: EventToolCall, Iteration: iteration, Call: call}
}

func newToolResultEvent(iteration int, result tools.ToolResult) Event {
	return Event{Type: EventToolResult, Iteration: iteration, Result: result}
}
