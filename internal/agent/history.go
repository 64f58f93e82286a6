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
	"sync"

	"toolloop/internal/tools"
)

// Role identifies who produced a Turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
	RoleTool  Role = "tool"
)

// Turn is one history entry. Model turns may carry Calls, tool turns carry
// one Result per call of the preceding model turn, in the same order.
type Turn struct {
	Role    Role
	Text    string
	Calls   []tools.ToolCall
	Results []tools.ToolResult
}

// History is the append-only conversation of a single run.
type History struct {
	mu    sync.Mutex
	turns []Turn
}

// Append adds a turn at the end of the history.
func (h *History) Append(turn Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append(h.turns, turn)
}

// Len returns the number of turns.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.turns)
}

// Snapshot returns a copy of the turns.
func (h *History) Snapshot() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	turns := make([]Turn, len(h.turns))
	copy(turns, h.turns)
	return turns
}
