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

import "time"

// Limits configures size and time bounds for capability functions.
type Limits struct {
	MaxReadChars        int
	MaxFileSizeBytes    int64
	MaxDirectoryEntries int
	ScriptTimeout       time.Duration
}

const (
	// DefaultMaxReadChars is the read_file character budget.
	DefaultMaxReadChars = 10000

	defaultMaxFileSizeBytes    int64 = 10 * 1024 * 1024
	defaultMaxDirectoryEntries       = 2000
	defaultScriptTimeout             = 30 * time.Second
)

// DefaultLimits returns the default resource limits for tool operations.
func DefaultLimits() Limits {
	return Limits{
		MaxReadChars:        DefaultMaxReadChars,
		MaxFileSizeBytes:    defaultMaxFileSizeBytes,
		MaxDirectoryEntries: defaultMaxDirectoryEntries,
		ScriptTimeout:       defaultScriptTimeout,
	}
}

func normalizeLimits(l Limits) Limits {
	if l.MaxReadChars <= 0 {
		l.MaxReadChars = DefaultMaxReadChars
	}
	if l.MaxFileSizeBytes <= 0 {
		l.MaxFileSizeBytes = defaultMaxFileSizeBytes
	}
	if l.MaxDirectoryEntries <= 0 {
		l.MaxDirectoryEntries = defaultMaxDirectoryEntries
	}
	if l.ScriptTimeout <= 0 {
		l.ScriptTimeout = defaultScriptTimeout
	}
	return l
}
