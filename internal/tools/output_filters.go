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
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const defaultMaxOutputChars = 10000

// OutputFilterConfig controls how captured run_script streams are cleaned
// before they reach the model.
type OutputFilterConfig struct {
	MaxChars     int
	StripANSI    bool
	StripControl bool
}

// CSI and OSC escape sequences.
var escapeSequence = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]|\x1b\][^\x1b]*(?:\x07|\x1b\\)`)

// DefaultOutputFilterConfig strips terminal escapes and control characters
// and keeps 10000 characters per stream.
func DefaultOutputFilterConfig() OutputFilterConfig {
	return OutputFilterConfig{MaxChars: defaultMaxOutputChars, StripANSI: true, StripControl: true}
}

func normalizeOutputFilterConfig(c OutputFilterConfig) OutputFilterConfig {
	if c.MaxChars <= 0 {
		c.MaxChars = defaultMaxOutputChars
	}
	return c
}

// sanitize cleans one stream. When characters are dropped a marker naming
// the stream is appended.
func (c OutputFilterConfig) sanitize(stream, output string) string {
	if c.StripANSI {
		output = escapeSequence.ReplaceAllString(output, "")
	}
	if c.StripControl {
		output = strings.Map(keepPrintable, output)
	}
	head, cut := headRunes(output, c.MaxChars)
	if !cut {
		return output
	}
	return head + fmt.Sprintf("\n[...%s truncated at %d characters]", stream, c.MaxChars)
}

// keepPrintable drops C0 controls and DEL but keeps line structure.
func keepPrintable(r rune) rune {
	switch {
	case r == '\n', r == '\r', r == '\t':
		return r
	case r < 0x20, r == 0x7f:
		return -1
	}
	return r
}

// headRunes returns the first n runes of s and whether anything was cut.
func headRunes(s string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s, false
	}
	offset := 0
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeRuneInString(s[offset:])
		offset += size
	}
	return s[:offset], true
}
