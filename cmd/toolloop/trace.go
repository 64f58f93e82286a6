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
	"fmt"
	"io"

	"toolloop/internal/agent"
)

// tracePrinter writes driver events to the terminal. Without verbose only
// the names of called tools are shown.
type tracePrinter struct {
	out     io.Writer
	verbose bool
}

func (p *tracePrinter) userPrompt(prompt string) {
	if p.verbose {
		fmt.Fprintf(p.out, "User prompt: %s\n", prompt)
	}
}

func (p *tracePrinter) handle(event agent.Event) {
	switch event.Type {
	case agent.EventModelReply:
		if !p.verbose {
			return
		}
		fmt.Fprintf(p.out, "Iteration %d\n", event.Iteration+1)
		fmt.Fprintf(p.out, "Prompt tokens: %d\n", event.Reply.Usage.PromptTokens)
		fmt.Fprintf(p.out, "Response tokens: %d\n", event.Reply.Usage.CompletionTokens)
	case agent.EventToolCall:
		if p.verbose {
			fmt.Fprintf(p.out, "Calling function: %s(%s)\n", event.Call.Name, event.Call.RawArguments)
			return
		}
		fmt.Fprintf(p.out, " - Calling function: %s\n", event.Call.Name)
	case agent.EventToolResult:
		if !p.verbose {
			return
		}
		fmt.Fprintf(p.out, "-> %s\n", event.Result.Content())
	case agent.EventLoopExceeded:
		if p.verbose {
			fmt.Fprintf(p.out, "Iteration limit reached after %d iterations\n", event.Iteration)
		}
	}
}
