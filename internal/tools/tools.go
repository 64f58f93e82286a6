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
	"encoding/json"
	"fmt"
)

// Kind enumerates the fixed set of capabilities the agent can invoke.
type Kind int

const (
	KindListDirectory Kind = iota + 1
	KindReadFile
	KindWriteFile
	KindRunScript
)

// Tool names as advertised to the model.
const (
	NameListDirectory = "list_directory"
	NameReadFile      = "read_file"
	NameWriteFile     = "write_file"
	NameRunScript     = "run_script"
)

var kindNames = map[Kind]string{
	KindListDirectory: NameListDirectory,
	KindReadFile:      NameReadFile,
	KindWriteFile:     NameWriteFile,
	KindRunScript:     NameRunScript,
}

// Kinds lists every capability in advertisement order.
func Kinds() []Kind {
	return []Kind{KindListDirectory, KindReadFile, KindWriteFile, KindRunScript}
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Param describes one declared parameter of a tool.
type Param struct {
	Name        string
	Type        string
	Description string
	Required    bool
}

// Spec is the static registration record of a tool.
type Spec struct {
	Kind        Kind
	Name        string
	Description string
	// Parameters is the JSON schema advertised to the model.
	Parameters map[string]interface{}
	// Params is Parameters flattened for validation and display.
	Params []Param
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
	// RawArguments keeps the undecoded argument text for tracing.
	RawArguments string
}

// ToolResult is the outcome of one ToolCall. Exactly one of payload or
// error is set; build it with Succeeded or Failed.
type ToolResult struct {
	ID      string
	Name    string
	payload interface{}
	err     error
}

// Succeeded builds a success result. A nil payload yields a failure since a
// result must carry either a payload or an error.
func Succeeded(call ToolCall, payload interface{}) ToolResult {
	if payload == nil {
		return Failed(call, fmt.Errorf("tool %s returned no result", call.Name))
	}
	return ToolResult{ID: call.ID, Name: call.Name, payload: payload}
}

// Failed builds an error result. A nil err is replaced with a generic error.
func Failed(call ToolCall, err error) ToolResult {
	if err == nil {
		err = fmt.Errorf("tool %s failed", call.Name)
	}
	return ToolResult{ID: call.ID, Name: call.Name, err: err}
}

// Payload returns the success payload, nil for failures.
func (r ToolResult) Payload() interface{} {
	return r.payload
}

// Err returns the failure, nil for successes.
func (r ToolResult) Err() error {
	return r.err
}

// IsError reports whether the result is a failure.
func (r ToolResult) IsError() bool {
	return r.err != nil
}

// Content renders the result as the text folded back into the conversation.
func (r ToolResult) Content() string {
	if r.err != nil {
		return fmt.Sprintf("Error: %v", r.err)
	}
	switch v := r.payload.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	raw, err := json.Marshal(r.payload)
	if err != nil {
		return fmt.Sprintf("Error: failed to encode result: %v", err)
	}
	return string(raw)
}
