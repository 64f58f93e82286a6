package tools

import (
	"errors"
	"testing"
)

func TestSucceededNilPayloadIsFailure(t *testing.T) {
	call := ToolCall{ID: "1", Name: NameReadFile}
	result := Succeeded(call, nil)
	if !result.IsError() {
		t.Fatal("nil payload must not produce a success")
	}
	if result.ID != "1" || result.Name != NameReadFile {
		t.Fatalf("result not paired with call: %+v", result)
	}
}

func TestFailedNilErrorStillFails(t *testing.T) {
	result := Failed(ToolCall{ID: "1", Name: NameRunScript}, nil)
	if !result.IsError() || result.Err() == nil {
		t.Fatal("expected an error result")
	}
}

func TestToolResultContent(t *testing.T) {
	call := ToolCall{ID: "1", Name: NameRunScript}
	tests := []struct {
		name   string
		result ToolResult
		want   string
	}{
		{"string", Succeeded(call, "plain"), "plain"},
		{"struct", Succeeded(call, ScriptResult{Stdout: "hi\n", ExitCode: 1}), `{"stdout":"hi\n","stderr":"","exit_code":1}`},
		{"error", Failed(call, errors.New("broken")), "Error: broken"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Content(); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	for _, kind := range Kinds() {
		if kind.String() == "" || kind.String()[0] == 'k' {
			t.Fatalf("kind %d has no name", int(kind))
		}
	}
	if Kind(99).String() != "kind(99)" {
		t.Fatalf("unexpected name for unknown kind: %s", Kind(99))
	}
}
