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

package config

import (
	"encoding/json"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

// SchemaJSON returns the JSON schema for the config file.
func SchemaJSON() string {
	return configSchemaJSON
}

// ExampleConfigJSON returns a minimal example config derived from the schema.
func ExampleConfigJSON() string {
	return exampleConfigJSON
}

// normalizeConfig validates the raw document and returns it as JSON. YAML
// input goes through the same JSON round trip so numbers and keys are
// checked identically.
func normalizeConfig(data []byte, fromYAML bool) ([]byte, error) {
	if fromYAML {
		var doc map[string]interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("unsupported YAML structure: %w", err)
		}
		data = converted
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	migrateLegacyConfig(raw)
	if err := validateConfigMap(raw, ""); err != nil {
		return nil, err
	}
	return json.Marshal(raw)
}

func migrateLegacyConfig(raw map[string]interface{}) {
	toolsVal, ok := raw["tools"].(map[string]interface{})
	if !ok {
		return
	}
	if _, ok := toolsVal["require_confirmation"]; ok {
		return
	}
	if legacy, ok := toolsVal["confirm"].([]interface{}); ok {
		toolsVal["require_confirmation"] = legacy
		delete(toolsVal, "confirm")
	}
}

func validateConfigMap(raw map[string]interface{}, prefix string) error {
	allowed := map[string]func(interface{}) error{
		"api_key":     func(v interface{}) error { return validateString(v, prefix+"api_key") },
		"api_url":     func(v interface{}) error { return validateString(v, prefix+"api_url") },
		"model":       func(v interface{}) error { return validateString(v, prefix+"model") },
		"temperature": func(v interface{}) error { return validateNumber(v, prefix+"temperature") },
		"max_tokens":  func(v interface{}) error { return validateNumber(v, prefix+"max_tokens") },
		"workdir":     func(v interface{}) error { return validateString(v, prefix+"workdir") },
		"tools": func(v interface{}) error {
			return validateToolsConfig(v, prefix+"tools.")
		},
		"tool_limits": func(v interface{}) error {
			return validateToolLimits(v, prefix+"tool_limits.")
		},
		"tool_timeouts": func(v interface{}) error {
			return validateToolTimeouts(v, prefix+"tool_timeouts.")
		},
		"tool_output_filters": func(v interface{}) error {
			return validateToolOutputFilters(v, prefix+"tool_output_filters.")
		},
		"model_requests_per_minute": func(v interface{}) error {
			return validateNumber(v, prefix+"model_requests_per_minute")
		},
		"metrics_textfile": func(v interface{}) error {
			return validateString(v, prefix+"metrics_textfile")
		},
	}
	return validateSection(raw, allowed, prefix)
}

func validateToolsConfig(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"require_confirmation": func(v interface{}) error { return validateStringArray(v, prefix+"require_confirmation") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolLimits(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"max_read_chars":        func(v interface{}) error { return validateNumber(v, prefix+"max_read_chars") },
		"max_file_size_bytes":   func(v interface{}) error { return validateNumber(v, prefix+"max_file_size_bytes") },
		"max_directory_entries": func(v interface{}) error { return validateNumber(v, prefix+"max_directory_entries") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolTimeouts(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"run_script_seconds": func(v interface{}) error { return validateNumber(v, prefix+"run_script_seconds") },
	}
	return validateSection(section, allowed, prefix)
}

func validateToolOutputFilters(value interface{}, prefix string) error {
	section, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("%s must be an object", trimDot(prefix))
	}
	allowed := map[string]func(interface{}) error{
		"max_chars":     func(v interface{}) error { return validateNumber(v, prefix+"max_chars") },
		"strip_ansi":    func(v interface{}) error { return validateBool(v, prefix+"strip_ansi") },
		"strip_control": func(v interface{}) error { return validateBool(v, prefix+"strip_control") },
	}
	return validateSection(section, allowed, prefix)
}

func validateSection(section map[string]interface{}, allowed map[string]func(interface{}) error, prefix string) error {
	keys := make([]string, 0, len(section))
	for key := range section {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		validator, ok := allowed[key]
		if !ok {
			return fmt.Errorf("unknown configuration field %q", prefix+key)
		}
		if err := validator(section[key]); err != nil {
			return err
		}
	}
	return nil
}

func trimDot(prefix string) string {
	if len(prefix) > 0 && prefix[len(prefix)-1] == '.' {
		return prefix[:len(prefix)-1]
	}
	return prefix
}

func validateString(value interface{}, name string) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("%s must be a string", name)
	}
	return nil
}

func validateNumber(value interface{}, name string) error {
	if _, ok := value.(float64); !ok {
		return fmt.Errorf("%s must be a number", name)
	}
	return nil
}

func validateBool(value interface{}, name string) error {
	if _, ok := value.(bool); !ok {
		return fmt.Errorf("%s must be a boolean", name)
	}
	return nil
}

func validateStringArray(value interface{}, name string) error {
	list, ok := value.([]interface{})
	if !ok {
		return fmt.Errorf("%s must be an array of strings", name)
	}
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return fmt.Errorf("%s must be an array of strings", name)
		}
	}
	return nil
}

const configSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "title": "toolloop config",
  "type": "object",
  "properties": {
    "api_key": { "type": "string" },
    "api_url": { "type": "string" },
    "model": { "type": "string" },
    "temperature": { "type": "number" },
    "max_tokens": { "type": "number" },
    "workdir": { "type": "string" },
    "tools": {
      "type": "object",
      "properties": {
        "require_confirmation": { "type": "array", "items": { "type": "string" } }
      }
    },
    "tool_limits": {
      "type": "object",
      "properties": {
        "max_read_chars": { "type": "number" },
        "max_file_size_bytes": { "type": "number" },
        "max_directory_entries": { "type": "number" }
      }
    },
    "tool_timeouts": {
      "type": "object",
      "properties": {
        "run_script_seconds": { "type": "number" }
      }
    },
    "tool_output_filters": {
      "type": "object",
      "properties": {
        "max_chars": { "type": "number" },
        "strip_ansi": { "type": "boolean" },
        "strip_control": { "type": "boolean" }
      }
    },
    "model_requests_per_minute": { "type": "number" },
    "metrics_textfile": { "type": "string" }
  }
}`

const exampleConfigJSON = `{
  "api_key": "sk-...",
  "api_url": "https://api.openai.com/v1",
  "model": "gpt-4o-mini",
  "workdir": ".",
  "tools": {
    "require_confirmation": ["write_file", "run_script"]
  },
  "tool_timeouts": {
    "run_script_seconds": 30
  }
}`
