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
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "toolloop/internal/errors"
	"toolloop/internal/tools"
)

const (
	defaultModel  = "gpt-4o-mini"
	defaultAPIURL = "https://api.openai.com/v1"

	// GeminiAPIURL is Google's OpenAI-compatible endpoint.
	GeminiAPIURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	// GeminiModel is used when GEMINI_API_KEY selects the Gemini endpoint.
	GeminiModel = "gemini-2.0-flash-001"
)

// Config represents the application configuration
type Config struct {
	APIKey                 string            `json:"api_key"`
	APIURL                 string            `json:"api_url,omitempty"`
	Model                  string            `json:"model"`
	Temperature            *float32          `json:"temperature,omitempty"`
	MaxTokens              *int              `json:"max_tokens,omitempty"`
	Workdir                string            `json:"workdir,omitempty"`
	Tools                  ToolSettings      `json:"tools,omitempty"`
	ToolLimits             ToolLimits        `json:"tool_limits,omitempty"`
	ToolTimeouts           ToolTimeouts      `json:"tool_timeouts,omitempty"`
	ToolOutputFilters      ToolOutputFilters `json:"tool_output_filters,omitempty"`
	ModelRequestsPerMinute int               `json:"model_requests_per_minute,omitempty"`
	MetricsTextfile        string            `json:"metrics_textfile,omitempty"`
}

// ToolSettings lists the tools that need interactive approval.
type ToolSettings struct {
	RequireConfirmation []string `json:"require_confirmation,omitempty"`
}

// ToolLimits configures resource limits for tool execution.
type ToolLimits struct {
	MaxReadChars        int   `json:"max_read_chars,omitempty"`
	MaxFileSizeBytes    int64 `json:"max_file_size_bytes,omitempty"`
	MaxDirectoryEntries int   `json:"max_directory_entries,omitempty"`
}

// ToolTimeouts configures tool execution timeouts.
type ToolTimeouts struct {
	RunScriptSeconds int `json:"run_script_seconds,omitempty"`
}

// ToolOutputFilters configures output sanitization for script output.
type ToolOutputFilters struct {
	MaxChars     int  `json:"max_chars,omitempty"`
	StripANSI    bool `json:"strip_ansi,omitempty"`
	StripControl bool `json:"strip_control,omitempty"`
}

// DefaultConfig returns a config with default values
func DefaultConfig() *Config {
	limits := tools.DefaultLimits()
	filters := tools.DefaultOutputFilterConfig()
	return &Config{
		Model:  defaultModel,
		APIURL: defaultAPIURL,
		Tools: ToolSettings{
			RequireConfirmation: append([]string{}, tools.DefaultConfirmList...),
		},
		ToolLimits: ToolLimits{
			MaxReadChars:        limits.MaxReadChars,
			MaxFileSizeBytes:    limits.MaxFileSizeBytes,
			MaxDirectoryEntries: limits.MaxDirectoryEntries,
		},
		ToolTimeouts: ToolTimeouts{
			RunScriptSeconds: int(limits.ScriptTimeout / time.Second),
		},
		ToolOutputFilters: ToolOutputFilters{
			MaxChars:     filters.MaxChars,
			StripANSI:    filters.StripANSI,
			StripControl: filters.StripControl,
		},
	}
}

// LoadConfig loads configuration from a JSON or YAML file, applies env
// overrides, and validates required fields. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("failed to read %s", path), err)
		}
		normalized, err := normalizeConfig(data, isYAML(path))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid configuration in %s", path), err)
		}
		if err := json.Unmarshal(normalized, config); err != nil {
			return nil, apperrors.Wrap(apperrors.CodeConfig, fmt.Sprintf("invalid configuration in %s", path), err)
		}
	}

	applyEnv(config)

	if config.Model == "" {
		config.Model = defaultModel
	}
	if config.APIURL == "" {
		config.APIURL = defaultAPIURL
	}

	if config.APIKey == "" {
		return nil, apperrors.New(apperrors.CodeConfig,
			"API key is required (set api_key in the config file or OPENAI_API_KEY/GEMINI_API_KEY)")
	}

	return config, nil
}

// applyEnv applies environment overrides. OPENAI_API_KEY wins over
// GEMINI_API_KEY; the latter switches endpoint and model to Gemini unless
// they were configured explicitly.
func applyEnv(config *Config) {
	if val := os.Getenv("OPENAI_API_KEY"); val != "" {
		config.APIKey = val
	} else if val := os.Getenv("GEMINI_API_KEY"); val != "" {
		config.APIKey = val
		if config.APIURL == defaultAPIURL || config.APIURL == "" {
			config.APIURL = GeminiAPIURL
		}
		if config.Model == defaultModel || config.Model == "" {
			config.Model = GeminiModel
		}
	}

	if val := os.Getenv("OPENAI_API_URL"); val != "" {
		config.APIURL = val
	}
	if val := os.Getenv("TOOLLOOP_MODEL"); val != "" {
		config.Model = val
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// ToolLimitsConfig returns tool limits for runtime enforcement.
func (c *Config) ToolLimitsConfig() tools.Limits {
	var timeout time.Duration
	if c.ToolTimeouts.RunScriptSeconds > 0 {
		timeout = time.Duration(c.ToolTimeouts.RunScriptSeconds) * time.Second
	}
	return tools.Limits{
		MaxReadChars:        c.ToolLimits.MaxReadChars,
		MaxFileSizeBytes:    c.ToolLimits.MaxFileSizeBytes,
		MaxDirectoryEntries: c.ToolLimits.MaxDirectoryEntries,
		ScriptTimeout:       timeout,
	}
}

// ToolOutputFiltersConfig returns output filter configuration for tools.
func (c *Config) ToolOutputFiltersConfig() tools.OutputFilterConfig {
	return tools.OutputFilterConfig{
		MaxChars:     c.ToolOutputFilters.MaxChars,
		StripANSI:    c.ToolOutputFilters.StripANSI,
		StripControl: c.ToolOutputFilters.StripControl,
	}
}

// ConfirmationList returns the tools gated by interactive approval.
func (c *Config) ConfirmationList() []string {
	return append([]string{}, c.Tools.RequireConfirmation...)
}

// ValidationWarning represents a non-fatal configuration issue
type ValidationWarning struct {
	Field   string
	Message string
}

// Validate checks the configuration for common issues and returns warnings
func (c *Config) Validate(registry *tools.Registry) []ValidationWarning {
	var warnings []ValidationWarning

	// OpenAI expects 0-2
	if c.Temperature != nil {
		temp := *c.Temperature
		if temp < 0 || temp > 2 {
			warnings = append(warnings, ValidationWarning{
				Field:   "temperature",
				Message: fmt.Sprintf("temperature %.2f is outside recommended range [0, 2]", temp),
			})
		}
	}

	if c.MaxTokens != nil {
		tokens := *c.MaxTokens
		if tokens <= 0 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d must be positive", tokens),
			})
		}
		if tokens > 128000 {
			warnings = append(warnings, ValidationWarning{
				Field:   "max_tokens",
				Message: fmt.Sprintf("max_tokens %d exceeds typical model limits", tokens),
			})
		}
	}

	if c.ModelRequestsPerMinute < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "model_requests_per_minute",
			Message: fmt.Sprintf("model_requests_per_minute %d is negative, rate limiting disabled", c.ModelRequestsPerMinute),
		})
	}

	if c.ToolTimeouts.RunScriptSeconds < 0 {
		warnings = append(warnings, ValidationWarning{
			Field:   "tool_timeouts.run_script_seconds",
			Message: fmt.Sprintf("run_script_seconds %d is negative, using default", c.ToolTimeouts.RunScriptSeconds),
		})
	}

	if registry != nil {
		for _, name := range c.Tools.RequireConfirmation {
			if _, ok := registry.Lookup(name); !ok {
				warnings = append(warnings, ValidationWarning{
					Field:   "tools.require_confirmation",
					Message: fmt.Sprintf("tool %q in require_confirmation list is not registered (known: %s)",
						name, strings.Join(registry.Names(), ", ")),
				})
			}
		}
	}

	return warnings
}
