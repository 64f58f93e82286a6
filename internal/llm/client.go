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

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"toolloop/internal/agent"
	"toolloop/internal/config"
	"toolloop/internal/tools"
)

// ErrNoChoices is returned when the service answers without any choice.
var ErrNoChoices = errors.New("model returned no choices")

// Client adapts an OpenAI-compatible chat completion service to agent.Model.
type Client struct {
	chat        ChatClient
	model       string
	temperature *float32
	maxTokens   *int
	limiter     *rate.Limiter
	recorder    Recorder
	logger      zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the client logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRecorder reports request outcomes and token usage.
func WithRecorder(rec Recorder) Option {
	return func(c *Client) {
		c.recorder = rec
	}
}

// WithRequestsPerMinute limits how often the service is called. Zero or a
// negative value disables the limit.
func WithRequestsPerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

// NewClient creates a client for the endpoint described by cfg.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.APIURL != "" {
		clientConfig.BaseURL = cfg.APIURL
		clientConfig.HTTPClient = &http.Client{}
	}
	return NewClientWithChat(cfg, openai.NewClientWithConfig(clientConfig), opts...)
}

// NewClientWithChat creates a client over an existing ChatClient (for testing).
func NewClientWithChat(cfg *config.Config, chat ChatClient, opts ...Option) *Client {
	c := &Client{
		chat:        chat,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      zerolog.Nop(),
	}
	WithRequestsPerMinute(cfg.ModelRequestsPerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Complete sends the conversation to the service and maps the first choice
// back to an agent.Reply.
func (c *Client) Complete(ctx context.Context, req agent.Request) (agent.Reply, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return agent.Reply{}, err
		}
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: Messages(req.System, req.History),
		Tools:    Tools(req.Tools),
	}
	if c.temperature != nil {
		chatReq.Temperature = *c.temperature
	}
	if c.maxTokens != nil {
		chatReq.MaxTokens = *c.maxTokens
	}

	c.logger.Debug().
		Str("model", c.model).
		Int("messages", len(chatReq.Messages)).
		Int("tools", len(chatReq.Tools)).
		Msg("sending chat completion request")

	resp, err := c.chat.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		c.observe("error", openai.Usage{})
		return agent.Reply{}, err
	}
	if len(resp.Choices) == 0 {
		c.observe("error", resp.Usage)
		return agent.Reply{}, ErrNoChoices
	}
	c.observe("ok", resp.Usage)

	msg := resp.Choices[0].Message
	reply := agent.Reply{
		Text:  msg.Content,
		Calls: toolCalls(msg.ToolCalls),
		Usage: agent.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	c.logger.Debug().
		Int("tool_calls", len(reply.Calls)).
		Int("prompt_tokens", reply.Usage.PromptTokens).
		Int("completion_tokens", reply.Usage.CompletionTokens).
		Str("finish_reason", string(resp.Choices[0].FinishReason)).
		Msg("received chat completion")
	return reply, nil
}

func (c *Client) observe(outcome string, usage openai.Usage) {
	if c.recorder != nil {
		c.recorder.ObserveModelRequest(outcome, usage.PromptTokens, usage.CompletionTokens)
	}
}

// toolCalls converts provider tool calls. Missing IDs are synthesized so
// results can still be paired with their requests. Arguments that are not
// valid JSON are left undecoded for the dispatcher to reject.
func toolCalls(calls []openai.ToolCall) []tools.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]tools.ToolCall, 0, len(calls))
	for _, tc := range calls {
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		call := tools.ToolCall{
			ID:           id,
			Name:         tc.Function.Name,
			RawArguments: tc.Function.Arguments,
		}
		if tc.Function.Arguments == "" {
			call.Arguments = map[string]interface{}{}
		} else {
			var args map[string]interface{}
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err == nil {
				if args == nil {
					args = map[string]interface{}{}
				}
				call.Arguments = args
			}
		}
		out = append(out, call)
	}
	return out
}

// Messages renders the system prompt and history as chat messages. A tool
// turn becomes one tool message per result, paired by call ID.
func Messages(system string, history []agent.Turn) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		msgs = append(msgs, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, turn := range history {
		switch turn.Role {
		case agent.RoleUser:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: turn.Text,
			})
		case agent.RoleModel:
			msgs = append(msgs, openai.ChatCompletionMessage{
				Role:      openai.ChatMessageRoleAssistant,
				Content:   turn.Text,
				ToolCalls: openAIToolCalls(turn.Calls),
			})
		case agent.RoleTool:
			for _, result := range turn.Results {
				msgs = append(msgs, openai.ChatCompletionMessage{
					Role:       openai.ChatMessageRoleTool,
					Content:    result.Content(),
					Name:       result.Name,
					ToolCallID: result.ID,
				})
			}
		}
	}
	return msgs
}

func openAIToolCalls(calls []tools.ToolCall) []openai.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]openai.ToolCall, 0, len(calls))
	for _, call := range calls {
		out = append(out, openai.ToolCall{
			ID:   call.ID,
			Type: openai.ToolTypeFunction,
			Function: openai.FunctionCall{
				Name:      call.Name,
				Arguments: rawArguments(call),
			},
		})
	}
	return out
}

func rawArguments(call tools.ToolCall) string {
	if call.RawArguments != "" {
		return call.RawArguments
	}
	if call.Arguments == nil {
		return "{}"
	}
	raw, err := json.Marshal(call.Arguments)
	if err != nil {
		return fmt.Sprintf("%v", call.Arguments)
	}
	return string(raw)
}

// Tools advertises specs as OpenAI function tools.
func Tools(specs []tools.Spec) []openai.Tool {
	defs := make([]openai.Tool, 0, len(specs))
	for _, spec := range specs {
		defs = append(defs, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        spec.Name,
				Description: spec.Description,
				Parameters:  spec.Parameters,
			},
		})
	}
	return defs
}

var _ agent.Model = (*Client)(nil)
