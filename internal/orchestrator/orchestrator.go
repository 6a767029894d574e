// Package orchestrator turns a user query into a final answer: it assembles
// the system prompt, routes the conversation to a provider, and runs the
// bounded tool call loop.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jheinecke/valet/internal/llm"
	"github.com/jheinecke/valet/internal/tools"
)

// DefaultSystemPrompt is used when no prompt file is configured. It documents
// the textual tool call convention the parser understands.
const DefaultSystemPrompt = `You are a helpful personal assistant.

When you need a tool, emit exactly one call per tool in this form:
<tool_call>tool_name("argument")</tool_call>
Multiple arguments are comma-separated quoted strings. After receiving tool
results, answer the user directly without further tool calls unless more
information is genuinely required.`

const (
	defaultContextLimit  = 5
	defaultMaxToolRounds = 3
	defaultTemperature   = 0.7
	defaultMaxTokens     = 2000
)

// ContextBuilder supplies the learning context block. *learning.Assembler
// satisfies it.
type ContextBuilder interface {
	BuildContext(limit int) (string, error)
}

// RouterClient routes a conversation to a provider. *llm.Router satisfies it.
type RouterClient interface {
	Route(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Result, error)
}

// Config tunes the orchestrator. Zero values fall back to defaults.
type Config struct {
	SystemPrompt  string
	Persona       string
	ContextLimit  int
	MaxToolRounds int
	Temperature   float64
	MaxTokens     int
}

// ToolResult records one executed tool call and its outcome.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result string `json:"result"`
}

// Answer is the orchestrator's final output for one query.
type Answer struct {
	Response    string       `json:"response"`
	ToolCalls   []ToolCall   `json:"tool_calls"`
	ToolResults []ToolResult `json:"tool_results"`
	Model       string       `json:"model"`
	Provider    string       `json:"provider"`
	UsedRole    llm.Role     `json:"used_role"`
}

// Orchestrator wires the learning assembler, the provider router and the
// tool registry into the query pipeline.
type Orchestrator struct {
	learning ContextBuilder
	router   RouterClient
	registry *tools.Registry
	cfg      Config
	log      *slog.Logger
}

func New(learning ContextBuilder, router RouterClient, registry *tools.Registry, cfg Config) *Orchestrator {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.ContextLimit <= 0 {
		cfg.ContextLimit = defaultContextLimit
	}
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = defaultMaxToolRounds
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &Orchestrator{
		learning: learning,
		router:   router,
		registry: registry,
		cfg:      cfg,
		log:      slog.Default(),
	}
}

// Answer runs one query end to end. history carries prior turns of the same
// conversation, oldest first.
func (o *Orchestrator) Answer(ctx context.Context, query string, history []llm.Message) (Answer, error) {
	log := o.log.With("request_id", uuid.NewString())

	// Learning context is best effort: a broken feedback store must not
	// take queries down with it.
	learningBlock := ""
	if o.learning != nil {
		block, err := o.learning.BuildContext(o.cfg.ContextLimit)
		if err != nil {
			log.Warn("learning context unavailable", "error", err)
		} else {
			learningBlock = block
		}
	}

	messages := o.composeMessages(query, history, learningBlock)
	opts := llm.Options{Temperature: o.cfg.Temperature, MaxTokens: o.cfg.MaxTokens}

	result, err := o.router.Route(ctx, messages, opts)
	if err != nil {
		return Answer{}, fmt.Errorf("route query: %w", err)
	}

	answer := Answer{
		ToolCalls:   []ToolCall{},
		ToolResults: []ToolResult{},
	}

	text := result.Text
	for round := 0; ; round++ {
		calls := ParseToolCalls(text, o.registry)
		if len(calls) == 0 {
			answer.Response = text
			break
		}
		if round >= o.cfg.MaxToolRounds {
			log.Warn("tool round cap reached", "rounds", round)
			stripped := StripToolCalls(text)
			if stripped == "" {
				stripped = text
			}
			answer.Response = stripped
			break
		}

		results := make([]string, 0, len(calls))
		for _, call := range calls {
			answer.ToolCalls = append(answer.ToolCalls, call)
			out, err := o.registry.Invoke(ctx, call.Tool, call.Args)
			if err != nil {
				log.Warn("tool failed", "tool", call.Tool, "error", err)
				out = fmt.Sprintf("error: %v", err)
			}
			answer.ToolResults = append(answer.ToolResults, ToolResult{Tool: call.Tool, Result: out})
			results = append(results, fmt.Sprintf("%s: %s", call.Tool, out))
		}

		messages = append(messages,
			llm.Message{Role: "assistant", Content: text},
			llm.Message{Role: "user", Content: "Tool results:\n" + strings.Join(results, "\n") +
				"\nPlease formulate a final answer for the user based on these results."},
		)

		result, err = o.router.Route(ctx, messages, opts)
		if err != nil {
			return Answer{}, fmt.Errorf("route tool follow-up: %w", err)
		}
		text = result.Text
	}

	answer.Model = result.Model
	answer.Provider = result.Provider
	answer.UsedRole = result.Role
	return answer, nil
}

func (o *Orchestrator) composeMessages(query string, history []llm.Message, learningBlock string) []llm.Message {
	var b strings.Builder
	b.WriteString(o.cfg.SystemPrompt)
	if o.cfg.Persona != "" {
		b.WriteString("\n\n")
		b.WriteString(o.cfg.Persona)
	}
	if o.registry.Len() > 0 {
		b.WriteString("\n\nAvailable tools:\n")
		b.WriteString(o.registry.Describe())
	}
	if learningBlock != "" {
		b.WriteString("\n\n")
		b.WriteString(learningBlock)
		b.WriteString("\nTake these earlier corrections and this feedback into account in your answer.")
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: "system", Content: b.String()})
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: "user", Content: query})
	return messages
}
