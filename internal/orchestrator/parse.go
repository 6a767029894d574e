package orchestrator

import (
	"regexp"
	"strings"
)

var (
	toolCallRE = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	callRE     = regexp.MustCompile(`(?s)^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\((.*)\)\s*$`)
	argRE      = regexp.MustCompile(`"((?:[^"\\]|\\.)*)"|'((?:[^'\\]|\\.)*)'`)
)

// ToolCall is one parsed tool invocation from a model response.
type ToolCall struct {
	Tool string            `json:"tool"`
	Args map[string]string `json:"args,omitempty"`
}

// ParamNamer maps positional arguments onto declared parameter names.
// *tools.Registry satisfies it.
type ParamNamer interface {
	ParamNames(tool string) []string
}

// ParseToolCalls extracts every <tool_call>name("arg")</tool_call> block from
// text. Positional quoted arguments are mapped onto the tool's declared
// parameter names in order. A malformed block is returned with the raw body
// as the tool name so dispatch rejects it and the model hears about it.
func ParseToolCalls(text string, names ParamNamer) []ToolCall {
	matches := toolCallRE.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	calls := make([]ToolCall, 0, len(matches))
	for _, m := range matches {
		body := m[1]
		call := callRE.FindStringSubmatch(body)
		if call == nil {
			calls = append(calls, ToolCall{Tool: truncateRaw(body)})
			continue
		}

		name := call[1]
		args := map[string]string{}
		params := names.ParamNames(name)
		for i, arg := range argRE.FindAllStringSubmatch(call[2], -1) {
			if i >= len(params) {
				break
			}
			value := arg[1]
			if arg[2] != "" {
				value = arg[2]
			}
			args[params[i]] = unescape(value)
		}
		calls = append(calls, ToolCall{Tool: name, Args: args})
	}
	return calls
}

// StripToolCalls removes all tool call markup from text.
func StripToolCalls(text string) string {
	return strings.TrimSpace(toolCallRE.ReplaceAllString(text, ""))
}

func truncateRaw(s string) string {
	s = strings.TrimSpace(s)
	if runes := []rune(s); len(runes) > 60 {
		return string(runes[:60])
	}
	return s
}

func unescape(s string) string {
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\'`, `'`)
	return strings.ReplaceAll(s, `\\`, `\`)
}
