// Package tools defines the assistant's callable tools and the registry the
// orchestrator dispatches through.
package tools

import (
	"context"
	"fmt"
	"strings"
)

// Error is a tool-level failure. The orchestrator feeds it back to the model
// instead of failing the request.
type Error struct {
	Tool    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

// Param describes one named tool parameter.
type Param struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tool is one callable capability exposed to the model.
type Tool interface {
	Name() string
	Description() string
	Params() []Param
	Invoke(ctx context.Context, args map[string]string) (string, error)
}

// Definition is the serializable description of a tool, served by the API
// and mirrored as MCP tools.
type Definition struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Params      []Param `json:"params"`
}

// Registry holds the registered tools in registration order.
type Registry struct {
	ordered []Tool
	byName  map[string]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{byName: make(map[string]Tool)}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool. A tool re-registered under the same name replaces
// the earlier one.
func (r *Registry) Register(t Tool) {
	if _, exists := r.byName[t.Name()]; !exists {
		r.ordered = append(r.ordered, t)
	} else {
		for i, existing := range r.ordered {
			if existing.Name() == t.Name() {
				r.ordered[i] = t
				break
			}
		}
	}
	r.byName[t.Name()] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Invoke dispatches to the named tool. Unknown names become a tool Error so
// the orchestrator can report them back to the model.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		return "", &Error{Tool: name, Message: "unknown tool"}
	}
	return t.Invoke(ctx, args)
}

// Definitions lists all registered tools in registration order.
func (r *Registry) Definitions() []Definition {
	defs := make([]Definition, 0, len(r.ordered))
	for _, t := range r.ordered {
		defs = append(defs, Definition{
			Name:        t.Name(),
			Description: t.Description(),
			Params:      t.Params(),
		})
	}
	return defs
}

// Describe renders a plain-text tool listing for the system prompt.
func (r *Registry) Describe() string {
	var b strings.Builder
	for _, t := range r.ordered {
		names := make([]string, 0, len(t.Params()))
		for _, p := range t.Params() {
			names = append(names, p.Name)
		}
		fmt.Fprintf(&b, "- %s(%s): %s\n", t.Name(), strings.Join(names, ", "), t.Description())
	}
	return b.String()
}

// ParamNames lists the declared parameter names of a tool in order. Unknown
// tools yield nil.
func (r *Registry) ParamNames(name string) []string {
	t, ok := r.byName[name]
	if !ok {
		return nil
	}
	params := t.Params()
	names := make([]string, 0, len(params))
	for _, p := range params {
		names = append(names, p.Name)
	}
	return names
}

// Len reports the number of registered tools.
func (r *Registry) Len() int { return len(r.ordered) }
