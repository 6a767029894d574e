package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/jheinecke/valet/internal/storage"
)

// FactStore is the subset of the storage layer the fact tools need.
type FactStore interface {
	GetFact(key string) (storage.Fact, error)
	SetFact(key, value string) (storage.Fact, error)
}

type getFactTool struct {
	store FactStore
}

// NewGetFact returns the tool the model calls to read a stored fact.
func NewGetFact(store FactStore) Tool {
	return &getFactTool{store: store}
}

func (t *getFactTool) Name() string { return "get_fact" }

func (t *getFactTool) Description() string {
	return "Look up a stored personal fact by its key, e.g. get_fact(\"insurance.building.sum\")"
}

func (t *getFactTool) Params() []Param {
	return []Param{{Name: "key", Description: "fact key to look up"}}
}

func (t *getFactTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	key := args["key"]
	if key == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required argument: key"}
	}
	f, err := t.store.GetFact(key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", &Error{Tool: t.Name(), Message: fmt.Sprintf("fact not found: %s", key)}
	}
	if err != nil {
		return "", fmt.Errorf("get fact %q: %w", key, err)
	}
	return fmt.Sprintf("%s = %s", f.Key, f.Value), nil
}

type setFactTool struct {
	store FactStore
}

// NewSetFact returns the tool the model calls to store a fact.
func NewSetFact(store FactStore) Tool {
	return &setFactTool{store: store}
}

func (t *setFactTool) Name() string { return "set_fact" }

func (t *setFactTool) Description() string {
	return "Store a personal fact under a key, e.g. set_fact(\"car.plate\", \"M-AB 1234\")"
}

func (t *setFactTool) Params() []Param {
	return []Param{
		{Name: "key", Description: "fact key to store under"},
		{Name: "value", Description: "fact value"},
	}
}

func (t *setFactTool) Invoke(ctx context.Context, args map[string]string) (string, error) {
	key, value := args["key"], args["value"]
	if key == "" || value == "" {
		return "", &Error{Tool: t.Name(), Message: "missing required arguments: key, value"}
	}
	f, err := t.store.SetFact(key, value)
	if err != nil {
		return "", fmt.Errorf("set fact %q: %w", key, err)
	}
	return fmt.Sprintf("stored %s = %s", f.Key, f.Value), nil
}
