package graph

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
)

// Schema returns the JSON Schema describing the serialized Graph IR.
func Schema() *jsonschema.Schema {
	kinds := make([]any, 0, len(Kinds))
	for _, k := range Kinds {
		kinds = append(kinds, string(k))
	}

	nodeRef := &jsonschema.Schema{Ref: "#/$defs/node"}

	input := &jsonschema.Schema{
		Type:        "object",
		Description: "A named input: either a link to another node id or literal source text.",
		Properties: map[string]*jsonschema.Schema{
			"name":  {Type: "string", Description: "Input slot (value, target, left, right, test, iter, argN)"},
			"link":  {Type: "string", Description: "Id of the node producing the value"},
			"value": {Type: "string", Description: "Literal source text"},
		},
		Required: []string{"name"},
	}

	node := &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"id":              {Type: "string", Description: "Unique node id"},
			"type":            {Type: "string", Enum: kinds, Description: "Node kind"},
			"value":           {Type: "string", Description: "Assigned variable (variable_assign) or operator symbol (binary_op)"},
			"func_name":       {Type: "string", Description: "Callee name (call_function)"},
			"target_variable": {Type: "string", Description: "Loop variable (for_loop)"},
			"inputs":          {Type: "array", Items: input},
			"body":            {Type: "array", Items: nodeRef},
			"orelse":          {Type: "array", Items: nodeRef},
		},
		Required: []string{"id", "type"},
	}

	return &jsonschema.Schema{
		Title:       "Plexus Graph IR",
		Description: "A program as a collection of typed nodes connected by named inputs.",
		Type:        "object",
		Properties: map[string]*jsonschema.Schema{
			"nodes":       {Type: "array", Items: nodeRef},
			"connections": {Type: "array", Description: "Reserved, always empty"},
		},
		Required: []string{"nodes"},
		Defs: map[string]*jsonschema.Schema{
			"node": node,
		},
	}
}

var (
	resolveOnce sync.Once
	resolved    *jsonschema.Resolved
	resolveErr  error
)

// Validate checks a JSON document against Schema. It reports structural
// problems only; semantic checks such as dangling links belong to Index.
func Validate(data []byte) error {
	resolveOnce.Do(func() {
		resolved, resolveErr = Schema().Resolve(nil)
	})
	if resolveErr != nil {
		return fmt.Errorf("resolving graph schema: %w", resolveErr)
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return fmt.Errorf("decoding json graph: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedGraph, err)
	}
	return nil
}
