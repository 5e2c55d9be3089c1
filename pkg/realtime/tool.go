package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/kaptinlin/jsonrepair"
)

// ErrToolExists is returned when a tool name is registered twice.
var ErrToolExists = errors.New("realtime: tool already registered")

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

func (d ToolDefinition) wire() Tool {
	return Tool{Type: "function", Name: d.Name, Description: d.Description, Parameters: d.Parameters}
}

// ToolHandler runs a tool with its parsed arguments. The returned value is
// JSON-encoded and sent back to the model.
type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

type registeredTool struct {
	def     ToolDefinition
	handler ToolHandler
}

// NewTool builds a definition whose parameter schema is inferred from T and
// a handler that decodes the arguments into T before calling fn.
func NewTool[T any](name, description string, fn func(context.Context, T) (any, error)) (ToolDefinition, ToolHandler, error) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return ToolDefinition{}, nil, fmt.Errorf("realtime: schema for tool %s: %w", name, err)
	}
	def := ToolDefinition{Name: name, Description: description, Parameters: schema}
	handler := func(ctx context.Context, args map[string]any) (any, error) {
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("decode arguments: %w", err)
		}
		return fn(ctx, v)
	}
	return def, handler, nil
}

// parseArguments decodes model-produced JSON, repairing it when it is
// syntactically broken.
func parseArguments(raw string) (map[string]any, error) {
	args := map[string]any{}
	if raw == "" {
		return args, nil
	}
	err := json.Unmarshal([]byte(raw), &args)
	if err == nil {
		return args, nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return nil, err
	}
	fixed, rerr := jsonrepair.JSONRepair(raw)
	if rerr != nil {
		return nil, fmt.Errorf("repair arguments: %w", rerr)
	}
	args = map[string]any{}
	if err := json.Unmarshal([]byte(fixed), &args); err != nil {
		return nil, err
	}
	return args, nil
}

// runTool invokes handler inside a failure boundary: errors and panics
// become an {"error": ...} result.
func runTool(ctx context.Context, t *registeredTool, rawArgs string) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tool %s panicked: %v", t.def.Name, r)
			output = errorOutput(err)
		}
	}()

	args, err := parseArguments(rawArgs)
	if err != nil {
		err = fmt.Errorf("tool %s: parse arguments: %w", t.def.Name, err)
		return errorOutput(err), err
	}
	result, err := t.handler(ctx, args)
	if err != nil {
		return errorOutput(err), err
	}
	b, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("tool %s: encode result: %w", t.def.Name, err)
		return errorOutput(err), err
	}
	return string(b), nil
}

func errorOutput(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}
