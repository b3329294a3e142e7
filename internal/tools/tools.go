// Package tools is the registry of tools the model may call. Each tool
// resolves its parameter decoding and result encoding when it is built.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/IMax153/netlify-ai-gateway/internal/llm"
)

// ErrInvalidParams is wrapped when a tool call's parameters do not decode
// into, or validate against, the tool's parameter type.
var ErrInvalidParams = errors.New("invalid tool parameters")

// ErrUnknownTool is returned by Toolkit.Decode for undeclared tool names.
var ErrUnknownTool = errors.New("unknown tool")

// Invocation runs a decoded tool call and returns its JSON encoded result.
type Invocation func(ctx context.Context) (json.RawMessage, error)

// Tool is a named, self-describing tool.
type Tool interface {
	Name() string
	Definition() llm.ToolDefinition
	// Decode checks params and binds them to the handler.
	Decode(params json.RawMessage) (Invocation, error)
}

// Handler implements a tool for decoded params P with result R.
type Handler[P, R any] func(ctx context.Context, params P) (R, error)

type typedTool[P, R any] struct {
	def     llm.ToolDefinition
	handler Handler[P, R]
}

// New builds a tool. schema is advertised to the model; P is what the
// params are decoded into, with unknown fields rejected and struct tags
// checked by the validator.
func New[P, R any](name, description string, schema llm.JSONSchema, handler Handler[P, R]) Tool {
	if schema == nil {
		schema = llm.JSONSchema{"type": "object", "properties": map[string]any{}}
	}
	return &typedTool[P, R]{
		def:     llm.ToolDefinition{Name: name, Description: description, Parameters: schema},
		handler: handler,
	}
}

func (t *typedTool[P, R]) Name() string                   { return t.def.Name }
func (t *typedTool[P, R]) Definition() llm.ToolDefinition { return t.def }

func (t *typedTool[P, R]) Decode(raw json.RawMessage) (Invocation, error) {
	var params P
	dec := json.NewDecoder(bytes.NewReader(llm.RawParams(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		return nil, fmt.Errorf("%w for %s: %v", ErrInvalidParams, t.def.Name, err)
	}
	if isStruct(params) {
		if err := getValidator().Struct(params); err != nil {
			return nil, fmt.Errorf("%w for %s: %s", ErrInvalidParams, t.def.Name, formatValidation(err))
		}
	}

	return func(ctx context.Context) (json.RawMessage, error) {
		result, err := t.handler(ctx, params)
		if err != nil {
			return nil, err
		}
		encoded, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s result: %w", t.def.Name, err)
		}
		return encoded, nil
	}, nil
}

// Toolkit indexes tools by name.
type Toolkit struct {
	tools map[string]Tool
	order []string
}

func NewToolkit(tools ...Tool) *Toolkit {
	tk := &Toolkit{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, dup := tk.tools[t.Name()]; !dup {
			tk.order = append(tk.order, t.Name())
		}
		tk.tools[t.Name()] = t
	}
	return tk
}

func (tk *Toolkit) Get(name string) (Tool, bool) {
	t, ok := tk.tools[name]
	return t, ok
}

// Names returns the tool names in sorted order.
func (tk *Toolkit) Names() []string {
	names := make([]string, len(tk.order))
	copy(names, tk.order)
	sort.Strings(names)
	return names
}

// Definitions returns the tool definitions in registration order.
func (tk *Toolkit) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(tk.order))
	for _, name := range tk.order {
		defs = append(defs, tk.tools[name].Definition())
	}
	return defs
}

// Decode looks up the named tool and decodes params for it.
func (tk *Toolkit) Decode(name string, params json.RawMessage) (Invocation, error) {
	t, ok := tk.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return t.Decode(params)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
	})
	return validate
}

func isStruct(v any) bool {
	t := reflect.TypeOf(v)
	return t != nil && t.Kind() == reflect.Struct
}

func formatValidation(err error) string {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err.Error()
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("Field '%s' failed on the '%s' tag", fieldErr.Field(), fieldErr.Tag()))
	}
	return strings.Join(msgs, "; ")
}
