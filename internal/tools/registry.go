// Package tools implements the tool registry the agent orchestrator and
// workflow engine dispatch through: each tool carries a name, a
// human-readable description surfaced to the model, a JSON Schema for its
// arguments, and an invocation function. Argument validation happens once,
// centrally, rather than being re-implemented by every handler.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"agentflow/internal/errs"
)

// Handler executes a tool call with already-validated arguments.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is one entry in the registry: metadata plus its compiled schema and
// handler.
type Tool struct {
	Name        string
	Description string
	Schema      map[string]any

	handler  Handler
	compiled *jsonschema.Schema
}

// Registry holds the tool surface available to the agent orchestrator and
// workflow engine. It is safe for concurrent read access after
// registration completes; Register is not itself safe for concurrent use.
type Registry struct {
	tools map[string]*Tool
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register compiles schema (a JSON Schema document, nil meaning "no
// arguments") and adds name to the registry. Registering a name a second
// time replaces the previous definition, mirroring the reference
// implementation's "last definition wins" behavior for tool registration
// (distinct from workflow registration, which rejects duplicates).
func (r *Registry) Register(name, description string, schema map[string]any, handler Handler) error {
	if name == "" {
		return errs.New(errs.KindValidation, "tool name is required")
	}
	if handler == nil {
		return errs.Newf(errs.KindValidation, "tool %q requires a handler", name)
	}

	t := &Tool{Name: name, Description: description, Schema: schema, handler: handler}
	if schema != nil {
		compiled, err := compileSchema(schema)
		if err != nil {
			return errs.Wrapf(errs.KindValidation, err, "tool %q has an invalid argument schema", name)
		}
		t.compiled = compiled
	}
	r.tools[name] = t
	return nil
}

func compileSchema(schema map[string]any) (*jsonschema.Schema, error) {
	data, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytesReaderOf(data))
	if err != nil {
		return nil, err
	}
	const resource = "agentflow://tool-args"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resource, doc); err != nil {
		return nil, err
	}
	return c.Compile(resource)
}

// List returns every registered tool's metadata, without handlers, for
// surfacing to a model's tool-use configuration.
func (r *Registry) List() []Tool {
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, Tool{Name: t.Name, Description: t.Description, Schema: t.Schema})
	}
	return out
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.tools[name]
	return ok
}

// Invoke validates args against the tool's schema (if any) and dispatches
// to its handler. An unknown tool name is a NotFound error; a schema
// violation is a Validation error whose Cause carries the validator's
// report of the offending field(s).
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, errs.Newf(errs.KindNotFound, "tool %q is not registered", name)
	}
	if t.compiled != nil {
		if err := t.compiled.Validate(toAny(args)); err != nil {
			return nil, errs.Wrapf(errs.KindValidation, err, "tool %q arguments failed validation", name)
		}
	}
	return t.handler(ctx, args)
}

func bytesReaderOf(data []byte) io.Reader { return bytes.NewReader(data) }

func toAny(args map[string]any) any {
	if args == nil {
		return map[string]any{}
	}
	return args
}
