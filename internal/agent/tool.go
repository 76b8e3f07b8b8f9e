package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/agentcore/pkg/models"
)

// Durability controls timeout and retry behavior for one tool.
type Durability struct {
	// Enabled turns the retry envelope on.
	Enabled bool

	// Independent marks the tool safe to run concurrently with other
	// independent tools in the same batch.
	Independent bool

	// RetryCount is the number of additional attempts after the first.
	RetryCount int

	// TimeoutMS bounds one attempt, in milliseconds. Zero means the
	// executor default applies.
	TimeoutMS int
}

// DataEmitter publishes transient data parts to the run stream. Emitted
// parts reach the caller but never re-enter model context.
type DataEmitter interface {
	EmitData(part *models.DataPart)
}

// ToolContext carries per-call state into a tool handler.
type ToolContext struct {
	// WorkspaceRoot is the agent's working directory for relative paths.
	WorkspaceRoot string

	// CallID is the tool call id this execution serves.
	CallID string

	// AgentID identifies the running agent, for logs and team tools.
	AgentID string

	// Emitter publishes data parts. Never nil; non-streaming runs get a
	// discarding emitter.
	Emitter DataEmitter
}

// Handler executes a tool call. The input has already been validated against
// the tool schema. The returned string becomes the tool result output.
type Handler func(ctx context.Context, input json.RawMessage, tc *ToolContext) (string, error)

// Tool is a uniform tool record. Schema is a complete JSON Schema document;
// it is compiled lazily on first validation and cached.
type Tool struct {
	Name          string
	Description   string
	Schema        json.RawMessage
	Handler       Handler
	NeedsApproval bool
	Durability    Durability

	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
}

// Spec returns the provider-facing description of the tool.
func (t *Tool) Spec() ToolSpec {
	return ToolSpec{Name: t.Name, Description: t.Description, Schema: t.Schema}
}

// Clone returns a copy of the tool with independent compiled-schema state.
// Approval wrapping derives new tools rather than mutating registered ones.
func (t *Tool) Clone() *Tool {
	return &Tool{
		Name:          t.Name,
		Description:   t.Description,
		Schema:        t.Schema,
		Handler:       t.Handler,
		NeedsApproval: t.NeedsApproval,
		Durability:    t.Durability,
	}
}

// ValidateInput checks raw input against the tool schema. A nil or empty
// schema accepts any input. Violations come back as validation-failed tool
// errors with the schema path in the message.
func (t *Tool) ValidateInput(raw json.RawMessage) error {
	if len(t.Schema) == 0 {
		return nil
	}
	t.compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		url := fmt.Sprintf("inline://%s.schema.json", t.Name)
		if err := compiler.AddResource(url, bytes.NewReader(t.Schema)); err != nil {
			t.compileErr = err
			return
		}
		t.compiled, t.compileErr = compiler.Compile(url)
	})
	if t.compileErr != nil {
		return NewToolError(ErrCodeValidationFailed, t.Name, "invalid tool schema").WithCause(t.compileErr)
	}

	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return NewToolError(ErrCodeValidationFailed, t.Name, "input is not valid JSON").WithCause(err)
	}
	if err := t.compiled.Validate(doc); err != nil {
		return NewToolError(ErrCodeValidationFailed, t.Name, err.Error()).WithCause(err)
	}
	return nil
}

// discardEmitter drops data parts. Used by non-streaming runs.
type discardEmitter struct{}

func (discardEmitter) EmitData(*models.DataPart) {}
