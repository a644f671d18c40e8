package advisor

import "context"

// Schema is the subset of JSON schema used to declare tool parameters.
type Schema struct {
	Type        string             `json:"type"` // object | string | number | integer | array
	Description string             `json:"description,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Required    []string           `json:"required,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
}

type ToolSpec struct {
	Name        string
	Description string
	Parameters  *Schema
}

type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

type FunctionResult struct {
	ID       string
	Name     string
	Response map[string]any
}

const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Turn is one message of the conversation. A model turn carries either text
// or function calls; a user turn carries either text or function results.
type Turn struct {
	Role    string
	Text    string
	Calls   []FunctionCall
	Results []FunctionResult
}

type ModelRequest struct {
	System  string
	History []Turn
	Tools   []ToolSpec
	// JSON asks the model for a JSON-only answer.
	JSON bool
}

type ModelResponse struct {
	Text  string
	Calls []FunctionCall
}

// Model is a chat model able to call functions.
type Model interface {
	Generate(ctx context.Context, req ModelRequest) (ModelResponse, error)
}
