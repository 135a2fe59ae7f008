// Package tools holds the document actions the copilot can call. Each tool
// reads or edits one stored editor state.
package tools

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/cfilipov/copilot-lexical/internal/editorstate"
	"github.com/cfilipov/copilot-lexical/internal/models"
)

// DefaultDocumentID is the document the page edits when none is named.
const DefaultDocumentID = "copilot-lexical-document"

var (
	ErrUnknownTool = errors.New("unknown tool")
	ErrInvalidArgs = errors.New("invalid tool arguments")
)

// Parameter describes one named argument of a tool.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required,omitempty"`
}

// Tool is one action in the registry.
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`

	readOnly bool
	run      func(s *editorstate.State, a Args) (int, error)
}

// Store is the part of the document store the tools need.
type Store interface {
	GetOrEmpty(id string) (*models.Document, error)
	Update(id string, fn func(*editorstate.State) error) (*models.Document, error)
}

// Result is what a tool run reports back to the agent.
type Result struct {
	Tool     string           `json:"tool"`
	Document *models.Document `json:"document"`
	Text     string           `json:"text"`
	Changed  bool             `json:"changed"`
	Index    int              `json:"index"`
}

type Registry struct {
	tools  []Tool
	byName map[string]int
}

// NewRegistry returns a registry holding every document tool.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]int)}
	for _, t := range builtin() {
		r.byName[t.Name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r
}

// List returns the tools in registration order.
func (r *Registry) List() []Tool {
	return slices.Clone(r.tools)
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.byName[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

// Execute runs the named tool against document docID. rawArgs is a JSON
// object; empty input counts as no arguments. Mutating tools go through
// Store.Update so that a failed run leaves the document untouched.
func (r *Registry) Execute(store Store, docID, name string, rawArgs []byte) (*Result, error) {
	tool, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	args, err := ParseArgs(rawArgs)
	if err != nil {
		return nil, err
	}
	if docID == "" {
		docID = DefaultDocumentID
	}

	res := &Result{Tool: name, Index: -1}
	if tool.readOnly {
		doc, err := store.GetOrEmpty(docID)
		if err != nil {
			return nil, err
		}
		res.Document = doc
		res.Text = doc.State.TextContent()
		return res, nil
	}

	doc, err := store.Update(docID, func(s *editorstate.State) error {
		idx, err := tool.run(s, args)
		if err != nil {
			return err
		}
		res.Index = idx
		return nil
	})
	if err != nil {
		return nil, err
	}
	res.Document = doc
	res.Text = doc.State.TextContent()
	res.Changed = true

	slog.Info("tool executed", "tool", name, "document", docID, "revision", doc.Revision)
	return res, nil
}

// Args are the decoded arguments of one tool call.
type Args map[string]any

// ParseArgs decodes a JSON object of arguments.
func ParseArgs(raw []byte) (Args, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return Args{}, nil
	}
	var a Args
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgs, err)
	}
	if a == nil {
		a = Args{}
	}
	return a, nil
}

// String returns the named string argument. A required argument must be
// present and non-empty.
func (a Args) String(name string, required bool) (string, error) {
	v, ok := a[name]
	if !ok || v == nil {
		if required {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidArgs, name)
		}
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidArgs, name)
	}
	if required && s == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgs, name)
	}
	return s, nil
}

// Int returns the named integer argument or def when absent.
func (a Args) Int(name string, def int) (int, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return def, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidArgs, name)
	}
	return int(f), nil
}

func (a Args) Bool(name string) (bool, error) {
	v, ok := a[name]
	if !ok || v == nil {
		return false, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidArgs, name)
	}
	return b, nil
}

// Strings returns a required, non-empty list of strings.
func (a Args) Strings(name string) ([]string, error) {
	list, ok := a[name].([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: %s must be a non-empty list of strings", ErrInvalidArgs, name)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be a non-empty list of strings", ErrInvalidArgs, name)
		}
		out = append(out, s)
	}
	return out, nil
}

// Rows returns a required, non-empty list of string rows.
func (a Args) Rows(name string) ([][]string, error) {
	list, ok := a[name].([]any)
	if !ok || len(list) == 0 {
		return nil, fmt.Errorf("%w: %s must be a non-empty list of rows", ErrInvalidArgs, name)
	}
	out := make([][]string, 0, len(list))
	for i := range list {
		row, err := Args{"row": list[i]}.Strings("row")
		if err != nil {
			return nil, fmt.Errorf("%w: %s[%d] must be a non-empty list of strings", ErrInvalidArgs, name, i)
		}
		out = append(out, row)
	}
	return out, nil
}
