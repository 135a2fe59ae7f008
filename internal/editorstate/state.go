// Package editorstate reads, validates and edits the serialized editor state
// that the browser editor saves and restores.
//
// A serialized state is a JSON object {"root": {...}}. Every node carries a
// "type" that must be registered (see nodes.go); element nodes carry a
// "children" array and text nodes a "text" string. Unknown fields are kept
// as-is so a state survives a load/save cycle through the server unchanged.
package editorstate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Node is a single serialized node.
type Node = map[string]any

var (
	ErrMalformed   = errors.New("malformed editor state")
	ErrNoRoot      = errors.New("editor state has no root")
	ErrUnknownNode = errors.New("unregistered node type")
	ErrInvalidNode = errors.New("invalid node")
)

// State is a validated editor state.
type State struct {
	root Node
}

// Parse decodes and validates a serialized editor state.
func Parse(content []byte) (*State, error) {
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()

	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after state", ErrMalformed)
	}

	raw, ok := doc["root"]
	if !ok || raw == nil || raw == false {
		return nil, ErrNoRoot
	}
	root, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: root is %T, not an object", ErrInvalidNode, raw)
	}
	if err := validate(root, "root", true); err != nil {
		return nil, err
	}
	return &State{root: root}, nil
}

// Load returns the state encoded in content, or a state holding a single
// empty paragraph when content is empty, malformed or not shaped like an
// editor state. It never fails.
func Load(content []byte) *State {
	if len(bytes.TrimSpace(content)) == 0 {
		return Empty()
	}
	s, err := Parse(content)
	if err != nil {
		slog.Warn("editor state rejected, starting from an empty document", "err", err)
		return Empty()
	}
	return s
}

// Empty returns a state holding one empty paragraph.
func Empty() *State {
	return &State{root: rootNode(Paragraph(""))}
}

func validate(n Node, path string, isRoot bool) error {
	typ, _ := n["type"].(string)
	if typ == "" {
		return fmt.Errorf("%w: %s has no type", ErrInvalidNode, path)
	}
	if isRoot != (typ == "root") {
		return fmt.Errorf("%w: %s has type %q", ErrInvalidNode, path, typ)
	}
	nt, ok := Lookup(typ)
	if !ok {
		return fmt.Errorf("%w: %q at %s", ErrUnknownNode, typ, path)
	}

	switch nt.Kind {
	case KindElement, KindInline:
		children, ok := n["children"].([]any)
		if !ok {
			return fmt.Errorf("%w: %s (%s) has no children array", ErrInvalidNode, path, typ)
		}
		for i, c := range children {
			child, ok := c.(map[string]any)
			if !ok {
				return fmt.Errorf("%w: %s.children[%d] is %T, not an object", ErrInvalidNode, path, i, c)
			}
			if err := validate(child, fmt.Sprintf("%s.children[%d]", path, i), false); err != nil {
				return err
			}
		}
	case KindText:
		if _, ok := n["text"].(string); !ok {
			return fmt.Errorf("%w: %s (%s) has no text", ErrInvalidNode, path, typ)
		}
	}
	return nil
}

// Root returns the root node. Callers must not keep it past the next edit.
func (s *State) Root() Node {
	return s.root
}

// Children returns the top-level blocks.
func (s *State) Children() []any {
	children, _ := s.root["children"].([]any)
	return children
}

// Len returns the number of top-level blocks.
func (s *State) Len() int {
	return len(s.Children())
}

// Insert places blocks at index among the top-level children. An index
// outside [0, Len()] appends. It returns the index of the first inserted block.
func (s *State) Insert(index int, blocks ...Node) int {
	children := s.Children()
	if index < 0 || index > len(children) {
		index = len(children)
	}
	out := make([]any, 0, len(children)+len(blocks))
	out = append(out, children[:index]...)
	for _, b := range blocks {
		out = append(out, b)
	}
	out = append(out, children[index:]...)
	s.root["children"] = out
	return index
}

// Clear removes every block and leaves a single empty paragraph.
func (s *State) Clear() {
	s.root["children"] = []any{Paragraph("")}
}

// TextContent returns the plain text of the document. Block elements are
// separated by a blank line, line breaks become "\n" and tabs "\t".
func (s *State) TextContent() string {
	return textOf(s.root)
}

func textOf(n Node) string {
	typ, _ := n["type"].(string)
	nt, _ := Lookup(typ)
	switch nt.Kind {
	case KindText:
		text, _ := n["text"].(string)
		return text
	case KindLineBreak:
		return "\n"
	case KindDecorator:
		return ""
	}

	children, _ := n["children"].([]any)
	var b strings.Builder
	for i, c := range children {
		child, ok := c.(map[string]any)
		if !ok {
			continue
		}
		b.WriteString(textOf(child))
		if i < len(children)-1 && isBlock(child) {
			b.WriteString("\n\n")
		}
	}
	return b.String()
}

func isBlock(n Node) bool {
	typ, _ := n["type"].(string)
	nt, ok := Lookup(typ)
	return ok && nt.Kind == KindElement
}

func (s *State) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{"root": s.root})
}

// UnmarshalJSON parses strictly; use Load for lenient decoding.
func (s *State) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*s = *parsed
	return nil
}
