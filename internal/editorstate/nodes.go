package editorstate

// Namespace identifies the editor instance in the browser.
const Namespace = "CopilotLexicalEditor"

// Kind describes how a node type is shaped in the serialized state.
type Kind int

const (
	KindElement   Kind = iota // block element, has children
	KindInline                // inline element (links, marks), has children
	KindText                  // leaf carrying a text string
	KindDecorator             // leaf rendered by a component (embeds, rules)
	KindLineBreak             // leaf without content
)

// NodeType is one entry of the editor's node registration list.
type NodeType struct {
	Type string
	Kind Kind
}

// registered mirrors the node classes passed to the editor on the page.
// Built-in types come first, then the rich text, list, code, link, table
// and extra packages, then the Jupyter set.
var registered = []NodeType{
	{"root", KindElement},
	{"paragraph", KindElement},
	{"text", KindText},
	{"linebreak", KindLineBreak},
	{"tab", KindText},

	{"heading", KindElement},
	{"quote", KindElement},
	{"list", KindElement},
	{"listitem", KindElement},
	{"code", KindElement},
	{"code-highlight", KindText},
	{"link", KindInline},
	{"autolink", KindInline},
	{"table", KindElement},
	{"tablecell", KindElement},
	{"tablerow", KindElement},
	{"hashtag", KindText},
	{"mark", KindInline},
	{"overflow", KindInline},
	{"horizontalrule", KindDecorator},

	{"equation", KindDecorator},
	{"image", KindDecorator},
	{"youtube", KindDecorator},
	{"excalidraw", KindDecorator},
	{"collapsible-container", KindElement},
	{"collapsible-title", KindElement},
	{"collapsible-content", KindElement},
	{"jupyter-cell", KindDecorator},
	{"jupyter-input", KindElement},
	{"jupyter-input-highlight", KindText},
	{"jupyter-output", KindDecorator},
	{"inline-completion", KindDecorator},
}

var registeredByType = func() map[string]NodeType {
	m := make(map[string]NodeType, len(registered))
	for _, nt := range registered {
		m[nt.Type] = nt
	}
	return m
}()

// Lookup returns the registration for a serialized node type.
func Lookup(typ string) (NodeType, bool) {
	nt, ok := registeredByType[typ]
	return nt, ok
}

// Registered returns the node registration list in registration order.
func Registered() []NodeType {
	out := make([]NodeType, len(registered))
	copy(out, registered)
	return out
}

// EditorConfig is the editor configuration handed to the frontend.
type EditorConfig struct {
	Namespace string   `json:"namespace"`
	Editable  bool     `json:"editable"`
	Nodes     []string `json:"nodes"`
	Theme     Theme    `json:"theme"`
}

func Config() EditorConfig {
	nodes := make([]string, 0, len(registered))
	for _, nt := range registered {
		nodes = append(nodes, nt.Type)
	}
	return EditorConfig{
		Namespace: Namespace,
		Editable:  true,
		Nodes:     nodes,
		Theme:     DefaultTheme(),
	}
}
