package editorstate

import (
	"fmt"
	"strings"
)

func element(typ string, children []any) Node {
	if children == nil {
		children = []any{}
	}
	return Node{
		"type":      typ,
		"version":   1,
		"children":  children,
		"direction": nil,
		"format":    "",
		"indent":    0,
	}
}

func rootNode(children ...Node) Node {
	out := make([]any, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	return element("root", out)
}

// Text returns an unformatted text node.
func Text(s string) Node {
	return Node{
		"type":    "text",
		"version": 1,
		"text":    s,
		"detail":  0,
		"format":  0,
		"mode":    "normal",
		"style":   "",
	}
}

// LineBreak returns a soft line break.
func LineBreak() Node {
	return Node{"type": "linebreak", "version": 1}
}

// inlineText splits s on newlines into text nodes joined by line breaks.
func inlineText(s string) []any {
	if s == "" {
		return []any{}
	}
	var out []any
	for i, line := range strings.Split(s, "\n") {
		if i > 0 {
			out = append(out, LineBreak())
		}
		if line != "" {
			out = append(out, Text(line))
		}
	}
	return out
}

// Paragraph returns a paragraph holding text. An empty string gives an
// empty paragraph.
func Paragraph(text string) Node {
	return element("paragraph", inlineText(text))
}

// ParagraphOf returns a paragraph holding the given inline nodes.
func ParagraphOf(children ...Node) Node {
	out := make([]any, 0, len(children))
	for _, c := range children {
		out = append(out, c)
	}
	return element("paragraph", out)
}

// Heading returns an h1..h6 heading; level is clamped into that range.
func Heading(level int, text string) Node {
	level = min(max(level, 1), 6)
	n := element("heading", inlineText(text))
	n["tag"] = fmt.Sprintf("h%d", level)
	return n
}

func Quote(text string) Node {
	return element("quote", inlineText(text))
}

// Code returns a code block. An empty language leaves highlighting to the
// editor's default.
func Code(language, code string) Node {
	n := element("code", inlineText(code))
	if language != "" {
		n["language"] = language
	}
	return n
}

// List returns a bullet or numbered list with one item per entry.
func List(ordered bool, items []string) Node {
	children := make([]any, 0, len(items))
	for i, item := range items {
		li := element("listitem", inlineText(item))
		li["value"] = i + 1
		li["checked"] = nil
		children = append(children, li)
	}
	n := element("list", children)
	n["start"] = 1
	if ordered {
		n["listType"] = "number"
		n["tag"] = "ol"
	} else {
		n["listType"] = "bullet"
		n["tag"] = "ul"
	}
	return n
}

// Table returns a table with one paragraph per cell. When header is true the
// first row is marked as a header row.
func Table(rows [][]string, header bool) Node {
	rowNodes := make([]any, 0, len(rows))
	for r, row := range rows {
		cells := make([]any, 0, len(row))
		for _, text := range row {
			cell := element("tablecell", []any{Paragraph(text)})
			cell["colSpan"] = 1
			cell["rowSpan"] = 1
			cell["backgroundColor"] = nil
			cell["headerState"] = 0
			if header && r == 0 {
				cell["headerState"] = 1
			}
			cells = append(cells, cell)
		}
		rowNodes = append(rowNodes, element("tablerow", cells))
	}
	return element("table", rowNodes)
}

func HorizontalRule() Node {
	return Node{"type": "horizontalrule", "version": 1}
}

// YouTube returns an embedded video block for a video id.
func YouTube(videoID string) Node {
	return Node{"type": "youtube", "version": 1, "videoID": videoID, "format": ""}
}

func Image(src, altText string) Node {
	return Node{
		"type":        "image",
		"version":     1,
		"src":         src,
		"altText":     altText,
		"maxWidth":    500,
		"width":       0,
		"height":      0,
		"showCaption": false,
	}
}

// Equation returns a KaTeX equation. Equations are inline decorators, so
// callers place them inside a paragraph.
func Equation(expr string, inline bool) Node {
	return Node{"type": "equation", "version": 1, "equation": expr, "inline": inline}
}

// JupyterInput returns an executable input cell holding code.
func JupyterInput(language, code string) Node {
	if language == "" {
		language = "python"
	}
	n := element("jupyter-input", inlineText(code))
	n["language"] = language
	return n
}

// JupyterOutput returns the (initially empty) output area paired with an
// input cell.
func JupyterOutput(code string) Node {
	return Node{
		"type":      "jupyter-output",
		"version":   1,
		"source":    code,
		"outputs":   []any{},
		"autoStart": false,
	}
}
