package tools

import (
	"github.com/cfilipov/copilot-lexical/internal/editorstate"
)

var indexParam = Parameter{
	Name:        "index",
	Type:        "number",
	Description: "Block position to insert at. Omit to append at the end of the document.",
}

// insertTool builds a tool that inserts the blocks returned by build.
func insertTool(name, description string, params []Parameter, build func(a Args) ([]editorstate.Node, error)) Tool {
	return Tool{
		Name:        name,
		Description: description,
		Parameters:  append(params, indexParam),
		run: func(s *editorstate.State, a Args) (int, error) {
			blocks, err := build(a)
			if err != nil {
				return 0, err
			}
			index, err := a.Int("index", -1)
			if err != nil {
				return 0, err
			}
			return s.Insert(index, blocks...), nil
		},
	}
}

func one(n editorstate.Node) []editorstate.Node {
	return []editorstate.Node{n}
}

func builtin() []Tool {
	return []Tool{
		{
			Name:        "readDocument",
			Description: "Return the plain text of the document.",
			Parameters:  []Parameter{},
			readOnly:    true,
		},
		{
			Name:        "clearDocument",
			Description: "Remove all content, leaving a single empty paragraph.",
			Parameters:  []Parameter{},
			run: func(s *editorstate.State, _ Args) (int, error) {
				s.Clear()
				return 0, nil
			},
		},
		insertTool("insertParagraph", "Insert a paragraph of text. Newlines become line breaks.",
			[]Parameter{{Name: "text", Type: "string", Description: "Paragraph text.", Required: true}},
			func(a Args) ([]editorstate.Node, error) {
				text, err := a.String("text", true)
				if err != nil {
					return nil, err
				}
				return one(editorstate.Paragraph(text)), nil
			}),
		insertTool("insertHeading", "Insert a heading.",
			[]Parameter{
				{Name: "text", Type: "string", Description: "Heading text.", Required: true},
				{Name: "level", Type: "number", Description: "Heading level from 1 to 6. Defaults to 1."},
			},
			func(a Args) ([]editorstate.Node, error) {
				text, err := a.String("text", true)
				if err != nil {
					return nil, err
				}
				level, err := a.Int("level", 1)
				if err != nil {
					return nil, err
				}
				return one(editorstate.Heading(level, text)), nil
			}),
		insertTool("insertQuote", "Insert a block quote.",
			[]Parameter{{Name: "text", Type: "string", Description: "Quoted text.", Required: true}},
			func(a Args) ([]editorstate.Node, error) {
				text, err := a.String("text", true)
				if err != nil {
					return nil, err
				}
				return one(editorstate.Quote(text)), nil
			}),
		insertTool("insertCode", "Insert a code block.",
			[]Parameter{
				{Name: "code", Type: "string", Description: "Source code.", Required: true},
				{Name: "language", Type: "string", Description: "Language used for highlighting, e.g. python or javascript."},
			},
			func(a Args) ([]editorstate.Node, error) {
				code, err := a.String("code", true)
				if err != nil {
					return nil, err
				}
				lang, err := a.String("language", false)
				if err != nil {
					return nil, err
				}
				return one(editorstate.Code(lang, code)), nil
			}),
		insertTool("insertList", "Insert a bullet or numbered list.",
			[]Parameter{
				{Name: "items", Type: "string[]", Description: "One entry per list item.", Required: true},
				{Name: "ordered", Type: "boolean", Description: "Numbered list when true, bullets otherwise."},
			},
			func(a Args) ([]editorstate.Node, error) {
				items, err := a.Strings("items")
				if err != nil {
					return nil, err
				}
				ordered, err := a.Bool("ordered")
				if err != nil {
					return nil, err
				}
				return one(editorstate.List(ordered, items)), nil
			}),
		insertTool("insertTable", "Insert a table.",
			[]Parameter{
				{Name: "rows", Type: "string[][]", Description: "Cell text, one list per row.", Required: true},
				{Name: "header", Type: "boolean", Description: "Mark the first row as a header row."},
			},
			func(a Args) ([]editorstate.Node, error) {
				rows, err := a.Rows("rows")
				if err != nil {
					return nil, err
				}
				header, err := a.Bool("header")
				if err != nil {
					return nil, err
				}
				return one(editorstate.Table(rows, header)), nil
			}),
		insertTool("insertHorizontalRule", "Insert a horizontal rule.",
			nil,
			func(Args) ([]editorstate.Node, error) {
				return one(editorstate.HorizontalRule()), nil
			}),
		insertTool("insertYouTube", "Embed a YouTube video.",
			[]Parameter{{Name: "videoId", Type: "string", Description: "The video id from the YouTube URL.", Required: true}},
			func(a Args) ([]editorstate.Node, error) {
				id, err := a.String("videoId", true)
				if err != nil {
					return nil, err
				}
				return one(editorstate.YouTube(id)), nil
			}),
		insertTool("insertImage", "Insert an image.",
			[]Parameter{
				{Name: "src", Type: "string", Description: "Image URL.", Required: true},
				{Name: "altText", Type: "string", Description: "Alternative text."},
			},
			func(a Args) ([]editorstate.Node, error) {
				src, err := a.String("src", true)
				if err != nil {
					return nil, err
				}
				alt, err := a.String("altText", false)
				if err != nil {
					return nil, err
				}
				return one(editorstate.Image(src, alt)), nil
			}),
		insertTool("insertEquation", "Insert a KaTeX equation in its own paragraph.",
			[]Parameter{
				{Name: "equation", Type: "string", Description: "KaTeX source.", Required: true},
				{Name: "inline", Type: "boolean", Description: "Render inline instead of as a display block."},
			},
			func(a Args) ([]editorstate.Node, error) {
				expr, err := a.String("equation", true)
				if err != nil {
					return nil, err
				}
				inline, err := a.Bool("inline")
				if err != nil {
					return nil, err
				}
				return one(editorstate.ParagraphOf(editorstate.Equation(expr, inline))), nil
			}),
		insertTool("insertJupyterCell", "Insert an executable Jupyter cell with its output area.",
			[]Parameter{
				{Name: "code", Type: "string", Description: "Cell source.", Required: true},
				{Name: "language", Type: "string", Description: "Kernel language. Defaults to python."},
			},
			func(a Args) ([]editorstate.Node, error) {
				code, err := a.String("code", true)
				if err != nil {
					return nil, err
				}
				lang, err := a.String("language", false)
				if err != nil {
					return nil, err
				}
				return []editorstate.Node{
					editorstate.JupyterInput(lang, code),
					editorstate.JupyterOutput(code),
				}, nil
			}),
	}
}
