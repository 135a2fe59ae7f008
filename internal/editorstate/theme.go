package editorstate

// Theme maps editor theme keys to CSS class names. Values are either a class
// name or a nested Theme (headings, lists, text formats).
type Theme map[string]any

// DefaultTheme returns the class names the stylesheet in lexical-theme.css
// is written against.
func DefaultTheme() Theme {
	return Theme{
		"ltr":             "ltr",
		"rtl":             "rtl",
		"paragraph":       "editor-paragraph",
		"quote":           "editor-quote",
		"hashtag":         "editor-hashtag",
		"link":            "editor-link",
		"mark":            "editor-mark",
		"markOverlap":     "editor-mark-overlap",
		"hr":              "editor-hr",
		"image":           "editor-image",
		"embedBlock":      Theme{"base": "editor-embed-block", "focus": "editor-embed-block-focus"},
		"code":            "editor-code",
		"table":           "editor-table",
		"tableCell":       "editor-table-cell",
		"tableCellHeader": "editor-table-cell-header",
		"tableRow":        "editor-table-row",
		"tableSelection":  "editor-table-selection",
		"heading": Theme{
			"h1": "editor-heading-h1",
			"h2": "editor-heading-h2",
			"h3": "editor-heading-h3",
			"h4": "editor-heading-h4",
			"h5": "editor-heading-h5",
			"h6": "editor-heading-h6",
		},
		"list": Theme{
			"nested":            Theme{"listitem": "editor-nested-listitem"},
			"ol":                "editor-list-ol",
			"ul":                "editor-list-ul",
			"listitem":          "editor-listitem",
			"listitemChecked":   "editor-listitem-checked",
			"listitemUnchecked": "editor-listitem-unchecked",
		},
		"text": Theme{
			"bold":                   "editor-text-bold",
			"italic":                 "editor-text-italic",
			"underline":              "editor-text-underline",
			"strikethrough":          "editor-text-strikethrough",
			"underlineStrikethrough": "editor-text-underline-strikethrough",
			"code":                   "editor-text-code",
			"subscript":              "editor-text-subscript",
			"superscript":            "editor-text-superscript",
		},
		"codeHighlight": Theme{
			"atrule":      "editor-token-attr",
			"attr":        "editor-token-attr",
			"boolean":     "editor-token-property",
			"comment":     "editor-token-comment",
			"function":    "editor-token-function",
			"keyword":     "editor-token-attr",
			"number":      "editor-token-property",
			"operator":    "editor-token-operator",
			"punctuation": "editor-token-punctuation",
			"string":      "editor-token-selector",
			"variable":    "editor-token-variable",
		},
	}
}
