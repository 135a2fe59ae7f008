package deps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeJSON parses a JSON document into an ordered node tree. Strings are
// unescaped and numbers keep their source text. A repeated object key keeps
// the position of its first occurrence and the value of its last, the way
// JSON.parse builds objects. Empty input returns io.EOF.
func decodeJSON(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	n, err := decodeValue(dec, tok)
	if err != nil {
		return nil, err
	}
	if tok, err := dec.Token(); err != io.EOF {
		if err == nil {
			err = fmt.Errorf("unexpected %v after top-level value", tok)
		}
		return nil, err
	}
	return n, nil
}

func decodeValue(dec *json.Decoder, tok json.Token) (*yaml.Node, error) {
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				kt, err := nextToken(dec)
				if err != nil {
					return nil, err
				}
				key, ok := kt.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", kt)
				}
				val, err := nextValue(dec)
				if err != nil {
					return nil, err
				}
				if cur := mappingValue(m, key); cur != nil {
					*cur = *val
				} else {
					m.Content = append(m.Content, stringNode(key), val)
				}
			}
			if _, err := nextToken(dec); err != nil { // '}'
				return nil, err
			}
			return m, nil
		case '[':
			seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				val, err := nextValue(dec)
				if err != nil {
					return nil, err
				}
				seq.Content = append(seq.Content, val)
			}
			if _, err := nextToken(dec); err != nil { // ']'
				return nil, err
			}
			return seq, nil
		}
		return nil, fmt.Errorf("unexpected %v", v)
	case string:
		return stringNode(v), nil
	case json.Number:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: v.String()}, nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprint(v)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	return nil, fmt.Errorf("unexpected token %v", tok)
}

func nextValue(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := nextToken(dec)
	if err != nil {
		return nil, err
	}
	return decodeValue(dec, tok)
}

// nextToken reads a token inside a container, where end of input is an error.
func nextToken(dec *json.Decoder) (json.Token, error) {
	tok, err := dec.Token()
	if errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return tok, err
}

// encodeJSON writes a node tree back out as JSON, indented
// by two spaces per level, the layout npm itself writes. Scalars keep their
// source text, so numbers are not reformatted.
func encodeJSON(b *bytes.Buffer, n *yaml.Node, depth int) error {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			b.WriteString("null")
			return nil
		}
		return encodeJSON(b, n.Content[0], depth)

	case yaml.AliasNode:
		return encodeJSON(b, n.Alias, depth)

	case yaml.MappingNode:
		if len(n.Content) == 0 {
			b.WriteString("{}")
			return nil
		}
		b.WriteString("{\n")
		for i := 0; i+1 < len(n.Content); i += 2 {
			indent(b, depth+1)
			quote(b, n.Content[i].Value)
			b.WriteString(": ")
			if err := encodeJSON(b, n.Content[i+1], depth+1); err != nil {
				return err
			}
			if i+2 < len(n.Content) {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		indent(b, depth)
		b.WriteByte('}')
		return nil

	case yaml.SequenceNode:
		if len(n.Content) == 0 {
			b.WriteString("[]")
			return nil
		}
		b.WriteString("[\n")
		for i, c := range n.Content {
			indent(b, depth+1)
			if err := encodeJSON(b, c, depth+1); err != nil {
				return err
			}
			if i < len(n.Content)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		indent(b, depth)
		b.WriteByte(']')
		return nil

	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!int", "!!float", "!!bool", "!!null":
			if n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) == 0 {
				b.WriteString(scalarText(n))
				return nil
			}
		}
		quote(b, n.Value)
		return nil
	}
	return fmt.Errorf("line %d: unsupported node kind %v", n.Line, n.Kind)
}

func scalarText(n *yaml.Node) string {
	if n.ShortTag() == "!!null" {
		return "null"
	}
	return n.Value
}

func indent(b *bytes.Buffer, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
}

// quote escapes like JSON.stringify: quotes, backslashes and control
// characters only. HTML characters and non-ASCII text are written as-is.
func quote(b *bytes.Buffer, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
}
