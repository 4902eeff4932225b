// Package tokenize provides the built-in JSON tokenizer and the
// depth-first orientation step that assigns column identities and row
// offsets to the flat node tree.
package tokenize

import (
	"context"

	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/node"
)

// Tokenizer parses JSON input into a flat node tree. The top level may be
// a single array, a single value, or a sequence of whitespace-separated
// values (JSON lines); in the latter two cases a synthetic root list
// spanning the whole input holds the top-level values as elements.
type Tokenizer struct {
	nullLiterals map[string]struct{}
}

// New returns a Tokenizer that additionally accepts the given bare tokens
// as plain values. The standard JSON literals are always accepted.
func New(nullLiterals ...string) *Tokenizer {
	t := &Tokenizer{}
	if len(nullLiterals) > 0 {
		t.nullLiterals = make(map[string]struct{}, len(nullLiterals))
		for _, lit := range nullLiterals {
			t.nullLiterals[lit] = struct{}{}
		}
	}
	return t
}

// Tokenize implements node.Tokenizer.
func (t *Tokenizer) Tokenize(ctx context.Context, input []byte) (*node.Tree, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "tokenize canceled")
	}
	s := &scanner{input: input, extra: t.nullLiterals}
	s.skipSpace()
	if s.pos >= len(input) {
		return nil, errors.New(errors.ErrorTypeData, "empty input")
	}

	if input[s.pos] == '[' {
		if err := s.value(node.NoParent, 0); err != nil {
			return nil, err
		}
		s.skipSpace()
		if s.pos < len(input) {
			return nil, s.errAt("trailing bytes after top-level array")
		}
		return &node.Tree{Nodes: s.nodes, Input: input}, nil
	}

	// Synthetic root list over one or more top-level values.
	root := s.push(node.Node{
		Category: node.CategoryList,
		Parent:   node.NoParent,
		Level:    0,
		Range:    node.ByteRange{Begin: 0, End: int32(len(input))},
	})
	for {
		s.skipSpace()
		if s.pos >= len(input) {
			break
		}
		if err := s.value(root, 1); err != nil {
			return nil, err
		}
	}
	return &node.Tree{Nodes: s.nodes, Input: input}, nil
}

type scanner struct {
	input []byte
	pos   int
	nodes []node.Node
	extra map[string]struct{}
}

func (s *scanner) push(n node.Node) int32 {
	n.Column = node.NoColumn
	s.nodes = append(s.nodes, n)
	return int32(len(s.nodes) - 1)
}

func (s *scanner) skipSpace() {
	for s.pos < len(s.input) {
		switch s.input[s.pos] {
		case ' ', '\t', '\n', '\r':
			s.pos++
		default:
			return
		}
	}
}

func (s *scanner) errAt(msg string) error {
	return errors.Newf(errors.ErrorTypeData, "%s at byte %d", msg, s.pos)
}

// value parses one JSON value starting at the current position and appends
// its nodes. Unrecognized bare tokens become error nodes rather than
// failing the scan, so a single bad scalar only poisons its own column.
func (s *scanner) value(parent int32, level int32) error {
	s.skipSpace()
	if s.pos >= len(s.input) {
		return s.errAt("unexpected end of input")
	}
	switch c := s.input[s.pos]; {
	case c == '{':
		return s.object(parent, level)
	case c == '[':
		return s.array(parent, level)
	case c == '"':
		r, err := s.str()
		if err != nil {
			return err
		}
		s.push(node.Node{Category: node.CategoryString, Parent: parent, Level: level, Range: r})
		return nil
	default:
		r := s.bareToken()
		if r.Len() == 0 {
			return s.errAt("unexpected character")
		}
		cat := node.CategoryValue
		if !s.plausibleScalar(s.input[r.Begin:r.End]) {
			cat = node.CategoryError
		}
		s.push(node.Node{Category: cat, Parent: parent, Level: level, Range: r})
		return nil
	}
}

func (s *scanner) object(parent int32, level int32) error {
	begin := int32(s.pos)
	s.pos++ // '{'
	id := s.push(node.Node{Category: node.CategoryStruct, Parent: parent, Level: level, Range: node.ByteRange{Begin: begin}})

	s.skipSpace()
	if s.pos < len(s.input) && s.input[s.pos] == '}' {
		s.pos++
		s.nodes[id].Range.End = int32(s.pos)
		return nil
	}
	for {
		s.skipSpace()
		if s.pos >= len(s.input) || s.input[s.pos] != '"' {
			return s.errAt("expected object key")
		}
		key, err := s.str()
		if err != nil {
			return err
		}
		// Field name ranges exclude the quotes; the label is the raw key.
		fn := s.push(node.Node{
			Category: node.CategoryFieldName,
			Parent:   id,
			Level:    level + 1,
			Range:    node.ByteRange{Begin: key.Begin + 1, End: key.End - 1},
		})
		s.skipSpace()
		if s.pos >= len(s.input) || s.input[s.pos] != ':' {
			return s.errAt("expected ':' after object key")
		}
		s.pos++
		if err := s.value(fn, level+2); err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.input) {
			return s.errAt("unterminated object")
		}
		switch s.input[s.pos] {
		case ',':
			s.pos++
		case '}':
			s.pos++
			s.nodes[id].Range.End = int32(s.pos)
			return nil
		default:
			return s.errAt("expected ',' or '}' in object")
		}
	}
}

func (s *scanner) array(parent int32, level int32) error {
	begin := int32(s.pos)
	s.pos++ // '['
	id := s.push(node.Node{Category: node.CategoryList, Parent: parent, Level: level, Range: node.ByteRange{Begin: begin}})

	s.skipSpace()
	if s.pos < len(s.input) && s.input[s.pos] == ']' {
		s.pos++
		s.nodes[id].Range.End = int32(s.pos)
		return nil
	}
	for {
		if err := s.value(id, level+1); err != nil {
			return err
		}
		s.skipSpace()
		if s.pos >= len(s.input) {
			return s.errAt("unterminated array")
		}
		switch s.input[s.pos] {
		case ',':
			s.pos++
		case ']':
			s.pos++
			s.nodes[id].Range.End = int32(s.pos)
			return nil
		default:
			return s.errAt("expected ',' or ']' in array")
		}
	}
}

// str scans a quoted string and returns its range including both quotes.
func (s *scanner) str() (node.ByteRange, error) {
	begin := int32(s.pos)
	s.pos++ // opening quote
	for s.pos < len(s.input) {
		switch s.input[s.pos] {
		case '\\':
			s.pos += 2
		case '"':
			s.pos++
			return node.ByteRange{Begin: begin, End: int32(s.pos)}, nil
		default:
			s.pos++
		}
	}
	return node.ByteRange{}, s.errAt("unterminated string")
}

// bareToken consumes bytes up to the next structural delimiter.
func (s *scanner) bareToken() node.ByteRange {
	begin := int32(s.pos)
	for s.pos < len(s.input) {
		switch s.input[s.pos] {
		case ',', ']', '}', ' ', '\t', '\n', '\r':
			return node.ByteRange{Begin: begin, End: int32(s.pos)}
		}
		s.pos++
	}
	return node.ByteRange{Begin: begin, End: int32(s.pos)}
}

// plausibleScalar accepts the JSON literals, configured extra literals,
// and anything number-shaped. Everything else is an unclassifiable
// fragment.
func (s *scanner) plausibleScalar(tok []byte) bool {
	switch string(tok) {
	case "true", "false", "null":
		return true
	}
	if _, ok := s.extra[string(tok)]; ok {
		return true
	}
	for _, c := range tok {
		switch {
		case c >= '0' && c <= '9':
		case c == '-' || c == '+':
		case c == '.' || c == 'e' || c == 'E':
		default:
			return false
		}
	}
	return true
}
