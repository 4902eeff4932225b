package node

import "context"

// Tokenizer turns raw input bytes into a flat node tree. Grammar validation
// happens here; the engine only ever sees either a well-formed tree or an
// explicit error.
type Tokenizer interface {
	Tokenize(ctx context.Context, input []byte) (*Tree, error)
}

// Orienter assigns column identity and intra-column row ordinals to every
// node of a tree, in place. Column ids must be dense and 0-based; row
// offsets must be unique and contiguous per column.
type Orienter interface {
	Orient(ctx context.Context, tree *Tree) error
}
