package coltree

import (
	"bytes"
	"strconv"

	"github.com/ajitpratap0/tabular/pkg/node"
	stringpool "github.com/ajitpratap0/tabular/pkg/strings"
)

// Histogram counts lexical value classes across the member nodes of one
// column. All fields are plain counts, so accumulation is commutative and
// associative: scan order never changes the inferred type.
type Histogram struct {
	Nulls        int
	Bools        int
	NegSmallInts int
	PosSmallInts int
	BigInts      int // integer literals that do not fit a signed 64-bit value
	Floats       int
	Strings      int
	Datetimes    int
}

// Add accumulates another histogram into h.
func (h *Histogram) Add(o Histogram) {
	h.Nulls += o.Nulls
	h.Bools += o.Bools
	h.NegSmallInts += o.NegSmallInts
	h.PosSmallInts += o.PosSmallInts
	h.BigInts += o.BigInts
	h.Floats += o.Floats
	h.Strings += o.Strings
	h.Datetimes += o.Datetimes
}

// Valid returns the number of non-null classified entries.
func (h *Histogram) Valid() int {
	return h.Bools + h.NegSmallInts + h.PosSmallInts + h.BigInts +
		h.Floats + h.Strings + h.Datetimes
}

// Infer resolves the histogram into a single target type. The precedence is
// a deliberate business rule: classes are not mutually exclusive, so the
// first matching rule wins.
func (h *Histogram) Infer() DType {
	ints := h.NegSmallInts + h.PosSmallInts + h.BigInts
	switch {
	case h.Valid() == 0:
		return TypeInt8
	case h.Strings > 0:
		return TypeString
	case h.Datetimes > 0:
		return TypeUnsupported
	case h.Floats > 0 || (ints > 0 && h.Nulls > 0):
		return TypeFloat64
	case ints > 0 && h.BigInts == 0:
		return TypeInt64
	case h.BigInts > 0 && h.NegSmallInts > 0:
		// No lossless single integer type covers both.
		return TypeString
	case h.BigInts > 0:
		return TypeUint64
	case h.Bools > 0:
		return TypeBool
	}
	return TypeUnsupported
}

// Classify buckets one token into the histogram. Quoted tokens (String
// category) count as string unless their content is datetime-like; unquoted
// tokens (Value category) are classified lexically.
func (h *Histogram) Classify(cat node.Category, text []byte, nullLiterals []string) {
	if cat == node.CategoryString {
		inner := text
		if len(inner) >= 2 && inner[0] == '"' && inner[len(inner)-1] == '"' {
			inner = inner[1 : len(inner)-1]
		}
		if isDatetimeLike(inner) {
			h.Datetimes++
		} else {
			h.Strings++
		}
		return
	}
	if isNullLiteral(text, nullLiterals) {
		h.Nulls++
		return
	}
	s := stringpool.BytesToString(text)
	if s == "true" || s == "false" {
		h.Bools++
		return
	}
	if isIntegerToken(text) {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			if v < 0 {
				h.NegSmallInts++
			} else {
				h.PosSmallInts++
			}
		} else {
			h.BigInts++
		}
		return
	}
	if _, err := strconv.ParseFloat(s, 64); err == nil {
		h.Floats++
		return
	}
	h.Strings++
}

func isNullLiteral(text []byte, literals []string) bool {
	for _, lit := range literals {
		if stringpool.BytesToString(text) == lit {
			return true
		}
	}
	return false
}

func isIntegerToken(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if b[0] == '-' || b[0] == '+' {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isDatetimeLike is a cheap shape check for ISO-8601-ish content:
// "YYYY-MM-DD" optionally followed by a time part. Datetime inference is out
// of scope, so matching columns resolve to Unsupported unless a schema
// overlay overrides them.
func isDatetimeLike(b []byte) bool {
	if len(b) < 10 {
		return false
	}
	for i := 0; i < 10; i++ {
		switch i {
		case 4, 7:
			if b[i] != '-' {
				return false
			}
		default:
			if b[i] < '0' || b[i] > '9' {
				return false
			}
		}
	}
	if len(b) == 10 {
		return true
	}
	return (b[10] == 'T' || b[10] == ' ') && bytes.IndexByte(b[11:], ':') >= 0
}

// inferTypes builds one histogram per leaf column via a group reduce over
// the column-sorted node order and resolves each into a target type.
// Nested and skipped categories keep TypeUnknown.
func inferTypes(ct *Tree, tree *node.Tree, order []int32, nullLiterals []string) {
	hists := make([]Histogram, len(ct.Columns))
	for _, ni := range order {
		n := tree.Nodes[ni]
		if !n.Category.IsLeaf() {
			continue
		}
		if !ct.Columns[n.Column].Category.IsLeaf() {
			continue
		}
		hists[n.Column].Classify(n.Category, tree.Text(n), nullLiterals)
	}
	for id := range ct.Columns {
		if ct.Columns[id].Category.IsLeaf() {
			ct.Columns[id].Type = hists[id].Infer()
		}
	}
}
