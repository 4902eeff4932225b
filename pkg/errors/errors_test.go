package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndIsType(t *testing.T) {
	err := New(ErrorTypeData, "bad input")
	assert.True(t, IsType(err, ErrorTypeData))
	assert.False(t, IsType(err, ErrorTypeSchema))
	assert.Contains(t, err.Error(), "bad input")
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeSchema, "unknown type %q", "int32")
	assert.Contains(t, err.Error(), `"int32"`)
	assert.True(t, IsType(err, ErrorTypeSchema))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(cause, ErrorTypeResource, "allocation failed")

	require.ErrorIs(t, err, cause)
	assert.True(t, IsType(err, ErrorTypeResource))
	assert.Contains(t, err.Error(), "allocation failed")
}

func TestWrappedTypeVisibleThroughPlainWrap(t *testing.T) {
	inner := New(ErrorTypeStructuralConflict, "list vs struct")
	outer := fmt.Errorf("stage failed: %w", inner)
	assert.True(t, IsType(outer, ErrorTypeStructuralConflict))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeData, "parse failure").
		WithDetail("offset", 42).
		WithDetail("column", "a")

	assert.Equal(t, 42, err.Details["offset"])
	assert.Equal(t, "a", err.Details["column"])
}

func TestIsTypeNil(t *testing.T) {
	assert.False(t, IsType(nil, ErrorTypeData))
}
