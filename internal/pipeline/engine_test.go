package pipeline

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/schema"
)

func testConfig() *config.ConvertConfig {
	cfg := config.NewConvertConfig()
	cfg.Performance.Workers = 2
	cfg.Performance.MinChunk = 1
	cfg.Observability.EnableMetrics = false
	return cfg
}

func convert(t *testing.T, input string, overlay *schema.Overlay) (arrow.Record, func()) {
	t.Helper()
	engine := New(testConfig())
	table, err := engine.Convert(context.Background(), []byte(input), overlay)
	require.NoError(t, err)
	rec, err := table.Record()
	require.NoError(t, err)
	return rec, func() {
		rec.Release()
		table.Release()
	}
}

func TestConvertScalars(t *testing.T) {
	rec, done := convert(t, `[{"a":1,"b":"x"},{"a":2.5,"b":"y"},{"a":null,"b":null}]`, nil)
	defer done()

	require.Equal(t, int64(3), rec.NumRows())
	require.Equal(t, int64(2), rec.NumCols())

	a := rec.Column(0).(*array.Float64)
	assert.Equal(t, 1.0, a.Value(0))
	assert.Equal(t, 2.5, a.Value(1))
	assert.True(t, a.IsNull(2))

	b := rec.Column(1).(*array.String)
	assert.Equal(t, "x", b.Value(0))
	assert.Equal(t, "y", b.Value(1))
	assert.True(t, b.IsNull(2))
}

func TestConvertSparseFields(t *testing.T) {
	rec, done := convert(t, `[{"a":1},{"b":"only"},{"a":3}]`, nil)
	defer done()

	require.Equal(t, int64(3), rec.NumRows())

	a := rec.Column(0).(*array.Int64)
	assert.Equal(t, int64(1), a.Value(0))
	assert.True(t, a.IsNull(1))
	assert.Equal(t, int64(3), a.Value(2))

	b := rec.Column(1).(*array.String)
	assert.True(t, b.IsNull(0))
	assert.Equal(t, "only", b.Value(1))
}

func TestConvertNestedStructsAndLists(t *testing.T) {
	rec, done := convert(t, `[{"o":{"n":1},"l":[1,2]},{"o":{"n":2},"l":[]},{"l":[3]}]`, nil)
	defer done()

	o := rec.Column(0).(*array.Struct)
	n := o.Field(0).(*array.Int64)
	assert.Equal(t, int64(1), n.Value(0))
	assert.Equal(t, int64(2), n.Value(1))
	assert.True(t, o.IsNull(2))

	l := rec.Column(1).(*array.List)
	start, end := l.ValueOffsets(0)
	assert.Equal(t, int64(0), start)
	assert.Equal(t, int64(2), end)
	elems := l.ListValues().(*array.Int64)
	assert.Equal(t, []int64{1, 2, 3}, elems.Int64Values())
}

func TestConvertJSONLines(t *testing.T) {
	rec, done := convert(t, "{\"a\":1}\n{\"a\":2}\n{\"a\":3}\n", nil)
	defer done()

	assert.Equal(t, int64(3), rec.NumRows())
	a := rec.Column(0).(*array.Int64)
	assert.Equal(t, []int64{1, 2, 3}, a.Int64Values())
}

func TestConvertWithOverlay(t *testing.T) {
	overlay := schema.Flat(map[string]schema.Entry{
		"p": {Type: coltree.TypeDecimal, Scale: 2},
	})
	rec, done := convert(t, `[{"p":"1.25"},{"p":"2.00"}]`, overlay)
	defer done()

	p := rec.Column(0).(*array.Decimal128)
	assert.Equal(t, uint64(125), p.Value(0).LowBits())
	assert.Equal(t, uint64(200), p.Value(1).LowBits())
}

func TestConvertDropsConflictedColumn(t *testing.T) {
	rec, done := convert(t, `[{"a":[1],"k":1},{"a":{"b":2},"k":2}]`, nil)
	defer done()

	require.Equal(t, int64(1), rec.NumCols())
	assert.Equal(t, "k", rec.Schema().Field(0).Name)
}

func TestConvertAbortsOnConflictWhenConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Data.ErrorColumns = config.ErrorColumnAbort

	_, err := New(cfg).Convert(context.Background(), []byte(`[{"a":[1]},{"a":{"b":2}}]`), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedColumn))
}

func TestConvertMalformedInput(t *testing.T) {
	_, err := New(testConfig()).Convert(context.Background(), []byte(`[{"a":`), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestConvertCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(testConfig()).Convert(ctx, []byte(`[{"a":1}]`), nil)
	assert.Error(t, err)
}

func TestConvertUnsupportedWithoutOverlay(t *testing.T) {
	_, err := New(testConfig()).Convert(context.Background(), []byte(`[{"d":"2024-01-15"}]`), nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnsupportedColumn))
}

func TestRunnerCoversRange(t *testing.T) {
	run := NewRunner(4, 1)

	var total atomic.Int64
	run.ForEach(1000, func(lo, hi int) {
		for i := lo; i < hi; i++ {
			total.Add(int64(i))
		}
	})
	assert.Equal(t, int64(999*1000/2), total.Load())

	// Small inputs run inline in one chunk.
	calls := 0
	NewRunner(8, 100).ForEach(5, func(lo, hi int) {
		calls++
		assert.Equal(t, 0, lo)
		assert.Equal(t, 5, hi)
	})
	assert.Equal(t, 1, calls)

	NewRunner(2, 1).ForEach(0, func(lo, hi int) {
		t.Fatal("zero-length pass must not call fn")
	})
}
