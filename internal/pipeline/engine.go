// Package pipeline wires the conversion stages together: tokenize, orient,
// reduce, build, overlay, materialize, assemble. Each stage either succeeds
// completely or fails the conversion; there are no partial results.
package pipeline

import (
	"context"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tabular/pkg/assemble"
	"github.com/ajitpratap0/tabular/pkg/coltree"
	"github.com/ajitpratap0/tabular/pkg/config"
	"github.com/ajitpratap0/tabular/pkg/errors"
	"github.com/ajitpratap0/tabular/pkg/hierarchy"
	"github.com/ajitpratap0/tabular/pkg/logger"
	"github.com/ajitpratap0/tabular/pkg/materialize"
	"github.com/ajitpratap0/tabular/pkg/metrics"
	"github.com/ajitpratap0/tabular/pkg/node"
	"github.com/ajitpratap0/tabular/pkg/schema"
	"github.com/ajitpratap0/tabular/pkg/tokenize"
)

// Engine runs conversions. It is safe for concurrent use; all per-run
// state lives on the stack of Convert.
type Engine struct {
	cfg    *config.ConvertConfig
	mem    memory.Allocator
	tok    node.Tokenizer
	orient node.Orienter
	run    materialize.Runner
}

// Option customizes an Engine.
type Option func(*Engine)

// WithAllocator overrides the Arrow allocator.
func WithAllocator(mem memory.Allocator) Option {
	return func(e *Engine) { e.mem = mem }
}

// WithTokenizer overrides the built-in JSON tokenizer.
func WithTokenizer(tok node.Tokenizer) Option {
	return func(e *Engine) { e.tok = tok }
}

// WithOrienter overrides the built-in orientation step.
func WithOrienter(o node.Orienter) Option {
	return func(e *Engine) { e.orient = o }
}

// New builds an Engine from configuration.
func New(cfg *config.ConvertConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.NewConvertConfig()
	}
	e := &Engine{
		cfg:    cfg,
		mem:    memory.NewGoAllocator(),
		tok:    tokenize.New(extraLiterals(cfg.Data.NullLiterals)...),
		orient: tokenize.NewOrienter(),
		run:    NewRunner(cfg.EffectiveWorkers(), cfg.Performance.MinChunk),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Convert turns one raw input document into an assembled table. The overlay
// may be nil.
func (e *Engine) Convert(ctx context.Context, input []byte, overlay *schema.Overlay) (*assemble.Table, error) {
	ctx = context.WithValue(ctx, logger.ConversionIDKey, uuid.NewString())
	log := logger.WithContext(ctx)

	table, err := e.convert(ctx, log, input, overlay)
	if err != nil {
		if e.cfg.Observability.EnableMetrics {
			metrics.ConversionsTotal.WithLabelValues("failure").Inc()
		}
		log.Error("conversion failed", zap.Error(err))
		return nil, err
	}
	if e.cfg.Observability.EnableMetrics {
		metrics.ConversionsTotal.WithLabelValues("success").Inc()
		metrics.InputBytes.Add(float64(len(input)))
		metrics.RowsConverted.Add(float64(table.Rows()))
	}
	return table, nil
}

func (e *Engine) convert(ctx context.Context, log *zap.Logger, input []byte, overlay *schema.Overlay) (*assemble.Table, error) {
	timer := metrics.NewTimer("tokenize")
	tree, err := e.tok.Tokenize(ctx, input)
	if err != nil {
		return nil, err
	}
	log.Debug("tokenized input",
		zap.Int("input_bytes", len(input)),
		zap.Int("nodes", len(tree.Nodes)),
		zap.Duration("elapsed", timer.Stop()))

	timer = metrics.NewTimer("orient")
	if err := e.orient.Orient(ctx, tree); err != nil {
		return nil, err
	}
	numCols := tree.NumColumns()
	log.Debug("oriented node tree",
		zap.Int("columns", numCols),
		zap.Duration("elapsed", timer.Stop()))
	if numCols == 0 {
		return nil, errors.New(errors.ErrorTypeData, "input produced no columns")
	}

	timer = metrics.NewTimer("reduce")
	ct, err := coltree.Reduce(tree, coltree.Options{NullLiterals: e.cfg.Data.NullLiterals})
	if err != nil {
		return nil, err
	}
	log.Debug("reduced column tree", zap.Duration("elapsed", timer.Stop()))

	timer = metrics.NewTimer("build")
	hier, err := hierarchy.Build(ct, tree, e.mem, hierarchy.BuildOptions{
		ErrorColumnAbort: e.cfg.Data.ErrorColumns == config.ErrorColumnAbort,
	})
	if err != nil {
		return nil, err
	}
	if overlay != nil {
		overlay.Apply(hier.Root, e.mem)
	}
	if hier.Dropped > 0 {
		if e.cfg.Observability.EnableMetrics {
			metrics.DroppedColumns.Add(float64(hier.Dropped))
		}
		log.Warn("dropped conflicted columns", zap.Int("columns", hier.Dropped))
	}
	log.Debug("built hierarchy", zap.Duration("elapsed", timer.Stop()))

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeResource, "conversion canceled")
	}

	timer = metrics.NewTimer("materialize")
	materialize.Materialize(tree, hier, e.mem, e.run, materialize.Options{
		NullLiterals: e.cfg.Data.NullLiterals,
	})
	log.Debug("materialized columns", zap.Duration("elapsed", timer.Stop()))

	timer = metrics.NewTimer("assemble")
	table, err := assemble.Assemble(hier.Root, e.mem)
	if err != nil {
		return nil, err
	}
	if e.cfg.Observability.EnableMetrics {
		metrics.ColumnsOutput.Observe(float64(len(table.Names.Flatten())))
	}
	log.Info("conversion finished",
		zap.Int("rows", table.Rows()),
		zap.Duration("assemble_elapsed", timer.Stop()))
	return table, nil
}

// extraLiterals strips the standard JSON null, which the tokenizer always
// accepts, from the configured set.
func extraLiterals(literals []string) []string {
	var out []string
	for _, lit := range literals {
		if lit != "null" {
			out = append(out, lit)
		}
	}
	return out
}
