package pipeline

import (
	"go.uber.org/zap"

	"instafilter/pkg/filter"
)

type Option func(p *Pipeline)

func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger.With(zap.String("via", "pipeline"))
		}
	}
}

// WithCatalog swaps the filter catalog. The initial filter falls back to the
// first registered one when the catalog has no sepia.
func WithCatalog(c *filter.Catalog) Option {
	return func(p *Pipeline) {
		p.catalog = c
	}
}

// WithFilter picks the initial filter. It is looked up in the final catalog
// and ignored when missing there.
func WithFilter(kind filter.Kind) Option {
	return func(p *Pipeline) {
		p.initial = kind
	}
}

func WithParameters(params filter.Parameters) Option {
	return func(p *Pipeline) {
		for _, param := range filter.Params() {
			p.params, _ = p.params.With(param, params.Get(param))
		}
	}
}
