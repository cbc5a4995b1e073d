package sink

import (
	"go.uber.org/multierr"

	"instafilter/pkg/pipeline"
)

// Sink receives rendered output, for example to save, preview or share it.
type Sink interface {
	Show(r *pipeline.Rendered) error
}

type Func func(r *pipeline.Rendered) error

func (f Func) Show(r *pipeline.Rendered) error {
	return f(r)
}

// Multi shows r on every sink and combines their errors.
type Multi []Sink

func (m Multi) Show(r *pipeline.Rendered) error {
	var err error
	for _, s := range m {
		err = multierr.Append(err, s.Show(r))
	}
	return err
}
