package pipeline

import (
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"instafilter/pkg/filter"
)

var (
	ErrDecode = errors.New("image decode failed")
	ErrRender = errors.New("image render failed")
	ErrLoad   = errors.New("image load failed")
)

// Rendered is one surfaced recompute. It is never modified after creation.
type Rendered struct {
	Image  *image.NRGBA
	Kind   filter.Kind
	Params filter.Parameters
	Seq    uint64
}

func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		catalog:   filter.Default(),
		logger:    zap.NewNop(),
		params:    filter.DefaultParameters(),
		observers: make(map[int]func(*Rendered)),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.initial != "" {
		p.desc, _ = p.catalog.Lookup(p.initial)
	}
	if p.desc == nil {
		p.desc, _ = p.catalog.Lookup(filter.Sepia)
	}
	if p.desc == nil {
		if ds := p.catalog.Descriptors(); len(ds) > 0 {
			p.desc = ds[0]
		}
	}

	return p
}

// Pipeline owns the source image, the active filter and its parameters, and
// the latest rendered output derived from them.
type Pipeline struct {
	l sync.Mutex

	catalog *filter.Catalog
	logger  *zap.Logger
	initial filter.Kind

	source image.Image
	desc   *filter.Descriptor
	params filter.Parameters
	output *Rendered
	err    error
	gen    uint64

	loads atomic.Uint64
	seq   atomic.Uint64

	observers map[int]func(*Rendered)
	nextObs   int

	// nl orders observer calls; delivered is the last seq they saw.
	nl        sync.Mutex
	delivered uint64
}

type state struct {
	gen    uint64
	source image.Image
	desc   *filter.Descriptor
	params filter.Parameters
}

func (p *Pipeline) snapshot() state {
	return state{gen: p.gen, source: p.source, desc: p.desc, params: p.params}
}

// update mutates the state under lock, bumps the generation and recomputes.
func (p *Pipeline) update(fn func()) {
	p.l.Lock()
	fn()
	p.gen++
	s := p.snapshot()
	p.l.Unlock()

	p.recompute(s)
}

func (p *Pipeline) Catalog() *filter.Catalog {
	return p.catalog
}

// SetImage replaces the source with an already decoded image. A nil image
// clears the source.
func (p *Pipeline) SetImage(img image.Image) {
	if img == nil {
		p.ClearSource()
		return
	}
	p.loads.Inc()
	p.update(func() { p.source = img })
}

// ClearSource drops the source and output. Observers are called with nil.
func (p *Pipeline) ClearSource() {
	p.loads.Inc()
	p.l.Lock()
	p.source = nil
	p.output = nil
	p.err = nil
	p.gen++
	seq := p.seq.Inc()
	p.l.Unlock()

	p.notify(seq, nil)
}

func (p *Pipeline) SetFilter(d *filter.Descriptor) {
	if d == nil {
		return
	}
	p.update(func() { p.desc = d })
}

// SetFilterByName activates the catalog filter of the given kind. It reports
// false when the kind is not registered.
func (p *Pipeline) SetFilterByName(kind string) bool {
	d, err := p.catalog.Lookup(filter.Kind(kind))
	if err != nil {
		p.logger.With(zap.String("filter", kind)).Info("unknown filter")
		return false
	}
	p.SetFilter(d)
	return true
}

// SetParameter stores the value even when the active filter ignores it, so it
// survives filter switches. It recomputes, and returns true, only when the
// active filter reads the parameter.
func (p *Pipeline) SetParameter(name string, value float64) bool {
	param, err := filter.ParseParam(name)
	if err != nil {
		p.logger.With(zap.Error(err)).Info("set parameter failed")
		return false
	}

	p.l.Lock()
	p.params, _ = p.params.With(param, value)
	if p.desc == nil || !p.desc.Accepts(param) {
		p.l.Unlock()
		return false
	}
	p.gen++
	s := p.snapshot()
	p.l.Unlock()

	p.recompute(s)
	return true
}

// Render recomputes the output from the current state. It returns false when
// there is no source, when the filter fails, or when the state changed while
// rendering.
func (p *Pipeline) Render() (image.Image, bool) {
	p.l.Lock()
	s := p.snapshot()
	p.l.Unlock()

	r := p.recompute(s)
	if r == nil {
		return nil, false
	}
	return r.Image, true
}

func (p *Pipeline) recompute(s state) *Rendered {
	if s.source == nil || s.desc == nil {
		return nil
	}

	start := time.Now()
	img, err := apply(s)
	log := p.logger.With(
		zap.String("filter", string(s.desc.Kind)),
		zap.Uint64("gen", s.gen),
		zap.Duration("cost", time.Since(start)),
	)

	if err != nil {
		p.l.Lock()
		if s.gen == p.gen {
			p.err = err
		}
		p.l.Unlock()
		log.With(zap.Error(err)).Info("render failed")
		return nil
	}

	p.l.Lock()
	if s.gen != p.gen {
		p.l.Unlock()
		log.Debug("stale render dropped")
		return nil
	}

	r := &Rendered{
		Image:  img,
		Kind:   s.desc.Kind,
		Params: s.params.Only(s.desc.Params),
		Seq:    p.seq.Inc(),
	}
	p.output = r
	p.err = nil
	p.l.Unlock()

	log.With(zap.Uint64("seq", r.Seq)).Debug("rendered")
	p.notify(r.Seq, r)

	return r
}

// notify calls observers one seq at a time. A seq older than one already
// delivered is dropped.
func (p *Pipeline) notify(seq uint64, r *Rendered) {
	p.nl.Lock()
	defer p.nl.Unlock()

	if seq <= p.delivered {
		p.logger.With(zap.Uint64("seq", seq), zap.Uint64("delivered", p.delivered)).Debug("stale notify dropped")
		return
	}
	p.delivered = seq

	p.l.Lock()
	observers := make([]func(*Rendered), 0, len(p.observers))
	for _, fn := range p.observers {
		observers = append(observers, fn)
	}
	p.l.Unlock()

	for _, fn := range observers {
		fn(r)
	}
}

func apply(s state) (img *image.NRGBA, err error) {
	defer func() {
		if v := recover(); v != nil {
			img, err = nil, errors.Wrap(ErrRender, fmt.Sprint(v))
		}
	}()

	img = s.desc.Apply(s.source, s.params.Only(s.desc.Params))
	if img == nil {
		return nil, errors.Wrap(ErrRender, "no output")
	}

	want := s.source.Bounds().Size()
	if got := img.Bounds().Size(); got != want || img.Rect.Empty() {
		return nil, errors.Wrapf(ErrRender, "output %v not displayable for source %v", got, want)
	}

	return img, nil
}

// Subscribe registers fn to be called with every surfaced output, in seq
// order, and with nil when the source is cleared. fn must not modify the
// pipeline.
func (p *Pipeline) Subscribe(fn func(*Rendered)) (cancel func()) {
	p.l.Lock()
	defer p.l.Unlock()

	id := p.nextObs
	p.nextObs++
	p.observers[id] = fn

	return func() {
		p.l.Lock()
		defer p.l.Unlock()
		delete(p.observers, id)
	}
}

func (p *Pipeline) Output() *Rendered {
	p.l.Lock()
	defer p.l.Unlock()
	return p.output
}

func (p *Pipeline) Filter() *filter.Descriptor {
	p.l.Lock()
	defer p.l.Unlock()
	return p.desc
}

func (p *Pipeline) Parameters() filter.Parameters {
	p.l.Lock()
	defer p.l.Unlock()
	return p.params
}

func (p *Pipeline) HasSource() bool {
	p.l.Lock()
	defer p.l.Unlock()
	return p.source != nil
}

// Err returns the last non-fatal failure, nil after a successful render.
func (p *Pipeline) Err() error {
	p.l.Lock()
	defer p.l.Unlock()
	return p.err
}
