package filter

import (
	"image"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

type Kind string

const (
	Crystallize  Kind = "crystallize"
	GaussianBlur Kind = "gaussian-blur"
	Pixellate    Kind = "pixellate"
	Sepia        Kind = "sepia"
	UnsharpMask  Kind = "unsharp-mask"
	Vignette     Kind = "vignette"
	Invert       Kind = "invert"
	Comic        Kind = "comic"
	MotionBlur   Kind = "motion-blur"
	Twirl        Kind = "twirl"
)

var (
	ErrUnknownKind = errors.New("unknown filter kind")
	ErrDuplicate   = errors.New("filter kind already registered")
)

// ApplyFunc transforms src using the parameters the filter accepts. Values of
// parameters the filter does not accept are zero.
type ApplyFunc func(src image.Image, p Parameters) *image.NRGBA

type Descriptor struct {
	Kind   Kind
	Name   string
	Params []Param
	Apply  ApplyFunc
}

// Accepts reports whether the filter reads param.
func (d *Descriptor) Accepts(param Param) bool {
	return lo.Contains(d.Params, param)
}

func NewCatalog() *Catalog {
	return &Catalog{byKind: make(map[Kind]*Descriptor)}
}

type Catalog struct {
	l      sync.RWMutex
	order  []Kind
	byKind map[Kind]*Descriptor
}

func (c *Catalog) Register(d *Descriptor) error {
	if d == nil || d.Kind == "" || d.Apply == nil {
		return errors.New("invalid filter descriptor")
	}
	for _, p := range d.Params {
		if _, err := ParseParam(string(p)); err != nil {
			return errors.Wrapf(err, "register %s", d.Kind)
		}
	}

	c.l.Lock()
	defer c.l.Unlock()

	if _, ok := c.byKind[d.Kind]; ok {
		return errors.Wrapf(ErrDuplicate, "%s", d.Kind)
	}

	c.order = append(c.order, d.Kind)
	c.byKind[d.Kind] = d
	return nil
}

func (c *Catalog) MustRegister(ds ...*Descriptor) *Catalog {
	for _, d := range ds {
		if err := c.Register(d); err != nil {
			panic(err)
		}
	}
	return c
}

func (c *Catalog) Lookup(kind Kind) (*Descriptor, error) {
	c.l.RLock()
	defer c.l.RUnlock()

	d, ok := c.byKind[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
	}
	return d, nil
}

func (c *Catalog) Descriptors() []*Descriptor {
	c.l.RLock()
	defer c.l.RUnlock()

	return lo.Map(c.order, func(k Kind, _ int) *Descriptor {
		return c.byKind[k]
	})
}

// Capabilities is the kind -> accepted parameters table.
func (c *Catalog) Capabilities() map[Kind][]Param {
	c.l.RLock()
	defer c.l.RUnlock()

	caps := make(map[Kind][]Param, len(c.byKind))
	for k, d := range c.byKind {
		caps[k] = append([]Param(nil), d.Params...)
	}
	return caps
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the built-in catalog of ten filters.
func Default() *Catalog {
	defaultOnce.Do(func() {
		defaultCatalog = NewCatalog().MustRegister(
			&Descriptor{Kind: Crystallize, Name: "Crystallize", Params: []Param{Radius}, Apply: crystallize},
			&Descriptor{Kind: GaussianBlur, Name: "Gaussian Blur", Params: []Param{Radius}, Apply: gaussianBlur},
			&Descriptor{Kind: Pixellate, Name: "Pixellate", Params: []Param{Scale}, Apply: pixellate},
			&Descriptor{Kind: Sepia, Name: "Sepia Tone", Params: []Param{Intensity}, Apply: sepia},
			&Descriptor{Kind: UnsharpMask, Name: "Unsharp Mask", Params: []Param{Radius, Intensity}, Apply: unsharpMask},
			&Descriptor{Kind: Vignette, Name: "Vignette", Params: []Param{Radius, Intensity}, Apply: vignette},
			&Descriptor{Kind: Invert, Name: "Color Invert", Apply: invert},
			&Descriptor{Kind: Comic, Name: "Comic Effect", Apply: comic},
			&Descriptor{Kind: MotionBlur, Name: "Motion Blur", Params: []Param{Radius}, Apply: motionBlur},
			&Descriptor{Kind: Twirl, Name: "Twirl", Params: []Param{Radius}, Apply: twirl},
		)
	})
	return defaultCatalog
}
