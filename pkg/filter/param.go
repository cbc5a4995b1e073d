package filter

import (
	"math"

	"github.com/pkg/errors"
)

type Param string

const (
	Intensity Param = "intensity"
	Radius    Param = "radius"
	Scale     Param = "scale"
)

var ErrUnknownParam = errors.New("unknown parameter")

type Range struct {
	Min float64
	Max float64
}

func (r Range) Clamp(v float64) float64 {
	if math.IsNaN(v) {
		return r.Min
	}
	return math.Max(r.Min, math.Min(r.Max, v))
}

var ranges = map[Param]Range{
	Intensity: {0, 1},
	Radius:    {0, 200},
	Scale:     {0, 100},
}

// Params lists every parameter tag in display order.
func Params() []Param {
	return []Param{Intensity, Radius, Scale}
}

func ParseParam(name string) (Param, error) {
	p := Param(name)
	if _, ok := ranges[p]; !ok {
		return "", errors.Wrapf(ErrUnknownParam, "%q", name)
	}
	return p, nil
}

func (p Param) Range() Range {
	return ranges[p]
}

// Parameters holds the current value of every parameter, whether or not the
// active filter reads it.
type Parameters struct {
	Intensity float64
	Radius    float64
	Scale     float64
}

func DefaultParameters() Parameters {
	return Parameters{
		Intensity: 0.5,
		Radius:    100,
		Scale:     50,
	}
}

func (p Parameters) Get(param Param) float64 {
	switch param {
	case Intensity:
		return p.Intensity
	case Radius:
		return p.Radius
	case Scale:
		return p.Scale
	}
	return 0
}

// With returns a copy of p with param set to v, clamped to its range.
func (p Parameters) With(param Param, v float64) (Parameters, error) {
	switch param {
	case Intensity:
		p.Intensity = param.Range().Clamp(v)
	case Radius:
		p.Radius = param.Range().Clamp(v)
	case Scale:
		p.Scale = param.Range().Clamp(v)
	default:
		return p, errors.Wrapf(ErrUnknownParam, "%q", param)
	}
	return p, nil
}

// Only keeps the values named in accepted and zeroes the rest.
func (p Parameters) Only(accepted []Param) Parameters {
	var out Parameters
	for _, param := range accepted {
		out, _ = out.With(param, p.Get(param))
	}
	return out
}
