// Package preset loads named filter settings from YAML, for example:
//
//	presets:
//	  - name: old-photo
//	    filter: sepia
//	    intensity: 0.8
//	  - name: dreamy
//	    filter: gaussian-blur
//	    radius: 12
package preset

import (
	"io"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"instafilter/pkg/filter"
	"instafilter/pkg/pipeline"
)

var ErrNotFound = errors.New("preset not found")

type Preset struct {
	Name      string   `yaml:"name"`
	Filter    string   `yaml:"filter"`
	Intensity *float64 `yaml:"intensity,omitempty"`
	Radius    *float64 `yaml:"radius,omitempty"`
	Scale     *float64 `yaml:"scale,omitempty"`
}

func (p *Preset) values() map[filter.Param]*float64 {
	return map[filter.Param]*float64{
		filter.Intensity: p.Intensity,
		filter.Radius:    p.Radius,
		filter.Scale:     p.Scale,
	}
}

// Apply switches pl to the preset's filter, then sets the given parameters.
func (p *Preset) Apply(pl *pipeline.Pipeline) bool {
	if !pl.SetFilterByName(p.Filter) {
		return false
	}
	for _, param := range filter.Params() {
		if v := p.values()[param]; v != nil {
			pl.SetParameter(string(param), *v)
		}
	}
	return true
}

type Set struct {
	byName map[string]*Preset
}

type file struct {
	Presets []*Preset `yaml:"presets"`
}

// Parse reads presets and checks every filter against catalog.
func Parse(r io.Reader, catalog *filter.Catalog) (*Set, error) {
	var f file
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode presets")
	}

	s := &Set{byName: make(map[string]*Preset, len(f.Presets))}
	for i, p := range f.Presets {
		if p.Name == "" {
			return nil, errors.Errorf("preset #%d has no name", i+1)
		}
		if _, dup := s.byName[p.Name]; dup {
			return nil, errors.Errorf("preset %s defined twice", p.Name)
		}
		if _, err := catalog.Lookup(filter.Kind(p.Filter)); err != nil {
			return nil, errors.Wrapf(err, "preset %s", p.Name)
		}
		s.byName[p.Name] = p
	}

	return s, nil
}

func Load(fs afero.Fs, path string, catalog *filter.Catalog) (*Set, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open presets")
	}
	defer func() {
		_ = f.Close()
	}()

	return Parse(f, catalog)
}

func (s *Set) Get(name string) (*Preset, error) {
	p, ok := s.byName[name]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "%q", name)
	}
	return p, nil
}

func (s *Set) Names() []string {
	names := make([]string, 0, len(s.byName))
	for n := range s.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
