package sink

import (
	"bytes"
	"fmt"
	"path"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/rs/xid"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"instafilter/pkg/pipeline"
)

type ExportOption func(e *Exporter)

// WithFormat selects png (default) or jpeg output.
func WithFormat(f imaging.Format) ExportOption {
	return func(e *Exporter) {
		e.format = f
	}
}

func WithLogger(logger *zap.Logger) ExportOption {
	return func(e *Exporter) {
		e.log = logger.With(zap.String("via", "exporter"))
	}
}

func newFs(dir string) (afero.Fs, error) {
	fs := afero.NewOsFs()
	if exists, err := afero.DirExists(fs, dir); err != nil {
		return nil, err
	} else if !exists {
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	return afero.NewBasePathFs(fs, dir), nil
}

// NewExporter saves into dir, creating it when missing.
func NewExporter(dir string, opts ...ExportOption) (*Exporter, error) {
	fs, err := newFs(dir)
	if err != nil {
		return nil, fmt.Errorf("create exporter failed: %w", err)
	}
	return NewExporterFs(fs, opts...), nil
}

func NewExporterFs(fs afero.Fs, opts ...ExportOption) *Exporter {
	e := &Exporter{
		fs:     fs,
		format: imaging.PNG,
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Exporter writes every shown image as <kind>/<xid>.<ext>.
type Exporter struct {
	l      sync.Mutex
	fs     afero.Fs
	format imaging.Format
	log    *zap.Logger
	last   string
}

func (e *Exporter) ext() string {
	if e.format == imaging.JPEG {
		return "jpg"
	}
	return "png"
}

// Show writes r under its filter kind. A nil r has nothing to export.
func (e *Exporter) Show(r *pipeline.Rendered) error {
	if r == nil {
		return nil
	}
	if r.Image == nil {
		return errors.New("nothing rendered")
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, r.Image, e.format, imaging.JPEGQuality(92)); err != nil {
		return errors.Wrap(err, "encode")
	}

	dir := string(r.Kind)
	file := path.Join(dir, fmt.Sprintf("%s.%s", xid.New().String(), e.ext()))

	if exists, err := afero.DirExists(e.fs, dir); err != nil {
		return err
	} else if !exists {
		if err := e.fs.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	if err := afero.WriteFile(e.fs, file, buf.Bytes(), 0644); err != nil {
		return errors.Wrapf(err, "write %s", file)
	}

	e.l.Lock()
	e.last = file
	e.l.Unlock()

	e.log.With(zap.String("file", file), zap.Uint64("seq", r.Seq)).Debug("exported")
	return nil
}

// Last returns the path of the most recent export, relative to the exporter
// root.
func (e *Exporter) Last() string {
	e.l.Lock()
	defer e.l.Unlock()
	return e.last
}

// RealPath resolves a relative export path on disk. It returns name unchanged
// for filesystems without a base path.
func (e *Exporter) RealPath(name string) string {
	if bp, ok := e.fs.(*afero.BasePathFs); ok {
		if p, err := bp.RealPath(name); err == nil {
			return p
		}
	}
	return name
}
