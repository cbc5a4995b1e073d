package source

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

func newFs(path string) (afero.Fs, error) {
	fs := afero.NewOsFs()
	if path == "" {
		return fs, nil
	}
	if exists, err := afero.DirExists(fs, path); err != nil {
		return nil, err
	} else if !exists {
		return nil, errors.Errorf("dir %s not exists", path)
	}
	return afero.NewBasePathFs(fs, path), nil
}

// NewLocal reads files relative to dir, or from anywhere when dir is empty.
func NewLocal(dir string) (*Local, error) {
	fs, err := newFs(dir)
	if err != nil {
		return nil, fmt.Errorf("create local source failed: %w", err)
	}
	return NewLocalFs(fs), nil
}

func NewLocalFs(fs afero.Fs) *Local {
	return &Local{fs: fs}
}

type Local struct {
	fs afero.Fs
}

func (l *Local) Fetch(_ context.Context, ref string) ([]byte, error) {
	bs, err := afero.ReadFile(l.fs, ref)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", ref)
	}
	return bs, nil
}
