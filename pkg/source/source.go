package source

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"instafilter/pkg/pipeline"
)

var ErrNoFetcher = errors.New("no fetcher for reference")

// Fetcher reads the raw bytes of an image named by ref.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) ([]byte, error)
}

const wallhavenPrefix = "wallhaven:"

// Router dispatches http(s) URLs to HTTP, "wallhaven:<query>" to Wallhaven
// and everything else to Local. Nil fetchers are skipped.
type Router struct {
	Local     Fetcher
	HTTP      Fetcher
	Wallhaven Fetcher
}

func (r *Router) Fetch(ctx context.Context, ref string) ([]byte, error) {
	var f Fetcher
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		f = r.HTTP
	case strings.HasPrefix(ref, wallhavenPrefix):
		f = r.Wallhaven
		ref = strings.TrimPrefix(ref, wallhavenPrefix)
	default:
		f = r.Local
	}

	if f == nil {
		return nil, errors.Wrapf(ErrNoFetcher, "%q", ref)
	}
	return f.Fetch(ctx, ref)
}

// Bind adapts a fetcher and a reference to a pipeline load.
func Bind(f Fetcher, ref string) pipeline.FetchFunc {
	return func(ctx context.Context) ([]byte, error) {
		return f.Fetch(ctx, ref)
	}
}
