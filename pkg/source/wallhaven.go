package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/moolex/wallhaven-go/api"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

type WallhavenOption func(w *Wallhaven)

// WithMaxSize downloads the thumbnail instead of wallpapers above max bytes.
func WithMaxSize(max int) WallhavenOption {
	return func(w *Wallhaven) {
		w.maxSize = max
	}
}

func WithPurity(levels ...string) WallhavenOption {
	return func(w *Wallhaven) {
		w.purity = levels
	}
}

func WithCategory(names ...string) WallhavenOption {
	return func(w *Wallhaven) {
		w.category = names
	}
}

func NewWallhaven(key string, dl Fetcher, logger *zap.Logger, opts ...WallhavenOption) *Wallhaven {
	if logger == nil {
		logger = zap.NewNop()
	}

	wh := api.New(key)
	wh.SetLogger(logger)

	w := &Wallhaven{
		api: wh,
		dl:  dl,
		log: logger.With(zap.String("via", "wallhaven-source")),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Wallhaven fetches a random wallpaper matching the query.
type Wallhaven struct {
	api      *api.API
	dl       Fetcher
	log      *zap.Logger
	maxSize  int
	purity   []string
	category []string
}

func (w *Wallhaven) query(q string) *api.QueryCond {
	cond := api.NewQuery(strings.TrimSpace(q))
	if len(w.category) > 0 {
		cond.SetCategory(w.category...)
	}
	if len(w.purity) > 0 {
		cond.SetPurity(w.purity...)
	}
	cond.Random()
	return cond
}

func (w *Wallhaven) Fetch(ctx context.Context, q string) ([]byte, error) {
	ret, err := w.api.Query(w.query(q))
	if err != nil {
		return nil, fmt.Errorf("wallhaven query failed: %w", err)
	}

	wp, err := ret.Pick(api.PickRand)
	if err != nil {
		return nil, fmt.Errorf("get wallpaper failed: %w", err)
	}

	thumb := w.maxSize > 0 && wp.FileSize > w.maxSize
	w.log.With(zap.String("id", wp.Id), zap.Bool("thumb", thumb)).Debug("picked")

	return w.dl.Fetch(ctx, lo.Ternary(thumb, wp.Thumbs.Original, wp.Path))
}
