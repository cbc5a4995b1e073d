package display

import (
	"image"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"instafilter/pkg/pipeline"
)

type PreviewOption func(p *Preview)

// WithBlocks reveals the image as shuffled size x size tiles.
func WithBlocks(size int) PreviewOption {
	return func(p *Preview) {
		p.block = size
	}
}

func WithPreviewLogger(logger *zap.Logger) PreviewOption {
	return func(p *Preview) {
		p.log = logger.With(zap.String("via", "preview"))
	}
}

func NewPreview(screen Screen, opts ...PreviewOption) *Preview {
	p := &Preview{
		screen: screen,
		log:    zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Preview is a sink that letterboxes rendered images onto a screen.
type Preview struct {
	screen Screen
	block  int
	log    *zap.Logger
}

type tile struct {
	at  image.Point
	img image.Image
}

// Show draws r onto the screen. A nil r blanks it.
func (p *Preview) Show(r *pipeline.Rendered) error {
	size := p.screen.Size()
	if size.X <= 0 || size.Y <= 0 {
		return errors.New("screen size unknown")
	}

	if r == nil {
		p.log.Debug("blanked")
		return p.screen.DrawBitmap(0, 0, imaging.New(size.X, size.Y, image.Black))
	}
	if r.Image == nil {
		return errors.New("nothing rendered")
	}

	fitted := imaging.Fit(r.Image, size.X, size.Y, imaging.Lanczos)
	canvas := imaging.PasteCenter(imaging.New(size.X, size.Y, image.Black), fitted)

	if p.block <= 0 {
		return p.screen.DrawBitmap(0, 0, canvas)
	}

	var tiles []tile
	for y := 0; y < size.Y; y += p.block {
		for x := 0; x < size.X; x += p.block {
			rect := image.Rect(x, y, x+p.block, y+p.block).Intersect(canvas.Rect)
			tiles = append(tiles, tile{at: rect.Min, img: canvas.SubImage(rect)})
		}
	}
	lo.Shuffle(tiles)

	for _, t := range tiles {
		if err := p.screen.DrawBitmap(uint16(t.at.X), uint16(t.at.Y), t.img); err != nil {
			return errors.Wrapf(err, "draw tile at %v", t.at)
		}
	}

	p.log.With(zap.Uint64("seq", r.Seq), zap.Int("tiles", len(tiles))).Debug("previewed")
	return nil
}
