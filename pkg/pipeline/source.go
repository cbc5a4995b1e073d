package pipeline

import (
	"bytes"
	"context"

	"github.com/disintegration/imaging"
	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"
)

// FetchFunc supplies raw image bytes, possibly blocking on i/o.
type FetchFunc func(ctx context.Context) ([]byte, error)

// SetSource decodes data and makes it the new source. On a decode failure the
// previous state is kept and false is returned.
func (p *Pipeline) SetSource(data []byte) bool {
	return p.setSource(data, p.loads.Inc())
}

// LoadSource runs fetch in the background and then behaves like SetSource.
// A load that resolves after a newer SetSource, SetImage or LoadSource call is
// discarded. The channel receives the outcome and is closed.
func (p *Pipeline) LoadSource(ctx context.Context, fetch FetchFunc) <-chan bool {
	token := p.loads.Inc()
	done := make(chan bool, 1)

	go func() {
		defer close(done)

		data, err := fetch(ctx)
		if err != nil {
			p.fail(token, errors.Wrap(ErrLoad, err.Error()))
			done <- false
			return
		}

		done <- p.setSource(data, token)
	}()

	return done
}

func (p *Pipeline) setSource(data []byte, token uint64) bool {
	log := p.logger.With(
		zap.Uint64("load", token),
		zap.String("size", bytesize.New(float64(len(data))).String()),
	)

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		p.fail(token, errors.Wrap(ErrDecode, err.Error()))
		return false
	}

	p.l.Lock()
	if token != p.loads.Load() {
		p.l.Unlock()
		log.Debug("superseded load dropped")
		return false
	}
	p.source = img
	p.gen++
	s := p.snapshot()
	p.l.Unlock()

	log.With(zap.Stringer("bounds", img.Bounds())).Debug("source decoded")
	p.recompute(s)
	return true
}

func (p *Pipeline) fail(token uint64, err error) {
	p.l.Lock()
	if token == p.loads.Load() {
		p.err = err
	}
	p.l.Unlock()

	p.logger.With(zap.Uint64("load", token), zap.Error(err)).Info("source rejected")
}
