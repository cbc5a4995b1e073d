package display

import (
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

// NewMock returns a screen that logs every call and keeps what was drawn.
func NewMock(width, height int, logger *zap.Logger) *Mock {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mock{
		l:      logger.With(zap.String("via", "mock-screen")),
		canvas: imaging.New(width, height, image.Black),
	}
}

type Mock struct {
	mu     sync.Mutex
	l      *zap.Logger
	canvas *image.NRGBA
	draws  int
	on     bool
	light  uint8
}

func (m *Mock) Startup() error {
	m.mu.Lock()
	m.on = true
	m.mu.Unlock()
	m.l.Info("startup")
	return nil
}

func (m *Mock) Shutdown() error {
	m.mu.Lock()
	m.on = false
	m.mu.Unlock()
	m.l.Info("shutdown")
	return nil
}

func (m *Mock) SetLight(light uint8) error {
	m.mu.Lock()
	m.light = light
	m.mu.Unlock()
	m.l.With(zap.Uint8("light", light)).Info("set-light")
	return nil
}

func (m *Mock) SetRotate(landscape bool, invert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.canvas.Bounds()
	w, h := b.Dx(), b.Dy()
	if landscape != (w > h) {
		m.canvas = imaging.New(h, w, image.Black)
	}

	m.l.With(zap.Bool("landscape", landscape), zap.Bool("invert", invert)).Info("set-rotate")
	return nil
}

func (m *Mock) Size() image.Point {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canvas.Bounds().Size()
}

func (m *Mock) DrawBitmap(posX uint16, posY uint16, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := img.Bounds()
	m.canvas = imaging.Paste(m.canvas, img, image.Pt(int(posX), int(posY)))
	m.draws++

	m.l.With(
		zap.Uint16("x", posX),
		zap.Uint16("y", posY),
		zap.Int("w", b.Dx()),
		zap.Int("h", b.Dy()),
	).Debug("draw-bitmap")
	return nil
}

// Canvas returns a copy of everything drawn so far.
func (m *Mock) Canvas() *image.NRGBA {
	m.mu.Lock()
	defer m.mu.Unlock()
	return imaging.Clone(m.canvas)
}

func (m *Mock) Draws() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.draws
}

func (m *Mock) On() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.on
}

func (m *Mock) Light() uint8 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.light
}
