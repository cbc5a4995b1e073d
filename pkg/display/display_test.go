package display

import (
	"bytes"
	"image"
	"image/color"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"instafilter/pkg/filter"
	"instafilter/pkg/pipeline"
)

type capture struct {
	bytes.Buffer
	closed bool
}

func (c *capture) Close() error {
	c.closed = true
	return nil
}

func TestEncodeRGB565(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 255, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{G: 255, B: 255, A: 0})

	assert.Equal(t, []byte{0x00, 0xF8, 0x00, 0x00}, EncodeRGB565(img))

	white := imaging.New(3, 2, color.White)
	out := EncodeRGB565(white.SubImage(image.Rect(1, 1, 3, 2)))
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0xFF}, out)
}

func TestFrame(t *testing.T) {
	assert.Equal(t, []byte{0, 0, 0, 0, 0, cmdStartup}, frame(cmdStartup, [4]int{}, nil))
	assert.Equal(t, []byte{0x19, 0x00, 0x00, 0x00, 0x00, cmdSetLight}, frame(cmdSetLight, [4]int{100}, nil))
	// x=0 y=0 x2=319 y2=479
	assert.Equal(t, []byte{0x00, 0x00, 0x04, 0xFD, 0xDF, cmdDrawBitmap}, frame(cmdDrawBitmap, [4]int{0, 0, 319, 479}, nil))
}

func TestSerialDraw(t *testing.T) {
	port := &capture{}
	s := NewSerial(port, zaptest.NewLogger(t))

	require.NoError(t, s.DrawBitmap(10, 20, imaging.New(4, 3, color.Black)))
	assert.Equal(t, 6+4*3*2, port.Len())

	assert.EqualError(t, s.DrawBitmap(318, 0, imaging.New(4, 3, color.Black)), "width overflow")
	assert.EqualError(t, s.DrawBitmap(0, 478, imaging.New(4, 3, color.Black)), "height overflow")

	require.NoError(t, s.Close())
	assert.True(t, port.closed)
}

// writes records every port write separately.
type writes struct {
	sync.Mutex
	chunks [][]byte
}

func (w *writes) Write(p []byte) (int, error) {
	w.Lock()
	defer w.Unlock()
	w.chunks = append(w.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func (w *writes) Close() error {
	return nil
}

func unframe(b []byte) [4]int {
	return [4]int{
		int(b[0])<<2 | int(b[1])>>6,
		int(b[1]&0x3F)<<4 | int(b[2])>>4,
		int(b[2]&0x0F)<<6 | int(b[3])>>2,
		int(b[3]&0x03)<<8 | int(b[4]),
	}
}

func TestSerialConcurrentDraws(t *testing.T) {
	port := &writes{}
	s := NewSerial(port, nil)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			assert.NoError(t, s.DrawBitmap(0, 0, imaging.New(w, 2, color.White)))
		}(i%50 + 1)
	}
	wg.Wait()

	require.Len(t, port.chunks, 200)
	for i := 0; i < len(port.chunks); i += 2 {
		head, data := port.chunks[i], port.chunks[i+1]
		require.Len(t, head, 6, i)
		require.Equal(t, byte(cmdDrawBitmap), head[5], i)

		args := unframe(head)
		assert.Equal(t, (args[2]-args[0]+1)*(args[3]-args[1]+1)*2, len(data), i)
	}
}

func TestSerialRotate(t *testing.T) {
	port := &capture{}
	s := NewSerial(port, nil)

	require.NoError(t, s.SetRotate(true, false))
	assert.Equal(t, image.Pt(480, 320), s.Size())

	sent := port.Bytes()
	require.Len(t, sent, 16)
	assert.Equal(t, byte(cmdSetRotate), sent[5])
	assert.Equal(t, []byte{101, 0x01, 0xE0, 0x01, 0x40}, sent[6:11])

	require.NoError(t, s.SetRotate(false, false))
	assert.Equal(t, image.Pt(320, 480), s.Size())
}

func TestLight(t *testing.T) {
	assert.Equal(t, uint8(255), Light(0))
	assert.Equal(t, uint8(0), Light(100))
	assert.Equal(t, uint8(0), Light(150))
}

func TestPreviewBlocks(t *testing.T) {
	screen := NewMock(64, 32, zaptest.NewLogger(t))
	p := NewPreview(screen, WithBlocks(16))

	src := imaging.New(32, 16, color.White)
	require.NoError(t, p.Show(&pipeline.Rendered{Image: src, Kind: filter.Invert}))

	assert.Equal(t, 8, screen.Draws())
	canvas := screen.Canvas()
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, canvas.NRGBAAt(32, 16))
}

func TestPreviewLetterbox(t *testing.T) {
	screen := NewMock(40, 40, nil)
	p := NewPreview(screen)

	require.NoError(t, p.Show(&pipeline.Rendered{Image: imaging.New(40, 20, color.White)}))
	assert.Equal(t, 1, screen.Draws())

	canvas := screen.Canvas()
	assert.Equal(t, color.NRGBA{A: 255}, canvas.NRGBAAt(20, 2))
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, canvas.NRGBAAt(20, 20))

	require.NoError(t, p.Show(nil))
	assert.Equal(t, 2, screen.Draws())
	assert.Equal(t, color.NRGBA{A: 255}, screen.Canvas().NRGBAAt(20, 20))
}

func TestRemoteRoundTrip(t *testing.T) {
	screen := NewMock(32, 48, zaptest.NewLogger(t))
	h, err := Handler(screen)
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	remote, err := Dial(srv.Listener.Addr().String())
	require.NoError(t, err)
	defer func() { _ = remote.Close() }()

	require.NoError(t, remote.Startup())
	assert.True(t, screen.On())

	require.NoError(t, remote.SetLight(42))
	assert.Equal(t, uint8(42), screen.Light())

	require.NoError(t, remote.SetRotate(true, false))
	assert.Equal(t, image.Pt(48, 32), remote.Size())

	require.NoError(t, remote.DrawBitmap(4, 4, imaging.New(2, 2, color.White)))
	assert.Equal(t, 1, screen.Draws())
	assert.Equal(t, color.NRGBA{R: 255, G: 255, B: 255, A: 255}, screen.Canvas().NRGBAAt(5, 5))

	assert.Error(t, remote.rpc.Call("Screen.Command", "explode", new(Ack)))
}
