package pipeline

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"instafilter/pkg/filter"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 90, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	return buf.Bytes()
}

func newTestPipeline(t *testing.T, opts ...Option) *Pipeline {
	return New(append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
}

func TestRenderWithoutSource(t *testing.T) {
	p := newTestPipeline(t)
	img, ok := p.Render()
	assert.False(t, ok)
	assert.Nil(t, img)
	assert.Nil(t, p.Output())
	assert.NoError(t, p.Err())
}

func TestEveryFilterRenders(t *testing.T) {
	p := newTestPipeline(t)
	require.True(t, p.SetSource(encodePNG(t, testImage(40, 30))))

	for _, d := range filter.Default().Descriptors() {
		p.SetFilter(d)
		img, ok := p.Render()
		require.True(t, ok, d.Kind)
		assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds(), d.Kind)
		assert.NoError(t, p.Err(), d.Kind)
		assert.Equal(t, d.Kind, p.Output().Kind)
	}
}

func TestSepiaScenario(t *testing.T) {
	src := testImage(100, 100)
	p := newTestPipeline(t, WithFilter(filter.Sepia))
	require.True(t, p.SetSource(encodePNG(t, src)))

	assert.True(t, p.SetParameter("intensity", 0.5))
	img, ok := p.Render()
	require.True(t, ok)

	out := img.(*image.NRGBA)
	assert.Equal(t, 100, out.Bounds().Dx())
	assert.Equal(t, 100, out.Bounds().Dy())
	assert.NotEqual(t, src.Pix, out.Pix)
	assert.Equal(t, filter.Parameters{Intensity: 0.5}, p.Output().Params)
}

func TestPixellateScaleChanges(t *testing.T) {
	p := newTestPipeline(t, WithFilter(filter.Pixellate))
	require.True(t, p.SetSource(encodePNG(t, testImage(100, 100))))

	require.True(t, p.SetParameter("scale", 50))
	first := p.Output()
	require.True(t, p.SetParameter("scale", 10))
	second := p.Output()

	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Greater(t, second.Seq, first.Seq)
	assert.NotEqual(t, first.Image.Pix, second.Image.Pix)
}

func TestUnsupportedParameterIsIgnored(t *testing.T) {
	p := newTestPipeline(t, WithFilter(filter.Sepia))
	require.True(t, p.SetSource(encodePNG(t, testImage(20, 20))))

	before, ok := p.Render()
	require.True(t, ok)
	seq := p.Output().Seq

	assert.False(t, p.SetParameter("radius", 12))
	assert.Equal(t, seq, p.Output().Seq)

	after, ok := p.Render()
	require.True(t, ok)
	assert.Equal(t, before.(*image.NRGBA).Pix, after.(*image.NRGBA).Pix)
	assert.Equal(t, 12.0, p.Parameters().Radius)
}

func TestUnknownParameter(t *testing.T) {
	p := newTestPipeline(t)
	params := p.Parameters()
	assert.False(t, p.SetParameter("angle", 1))
	assert.Equal(t, params, p.Parameters())
}

func TestSwitchingFilterKeepsParameters(t *testing.T) {
	p := newTestPipeline(t, WithFilter(filter.Sepia))
	require.True(t, p.SetSource(encodePNG(t, testImage(10, 10))))

	p.SetParameter("intensity", 0.2)
	p.SetParameter("radius", 33)
	p.SetParameter("scale", 7)

	require.True(t, p.SetFilterByName("pixellate"))
	require.True(t, p.SetFilterByName("gaussian-blur"))

	assert.Equal(t, filter.Parameters{Intensity: 0.2, Radius: 33, Scale: 7}, p.Parameters())
	assert.Equal(t, filter.Parameters{Radius: 33}, p.Output().Params)
}

func TestSetFilterByNameUnknown(t *testing.T) {
	p := newTestPipeline(t)
	assert.False(t, p.SetFilterByName("sharpen"))
	assert.Equal(t, filter.Sepia, p.Filter().Kind)
}

func TestDecodeFailureKeepsOutput(t *testing.T) {
	p := newTestPipeline(t)
	require.True(t, p.SetSource(encodePNG(t, testImage(8, 8))))
	prev := p.Output()
	require.NotNil(t, prev)

	assert.False(t, p.SetSource([]byte("definitely not an image")))
	assert.True(t, errors.Is(p.Err(), ErrDecode))
	assert.Same(t, prev, p.Output())

	_, ok := p.Render()
	assert.True(t, ok)
	assert.NoError(t, p.Err())
}

func TestRenderFailureKeepsOutput(t *testing.T) {
	broken := true
	c := filter.NewCatalog().MustRegister(
		&filter.Descriptor{Kind: "flaky", Apply: func(src image.Image, _ filter.Parameters) *image.NRGBA {
			if broken {
				return nil
			}
			return imaging.Clone(src)
		}},
		&filter.Descriptor{Kind: "shrink", Apply: func(src image.Image, _ filter.Parameters) *image.NRGBA {
			return imaging.Resize(src, 1, 1, imaging.Box)
		}},
		&filter.Descriptor{Kind: "panics", Apply: func(image.Image, filter.Parameters) *image.NRGBA {
			panic("boom")
		}},
	)

	p := newTestPipeline(t, WithCatalog(c))
	assert.Equal(t, filter.Kind("flaky"), p.Filter().Kind)

	p.SetImage(testImage(4, 4))
	assert.Nil(t, p.Output())
	assert.True(t, errors.Is(p.Err(), ErrRender))

	broken = false
	_, ok := p.Render()
	require.True(t, ok)
	prev := p.Output()

	for _, kind := range []string{"shrink", "panics"} {
		require.True(t, p.SetFilterByName(kind))
		_, ok := p.Render()
		assert.False(t, ok, kind)
		assert.True(t, errors.Is(p.Err(), ErrRender), kind)
		assert.Same(t, prev, p.Output(), kind)
	}
}

func TestLoadSourceSuperseded(t *testing.T) {
	p := newTestPipeline(t)
	release := make(chan struct{})
	big := encodePNG(t, testImage(50, 50))

	slow := p.LoadSource(context.Background(), func(ctx context.Context) ([]byte, error) {
		<-release
		return big, nil
	})

	require.True(t, p.SetSource(encodePNG(t, testImage(10, 10))))
	close(release)

	assert.False(t, <-slow)
	assert.Equal(t, image.Rect(0, 0, 10, 10), p.Output().Image.Bounds())
}

func TestLoadSource(t *testing.T) {
	p := newTestPipeline(t)

	data := encodePNG(t, testImage(12, 6))
	ok := <-p.LoadSource(context.Background(), func(ctx context.Context) ([]byte, error) {
		return data, nil
	})
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 12, 6), p.Output().Image.Bounds())

	ok = <-p.LoadSource(context.Background(), func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("offline")
	})
	assert.False(t, ok)
	assert.True(t, errors.Is(p.Err(), ErrLoad))
	assert.Equal(t, image.Rect(0, 0, 12, 6), p.Output().Image.Bounds())
}

func TestSubscribe(t *testing.T) {
	p := newTestPipeline(t)

	var seen []*Rendered
	cancel := p.Subscribe(func(r *Rendered) { seen = append(seen, r) })

	p.SetImage(testImage(5, 5))
	p.SetFilterByName("invert")
	require.Len(t, seen, 2)
	assert.Equal(t, filter.Invert, seen[1].Kind)

	cancel()
	p.SetFilterByName("comic")
	assert.Len(t, seen, 2)
}

func TestClearSource(t *testing.T) {
	p := newTestPipeline(t)
	p.SetImage(testImage(5, 5))
	require.NotNil(t, p.Output())

	var seen []*Rendered
	p.Subscribe(func(r *Rendered) { seen = append(seen, r) })

	p.ClearSource()
	assert.False(t, p.HasSource())
	assert.Nil(t, p.Output())
	require.Len(t, seen, 1)
	assert.Nil(t, seen[0])

	_, ok := p.Render()
	assert.False(t, ok)
}

func TestSetImageNil(t *testing.T) {
	p := newTestPipeline(t)
	p.SetImage(testImage(5, 5))
	require.NotNil(t, p.Output())

	p.SetImage(nil)
	assert.False(t, p.HasSource())
	assert.Nil(t, p.Output())
	assert.NoError(t, p.Err())
}

func TestObserversSeeLatestLast(t *testing.T) {
	p := newTestPipeline(t, WithFilter(filter.Sepia))
	p.SetImage(testImage(20, 20))

	var mu sync.Mutex
	var shown []uint64
	entered := make(chan struct{})
	release := make(chan struct{})

	p.Subscribe(func(r *Rendered) {
		if r.Params.Intensity == 0.1 {
			close(entered)
			<-release
		}
		mu.Lock()
		shown = append(shown, r.Seq)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.SetParameter("intensity", 0.1)
	}()
	<-entered

	go func() {
		defer wg.Done()
		p.SetParameter("intensity", 0.9)
	}()
	require.Eventually(t, func() bool {
		return p.Output().Params.Intensity == 0.9
	}, time.Second, time.Millisecond)

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, shown)
	assert.Equal(t, p.Output().Seq, shown[len(shown)-1])
	for i := 1; i < len(shown); i++ {
		assert.Less(t, shown[i-1], shown[i])
	}
}

func TestWithFilterResolvesInFinalCatalog(t *testing.T) {
	keep := func(src image.Image, _ filter.Parameters) *image.NRGBA { return imaging.Clone(src) }
	c := filter.NewCatalog().MustRegister(
		&filter.Descriptor{Kind: "first", Apply: keep},
		&filter.Descriptor{Kind: "mono", Apply: keep},
	)

	p := newTestPipeline(t, WithFilter("mono"), WithCatalog(c))
	assert.Equal(t, filter.Kind("mono"), p.Filter().Kind)

	p = newTestPipeline(t, WithCatalog(c), WithFilter("missing"))
	assert.Equal(t, filter.Kind("first"), p.Filter().Kind)
}
