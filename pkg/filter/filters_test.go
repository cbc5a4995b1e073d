package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiltersPreserveSize(t *testing.T) {
	src := gradient(64, 48)
	for _, d := range Default().Descriptors() {
		d := d
		t.Run(string(d.Kind), func(t *testing.T) {
			out := d.Apply(src, DefaultParameters().Only(d.Params))
			require.NotNil(t, out)
			assert.Equal(t, src.Bounds(), out.Bounds())
		})
	}
}

func TestFiltersZeroParameters(t *testing.T) {
	src := gradient(32, 32)
	for _, d := range Default().Descriptors() {
		out := d.Apply(src, Parameters{})
		require.NotNil(t, out, d.Kind)
		assert.Equal(t, src.Bounds(), out.Bounds(), d.Kind)
	}
}

func TestFiltersChangeImage(t *testing.T) {
	src := gradient(100, 100)
	p := Parameters{Intensity: 0.8, Radius: 40, Scale: 10}
	for _, d := range Default().Descriptors() {
		out := d.Apply(src, p.Only(d.Params))
		assert.NotEqual(t, src.Pix, out.Pix, d.Kind)
	}
}

func TestSepiaIntensityZero(t *testing.T) {
	src := gradient(16, 16)
	out := sepia(src, Parameters{})
	assert.Equal(t, src.Pix, out.Pix)
}

func TestPixellateBlocks(t *testing.T) {
	src := gradient(100, 100)
	coarse := pixellate(src, Parameters{Scale: 50})
	fine := pixellate(src, Parameters{Scale: 10})
	assert.NotEqual(t, coarse.Pix, fine.Pix)

	assert.Equal(t, coarse.NRGBAAt(0, 0), coarse.NRGBAAt(49, 49))
	assert.NotEqual(t, coarse.NRGBAAt(0, 0), coarse.NRGBAAt(50, 50))
}

func TestInvertTwice(t *testing.T) {
	src := gradient(20, 10)
	assert.Equal(t, src.Pix, invert(invert(src, Parameters{}), Parameters{}).Pix)
}

func TestVignetteKeepsCenter(t *testing.T) {
	src := gradient(50, 50)
	out := vignette(src, Parameters{Intensity: 1, Radius: 100})
	assert.Equal(t, src.NRGBAAt(25, 25), out.NRGBAAt(25, 25))
	assert.Less(t, out.NRGBAAt(49, 49).R, src.NRGBAAt(49, 49).R)
}

func TestSmoothstep(t *testing.T) {
	assert.Equal(t, 0.0, smoothstep(0.5, 1, 0.2))
	assert.Equal(t, 1.0, smoothstep(0.5, 1, 1.2))
	assert.Equal(t, 0.5, smoothstep(0, 1, 0.5))
	assert.Equal(t, 0.0, smoothstep(1, 1, 2))
}
