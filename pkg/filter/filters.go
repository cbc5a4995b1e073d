package filter

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"
)

func gaussianBlur(src image.Image, p Parameters) *image.NRGBA {
	// imaging samples 3 sigma on each side, so radius/3 keeps the visible
	// spread close to the requested radius.
	return imaging.Blur(src, p.Radius/3)
}

// sepia blends the classic sepia tone matrix with the source by intensity.
func sepia(src image.Image, p Parameters) *image.NRGBA {
	k := p.Intensity
	return imaging.AdjustFunc(src, func(c color.NRGBA) color.NRGBA {
		r, g, b := float64(c.R), float64(c.G), float64(c.B)
		sr := 0.393*r + 0.769*g + 0.189*b
		sg := 0.349*r + 0.686*g + 0.168*b
		sb := 0.272*r + 0.534*g + 0.131*b
		return color.NRGBA{
			R: clamp8(r + (sr-r)*k),
			G: clamp8(g + (sg-g)*k),
			B: clamp8(b + (sb-b)*k),
			A: c.A,
		}
	})
}

func invert(src image.Image, _ Parameters) *image.NRGBA {
	return imaging.Invert(src)
}

// pixellate replaces every scale x scale block with its mean color.
func pixellate(src image.Image, p Parameters) *image.NRGBA {
	dst := imaging.Clone(src)
	size := int(math.Round(p.Scale))
	if size <= 1 {
		return dst
	}

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	for by := 0; by < h; by += size {
		for bx := 0; bx < w; bx += size {
			ex, ey := minInt(bx+size, w), minInt(by+size, h)

			var sum [4]int
			for y := by; y < ey; y++ {
				for x := bx; x < ex; x++ {
					i := dst.PixOffset(x, y)
					for c := 0; c < 4; c++ {
						sum[c] += int(dst.Pix[i+c])
					}
				}
			}

			n := (ex - bx) * (ey - by)
			var mean [4]uint8
			for c := 0; c < 4; c++ {
				mean[c] = uint8(sum[c] / n)
			}

			for y := by; y < ey; y++ {
				for x := bx; x < ex; x++ {
					i := dst.PixOffset(x, y)
					copy(dst.Pix[i:i+4], mean[:])
				}
			}
		}
	}

	return dst
}

// unsharpMask adds intensity times the high frequency detail (src - blur) back
// onto the source.
func unsharpMask(src image.Image, p Parameters) *image.NRGBA {
	dst := imaging.Clone(src)
	if p.Radius <= 0 || p.Intensity <= 0 {
		return dst
	}

	blurred := imaging.Blur(dst, p.Radius/3)
	amount := p.Intensity * 2
	for i := 0; i < len(dst.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(dst.Pix[i+c])
			dst.Pix[i+c] = clamp8(v + (v-float64(blurred.Pix[i+c]))*amount)
		}
	}

	return dst
}

// vignette darkens pixels towards the corners. radius moves the start of the
// falloff from the center (0) to the corners (Radius max).
func vignette(src image.Image, p Parameters) *image.NRGBA {
	dst := imaging.Clone(src)
	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	cx, cy := float64(w)/2, float64(h)/2
	far := math.Hypot(cx, cy)
	start := p.Radius / Radius.Range().Max

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			d := math.Hypot(float64(x)+0.5-cx, float64(y)+0.5-cy) / far
			k := 1 - p.Intensity*smoothstep(start, 1, d)
			i := dst.PixOffset(x, y)
			for c := 0; c < 3; c++ {
				dst.Pix[i+c] = clamp8(float64(dst.Pix[i+c]) * k)
			}
		}
	}

	return dst
}

// motionBlur averages each pixel with its horizontal neighbours.
func motionBlur(src image.Image, p Parameters) *image.NRGBA {
	dst := imaging.Clone(src)
	half := int(math.Round(p.Radius / 2))
	if half <= 0 {
		return dst
	}

	w, h := dst.Rect.Dx(), dst.Rect.Dy()
	prefix := make([][4]int, w+1)

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				prefix[x+1][c] = prefix[x][c] + int(dst.Pix[i+c])
			}
		}
		for x := 0; x < w; x++ {
			lo, hi := maxInt(0, x-half), minInt(w-1, x+half)
			n := hi - lo + 1
			i := dst.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				dst.Pix[i+c] = uint8((prefix[hi+1][c] - prefix[lo][c]) / n)
			}
		}
	}

	return dst
}

// twirl rotates the pixels inside radius around the image center, the most
// near the center and not at all at the rim.
func twirl(src image.Image, p Parameters) *image.NRGBA {
	in := imaging.Clone(src)
	dst := imaging.Clone(in)
	if p.Radius <= 0 {
		return dst
	}

	const angle = math.Pi
	w, h := in.Rect.Dx(), in.Rect.Dy()
	cx, cy := float64(w)/2, float64(h)/2

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)+0.5-cx, float64(y)+0.5-cy
			d := math.Hypot(dx, dy)
			if d >= p.Radius {
				continue
			}
			t := (p.Radius - d) / p.Radius
			sin, cos := math.Sincos(angle * t * t)
			sx := clampInt(int(cx+dx*cos-dy*sin), 0, w-1)
			sy := clampInt(int(cy+dx*sin+dy*cos), 0, h-1)
			copy(dst.Pix[dst.PixOffset(x, y):dst.PixOffset(x, y)+4], in.Pix[in.PixOffset(sx, sy):in.PixOffset(sx, sy)+4])
		}
	}

	return dst
}

// crystallize paints every pixel with the color of its nearest seed, one
// jittered seed per grid cell.
func crystallize(src image.Image, p Parameters) *image.NRGBA {
	in := imaging.Clone(src)
	dst := imaging.Clone(in)
	cell := int(math.Round(p.Radius / 4))
	if cell <= 1 {
		return dst
	}

	w, h := in.Rect.Dx(), in.Rect.Dy()
	cols, rows := (w+cell-1)/cell, (h+cell-1)/cell

	seeds := make([]image.Point, cols*rows)
	for j := 0; j < rows; j++ {
		for i := 0; i < cols; i++ {
			hs := hash2(i, j)
			seeds[j*cols+i] = image.Pt(
				minInt(i*cell+int(hs%uint32(cell)), w-1),
				minInt(j*cell+int((hs>>16)%uint32(cell)), h-1),
			)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ci, cj := x/cell, y/cell
			best, bestD := image.Pt(x, y), math.MaxInt
			for j := maxInt(0, cj-1); j <= minInt(rows-1, cj+1); j++ {
				for i := maxInt(0, ci-1); i <= minInt(cols-1, ci+1); i++ {
					s := seeds[j*cols+i]
					d := (s.X-x)*(s.X-x) + (s.Y-y)*(s.Y-y)
					if d < bestD {
						best, bestD = s, d
					}
				}
			}
			si := in.PixOffset(best.X, best.Y)
			di := dst.PixOffset(x, y)
			copy(dst.Pix[di:di+4], in.Pix[si:si+4])
		}
	}

	return dst
}

var edgeKernel = [9]float64{
	-1, -1, -1,
	-1, 8, -1,
	-1, -1, -1,
}

// comic posterizes saturated colors and inks strong edges black.
func comic(src image.Image, _ Parameters) *image.NRGBA {
	const levels = 4
	const inkThreshold = 48

	edges := imaging.Convolve3x3(imaging.Grayscale(src), edgeKernel, nil)
	dst := imaging.AdjustFunc(imaging.AdjustSaturation(src, 40), func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{R: posterize(c.R, levels), G: posterize(c.G, levels), B: posterize(c.B, levels), A: c.A}
	})

	for i := 0; i < len(dst.Pix); i += 4 {
		if edges.Pix[i] > inkThreshold {
			dst.Pix[i], dst.Pix[i+1], dst.Pix[i+2] = 0, 0, 0
		}
	}

	return dst
}

func posterize(v uint8, levels int) uint8 {
	step := 255 / float64(levels-1)
	return clamp8(math.Round(float64(v)/step) * step)
}

func smoothstep(edge0, edge1, x float64) float64 {
	if edge0 >= edge1 {
		return 0
	}
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}

func hash2(i, j int) uint32 {
	h := uint32(i)*0x8da6b343 ^ uint32(j)*0xd8163841
	h ^= h >> 13
	h *= 0x5bd1e995
	h ^= h >> 15
	return h
}

func clamp8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}

func clampInt(v, lo, hi int) int {
	return maxInt(lo, minInt(hi, v))
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
