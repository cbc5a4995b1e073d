package display

import (
	"encoding/binary"
	"image"
)

// EncodeRGB565 packs src row by row into little endian RGB565 words, the
// pixel format the screen expects. Fully transparent pixels become black.
func EncodeRGB565(src image.Image) []byte {
	b := src.Bounds()
	out := make([]byte, 0, 2*b.Dx()*b.Dy())
	var word [2]byte

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			binary.LittleEndian.PutUint16(word[:], toRGB565(src.At(x, y).RGBA()))
			out = append(out, word[:]...)
		}
	}

	return out
}

// toRGB565 keeps the top 5, 6 and 5 bits of the 16 bit red, green and blue
// channels.
func toRGB565(r, g, b, a uint32) uint16 {
	if a == 0 {
		return 0
	}
	return uint16((r & 0xF800) | (g&0xFC00)>>5 | (b&0xF800)>>11)
}
