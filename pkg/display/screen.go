// Package display previews rendered images on the 3.5" USB serial screen,
// either attached locally or through a remote rpc proxy.
package display

import (
	"image"
	"strings"

	"go.uber.org/zap"
)

type Screen interface {
	Startup() error
	Shutdown() error

	SetLight(light uint8) error
	SetRotate(landscape bool, invert bool) error

	// Size is the drawable area in the current orientation.
	Size() image.Point
	DrawBitmap(posX uint16, posY uint16, img image.Image) error
}

// Light converts a brightness percentage into the screen's inverted scale.
func Light(percent uint8) uint8 {
	if percent > 100 {
		percent = 100
	}
	return uint8((1 - float64(percent)/100) * 255)
}

// Open dials a screen proxy when ref looks like host:port and opens the
// serial port matching ref otherwise.
func Open(ref string, logger *zap.Logger) (Screen, error) {
	if strings.Contains(ref, ":") {
		return Dial(ref)
	}
	return OpenSerial(ref, logger)
}
