package display

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.uber.org/zap"
)

const (
	cmdRestart    = 101
	cmdShutdown   = 108
	cmdStartup    = 109
	cmdSetLight   = 110
	cmdSetRotate  = 121
	cmdSetMirror  = 122
	cmdDrawBitmap = 197
)

// FindPort returns the first serial port whose name contains name.
func FindPort(name string) (string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return "", err
	}

	for _, p := range ports {
		if strings.Contains(p, name) {
			return p, nil
		}
	}

	return "", errors.Errorf("USB port %s not found", name)
}

// OpenSerial connects to the screen on the first port matching name.
func OpenSerial(name string, logger *zap.Logger) (*Serial, error) {
	matched, err := FindPort(name)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(matched, &serial.Mode{BaudRate: 115200})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", matched)
	}
	if err := port.SetDTR(true); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "set DTR")
	}
	if err := port.SetRTS(true); err != nil {
		_ = port.Close()
		return nil, errors.Wrap(err, "set RTS")
	}

	return NewSerial(port, logger), nil
}

func NewSerial(port io.WriteCloser, logger *zap.Logger) *Serial {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Serial{
		port:   port,
		logger: logger.With(zap.String("via", "serial-screen")),
		width:  320,
		height: 480,
	}
}

// Serial drives the 3.5" screen. Commands are 6 byte frames packing four
// 10 bit arguments followed by the command code.
type Serial struct {
	l sync.Mutex
	// tl keeps a frame and its payload together on the wire.
	tl     sync.Mutex
	port   io.WriteCloser
	logger *zap.Logger
	width  int
	height int
}

func (s *Serial) Startup() error {
	return s.command(cmdStartup)
}

func (s *Serial) Shutdown() error {
	return s.command(cmdShutdown)
}

func (s *Serial) Restart() error {
	return s.command(cmdRestart)
}

func (s *Serial) SetLight(light uint8) error {
	return s.command(cmdSetLight, int(light))
}

func (s *Serial) SetMirror(mirror bool) error {
	var b byte
	if mirror {
		b = 1
	}
	return s.option(cmdSetMirror, 16, []byte{b})
}

func (s *Serial) SetRotate(landscape bool, invert bool) error {
	s.l.Lock()
	w, h := 320, 480
	mode := 100
	if landscape {
		mode++
		w, h = h, w
	}
	if invert {
		mode++
	}
	s.width, s.height = w, h
	s.l.Unlock()

	var payload bytes.Buffer
	payload.WriteByte(uint8(mode))
	_ = binary.Write(&payload, binary.BigEndian, uint16(w))
	_ = binary.Write(&payload, binary.BigEndian, uint16(h))

	return s.option(cmdSetRotate, 16, payload.Bytes())
}

func (s *Serial) Size() image.Point {
	s.l.Lock()
	defer s.l.Unlock()
	return image.Pt(s.width, s.height)
}

func (s *Serial) DrawBitmap(posX uint16, posY uint16, img image.Image) error {
	size := img.Bounds().Size()
	screen := s.Size()

	if size.X+int(posX) > screen.X {
		return errors.New("width overflow")
	} else if size.Y+int(posY) > screen.Y {
		return errors.New("height overflow")
	}

	x, y := int(posX), int(posY)
	data := EncodeRGB565(img)

	s.tl.Lock()
	defer s.tl.Unlock()

	if err := s.write(frame(cmdDrawBitmap, [4]int{x, y, x + size.X - 1, y + size.Y - 1}, nil)); err != nil {
		return err
	}
	return s.write(data)
}

func (s *Serial) Close() error {
	return s.port.Close()
}

func frame(code uint8, args [4]int, dst []byte) []byte {
	if len(dst) < 6 {
		dst = make([]byte, 6)
	}
	a, b, c, d := args[0], args[1], args[2], args[3]
	dst[0] = byte(a >> 2)
	dst[1] = byte((a&3)<<6 + b>>4)
	dst[2] = byte((b&0xF)<<4 + c>>6)
	dst[3] = byte((c&0x3F)<<2 + d>>8)
	dst[4] = byte(d & 0xFF)
	dst[5] = code
	return dst
}

func (s *Serial) command(code uint8, args ...int) error {
	if len(args) > 4 {
		return errors.New("too many args")
	}

	var packed [4]int
	copy(packed[:], args)

	s.tl.Lock()
	defer s.tl.Unlock()
	return s.write(frame(code, packed, nil))
}

// option sends a frame followed by payload, zero padded to fixed bytes.
func (s *Serial) option(code uint8, fixed int, payload []byte) error {
	if len(payload) > fixed-6 {
		return errors.New("too many bytes")
	}

	buf := make([]byte, fixed)
	copy(buf[6:], payload)

	s.tl.Lock()
	defer s.tl.Unlock()
	return s.write(frame(code, [4]int{}, buf))
}

func (s *Serial) write(data []byte) error {
	start := time.Now()
	n, err := s.port.Write(data)
	if err != nil {
		return errors.Wrap(err, "serial write")
	}

	ext := ""
	if len(data) <= 16 {
		ext = fmt.Sprintf("%x", data)
	}

	s.logger.With(
		zap.Int("sent", n),
		zap.Duration("cost", time.Since(start)),
		zap.String("data", ext),
	).Debug("transfer")

	return nil
}
