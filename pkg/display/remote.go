package display

import (
	"bytes"
	"context"
	"image"
	"net/http"
	"net/rpc"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Ack = bool

type RotateRequest struct {
	Landscape bool
	Invert    bool
}

type DrawRequest struct {
	PosX  uint16
	PosY  uint16
	Image []byte
}

// Dial connects to a screen served by Proxy.
func Dial(addr string) (*Remote, error) {
	client, err := rpc.DialHTTP("tcp", addr)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", addr)
	}
	return &Remote{rpc: client}, nil
}

type Remote struct {
	rpc *rpc.Client
}

func (r *Remote) Startup() error {
	return r.rpc.Call("Screen.Command", "startup", new(Ack))
}

func (r *Remote) Shutdown() error {
	return r.rpc.Call("Screen.Command", "shutdown", new(Ack))
}

func (r *Remote) SetLight(light uint8) error {
	return r.rpc.Call("Screen.SetLight", light, new(Ack))
}

func (r *Remote) SetRotate(landscape bool, invert bool) error {
	return r.rpc.Call("Screen.SetRotate", RotateRequest{Landscape: landscape, Invert: invert}, new(Ack))
}

// Size returns the zero point when the proxy is unreachable.
func (r *Remote) Size() image.Point {
	var size image.Point
	_ = r.rpc.Call("Screen.Size", true, &size)
	return size
}

func (r *Remote) DrawBitmap(posX uint16, posY uint16, img image.Image) error {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return err
	}

	return r.rpc.Call("Screen.DrawBitmap", &DrawRequest{PosX: posX, PosY: posY, Image: buf.Bytes()}, new(Ack))
}

func (r *Remote) Close() error {
	return r.rpc.Close()
}

// Service exposes a Screen over net/rpc.
type Service struct {
	screen Screen
}

func (s *Service) Command(name string, ack *Ack) error {
	var err error
	switch name {
	case "startup":
		err = s.screen.Startup()
	case "shutdown":
		err = s.screen.Shutdown()
	default:
		err = errors.Errorf("unknown command %s", name)
	}
	*ack = err == nil
	return err
}

func (s *Service) SetLight(light uint8, ack *Ack) error {
	*ack = true
	return s.screen.SetLight(light)
}

func (s *Service) SetRotate(req RotateRequest, ack *Ack) error {
	*ack = true
	return s.screen.SetRotate(req.Landscape, req.Invert)
}

func (s *Service) Size(_ bool, size *image.Point) error {
	*size = s.screen.Size()
	return nil
}

func (s *Service) DrawBitmap(req *DrawRequest, ack *Ack) error {
	img, err := imaging.Decode(bytes.NewReader(req.Image))
	if err != nil {
		return err
	}
	*ack = true
	return s.screen.DrawBitmap(req.PosX, req.PosY, img)
}

// Handler serves screen over rpc on the default rpc path.
func Handler(screen Screen) (http.Handler, error) {
	srv := rpc.NewServer()
	if err := srv.RegisterName("Screen", &Service{screen: screen}); err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(rpc.DefaultRPCPath, srv)
	return mux, nil
}

// Proxy serves screen on srv for the lifetime of the fx application.
func Proxy(screen Screen, srv *http.Server, lifecycle fx.Lifecycle, logger *zap.Logger) error {
	h, err := Handler(screen)
	if err != nil {
		return err
	}
	srv.Handler = h

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != http.ErrServerClosed {
					logger.With(zap.Error(err)).Fatal("screen proxy stopped")
				}
			}()
			logger.With(zap.String("addr", srv.Addr)).Info("screen proxy listening")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})

	return nil
}
