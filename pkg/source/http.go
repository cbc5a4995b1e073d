package source

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-resty/resty/v2"
	"github.com/inhies/go-bytesize"
	"github.com/pkg/errors"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

type HTTPOption func(h *HTTP)

// WithProgress draws a download progress bar on the terminal.
func WithProgress() HTTPOption {
	return func(h *HTTP) {
		h.progress = true
	}
}

// WithMaxBytes rejects bodies larger than max bytes.
func WithMaxBytes(max int64) HTTPOption {
	return func(h *HTTP) {
		h.maxBytes = max
	}
}

func NewHTTP(logger *zap.Logger, opts ...HTTPOption) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &HTTP{
		cli:      resty.New().SetDoNotParseResponse(true),
		log:      logger.With(zap.String("via", "http-source")),
		maxBytes: 64 << 20,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

type HTTP struct {
	cli      *resty.Client
	log      *zap.Logger
	progress bool
	maxBytes int64
}

func (h *HTTP) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := h.cli.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}

	defer func() {
		_ = resp.RawBody().Close()
	}()

	if resp.StatusCode() >= 400 {
		return nil, errors.Errorf("get %s: %s", url, resp.Status())
	}

	length := resp.RawResponse.ContentLength
	if h.maxBytes > 0 && length > h.maxBytes {
		return nil, errors.Errorf("get %s: body of %s too large", url, bytesize.New(float64(length)))
	}

	var buf bytes.Buffer
	var dst io.Writer = &buf
	if h.progress {
		dst = io.MultiWriter(&buf, progressbar.DefaultBytes(length, fmt.Sprintf("Downloading %s", url)))
	}

	body := io.Reader(resp.RawBody())
	if h.maxBytes > 0 {
		body = io.LimitReader(body, h.maxBytes+1)
	}

	n, err := io.Copy(dst, body)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", url)
	}
	if h.maxBytes > 0 && n > h.maxBytes {
		return nil, errors.Errorf("get %s: body exceeds %s", url, bytesize.New(float64(h.maxBytes)))
	}

	h.log.With(zap.String("url", url), zap.String("size", bytesize.New(float64(n)).String())).Debug("downloaded")
	return buf.Bytes(), nil
}
