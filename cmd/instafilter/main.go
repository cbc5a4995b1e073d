package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/goccy/go-json"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"instafilter/pkg/display"
	"instafilter/pkg/filter"
	"instafilter/pkg/pipeline"
	"instafilter/pkg/preset"
	"instafilter/pkg/sink"
	"instafilter/pkg/source"
)

var in = flag.String("in", "", "image file, http(s) url or wallhaven:<query>")
var filterName = flag.String("filter", string(filter.Sepia), "filter kind")
var intensity = flag.Float64("intensity", 0.5, "filter intensity [0,1]")
var radius = flag.Float64("radius", 100, "filter radius [0,200]")
var scale = flag.Float64("scale", 50, "filter scale [0,100]")
var presetFile = flag.String("preset", "", "presets yaml file")
var use = flag.String("use", "", "preset name to apply")
var out = flag.String("out", "", "export directory")
var format = flag.String("format", "png", "export format, png or jpeg")
var screen = flag.String("screen", "", "preview screen serial name or proxy addr")
var light = flag.Uint8("light", 100, "preview screen light percent")
var landscape = flag.Bool("landscape", false, "preview screen landscape")
var blocks = flag.Int("blocks", 0, "preview as shuffled blocks of this size")
var list = flag.Bool("list", false, "list filters and their parameters")
var asJSON = flag.Bool("json", false, "list as json")
var progress = flag.Bool("progress", false, "show download progress")
var timeout = flag.Duration("timeout", time.Minute, "load timeout")
var whKey = flag.String("wh-key", "", "wallhaven api key")
var whPurity = flag.String("wh-purity", "", "wallhaven purity levels")
var whCategory = flag.String("wh-category", "", "wallhaven category names")
var whMaxSize = flag.Int("wh-max-size", 0, "use wallhaven thumbnails above this many bytes")
var debug = flag.Bool("debug", false, "set debug")

type entry struct {
	Kind   filter.Kind    `json:"kind"`
	Name   string         `json:"name"`
	Params []filter.Param `json:"params"`
}

func listFilters(c *filter.Catalog) error {
	entries := lo.Map(c.Descriptors(), func(d *filter.Descriptor, _ int) entry {
		return entry{Kind: d.Kind, Name: d.Name, Params: append([]filter.Param{}, d.Params...)}
	})

	if *asJSON {
		bs, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(bs))
		return nil
	}

	for _, e := range entries {
		params := lo.Map(e.Params, func(p filter.Param, _ int) string { return string(p) })
		fmt.Printf("%-14s %-14s %s\n", e.Kind, e.Name, strings.Join(params, ","))
	}
	return nil
}

func newLogger() *zap.Logger {
	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	return logger
}

func sinks(logger *zap.Logger) (sink.Multi, func()) {
	var ss sink.Multi
	closers := []func(){}

	if *out != "" {
		f := lo.Ternary(strings.HasPrefix(*format, "jp"), imaging.JPEG, imaging.PNG)
		e, err := sink.NewExporter(*out, sink.WithFormat(f), sink.WithLogger(logger))
		if err != nil {
			logger.With(zap.Error(err)).Fatal("exporter")
		}
		ss = append(ss, sink.Func(func(r *pipeline.Rendered) error {
			if err := e.Show(r); err != nil {
				return err
			}
			fmt.Println(e.RealPath(e.Last()))
			return nil
		}))
	}

	if *screen != "" {
		dev, err := display.Open(*screen, logger)
		if err != nil {
			logger.With(zap.Error(err)).Fatal("open screen")
		}
		if err := dev.Startup(); err != nil {
			logger.With(zap.Error(err)).Fatal("screen startup")
		}
		if err := dev.SetLight(display.Light(*light)); err != nil {
			logger.With(zap.Error(err)).Fatal("screen light")
		}
		if err := dev.SetRotate(*landscape, false); err != nil {
			logger.With(zap.Error(err)).Fatal("screen rotate")
		}
		ss = append(ss, display.NewPreview(dev, display.WithBlocks(*blocks), display.WithPreviewLogger(logger)))
		if c, ok := dev.(interface{ Close() error }); ok {
			closers = append(closers, func() { _ = c.Close() })
		}
	}

	return ss, func() {
		for _, c := range closers {
			c()
		}
	}
}

func main() {
	flag.Parse()

	catalog := filter.Default()
	if *list {
		if err := listFilters(catalog); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *in == "" {
		flag.Usage()
		os.Exit(2)
	}

	logger := newLogger()
	defer func() {
		_ = logger.Sync()
	}()

	p := pipeline.New(pipeline.WithCatalog(catalog), pipeline.WithLogger(logger))
	if !p.SetFilterByName(*filterName) {
		logger.With(zap.String("filter", *filterName)).Fatal("unknown filter")
	}

	values := map[filter.Param]float64{filter.Intensity: *intensity, filter.Radius: *radius, filter.Scale: *scale}
	for _, param := range filter.Params() {
		if flag.CommandLine.Changed(string(param)) {
			p.SetParameter(string(param), values[param])
		}
	}

	if *presetFile != "" {
		set, err := preset.Load(afero.NewOsFs(), *presetFile, catalog)
		if err != nil {
			logger.With(zap.Error(err)).Fatal("load presets")
		}
		if *use != "" {
			ps, err := set.Get(*use)
			if err != nil {
				logger.With(zap.Error(err)).Fatal("preset")
			}
			ps.Apply(p)
		}
	}

	var httpOpts []source.HTTPOption
	if *progress {
		httpOpts = append(httpOpts, source.WithProgress())
	}
	dl := source.NewHTTP(logger, httpOpts...)

	var whOpts []source.WallhavenOption
	if *whPurity != "" {
		whOpts = append(whOpts, source.WithPurity(strings.Split(*whPurity, ",")...))
	}
	if *whCategory != "" {
		whOpts = append(whOpts, source.WithCategory(strings.Split(*whCategory, ",")...))
	}
	if *whMaxSize > 0 {
		whOpts = append(whOpts, source.WithMaxSize(*whMaxSize))
	}

	router := &source.Router{
		Local:     source.NewLocalFs(afero.NewOsFs()),
		HTTP:      dl,
		Wallhaven: source.NewWallhaven(*whKey, dl, logger, whOpts...),
	}

	ss, closeSinks := sinks(logger)
	defer closeSinks()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if ok := <-p.LoadSource(ctx, source.Bind(router, *in)); !ok {
		logger.With(zap.Error(p.Err())).Fatal("load failed")
	}

	r := p.Output()
	if r == nil {
		logger.With(zap.Error(p.Err())).Fatal("render failed")
	}

	if err := ss.Show(r); err != nil {
		logger.With(zap.Error(err)).Fatal("output failed")
	}

	logger.With(
		zap.String("filter", string(r.Kind)),
		zap.Stringer("size", r.Image.Bounds().Size()),
	).Info("done")
}
