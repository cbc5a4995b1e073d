package main

import (
	"context"
	"log"

	"github.com/disintegration/imaging"
	"github.com/spf13/afero"
	flag "github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"instafilter/pkg/bot"
	"instafilter/pkg/display"
	"instafilter/pkg/filter"
	"instafilter/pkg/preset"
	"instafilter/pkg/sink"
)

var tgToken = flag.String("tg-token", "", "telegram bot token")
var presetFile = flag.String("presets", "", "presets yaml file")
var out = flag.String("out", "", "keep every rendered image in this directory")
var screen = flag.String("screen", "", "preview screen serial name or proxy addr")
var light = flag.Uint8("light", 100, "preview screen light percent")
var blocks = flag.Int("blocks", 32, "preview block size, 0 draws at once")
var tallyFile = flag.String("tally", "", "keep feedback counters in this yaml file")
var debug = flag.Bool("debug", false, "set debug")

func newLogger() (*zap.Logger, error) {
	if *debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func newPresets(catalog *filter.Catalog) (*preset.Set, error) {
	if *presetFile == "" {
		return nil, nil
	}
	return preset.Load(afero.NewOsFs(), *presetFile, catalog)
}

func newTally(logger *zap.Logger) (*bot.Tally, error) {
	if *tallyFile == "" {
		return bot.NewTally(), nil
	}
	return bot.LoadTally(afero.NewOsFs(), *tallyFile, logger)
}

func newSink(logger *zap.Logger, lifecycle fx.Lifecycle) (sink.Sink, error) {
	var ss sink.Multi

	if *out != "" {
		e, err := sink.NewExporter(*out, sink.WithFormat(imaging.JPEG), sink.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		ss = append(ss, e)
	}

	if *screen != "" {
		dev, err := display.Open(*screen, logger)
		if err != nil {
			return nil, err
		}
		lifecycle.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				if err := dev.Startup(); err != nil {
					return err
				}
				return dev.SetLight(display.Light(*light))
			},
			OnStop: func(ctx context.Context) error {
				return dev.Shutdown()
			},
		})
		ss = append(ss, display.NewPreview(dev, display.WithBlocks(*blocks), display.WithPreviewLogger(logger)))
	}

	return ss, nil
}

func newBot(logger *zap.Logger, catalog *filter.Catalog, presets *preset.Set, s sink.Sink, tally *bot.Tally) (*bot.Bot, error) {
	return bot.New(*tgToken, logger,
		bot.WithCatalog(catalog),
		bot.WithPresets(presets),
		bot.WithSink(s),
		bot.WithTally(tally),
	)
}

func run(lifecycle fx.Lifecycle, b *bot.Bot) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			b.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			b.Stop()
			return nil
		},
	})
}

func main() {
	flag.Parse()

	if *tgToken == "" {
		log.Fatal("--tg-token is required")
	}

	fx.New(
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
		fx.Provide(
			newLogger,
			filter.Default,
			newPresets,
			newTally,
			newSink,
			newBot,
		),
		fx.Invoke(run),
	).Run()
}
