package bot

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"instafilter/pkg/filter"
	"instafilter/pkg/pipeline"
	"instafilter/pkg/preset"
	"instafilter/pkg/sink"
)

const maxUpload = 20 << 20

const help = `Send a photo, then:
/filters - choose a filter
/intensity, /radius, /scale [value] - adjust the filter
/preset [name] - apply a saved preset
/status - show the current settings
/clear - forget the photo`

type Option func(b *Bot)

func WithPresets(s *preset.Set) Option {
	return func(b *Bot) {
		b.presets = s
	}
}

// WithSink shows every rendered image of every chat on s.
func WithSink(s sink.Sink) Option {
	return func(b *Bot) {
		b.sink = s
	}
}

// WithTally keeps the feedback counters of all chats on t.
func WithTally(t *Tally) Option {
	return func(b *Bot) {
		b.tally = t
	}
}

func WithCatalog(c *filter.Catalog) Option {
	return func(b *Bot) {
		b.catalog = c
	}
}

func New(token string, logger *zap.Logger, opts ...Option) (*Bot, error) {
	pref := tele.Settings{
		Token: token,
		Poller: &tele.LongPoller{
			Timeout: 30 * time.Second,
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	return newBot(b, logger, opts...), nil
}

func newBot(b *tele.Bot, logger *zap.Logger, opts ...Option) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}

	bot := &Bot{
		b:        b,
		log:      logger.With(zap.String("via", "bot")),
		catalog:  filter.Default(),
		sessions: make(map[int64]*Session),
	}

	for _, opt := range opts {
		opt(bot)
	}

	if bot.tally == nil {
		bot.tally = NewTally()
	}

	return bot
}

type Bot struct {
	b       *tele.Bot
	log     *zap.Logger
	catalog *filter.Catalog
	presets *preset.Set
	sink    sink.Sink
	tally   *Tally

	l        sync.Mutex
	sessions map[int64]*Session
}

// session returns the chat's session, creating it on first use.
func (b *Bot) session(chat int64) *Session {
	b.l.Lock()
	defer b.l.Unlock()

	if s, ok := b.sessions[chat]; ok {
		return s
	}

	log := b.log.With(zap.Int64("chat", chat))
	p := pipeline.New(pipeline.WithCatalog(b.catalog), pipeline.WithLogger(log))
	if b.sink != nil {
		p.Subscribe(func(r *pipeline.Rendered) {
			if err := b.sink.Show(r); err != nil {
				log.With(zap.Error(err)).Info("sink failed")
			}
		})
	}

	s := NewSession(p, b.presets, WithChatTally(b.tally, chat))
	b.sessions[chat] = s
	return s
}

func (b *Bot) reply(c tele.Context, r Reply) error {
	if r.Rendered != nil {
		var buf bytes.Buffer
		if err := imaging.Encode(&buf, r.Rendered.Image, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
			return c.Reply(fmt.Sprintf("encode failed: %s", err))
		}
		if err := c.Send(&tele.Photo{File: tele.FromReader(&buf), Caption: r.Text}); err != nil {
			return err
		}
	} else if err := c.Reply(r.Text); err != nil {
		return err
	}

	if r.Nudge {
		return c.Send("Enjoying the filters? Tell us what you think with /feedback")
	}
	return nil
}

func (b *Bot) download(file *tele.File) ([]byte, error) {
	if file.FileSize > maxUpload {
		return nil, errors.Errorf("file of %d bytes too large", file.FileSize)
	}

	rc, err := b.b.File(file)
	if err != nil {
		return nil, errors.Wrap(err, "download")
	}
	defer func() {
		_ = rc.Close()
	}()

	return io.ReadAll(io.LimitReader(rc, maxUpload))
}

func (b *Bot) handleBase() {
	b.b.Handle("/start", func(c tele.Context) error {
		return c.Send(help)
	})

	b.b.Handle("/help", func(c tele.Context) error {
		return c.Send(help)
	})

	b.b.Handle("/status", func(c tele.Context) error {
		return b.reply(c, b.session(c.Chat().ID).Status())
	})

	b.b.Handle("/clear", func(c tele.Context) error {
		return b.reply(c, b.session(c.Chat().ID).Clear())
	})

	b.b.Handle("/feedback", func(c tele.Context) error {
		if c.Message().Payload == "" {
			return c.Reply("Write /feedback followed by your thoughts")
		}
		b.log.With(zap.Int64("chat", c.Chat().ID), zap.String("text", c.Message().Payload)).Info("feedback")
		return c.Reply("Thanks!")
	})
}

func (b *Bot) handleSource() {
	b.b.Handle(tele.OnPhoto, func(c tele.Context) error {
		data, err := b.download(&c.Message().Photo.File)
		if err != nil {
			return c.Reply(fmt.Sprintf("get photo failed: %s", err))
		}
		return b.reply(c, b.session(c.Chat().ID).Photo(data))
	})

	b.b.Handle(tele.OnDocument, func(c tele.Context) error {
		data, err := b.download(&c.Message().Document.File)
		if err != nil {
			return c.Reply(fmt.Sprintf("get document failed: %s", err))
		}
		return b.reply(c, b.session(c.Chat().ID).Photo(data))
	})
}

func (b *Bot) handleFilter() {
	choose := &tele.Btn{Unique: "filter"}

	b.b.Handle("/filters", func(c tele.Context) error {
		menu := &tele.ReplyMarkup{}
		var rows []tele.Row
		for _, d := range b.catalog.Descriptors() {
			rows = append(rows, menu.Row(menu.Data(d.Name, choose.Unique, string(d.Kind))))
		}
		menu.Inline(rows...)
		return c.Send("Choose Filter", menu)
	})

	b.b.Handle(choose, func(c tele.Context) error {
		_ = c.Respond()
		return b.reply(c, b.session(c.Chat().ID).Filter(c.Data()))
	})

	for _, param := range filter.Params() {
		param := param
		b.b.Handle("/"+string(param), func(c tele.Context) error {
			return b.reply(c, b.session(c.Chat().ID).Param(string(param), c.Message().Payload))
		})
	}

	b.b.Handle("/preset", func(c tele.Context) error {
		return b.reply(c, b.session(c.Chat().ID).Preset(c.Message().Payload))
	})
}

func (b *Bot) Start() {
	b.handleBase()
	b.handleSource()
	b.handleFilter()
	go b.b.Start()
}

func (b *Bot) Stop() {
	go b.b.Stop()
}
