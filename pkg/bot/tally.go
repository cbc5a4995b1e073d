package bot

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Tally counts filter changes per chat between feedback requests. With a
// file behind it the counts survive restarts.
type Tally struct {
	l      sync.Mutex
	fs     afero.Fs
	path   string
	log    *zap.Logger
	counts map[int64]int
}

type tallyFile struct {
	Chats map[int64]int `yaml:"chats"`
}

// NewTally keeps counts in memory only.
func NewTally() *Tally {
	return &Tally{log: zap.NewNop(), counts: make(map[int64]int)}
}

// LoadTally reads counts from path on fs, if present, and writes them back
// after every change.
func LoadTally(fs afero.Fs, path string, logger *zap.Logger) (*Tally, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	t := &Tally{
		fs:     fs,
		path:   path,
		log:    logger.With(zap.String("via", "tally"), zap.String("file", path)),
		counts: make(map[int64]int),
	}

	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, err
	}
	if !exists {
		return t, nil
	}

	bs, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}

	var f tallyFile
	if err := yaml.Unmarshal(bs, &f); err != nil {
		return nil, errors.Wrapf(err, "parse %s", path)
	}
	for chat, n := range f.Chats {
		t.counts[chat] = n
	}

	return t, nil
}

// Tick counts one filter change for chat and reports whether it is time to
// ask for feedback.
func (t *Tally) Tick(chat int64) bool {
	t.l.Lock()
	defer t.l.Unlock()

	t.counts[chat]++
	nudge := t.counts[chat] >= nudgeEvery
	if nudge {
		t.counts[chat] = 0
	}

	if err := t.save(); err != nil {
		t.log.With(zap.Error(err)).Info("save tally failed")
	}
	return nudge
}

func (t *Tally) Count(chat int64) int {
	t.l.Lock()
	defer t.l.Unlock()
	return t.counts[chat]
}

func (t *Tally) save() error {
	if t.fs == nil {
		return nil
	}

	bs, err := yaml.Marshal(tallyFile{Chats: t.counts})
	if err != nil {
		return err
	}
	return afero.WriteFile(t.fs, t.path, bs, 0644)
}
