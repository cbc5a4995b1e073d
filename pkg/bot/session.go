package bot

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"instafilter/pkg/filter"
	"instafilter/pkg/pipeline"
	"instafilter/pkg/preset"
)

// nudgeEvery is how many filter changes pass between feedback requests.
const nudgeEvery = 20

// Reply is what a chat gets back after a command.
type Reply struct {
	Text     string
	Rendered *pipeline.Rendered
	// Nudge asks the user for feedback in a follow-up message.
	Nudge bool
}

type SessionOption func(s *Session)

// WithChatTally counts this session's filter changes as chat on t.
func WithChatTally(t *Tally, chat int64) SessionOption {
	return func(s *Session) {
		s.tally = t
		s.chat = chat
	}
}

func NewSession(p *pipeline.Pipeline, presets *preset.Set, opts ...SessionOption) *Session {
	s := &Session{p: p, presets: presets}

	for _, opt := range opts {
		opt(s)
	}

	if s.tally == nil {
		s.tally = NewTally()
	}

	return s
}

// Session is one chat's filter state.
type Session struct {
	p       *pipeline.Pipeline
	presets *preset.Set
	tally   *Tally
	chat    int64
}

func (s *Session) Pipeline() *pipeline.Pipeline {
	return s.p
}

func (s *Session) rendered(text string) Reply {
	out := s.p.Output()
	if !s.p.HasSource() {
		return Reply{Text: lo.Ternary(text == "", "Send a photo to start", text+". Send a photo to see it")}
	}
	if out == nil {
		return Reply{Text: fmt.Sprintf("Rendering failed: %v", s.p.Err())}
	}
	return Reply{Text: lo.Ternary(text == "", s.caption(), text), Rendered: out}
}

func (s *Session) caption() string {
	d := s.p.Filter()
	params := s.p.Parameters()
	parts := []string{d.Name}
	for _, param := range d.Params {
		parts = append(parts, fmt.Sprintf("%s %.2f", param, params.Get(param)))
	}
	return strings.Join(parts, " · ")
}

func (s *Session) Photo(data []byte) Reply {
	if !s.p.SetSource(data) {
		return Reply{Text: "That does not look like an image"}
	}
	return s.rendered("")
}

func (s *Session) Filter(kind string) Reply {
	if !s.p.SetFilterByName(kind) {
		return Reply{Text: fmt.Sprintf("Unknown filter %q", kind)}
	}

	r := s.rendered("")
	r.Nudge = s.tally.Tick(s.chat)
	return r
}

// Param sets a parameter from a command payload, or reports it when the
// payload is empty.
func (s *Session) Param(name string, payload string) Reply {
	param, err := filter.ParseParam(name)
	if err != nil {
		return Reply{Text: err.Error()}
	}

	d := s.p.Filter()
	payload = strings.TrimSpace(payload)
	if payload == "" {
		if !d.Accepts(param) {
			return Reply{Text: fmt.Sprintf("%s ignores %s", d.Name, param)}
		}
		return Reply{Text: fmt.Sprintf("%s %.2f", param, s.p.Parameters().Get(param))}
	}

	v, err := strconv.ParseFloat(payload, 64)
	if err != nil {
		r := param.Range()
		return Reply{Text: fmt.Sprintf("%s takes a number in [%g, %g]", param, r.Min, r.Max)}
	}

	if !s.p.SetParameter(string(param), v) {
		return Reply{Text: fmt.Sprintf("Saved %s %.2f, %s ignores it", param, s.p.Parameters().Get(param), d.Name)}
	}
	return s.rendered("")
}

func (s *Session) Preset(name string) Reply {
	if s.presets == nil {
		return Reply{Text: "No presets configured"}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Reply{Text: "Presets: " + strings.Join(s.presets.Names(), ", ")}
	}

	p, err := s.presets.Get(name)
	if err != nil {
		return Reply{Text: err.Error()}
	}
	if !p.Apply(s.p) {
		return Reply{Text: fmt.Sprintf("Preset %s uses an unknown filter", name)}
	}
	return s.rendered("")
}

func (s *Session) Clear() Reply {
	s.p.ClearSource()
	return Reply{Text: "Cleared"}
}

func (s *Session) Status() Reply {
	return s.rendered(s.caption())
}
