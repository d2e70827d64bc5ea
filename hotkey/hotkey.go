// Package hotkey turns a global key combo into push-to-talk transitions.
// "hold" talks while the combo is down; "toggle" flips on each press.
package hotkey

import (
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

const (
	ModeHold   = "hold"
	ModeToggle = "toggle"
)

// Listener calls onChange(true) when talking should start and
// onChange(false) when it should stop. Repeated key-down events while the
// combo is held do not produce extra calls.
type Listener struct {
	keys     []string
	state    *state
	done     chan struct{}
	stopOnce sync.Once
}

// NewListener parses a combo such as "ctrl+shift+space".
func NewListener(combo, mode string, onChange func(down bool)) *Listener {
	return &Listener{
		keys:  ParseCombo(combo),
		state: &state{toggle: mode == ModeToggle, onChange: onChange},
		done:  make(chan struct{}),
	}
}

func ParseCombo(combo string) []string {
	var keys []string
	for _, k := range strings.Split(strings.ToLower(combo), "+") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (l *Listener) Keys() []string {
	return l.keys
}

// Start blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	hook.Register(hook.KeyDown, l.keys, func(hook.Event) { l.state.press() })
	if !l.state.toggle {
		hook.Register(hook.KeyUp, l.keys, func(hook.Event) { l.state.release() })
	}

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
}

// Stop is safe to call more than once. A held key is released first.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		l.state.reset()
		close(l.done)
	})
}

type state struct {
	mu       sync.Mutex
	toggle   bool
	talking  bool
	onChange func(bool)
}

func (s *state) press() {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.toggle:
		s.set(!s.talking)
	case !s.talking:
		s.set(true)
	}
}

func (s *state) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.toggle && s.talking {
		s.set(false)
	}
}

func (s *state) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.talking {
		s.set(false)
	}
}

func (s *state) set(talking bool) {
	s.talking = talking
	if s.onChange != nil {
		s.onChange(talking)
	}
}
