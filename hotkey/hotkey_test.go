package hotkey

import (
	"reflect"
	"testing"
)

func record(mode string) (*Listener, *[]bool) {
	var got []bool
	l := NewListener("ctrl+space", mode, func(down bool) { got = append(got, down) })
	return l, &got
}

func TestParseCombo(t *testing.T) {
	if got := ParseCombo(" Ctrl + Shift+R "); !reflect.DeepEqual(got, []string{"ctrl", "shift", "r"}) {
		t.Errorf("got %v", got)
	}
	if got := ParseCombo(""); len(got) != 0 {
		t.Errorf("empty combo = %v", got)
	}
}

func TestHoldIgnoresAutoRepeat(t *testing.T) {
	l, got := record(ModeHold)
	l.state.press()
	l.state.press()
	l.state.press()
	l.state.release()
	l.state.release()

	if want := []bool{true, false}; !reflect.DeepEqual(*got, want) {
		t.Errorf("got %v, want %v", *got, want)
	}
}

func TestToggleFlipsOnPress(t *testing.T) {
	l, got := record(ModeToggle)
	l.state.press()
	l.state.release()
	l.state.press()
	l.state.press()

	if want := []bool{true, false, true}; !reflect.DeepEqual(*got, want) {
		t.Errorf("got %v, want %v", *got, want)
	}
}

func TestStopReleasesHeldKey(t *testing.T) {
	l, got := record(ModeHold)
	l.state.press()
	l.Stop()
	l.Stop()

	if want := []bool{true, false}; !reflect.DeepEqual(*got, want) {
		t.Errorf("got %v, want %v", *got, want)
	}
}
