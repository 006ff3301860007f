package automation

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
	"time"

	"blinkos/intent"
)

type fakeKeys struct {
	chords []string
	typed  []string
	fail   error
}

func (f *fakeKeys) Chord(mods []int, key int) error {
	if f.fail != nil {
		return f.fail
	}
	f.chords = append(f.chords, fmt.Sprint(mods, key))
	return nil
}

func (f *fakeKeys) Type(text string) error {
	f.typed = append(f.typed, text)
	return nil
}

type fakePointer struct {
	moves  []intent.Point
	clicks int
}

func (f *fakePointer) Move(p intent.Point) error { f.moves = append(f.moves, p); return nil }
func (f *fakePointer) Click() error              { f.clicks++; return nil }

func newDesktop(paste bool) (*desktop, *fakeKeys, *fakePointer, *[]string) {
	kb := &fakeKeys{}
	ptr := &fakePointer{}
	var opened []string
	d := &desktop{
		name:     "test",
		kb:       kb,
		ptr:      ptr,
		paste:    paste,
		pasteMod: intent.KeyLeftCtrl,
		copyText: func(string) error { return nil },
		open: func(_ context.Context, o intent.Open) error {
			opened = append(opened, o.Value)
			return nil
		},
	}
	return d, kb, ptr, &opened
}

func TestDesktopApply(t *testing.T) {
	d, kb, ptr, opened := newDesktop(false)
	ctx := context.Background()
	steps := []intent.Intent{
		intent.Cursor{To: intent.Point{X: 10, Y: 20}},
		intent.Click{},
		intent.KeyChord{Name: "scroll_down", Key: intent.KeyDown, Repeat: 3},
		intent.KeyChord{Name: "new_tab", Mods: []int{intent.KeyLeftCtrl}, Key: intent.KeyT},
		intent.Text{Text: "Hi there."},
		intent.Open{Target: intent.OpenURL, Value: "https://example.com"},
	}
	for _, in := range steps {
		if err := d.Apply(ctx, in); err != nil {
			t.Fatalf("%s: %v", in.Kind(), err)
		}
	}
	if len(ptr.moves) != 1 || ptr.moves[0] != (intent.Point{X: 10, Y: 20}) || ptr.clicks != 1 {
		t.Errorf("pointer = %+v", ptr)
	}
	wantChords := []string{"[] 108", "[] 108", "[] 108", "[29] 20"}
	if !reflect.DeepEqual(kb.chords, wantChords) {
		t.Errorf("chords = %v, want %v", kb.chords, wantChords)
	}
	if !reflect.DeepEqual(kb.typed, []string{"Hi there."}) {
		t.Errorf("typed = %v", kb.typed)
	}
	if !reflect.DeepEqual(*opened, []string{"https://example.com"}) {
		t.Errorf("opened = %v", *opened)
	}
}

func TestDesktopPasteText(t *testing.T) {
	kb := &fakeKeys{}
	var clip []string
	d := &desktop{
		kb:       kb,
		paste:    true,
		pasteMod: intent.KeyLeftMeta,
		copyText: func(s string) error { clip = append(clip, s); return nil },
	}
	if err := d.Apply(context.Background(), intent.Text{Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(clip, []string{"hello"}) {
		t.Errorf("clipboard = %v", clip)
	}
	if !reflect.DeepEqual(kb.chords, []string{"[125] 47"}) || len(kb.typed) != 0 {
		t.Errorf("chords = %v typed = %v", kb.chords, kb.typed)
	}

	d.copyText = func(string) error { return errors.New("no display") }
	if err := d.Apply(context.Background(), intent.Text{Text: "x"}); err == nil {
		t.Error("clipboard failure swallowed")
	}
}

func TestDesktopWithoutPointer(t *testing.T) {
	d := &desktop{name: "keybd", kb: &fakeKeys{}}
	for _, in := range []intent.Intent{intent.Cursor{}, intent.Click{}} {
		if err := d.Apply(context.Background(), in); !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: err = %v", in.Kind(), err)
		}
	}
}

func TestChordErrorNamesCommand(t *testing.T) {
	d, kb, _, _ := newDesktop(false)
	kb.fail = errors.New("device gone")
	err := d.Apply(context.Background(), intent.KeyChord{Name: "close_tab", Key: intent.KeyW})
	if err == nil || !strings.Contains(err.Error(), "close_tab") {
		t.Errorf("err = %v", err)
	}
}

func TestCharToKey(t *testing.T) {
	tests := []struct {
		c     byte
		code  int
		shift bool
		ok    bool
	}{
		{'a', 30, false, true},
		{'Z', 44, true, true},
		{'0', 11, false, true},
		{'7', 8, false, true},
		{' ', intent.KeySpace, false, true},
		{'\n', intent.KeyEnter, false, true},
		{'?', 53, true, true},
		{',', 51, false, true},
		{'"', 40, true, true},
		{0xC3, 0, false, false},
	}
	for _, tt := range tests {
		code, shift, ok := charToKey(tt.c)
		if code != tt.code || shift != tt.shift || ok != tt.ok {
			t.Errorf("charToKey(%q) = %d %v %v, want %d %v %v", tt.c, code, shift, ok, tt.code, tt.shift, tt.ok)
		}
	}
}

func TestTypeByChords(t *testing.T) {
	var got []string
	err := typeByChords("Hi!é", func(mods []int, key int) error {
		got = append(got, fmt.Sprint(mods, key))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"[42] 35", "[] 23", "[42] 2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestOpenCommand(t *testing.T) {
	tests := []struct {
		goos string
		in   intent.Open
		want []string
	}{
		{"darwin", intent.Open{Target: intent.OpenApp, Value: "Safari"}, []string{"open", "-a", "Safari"}},
		{"darwin", intent.Open{Target: intent.OpenURL, Value: "https://x.test"}, []string{"open", "https://x.test"}},
		{"linux", intent.Open{Target: intent.OpenURL, Value: "https://x.test"}, []string{"xdg-open", "https://x.test"}},
		{"linux", intent.Open{Target: intent.OpenApp, Value: "Google Chrome"}, []string{"google-chrome"}},
		{"linux", intent.Open{Target: intent.OpenApp, Value: "Finder"}, []string{"xdg-open", "."}},
		{"linux", intent.Open{Target: intent.OpenApp, Value: "Firefox"}, []string{"firefox"}},
	}
	for _, tt := range tests {
		if got := openCommand(tt.goos, tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("openCommand(%s, %q) = %v, want %v", tt.goos, tt.in.Value, got, tt.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(2)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		r.Apply(ctx, intent.Text{Text: fmt.Sprint(i)})
	}
	got := r.Intents()
	if len(got) != 2 || got[0].(intent.Text).Text != "1" || got[1].(intent.Text).Text != "2" {
		t.Errorf("kept %v", got)
	}
	if r.Total() != 3 {
		t.Errorf("total = %d", r.Total())
	}
	r.FailWith(ErrUnsupported)
	if err := r.Apply(ctx, intent.Click{}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("err = %v", err)
	}
}

func TestRunKeepsOrderAndReportsErrors(t *testing.T) {
	r := NewRecorder(10)
	in := make(chan intent.Intent, 4)
	in <- intent.Text{Text: "a"}
	in <- intent.Text{Text: "b"}
	close(in)

	done := make(chan struct{})
	go func() {
		Run(context.Background(), r, in, nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after close")
	}
	got := r.Intents()
	if len(got) != 2 || got[0].(intent.Text).Text != "a" {
		t.Errorf("got %v", got)
	}

	r.FailWith(errors.New("boom"))
	in2 := make(chan intent.Intent, 1)
	in2 <- intent.Click{}
	close(in2)
	var failed []intent.Kind
	Run(context.Background(), r, in2, func(it intent.Intent, err error) {
		failed = append(failed, it.Kind())
	})
	if len(failed) != 1 || failed[0] != intent.KindClick {
		t.Errorf("failed = %v", failed)
	}
}

func TestNewBackends(t *testing.T) {
	s, err := New(Config{Backend: "none"})
	if err != nil || s.Name() != "none" {
		t.Fatalf("none backend: %v %v", s, err)
	}
	if _, err := New(Config{Backend: "telekinesis"}); err == nil {
		t.Error("unknown backend accepted")
	}
}

func TestVerifyNeedsDevice(t *testing.T) {
	if _, err := Verify(NewRecorder(1)); !errors.Is(err, ErrUnsupported) {
		t.Errorf("recorder: err = %v", err)
	}
	d, _, _, _ := newDesktop(false)
	if _, err := Verify(d); !errors.Is(err, ErrUnsupported) {
		t.Errorf("fake keyboard: err = %v", err)
	}
}
