// Package intent holds the values forwarded to the automation sink. Each
// carries everything the sink needs; nothing is interpreted downstream.
package intent

import (
	"fmt"
	"time"
)

type Source string

const (
	SourceGaze  Source = "gaze"
	SourceBlink Source = "blink"
	SourceVoice Source = "voice"
)

type Kind int

const (
	KindCursor Kind = iota
	KindClick
	KindText
	KindKeyChord
	KindOpen
)

func (k Kind) String() string {
	switch k {
	case KindCursor:
		return "cursor"
	case KindClick:
		return "click"
	case KindText:
		return "text"
	case KindKeyChord:
		return "key"
	case KindOpen:
		return "open"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Point is a screen position in pixels, origin top-left.
type Point struct {
	X float64 `msgpack:"x"`
	Y float64 `msgpack:"y"`
}

// Intent is one of Cursor, Click, Text, KeyChord or Open.
type Intent interface {
	Kind() Kind
	Origin() Source
	Time() time.Time
}

type Cursor struct {
	To     Point
	At     time.Time
	Source Source
}

type ClickType int

const (
	ClickSingle ClickType = iota
)

type Click struct {
	Type   ClickType
	At     time.Time
	Source Source
}

// Text is literal text with punctuation already resolved.
type Text struct {
	Text   string
	At     time.Time
	Source Source
}

// Key codes follow the Linux input event codes; backends translate them.
type KeyChord struct {
	Name string
	Mods []int
	Key  int
	// Repeat presses the chord more than once (scrolling).
	Repeat int
	At     time.Time
	Source Source
}

type OpenTarget int

const (
	OpenApp OpenTarget = iota
	OpenURL
)

type Open struct {
	Target OpenTarget
	Value  string
	At     time.Time
	Source Source
}

func (Cursor) Kind() Kind   { return KindCursor }
func (Click) Kind() Kind    { return KindClick }
func (Text) Kind() Kind     { return KindText }
func (KeyChord) Kind() Kind { return KindKeyChord }
func (Open) Kind() Kind     { return KindOpen }

func (c Cursor) Origin() Source   { return c.Source }
func (c Click) Origin() Source    { return c.Source }
func (t Text) Origin() Source     { return t.Source }
func (k KeyChord) Origin() Source { return k.Source }
func (o Open) Origin() Source     { return o.Source }

func (c Cursor) Time() time.Time   { return c.At }
func (c Click) Time() time.Time    { return c.At }
func (t Text) Time() time.Time     { return t.At }
func (k KeyChord) Time() time.Time { return k.At }
func (o Open) Time() time.Time     { return o.At }

// FromEye reports whether the intent came from the eye pipeline.
func FromEye(in Intent) bool {
	s := in.Origin()
	return s == SourceGaze || s == SourceBlink
}
