package voice

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"blinkos/intent"
)

type punct struct {
	text         string
	spaceBefore  bool
	spaceAfter   bool
	endsSentence bool
}

var punctWords = map[string]punct{
	"comma":             {text: ",", spaceAfter: true},
	"period":            {text: ".", spaceAfter: true, endsSentence: true},
	"full stop":         {text: ".", spaceAfter: true, endsSentence: true},
	"question mark":     {text: "?", spaceAfter: true, endsSentence: true},
	"exclamation mark":  {text: "!", spaceAfter: true, endsSentence: true},
	"exclamation point": {text: "!", spaceAfter: true, endsSentence: true},
	"colon":             {text: ":", spaceAfter: true},
	"semicolon":         {text: ";", spaceAfter: true},
	"dash":              {text: "-", spaceBefore: true, spaceAfter: true},
	"open quote":        {text: "\"", spaceBefore: true},
	"close quote":       {text: "\"", spaceAfter: true},
	"new line":          {text: "\n"},
	"new paragraph":     {text: "\n\n", endsSentence: true},
}

type edit int

const (
	editDeleteWord edit = iota + 1
	editUndo
)

var editWords = map[string]edit{
	"delete that":  editDeleteWord,
	"scratch that": editDeleteWord,
	"undo that":    editUndo,
}

// Transcriber resolves spoken punctuation and editing words into literal
// text and key chords. It carries spacing and capitalization across
// utterances of one dictation session.
type Transcriber struct {
	platform  Platform
	capNext   bool
	needSpace bool
}

func NewTranscriber(p Platform) *Transcriber {
	t := &Transcriber{platform: p}
	t.Reset()
	return t
}

// Reset starts a new dictation session.
func (t *Transcriber) Reset() {
	t.capNext = true
	t.needSpace = false
}

func (t *Transcriber) Transcribe(text string, at time.Time) []intent.Intent {
	var out []intent.Intent
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, intent.Text{Text: b.String(), At: at, Source: intent.SourceVoice})
			b.Reset()
		}
	}

	words := strings.Fields(text)
	for i := 0; i < len(words); i++ {
		w := words[i]
		key := strings.ToLower(strings.TrimRight(w, ".,!?;:"))
		if i+1 < len(words) {
			two := key + " " + strings.ToLower(strings.TrimRight(words[i+1], ".,!?;:"))
			if p, ok := punctWords[two]; ok {
				t.writePunct(&b, p)
				i++
				continue
			}
			if e, ok := editWords[two]; ok {
				flush()
				out = append(out, t.editChord(e, at))
				i++
				continue
			}
		}
		if p, ok := punctWords[key]; ok {
			t.writePunct(&b, p)
			continue
		}
		t.writeWord(&b, w)
	}
	flush()
	return out
}

func (t *Transcriber) writePunct(b *strings.Builder, p punct) {
	if t.needSpace && p.spaceBefore {
		b.WriteByte(' ')
	}
	b.WriteString(p.text)
	t.needSpace = p.spaceAfter
	if p.endsSentence {
		t.capNext = true
	}
}

func (t *Transcriber) writeWord(b *strings.Builder, w string) {
	if t.needSpace {
		b.WriteByte(' ')
	}
	if t.capNext {
		w = capitalize(w)
		t.capNext = false
	}
	b.WriteString(w)
	t.needSpace = true
	if r, _ := utf8.DecodeLastRuneInString(w); r == '.' || r == '?' || r == '!' {
		t.capNext = true
	}
}

func (t *Transcriber) editChord(e edit, at time.Time) intent.KeyChord {
	t.needSpace = false
	kc := intent.KeyChord{Repeat: 1, At: at, Source: intent.SourceVoice}
	switch e {
	case editDeleteWord:
		kc.Name = "delete_word"
		kc.Key = intent.KeyBackspace
		kc.Mods = []int{ctrl}
		if t.platform == PlatformMac {
			kc.Mods = []int{alt}
		}
	case editUndo:
		kc.Name = "undo"
		kc.Key = intent.KeyZ
		kc.Mods = []int{PrimaryModifier(t.platform)}
	}
	return kc
}

func capitalize(w string) string {
	r, n := utf8.DecodeRuneInString(w)
	if r == utf8.RuneError {
		return w
	}
	return string(unicode.ToUpper(r)) + w[n:]
}
