package hotkey

import "time"

type Action int

const (
	// Tap is a press released before the long-press threshold.
	Tap Action = iota
	// Hold fires once the key has been down for the threshold, before it
	// is released.
	Hold
)

func (a Action) String() string {
	if a == Hold {
		return "hold"
	}
	return "tap"
}

// Gestures turns raw keydown/keyup pairs into Tap and Hold actions.
type Gestures struct {
	actions chan Action
}

func NewGestures(hk Hotkey, longPress time.Duration) *Gestures {
	g := &Gestures{actions: make(chan Action, 1)}
	go g.run(hk, longPress)
	return g
}

func (g *Gestures) Actions() <-chan Action { return g.actions }

func (g *Gestures) emit(a Action) {
	select {
	case g.actions <- a:
	default:
	}
}

func (g *Gestures) run(hk Hotkey, longPress time.Duration) {
	for {
		<-hk.Keydown()
		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			g.emit(Hold)
			<-hk.Keyup()
		case <-hk.Keyup():
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			g.emit(Tap)
		}
	}
}
