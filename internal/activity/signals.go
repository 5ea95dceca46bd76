package activity

// Signal identifies one kind of operator interaction reported by the
// embedding surface. The set is fixed; anything else is ignored by the
// tracker.
type Signal string

const (
	SignalPointerPress Signal = "pointer_press"
	SignalPointerMove  Signal = "pointer_move"
	SignalKeyPress     Signal = "key_press"
	SignalScroll       Signal = "scroll"
	SignalTouchStart   Signal = "touch_start"
	SignalClick        Signal = "click"
)

var trackedSignals = map[Signal]struct{}{
	SignalPointerPress: {},
	SignalPointerMove:  {},
	SignalKeyPress:     {},
	SignalScroll:       {},
	SignalTouchStart:   {},
	SignalClick:        {},
}

// Tracked reports whether s belongs to the interaction set the tracker
// reacts to.
func (s Signal) Tracked() bool {
	_, ok := trackedSignals[s]
	return ok
}

// Signals returns the full tracked interaction set.
func Signals() []Signal {
	return []Signal{
		SignalPointerPress,
		SignalPointerMove,
		SignalKeyPress,
		SignalScroll,
		SignalTouchStart,
		SignalClick,
	}
}
