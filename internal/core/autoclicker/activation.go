package autoclicker

// Classify decodes one raw input record. Only EV_KEY records are considered; auto-repeat
// and any other value of the trigger key map to TriggerNone.
func Classify(event Event, keys KeyMap) TriggerKind {
	if event.Type != EventTypeKey {
		return TriggerNone
	}
	switch event.Code {
	case keys.TerminateCode:
		return TerminatePressed
	case keys.TriggerCode:
		switch event.Value {
		case KeyValuePress:
			return TriggerPressed
		case KeyValueRelease:
			return TriggerReleased
		}
	}
	return TriggerNone
}

// NextActive maps the current clicking state and one trigger event to the next state.
func NextActive(active bool, kind TriggerKind, mode Mode) bool {
	switch mode {
	case ModeToggle:
		if kind == TriggerPressed {
			return !active
		}
		return active
	default:
		switch kind {
		case TriggerPressed:
			return true
		case TriggerReleased:
			return false
		}
		return active
	}
}

type Activation struct {
	Active bool
	Mode   Mode
}

// Apply feeds one event and reports whether the state changed.
func (a *Activation) Apply(kind TriggerKind) bool {
	next := NextActive(a.Active, kind, a.Mode)
	changed := next != a.Active
	a.Active = next
	return changed
}
