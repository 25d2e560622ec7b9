package sim

import "fmt"

// ActionKind is what a key press asks for.
type ActionKind int

const (
	ActionFault ActionKind = iota
	ActionReset
	ActionRemediate
)

func (k ActionKind) String() string {
	switch k {
	case ActionFault:
		return "fault"
	case ActionReset:
		return "reset"
	case ActionRemediate:
		return "remediate"
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// Action is a decoded key press.
type Action struct {
	Kind  ActionKind
	Fault Fault // only for ActionFault
}

const (
	KeyReset     = '0'
	KeyRemediate = 's'
)

// KeyAction maps a key to its action. Keys are case-insensitive.
func KeyAction(key rune) (Action, bool) {
	if key >= 'A' && key <= 'Z' {
		key += 'a' - 'A'
	}
	switch key {
	case KeyReset:
		return Action{Kind: ActionReset}, true
	case KeyRemediate:
		return Action{Kind: ActionRemediate}, true
	}
	for f := Fault(0); f < numFaults; f++ {
		if faultTable[f].Key != 0 && faultTable[f].Key == key {
			return Action{Kind: ActionFault, Fault: f}, true
		}
	}
	return Action{}, false
}

// KeyBinding is one row of the key help table.
type KeyBinding struct {
	Key         string `json:"key"`
	Action      string `json:"action"`
	Description string `json:"description"`
}

// KeyBindings lists every bound key.
func KeyBindings() []KeyBinding {
	var out []KeyBinding
	for f := Fault(0); f < numFaults; f++ {
		fx := faultTable[f]
		if fx.Key == 0 {
			continue
		}
		out = append(out, KeyBinding{Key: string(fx.Key), Action: fx.Label, Description: fx.Description})
	}
	out = append(out,
		KeyBinding{Key: string(rune(KeyReset)), Action: "RESET", Description: "re-initialize the drone in place"},
		KeyBinding{Key: string(rune(KeyRemediate)), Action: "REMEDIATE", Description: "inject ground truth and clear faults"},
	)
	return out
}
