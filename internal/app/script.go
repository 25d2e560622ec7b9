package app

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"drone-spoof-sim/internal/sim"
)

// KeyPress is a scripted key press delivered before frame Tick.
type KeyPress struct {
	Tick uint64
	Key  rune
}

// ParseScript parses "tick:key" pairs separated by commas, e.g. "120:3,300:s".
// Presses are returned in tick order; presses on the same tick keep their
// written order.
func ParseScript(s string) ([]KeyPress, error) {
	var out []KeyPress
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		tickStr, keyStr, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("script entry %q: want tick:key", part)
		}
		tick, err := strconv.ParseUint(strings.TrimSpace(tickStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("script entry %q: %w", part, err)
		}
		keyStr = strings.TrimSpace(keyStr)
		if utf8.RuneCountInString(keyStr) != 1 {
			return nil, fmt.Errorf("script entry %q: key must be one character", part)
		}
		key, _ := utf8.DecodeRuneInString(keyStr)
		if _, ok := sim.KeyAction(key); !ok {
			return nil, fmt.Errorf("script entry %q: key %q is not bound", part, key)
		}
		out = append(out, KeyPress{Tick: tick, Key: key})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Tick < out[j].Tick })
	return out, nil
}
