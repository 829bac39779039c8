package hotkey

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	hook "github.com/robotn/gohook"
)

var (
	ErrEmptyAccelerator = errors.New("empty accelerator")
	ErrUnknownKey       = errors.New("unknown key")
)

// Modifier is a bit set of modifier keys.
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModShift
	ModAlt
	ModSuper
)

// Combo is a parsed accelerator: a set of modifiers plus one key code.
// Combos are comparable and used as map keys.
type Combo struct {
	Mods Modifier
	Code uint16
}

func (c Combo) String() string {
	var parts []string
	for _, m := range []struct {
		mod  Modifier
		name string
	}{{ModCtrl, "Ctrl"}, {ModShift, "Shift"}, {ModAlt, "Alt"}, {ModSuper, "Super"}} {
		if c.Mods&m.mod != 0 {
			parts = append(parts, m.name)
		}
	}
	name, ok := keyNames[c.Code]
	if !ok {
		name = fmt.Sprintf("0x%x", c.Code)
	}
	return strings.Join(append(parts, strings.ToUpper(name[:1])+name[1:]), "+")
}

var modifierNames = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"shift":   ModShift,
	"alt":     ModAlt,
	"option":  ModAlt,
	"cmd":     ModSuper,
	"command": ModSuper,
	"super":   ModSuper,
	"meta":    ModSuper,
	"win":     ModSuper,
}

// keyAliases maps accelerator spellings to gohook key names.
var keyAliases = map[string]string{
	"escape":     "esc",
	"return":     "enter",
	"del":        "delete",
	"arrowup":    "up",
	"arrowdown":  "down",
	"arrowleft":  "left",
	"arrowright": "right",
}

// modifierKeys maps the codes of physical modifier keys to their modifier.
var modifierKeys = map[uint16]Modifier{}

// keyNames is the canonical name of each key code.
var keyNames = map[uint16]string{}

func init() {
	for name, mod := range map[string]Modifier{
		"ctrl": ModCtrl, "rctrl": ModCtrl,
		"shift": ModShift, "rshift": ModShift,
		"alt": ModAlt, "ralt": ModAlt,
		"cmd": ModSuper, "rcmd": ModSuper,
	} {
		if code, ok := hook.Keycode[name]; ok {
			modifierKeys[code] = mod
		}
	}

	// Prefer the shortest, then alphabetically first, spelling.
	for name, code := range hook.Keycode {
		cur, ok := keyNames[code]
		if !ok || len(name) < len(cur) || (len(name) == len(cur) && name < cur) {
			keyNames[code] = name
		}
	}
}

// ParseAccelerator parses strings like "Ctrl+Shift+O" or
// "CmdOrCtrl+Space". Matching is case-insensitive. CmdOrCtrl resolves to
// Super on macOS and Ctrl elsewhere.
func ParseAccelerator(accel string) (Combo, error) {
	if strings.TrimSpace(accel) == "" {
		return Combo{}, ErrEmptyAccelerator
	}

	var (
		combo  Combo
		hasKey bool
	)
	for _, part := range strings.Split(accel, "+") {
		token := strings.ToLower(strings.TrimSpace(part))
		if token == "" {
			return Combo{}, fmt.Errorf("parse %q: empty key", accel)
		}

		if token == "cmdorctrl" || token == "commandorcontrol" {
			combo.Mods |= platformPrimary()
			continue
		}
		if mod, ok := modifierNames[token]; ok {
			combo.Mods |= mod
			continue
		}

		if hasKey {
			return Combo{}, fmt.Errorf("parse %q: more than one key", accel)
		}
		if alias, ok := keyAliases[token]; ok {
			token = alias
		}
		code, ok := hook.Keycode[token]
		if !ok {
			return Combo{}, fmt.Errorf("parse %q: %w %q", accel, ErrUnknownKey, part)
		}
		combo.Code = code
		hasKey = true
	}

	if !hasKey {
		return Combo{}, fmt.Errorf("parse %q: no key besides modifiers", accel)
	}
	return combo, nil
}

func platformPrimary() Modifier {
	if runtime.GOOS == "darwin" {
		return ModSuper
	}
	return ModCtrl
}
