package platform

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/deskmcp/internal/deskerr"
)

// Chord is a parsed key-chord: zero or more modifiers plus one final key,
// per the platform-neutral notation in spec §4.2.
type Chord struct {
	Ctrl  bool
	Alt   bool
	Shift bool
	Meta  bool
	Key   string
}

var specialKeyNames = map[string]bool{
	"enter": true, "tab": true, "escape": true, "backspace": true,
	"delete": true, "space": true, "home": true, "end": true,
	"pageup": true, "pagedown": true, "up": true, "down": true,
	"left": true, "right": true,
}

func isFunctionKey(key string) bool {
	if len(key) < 2 || key[0] != 'f' {
		return false
	}
	n := 0
	for _, r := range key[1:] {
		if r < '0' || r > '9' {
			return false
		}
		n = n*10 + int(r-'0')
	}
	return n >= 1 && n <= 24
}

// ParseChord parses a "+"-joined chord such as "ctrl+shift+t" or "f12".
func ParseChord(s string) (Chord, error) {
	tokens := strings.Split(s, "+")
	if len(tokens) == 0 {
		return Chord{}, deskerr.InvalidArgument("empty key chord")
	}

	var c Chord
	for i, tok := range tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		last := i == len(tokens)-1
		switch tok {
		case "ctrl", "control":
			c.Ctrl = true
		case "alt":
			c.Alt = true
		case "shift":
			c.Shift = true
		case "meta", "cmd", "command", "win", "windows":
			c.Meta = true
		default:
			if !last {
				return Chord{}, deskerr.InvalidArgument("unknown modifier %q in chord %q", tok, s)
			}
			if !specialKeyNames[tok] && !isFunctionKey(tok) && len([]rune(tok)) != 1 {
				return Chord{}, deskerr.InvalidArgument("unknown key token %q in chord %q", tok, s)
			}
			c.Key = tok
		}
	}
	if c.Key == "" {
		return Chord{}, deskerr.InvalidArgument("chord %q has no terminal key", s)
	}
	return c, nil
}

// specialEscapes maps a chord's final key to its Windows-style "{Name}"
// escape token, used both for the native key-send layer and for
// TranslateGeminiKeys's output format.
var specialEscapes = map[string]string{
	"enter": "{Enter}", "tab": "{Tab}", "escape": "{Esc}",
	"backspace": "{Backspace}", "delete": "{Delete}", "space": "{Space}",
	"home": "{Home}", "end": "{End}", "pageup": "{PgUp}", "pagedown": "{PgDown}",
	"up": "{Up}", "down": "{Down}", "left": "{Left}", "right": "{Right}",
}

// Escape renders a Chord to the "{Mod}{Mod}key" escape-string form used by
// send-keys style platform calls.
func (c Chord) Escape() string {
	var b strings.Builder
	if c.Ctrl {
		b.WriteString("{Ctrl}")
	}
	if c.Alt {
		b.WriteString("{Alt}")
	}
	if c.Meta {
		b.WriteString("{Win}")
	}
	if c.Shift {
		b.WriteString("{Shift}")
	}
	if esc, ok := specialEscapes[c.Key]; ok {
		b.WriteString(esc)
	} else if isFunctionKey(c.Key) {
		b.WriteString(fmt.Sprintf("{%s}", strings.ToUpper(c.Key)))
	} else {
		b.WriteString(c.Key)
	}
	return b.String()
}

// TranslateGeminiKeys converts a Gemini-format chord (e.g. "Meta+Shift+T")
// into the platform escape-string form (e.g. "{Win}{Shift}t"). Unknown
// tokens fail with deskerr.KindInvalidArgument naming the offending token.
func TranslateGeminiKeys(s string) (string, error) {
	c, err := ParseChord(s)
	if err != nil {
		return "", err
	}
	return c.Escape(), nil
}
