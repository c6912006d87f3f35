package chord

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel parse failures. ParseError unwraps to one of these.
var (
	ErrEmpty        = errors.New("chord has no main key")
	ErrUnknownToken = errors.New("unknown token")
	ErrMultipleKeys = errors.New("more than one main key")
)

// ParseError reports a malformed hotkey string.
type ParseError struct {
	Input string
	Token string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("parse chord %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("parse chord %q: %v %q", e.Input, e.Err, e.Token)
}

func (e *ParseError) Unwrap() error { return e.Err }

var modifierTokens = map[string]Modifier{
	"ctrl":    Ctrl,
	"control": Ctrl,
	"shift":   Shift,
	"alt":     Alt,
	"option":  Alt,
	"super":   Super,
	"meta":    Super,
	"cmd":     Super,
	"command": Super,
	"win":     Super,
	"logo":    Super,
}

var buttonTokens = map[string]Button{
	"lmb": ButtonLeft,
	"rmb": ButtonRight,
	"mmb": ButtonMiddle,
}

// Parse converts a "+"-separated hotkey string such as "Ctrl+Shift+P" into
// its canonical chord. Tokens are case-insensitive and order-independent.
// Exactly one non-modifier token is required.
func Parse(s string) (Chord, error) {
	var c Chord
	mains := 0

	for _, raw := range strings.Split(s, "+") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			if strings.TrimSpace(s) == "" {
				break
			}
			return Chord{}, &ParseError{Input: s, Token: raw, Err: ErrUnknownToken}
		}
		lower := strings.ToLower(tok)

		if m, ok := modifierTokens[lower]; ok {
			c.Mods = c.Mods.With(m)
			continue
		}
		if b, ok := buttonTokens[lower]; ok {
			mains++
			c.Buttons = c.Buttons.With(b)
		} else if k, ok := LookupKey(lower); ok {
			if m, isMod := k.Modifier(); isMod {
				c.Mods = c.Mods.With(m)
				continue
			}
			mains++
			c.Key = k
		} else {
			return Chord{}, &ParseError{Input: s, Token: tok, Err: ErrUnknownToken}
		}
		if mains > 1 {
			return Chord{}, &ParseError{Input: s, Token: tok, Err: ErrMultipleKeys}
		}
	}

	if mains == 0 {
		return Chord{}, &ParseError{Input: s, Err: ErrEmpty}
	}
	return c, nil
}

// MustParse is Parse for compile-time constants. It panics on error.
func MustParse(s string) Chord {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}
