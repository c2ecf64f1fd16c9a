package emulator

import (
	"strings"
	"unicode"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/phinze/touchpoint/internal/input"
)

var namedKeys = map[ebiten.Key]input.Key{
	ebiten.KeyEscape:       input.KeyEscape,
	ebiten.KeyTab:          input.KeyTab,
	ebiten.KeyBackspace:    input.KeyBackspace,
	ebiten.KeyEnter:        input.KeyReturn,
	ebiten.KeyDelete:       input.KeyDelete,
	ebiten.KeyArrowLeft:    input.KeyLeft,
	ebiten.KeyArrowUp:      input.KeyUp,
	ebiten.KeyArrowRight:   input.KeyRight,
	ebiten.KeyArrowDown:    input.KeyDown,
	ebiten.KeyShiftLeft:    input.KeyShift,
	ebiten.KeyShiftRight:   input.KeyShift,
	ebiten.KeyControlLeft:  input.KeyControl,
	ebiten.KeyControlRight: input.KeyControl,
	ebiten.KeyAltLeft:      input.KeyAlt,
	ebiten.KeyAltRight:     input.KeyAlt,
	ebiten.KeyMetaLeft:     input.KeyMeta,
	ebiten.KeyMetaRight:    input.KeyMeta,
	ebiten.KeyF1:           input.KeyF1,
	ebiten.KeyF2:           input.KeyF2,
	ebiten.KeyF3:           input.KeyF3,
	ebiten.KeyF4:           input.KeyF4,
	ebiten.KeyF5:           input.KeyF5,
	ebiten.KeyF6:           input.KeyF6,
	ebiten.KeyF7:           input.KeyF7,
	ebiten.KeyF8:           input.KeyF8,
	ebiten.KeySpace:        input.Key(' '),
}

// keyInputFor maps an ebiten key. Letters map to their upper case code
// point and carry text; keys with no mapping report false.
func keyInputFor(k ebiten.Key, shift bool) (keyInput, bool) {
	if key, ok := namedKeys[k]; ok {
		ki := keyInput{key: key}
		if key == ' ' {
			ki.text = " "
		}
		return ki, true
	}
	return printableKey(k.String(), shift)
}

// printableKey handles ebiten's names for letter ("A") and digit
// ("Digit1") keys.
func printableKey(name string, shift bool) (keyInput, bool) {
	name = strings.TrimPrefix(name, "Digit")
	runes := []rune(name)
	if len(runes) != 1 {
		return keyInput{}, false
	}
	r := unicode.ToUpper(runes[0])
	switch {
	case r >= 'A' && r <= 'Z':
		text := string(unicode.ToLower(r))
		if shift {
			text = string(r)
		}
		return keyInput{key: input.Key(r), text: text}, true
	case r >= '0' && r <= '9':
		return keyInput{key: input.Key(r), text: string(r)}, true
	}
	return keyInput{}, false
}

func modifiers() input.Modifiers {
	var m input.Modifiers
	if ebiten.IsKeyPressed(ebiten.KeyShift) {
		m |= input.ModShift
	}
	if ebiten.IsKeyPressed(ebiten.KeyControl) {
		m |= input.ModControl
	}
	if ebiten.IsKeyPressed(ebiten.KeyAlt) {
		m |= input.ModAlt
	}
	if ebiten.IsKeyPressed(ebiten.KeyMeta) {
		m |= input.ModMeta
	}
	return m
}
