// Package streamdeck turns a Stream Deck Plus into input devices. Keys and
// dial presses become key events, dial rotation becomes wheel events and
// the touch strip becomes a single-finger touchscreen.
package streamdeck

import (
	"image"
	"time"
)

// Deck is the part of the Stream Deck hardware the source drives. The real
// hardware adapter implements it; tests use a fake.
type Deck interface {
	Close() error

	GetModelName() string
	GetKeyCount() byte
	GetDialCount() byte
	GetTouchStripSupported() bool
	GetTouchStripImageRectangle() (image.Rectangle, error)

	SetBrightness(perc byte) error

	AddKeyHandler(key KeyID, fn KeyHandler) error
	AddDialRotateHandler(dial DialID, fn DialRotateHandler) error
	AddDialSwitchHandler(dial DialID, fn DialSwitchHandler) error
	AddTouchStripTouchHandler(fn TouchStripTouchHandler) error
	AddTouchStripSwipeHandler(fn TouchStripSwipeHandler) error

	// Listen blocks until the device goes away.
	Listen(errCh chan error) error
}

// KeyID identifies a physical key, starting at 1.
type KeyID byte

// DialID identifies a rotary dial, starting at 1.
type DialID byte

// TouchType is the kind of tap the strip reported.
type TouchType byte

const (
	TouchShort TouchType = iota + 1
	TouchLong
)

func (t TouchType) String() string {
	if t == TouchLong {
		return "long"
	}
	return "short"
}

// Button is a key or dial handed to a handler while it is held.
type Button interface {
	WaitForRelease() time.Duration
}

type (
	// KeyHandler is called when a key goes down.
	KeyHandler func(key KeyID, b Button) error

	// DialSwitchHandler is called when a dial is pushed.
	DialSwitchHandler func(dial DialID, b Button) error

	// DialRotateHandler is called when a dial turns. Positive is clockwise.
	DialRotateHandler func(dial DialID, delta int8) error

	// TouchStripTouchHandler is called for a tap on the strip.
	TouchStripTouchHandler func(t TouchType, p image.Point) error

	// TouchStripSwipeHandler is called for a swipe along the strip.
	TouchStripSwipeHandler func(origin, destination image.Point) error
)
