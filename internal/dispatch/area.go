package dispatch

import (
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
)

// Area is a rectangular receiver that hands events to callbacks. It accepts
// nothing unless a callback does.
type Area struct {
	Name string
	Rect geom.Rect

	OnPointer func(a *Area, ev *input.PointerEvent)
	OnKey     func(a *Area, ev *input.KeyEvent)
}

// NewArea returns an area covering r.
func NewArea(name string, r geom.Rect) *Area {
	return &Area{Name: name, Rect: r}
}

// Bounds implements Receiver.
func (a *Area) Bounds() geom.Rect { return a.Rect }

// HandlePointerEvent implements Receiver.
func (a *Area) HandlePointerEvent(ev *input.PointerEvent) {
	if a.OnPointer != nil {
		a.OnPointer(a, ev)
	}
}

// HandleKeyEvent implements KeyReceiver.
func (a *Area) HandleKeyEvent(ev *input.KeyEvent) {
	if a.OnKey != nil {
		a.OnKey(a, ev)
	}
}

func (a *Area) String() string { return a.Name }
