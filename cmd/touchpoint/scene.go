package main

import (
	"fmt"

	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
)

type logFunc func(format string, args ...any)

// demoArea is a receiver that accepts everything and logs what it gets.
func demoArea(name string, r geom.Rect, logf logFunc) *dispatch.Area {
	a := dispatch.NewArea(name, r)
	a.OnPointer = func(a *dispatch.Area, ev *input.PointerEvent) {
		ev.Accept()
		logf("%s: %s", a.Name, describe(ev))
	}
	a.OnKey = func(a *dispatch.Area, ev *input.KeyEvent) {
		ev.SetAccepted(true)
		state := "up"
		if ev.Pressed {
			state = "down"
		}
		logf("%s: key %#x %q %s", a.Name, uint32(ev.Key), ev.Text, state)
	}
	return a
}

func describe(ev *input.PointerEvent) string {
	s := ev.Type().String()
	switch ev.Type() {
	case input.Wheel:
		return fmt.Sprintf("%s angle=%v", s, ev.AngleDelta)
	case input.NativeGesture:
		return fmt.Sprintf("%s value=%g", s, ev.GestureValue)
	}
	for _, p := range ev.Points() {
		s += fmt.Sprintf(" [%d %s %v]", p.ID(), p.State(), p.Position())
	}
	return s
}

// emulatorScene lays out two side-by-side areas above a wide one. The
// first area takes key focus.
func emulatorScene(w *dispatch.Window, logf logFunc) {
	size := w.Geometry().Size()
	half := (size.X - 60) / 2
	top := (size.Y - 80) * 0.45

	left := demoArea("left", geom.R(20, 20, half, top), logf)
	right := demoArea("right", geom.R(40+half, 20, half, top), logf)
	wide := demoArea("wide", geom.R(20, 40+top, size.X-40, top*0.6), logf)
	for _, a := range []*dispatch.Area{left, right, wide} {
		w.AddReceiver(a)
	}
	w.SetFocus(left)
}

// stripScene splits the strip into one area per dial.
func stripScene(w *dispatch.Window, strip geom.Rect, dials int, logf logFunc) {
	dials = max(dials, 1)
	origin := w.MapFromGlobal(strip.Min)
	width := strip.Size().X / float64(dials)
	var first *dispatch.Area
	for i := range dials {
		a := demoArea(fmt.Sprintf("segment %d", i+1), geom.R(origin.X+width*float64(i), origin.Y, width, strip.Size().Y), logf)
		w.AddReceiver(a)
		if first == nil {
			first = a
		}
	}
	w.SetFocus(first)
}
