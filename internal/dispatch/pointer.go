package dispatch

import (
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// Mouse and tablet tools report a single point, id 0.
const singlePointID = 0

const tabletCaps = input.CapPosition | input.CapPressure | input.CapXTilt | input.CapYTilt |
	input.CapRotation | input.CapTangentialPressure | input.CapZPosition | input.CapHover

// buttonState is what the dispatcher remembers about a mouse or tablet tool
// between frames.
type buttonState struct {
	buttons      input.MouseButtons
	lastButton   input.MouseButton
	lastPressAt  uint64 // 0 when the next press cannot complete a double click
	lastPressPos geom.Vec2
}

func (d *Dispatcher) buttonState(dev *input.Device) *buttonState {
	st, ok := d.buttons[dev]
	if !ok {
		st = &buttonState{}
		d.buttons[dev] = st
	}
	return st
}

// pointerFrame is one single-point frame from a mouse or tablet tool.
type pointerFrame struct {
	typ      input.EventType
	state    input.State
	ts       uint64
	mods     input.Modifiers
	scene    geom.Vec2
	global   geom.Vec2
	pressure float64
	rotation float64
	button   input.MouseButton
	buttons  input.MouseButtons
}

// positions resolves a producer's local/global pair into scene and global
// coordinates. Producers that only know the window-local position leave
// global at zero.
func positions(w *Window, local, global geom.Vec2) (scene, glob geom.Vec2) {
	if global.IsNull() && !local.IsNull() {
		global = w.MapToGlobal(local)
	}
	return w.MapFromGlobal(global), global
}

func receiverOf(g input.Grabber) Receiver {
	r, _ := g.(Receiver)
	return r
}

func clonePoints(points []input.EventPoint) []input.EventPoint {
	out := make([]input.EventPoint, len(points))
	for i := range points {
		out[i] = points[i].Clone()
	}
	return out
}

// deliver maps the event's points into r's coordinates and hands it over.
func deliver(r Receiver, ev *input.PointerEvent) {
	origin := r.Bounds().Min
	for i := range ev.PointCount() {
		p := ev.Point(i)
		p.SetPosition(p.ScenePosition().Sub(origin))
	}
	r.HandlePointerEvent(ev)
}

func (d *Dispatcher) pointingDevice(dev *input.Device) *input.Device {
	if dev == nil {
		dev = d.registry.PrimaryPointingDevice("")
	}
	if !dev.IsPointing() {
		logger.Warnf("%v is not a pointing device; event dropped", dev)
		return nil
	}
	d.track(dev)
	return dev
}

func (d *Dispatcher) tabletDevice(dev *input.Device) *input.Device {
	if dev == nil {
		dev = d.registry.TabletDevice(input.DeviceStylus, input.PointerPen, input.NoUniqueID, tabletCaps, 3)
	}
	return d.pointingDevice(dev)
}

// deliverSingle folds f into the device's persistent point and delivers it:
// first to passive grabbers, then to the exclusive grabber or, failing
// that, the topmost receiver under the point.
func (d *Dispatcher) deliverSingle(w *Window, dev *input.Device, f pointerFrame) (*input.PointerEvent, Receiver) {
	entry := dev.ActivePoints().PointByID(singlePointID)
	persistent := entry.Point()

	from := input.NewEventPoint(f.ts, singlePointID, f.state, f.scene, f.scene, f.global)
	from.SetPressure(f.pressure)
	from.SetRotation(f.rotation)
	if !dev.HasCapability(input.CapVelocity) {
		from.SetVelocity(persistent.Velocity())
	}
	input.UpdatePoint(from, persistent)
	input.SetTimestamp(persistent, f.ts)

	ev := input.NewPointerEvent(f.typ, dev, f.ts, f.mods, persistent.Clone())
	ev.Button, ev.Buttons = f.button, f.buttons

	for _, g := range entry.PassiveGrabbers() {
		if r := receiverOf(g); r != nil {
			deliver(r, ev.WithPoints(clonePoints(ev.Points())))
		}
	}

	target := receiverOf(entry.ExclusiveGrabber())
	if target == nil {
		target = w.ReceiverAt(f.scene)
	}
	if target != nil {
		deliver(target, ev)
	}
	return ev, target
}

// settleGrab grabs the point for target on an accepted press and releases
// every grab once the last button is up.
func settleGrab(ev *input.PointerEvent, target Receiver) {
	pt := ev.Point(0)
	switch pt.State() {
	case input.StatePressed:
		if ev.IsAccepted() && target != nil && ev.ExclusiveGrabber(pt) == nil {
			ev.SetExclusiveGrabber(pt, target)
		}
	case input.StateReleased:
		ev.SetExclusiveGrabber(pt, nil)
		ev.ClearPassiveGrabbers(pt)
	}
}

func (d *Dispatcher) processMouse(id wsi.WindowID, m *wsi.Mouse) bool {
	w := d.window(id, "mouse event")
	if w == nil {
		return false
	}
	dev := d.pointingDevice(m.Device)
	if dev == nil {
		return false
	}
	st := d.buttonState(dev)
	scene, global := positions(w, m.Local, m.Global)

	// Receivers must see the pointer arrive before it is pressed or
	// released somewhere new.
	if m.Type != input.MouseMove {
		prev := dev.ActivePoints().PointByID(singlePointID).Point()
		if prev.State() != input.StateUnknown && !prev.GlobalPosition().Eq(global) {
			logger.Debugf("%s: synthesizing move to %v before %s", dev.Name(), global, m.Type)
			d.deliverSingle(w, dev, pointerFrame{
				typ:      input.MouseMove,
				state:    input.StateUpdated,
				ts:       m.Timestamp,
				mods:     m.Modifiers,
				scene:    scene,
				global:   global,
				pressure: pressureFor(st.buttons),
				buttons:  st.buttons,
			})
		}
	}

	buttons := m.Buttons
	state := input.StateUpdated
	switch m.Type {
	case input.MouseButtonPress:
		buttons |= m.Button
		if st.buttons == 0 {
			state = input.StatePressed
		}
	case input.MouseButtonRelease:
		buttons &^= m.Button
		if buttons == 0 {
			state = input.StateReleased
		}
	}

	ev, target := d.deliverSingle(w, dev, pointerFrame{
		typ:      m.Type,
		state:    state,
		ts:       m.Timestamp,
		mods:     m.Modifiers,
		scene:    scene,
		global:   global,
		pressure: pressureFor(buttons),
		button:   m.Button,
		buttons:  buttons,
	})
	st.buttons = buttons
	settleGrab(ev, target)

	if m.Type == input.MouseButtonPress {
		d.maybeDoubleClick(st, ev, target, global)
	}
	return ev.IsAccepted()
}

func pressureFor(buttons input.MouseButtons) float64 {
	if buttons != 0 {
		return 1
	}
	return 0
}

// maybeDoubleClick follows a press with a double-click event when it
// repeats the previous press closely enough in time and space.
func (d *Dispatcher) maybeDoubleClick(st *buttonState, press *input.PointerEvent, target Receiver, global geom.Vec2) {
	ts := press.Timestamp()
	isDouble := st.lastPressAt != 0 &&
		press.Button == st.lastButton &&
		ts >= st.lastPressAt &&
		ts-st.lastPressAt <= uint64(d.opts.DoubleClickInterval.Milliseconds()) &&
		global.Sub(st.lastPressPos).Length() <= d.opts.DoubleClickDistance

	if !isDouble {
		st.lastPressAt, st.lastPressPos, st.lastButton = ts, global, press.Button
		return
	}
	st.lastPressAt = 0
	if target == nil {
		return
	}
	dbl := input.NewPointerEvent(input.MouseButtonDoubleClick, press.Device(), ts, press.Modifiers(),
		clonePoints(press.Points())...)
	dbl.Button, dbl.Buttons = press.Button, press.Buttons
	deliver(target, dbl)
}

func (d *Dispatcher) processTablet(id wsi.WindowID, t *wsi.Tablet) bool {
	w := d.window(id, "tablet event")
	if w == nil {
		return false
	}
	dev := d.tabletDevice(t.Device)
	if dev == nil {
		return false
	}
	st := d.buttonState(dev)
	scene, global := positions(w, t.Local, t.Global)

	typ, state := input.TabletMove, input.StateUpdated
	switch {
	case st.buttons == 0 && t.Buttons != 0:
		typ, state = input.TabletPress, input.StatePressed
	case st.buttons != 0 && t.Buttons == 0:
		typ, state = input.TabletRelease, input.StateReleased
	}

	ev, target := d.deliverSingle(w, dev, pointerFrame{
		typ:      typ,
		state:    state,
		ts:       t.Timestamp,
		mods:     t.Modifiers,
		scene:    scene,
		global:   global,
		pressure: t.Pressure,
		rotation: t.Rotation,
		button:   st.buttons ^ t.Buttons,
		buttons:  t.Buttons,
	})
	st.buttons = t.Buttons
	settleGrab(ev, target)
	return ev.IsAccepted()
}

func (d *Dispatcher) processProximity(p *wsi.TabletProximity) bool {
	dev := d.tabletDevice(p.Device)
	if dev == nil {
		return false
	}
	typ := input.TabletLeaveProximity
	if p.Enter {
		typ = input.TabletEnterProximity
	}
	r := d.applicationReceiver()
	if r == nil {
		logger.Debugf("%s from %s: no application receiver", typ, dev.Name())
		return false
	}
	ev := input.NewPointerEvent(typ, dev, p.Timestamp, p.Modifiers)
	r.HandlePointerEvent(ev)
	return ev.IsAccepted()
}

// transientPoint builds a point for events that do not persist in the
// active point table.
func transientPoint(dev *input.Device, ts uint64, scene, global geom.Vec2) input.EventPoint {
	p := input.NewEventPoint(ts, singlePointID, input.StateStationary, scene, scene, global)
	p.SetDevice(dev)
	return p
}

func (d *Dispatcher) processWheel(id wsi.WindowID, wh *wsi.Wheel) bool {
	w := d.window(id, "wheel event")
	if w == nil {
		return false
	}
	dev := d.pointingDevice(wh.Device)
	if dev == nil {
		return false
	}
	scene, global := positions(w, wh.Local, wh.Global)
	target := w.ReceiverAt(scene)
	if target == nil {
		return false
	}
	ev := input.NewPointerEvent(input.Wheel, dev, wh.Timestamp, wh.Modifiers,
		transientPoint(dev, wh.Timestamp, scene, global))
	ev.Buttons = d.buttonState(dev).buttons
	ev.PixelDelta, ev.AngleDelta = wh.PixelDelta, wh.AngleDelta
	ev.Phase, ev.Inverted = wh.Phase, wh.Inverted
	deliver(target, ev)
	return ev.IsAccepted()
}

func (d *Dispatcher) processGesture(id wsi.WindowID, g *wsi.Gesture) bool {
	w := d.window(id, "gesture")
	if w == nil {
		return false
	}
	dev := g.Device
	if dev == nil {
		dev, _ = d.registry.FindPrimary("", input.DeviceTouchPad)
	}
	if dev = d.pointingDevice(dev); dev == nil {
		return false
	}
	scene, global := positions(w, g.Local, g.Global)
	target := w.ReceiverAt(scene)
	if target == nil {
		return false
	}
	ev := input.NewPointerEvent(input.NativeGesture, dev, g.Timestamp, g.Modifiers,
		transientPoint(dev, g.Timestamp, scene, global))
	ev.Gesture, ev.GestureValue, ev.FingerCount = g.Gesture, g.Value, g.FingerCount
	deliver(target, ev)
	return ev.IsAccepted()
}
