package emulator

import (
	"context"
	"image"
	"slices"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// Sink receives the events the emulator produces. *delivery.Coordinator
// implements it.
type Sink interface {
	HandleMouseEvent(ctx context.Context, w wsi.WindowID, m *wsi.Mouse) bool
	HandleWheelEvent(ctx context.Context, w wsi.WindowID, wh *wsi.Wheel) bool
	HandleKeyEvent(ctx context.Context, w wsi.WindowID, k *wsi.Key) bool
	HandleTouchEvent(ctx context.Context, w wsi.WindowID, t *wsi.Touch) bool
	HandleCloseEvent(ctx context.Context, w wsi.WindowID) bool
	HandleEnterEvent(ctx context.Context, w wsi.WindowID, local, global geom.Vec2) bool
	HandleLeaveEvent(ctx context.Context, w wsi.WindowID) bool
	HandleExposeEvent(ctx context.Context, w wsi.WindowID, region geom.Rect) bool
	HandleWindowStateChanged(ctx context.Context, w wsi.WindowID, old, state wsi.WindowState) bool
	HandleApplicationStateChanged(ctx context.Context, state wsi.ApplicationState) bool
}

// keyInput is one key transition.
type keyInput struct {
	key  input.Key
	text string
}

// snapshot is the input state of one frame, in window-local coordinates.
type snapshot struct {
	size    image.Point
	cursor  geom.Vec2
	inside  bool
	buttons input.MouseButtons
	// wheel is in notches, positive y away from the user.
	wheel   geom.Vec2
	touches map[int]geom.Vec2

	pressed  []keyInput
	released []keyInput
	mods     input.Modifiers

	focused bool
	state   wsi.WindowState
	closing bool
}

// notch is the angle delta of one wheel notch, in eighths of a degree.
const notch = 120

var trackedButtons = []input.MouseButton{input.LeftButton, input.RightButton, input.MiddleButton}

// translator turns the difference between two frames into producer calls.
type translator struct {
	sink   Sink
	window wsi.WindowID
	// origin is the window's top-left corner in global coordinates.
	origin geom.Vec2

	mouse    *input.Device
	keyboard *input.Device
	touch    *input.Device

	prev    snapshot
	started bool
	// buttons are the buttons reported as held.
	buttons input.MouseButtons
}

func (t *translator) global(local geom.Vec2) geom.Vec2 {
	return t.origin.Add(local)
}

// step compares cur with the previous frame and reports every change. It
// returns false when a close request was accepted.
func (t *translator) step(ctx context.Context, cur snapshot) bool {
	prev := t.prev
	first := !t.started
	t.started = true
	t.prev = cur

	// 1. Window system state
	if first || cur.size != prev.size {
		t.sink.HandleExposeEvent(ctx, t.window, geom.R(0, 0, float64(cur.size.X), float64(cur.size.Y)))
	}
	if first || cur.focused != prev.focused {
		state := wsi.ApplicationInactive
		if cur.focused {
			state = wsi.ApplicationActive
		}
		t.sink.HandleApplicationStateChanged(ctx, state)
	}
	if !first && cur.state != prev.state {
		t.sink.HandleWindowStateChanged(ctx, t.window, prev.state, cur.state)
	}
	if cur.inside != prev.inside {
		if cur.inside {
			t.sink.HandleEnterEvent(ctx, t.window, cur.cursor, t.global(cur.cursor))
		} else {
			t.sink.HandleLeaveEvent(ctx, t.window)
		}
	}

	// 2. Pointer
	t.mouseEvents(ctx, prev, cur, first)
	if !cur.wheel.IsNull() && cur.inside {
		t.sink.HandleWheelEvent(ctx, t.window, &wsi.Wheel{
			InputEnvelope: wsi.InputEnvelope{Device: t.mouse, Modifiers: cur.mods},
			Local:         cur.cursor,
			Global:        t.global(cur.cursor),
			AngleDelta:    cur.wheel.Mul(notch),
		})
	}
	t.touchEvents(ctx, prev, cur)

	// 3. Keys
	for _, k := range cur.pressed {
		t.keyEvent(ctx, k, true, cur.mods)
	}
	for _, k := range cur.released {
		t.keyEvent(ctx, k, false, cur.mods)
	}

	// 4. Close last so the frame's input is seen first
	if cur.closing && !prev.closing {
		if t.sink.HandleCloseEvent(ctx, t.window) {
			return false
		}
	}
	return true
}

func (t *translator) mouseEvents(ctx context.Context, prev, cur snapshot, first bool) {
	moved := !first && !cur.cursor.Eq(prev.cursor)
	// Outside the window only drags are reported.
	if moved && (cur.inside || t.buttons != 0) {
		t.sink.HandleMouseEvent(ctx, t.window, t.mouseEvent(input.MouseMove, input.NoButton, cur))
	}

	for _, b := range trackedButtons {
		was, is := prev.buttons&b != 0, cur.buttons&b != 0
		switch {
		// A press that starts outside the window is never reported.
		case !was && is && cur.inside:
			t.buttons |= b
			t.sink.HandleMouseEvent(ctx, t.window, t.mouseEvent(input.MouseButtonPress, b, cur))
		case !is && t.buttons&b != 0:
			t.buttons &^= b
			t.sink.HandleMouseEvent(ctx, t.window, t.mouseEvent(input.MouseButtonRelease, b, cur))
		}
	}
}

func (t *translator) mouseEvent(typ input.EventType, b input.MouseButton, cur snapshot) *wsi.Mouse {
	return &wsi.Mouse{
		InputEnvelope: wsi.InputEnvelope{Device: t.mouse, Modifiers: cur.mods},
		Type:          typ,
		Local:         cur.cursor,
		Global:        t.global(cur.cursor),
		Button:        b,
		Buttons:       t.buttons,
	}
}

func (t *translator) touchEvents(ctx context.Context, prev, cur snapshot) {
	ids := make([]int, 0, len(cur.touches)+len(prev.touches))
	for id := range cur.touches {
		ids = append(ids, id)
	}
	for id := range prev.touches {
		if _, ok := cur.touches[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return
	}
	slices.Sort(ids)

	changed := false
	points := make([]wsi.TouchPoint, 0, len(ids))
	for _, id := range ids {
		pos, now := cur.touches[id]
		last, before := prev.touches[id]
		var state input.State
		switch {
		case now && !before:
			state = input.StatePressed
		case !now:
			state, pos = input.StateReleased, last
		case pos.Eq(last):
			state = input.StateStationary
		default:
			state = input.StateUpdated
		}
		changed = changed || state != input.StateStationary
		points = append(points, wsi.TouchPoint{
			ID:    id,
			State: state,
			Area:  geom.RectFromCenter(t.global(pos), geom.V(1, 1)),
		})
	}
	if !changed {
		return
	}
	t.sink.HandleTouchEvent(ctx, t.window, &wsi.Touch{
		InputEnvelope: wsi.InputEnvelope{Device: t.touch, Modifiers: cur.mods},
		Points:        points,
	})
}

func (t *translator) keyEvent(ctx context.Context, k keyInput, pressed bool, mods input.Modifiers) {
	t.sink.HandleKeyEvent(ctx, t.window, &wsi.Key{
		InputEnvelope: wsi.InputEnvelope{Device: t.keyboard, Modifiers: mods},
		Pressed:       pressed,
		Key:           k.key,
		Text:          k.text,
		Count:         1,
	})
}
