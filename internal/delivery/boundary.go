package delivery

import (
	"context"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// Producer-facing entry points. Each takes the caller's context (which tells
// the coordinator whether the caller is the consumer), a target window and a
// payload, and returns whether the event was accepted. The result is only
// meaningful for synchronous delivery; asynchronous delivery always returns
// true. A zero timestamp means "now".

func (c *Coordinator) stamp(env *wsi.InputEnvelope) {
	if env.Timestamp == 0 {
		env.Timestamp = c.Timestamp()
	}
}

func (c *Coordinator) deliverInput(ctx context.Context, policy Policy, w wsi.WindowID, p wsi.InputPayload) bool {
	c.stamp(p.Envelope())
	return c.Deliver(ctx, policy, wsi.NewEvent(w, p))
}

// HandleMouseEvent delivers a mouse press, release or move with the Default
// policy.
func (c *Coordinator) HandleMouseEvent(ctx context.Context, w wsi.WindowID, m *wsi.Mouse) bool {
	return c.HandleMouseEventPolicy(ctx, Default, w, m)
}

// HandleMouseEventPolicy delivers a mouse event with an explicit policy.
func (c *Coordinator) HandleMouseEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, m *wsi.Mouse) bool {
	if m.Type == input.EventNone {
		m.Type = input.MouseMove
	}
	return c.deliverInput(ctx, policy, w, m)
}

// HandleWheelEvent delivers a scroll with the Default policy.
func (c *Coordinator) HandleWheelEvent(ctx context.Context, w wsi.WindowID, wh *wsi.Wheel) bool {
	return c.HandleWheelEventPolicy(ctx, Default, w, wh)
}

// HandleWheelEventPolicy delivers a scroll with an explicit policy. Scrolls
// without any delta are dropped.
func (c *Coordinator) HandleWheelEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, wh *wsi.Wheel) bool {
	if wh.PixelDelta.IsNull() && wh.AngleDelta.IsNull() && wh.Phase == input.NoScrollPhase {
		return false
	}
	return c.deliverInput(ctx, policy, w, wh)
}

// HandleKeyEvent delivers a key press or release with the Default policy.
func (c *Coordinator) HandleKeyEvent(ctx context.Context, w wsi.WindowID, k *wsi.Key) bool {
	return c.HandleKeyEventPolicy(ctx, Default, w, k)
}

// HandleKeyEventPolicy delivers a key event with an explicit policy.
func (c *Coordinator) HandleKeyEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, k *wsi.Key) bool {
	if k.Count == 0 {
		k.Count = 1
	}
	return c.deliverInput(ctx, policy, w, k)
}

// HandleTouchEvent delivers a touch frame with the Default policy.
func (c *Coordinator) HandleTouchEvent(ctx context.Context, w wsi.WindowID, t *wsi.Touch) bool {
	return c.HandleTouchEventPolicy(ctx, Default, w, t)
}

// HandleTouchEventPolicy delivers a touch frame with an explicit policy.
// Frames without points are dropped.
func (c *Coordinator) HandleTouchEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, t *wsi.Touch) bool {
	if len(t.Points) == 0 {
		return false
	}
	if t.Type == input.EventNone {
		t.Type = TouchEventType(t.Points)
	}
	return c.deliverInput(ctx, policy, w, t)
}

// HandleTouchCancelEvent cancels every touch sequence of dev with the
// Default policy.
func (c *Coordinator) HandleTouchCancelEvent(ctx context.Context, w wsi.WindowID, ts uint64, dev *input.Device, mods input.Modifiers) bool {
	return c.HandleTouchCancelEventPolicy(ctx, Default, w, ts, dev, mods)
}

// HandleTouchCancelEventPolicy cancels touch sequences with an explicit
// policy.
func (c *Coordinator) HandleTouchCancelEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, ts uint64, dev *input.Device, mods input.Modifiers) bool {
	t := &wsi.Touch{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts, Device: dev, Modifiers: mods},
		Type:          input.TouchCancel,
	}
	return c.deliverInput(ctx, policy, w, t)
}

// HandleTabletEvent delivers a stylus frame with the Default policy.
func (c *Coordinator) HandleTabletEvent(ctx context.Context, w wsi.WindowID, t *wsi.Tablet) bool {
	return c.HandleTabletEventPolicy(ctx, Default, w, t)
}

// HandleTabletEventPolicy delivers a stylus frame with an explicit policy.
func (c *Coordinator) HandleTabletEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, t *wsi.Tablet) bool {
	return c.deliverInput(ctx, policy, w, t)
}

// HandleTabletEnterProximityEvent reports dev coming into range.
func (c *Coordinator) HandleTabletEnterProximityEvent(ctx context.Context, ts uint64, dev *input.Device) bool {
	return c.HandleTabletProximityEventPolicy(ctx, Default, ts, dev, true)
}

// HandleTabletLeaveProximityEvent reports dev going out of range.
func (c *Coordinator) HandleTabletLeaveProximityEvent(ctx context.Context, ts uint64, dev *input.Device) bool {
	return c.HandleTabletProximityEventPolicy(ctx, Default, ts, dev, false)
}

// HandleTabletProximityEventPolicy reports a proximity change with an
// explicit policy.
func (c *Coordinator) HandleTabletProximityEventPolicy(ctx context.Context, policy Policy, ts uint64, dev *input.Device, enter bool) bool {
	p := &wsi.TabletProximity{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts, Device: dev},
		Enter:         enter,
	}
	return c.deliverInput(ctx, policy, wsi.NoWindow, p)
}

// HandleGestureEvent delivers a native gesture with the Default policy.
func (c *Coordinator) HandleGestureEvent(ctx context.Context, w wsi.WindowID, g *wsi.Gesture) bool {
	return c.HandleGestureEventPolicy(ctx, Default, w, g)
}

// HandleGestureEventPolicy delivers a native gesture with an explicit
// policy.
func (c *Coordinator) HandleGestureEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, g *wsi.Gesture) bool {
	return c.deliverInput(ctx, policy, w, g)
}

// HandleCloseEvent asks for w to close. It is always synchronous so the
// caller learns whether the close was accepted.
func (c *Coordinator) HandleCloseEvent(ctx context.Context, w wsi.WindowID) bool {
	return c.Deliver(ctx, Synchronous, wsi.NewEvent(w, &wsi.Close{}))
}

// HandleEnterEvent reports the pointer entering w.
func (c *Coordinator) HandleEnterEvent(ctx context.Context, w wsi.WindowID, local, global geom.Vec2) bool {
	return c.HandleEnterEventPolicy(ctx, Default, w, local, global)
}

// HandleEnterEventPolicy reports the pointer entering w with an explicit
// policy.
func (c *Coordinator) HandleEnterEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, local, global geom.Vec2) bool {
	return c.Deliver(ctx, policy, wsi.NewEvent(w, &wsi.Enter{Local: local, Global: global}))
}

// HandleLeaveEvent reports the pointer leaving w.
func (c *Coordinator) HandleLeaveEvent(ctx context.Context, w wsi.WindowID) bool {
	return c.HandleLeaveEventPolicy(ctx, Default, w)
}

// HandleLeaveEventPolicy reports the pointer leaving w with an explicit
// policy.
func (c *Coordinator) HandleLeaveEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID) bool {
	return c.Deliver(ctx, policy, wsi.NewEvent(w, &wsi.Leave{}))
}

// HandleExposeEvent reports a region of w that needs repainting.
func (c *Coordinator) HandleExposeEvent(ctx context.Context, w wsi.WindowID, region geom.Rect) bool {
	return c.HandleExposeEventPolicy(ctx, Default, w, region)
}

// HandleExposeEventPolicy reports an exposed region with an explicit policy.
func (c *Coordinator) HandleExposeEventPolicy(ctx context.Context, policy Policy, w wsi.WindowID, region geom.Rect) bool {
	return c.Deliver(ctx, policy, wsi.NewEvent(w, &wsi.Expose{Region: region}))
}

// HandleWindowStateChanged reports a window state transition.
func (c *Coordinator) HandleWindowStateChanged(ctx context.Context, w wsi.WindowID, old, state wsi.WindowState) bool {
	return c.Deliver(ctx, Default, wsi.NewEvent(w, &wsi.WindowStateChanged{Old: old, New: state}))
}

// HandleApplicationStateChanged reports an activation change.
func (c *Coordinator) HandleApplicationStateChanged(ctx context.Context, state wsi.ApplicationState) bool {
	return c.Deliver(ctx, Default, wsi.NewEvent(wsi.NoWindow, &wsi.ApplicationStateChanged{State: state}))
}

// TouchEventType derives the touch event type from a frame's point states:
// Begin when every point is pressed, End when every point is released,
// Update otherwise.
func TouchEventType(points []wsi.TouchPoint) input.EventType {
	pressed, released := 0, 0
	for _, p := range points {
		switch p.State {
		case input.StatePressed:
			pressed++
		case input.StateReleased:
			released++
		}
	}
	switch {
	case len(points) > 0 && pressed == len(points):
		return input.TouchBegin
	case len(points) > 0 && released == len(points):
		return input.TouchEnd
	}
	return input.TouchUpdate
}
