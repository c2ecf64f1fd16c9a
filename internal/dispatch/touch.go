package dispatch

import (
	"slices"

	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// routeGroup collects the points of one frame that go to the same receiver.
type routeGroup struct {
	target Receiver
	points []input.EventPoint
}

func addToGroup(groups []*routeGroup, r Receiver, p *input.EventPoint) []*routeGroup {
	for _, g := range groups {
		if g.target == r {
			g.points = append(g.points, p.Clone())
			return groups
		}
	}
	return append(groups, &routeGroup{target: r, points: []input.EventPoint{p.Clone()}})
}

// touchType derives the event type one receiver sees from the states of
// its points.
func touchType(points []input.EventPoint) input.EventType {
	pressed, released := 0, 0
	for i := range points {
		switch points[i].State() {
		case input.StatePressed:
			pressed++
		case input.StateReleased:
			released++
		}
	}
	switch {
	case pressed == len(points):
		return input.TouchBegin
	case released == len(points):
		return input.TouchEnd
	}
	return input.TouchUpdate
}

func (d *Dispatcher) touchDevice(dev *input.Device) *input.Device {
	if dev == nil {
		var ok bool
		if dev, ok = d.registry.FindPrimary("", input.DeviceTouchScreen); !ok {
			logger.Warnf("touch event without a device and no touchscreen registered; dropped")
			return nil
		}
	}
	return d.pointingDevice(dev)
}

func (d *Dispatcher) processTouch(id wsi.WindowID, t *wsi.Touch) bool {
	dev := d.touchDevice(t.Device)
	if dev == nil {
		return false
	}
	if t.Type == input.TouchCancel {
		d.cancelTouch(dev, t)
		return true
	}
	w := d.window(id, "touch event")
	if w == nil {
		return false
	}

	// 1. Fold the reported points into the persistent ones
	table := dev.ActivePoints()
	entries := make([]*input.PointEntry, 0, len(t.Points))
	for _, tp := range t.Points {
		entry := table.PointByID(tp.ID)
		persistent := entry.Point()

		global := tp.Position()
		scene := w.MapFromGlobal(global)
		from := input.NewEventPoint(t.Timestamp, tp.ID, tp.State, scene, scene, global)
		from.SetUniqueID(tp.UniqueID)
		from.SetRotation(tp.Rotation)
		from.SetEllipseDiameters(tp.Area.Size())
		if dev.HasCapability(input.CapPressure) {
			from.SetPressure(tp.Pressure)
		}
		if dev.HasCapability(input.CapVelocity) {
			from.SetVelocity(tp.Velocity)
		} else {
			from.SetVelocity(persistent.Velocity())
		}
		input.UpdatePoint(from, persistent)
		input.SetTimestamp(persistent, t.Timestamp)
		entries = append(entries, entry)
	}

	// 2. Route: passive grabbers see every point they watch; each point
	// goes to its exclusive grabber or the receiver under it
	var passive, exclusive []*routeGroup
	for _, entry := range entries {
		p := entry.Point()
		for _, g := range entry.PassiveGrabbers() {
			if r := receiverOf(g); r != nil {
				passive = addToGroup(passive, r, p)
			}
		}
		target := receiverOf(entry.ExclusiveGrabber())
		if target == nil {
			target = w.ReceiverAt(p.ScenePosition())
		}
		if target == nil {
			logger.Debugf("%s point %d at %v: nothing to deliver to", dev.Name(), p.ID(), p.ScenePosition())
			continue
		}
		exclusive = addToGroup(exclusive, target, p)
	}

	// 3. Deliver, grabbing accepted new points
	for _, g := range passive {
		deliver(g.target, input.NewPointerEvent(touchType(g.points), dev, t.Timestamp, t.Modifiers, g.points...))
	}
	accepted := false
	for _, g := range exclusive {
		ev := input.NewPointerEvent(touchType(g.points), dev, t.Timestamp, t.Modifiers, g.points...)
		deliver(g.target, ev)
		for i := range ev.PointCount() {
			pt := ev.Point(i)
			if !pt.IsAccepted() {
				continue
			}
			accepted = true
			if pt.State() == input.StatePressed && ev.ExclusiveGrabber(pt) == nil {
				ev.SetExclusiveGrabber(pt, g.target)
			}
		}
	}

	// 4. Released points leave the table once everyone has seen them
	frame := input.NewPointerEvent(t.Type, dev, t.Timestamp, t.Modifiers)
	for _, entry := range entries {
		p := entry.Point()
		if p.State() != input.StateReleased {
			continue
		}
		frame.SetExclusiveGrabber(p, nil)
		frame.ClearPassiveGrabbers(p)
		table.RemovePointByID(p.ID())
	}
	return accepted
}

// cancelTouch tells every grabber of dev's points that their sequences are
// over and forgets the points.
func (d *Dispatcher) cancelTouch(dev *input.Device, t *wsi.Touch) {
	ev := input.NewPointerEvent(input.TouchCancel, dev, t.Timestamp, t.Modifiers)
	var told []Receiver
	dev.SendTouchCancel(ev, func(g input.Grabber, ev *input.PointerEvent) {
		r := receiverOf(g)
		if r == nil || slices.Contains(told, r) {
			return
		}
		told = append(told, r)
		deliver(r, ev.WithPoints(clonePoints(ev.Points())))
	})
	dev.ActivePoints().Clear()
	logger.Debugf("%s: touch cancelled, %d receivers told", dev.Name(), len(told))
}
