package input

import (
	"fmt"
	"reflect"
)

// GrabTransition describes how a grabber's relationship with a point changed.
type GrabTransition uint8

const (
	GrabExclusive GrabTransition = iota + 1
	UngrabExclusive
	CancelGrabExclusive
	GrabPassive
	UngrabPassive
	CancelGrabPassive
)

var grabTransitionNames = map[GrabTransition]string{
	GrabExclusive:       "GrabExclusive",
	UngrabExclusive:     "UngrabExclusive",
	CancelGrabExclusive: "CancelGrabExclusive",
	GrabPassive:         "GrabPassive",
	UngrabPassive:       "UngrabPassive",
	CancelGrabPassive:   "CancelGrabPassive",
}

func (g GrabTransition) String() string {
	if s, ok := grabTransitionNames[g]; ok {
		return s
	}
	return fmt.Sprintf("GrabTransition(%d)", g)
}

// IsCancel reports whether the transition is one of the cancel variants.
func (g GrabTransition) IsCancel() bool {
	return g == CancelGrabExclusive || g == CancelGrabPassive
}

// GrabChange is the payload of a grab notification.
type GrabChange struct {
	Grabber    Grabber
	Transition GrabTransition
	// Event is the event being delivered when the grab changed. It is nil
	// when the change happened outside delivery, e.g. on grabber teardown.
	Event *PointerEvent
	Point EventPoint
}

type grabObserver struct {
	id int
	fn func(GrabChange)
}

// OnGrabChanged registers fn to be called on every grab transition of this
// device's points. The returned function unsubscribes.
func (d *Device) OnGrabChanged(fn func(GrabChange)) (unsubscribe func()) {
	d.obsMu.Lock()
	d.nextObsID++
	id := d.nextObsID
	d.observers = append(d.observers, &grabObserver{id: id, fn: fn})
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		for i, o := range d.observers {
			if o.id == id {
				d.observers = append(d.observers[:i], d.observers[i+1:]...)
				return
			}
		}
	}
}

func (d *Device) emitGrabChanged(g Grabber, tr GrabTransition, ev *PointerEvent, p *EventPoint) {
	d.obsMu.RLock()
	observers := d.observers
	d.obsMu.RUnlock()

	change := GrabChange{Grabber: g, Transition: tr, Event: ev, Point: p.Clone()}
	for _, o := range observers {
		o.fn(change)
	}
}

// comparableGrabber reports whether g can be matched with ==. A grabber
// holding a map, slice or func would panic on the first comparison, so it is
// refused.
func (d *Device) comparableGrabber(g Grabber) bool {
	if g == nil || reflect.ValueOf(g).Comparable() {
		return true
	}
	logger.Warnf("%s: grabber of type %T is not comparable; ignored", d.name, g)
	return false
}

// persistentPoint looks up the table entry for point, logging when the point
// is unknown.
func (d *Device) persistentPoint(point *EventPoint) (*PointEntry, bool) {
	if d.points == nil {
		logger.Warnf("%s: point %d is not in activePoints (device has no point table)", d.name, point.ID())
		return nil, false
	}
	e, ok := d.points.QueryPointByID(point.ID())
	if !ok {
		logger.Warnf("%s: point is not in activePoints: %v", d.name, point)
		return nil, false
	}
	return e, true
}

// ExclusiveGrabber returns the exclusive grabber of point, or nil.
func (d *Device) ExclusiveGrabber(point *EventPoint) Grabber {
	if d.points == nil {
		return nil
	}
	if e, ok := d.points.QueryPointByID(point.ID()); ok {
		return e.exclusive
	}
	return nil
}

// PassiveGrabbers returns the passive grabbers of point.
func (d *Device) PassiveGrabbers(point *EventPoint) []Grabber {
	if d.points == nil {
		return nil
	}
	if e, ok := d.points.QueryPointByID(point.ID()); ok {
		return e.PassiveGrabbers()
	}
	return nil
}

// SetExclusiveGrabber makes grabber the exclusive owner of point, replacing
// any previous owner. Passing nil releases the grab.
//
// The previous grabber is told CancelGrabExclusive when replaced and
// UngrabExclusive when released. The point's grab position is reset to its
// current global position.
func (d *Device) SetExclusiveGrabber(ev *PointerEvent, point *EventPoint, grabber Grabber) {
	if !d.comparableGrabber(grabber) {
		return
	}
	e, ok := d.persistentPoint(point)
	if !ok {
		return
	}
	if e.exclusive == grabber {
		return
	}
	old := e.exclusive
	e.exclusive = grabber
	if old != nil {
		tr := UngrabExclusive
		if grabber != nil {
			tr = CancelGrabExclusive
		}
		d.emitGrabChanged(old, tr, ev, &e.point)
	}
	logger.Debugf("%s point %d %s @ %v: grab %v -> %v",
		d.name, point.ID(), point.State(), point.ScenePosition(), old, grabber)

	e.point.SetGlobalGrabPosition(point.GlobalPosition())
	if grabber != nil {
		d.emitGrabChanged(grabber, GrabExclusive, ev, point)
	} else {
		e.exclusiveContext = nil
	}
}

// AddPassiveGrabber adds grabber as a passive observer of point. It returns
// false when grabber is already a passive grabber or the point is unknown.
func (d *Device) AddPassiveGrabber(ev *PointerEvent, point *EventPoint, grabber Grabber) bool {
	if !d.comparableGrabber(grabber) {
		return false
	}
	e, ok := d.persistentPoint(point)
	if !ok {
		return false
	}
	if e.passiveIndex(grabber) >= 0 {
		return false
	}
	logger.Debugf("%s point %d %s: new passive grabber %v", d.name, point.ID(), point.State(), grabber)
	e.passive = append(e.passive, grabber)
	d.emitGrabChanged(grabber, GrabPassive, ev, point)
	return true
}

// SetPassiveGrabberContext records an opaque context for an existing
// passive grabber. It returns false when grabber is not a passive grabber
// of point.
func (d *Device) SetPassiveGrabberContext(point *EventPoint, grabber Grabber, ctx any) bool {
	if !d.comparableGrabber(grabber) {
		return false
	}
	e, ok := d.persistentPoint(point)
	if !ok {
		return false
	}
	i := e.passiveIndex(grabber)
	if i < 0 {
		return false
	}
	if len(e.passiveContexts) <= i {
		grown := make([]any, i+1)
		copy(grown, e.passiveContexts)
		e.passiveContexts = grown
	}
	e.passiveContexts[i] = ctx
	return true
}

// RemovePassiveGrabber removes grabber from point's passive grabbers and
// reports whether it was there.
func (d *Device) RemovePassiveGrabber(ev *PointerEvent, point *EventPoint, grabber Grabber) bool {
	if !d.comparableGrabber(grabber) {
		return false
	}
	e, ok := d.persistentPoint(point)
	if !ok {
		return false
	}
	i := e.passiveIndex(grabber)
	if i < 0 {
		return false
	}
	logger.Debugf("%s point %d %s: removing passive grabber %v", d.name, point.ID(), point.State(), grabber)
	d.emitGrabChanged(grabber, UngrabPassive, ev, point)
	e.removePassiveAt(i)
	return true
}

// ClearPassiveGrabbers removes every passive grabber of point, telling each
// UngrabPassive.
func (d *Device) ClearPassiveGrabbers(ev *PointerEvent, point *EventPoint) {
	e, ok := d.persistentPoint(point)
	if !ok {
		return
	}
	if len(e.passive) == 0 {
		return
	}
	logger.Debugf("%s point %d %s: clearing %d passive grabbers", d.name, point.ID(), point.State(), len(e.passive))
	for _, g := range e.passive {
		d.emitGrabChanged(g, UngrabPassive, ev, point)
	}
	e.passive = nil
	e.passiveContexts = nil
}

// RemoveGrabberEverywhere drops every grab grabber holds on this device's
// points. It is used when a receiver goes away outside normal delivery.
// With cancel set the grabber is told CancelGrabExclusive/CancelGrabPassive,
// otherwise UngrabExclusive/UngrabPassive.
func (d *Device) RemoveGrabberEverywhere(grabber Grabber, cancel bool) {
	if d.points == nil || grabber == nil || !d.comparableGrabber(grabber) {
		return
	}
	exclusiveTr, passiveTr := UngrabExclusive, UngrabPassive
	if cancel {
		exclusiveTr, passiveTr = CancelGrabExclusive, CancelGrabPassive
	}
	d.points.Range(func(e *PointEntry) bool {
		if e.exclusive == grabber {
			logger.Debugf("%s point %d %s @ %v: grab %v -> nil",
				d.name, e.point.ID(), e.point.State(), e.point.ScenePosition(), grabber)
			e.exclusive = nil
			e.exclusiveContext = nil
			d.emitGrabChanged(grabber, exclusiveTr, nil, &e.point)
		}
		if i := e.passiveIndex(grabber); i >= 0 {
			logger.Debugf("%s point %d %s: removing passive grabber %v", d.name, e.point.ID(), e.point.State(), grabber)
			e.removePassiveAt(i)
			d.emitGrabChanged(grabber, passiveTr, nil, &e.point)
		}
		return true
	})
}

// FirstPointExclusiveGrabber returns the exclusive grabber of the lowest
// numbered active point, or nil.
func (d *Device) FirstPointExclusiveGrabber() Grabber {
	if d.points == nil {
		return nil
	}
	var g Grabber
	d.points.Range(func(e *PointEntry) bool {
		g = e.exclusive
		return false
	})
	return g
}

// SendTouchCancel delivers a cancel event to every exclusive grabber of this
// device's points and then clears all grabs. An event without points is
// filled with the grabbed points first, since receivers need to see which
// points went away.
func (d *Device) SendTouchCancel(ev *PointerEvent, deliver func(Grabber, *PointerEvent)) {
	if d.points == nil {
		return
	}
	if len(ev.points) == 0 {
		d.points.Range(func(e *PointEntry) bool {
			if e.exclusive != nil {
				ev.points = append(ev.points, e.point.Clone())
			}
			return true
		})
	}
	d.points.Range(func(e *PointEntry) bool {
		if e.exclusive != nil && deliver != nil {
			deliver(e.exclusive, ev)
		}
		d.SetExclusiveGrabber(ev, &e.point, nil)
		d.ClearPassiveGrabbers(ev, &e.point)
		return true
	})
}
