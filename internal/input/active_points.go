package input

import "sort"

// Grabber is a receiver that can own a point. Grabbers are matched with ==,
// so the dynamic value must be comparable; receivers normally use a pointer
// to themselves. Grab operations refuse a grabber holding a map, slice or
// func, with a warning.
type Grabber any

// PointEntry is a persistent point together with its grab state.
type PointEntry struct {
	point EventPoint

	exclusive        Grabber
	exclusiveContext any

	passive         []Grabber
	passiveContexts []any
}

// Point returns the canonical point. The returned pointer stays valid until
// the entry is removed; callers that keep the point past that must Clone it.
func (e *PointEntry) Point() *EventPoint {
	return &e.point
}

// ExclusiveGrabber returns the current exclusive grabber, or nil.
func (e *PointEntry) ExclusiveGrabber() Grabber {
	return e.exclusive
}

// ExclusiveGrabberContext returns the context recorded with the exclusive
// grab.
func (e *PointEntry) ExclusiveGrabberContext() any {
	return e.exclusiveContext
}

// SetExclusiveGrabberContext records an opaque context alongside the
// exclusive grab, for example the item on whose behalf a handler grabbed.
func (e *PointEntry) SetExclusiveGrabberContext(ctx any) {
	e.exclusiveContext = ctx
}

// PassiveGrabbers returns a copy of the passive grabbers in the order they
// were added.
func (e *PointEntry) PassiveGrabbers() []Grabber {
	out := make([]Grabber, len(e.passive))
	copy(out, e.passive)
	return out
}

// PassiveGrabberContext returns the context stored for a passive grabber.
func (e *PointEntry) PassiveGrabberContext(g Grabber) any {
	i := e.passiveIndex(g)
	if i < 0 || i >= len(e.passiveContexts) {
		return nil
	}
	return e.passiveContexts[i]
}

// IsGrabbed reports whether anyone holds the point.
func (e *PointEntry) IsGrabbed() bool {
	return e.exclusive != nil || len(e.passive) > 0
}

func (e *PointEntry) passiveIndex(g Grabber) int {
	for i, p := range e.passive {
		if p == g {
			return i
		}
	}
	return -1
}

func (e *PointEntry) removePassiveAt(i int) {
	e.passive = append(e.passive[:i], e.passive[i+1:]...)
	if len(e.passiveContexts) > i {
		e.passiveContexts = append(e.passiveContexts[:i], e.passiveContexts[i+1:]...)
	}
}

// ActivePointTable maps point ids to persistent points for one pointing
// device. It is owned by the consumer goroutine and is not locked.
type ActivePointTable struct {
	device  *Device
	entries map[int]*PointEntry
}

func newActivePointTable(dev *Device) *ActivePointTable {
	return &ActivePointTable{
		device:  dev,
		entries: make(map[int]*PointEntry),
	}
}

// PointByID returns the entry for id, creating it if needed. A new entry's
// point carries the id and the device.
func (t *ActivePointTable) PointByID(id int) *PointEntry {
	if e, ok := t.entries[id]; ok {
		return e
	}
	e := &PointEntry{point: EventPoint{d: newPointData(id, t.device)}}
	t.entries[id] = e
	return e
}

// QueryPointByID returns the entry for id without creating one.
func (t *ActivePointTable) QueryPointByID(id int) (*PointEntry, bool) {
	e, ok := t.entries[id]
	return e, ok
}

// RemovePointByID drops the entry for id. It reports whether the entry
// existed.
func (t *ActivePointTable) RemovePointByID(id int) bool {
	if _, ok := t.entries[id]; !ok {
		return false
	}
	delete(t.entries, id)
	return true
}

// Len returns the number of active points.
func (t *ActivePointTable) Len() int {
	return len(t.entries)
}

// IDs returns the ids of all active points in ascending order.
func (t *ActivePointTable) IDs() []int {
	ids := make([]int, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Range calls fn for each entry in ascending id order until fn returns
// false.
func (t *ActivePointTable) Range(fn func(*PointEntry) bool) {
	for _, id := range t.IDs() {
		e, ok := t.entries[id]
		if !ok {
			continue
		}
		if !fn(e) {
			return
		}
	}
}

// Clear drops every entry without emitting grab notifications.
func (t *ActivePointTable) Clear() {
	clear(t.entries)
}
