package input

import (
	"fmt"

	"github.com/phinze/touchpoint/internal/geom"
)

// EventType identifies a delivered pointer event.
type EventType uint8

const (
	EventNone EventType = iota
	MouseButtonPress
	MouseButtonRelease
	MouseButtonDoubleClick
	MouseMove
	Wheel
	TouchBegin
	TouchUpdate
	TouchEnd
	TouchCancel
	TabletPress
	TabletMove
	TabletRelease
	TabletEnterProximity
	TabletLeaveProximity
	NativeGesture
)

var eventTypeNames = map[EventType]string{
	EventNone:              "None",
	MouseButtonPress:       "MouseButtonPress",
	MouseButtonRelease:     "MouseButtonRelease",
	MouseButtonDoubleClick: "MouseButtonDoubleClick",
	MouseMove:              "MouseMove",
	Wheel:                  "Wheel",
	TouchBegin:             "TouchBegin",
	TouchUpdate:            "TouchUpdate",
	TouchEnd:               "TouchEnd",
	TouchCancel:            "TouchCancel",
	TabletPress:            "TabletPress",
	TabletMove:             "TabletMove",
	TabletRelease:          "TabletRelease",
	TabletEnterProximity:   "TabletEnterProximity",
	TabletLeaveProximity:   "TabletLeaveProximity",
	NativeGesture:          "NativeGesture",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("EventType(%d)", t)
}

// Modifiers is a bitset of held keyboard modifiers.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModControl
	ModAlt
	ModMeta
	ModKeypad

	ModNone Modifiers = 0
)

// MouseButton identifies a single button. MouseButtons is a set of them.
type MouseButton uint8

const (
	NoButton      MouseButton = 0
	LeftButton    MouseButton = 1 << 0
	RightButton   MouseButton = 1 << 1
	MiddleButton  MouseButton = 1 << 2
	BackButton    MouseButton = 1 << 3
	ForwardButton MouseButton = 1 << 4
)

// MouseButtons is a set of pressed buttons.
type MouseButtons = MouseButton

// ScrollPhase tracks the phase of a scroll gesture on devices that report
// one.
type ScrollPhase uint8

const (
	NoScrollPhase ScrollPhase = iota
	ScrollBegin
	ScrollUpdate
	ScrollEnd
	ScrollMomentum
)

// GestureKind identifies a native gesture.
type GestureKind uint8

const (
	GestureBegin GestureKind = iota + 1
	GestureEnd
	GesturePan
	GestureZoom
	GestureSmartZoom
	GestureRotate
	GestureSwipe
)

// PointerEvent is the event delivered to receivers for mouse, touch,
// tablet, wheel and gesture input. Its points are clones of the persistent
// points in the device's active point table.
type PointerEvent struct {
	typ       EventType
	timestamp uint64
	device    *Device
	modifiers Modifiers
	points    []EventPoint
	accepted  bool

	// Mouse and tablet.
	Button  MouseButton
	Buttons MouseButtons

	// Wheel.
	PixelDelta geom.Vec2
	AngleDelta geom.Vec2
	Phase      ScrollPhase
	Inverted   bool

	// Native gestures.
	Gesture      GestureKind
	GestureValue float64
	FingerCount  int
}

// NewPointerEvent builds an event. The event takes ownership of the given
// points; pass clones of persistent points.
func NewPointerEvent(typ EventType, dev *Device, timestamp uint64, mods Modifiers, points ...EventPoint) *PointerEvent {
	return &PointerEvent{
		typ:       typ,
		timestamp: timestamp,
		device:    dev,
		modifiers: mods,
		points:    points,
	}
}

// Type returns the event type.
func (e *PointerEvent) Type() EventType { return e.typ }

// Timestamp returns the event time in milliseconds.
func (e *PointerEvent) Timestamp() uint64 { return e.timestamp }

// Device returns the originating device.
func (e *PointerEvent) Device() *Device { return e.device }

// Modifiers returns the held keyboard modifiers.
func (e *PointerEvent) Modifiers() Modifiers { return e.modifiers }

// PointCount returns the number of points.
func (e *PointerEvent) PointCount() int { return len(e.points) }

// Point returns the i-th point.
func (e *PointerEvent) Point(i int) *EventPoint { return &e.points[i] }

// Points returns the event's points. The slice is owned by the event.
func (e *PointerEvent) Points() []EventPoint { return e.points }

// PointByID returns the point with the given id, or nil.
func (e *PointerEvent) PointByID(id int) *EventPoint {
	for i := range e.points {
		if e.points[i].ID() == id {
			return &e.points[i]
		}
	}
	return nil
}

// AddPoint appends a point to the event.
func (e *PointerEvent) AddPoint(p EventPoint) {
	e.points = append(e.points, p)
}

// IsAccepted reports whether the event was accepted.
func (e *PointerEvent) IsAccepted() bool { return e.accepted }

// SetAccepted accepts or rejects the event and all of its points.
func (e *PointerEvent) SetAccepted(accepted bool) {
	e.accepted = accepted
	for i := range e.points {
		e.points[i].SetAccepted(accepted)
	}
}

// Accept is SetAccepted(true).
func (e *PointerEvent) Accept() { e.SetAccepted(true) }

// Ignore is SetAccepted(false).
func (e *PointerEvent) Ignore() { e.SetAccepted(false) }

// IsBeginEvent reports whether the event starts an interaction: every
// point is pressed.
func (e *PointerEvent) IsBeginEvent() bool {
	switch e.typ {
	case MouseButtonPress, MouseButtonDoubleClick, TabletPress, TouchBegin:
		return true
	case TouchUpdate:
		return e.allInState(StatePressed)
	}
	return false
}

// IsUpdateEvent reports whether the event continues an interaction.
func (e *PointerEvent) IsUpdateEvent() bool {
	switch e.typ {
	case MouseMove, TabletMove, TouchUpdate:
		return !e.allInState(StatePressed) && !e.allInState(StateReleased)
	}
	return false
}

// IsEndEvent reports whether the event ends an interaction: every point is
// released.
func (e *PointerEvent) IsEndEvent() bool {
	switch e.typ {
	case MouseButtonRelease, TabletRelease, TouchEnd:
		return true
	case TouchUpdate:
		return e.allInState(StateReleased)
	}
	return false
}

func (e *PointerEvent) allInState(s State) bool {
	if len(e.points) == 0 {
		return false
	}
	for i := range e.points {
		if e.points[i].State() != s {
			return false
		}
	}
	return true
}

// AllPointsGrabbed reports whether every point has an exclusive grabber or
// at least one passive grabber.
func (e *PointerEvent) AllPointsGrabbed() bool {
	if e.device == nil || e.device.points == nil {
		return false
	}
	for i := range e.points {
		entry, ok := e.device.points.QueryPointByID(e.points[i].ID())
		if !ok || !entry.IsGrabbed() {
			return false
		}
	}
	return true
}

// AllPointsAccepted reports whether every point is accepted.
func (e *PointerEvent) AllPointsAccepted() bool {
	for i := range e.points {
		if !e.points[i].IsAccepted() {
			return false
		}
	}
	return true
}

// ExclusiveGrabber returns the exclusive grabber of point.
func (e *PointerEvent) ExclusiveGrabber(point *EventPoint) Grabber {
	if e.device == nil {
		return nil
	}
	return e.device.ExclusiveGrabber(point)
}

// SetExclusiveGrabber grabs point for grabber, or releases it when grabber
// is nil.
func (e *PointerEvent) SetExclusiveGrabber(point *EventPoint, grabber Grabber) {
	if e.device == nil {
		return
	}
	e.device.SetExclusiveGrabber(e, point, grabber)
}

// PassiveGrabbers returns the passive grabbers of point.
func (e *PointerEvent) PassiveGrabbers(point *EventPoint) []Grabber {
	if e.device == nil {
		return nil
	}
	return e.device.PassiveGrabbers(point)
}

// AddPassiveGrabber adds a passive grabber to point.
func (e *PointerEvent) AddPassiveGrabber(point *EventPoint, grabber Grabber) bool {
	if e.device == nil {
		return false
	}
	return e.device.AddPassiveGrabber(e, point, grabber)
}

// RemovePassiveGrabber removes a passive grabber from point.
func (e *PointerEvent) RemovePassiveGrabber(point *EventPoint, grabber Grabber) bool {
	if e.device == nil {
		return false
	}
	return e.device.RemovePassiveGrabber(e, point, grabber)
}

// ClearPassiveGrabbers removes all passive grabbers of point.
func (e *PointerEvent) ClearPassiveGrabbers(point *EventPoint) {
	if e.device == nil {
		return
	}
	e.device.ClearPassiveGrabbers(e, point)
}

// WithPoints returns a shallow copy of e restricted to the given points,
// used to deliver a subset of a multi-point event to one receiver.
func (e *PointerEvent) WithPoints(points []EventPoint) *PointerEvent {
	c := *e
	c.points = points
	c.accepted = false
	return &c
}

func (e *PointerEvent) String() string {
	return fmt.Sprintf("PointerEvent(%s ts=%d dev=%v points=%d accepted=%t)",
		e.typ, e.timestamp, e.device, len(e.points), e.accepted)
}

// Key identifies a keyboard key. Values below 0x110000 are Unicode code
// points; named keys live above that range.
type Key uint32

const (
	KeyEscape Key = 0x01000000 + iota
	KeyTab
	KeyBackspace
	KeyReturn
	KeyDelete
	KeyLeft
	KeyUp
	KeyRight
	KeyDown
	KeyShift
	KeyControl
	KeyAlt
	KeyMeta
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
)

// KeyEvent is delivered to the focus receiver of a window.
type KeyEvent struct {
	Pressed    bool
	Key        Key
	Text       string
	Modifiers  Modifiers
	AutoRepeat bool
	Count      int
	Timestamp  uint64
	Device     *Device

	accepted bool
}

// IsAccepted reports whether a receiver accepted the event.
func (e *KeyEvent) IsAccepted() bool { return e.accepted }

// SetAccepted accepts or rejects the event.
func (e *KeyEvent) SetAccepted(accepted bool) { e.accepted = accepted }
