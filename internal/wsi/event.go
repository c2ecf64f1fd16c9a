// Package wsi defines the window-system events producers hand to the
// delivery coordinator and the thread-safe queue that carries them to the
// consumer goroutine.
package wsi

import (
	"fmt"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
)

// Kind discriminates queued events. Kinds that carry user input have the
// UserInput bit set.
type Kind uint16

// UserInput marks kinds that originate from an input device.
const UserInput Kind = 0x100

const (
	// KindClose asks for a window to be closed.
	KindClose Kind = iota + 1
	// KindEnter reports the pointer entering a window.
	KindEnter
	// KindLeave reports the pointer leaving a window.
	KindLeave
	// KindExpose reports a window region that needs repainting.
	KindExpose
	// KindWindowStateChanged reports a window being minimized, maximized, etc.
	KindWindowStateChanged
	// KindApplicationStateChanged reports the application gaining or losing
	// activation.
	KindApplicationStateChanged
	// KindFlush is the marker a cross-goroutine flush waits on.
	KindFlush
)

const (
	// KindMouse carries a mouse press, release or move.
	KindMouse Kind = UserInput | (iota + 1)
	// KindWheel carries a scroll.
	KindWheel
	// KindKey carries a key press or release.
	KindKey
	// KindTouch carries a touch frame.
	KindTouch
	// KindTablet carries a stylus frame.
	KindTablet
	// KindTabletEnterProximity reports a tablet tool coming into range.
	KindTabletEnterProximity
	// KindTabletLeaveProximity reports a tablet tool going out of range.
	KindTabletLeaveProximity
	// KindGesture carries a native gesture.
	KindGesture
	// KindDeviceRemoved retires a device once the input queued ahead of it
	// has been processed. It is ordered with user input.
	KindDeviceRemoved
)

var kindNames = map[Kind]string{
	KindClose:                   "Close",
	KindEnter:                   "Enter",
	KindLeave:                   "Leave",
	KindExpose:                  "Expose",
	KindWindowStateChanged:      "WindowStateChanged",
	KindApplicationStateChanged: "ApplicationStateChanged",
	KindFlush:                   "Flush",
	KindMouse:                   "Mouse",
	KindWheel:                   "Wheel",
	KindKey:                     "Key",
	KindTouch:                   "Touch",
	KindTablet:                  "Tablet",
	KindTabletEnterProximity:    "TabletEnterProximity",
	KindTabletLeaveProximity:    "TabletLeaveProximity",
	KindGesture:                 "Gesture",
	KindDeviceRemoved:           "DeviceRemoved",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%#x)", uint16(k))
}

// IsUserInput reports whether k carries device input.
func (k Kind) IsUserInput() bool {
	return k&UserInput != 0
}

// ProcessFlags control how the consumer drains the queue.
type ProcessFlags uint8

const (
	// AllEvents processes everything queued.
	AllEvents ProcessFlags = 0
	// ExcludeUserInput leaves input events queued and only processes
	// window-system events.
	ExcludeUserInput ProcessFlags = 1 << 0
)

// WindowID identifies a target window. NoWindow means the event has no
// target.
type WindowID uint64

// NoWindow is the zero WindowID.
const NoWindow WindowID = 0

// Event is the envelope of a queued window-system event.
type Event struct {
	// Seq is assigned by the queue on insertion and increases monotonically.
	Seq uint64
	// Window is the target window, or NoWindow.
	Window WindowID
	// Synthetic marks events generated by the application rather than a
	// device.
	Synthetic bool
	// Accepted is set by the consumer during processing.
	Accepted bool

	Payload Payload
}

// NewEvent wraps a payload for queueing.
func NewEvent(window WindowID, p Payload) *Event {
	return &Event{Window: window, Payload: p}
}

// Kind returns the payload's kind.
func (e *Event) Kind() Kind {
	if e.Payload == nil {
		return 0
	}
	return e.Payload.Kind()
}

func (e *Event) String() string {
	return fmt.Sprintf("wsi.Event(#%d %s window=%d accepted=%t)", e.Seq, e.Kind(), e.Window, e.Accepted)
}

// Payload is the kind-specific part of an event. The set of payloads is
// closed; switch on the concrete type.
type Payload interface {
	Kind() Kind
	isPayload()
}

// InputEnvelope carries the fields shared by every input payload.
type InputEnvelope struct {
	// Timestamp in milliseconds.
	Timestamp uint64
	// Device that produced the event. Nil means the seat's primary device.
	Device    *input.Device
	Modifiers input.Modifiers
}

// Envelope returns the shared input fields.
func (e *InputEnvelope) Envelope() *InputEnvelope { return e }

// InputPayload is implemented by every payload that carries device input.
type InputPayload interface {
	Payload
	Envelope() *InputEnvelope
}

// Mouse is a press, release or move of a mouse-like device.
type Mouse struct {
	InputEnvelope
	// Type is MouseButtonPress, MouseButtonRelease or MouseMove.
	Type    input.EventType
	Local   geom.Vec2
	Global  geom.Vec2
	Button  input.MouseButton
	Buttons input.MouseButtons
}

// Wheel is a scroll.
type Wheel struct {
	InputEnvelope
	Local      geom.Vec2
	Global     geom.Vec2
	PixelDelta geom.Vec2
	AngleDelta geom.Vec2
	Phase      input.ScrollPhase
	Inverted   bool
}

// Key is a key press or release.
type Key struct {
	InputEnvelope
	Pressed    bool
	Key        input.Key
	Text       string
	AutoRepeat bool
	Count      int
}

// TouchPoint is one contact as reported by the platform.
type TouchPoint struct {
	ID       int
	UniqueID input.UniqueID
	State    input.State
	// Area is the contact ellipse's bounding box in global coordinates. Its
	// center is the position and its size the ellipse diameters.
	Area           geom.Rect
	NormalPosition geom.Vec2
	Pressure       float64
	Rotation       float64
	Velocity       geom.Vec2
}

// Position returns the center of the contact area.
func (p TouchPoint) Position() geom.Vec2 {
	return p.Area.Center()
}

// Touch is one frame of a multi-touch device.
type Touch struct {
	InputEnvelope
	// Type is TouchBegin, TouchUpdate, TouchEnd or TouchCancel. Producers
	// may leave it at EventNone and let the consumer derive it from the
	// point states.
	Type   input.EventType
	Points []TouchPoint
}

// Tablet is one frame of a stylus.
type Tablet struct {
	InputEnvelope
	Local              geom.Vec2
	Global             geom.Vec2
	Buttons            input.MouseButtons
	Pressure           float64
	XTilt              float64
	YTilt              float64
	TangentialPressure float64
	Rotation           float64
	Z                  float64
}

// TabletProximity reports a tablet tool entering or leaving range.
type TabletProximity struct {
	InputEnvelope
	Enter bool
}

// Gesture is a native gesture recognized by the platform.
type Gesture struct {
	InputEnvelope
	Gesture     input.GestureKind
	Value       float64
	Local       geom.Vec2
	Global      geom.Vec2
	FingerCount int
}

// Close asks for the target window to close.
type Close struct{}

// Enter reports the pointer entering the target window.
type Enter struct {
	Local  geom.Vec2
	Global geom.Vec2
}

// Leave reports the pointer leaving the target window.
type Leave struct{}

// Expose reports a region of the target window that must be repainted.
type Expose struct {
	Region geom.Rect
}

// WindowState is the visibility state of a window.
type WindowState uint8

const (
	WindowNormal WindowState = iota
	WindowMinimized
	WindowMaximized
	WindowFullScreen
)

// WindowStateChanged reports a window state transition.
type WindowStateChanged struct {
	Old, New WindowState
}

// ApplicationState is the activation state of the application.
type ApplicationState uint8

const (
	ApplicationSuspended ApplicationState = iota
	ApplicationHidden
	ApplicationInactive
	ApplicationActive
)

// ApplicationStateChanged reports an activation change.
type ApplicationStateChanged struct {
	State ApplicationState
}

// Flush is the marker a producer appends when it needs to wait for the
// consumer to drain the queue. The consumer closes Done once it has
// processed everything queued before the marker.
type Flush struct {
	Flags ProcessFlags
	Done  chan struct{}
}

// DeviceRemoved hands an unregistered device to the consumer, which drops
// its active points.
type DeviceRemoved struct {
	Device *input.Device
}

// NewFlush creates a flush marker with an open Done channel.
func NewFlush(flags ProcessFlags) *Flush {
	return &Flush{Flags: flags, Done: make(chan struct{})}
}

func (*Mouse) Kind() Kind              { return KindMouse }
func (*Wheel) Kind() Kind              { return KindWheel }
func (*Key) Kind() Kind                { return KindKey }
func (*Touch) Kind() Kind              { return KindTouch }
func (*Tablet) Kind() Kind             { return KindTablet }
func (*Gesture) Kind() Kind            { return KindGesture }
func (*Close) Kind() Kind              { return KindClose }
func (*Enter) Kind() Kind              { return KindEnter }
func (*Leave) Kind() Kind              { return KindLeave }
func (*Expose) Kind() Kind             { return KindExpose }
func (*WindowStateChanged) Kind() Kind { return KindWindowStateChanged }
func (*Flush) Kind() Kind              { return KindFlush }
func (*DeviceRemoved) Kind() Kind      { return KindDeviceRemoved }

func (*ApplicationStateChanged) Kind() Kind { return KindApplicationStateChanged }

func (p *TabletProximity) Kind() Kind {
	if p.Enter {
		return KindTabletEnterProximity
	}
	return KindTabletLeaveProximity
}

func (*Mouse) isPayload()                   {}
func (*Wheel) isPayload()                   {}
func (*Key) isPayload()                     {}
func (*Touch) isPayload()                   {}
func (*Tablet) isPayload()                  {}
func (*TabletProximity) isPayload()         {}
func (*Gesture) isPayload()                 {}
func (*Close) isPayload()                   {}
func (*Enter) isPayload()                   {}
func (*Leave) isPayload()                   {}
func (*Expose) isPayload()                  {}
func (*WindowStateChanged) isPayload()      {}
func (*ApplicationStateChanged) isPayload() {}
func (*Flush) isPayload()                   {}
func (*DeviceRemoved) isPayload()           {}
