package input

import (
	"fmt"
	"sync/atomic"
	"weak"

	"github.com/phinze/touchpoint/internal/geom"
)

// State is the phase of a contact point within a gesture.
//
//	Unknown -> Pressed -> (Updated | Stationary)* -> Released
type State uint8

const (
	StateUnknown State = iota
	StateStationary
	StatePressed
	StateUpdated
	StateReleased
)

var stateNames = [...]string{"Unknown", "Stationary", "Pressed", "Updated", "Released"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// IsActive reports whether s belongs to the pressed-and-held superstate in
// which grabs are meaningful.
func (s State) IsActive() bool {
	return s == StatePressed || s == StateUpdated || s == StateStationary
}

// unsetPressure marks a pressure that has not been assigned yet.
const unsetPressure = -1

// velocityGain weights the newest velocity sample against the running
// estimate in SetTimestamp.
const velocityGain = 0.7

// pointData is the shared storage behind EventPoint handles.
type pointData struct {
	refs atomic.Int32

	device   weak.Pointer[Device]
	id       int
	uniqueID UniqueID
	state    State
	accepted bool

	pos       geom.Vec2
	scenePos  geom.Vec2
	globalPos geom.Vec2

	// Historical positions, kept in global coordinates. Their local and
	// scene counterparts are derived from the current position on access.
	globalPressPos geom.Vec2
	globalGrabPos  geom.Vec2
	globalLastPos  geom.Vec2

	pressure         float64
	rotation         float64
	ellipseDiameters geom.Vec2
	velocity         geom.Vec2

	timestamp      uint64
	lastTimestamp  uint64
	pressTimestamp uint64
}

func newPointData(id int, dev *Device) *pointData {
	d := &pointData{
		id:       id,
		uniqueID: NoUniqueID,
		pressure: unsetPressure,
	}
	if dev != nil {
		d.device = weak.Make(dev)
	}
	d.refs.Store(1)
	return d
}

// clone copies every field except the reference count.
func (d *pointData) clone() *pointData {
	c := &pointData{
		device:           d.device,
		id:               d.id,
		uniqueID:         d.uniqueID,
		state:            d.state,
		accepted:         d.accepted,
		pos:              d.pos,
		scenePos:         d.scenePos,
		globalPos:        d.globalPos,
		globalPressPos:   d.globalPressPos,
		globalGrabPos:    d.globalGrabPos,
		globalLastPos:    d.globalLastPos,
		pressure:         d.pressure,
		rotation:         d.rotation,
		ellipseDiameters: d.ellipseDiameters,
		velocity:         d.velocity,
		timestamp:        d.timestamp,
		lastTimestamp:    d.lastTimestamp,
		pressTimestamp:   d.pressTimestamp,
	}
	c.refs.Store(1)
	return c
}

// EventPoint describes one contact (finger, mouse cursor, stylus tip) at a
// moment in time.
//
// An EventPoint is a handle over reference-counted storage. Clone shares
// that storage; every mutation detaches first, so a clone never observes
// changes made through another handle. A plain struct copy does not take a
// reference and must be treated as a read-only view: use Clone to keep a
// point around.
//
// The zero value is an invalid point with ID -1.
type EventPoint struct {
	d *pointData
}

// NewEventPoint creates a point with the given id and state at the given
// positions.
func NewEventPoint(timestamp uint64, id int, state State, position, scenePosition, globalPosition geom.Vec2) EventPoint {
	d := newPointData(id, nil)
	d.timestamp = timestamp
	d.state = state
	d.pos = position
	d.scenePos = scenePosition
	d.globalPos = globalPosition
	switch state {
	case StatePressed:
		d.pressTimestamp = timestamp
		d.globalPressPos = globalPosition
		d.globalLastPos = globalPosition
	case StateReleased:
		d.pressure = 0
	}
	return EventPoint{d: d}
}

// Clone returns a new handle sharing p's storage.
func (p *EventPoint) Clone() EventPoint {
	if p.d != nil {
		p.d.refs.Add(1)
	}
	return EventPoint{d: p.d}
}

// Detach makes sure p owns its storage exclusively. An invalid point gets a
// fresh, empty storage block.
func Detach(p *EventPoint) {
	if p.d == nil {
		p.d = newPointData(-1, nil)
		return
	}
	if p.d.refs.Load() == 1 {
		return
	}
	c := p.d.clone()
	p.d.refs.Add(-1)
	p.d = c
}

// SharesStorageWith reports whether p and o are handles over the same
// storage.
func (p *EventPoint) SharesStorageWith(o *EventPoint) bool {
	return p.d != nil && p.d == o.d
}

// IsValid reports whether p refers to a point at all.
func (p *EventPoint) IsValid() bool {
	return p.d != nil && p.d.id >= 0
}

// ID returns the point id, or -1 for an invalid point.
func (p *EventPoint) ID() int {
	if p.d == nil {
		return -1
	}
	return p.d.id
}

// Device returns the device that produced the point, or nil when it has
// been collected or was never set.
func (p *EventPoint) Device() *Device {
	if p.d == nil {
		return nil
	}
	return p.d.device.Value()
}

// UniqueID returns the unique id of the tool, or NoUniqueID.
func (p *EventPoint) UniqueID() UniqueID {
	if p.d == nil {
		return NoUniqueID
	}
	return p.d.uniqueID
}

// State returns the current state.
func (p *EventPoint) State() State {
	if p.d == nil {
		return StateUnknown
	}
	return p.d.state
}

// IsAccepted reports whether a receiver accepted the point.
func (p *EventPoint) IsAccepted() bool {
	return p.d != nil && p.d.accepted
}

// Position returns the position in the receiver's coordinates.
func (p *EventPoint) Position() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.pos
}

// ScenePosition returns the position in scene (window) coordinates.
func (p *EventPoint) ScenePosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.scenePos
}

// GlobalPosition returns the position in global coordinates.
func (p *EventPoint) GlobalPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.globalPos
}

// relative maps a stored global position into the space in which current is
// the point's present position.
func (p *EventPoint) relative(storedGlobal, current geom.Vec2) geom.Vec2 {
	return storedGlobal.Sub(p.d.globalPos).Add(current)
}

// PressPosition returns where the point was pressed, in receiver
// coordinates.
func (p *EventPoint) PressPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalPressPos, p.d.pos)
}

// ScenePressPosition returns where the point was pressed, in scene
// coordinates.
func (p *EventPoint) ScenePressPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalPressPos, p.d.scenePos)
}

// GlobalPressPosition returns where the point was pressed, in global
// coordinates.
func (p *EventPoint) GlobalPressPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.globalPressPos
}

// GrabPosition returns where the point was when its exclusive grabber last
// changed, in receiver coordinates.
func (p *EventPoint) GrabPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalGrabPos, p.d.pos)
}

// SceneGrabPosition is GrabPosition in scene coordinates.
func (p *EventPoint) SceneGrabPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalGrabPos, p.d.scenePos)
}

// GlobalGrabPosition is GrabPosition in global coordinates.
func (p *EventPoint) GlobalGrabPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.globalGrabPos
}

// LastPosition returns the position from the previous frame, in receiver
// coordinates.
func (p *EventPoint) LastPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalLastPos, p.d.pos)
}

// SceneLastPosition is LastPosition in scene coordinates.
func (p *EventPoint) SceneLastPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.relative(p.d.globalLastPos, p.d.scenePos)
}

// GlobalLastPosition is LastPosition in global coordinates.
func (p *EventPoint) GlobalLastPosition() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.globalLastPos
}

// NormalizedPosition returns the global position relative to the device's
// available geometry, in [0,1]. It is zero when the device has no geometry.
func (p *EventPoint) NormalizedPosition() geom.Vec2 {
	dev := p.Device()
	if dev == nil {
		return geom.Vec2{}
	}
	g := dev.Geometry()
	if g.Empty() {
		return geom.Vec2{}
	}
	rel := p.GlobalPosition().Sub(g.Min)
	size := g.Size()
	return geom.V(rel.X/size.X, rel.Y/size.Y)
}

// Pressure returns the pressure in [0,1]. It is -1 until the first Pressed,
// Updated or Released transition assigns a value.
func (p *EventPoint) Pressure() float64 {
	if p.d == nil {
		return unsetPressure
	}
	return p.d.pressure
}

// Rotation returns the rotation in degrees.
func (p *EventPoint) Rotation() float64 {
	if p.d == nil {
		return 0
	}
	return p.d.rotation
}

// EllipseDiameters returns the size of the contact area.
func (p *EventPoint) EllipseDiameters() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.ellipseDiameters
}

// Velocity returns the velocity in pixels per second.
func (p *EventPoint) Velocity() geom.Vec2 {
	if p.d == nil {
		return geom.Vec2{}
	}
	return p.d.velocity
}

// Timestamp returns the time of the current frame, in milliseconds.
func (p *EventPoint) Timestamp() uint64 {
	if p.d == nil {
		return 0
	}
	return p.d.timestamp
}

// LastTimestamp returns the time of the previous frame.
func (p *EventPoint) LastTimestamp() uint64 {
	if p.d == nil {
		return 0
	}
	return p.d.lastTimestamp
}

// PressTimestamp returns the time of the press.
func (p *EventPoint) PressTimestamp() uint64 {
	if p.d == nil {
		return 0
	}
	return p.d.pressTimestamp
}

// TimeHeld returns how long the point has been pressed, in seconds.
func (p *EventPoint) TimeHeld() float64 {
	if p.d == nil || p.d.timestamp < p.d.pressTimestamp {
		return 0
	}
	return float64(p.d.timestamp-p.d.pressTimestamp) / 1000
}

func (p EventPoint) String() string {
	if p.d == nil {
		return "EventPoint(invalid)"
	}
	return fmt.Sprintf("EventPoint(id=%d %s pos=%v scene=%v global=%v pressure=%g vel=%v ts=%d)",
		p.d.id, p.d.state, p.d.pos, p.d.scenePos, p.d.globalPos, p.d.pressure, p.d.velocity, p.d.timestamp)
}

// Setters. Each detaches first.

// SetID sets the point id.
func (p *EventPoint) SetID(id int) {
	Detach(p)
	p.d.id = id
}

// SetDevice sets the producing device. The point only keeps a weak
// reference.
func (p *EventPoint) SetDevice(dev *Device) {
	Detach(p)
	if dev == nil {
		p.d.device = weak.Pointer[Device]{}
		return
	}
	p.d.device = weak.Make(dev)
}

// SetState sets the state.
func (p *EventPoint) SetState(s State) {
	Detach(p)
	p.d.state = s
}

// SetUniqueID sets the tool id.
func (p *EventPoint) SetUniqueID(u UniqueID) {
	Detach(p)
	p.d.uniqueID = u
}

// SetAccepted marks the point as accepted or rejected by a receiver.
func (p *EventPoint) SetAccepted(accepted bool) {
	Detach(p)
	p.d.accepted = accepted
}

// SetPosition sets the receiver-local position.
func (p *EventPoint) SetPosition(v geom.Vec2) {
	Detach(p)
	p.d.pos = v
}

// SetScenePosition sets the scene position.
func (p *EventPoint) SetScenePosition(v geom.Vec2) {
	Detach(p)
	p.d.scenePos = v
}

// SetGlobalPosition sets the global position.
func (p *EventPoint) SetGlobalPosition(v geom.Vec2) {
	Detach(p)
	p.d.globalPos = v
}

// SetGlobalPressPosition sets the press position in global coordinates.
func (p *EventPoint) SetGlobalPressPosition(v geom.Vec2) {
	Detach(p)
	p.d.globalPressPos = v
}

// SetGlobalGrabPosition sets the grab position in global coordinates.
func (p *EventPoint) SetGlobalGrabPosition(v geom.Vec2) {
	Detach(p)
	p.d.globalGrabPos = v
}

// SetGlobalLastPosition sets the previous-frame position in global
// coordinates.
func (p *EventPoint) SetGlobalLastPosition(v geom.Vec2) {
	Detach(p)
	p.d.globalLastPos = v
}

// SetPressure sets the pressure. Values outside [0,1] are clamped, except
// for the unset sentinel -1.
func (p *EventPoint) SetPressure(v float64) {
	Detach(p)
	if v != unsetPressure {
		v = min(max(v, 0), 1)
	}
	p.d.pressure = v
}

// SetRotation sets the rotation in degrees.
func (p *EventPoint) SetRotation(deg float64) {
	Detach(p)
	p.d.rotation = deg
}

// SetEllipseDiameters sets the contact area size.
func (p *EventPoint) SetEllipseDiameters(v geom.Vec2) {
	Detach(p)
	p.d.ellipseDiameters = v
}

// SetVelocity sets the velocity directly. Devices with the Velocity
// capability report it; for others SetTimestamp estimates it.
func (p *EventPoint) SetVelocity(v geom.Vec2) {
	Detach(p)
	p.d.velocity = v
}

// SetPressTimestamp sets the press time.
func (p *EventPoint) SetPressTimestamp(t uint64) {
	Detach(p)
	p.d.pressTimestamp = t
}
