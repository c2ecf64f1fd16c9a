// Package input models input devices, the contact points they report and the
// per-device bookkeeping of which receivers have grabbed which point.
package input

import (
	"fmt"
	"strings"
	"sync"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/logging"
)

var logger = logging.Child("[input]")

// DeviceKind identifies the physical class of an input device.
type DeviceKind uint8

const (
	DeviceUnknown DeviceKind = iota
	DeviceMouse
	DeviceTouchScreen
	DeviceTouchPad
	DeviceStylus
	DeviceAirbrush
	DevicePuck
	DeviceKeyboard
)

var deviceKindNames = map[DeviceKind]string{
	DeviceUnknown:     "unknown",
	DeviceMouse:       "mouse",
	DeviceTouchScreen: "touchscreen",
	DeviceTouchPad:    "touchpad",
	DeviceStylus:      "stylus",
	DeviceAirbrush:    "airbrush",
	DevicePuck:        "puck",
	DeviceKeyboard:    "keyboard",
}

func (k DeviceKind) String() string {
	if s, ok := deviceKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("DeviceKind(%d)", k)
}

// IsPointing reports whether devices of this kind report contact points.
func (k DeviceKind) IsPointing() bool {
	return k != DeviceKeyboard && k != DeviceUnknown
}

// IsTablet reports whether the kind is one of the tablet tool kinds.
func (k DeviceKind) IsTablet() bool {
	return k == DeviceStylus || k == DeviceAirbrush || k == DevicePuck
}

// ParseDeviceKind is the inverse of DeviceKind.String.
func ParseDeviceKind(s string) (DeviceKind, error) {
	for k, name := range deviceKindNames {
		if strings.EqualFold(name, s) {
			return k, nil
		}
	}
	return DeviceUnknown, fmt.Errorf("unknown device kind %q", s)
}

// PointerType distinguishes the tool at the end of a pointing device.
type PointerType uint8

const (
	PointerUnknown PointerType = iota
	PointerGeneric
	PointerFinger
	PointerPen
	PointerEraser
	PointerCursor
)

var pointerTypeNames = map[PointerType]string{
	PointerUnknown: "unknown",
	PointerGeneric: "generic",
	PointerFinger:  "finger",
	PointerPen:     "pen",
	PointerEraser:  "eraser",
	PointerCursor:  "cursor",
}

func (p PointerType) String() string {
	if s, ok := pointerTypeNames[p]; ok {
		return s
	}
	return fmt.Sprintf("PointerType(%d)", p)
}

// ParsePointerType is the inverse of PointerType.String.
func ParsePointerType(s string) (PointerType, error) {
	for p, name := range pointerTypeNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}
	return PointerUnknown, fmt.Errorf("unknown pointer type %q", s)
}

// Capability is a bitset of what a device reports.
type Capability uint32

const (
	CapPosition Capability = 1 << iota
	CapArea
	CapPressure
	CapVelocity
	CapNormalizedPosition
	CapMouseEmulation
	CapPixelScroll
	CapScroll
	CapHover
	CapRotation
	CapXTilt
	CapYTilt
	CapTangentialPressure
	CapZPosition

	CapNone Capability = 0
)

var capabilityNames = []struct {
	c    Capability
	name string
}{
	{CapPosition, "position"},
	{CapArea, "area"},
	{CapPressure, "pressure"},
	{CapVelocity, "velocity"},
	{CapNormalizedPosition, "normalized_position"},
	{CapMouseEmulation, "mouse_emulation"},
	{CapPixelScroll, "pixel_scroll"},
	{CapScroll, "scroll"},
	{CapHover, "hover"},
	{CapRotation, "rotation"},
	{CapXTilt, "xtilt"},
	{CapYTilt, "ytilt"},
	{CapTangentialPressure, "tangential_pressure"},
	{CapZPosition, "zposition"},
}

// Has reports whether all bits of o are set in c.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}

func (c Capability) String() string {
	var parts []string
	for _, n := range capabilityNames {
		if c.Has(n.c) {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// ParseCapabilities combines named capabilities into a bitset.
func ParseCapabilities(names []string) (Capability, error) {
	var c Capability
outer:
	for _, s := range names {
		for _, n := range capabilityNames {
			if strings.EqualFold(n.name, s) {
				c |= n.c
				continue outer
			}
		}
		return CapNone, fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// UniqueID identifies one physical tool (for example a specific stylus) across
// sessions. NoUniqueID means the device does not report one.
type UniqueID int64

const NoUniqueID UniqueID = -1

// IsValid reports whether u carries a real id.
func (u UniqueID) IsValid() bool {
	return u != NoUniqueID
}

// Device identifies a source of input. Pointing devices additionally own the
// table of active points and the grab-change observers.
//
// Device metadata is immutable after construction. The active point table
// must only be touched from the consumer goroutine.
type Device struct {
	name        string
	kind        DeviceKind
	pointerType PointerType
	caps        Capability
	systemID    int64
	seat        string
	maxPoints   int
	buttonCount int
	uniqueID    UniqueID
	parent      *Device
	geometry    geom.Rect

	points *ActivePointTable

	obsMu     sync.RWMutex
	observers []*grabObserver
	nextObsID int
}

// DeviceOption customizes a Device at construction.
type DeviceOption func(*Device)

// WithPointerType sets the pointer type.
func WithPointerType(p PointerType) DeviceOption {
	return func(d *Device) { d.pointerType = p }
}

// WithCapabilities sets the capability bitset.
func WithCapabilities(c Capability) DeviceOption {
	return func(d *Device) { d.caps = c }
}

// WithSeat sets the seat the device belongs to.
func WithSeat(seat string) DeviceOption {
	return func(d *Device) { d.seat = seat }
}

// WithMaxPoints sets the maximum number of simultaneous points.
func WithMaxPoints(n int) DeviceOption {
	return func(d *Device) { d.maxPoints = n }
}

// WithButtonCount sets the number of buttons.
func WithButtonCount(n int) DeviceOption {
	return func(d *Device) { d.buttonCount = n }
}

// WithUniqueID sets the tool's unique id.
func WithUniqueID(u UniqueID) DeviceOption {
	return func(d *Device) { d.uniqueID = u }
}

// WithParent makes d a logical child of parent (for example a stylus end
// belonging to a tablet).
func WithParent(parent *Device) DeviceOption {
	return func(d *Device) { d.parent = parent }
}

// WithGeometry sets the available virtual geometry in global coordinates,
// used to compute normalized positions.
func WithGeometry(r geom.Rect) DeviceOption {
	return func(d *Device) { d.geometry = r }
}

// NewDevice creates a device. Pointing kinds default to a generic pointer
// with one point and the Position capability.
func NewDevice(name string, systemID int64, kind DeviceKind, opts ...DeviceOption) *Device {
	d := &Device{
		name:     name,
		kind:     kind,
		systemID: systemID,
		uniqueID: NoUniqueID,
	}
	if kind.IsPointing() {
		d.pointerType = PointerGeneric
		d.caps = CapPosition
		d.maxPoints = 1
	}
	for _, opt := range opts {
		opt(d)
	}
	if kind.IsPointing() {
		d.points = newActivePointTable(d)
	}
	return d
}

// Name returns the human readable device name.
func (d *Device) Name() string { return d.name }

// Kind returns the device kind.
func (d *Device) Kind() DeviceKind { return d.kind }

// PointerType returns the pointer type of a pointing device.
func (d *Device) PointerType() PointerType { return d.pointerType }

// Capabilities returns the capability bitset.
func (d *Device) Capabilities() Capability { return d.caps }

// HasCapability reports whether the device has all capabilities in c.
func (d *Device) HasCapability(c Capability) bool { return d.caps.Has(c) }

// SystemID returns the platform id, unique within the process.
func (d *Device) SystemID() int64 { return d.systemID }

// Seat returns the seat name.
func (d *Device) Seat() string { return d.seat }

// MaxPoints returns how many points the device can track at once.
func (d *Device) MaxPoints() int { return d.maxPoints }

// ButtonCount returns the number of buttons.
func (d *Device) ButtonCount() int { return d.buttonCount }

// UniqueID returns the tool id, or NoUniqueID.
func (d *Device) UniqueID() UniqueID { return d.uniqueID }

// Parent returns the parent device, if any.
func (d *Device) Parent() *Device { return d.parent }

// Geometry returns the available virtual geometry.
func (d *Device) Geometry() geom.Rect { return d.geometry }

// IsPointing reports whether the device reports contact points.
func (d *Device) IsPointing() bool { return d.points != nil }

// ActivePoints returns the device's active point table, or nil for
// non-pointing devices and destroyed devices.
func (d *Device) ActivePoints() *ActivePointTable { return d.points }

// Equal reports whether d and o describe the same logical device. Pointing
// devices also compare pointer type and unique id since one physical stylus
// can present two logical ends.
func (d *Device) Equal(o *Device) bool {
	if d == nil || o == nil {
		return d == o
	}
	if d.systemID != o.systemID {
		return false
	}
	if d.kind.IsPointing() || o.kind.IsPointing() {
		return d.pointerType == o.pointerType && d.uniqueID == o.uniqueID
	}
	return true
}

// Destroy drops the active point table. Callers unregister the device from
// the registry first.
func (d *Device) Destroy() {
	if d.points != nil {
		d.points.Clear()
	}
	d.points = nil
}

func (d *Device) String() string {
	if d == nil {
		return "Device(nil)"
	}
	if d.kind.IsPointing() {
		return fmt.Sprintf("Device(%q id=%d %s %s seat=%q)", d.name, d.systemID, d.kind, d.pointerType, d.seat)
	}
	return fmt.Sprintf("Device(%q id=%d %s seat=%q)", d.name, d.systemID, d.kind, d.seat)
}
