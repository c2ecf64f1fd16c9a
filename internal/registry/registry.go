// Package registry keeps the process-wide list of known input devices.
//
// The registry holds non-owning references: whoever creates a device owns
// it, registers it, and unregisters it before calling Device.Destroy.
package registry

import (
	"slices"
	"sync"

	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/logging"
)

var logger = logging.Child("[registry]")

// System ids of the devices synthesized when a platform reports none.
const (
	CorePointerID  int64 = 1
	CoreKeyboardID int64 = 2
)

// Registry is a mutex-guarded list of devices.
type Registry struct {
	mu      sync.Mutex
	devices []*input.Device

	// Next system id handed to devices synthesized for tablets.
	nextSyntheticID int64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{nextSyntheticID: 1000}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry, creating it on first use.
// Components accept an injected *Registry; Default is what the command line
// wires in.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = New()
	})
	return defaultRegistry
}

// Register adds dev. Registering the same device twice is a no-op. System
// ids are meant to be unique; a second device with a taken id is still
// added, with a warning, and FindBySystemID keeps returning the first.
func (r *Registry) Register(dev *input.Device) {
	if dev == nil {
		return
	}
	var clash *input.Device
	r.mu.Lock()
	added := !slices.Contains(r.devices, dev)
	if added {
		if i := slices.IndexFunc(r.devices, func(d *input.Device) bool { return d.SystemID() == dev.SystemID() }); i >= 0 {
			clash = r.devices[i]
		}
		r.devices = append(r.devices, dev)
	}
	r.mu.Unlock()

	if clash != nil {
		logger.Warnf("%v reuses system id %d of %v", dev, dev.SystemID(), clash)
	}
	if added {
		logger.Debugf("registered %v", dev)
	}
}

// Unregister removes dev by identity and reports whether it was registered.
func (r *Registry) Unregister(dev *input.Device) bool {
	r.mu.Lock()
	i := slices.Index(r.devices, dev)
	if i >= 0 {
		r.devices = slices.Delete(r.devices, i, i+1)
	}
	r.mu.Unlock()

	if i < 0 {
		return false
	}
	logger.Debugf("unregistered %v", dev)
	return true
}

// All returns a snapshot of the registered devices in registration order.
func (r *Registry) All() []*input.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.devices)
}

// Len returns the number of registered devices.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.devices)
}

// FindBySystemID returns the first device with the given system id.
func (r *Registry) FindBySystemID(id int64) (*input.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.SystemID() == id {
			return d, true
		}
	}
	return nil, false
}

// FindPrimary returns the first device of kind on seat that has no parent
// device, falling back to the first device of kind on seat. An empty seat
// matches any seat.
func (r *Registry) FindPrimary(seat string, kind input.DeviceKind) (*input.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findPrimaryLocked(seat, kind)
}

func (r *Registry) findPrimaryLocked(seat string, kind input.DeviceKind) (*input.Device, bool) {
	var fallback *input.Device
	for _, d := range r.devices {
		if d.Kind() != kind || (seat != "" && d.Seat() != seat) {
			continue
		}
		if d.Parent() == nil {
			return d, true
		}
		if fallback == nil {
			fallback = d
		}
	}
	return fallback, fallback != nil
}

// PrimaryPointingDevice returns the seat's main mouse, or its touchpad when
// there is no mouse. When neither exists a "core pointer" is synthesized and
// registered so callers always get a device.
func (r *Registry) PrimaryPointingDevice(seat string) *input.Device {
	r.mu.Lock()
	for _, kind := range []input.DeviceKind{input.DeviceMouse, input.DeviceTouchPad} {
		if d, ok := r.findPrimaryLocked(seat, kind); ok {
			r.mu.Unlock()
			return d
		}
	}
	dev := input.NewDevice("core pointer", CorePointerID, input.DeviceMouse,
		input.WithPointerType(input.PointerGeneric),
		input.WithCapabilities(input.CapPosition),
		input.WithButtonCount(3),
		input.WithSeat(seat),
	)
	r.devices = append(r.devices, dev)
	r.mu.Unlock()

	logger.Warnf("no mouse or touchpad on seat %q; using synthesized %v", seat, dev)
	return dev
}

// PrimaryKeyboard returns the seat's main keyboard, synthesizing a "core
// keyboard" when none is registered.
func (r *Registry) PrimaryKeyboard(seat string) *input.Device {
	r.mu.Lock()
	if d, ok := r.findPrimaryLocked(seat, input.DeviceKeyboard); ok {
		r.mu.Unlock()
		return d
	}
	dev := input.NewDevice("core keyboard", CoreKeyboardID, input.DeviceKeyboard, input.WithSeat(seat))
	r.devices = append(r.devices, dev)
	r.mu.Unlock()

	logger.Warnf("no keyboard on seat %q; using synthesized %v", seat, dev)
	return dev
}

// FindTablet returns the tablet tool device matching kind, pointer type and
// unique id.
func (r *Registry) FindTablet(kind input.DeviceKind, pt input.PointerType, id input.UniqueID) (*input.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.findTabletLocked(kind, pt, id)
}

func (r *Registry) findTabletLocked(kind input.DeviceKind, pt input.PointerType, id input.UniqueID) (*input.Device, bool) {
	for _, d := range r.devices {
		if d.Kind() == kind && d.PointerType() == pt && d.UniqueID() == id {
			return d, true
		}
	}
	return nil, false
}

// TabletDevice returns the tablet tool device for the given identity,
// creating and registering it on first proximity. Tablets report tools
// lazily, so a missing device is normal here.
func (r *Registry) TabletDevice(kind input.DeviceKind, pt input.PointerType, id input.UniqueID, caps input.Capability, buttons int) *input.Device {
	r.mu.Lock()
	if d, ok := r.findTabletLocked(kind, pt, id); ok {
		r.mu.Unlock()
		return d
	}
	r.nextSyntheticID++
	dev := input.NewDevice(kind.String()+" "+pt.String(), r.nextSyntheticID, kind,
		input.WithPointerType(pt),
		input.WithUniqueID(id),
		input.WithCapabilities(caps|input.CapPosition),
		input.WithButtonCount(buttons),
	)
	r.devices = append(r.devices, dev)
	r.mu.Unlock()

	logger.Infof("created tablet device %v (unique id %d)", dev, id)
	return dev
}

// PointingDevices returns the registered devices that own an active point
// table.
func (r *Registry) PointingDevices() []*input.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*input.Device
	for _, d := range r.devices {
		if d.IsPointing() {
			out = append(out, d)
		}
	}
	return out
}
