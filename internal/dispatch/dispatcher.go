// Package dispatch is the consumer side of event delivery: it turns queued
// window-system events into pointer and key events, keeps each device's
// active points current and routes events to the receivers of a window.
package dispatch

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/logging"
	"github.com/phinze/touchpoint/internal/registry"
	"github.com/phinze/touchpoint/internal/wsi"
)

var logger = logging.Child("[dispatch]")

const (
	DefaultDoubleClickInterval = 400 * time.Millisecond
	DefaultDoubleClickDistance = 5.0
)

// Options configure a Dispatcher.
type Options struct {
	// DoubleClickInterval is the longest gap between two presses of the same
	// button that still counts as a double click.
	DoubleClickInterval time.Duration
	// DoubleClickDistance is how far the pointer may travel between the two
	// presses, in global coordinates.
	DoubleClickDistance float64
	// TraceGrabs logs every grab transition at debug level.
	TraceGrabs bool
}

func (o *Options) setDefaults() {
	if o.DoubleClickInterval <= 0 {
		o.DoubleClickInterval = DefaultDoubleClickInterval
	}
	if o.DoubleClickDistance <= 0 {
		o.DoubleClickDistance = DefaultDoubleClickDistance
	}
}

// Dispatcher routes events to windows. It implements delivery.Processor.
//
// Windows and observers may be added from any goroutine. Everything that
// touches active points (event processing, RemoveReceiver, RemoveWindow)
// belongs to the consumer goroutine.
type Dispatcher struct {
	registry *registry.Registry
	opts     Options

	mu        sync.RWMutex
	windows   map[wsi.WindowID]*Window
	observers []Observer
	app       Receiver
	appState  wsi.ApplicationState

	// Consumer-owned state, keyed by device.
	buttons    map[*input.Device]*buttonState
	seen       []*input.Device
	grabTraces map[*input.Device]func()
}

// New creates a dispatcher that resolves devices in reg.
func New(reg *registry.Registry, opts Options) *Dispatcher {
	opts.setDefaults()
	return &Dispatcher{
		registry:   reg,
		opts:       opts,
		windows:    make(map[wsi.WindowID]*Window),
		appState:   wsi.ApplicationActive,
		buttons:    make(map[*input.Device]*buttonState),
		grabTraces: make(map[*input.Device]func()),
	}
}

// AddWindow makes w a delivery target. A window with the same id is
// replaced.
func (d *Dispatcher) AddWindow(w *Window) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.windows[w.ID()]; ok {
		logger.Warnf("window %d added twice; replacing", w.ID())
	}
	d.windows[w.ID()] = w
}

// Window returns the window with the given id, or nil.
func (d *Dispatcher) Window(id wsi.WindowID) *Window {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.windows[id]
}

// Windows returns every window.
func (d *Dispatcher) Windows() []*Window {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]*Window, 0, len(d.windows))
	for _, w := range d.windows {
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b *Window) int { return cmp.Compare(a.ID(), b.ID()) })
	return out
}

// RemoveWindow drops the window and cancels every grab held by its
// receivers.
func (d *Dispatcher) RemoveWindow(id wsi.WindowID) bool {
	d.mu.Lock()
	w, ok := d.windows[id]
	delete(d.windows, id)
	d.mu.Unlock()
	if !ok {
		return false
	}
	for _, r := range w.Receivers() {
		d.cancelGrabs(r)
	}
	return true
}

// RemoveReceiver takes r out of w and cancels its grabs on every pointing
// device.
func (d *Dispatcher) RemoveReceiver(w *Window, r Receiver) bool {
	if !w.RemoveReceiver(r) {
		return false
	}
	d.cancelGrabs(r)
	return true
}

func (d *Dispatcher) cancelGrabs(r Receiver) {
	for _, dev := range d.pointingDevices() {
		dev.RemoveGrabberEverywhere(r, true)
	}
}

// pointingDevices returns the registered pointing devices plus any device
// the dispatcher has delivered for that was never registered.
func (d *Dispatcher) pointingDevices() []*input.Device {
	devs := d.registry.PointingDevices()
	for _, dev := range d.seen {
		if dev.IsPointing() && !slices.Contains(devs, dev) {
			devs = append(devs, dev)
		}
	}
	return devs
}

// SetApplicationReceiver sets the receiver of events that belong to no
// window, such as tablet proximity.
func (d *Dispatcher) SetApplicationReceiver(r Receiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.app = r
}

func (d *Dispatcher) applicationReceiver() Receiver {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.app
}

// AddObserver subscribes o to the non-input events of every window and to
// application state changes.
func (d *Dispatcher) AddObserver(o Observer) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.observers = append(d.observers, o)
}

// ApplicationState returns the last reported application state.
func (d *Dispatcher) ApplicationState() wsi.ApplicationState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.appState
}

func (d *Dispatcher) notify(w *Window, e *wsi.Event) {
	d.mu.RLock()
	observers := slices.Clone(d.observers)
	d.mu.RUnlock()
	for _, o := range observers {
		o.WindowSystemEvent(w, e)
	}
	if w != nil {
		w.notify(e)
	}
}

// Close drops the grab trace subscriptions.
func (d *Dispatcher) Close() {
	for dev, unsubscribe := range d.grabTraces {
		unsubscribe()
		delete(d.grabTraces, dev)
	}
}

// track remembers dev and, with TraceGrabs, subscribes to its grab changes.
func (d *Dispatcher) track(dev *input.Device) {
	if slices.Contains(d.seen, dev) {
		return
	}
	d.seen = append(d.seen, dev)
	if !d.opts.TraceGrabs || !dev.IsPointing() {
		return
	}
	d.grabTraces[dev] = dev.OnGrabChanged(func(c input.GrabChange) {
		logger.Debugf("%s: %s %v point %d", dev.Name(), c.Transition, c.Grabber, c.Point.ID())
	})
}

// forget drops the state kept for dev. Its active points go with it.
func (d *Dispatcher) forget(dev *input.Device) {
	if unsubscribe, ok := d.grabTraces[dev]; ok {
		unsubscribe()
		delete(d.grabTraces, dev)
	}
	delete(d.buttons, dev)
	d.seen = slices.DeleteFunc(d.seen, func(s *input.Device) bool { return s == dev })
}

// ProcessEvent converts e into delivered events and records whether any
// receiver accepted it.
func (d *Dispatcher) ProcessEvent(_ context.Context, e *wsi.Event) {
	var accepted bool
	switch p := e.Payload.(type) {
	case *wsi.Mouse:
		accepted = d.processMouse(e.Window, p)
	case *wsi.Wheel:
		accepted = d.processWheel(e.Window, p)
	case *wsi.Touch:
		accepted = d.processTouch(e.Window, p)
	case *wsi.Tablet:
		accepted = d.processTablet(e.Window, p)
	case *wsi.TabletProximity:
		accepted = d.processProximity(p)
	case *wsi.Gesture:
		accepted = d.processGesture(e.Window, p)
	case *wsi.Key:
		accepted = d.processKey(e.Window, p)
	case *wsi.Close:
		accepted = d.processClose(e)
	case *wsi.DeviceRemoved:
		d.forget(p.Device)
		accepted = true
	case *wsi.ApplicationStateChanged:
		d.mu.Lock()
		d.appState = p.State
		d.mu.Unlock()
		d.notify(nil, e)
		accepted = true
	default:
		accepted = d.processWindowEvent(e)
	}
	e.Accepted = accepted
}

func (d *Dispatcher) window(id wsi.WindowID, what string) *Window {
	w := d.Window(id)
	if w == nil {
		logger.Warnf("%s for unknown window %d dropped", what, id)
	}
	return w
}

func (d *Dispatcher) processClose(e *wsi.Event) bool {
	w := d.window(e.Window, "close")
	if w == nil {
		return false
	}
	if !w.closeAllowed() {
		logger.Debugf("window %d refused to close", w.ID())
		return false
	}
	d.notify(w, e)
	d.RemoveWindow(w.ID())
	logger.Infof("window %d (%s) closed", w.ID(), w.Title())
	return true
}

func (d *Dispatcher) processWindowEvent(e *wsi.Event) bool {
	w := d.window(e.Window, e.Kind().String())
	if w == nil {
		return false
	}
	switch p := e.Payload.(type) {
	case *wsi.Enter:
		w.setHovered(true)
	case *wsi.Leave:
		w.setHovered(false)
	case *wsi.Expose:
		w.expose(p.Region)
	case *wsi.WindowStateChanged:
		w.setState(p.New)
	default:
		logger.Debugf("no handling for %v", e)
		return false
	}
	d.notify(w, e)
	return true
}

func (d *Dispatcher) processKey(id wsi.WindowID, k *wsi.Key) bool {
	w := d.window(id, "key event")
	if w == nil {
		return false
	}
	focus := w.Focus()
	if focus == nil {
		return false
	}
	dev := k.Device
	if dev == nil {
		dev = d.registry.PrimaryKeyboard("")
	}
	ev := &input.KeyEvent{
		Pressed:    k.Pressed,
		Key:        k.Key,
		Text:       k.Text,
		Modifiers:  k.Modifiers,
		AutoRepeat: k.AutoRepeat,
		Count:      k.Count,
		Timestamp:  k.Timestamp,
		Device:     dev,
	}
	focus.HandleKeyEvent(ev)
	return ev.IsAccepted()
}
