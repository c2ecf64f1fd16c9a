package dispatch

import (
	"slices"
	"sync"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// Receiver handles pointer events for a region of a window. Receivers are
// also the grabbers recorded in a device's active point table, so they must
// be comparable (normally a pointer).
type Receiver interface {
	// Bounds returns the receiver's region in scene coordinates.
	Bounds() geom.Rect
	HandlePointerEvent(ev *input.PointerEvent)
}

// KeyReceiver handles key events while it has focus.
type KeyReceiver interface {
	HandleKeyEvent(ev *input.KeyEvent)
}

// Observer is told about window-system events that are not input: enter,
// leave, expose, state changes and close. w is nil for application-wide
// events.
type Observer interface {
	WindowSystemEvent(w *Window, e *wsi.Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(w *Window, e *wsi.Event)

// WindowSystemEvent calls f.
func (f ObserverFunc) WindowSystemEvent(w *Window, e *wsi.Event) { f(w, e) }

// Window is a top-level surface with its own scene coordinate space.
type Window struct {
	id        wsi.WindowID
	title     string
	geometry  geom.Rect
	toScene   geom.Transform
	fromScene geom.Transform

	mu        sync.RWMutex
	receivers []Receiver // topmost last
	focus     KeyReceiver
	observers []Observer
	state     wsi.WindowState
	exposed   geom.Rect
	hovered   bool

	// Asked before the window closes; returning false vetoes.
	canClose func() bool
}

// NewWindow creates a window covering geometry in global coordinates. Its
// scene origin is the window's top-left corner.
func NewWindow(id wsi.WindowID, title string, geometry geom.Rect) *Window {
	w := &Window{id: id, title: title, geometry: geometry}
	w.SetTransform(geom.Translation(geometry.Min.Mul(-1)))
	return w
}

// ID returns the window id.
func (w *Window) ID() wsi.WindowID { return w.id }

// Title returns the window title.
func (w *Window) Title() string { return w.title }

// Geometry returns the window's area in global coordinates.
func (w *Window) Geometry() geom.Rect { return w.geometry }

// SetTransform replaces the global-to-scene mapping.
func (w *Window) SetTransform(t geom.Transform) {
	inv, ok := t.Invert()
	if !ok {
		logger.Warnf("window %d: transform %v is not invertible; keeping the previous one", w.id, t)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.toScene = t
	w.fromScene = inv
}

// MapFromGlobal maps a global position into scene coordinates.
func (w *Window) MapFromGlobal(global geom.Vec2) geom.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.toScene.Map(global)
}

// MapToGlobal maps a scene position into global coordinates.
func (w *Window) MapToGlobal(scene geom.Vec2) geom.Vec2 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.fromScene.Map(scene)
}

// AddReceiver stacks r on top of the existing receivers.
func (w *Window) AddReceiver(r Receiver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !slices.Contains(w.receivers, r) {
		w.receivers = append(w.receivers, r)
	}
}

// RemoveReceiver takes r out of the window. Its grabs are left alone; use
// Dispatcher.RemoveReceiver to also cancel them.
func (w *Window) RemoveReceiver(r Receiver) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := slices.Index(w.receivers, r)
	if i < 0 {
		return false
	}
	w.receivers = slices.Delete(w.receivers, i, i+1)
	if k, ok := r.(KeyReceiver); ok && w.focus == k {
		w.focus = nil
	}
	return true
}

// Receivers returns the receivers, bottom first.
func (w *Window) Receivers() []Receiver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.receivers)
}

// HasReceiver reports whether r belongs to the window.
func (w *Window) HasReceiver(r Receiver) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Contains(w.receivers, r)
}

// ReceiverAt returns the topmost receiver containing the scene position.
func (w *Window) ReceiverAt(scene geom.Vec2) Receiver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for i := len(w.receivers) - 1; i >= 0; i-- {
		if w.receivers[i].Bounds().Contains(scene) {
			return w.receivers[i]
		}
	}
	return nil
}

// SetFocus gives k the keyboard focus. Nil clears it.
func (w *Window) SetFocus(k KeyReceiver) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.focus = k
}

// Focus returns the focused key receiver.
func (w *Window) Focus() KeyReceiver {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.focus
}

// AddObserver subscribes o to this window's non-input events.
func (w *Window) AddObserver(o Observer) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, o)
}

func (w *Window) notify(e *wsi.Event) {
	w.mu.RLock()
	observers := slices.Clone(w.observers)
	w.mu.RUnlock()
	for _, o := range observers {
		o.WindowSystemEvent(w, e)
	}
}

// SetCloseHandler installs a callback asked before the window closes.
func (w *Window) SetCloseHandler(fn func() bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.canClose = fn
}

func (w *Window) closeAllowed() bool {
	w.mu.RLock()
	fn := w.canClose
	w.mu.RUnlock()
	return fn == nil || fn()
}

// State returns the last reported window state.
func (w *Window) State() wsi.WindowState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Hovered reports whether the pointer is inside the window.
func (w *Window) Hovered() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.hovered
}

// TakeExposed returns the union of regions reported exposed since the last
// call and resets it.
func (w *Window) TakeExposed() geom.Rect {
	w.mu.Lock()
	defer w.mu.Unlock()
	r := w.exposed
	w.exposed = geom.Rect{}
	return r
}

func (w *Window) expose(r geom.Rect) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exposed = w.exposed.Union(r)
}

func (w *Window) setState(s wsi.WindowState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func (w *Window) setHovered(h bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hovered = h
}
