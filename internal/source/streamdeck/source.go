package streamdeck

import (
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/logging"
	"github.com/phinze/touchpoint/internal/wsi"
)

var logger = logging.Child("[streamdeck]")

// defaultSystemID is the first system id the source hands out when the
// options leave it unset.
const defaultSystemID = 0x5d00

// Stream Deck Plus strip, used when the device does not report one.
var defaultStrip = image.Rect(0, 0, 800, 100)

// Sink receives the events the source produces. *delivery.Coordinator
// implements it.
type Sink interface {
	RegisterDevice(dev *input.Device)
	UnregisterDevice(ctx context.Context, dev *input.Device)
	Timestamp() uint64
	HandleKeyEvent(ctx context.Context, w wsi.WindowID, k *wsi.Key) bool
	HandleWheelEvent(ctx context.Context, w wsi.WindowID, wh *wsi.Wheel) bool
	HandleTouchEvent(ctx context.Context, w wsi.WindowID, t *wsi.Touch) bool
}

// Options configures a Source.
type Options struct {
	// Window receives every event.
	Window wsi.WindowID
	// Origin is where the strip's top-left corner sits in global
	// coordinates.
	Origin geom.Vec2
	// Brightness in percent. 0 leaves the device setting alone.
	Brightness byte
	// SystemID is the first of the consecutive system ids given to the
	// keyboard, strip and dial devices.
	SystemID int64
	Seat     string
	// SwipeSteps is the number of moves replayed for a swipe.
	SwipeSteps int
}

func (o *Options) setDefaults() {
	if o.SystemID == 0 {
		o.SystemID = defaultSystemID
	}
	if o.SwipeSteps <= 0 {
		o.SwipeSteps = defaultSwipeSteps
	}
}

// Source translates Stream Deck callbacks into producer calls.
type Source struct {
	deck Deck
	sink Sink
	opts Options

	strip geom.Rect

	keyboard *input.Device
	touch    *input.Device
	dials    *input.Device
}

// New builds the source and its devices. Nothing is registered until Run.
func New(deck Deck, sink Sink, opts Options) *Source {
	opts.setDefaults()
	s := &Source{deck: deck, sink: sink, opts: opts}
	model := deck.GetModelName()

	s.keyboard = input.NewDevice(model+" keys", opts.SystemID, input.DeviceKeyboard,
		input.WithSeat(opts.Seat))

	if deck.GetTouchStripSupported() {
		rect, err := deck.GetTouchStripImageRectangle()
		if err != nil || rect.Empty() {
			logger.Warnf("%s: no strip size (%v), assuming %v", model, err, defaultStrip)
			rect = defaultStrip
		}
		s.strip = geom.R(opts.Origin.X, opts.Origin.Y, float64(rect.Dx()), float64(rect.Dy()))
		s.touch = input.NewDevice(model+" touch strip", opts.SystemID+1, input.DeviceTouchScreen,
			input.WithPointerType(input.PointerFinger),
			input.WithCapabilities(input.CapPosition|input.CapArea),
			input.WithMaxPoints(1),
			input.WithGeometry(s.strip),
			input.WithSeat(opts.Seat))
	}

	if deck.GetDialCount() > 0 {
		s.dials = input.NewDevice(model+" dials", opts.SystemID+2, input.DeviceMouse,
			input.WithCapabilities(input.CapPosition|input.CapScroll),
			input.WithButtonCount(0),
			input.WithSeat(opts.Seat))
	}
	return s
}

// Devices returns the devices the source registers.
func (s *Source) Devices() []*input.Device {
	devs := []*input.Device{s.keyboard}
	if s.touch != nil {
		devs = append(devs, s.touch)
	}
	if s.dials != nil {
		devs = append(devs, s.dials)
	}
	return devs
}

// Strip returns the strip's rectangle in global coordinates. It is empty
// when the device has no strip.
func (s *Source) Strip() geom.Rect { return s.strip }

// Run registers the devices, installs the handlers and blocks until the
// device goes away or ctx is done. Call it once.
func (s *Source) Run(ctx context.Context) error {
	// 1. Register devices for the lifetime of the connection
	for _, dev := range s.Devices() {
		s.sink.RegisterDevice(dev)
	}
	defer func() {
		for _, dev := range s.Devices() {
			s.sink.UnregisterDevice(ctx, dev)
		}
	}()

	// 2. Brightness is cosmetic, a failure is not fatal
	if s.opts.Brightness > 0 {
		if err := s.deck.SetBrightness(s.opts.Brightness); err != nil {
			logger.Warnf("setting brightness: %v", err)
		}
	}

	// 3. Translate callbacks
	if err := s.installHandlers(ctx); err != nil {
		return fmt.Errorf("installing handlers: %w", err)
	}

	// 4. Listen until the device goes away
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- s.deck.Listen(nil)
	}()

	logger.Infof("%s ready: %d keys, %d dials, strip %v",
		s.deck.GetModelName(), s.deck.GetKeyCount(), s.deck.GetDialCount(), s.strip)

	select {
	case <-ctx.Done():
		if err := s.deck.Close(); err != nil {
			logger.Warnf("closing device: %v", err)
		}
		return nil
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("stream deck disconnected: %w", err)
		}
		return nil
	}
}

func (s *Source) installHandlers(ctx context.Context) error {
	var errs []error
	for k := KeyID(1); k <= KeyID(s.deck.GetKeyCount()); k++ {
		errs = append(errs, s.deck.AddKeyHandler(k, s.keyHandler(ctx)))
	}
	for d := DialID(1); d <= DialID(s.deck.GetDialCount()); d++ {
		errs = append(errs,
			s.deck.AddDialRotateHandler(d, s.dialRotateHandler(ctx)),
			s.deck.AddDialSwitchHandler(d, s.dialSwitchHandler(ctx)))
	}
	if s.touch != nil {
		errs = append(errs,
			s.deck.AddTouchStripTouchHandler(s.tapHandler(ctx)),
			s.deck.AddTouchStripSwipeHandler(s.swipeHandler(ctx)))
	}
	return errors.Join(errs...)
}

// keyFor maps key n to the digit n, so the first eight keys read as "1"
// to "8".
func keyFor(k KeyID) (input.Key, string) {
	r := rune('0' + int(k)%10)
	return input.Key(r), string(r)
}

// dialKeyFor maps the push of dial n to F<n>.
func dialKeyFor(d DialID) input.Key {
	return input.KeyF1 + input.Key(d-1)
}

// pressAndRelease sends a key press, waits for the button to come up and
// sends the release stamped with the hold time.
func (s *Source) pressAndRelease(ctx context.Context, key input.Key, text string, b Button) {
	ts := s.sink.Timestamp()
	s.sink.HandleKeyEvent(ctx, s.opts.Window, &wsi.Key{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts, Device: s.keyboard},
		Pressed:       true,
		Key:           key,
		Text:          text,
		Count:         1,
	})

	held := max(ms(b.WaitForRelease()), 1)
	s.sink.HandleKeyEvent(ctx, s.opts.Window, &wsi.Key{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts + held, Device: s.keyboard},
		Key:           key,
		Text:          text,
		Count:         1,
	})
}

func (s *Source) keyHandler(ctx context.Context) KeyHandler {
	return func(k KeyID, b Button) error {
		key, text := keyFor(k)
		s.pressAndRelease(ctx, key, text, b)
		return nil
	}
}

func (s *Source) dialSwitchHandler(ctx context.Context) DialSwitchHandler {
	return func(d DialID, b Button) error {
		s.pressAndRelease(ctx, dialKeyFor(d), "", b)
		return nil
	}
}

// dialCenter is the middle of the strip segment above dial d.
func (s *Source) dialCenter(d DialID) geom.Vec2 {
	n := max(int(s.deck.GetDialCount()), 1)
	area := s.strip
	if area.Empty() {
		area = geom.Rect{Min: s.opts.Origin, Max: s.opts.Origin.Add(geom.V(float64(defaultStrip.Dx()), float64(defaultStrip.Dy())))}
	}
	w := area.Size().X / float64(n)
	return geom.V(area.Min.X+w*(float64(d)-0.5), area.Center().Y)
}

// wheelStep is the angle delta of one detent, in eighths of a degree.
const wheelStep = 120

func (s *Source) dialRotateHandler(ctx context.Context) DialRotateHandler {
	return func(d DialID, delta int8) error {
		if delta == 0 {
			return nil
		}
		// Clockwise scrolls down, like turning a wheel towards the user.
		s.sink.HandleWheelEvent(ctx, s.opts.Window, &wsi.Wheel{
			InputEnvelope: wsi.InputEnvelope{Device: s.dials},
			Global:        s.dialCenter(d),
			AngleDelta:    geom.V(0, -float64(delta)*wheelStep),
		})
		return nil
	}
}

func (s *Source) sendFrames(ctx context.Context, frames []*wsi.Touch) {
	for _, f := range frames {
		f.Device = s.touch
		s.sink.HandleTouchEvent(ctx, s.opts.Window, f)
	}
}

func (s *Source) toGlobal(p image.Point) geom.Vec2 {
	return s.strip.Min.Add(toVec(p))
}

func (s *Source) tapHandler(ctx context.Context) TouchStripTouchHandler {
	return func(t TouchType, p image.Point) error {
		logger.Debugf("%s tap at %v", t, p)
		s.sendFrames(ctx, tapFrames(t, s.toGlobal(p), s.sink.Timestamp()))
		return nil
	}
}

func (s *Source) swipeHandler(ctx context.Context) TouchStripSwipeHandler {
	return func(origin, destination image.Point) error {
		logger.Debugf("swipe %v -> %v", origin, destination)
		s.sendFrames(ctx, swipeFrames(s.toGlobal(origin), s.toGlobal(destination), s.opts.SwipeSteps, s.sink.Timestamp()))
		return nil
	}
}
