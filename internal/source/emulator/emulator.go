// Package emulator is a desktop window that feeds the delivery coordinator.
// Mouse, wheel, touch and keyboard input become producer calls, and the
// window's frame loop is the consumer: every frame drains the queue before
// drawing the receivers and the live points of every pointing device.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/phinze/touchpoint/internal/delivery"
	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/logging"
	"github.com/phinze/touchpoint/internal/wsi"
)

var logger = logging.Child("[emulator]")

const (
	defaultSystemID = 0xe000
	markerSize      = 32
	logLines        = 10
)

var (
	colorBackground = color.RGBA{30, 30, 30, 255}
	colorBorder     = color.RGBA{90, 90, 90, 255}
	receiverColors  = []color.RGBA{
		{0x2d, 0x4a, 0x6b, 0xff},
		{0x5b, 0x3a, 0x6b, 0xff},
		{0x2d, 0x6b, 0x55, 0xff},
		{0x6b, 0x4f, 0x2d, 0xff},
	}
)

// Options configures the emulator window.
type Options struct {
	Title         string
	Width, Height int
	// SystemID is the first of the consecutive system ids given to the
	// mouse, keyboard and touchscreen.
	SystemID int64
	Seat     string
}

// Emulator is an ebiten game that produces input for one dispatcher window
// and consumes the coordinator's queue on its frame loop.
type Emulator struct {
	coord  *delivery.Coordinator
	disp   *dispatch.Dispatcher
	window *dispatch.Window
	opts   Options

	tr       *translator
	touchIDs []ebiten.TouchID

	markerGrabbed *ebiten.Image
	markerFree    *ebiten.Image

	ctx context.Context

	logMu sync.Mutex
	lines []string
}

// New builds the emulator for w, which must already be added to disp.
func New(coord *delivery.Coordinator, disp *dispatch.Dispatcher, w *dispatch.Window, opts Options) *Emulator {
	if opts.SystemID == 0 {
		opts.SystemID = defaultSystemID
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		size := w.Geometry().Size()
		opts.Width, opts.Height = int(size.X), int(size.Y)
	}
	area := w.Geometry()

	e := &Emulator{coord: coord, disp: disp, window: w, opts: opts}
	e.tr = &translator{
		sink:   coord,
		window: w.ID(),
		origin: area.Min,
		mouse: input.NewDevice("emulator mouse", opts.SystemID, input.DeviceMouse,
			input.WithCapabilities(input.CapPosition|input.CapScroll|input.CapHover),
			input.WithButtonCount(3),
			input.WithGeometry(area),
			input.WithSeat(opts.Seat)),
		keyboard: input.NewDevice("emulator keyboard", opts.SystemID+1, input.DeviceKeyboard,
			input.WithSeat(opts.Seat)),
		touch: input.NewDevice("emulator touchscreen", opts.SystemID+2, input.DeviceTouchScreen,
			input.WithPointerType(input.PointerFinger),
			input.WithCapabilities(input.CapPosition|input.CapArea),
			input.WithMaxPoints(10),
			input.WithGeometry(area),
			input.WithSeat(opts.Seat)),
	}

	w.AddObserver(dispatch.ObserverFunc(func(_ *dispatch.Window, ev *wsi.Event) {
		e.Logf("%v", ev)
	}))
	return e
}

// Devices returns the devices the emulator registers.
func (e *Emulator) Devices() []*input.Device {
	return []*input.Device{e.tr.mouse, e.tr.keyboard, e.tr.touch}
}

// Logf adds a line to the on-screen event log. Safe from any goroutine.
func (e *Emulator) Logf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	logger.Debug(line)

	e.logMu.Lock()
	defer e.logMu.Unlock()
	e.lines = append(e.lines, line)
	if len(e.lines) > logLines {
		e.lines = e.lines[len(e.lines)-logLines:]
	}
}

func (e *Emulator) logSnapshot() []string {
	e.logMu.Lock()
	defer e.logMu.Unlock()
	return append([]string(nil), e.lines...)
}

// Run opens the window and blocks until it is closed or ctx ends. It must
// be called from the main goroutine, which becomes the consumer.
func (e *Emulator) Run(ctx context.Context) error {
	for _, dev := range e.Devices() {
		e.coord.RegisterDevice(dev)
	}
	defer func() {
		for _, dev := range e.Devices() {
			e.coord.UnregisterDevice(e.ctx, dev)
		}
	}()

	e.ctx = e.coord.ConsumerContext(ctx)

	ebiten.SetWindowSize(e.opts.Width, e.opts.Height)
	ebiten.SetWindowTitle(e.opts.Title)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	ebiten.SetWindowClosingHandled(true)

	err := ebiten.RunGame(e)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Update is one frame: produce, then consume.
func (e *Emulator) Update() error {
	select {
	case <-e.ctx.Done():
		return ebiten.Termination
	default:
	}

	// 1. Producer side
	if !e.tr.step(e.ctx, e.capture()) {
		logger.Infof("window %d closed", e.window.ID())
		return ebiten.Termination
	}

	// 2. Consumer side, including events other producers queued
	e.coord.ProcessEvents(e.ctx, wsi.AllEvents)

	if e.disp.Window(e.window.ID()) == nil {
		return ebiten.Termination
	}
	return nil
}

func (e *Emulator) capture() snapshot {
	x, y := ebiten.CursorPosition()
	s := snapshot{
		size:    image.Pt(e.opts.Width, e.opts.Height),
		cursor:  geom.V(float64(x), float64(y)),
		inside:  x >= 0 && y >= 0 && x < e.opts.Width && y < e.opts.Height,
		touches: make(map[int]geom.Vec2),
		mods:    modifiers(),
		focused: ebiten.IsFocused(),
		closing: ebiten.IsWindowBeingClosed(),
	}

	for eb, b := range map[ebiten.MouseButton]input.MouseButton{
		ebiten.MouseButtonLeft:   input.LeftButton,
		ebiten.MouseButtonRight:  input.RightButton,
		ebiten.MouseButtonMiddle: input.MiddleButton,
	} {
		if ebiten.IsMouseButtonPressed(eb) {
			s.buttons |= b
		}
	}
	s.wheel.X, s.wheel.Y = ebiten.Wheel()

	e.touchIDs = ebiten.AppendTouchIDs(e.touchIDs[:0])
	for _, id := range e.touchIDs {
		tx, ty := ebiten.TouchPosition(id)
		s.touches[int(id)] = geom.V(float64(tx), float64(ty))
	}

	shift := s.mods&input.ModShift != 0
	for _, k := range inpututil.AppendJustPressedKeys(nil) {
		if ki, ok := keyInputFor(k, shift); ok {
			s.pressed = append(s.pressed, ki)
		}
	}
	for _, k := range inpututil.AppendJustReleasedKeys(nil) {
		if ki, ok := keyInputFor(k, shift); ok {
			s.released = append(s.released, ki)
		}
	}

	switch {
	case ebiten.IsWindowMinimized():
		s.state = wsi.WindowMinimized
	case ebiten.IsFullscreen():
		s.state = wsi.WindowFullScreen
	case ebiten.IsWindowMaximized():
		s.state = wsi.WindowMaximized
	default:
		s.state = wsi.WindowNormal
	}
	return s
}

// Draw runs on the same goroutine as Update, so reading the consumer-owned
// point tables here is safe.
func (e *Emulator) Draw(screen *ebiten.Image) {
	screen.Fill(colorBackground)

	if e.markerGrabbed == nil {
		e.markerGrabbed = ebiten.NewImageFromImage(renderMarker(markerSize, colorGrabbed))
		e.markerFree = ebiten.NewImageFromImage(renderMarker(markerSize, colorFree))
	}

	// Receivers, bottom first
	for i, r := range e.window.Receivers() {
		b := r.Bounds()
		x, y := float32(b.Min.X), float32(b.Min.Y)
		w, h := float32(b.Size().X), float32(b.Size().Y)
		vector.DrawFilledRect(screen, x, y, w, h, receiverColors[i%len(receiverColors)], false)
		vector.StrokeRect(screen, x, y, w, h, 1, colorBorder, false)
		ebitenutil.DebugPrintAt(screen, fmt.Sprint(r), int(x)+4, int(y)+4)
	}

	// Live points
	for _, dev := range e.coord.Registry().PointingDevices() {
		dev.ActivePoints().Range(func(pe *input.PointEntry) bool {
			e.drawPoint(screen, dev, pe)
			return true
		})
	}

	// Event log
	lines := e.logSnapshot()
	for i, line := range lines {
		ebitenutil.DebugPrintAt(screen, line, 8, e.opts.Height-16*(len(lines)-i)-20)
	}
	ebitenutil.DebugPrintAt(screen,
		fmt.Sprintf("queued %d  devices %d  tps %.0f", e.coord.Queue().Count(), e.coord.Registry().Len(), ebiten.ActualTPS()),
		8, e.opts.Height-18)
}

func (e *Emulator) drawPoint(screen *ebiten.Image, dev *input.Device, pe *input.PointEntry) {
	p := pe.Point()
	if p.State() == input.StateReleased && dev.Kind() != input.DeviceMouse {
		return
	}
	pos := e.window.MapFromGlobal(p.GlobalPosition())

	marker := e.markerFree
	if pe.IsGrabbed() {
		marker = e.markerGrabbed
	}
	op := &ebiten.DrawImageOptions{}
	op.GeoM.Translate(pos.X-markerSize/2, pos.Y-markerSize/2)
	screen.DrawImage(marker, op)

	v := p.Velocity()
	label := fmt.Sprintf("%d %s v=(%.0f,%.0f)", p.ID(), p.State(), v.X, v.Y)
	if g := pe.ExclusiveGrabber(); g != nil {
		label += fmt.Sprintf(" -> %v", g)
	}
	ebitenutil.DebugPrintAt(screen, label, int(pos.X)+markerSize/2+2, int(pos.Y)-8)
}

// Layout keeps the logical size fixed.
func (e *Emulator) Layout(_, _ int) (int, int) {
	return e.opts.Width, e.opts.Height
}
