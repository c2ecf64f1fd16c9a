package dispatch

import (
	"testing"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mouseAt(typ input.EventType, ts uint64, global geom.Vec2, button input.MouseButton) *wsi.Mouse {
	return &wsi.Mouse{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts},
		Type:          typ,
		Global:        global,
		Button:        button,
	}
}

func TestMouse_GrabOnPressUngrabOnRelease(t *testing.T) {
	f := newFixture(t)

	// Scene (50,50) is inside left; scene (250,50) inside right.
	e := f.process(mouseAt(input.MouseButtonPress, 10, geom.V(150, 150), input.LeftButton))
	assert.True(t, e.Accepted)

	dev := f.reg.PrimaryPointingDevice("")
	entry, ok := dev.ActivePoints().QueryPointByID(0)
	require.True(t, ok)
	assert.Same(t, f.left, entry.ExclusiveGrabber())
	assert.Equal(t, geom.V(150, 150), entry.Point().GlobalGrabPosition())

	f.process(mouseAt(input.MouseMove, 20, geom.V(350, 150), input.NoButton))
	f.process(mouseAt(input.MouseButtonRelease, 30, geom.V(350, 150), input.LeftButton))

	assert.Equal(t, []input.EventType{input.MouseButtonPress, input.MouseMove, input.MouseButtonRelease}, f.left.types())
	assert.Equal(t, geom.V(250, 50), f.left.events[1].positions[0], "grabbed move is local to the grabber")
	assert.Empty(t, f.right.events)
	assert.Nil(t, entry.ExclusiveGrabber())

	f.process(mouseAt(input.MouseMove, 40, geom.V(355, 150), input.NoButton))
	assert.Equal(t, []input.EventType{input.MouseMove}, f.right.types(), "hit testing resumes after release")
	assert.Equal(t, geom.V(55, 50), f.right.events[0].positions[0])
}

func TestMouse_RejectedPressDoesNotGrab(t *testing.T) {
	f := newFixture(t)
	f.left.accept = false

	e := f.process(mouseAt(input.MouseButtonPress, 10, geom.V(150, 150), input.LeftButton))
	assert.False(t, e.Accepted)
	assert.Nil(t, f.reg.PrimaryPointingDevice("").FirstPointExclusiveGrabber())

	f.process(mouseAt(input.MouseMove, 20, geom.V(350, 150), input.NoButton))
	assert.Equal(t, []input.EventType{input.MouseMove}, f.right.types())
}

func TestMouse_MissesEveryReceiver(t *testing.T) {
	f := newFixture(t)
	e := f.process(mouseAt(input.MouseButtonPress, 10, geom.V(450, 350), input.LeftButton))
	assert.False(t, e.Accepted)
	assert.Empty(t, f.left.events)
	assert.Empty(t, f.right.events)
}

func TestMouse_SynthesizesMoveBeforePress(t *testing.T) {
	f := newFixture(t)

	f.process(mouseAt(input.MouseButtonPress, 10, geom.V(150, 150), input.LeftButton))
	assert.Equal(t, []input.EventType{input.MouseButtonPress}, f.left.types(), "first contact needs no move")

	f.process(mouseAt(input.MouseButtonRelease, 20, geom.V(150, 150), input.LeftButton))
	f.left.reset()

	f.process(mouseAt(input.MouseButtonPress, 30, geom.V(160, 150), input.LeftButton))
	require.Equal(t, []input.EventType{input.MouseMove, input.MouseButtonPress}, f.left.types())
	assert.Equal(t, f.left.events[0].ts, f.left.events[1].ts, "move shares the press timestamp")
	assert.Equal(t, geom.V(60, 50), f.left.events[0].positions[0])

	dev := f.reg.PrimaryPointingDevice("")
	p := dev.ActivePoints().PointByID(0).Point()
	assert.Equal(t, uint64(30), p.PressTimestamp())
	assert.Equal(t, geom.V(160, 150), p.GlobalPressPosition())
}

func TestMouse_MultipleButtons(t *testing.T) {
	f := newFixture(t)
	at := geom.V(150, 150)

	f.process(mouseAt(input.MouseButtonPress, 10, at, input.LeftButton))
	f.process(&wsi.Mouse{
		InputEnvelope: wsi.InputEnvelope{Timestamp: 20},
		Type:          input.MouseButtonPress, Global: at,
		Button: input.RightButton, Buttons: input.LeftButton,
	})
	f.process(&wsi.Mouse{
		InputEnvelope: wsi.InputEnvelope{Timestamp: 30},
		Type:          input.MouseButtonRelease, Global: at,
		Button: input.LeftButton, Buttons: input.RightButton,
	})

	dev := f.reg.PrimaryPointingDevice("")
	assert.Same(t, f.left, dev.FirstPointExclusiveGrabber(), "grab holds while a button is down")
	assert.Equal(t, input.StateUpdated, f.left.events[2].states[0])

	f.process(mouseAt(input.MouseButtonRelease, 40, at, input.RightButton))
	assert.Nil(t, dev.FirstPointExclusiveGrabber())
	assert.Equal(t, input.StateReleased, f.left.events[3].states[0])
}

func TestMouse_DoubleClick(t *testing.T) {
	type tc struct {
		secondAt     geom.Vec2
		secondTS     uint64
		secondButton input.MouseButton
		double       bool
	}

	tests := map[string]tc{
		"quick and close": {secondAt: geom.V(152, 151), secondTS: 300, secondButton: input.LeftButton, double: true},
		"at the limit":    {secondAt: geom.V(150, 150), secondTS: 500, secondButton: input.LeftButton, double: true},
		"too slow":        {secondAt: geom.V(150, 150), secondTS: 501, secondButton: input.LeftButton},
		"too far":         {secondAt: geom.V(170, 150), secondTS: 300, secondButton: input.LeftButton},
		"other button":    {secondAt: geom.V(150, 150), secondTS: 300, secondButton: input.RightButton},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.process(mouseAt(input.MouseButtonPress, 100, geom.V(150, 150), input.LeftButton))
			f.process(mouseAt(input.MouseButtonRelease, 110, geom.V(150, 150), input.LeftButton))
			f.process(mouseAt(input.MouseButtonPress, tt.secondTS, tt.secondAt, tt.secondButton))

			types := f.left.types()
			assert.Equal(t, tt.double, types[len(types)-1] == input.MouseButtonDoubleClick, "events: %v", types)
		})
	}
}

func TestMouse_TripleClickIsNotTwoDoubleClicks(t *testing.T) {
	f := newFixture(t)
	at := geom.V(150, 150)
	for _, ts := range []uint64{100, 200, 300} {
		f.process(mouseAt(input.MouseButtonPress, ts, at, input.LeftButton))
		f.process(mouseAt(input.MouseButtonRelease, ts+10, at, input.LeftButton))
	}

	doubles := 0
	for _, typ := range f.left.types() {
		if typ == input.MouseButtonDoubleClick {
			doubles++
		}
	}
	assert.Equal(t, 1, doubles)
}

func TestMouse_VelocityAccumulates(t *testing.T) {
	f := newFixture(t)
	f.process(mouseAt(input.MouseMove, 100, geom.V(150, 150), input.NoButton))
	f.process(mouseAt(input.MouseMove, 200, geom.V(160, 150), input.NoButton))

	dev := f.reg.PrimaryPointingDevice("")
	p := dev.ActivePoints().PointByID(0).Point()
	assert.InDelta(t, 70, p.Velocity().X, 1e-9)

	f.process(mouseAt(input.MouseMove, 300, geom.V(170, 150), input.NoButton))
	assert.InDelta(t, 0.7*100+0.3*70, p.Velocity().X, 1e-9)
}

func TestMouse_LocalOnlyProducer(t *testing.T) {
	f := newFixture(t)
	f.process(&wsi.Mouse{Type: input.MouseButtonPress, Local: geom.V(50, 50), Button: input.LeftButton})

	require.Len(t, f.left.events, 1)
	dev := f.reg.PrimaryPointingDevice("")
	assert.Equal(t, geom.V(150, 150), dev.ActivePoints().PointByID(0).Point().GlobalPosition())
}

func TestMouse_PassiveGrabberSeesEventsFirst(t *testing.T) {
	f := newFixture(t)
	var order []string
	watcher := newRecorder("watcher", geom.R(300, 200, 10, 10), false)
	watcher.OnPointer = func(*Area, *input.PointerEvent) { order = append(order, "watcher") }
	f.left.OnPointer = func(_ *Area, ev *input.PointerEvent) {
		order = append(order, "left")
		ev.Accept()
	}

	f.process(mouseAt(input.MouseButtonPress, 10, geom.V(150, 150), input.LeftButton))
	dev := f.reg.PrimaryPointingDevice("")
	entry, _ := dev.ActivePoints().QueryPointByID(0)
	ev := input.NewPointerEvent(input.MouseMove, dev, 15, 0, entry.Point().Clone())
	require.True(t, ev.AddPassiveGrabber(ev.Point(0), watcher))

	order = nil
	f.process(mouseAt(input.MouseMove, 20, geom.V(160, 150), input.NoButton))
	assert.Equal(t, []string{"watcher", "left"}, order)

	f.process(mouseAt(input.MouseButtonRelease, 30, geom.V(160, 150), input.LeftButton))
	assert.Empty(t, entry.PassiveGrabbers(), "release clears passive grabs")
}

func TestWheel_HitTested(t *testing.T) {
	f := newFixture(t)
	var got *input.PointerEvent
	f.right.OnPointer = func(_ *Area, ev *input.PointerEvent) {
		got = ev
		ev.Accept()
	}

	e := f.process(&wsi.Wheel{
		InputEnvelope: wsi.InputEnvelope{Timestamp: 5},
		Global:        geom.V(350, 150),
		AngleDelta:    geom.V(0, 120),
		Phase:         input.ScrollUpdate,
	})
	assert.True(t, e.Accepted)
	require.NotNil(t, got)
	assert.Equal(t, input.Wheel, got.Type())
	assert.Equal(t, geom.V(0, 120), got.AngleDelta)
	assert.Equal(t, input.ScrollUpdate, got.Phase)
	assert.Equal(t, geom.V(50, 50), got.Point(0).Position())

	dev := f.reg.PrimaryPointingDevice("")
	assert.Equal(t, 0, dev.ActivePoints().Len(), "wheel does not persist points")

	e = f.process(&wsi.Wheel{Global: geom.V(450, 350), AngleDelta: geom.V(0, 120)})
	assert.False(t, e.Accepted)
}

func TestGesture_HitTested(t *testing.T) {
	f := newFixture(t)
	pad := input.NewDevice("pad", 9, input.DeviceTouchPad, input.WithMaxPoints(5))
	f.reg.Register(pad)

	var got *input.PointerEvent
	f.left.OnPointer = func(_ *Area, ev *input.PointerEvent) { got = ev }

	f.process(&wsi.Gesture{Gesture: input.GestureZoom, Value: 0.25, Global: geom.V(150, 150), FingerCount: 2})
	require.NotNil(t, got)
	assert.Equal(t, input.NativeGesture, got.Type())
	assert.Same(t, pad, got.Device())
	assert.Equal(t, input.GestureZoom, got.Gesture)
	assert.Equal(t, 0.25, got.GestureValue)
	assert.Equal(t, 2, got.FingerCount)
}

func TestTablet_PressMoveRelease(t *testing.T) {
	f := newFixture(t)
	before := f.reg.Len()

	stylus := func(ts uint64, at geom.Vec2, buttons input.MouseButtons, pressure float64) *wsi.Tablet {
		return &wsi.Tablet{
			InputEnvelope: wsi.InputEnvelope{Timestamp: ts},
			Global:        at,
			Buttons:       buttons,
			Pressure:      pressure,
		}
	}

	f.process(stylus(10, geom.V(150, 150), input.NoButton, 0))
	f.process(stylus(20, geom.V(150, 150), input.LeftButton, 0.5))
	f.process(stylus(30, geom.V(350, 150), input.LeftButton, 0.8))
	f.process(stylus(40, geom.V(350, 150), input.NoButton, 0))

	assert.Equal(t, []input.EventType{input.TabletMove, input.TabletPress, input.TabletMove, input.TabletRelease}, f.left.types())
	assert.Empty(t, f.right.events, "stylus stays grabbed by left")
	assert.Equal(t, before+1, f.reg.Len(), "the tablet device is created once and reused")

	dev, ok := f.reg.FindTablet(input.DeviceStylus, input.PointerPen, input.NoUniqueID)
	require.True(t, ok)
	assert.Nil(t, dev.FirstPointExclusiveGrabber())
	assert.Equal(t, float64(0), dev.ActivePoints().PointByID(0).Point().Pressure())
}

func TestTablet_ProximityGoesToApplication(t *testing.T) {
	f := newFixture(t)

	e := f.processTo(wsi.NoWindow, &wsi.TabletProximity{Enter: true})
	assert.False(t, e.Accepted, "no application receiver")

	app := newRecorder("app", geom.Rect{}, true)
	f.d.SetApplicationReceiver(app)
	assert.True(t, f.processTo(wsi.NoWindow, &wsi.TabletProximity{Enter: true}).Accepted)
	assert.True(t, f.processTo(wsi.NoWindow, &wsi.TabletProximity{}).Accepted)
	assert.Equal(t, []input.EventType{input.TabletEnterProximity, input.TabletLeaveProximity}, app.types())
}

func TestMouse_NonPointingDeviceDropped(t *testing.T) {
	f := newFixture(t)
	kbd := f.reg.PrimaryKeyboard("")
	m := mouseAt(input.MouseMove, 1, geom.V(150, 150), input.NoButton)
	m.Device = kbd
	assert.False(t, f.process(m).Accepted)
	assert.Empty(t, f.left.events)
}
