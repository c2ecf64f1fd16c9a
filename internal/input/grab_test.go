package input

import (
	"testing"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testGrabber struct{ name string }

func (g *testGrabber) String() string { return g.name }

type recordedChange struct {
	grabber    Grabber
	transition GrabTransition
	pointID    int
	hasEvent   bool
}

func recordGrabs(t *testing.T, dev *Device) *[]recordedChange {
	t.Helper()
	var got []recordedChange
	unsubscribe := dev.OnGrabChanged(func(c GrabChange) {
		got = append(got, recordedChange{
			grabber:    c.Grabber,
			transition: c.Transition,
			pointID:    c.Point.ID(),
			hasEvent:   c.Event != nil,
		})
	})
	t.Cleanup(unsubscribe)
	return &got
}

// pressPoints creates active points with the given ids and returns an event
// carrying clones of them.
func pressPoints(dev *Device, ids ...int) *PointerEvent {
	ev := NewPointerEvent(TouchBegin, dev, 10, ModNone)
	for _, id := range ids {
		at := geom.V(float64(id*10), float64(id*10))
		entry := dev.ActivePoints().PointByID(id)
		from := NewEventPoint(10, id, StatePressed, at, at, at)
		UpdatePoint(from, entry.Point())
		ev.AddPoint(entry.Point().Clone())
	}
	return ev
}

func TestSetExclusiveGrabber_Transitions(t *testing.T) {
	dev := newTouchscreen(t)
	got := recordGrabs(t, dev)
	a, b := &testGrabber{"a"}, &testGrabber{"b"}
	ev := pressPoints(dev, 1)
	p := ev.Point(0)

	ev.SetExclusiveGrabber(p, a)
	assert.Equal(t, a, ev.ExclusiveGrabber(p))
	assert.Equal(t, []recordedChange{{a, GrabExclusive, 1, true}}, *got)

	*got = nil
	ev.SetExclusiveGrabber(p, a)
	assert.Empty(t, *got, "regrabbing by the owner is a no-op")

	ev.SetExclusiveGrabber(p, b)
	assert.Equal(t, b, ev.ExclusiveGrabber(p))
	assert.Equal(t, []recordedChange{
		{a, CancelGrabExclusive, 1, true},
		{b, GrabExclusive, 1, true},
	}, *got)

	*got = nil
	ev.SetExclusiveGrabber(p, nil)
	assert.Nil(t, ev.ExclusiveGrabber(p))
	assert.Equal(t, []recordedChange{{b, UngrabExclusive, 1, true}}, *got)
}

func TestSetExclusiveGrabber_RecordsGrabPosition(t *testing.T) {
	dev := newTouchscreen(t)
	ev := pressPoints(dev, 2)
	p := ev.Point(0)
	p.SetGlobalPosition(geom.V(25, 30))

	ev.SetExclusiveGrabber(p, &testGrabber{"a"})

	entry, ok := dev.ActivePoints().QueryPointByID(2)
	require.True(t, ok)
	assert.Equal(t, geom.V(25, 30), entry.Point().GlobalGrabPosition())
}

func TestSetExclusiveGrabber_ReleaseClearsContext(t *testing.T) {
	dev := newTouchscreen(t)
	ev := pressPoints(dev, 1)
	p := ev.Point(0)
	ev.SetExclusiveGrabber(p, &testGrabber{"a"})

	entry, _ := dev.ActivePoints().QueryPointByID(1)
	entry.SetExclusiveGrabberContext("handler")
	ev.SetExclusiveGrabber(p, nil)

	assert.Nil(t, entry.ExclusiveGrabberContext())
}

func TestPassiveGrabbers(t *testing.T) {
	dev := newTouchscreen(t)
	got := recordGrabs(t, dev)
	a, b := &testGrabber{"a"}, &testGrabber{"b"}
	ev := pressPoints(dev, 1)
	p := ev.Point(0)

	assert.True(t, ev.AddPassiveGrabber(p, a))
	assert.False(t, ev.AddPassiveGrabber(p, a), "adding twice is refused")
	assert.True(t, ev.AddPassiveGrabber(p, b))
	assert.Equal(t, []Grabber{a, b}, ev.PassiveGrabbers(p))
	assert.Equal(t, []recordedChange{
		{a, GrabPassive, 1, true},
		{b, GrabPassive, 1, true},
	}, *got)

	assert.True(t, dev.SetPassiveGrabberContext(p, b, "ctx-b"))
	assert.False(t, dev.SetPassiveGrabberContext(p, &testGrabber{"c"}, "nope"))

	*got = nil
	assert.True(t, ev.RemovePassiveGrabber(p, a))
	assert.False(t, ev.RemovePassiveGrabber(p, a))
	assert.Equal(t, []Grabber{b}, ev.PassiveGrabbers(p))
	assert.Equal(t, []recordedChange{{a, UngrabPassive, 1, true}}, *got)

	entry, _ := dev.ActivePoints().QueryPointByID(1)
	assert.Equal(t, "ctx-b", entry.PassiveGrabberContext(b))

	*got = nil
	ev.ClearPassiveGrabbers(p)
	assert.Empty(t, ev.PassiveGrabbers(p))
	assert.Equal(t, []recordedChange{{b, UngrabPassive, 1, true}}, *got)
}

func TestPassiveGrabbers_ReturnsCopy(t *testing.T) {
	dev := newTouchscreen(t)
	ev := pressPoints(dev, 1)
	p := ev.Point(0)
	a := &testGrabber{"a"}
	ev.AddPassiveGrabber(p, a)

	grabbers := ev.PassiveGrabbers(p)
	grabbers[0] = &testGrabber{"intruder"}

	assert.Equal(t, []Grabber{a}, ev.PassiveGrabbers(p))
}

func TestGrabs_UnknownPointIsNoop(t *testing.T) {
	dev := newTouchscreen(t)
	got := recordGrabs(t, dev)
	a := &testGrabber{"a"}

	stray := NewEventPoint(0, 99, StatePressed, geom.Vec2{}, geom.Vec2{}, geom.Vec2{})
	ev := NewPointerEvent(TouchBegin, dev, 0, ModNone, stray)

	ev.SetExclusiveGrabber(ev.Point(0), a)
	assert.False(t, ev.AddPassiveGrabber(ev.Point(0), a))
	assert.False(t, ev.RemovePassiveGrabber(ev.Point(0), a))
	ev.ClearPassiveGrabbers(ev.Point(0))

	assert.Nil(t, ev.ExclusiveGrabber(ev.Point(0)))
	assert.Empty(t, *got)
	assert.Equal(t, 0, dev.ActivePoints().Len(), "lookups must not create points")
}

type sliceGrabber struct{ items []int }

func TestGrabs_NonComparableGrabberIsRefused(t *testing.T) {
	tests := map[string]Grabber{
		"struct with slice": sliceGrabber{items: []int{1}},
		"func":              func() {},
		"map":               map[string]int{},
	}

	for name, g := range tests {
		t.Run(name, func(t *testing.T) {
			dev := newTouchscreen(t)
			got := recordGrabs(t, dev)
			ev := pressPoints(dev, 1)
			p := ev.Point(0)

			assert.NotPanics(t, func() {
				ev.SetExclusiveGrabber(p, g)
				assert.False(t, ev.AddPassiveGrabber(p, g))
				assert.False(t, dev.SetPassiveGrabberContext(p, g, "ctx"))
				assert.False(t, ev.RemovePassiveGrabber(p, g))
				dev.RemoveGrabberEverywhere(g, true)
			})
			assert.Nil(t, ev.ExclusiveGrabber(p))
			assert.Empty(t, ev.PassiveGrabbers(p))
			assert.Empty(t, *got)
		})
	}

	t.Run("comparable value", func(t *testing.T) {
		dev := newTouchscreen(t)
		ev := pressPoints(dev, 1)
		ev.SetExclusiveGrabber(ev.Point(0), testGrabber{"by value"})
		assert.Equal(t, Grabber(testGrabber{"by value"}), ev.ExclusiveGrabber(ev.Point(0)))
	})
}

func TestRemoveGrabberEverywhere(t *testing.T) {
	type tc struct {
		cancel        bool
		wantExclusive GrabTransition
		wantPassive   GrabTransition
	}

	tests := map[string]tc{
		"cancel":  {cancel: true, wantExclusive: CancelGrabExclusive, wantPassive: CancelGrabPassive},
		"release": {cancel: false, wantExclusive: UngrabExclusive, wantPassive: UngrabPassive},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dev := newTouchscreen(t)
			a, b := &testGrabber{"a"}, &testGrabber{"b"}
			ev := pressPoints(dev, 1, 2, 3)
			ev.SetExclusiveGrabber(ev.Point(0), a)
			ev.SetExclusiveGrabber(ev.Point(1), a)
			ev.SetExclusiveGrabber(ev.Point(2), b)
			ev.AddPassiveGrabber(ev.Point(2), a)

			got := recordGrabs(t, dev)
			dev.RemoveGrabberEverywhere(a, tt.cancel)

			assert.Equal(t, []recordedChange{
				{a, tt.wantExclusive, 1, false},
				{a, tt.wantExclusive, 2, false},
				{a, tt.wantPassive, 3, false},
			}, *got)
			assert.Nil(t, ev.ExclusiveGrabber(ev.Point(0)))
			assert.Nil(t, ev.ExclusiveGrabber(ev.Point(1)))
			assert.Equal(t, b, ev.ExclusiveGrabber(ev.Point(2)))
			assert.Empty(t, ev.PassiveGrabbers(ev.Point(2)))
		})
	}
}

func TestFirstPointExclusiveGrabber(t *testing.T) {
	dev := newTouchscreen(t)
	assert.Nil(t, dev.FirstPointExclusiveGrabber())

	a, b := &testGrabber{"a"}, &testGrabber{"b"}
	ev := pressPoints(dev, 4, 2)
	ev.SetExclusiveGrabber(ev.PointByID(4), a)
	ev.SetExclusiveGrabber(ev.PointByID(2), b)

	assert.Equal(t, b, dev.FirstPointExclusiveGrabber())
}

func TestAllPointsGrabbedAndAccepted(t *testing.T) {
	dev := newTouchscreen(t)
	a := &testGrabber{"a"}
	ev := pressPoints(dev, 1, 2)

	assert.False(t, ev.AllPointsGrabbed())
	ev.SetExclusiveGrabber(ev.Point(0), a)
	assert.False(t, ev.AllPointsGrabbed())
	ev.AddPassiveGrabber(ev.Point(1), a)
	assert.True(t, ev.AllPointsGrabbed())

	assert.False(t, ev.AllPointsAccepted())
	ev.Point(0).SetAccepted(true)
	assert.False(t, ev.AllPointsAccepted())
	ev.Accept()
	assert.True(t, ev.AllPointsAccepted())
	assert.True(t, ev.IsAccepted())
}

func TestSendTouchCancel(t *testing.T) {
	dev := newTouchscreen(t)
	a, b, c := &testGrabber{"a"}, &testGrabber{"b"}, &testGrabber{"c"}
	ev := pressPoints(dev, 1, 2, 3)
	ev.SetExclusiveGrabber(ev.Point(0), a)
	ev.SetExclusiveGrabber(ev.Point(1), b)
	ev.AddPassiveGrabber(ev.Point(2), c)

	got := recordGrabs(t, dev)
	var delivered []Grabber
	cancel := NewPointerEvent(TouchCancel, dev, 20, ModNone)
	dev.SendTouchCancel(cancel, func(g Grabber, e *PointerEvent) {
		assert.Same(t, cancel, e)
		delivered = append(delivered, g)
	})

	assert.Equal(t, []Grabber{a, b}, delivered)
	require.Equal(t, 2, cancel.PointCount(), "empty cancel is filled with the grabbed points")
	assert.Equal(t, 1, cancel.Point(0).ID())
	assert.Equal(t, 2, cancel.Point(1).ID())
	assert.Equal(t, []recordedChange{
		{a, UngrabExclusive, 1, true},
		{b, UngrabExclusive, 2, true},
		{c, UngrabPassive, 3, true},
	}, *got)
	for _, id := range []int{1, 2, 3} {
		entry, _ := dev.ActivePoints().QueryPointByID(id)
		assert.False(t, entry.IsGrabbed(), "point %d", id)
	}
}

func TestOnGrabChanged_Unsubscribe(t *testing.T) {
	dev := newTouchscreen(t)
	calls := 0
	unsubscribe := dev.OnGrabChanged(func(GrabChange) { calls++ })
	ev := pressPoints(dev, 1)

	ev.SetExclusiveGrabber(ev.Point(0), &testGrabber{"a"})
	unsubscribe()
	ev.SetExclusiveGrabber(ev.Point(0), nil)

	assert.Equal(t, 1, calls)
}

func TestGrabChange_PointIsSnapshot(t *testing.T) {
	dev := newTouchscreen(t)
	var seen EventPoint
	dev.OnGrabChanged(func(c GrabChange) { seen = c.Point })
	ev := pressPoints(dev, 1)

	ev.SetExclusiveGrabber(ev.Point(0), &testGrabber{"a"})
	ev.Point(0).SetGlobalPosition(geom.V(500, 500))

	assert.Equal(t, geom.V(10, 10), seen.GlobalPosition())
}

func TestPointerEvent_Phases(t *testing.T) {
	type tc struct {
		typ                EventType
		states             []State
		begin, update, end bool
	}

	tests := map[string]tc{
		"mouse press":          {typ: MouseButtonPress, states: []State{StatePressed}, begin: true},
		"mouse move":           {typ: MouseMove, states: []State{StateUpdated}, update: true},
		"mouse release":        {typ: MouseButtonRelease, states: []State{StateReleased}, end: true},
		"touch update pressed": {typ: TouchUpdate, states: []State{StatePressed, StatePressed}, begin: true},
		"touch update mixed":   {typ: TouchUpdate, states: []State{StatePressed, StateUpdated}, update: true},
		"touch update released": {
			typ: TouchUpdate, states: []State{StateReleased, StateReleased}, end: true,
		},
		"wheel": {typ: Wheel, states: []State{StateUpdated}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			ev := NewPointerEvent(tt.typ, nil, 0, ModNone)
			for i, s := range tt.states {
				ev.AddPoint(NewEventPoint(0, i, s, geom.Vec2{}, geom.Vec2{}, geom.Vec2{}))
			}
			assert.Equal(t, tt.begin, ev.IsBeginEvent())
			assert.Equal(t, tt.update, ev.IsUpdateEvent())
			assert.Equal(t, tt.end, ev.IsEndEvent())
		})
	}
}
