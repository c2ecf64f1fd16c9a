package input

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevice_Defaults(t *testing.T) {
	mouse := NewDevice("mouse", 1, DeviceMouse)
	assert.Equal(t, PointerGeneric, mouse.PointerType())
	assert.Equal(t, CapPosition, mouse.Capabilities())
	assert.Equal(t, 1, mouse.MaxPoints())
	assert.Equal(t, NoUniqueID, mouse.UniqueID())
	assert.True(t, mouse.IsPointing())
	require.NotNil(t, mouse.ActivePoints())

	kbd := NewDevice("keyboard", 2, DeviceKeyboard)
	assert.False(t, kbd.IsPointing())
	assert.Nil(t, kbd.ActivePoints())
	assert.Equal(t, PointerUnknown, kbd.PointerType())
}

func TestDevice_Equal(t *testing.T) {
	type tc struct {
		a, b *Device
		want bool
	}

	pen := NewDevice("pen", 10, DeviceStylus, WithPointerType(PointerPen), WithUniqueID(7))
	tests := map[string]tc{
		"same device": {a: pen, b: pen, want: true},
		"same identity": {
			a:    pen,
			b:    NewDevice("other name", 10, DeviceStylus, WithPointerType(PointerPen), WithUniqueID(7)),
			want: true,
		},
		"different system id": {
			a: pen, b: NewDevice("pen", 11, DeviceStylus, WithPointerType(PointerPen), WithUniqueID(7)),
		},
		"eraser end of the same pen": {
			a: pen, b: NewDevice("pen", 10, DeviceStylus, WithPointerType(PointerEraser), WithUniqueID(7)),
		},
		"different tool": {
			a: pen, b: NewDevice("pen", 10, DeviceStylus, WithPointerType(PointerPen), WithUniqueID(8)),
		},
		"keyboards compare by system id": {
			a:    NewDevice("a", 3, DeviceKeyboard),
			b:    NewDevice("b", 3, DeviceKeyboard),
			want: true,
		},
		"nil vs device": {a: nil, b: pen},
		"nil vs nil":    {want: true},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestDevice_Destroy(t *testing.T) {
	dev := NewDevice("ts", 5, DeviceTouchScreen)
	dev.ActivePoints().PointByID(1)
	dev.Destroy()

	assert.Nil(t, dev.ActivePoints())
	assert.False(t, dev.IsPointing())
	assert.NotPanics(t, func() { dev.RemoveGrabberEverywhere(&testGrabber{"a"}, true) })
}

func TestParseHelpers(t *testing.T) {
	kind, err := ParseDeviceKind("TouchScreen")
	require.NoError(t, err)
	assert.Equal(t, DeviceTouchScreen, kind)

	_, err = ParseDeviceKind("trackball")
	assert.Error(t, err)

	pt, err := ParsePointerType("eraser")
	require.NoError(t, err)
	assert.Equal(t, PointerEraser, pt)

	caps, err := ParseCapabilities([]string{"position", "Pressure", "velocity"})
	require.NoError(t, err)
	assert.True(t, caps.Has(CapPosition|CapPressure|CapVelocity))
	assert.False(t, caps.Has(CapArea))
	assert.Equal(t, "position|pressure|velocity", caps.String())

	_, err = ParseCapabilities([]string{"position", "telepathy"})
	assert.Error(t, err)
	assert.Equal(t, "none", CapNone.String())
}

func TestActivePointTable(t *testing.T) {
	dev := newTouchscreen(t)
	table := dev.ActivePoints()

	e := table.PointByID(5)
	assert.Same(t, e, table.PointByID(5))
	assert.Equal(t, 5, e.Point().ID())
	assert.Same(t, dev, e.Point().Device())

	table.PointByID(2)
	table.PointByID(9)
	assert.Equal(t, []int{2, 5, 9}, table.IDs())
	assert.Equal(t, 3, table.Len())

	var visited []int
	table.Range(func(e *PointEntry) bool {
		visited = append(visited, e.Point().ID())
		return e.Point().ID() < 5
	})
	assert.Equal(t, []int{2, 5}, visited)

	assert.True(t, table.RemovePointByID(5))
	assert.False(t, table.RemovePointByID(5))
	_, ok := table.QueryPointByID(5)
	assert.False(t, ok)

	table.Clear()
	assert.Equal(t, 0, table.Len())
}
