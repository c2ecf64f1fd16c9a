package streamdeck

import (
	"image"
	"time"

	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/input"
	"github.com/phinze/touchpoint/internal/wsi"
)

// The strip only reports finished gestures, so the source replays them as
// touch sequences with synthetic timing.
const (
	shortTapHold = 50 * time.Millisecond
	longTapHold  = 600 * time.Millisecond
	swipeStep    = 16 * time.Millisecond

	defaultSwipeSteps = 8

	// stripFinger is the id of the one contact the strip reports.
	stripFinger = 1
	// fingerSize is the contact diameter reported for the strip, in pixels.
	fingerSize = 12.0
)

func toVec(p image.Point) geom.Vec2 {
	return geom.V(float64(p.X), float64(p.Y))
}

func ms(d time.Duration) uint64 {
	return uint64(d.Milliseconds())
}

func stripPoint(state input.State, global geom.Vec2) wsi.TouchPoint {
	return wsi.TouchPoint{
		ID:    stripFinger,
		State: state,
		Area:  geom.RectFromCenter(global, geom.V(fingerSize, fingerSize)),
	}
}

func frame(typ input.EventType, ts uint64, p wsi.TouchPoint) *wsi.Touch {
	return &wsi.Touch{
		InputEnvelope: wsi.InputEnvelope{Timestamp: ts},
		Type:          typ,
		Points:        []wsi.TouchPoint{p},
	}
}

// tapFrames returns a press at ts and a release after the hold time of t.
func tapFrames(t TouchType, at geom.Vec2, ts uint64) []*wsi.Touch {
	hold := shortTapHold
	if t == TouchLong {
		hold = longTapHold
	}
	return []*wsi.Touch{
		frame(input.TouchBegin, ts, stripPoint(input.StatePressed, at)),
		frame(input.TouchEnd, ts+ms(hold), stripPoint(input.StateReleased, at)),
	}
}

// swipeFrames returns a press at from, steps evenly spaced moves ending at
// to and a release at to. Frames are swipeStep apart.
func swipeFrames(from, to geom.Vec2, steps int, ts uint64) []*wsi.Touch {
	if steps < 1 {
		steps = 1
	}
	frames := make([]*wsi.Touch, 0, steps+2)
	frames = append(frames, frame(input.TouchBegin, ts, stripPoint(input.StatePressed, from)))

	delta := to.Sub(from)
	for i := 1; i <= steps; i++ {
		pos := from.Add(delta.Mul(float64(i) / float64(steps)))
		frames = append(frames, frame(input.TouchUpdate, ts+uint64(i)*ms(swipeStep), stripPoint(input.StateUpdated, pos)))
	}

	frames = append(frames, frame(input.TouchEnd, ts+uint64(steps+1)*ms(swipeStep), stripPoint(input.StateReleased, to)))
	return frames
}
