package streamdeck

import (
	"context"
	"fmt"
	"image"
	"time"

	sd "rafaelmartins.com/p/streamdeck"
)

// Hardware adapts a USB Stream Deck to Deck.
type Hardware struct {
	dev *sd.Device
}

var _ Deck = (*Hardware)(nil)

// Open finds the device with the given serial (any device when empty) and
// opens it. The USB stack can hang when it is in a bad state, so the lookup
// gives up after timeout.
func Open(ctx context.Context, serial string, timeout time.Duration) (*Hardware, error) {
	type result struct {
		dev *sd.Device
		err error
	}
	ch := make(chan result, 1)

	go func() {
		dev, err := sd.GetDevice(serial)
		if err != nil {
			ch <- result{nil, err}
			return
		}
		if err := dev.Open(); err != nil {
			ch <- result{nil, err}
			return
		}
		ch <- result{dev, nil}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("opening stream deck: %w", r.err)
		}
		return &Hardware{dev: r.dev}, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("opening stream deck: timed out after %s", timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Hardware) Close() error                 { return h.dev.Close() }
func (h *Hardware) GetModelName() string         { return h.dev.GetModelName() }
func (h *Hardware) GetKeyCount() byte            { return h.dev.GetKeyCount() }
func (h *Hardware) GetDialCount() byte           { return h.dev.GetDialCount() }
func (h *Hardware) GetTouchStripSupported() bool { return h.dev.GetTouchStripSupported() }

func (h *Hardware) GetTouchStripImageRectangle() (image.Rectangle, error) {
	return h.dev.GetTouchStripImageRectangle()
}

func (h *Hardware) SetBrightness(perc byte) error { return h.dev.SetBrightness(perc) }

func (h *Hardware) AddKeyHandler(key KeyID, fn KeyHandler) error {
	return h.dev.AddKeyHandler(sd.KeyID(key), func(_ *sd.Device, k *sd.Key) error {
		return fn(key, k)
	})
}

func (h *Hardware) AddDialRotateHandler(dial DialID, fn DialRotateHandler) error {
	return h.dev.AddDialRotateHandler(sd.DialID(dial), func(_ *sd.Device, _ *sd.Dial, delta int8) error {
		return fn(dial, delta)
	})
}

func (h *Hardware) AddDialSwitchHandler(dial DialID, fn DialSwitchHandler) error {
	return h.dev.AddDialSwitchHandler(sd.DialID(dial), func(_ *sd.Device, di *sd.Dial) error {
		return fn(dial, di)
	})
}

func (h *Hardware) AddTouchStripTouchHandler(fn TouchStripTouchHandler) error {
	return h.dev.AddTouchStripTouchHandler(func(_ *sd.Device, t sd.TouchStripTouchType, p image.Point) error {
		// Same numbering as the library: short is 1, long is 2.
		tt := TouchType(t)
		if tt != TouchLong {
			tt = TouchShort
		}
		return fn(tt, p)
	})
}

func (h *Hardware) AddTouchStripSwipeHandler(fn TouchStripSwipeHandler) error {
	return h.dev.AddTouchStripSwipeHandler(func(_ *sd.Device, origin, destination image.Point) error {
		return fn(origin, destination)
	})
}

func (h *Hardware) Listen(errCh chan error) error { return h.dev.Listen(errCh) }
