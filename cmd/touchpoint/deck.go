package main

import (
	"context"
	"time"

	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/source/streamdeck"
	"github.com/phinze/touchpoint/internal/wsi"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	mainWindow wsi.WindowID = 1

	deckOpenTimeout = 5 * time.Second
	deckPollInterval = 2 * time.Second
	deckCloseTimeout = 3 * time.Second
)

// deckStrip is where the Stream Deck Plus strip sits in its own window.
var deckStrip = geom.R(0, 0, 800, 100)

var deckCmd = &cobra.Command{
	Use:   "deck",
	Short: "Drive the dispatcher from a Stream Deck, without a window",
	RunE:  runDeck,
}

func runDeck(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	w := dispatch.NewWindow(mainWindow, "stream deck", deckStrip)
	p.disp.AddWindow(w)
	stripScene(w, deckStrip, 4, logger.Infof)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return p.coord.Run(gctx)
	})
	g.Go(func() error {
		// The consumer loop only stops on cancellation.
		defer cancel()
		return runDeckLoop(gctx, p.coord, mainWindow, deckStrip.Min)
	})
	return g.Wait()
}

// runDeckLoop waits for a Stream Deck, runs a source on it until it goes
// away and starts over. It returns when ctx ends.
func runDeckLoop(ctx context.Context, sink streamdeck.Sink, window wsi.WindowID, origin geom.Vec2) error {
	for {
		hw := waitForDeck(ctx)
		if hw == nil {
			return nil
		}

		src := streamdeck.New(hw, sink, streamdeck.Options{
			Window:     window,
			Origin:     origin,
			Brightness: cfg.StreamDeck.Brightness,
		})
		err := src.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		logger.Warnf("%v; waiting for reconnect", err)
		closeDeck(hw)
	}
}

// waitForDeck polls for a Stream Deck until one opens or ctx ends.
func waitForDeck(ctx context.Context) *streamdeck.Hardware {
	announced := false
	for {
		hw, err := streamdeck.Open(ctx, cfg.StreamDeck.Serial, deckOpenTimeout)
		if err == nil {
			logger.Infof("connected to %s", hw.GetModelName())
			return hw
		}
		if !announced {
			logger.Infof("waiting for device: %v", err)
			announced = true
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(deckPollInterval):
		}
	}
}

// closeDeck closes hw, giving up after deckCloseTimeout since a vanished
// device can block Close.
func closeDeck(hw *streamdeck.Hardware) {
	done := make(chan struct{})
	go func() {
		if err := hw.Close(); err != nil {
			logger.Debugf("closing device: %v", err)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(deckCloseTimeout):
		logger.Warn("device close timed out")
	}
}
