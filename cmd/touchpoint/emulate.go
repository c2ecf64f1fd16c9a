package main

import (
	"errors"

	"github.com/phinze/touchpoint/internal/dispatch"
	"github.com/phinze/touchpoint/internal/geom"
	"github.com/phinze/touchpoint/internal/source/emulator"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var emulateWithDeck bool

var emulateCmd = &cobra.Command{
	Use:   "emulate",
	Short: "Open a window that turns mouse, touch and keyboard input into events",
	Long: `Open a window that turns mouse, touch and keyboard input into events.

The window's frame loop is the consumer. With --deck, a Stream Deck feeds the
same window from another goroutine and its strip maps to the window's bottom
edge.`,
	RunE: runEmulate,
}

func init() {
	emulateCmd.Flags().BoolVar(&emulateWithDeck, "deck", false, "also read a Stream Deck")
}

func runEmulate(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	width, height := float64(cfg.Emulator.Width), float64(cfg.Emulator.Height)
	w := dispatch.NewWindow(mainWindow, cfg.Emulator.Title, geom.R(0, 0, width, height))
	p.disp.AddWindow(w)

	emu := emulator.New(p.coord, p.disp, w, emulator.Options{
		Title:  cfg.Emulator.Title,
		Width:  cfg.Emulator.Width,
		Height: cfg.Emulator.Height,
	})
	emulatorScene(w, emu.Logf)

	g, gctx := errgroup.WithContext(ctx)
	if emulateWithDeck {
		strip := deckStrip.Translate(geom.V(0, height-deckStrip.Size().Y))
		stripScene(w, strip, 4, emu.Logf)
		g.Go(func() error {
			return runDeckLoop(gctx, p.coord, mainWindow, strip.Min)
		})
	}

	// ebiten needs the main goroutine, which makes it the consumer.
	runErr := emu.Run(gctx)
	cancel()
	return errors.Join(runErr, g.Wait())
}
