package main

import (
	"fmt"

	"github.com/phinze/touchpoint/internal/input"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the input devices the configuration registers",
	RunE:  runDevices,
}

func runDevices(cmd *cobra.Command, args []string) error {
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	defer p.Close()

	devs := p.reg.All()
	if len(devs) == 0 {
		fmt.Println("No devices configured. The emulator and Stream Deck register their own at startup.")
		return nil
	}

	for _, dev := range devs {
		fmt.Printf("%-24s %-12s id=%-6d", dev.Name(), dev.Kind(), dev.SystemID())
		if dev.IsPointing() {
			fmt.Printf(" pointer=%s points=%d caps=%s", dev.PointerType(), dev.MaxPoints(), dev.Capabilities())
		}
		if dev.Seat() != "" {
			fmt.Printf(" seat=%s", dev.Seat())
		}
		if dev.UniqueID() != input.NoUniqueID {
			fmt.Printf(" unique=%d", dev.UniqueID())
		}
		fmt.Println()
	}

	// FindPrimary, unlike PrimaryPointingDevice, never synthesizes one.
	fmt.Println()
	for _, kind := range []input.DeviceKind{input.DeviceMouse, input.DeviceTouchPad, input.DeviceTouchScreen, input.DeviceKeyboard} {
		if primary, ok := p.reg.FindPrimary("", kind); ok {
			fmt.Printf("Primary %s: %s\n", kind, primary.Name())
		}
	}
	return nil
}
