package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/phinze/touchpoint/internal/config"
	"github.com/phinze/touchpoint/internal/source/streamdeck"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check config and device health",
	// Reports load errors itself instead of failing in the root hook.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Touchpoint Status ===")
	fmt.Println()

	allOK := true

	// Config file
	if configPath != "" {
		os.Setenv(config.EnvConfig, configPath)
	}
	path := config.DefaultConfigPath()
	fmt.Printf("Config file: %s\n", path)
	if _, err := os.Stat(path); err == nil {
		fmt.Println("  Status: found")
	} else {
		fmt.Println("  Status: not found, using defaults")
	}

	loaded, err := config.Load()
	if err != nil {
		fmt.Printf("  Load error: %v\n", err)
		allOK = false
	}
	fmt.Println()

	if loaded != nil {
		fmt.Println("Delivery:")
		fmt.Printf("  Synchronous: %t\n", loaded.Delivery.Synchronous)
		if loaded.Delivery.FlushTimeoutMS > 0 {
			fmt.Printf("  Flush timeout: %dms\n", loaded.Delivery.FlushTimeoutMS)
		} else {
			fmt.Println("  Flush timeout: none")
		}
		fmt.Printf("  Double click: %dms, %gpx\n", loaded.Input.DoubleClickIntervalMS, loaded.Input.DoubleClickDistance)
		fmt.Printf("  Configured devices: %d\n", len(loaded.Devices))
		fmt.Println()
	}

	// Device check (quick USB lookup)
	fmt.Println("Stream Deck:")
	serial := ""
	if loaded != nil {
		serial = loaded.StreamDeck.Serial
	}
	hw, err := streamdeck.Open(context.Background(), serial, 2*time.Second)
	if err == nil {
		fmt.Printf("  Device: CONNECTED (%s)\n", hw.GetModelName())
		hw.Close()
	} else {
		fmt.Printf("  Device: not detected (%v)\n", err)
	}
	fmt.Println()

	if allOK {
		fmt.Println("All checks passed.")
	} else {
		fmt.Println("Some checks failed. Run 'touchpoint setup' to write a config.")
	}
	return nil
}
