package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/phinze/touchpoint/internal/config"
	"github.com/spf13/cobra"
)

var setupCmd = &cobra.Command{
	Use:               "setup",
	Short:             "Interactive setup: write the config file",
	PersistentPreRunE: setupPreRun,
	RunE:              runSetup,
}

// setupPreRun starts from the defaults when the existing config does not
// load, since setup is how a broken config gets rewritten.
func setupPreRun(cmd *cobra.Command, args []string) error {
	loaded, err := loadConfig()
	if err != nil {
		fmt.Printf("Existing config not loaded (%v); starting from defaults.\n\n", err)
		loaded = config.Default()
	}
	return applyConfig(loaded)
}

func runSetup(cmd *cobra.Command, args []string) error {
	reader := bufio.NewReader(os.Stdin)
	fmt.Println("=== Touchpoint Setup ===")
	fmt.Println()

	// The pre-run loaded the existing config, which seeds the defaults.
	next := *cfg

	fmt.Println("-- Logging --")
	next.Log.Level = prompt(reader, "Log level", cfg.Log.Level)
	fmt.Println()

	fmt.Println("-- Delivery --")
	sync, err := strconv.ParseBool(prompt(reader, "Synchronous delivery (true/false)", strconv.FormatBool(cfg.Delivery.Synchronous)))
	if err != nil {
		return fmt.Errorf("synchronous: %w", err)
	}
	next.Delivery.Synchronous = sync
	if next.Delivery.FlushTimeoutMS, err = promptInt(reader, "Flush timeout in ms (0 waits forever)", cfg.Delivery.FlushTimeoutMS); err != nil {
		return err
	}
	fmt.Println()

	fmt.Println("-- Stream Deck --")
	next.StreamDeck.Serial = prompt(reader, "Serial (empty for any)", cfg.StreamDeck.Serial)
	brightness, err := promptInt(reader, "Brightness percent", int(cfg.StreamDeck.Brightness))
	if err != nil {
		return err
	}
	if brightness < 0 || brightness > 100 {
		return fmt.Errorf("brightness %d: want 0-100", brightness)
	}
	next.StreamDeck.Brightness = byte(brightness)
	fmt.Println()

	if err := next.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := config.WriteConfigFile(&next); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	fmt.Printf("Config written to %s\n", config.DefaultConfigPath())
	fmt.Println("Setup complete!")
	return nil
}

// prompt asks for a value with an optional default.
func prompt(reader *bufio.Reader, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("  %s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("  %s: ", label)
	}
	line, _ := reader.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal
	}
	return line
}

func promptInt(reader *bufio.Reader, label string, defaultVal int) (int, error) {
	s := prompt(reader, label, strconv.Itoa(defaultVal))
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", strings.ToLower(label), err)
	}
	return n, nil
}
