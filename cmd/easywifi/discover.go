package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/discovery"
	"github.com/muurk/easywifi/internal/logging"
)

// Discover command flags
var (
	scanTimeout int
	discoverID  string
	noRemember  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find provisioned devices on the network",
	Long: `Find easywifi devices announcing themselves over mDNS/DNS-SD.

Devices announce once they have joined a network (see 'easywifi start
--announce'). Found devices are remembered in the config file with their last
address.`,
	Example: `  # Scan for 10 seconds (default)
  easywifi discover

  # Quick 3-second scan
  easywifi discover --timeout 3

  # Wait for one device by id
  easywifi discover --id 3f2a9c1e-7d4b-4c55-9a0e-2b1f6d8c4a11`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

func init() {
	discoverCmd.Flags().IntVar(&scanTimeout, "timeout", 10, "Scan timeout in seconds")
	discoverCmd.Flags().StringVar(&discoverID, "id", "", "Wait for the device with this id")
	discoverCmd.Flags().BoolVar(&noRemember, "no-remember", false, "Do not record found devices in the config file")

	rootCmd.AddCommand(discoverCmd)
}

func runDiscover(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	timeout := time.Duration(scanTimeout) * time.Second

	var devices []*discovery.Device
	if discoverID != "" {
		fmt.Printf("Waiting for device %s (timeout: %ds)...\n\n", discoverID, scanTimeout)
		wctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		device, err := discovery.FindDevice(wctx, discoverID)
		if err != nil {
			return fmt.Errorf("device %s not found: %w", discoverID, err)
		}
		devices = []*discovery.Device{device}
	} else {
		fmt.Printf("Scanning for easywifi devices (timeout: %ds)...\n\n", scanTimeout)
		found, err := discovery.ScanForDevices(ctx, timeout)
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		devices = found
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		fmt.Println("\nTroubleshooting:")
		fmt.Println("  - Ensure the device finished provisioning and is announcing")
		fmt.Println("  - Check that this computer is on the same network")
		fmt.Println("  - Try increasing --timeout for slower networks")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))

	for i, device := range devices {
		name := device.Hostname
		if known := cfg.GetDevice(device.ID); known != nil && known.Nickname != "" {
			name = known.Nickname + " (" + device.Hostname + ")"
		}
		fmt.Printf("%d. %s\n", i+1, name)
		fmt.Printf("   ID:      %s\n", device.ID)
		fmt.Printf("   IP:      %s:%d\n", device.IP, device.Port)
		if ssid := device.SSID(); ssid != "" {
			fmt.Printf("   Network: %s\n", ssid)
		}
		fmt.Println()

		cfg.UpdateDeviceLastSeen(device.ID, device.IP, device.Hostname)
	}

	if noRemember {
		return nil
	}
	if err := saveConfig(); err != nil {
		logging.Warn("Could not remember discovered devices", zap.Error(err))
	}
	return nil
}
