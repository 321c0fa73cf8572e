// Easywifi provisions Wi-Fi credentials on a headless device.
//
// It tries the stored network and, when that fails, opens a temporary
// access point with a captive portal through which a phone can supply new
// credentials. It also manages the stored record and finds provisioned
// devices on the network.
//
// Usage:
//
//	easywifi [command] [flags]
//
// See 'easywifi --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/easywifi/internal/config"
	"github.com/muurk/easywifi/internal/logging"
	"github.com/muurk/easywifi/internal/version"
)

func main() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	configPath string
	logLevel   string
)

// cfg is loaded before every command runs.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "easywifi",
	Short: "Headless Wi-Fi provisioning with a captive portal",
	Long: `Provision Wi-Fi credentials on a device with no screen or keyboard.

easywifi tries the stored network first. If that fails it becomes a temporary
access point: phones that join it are sent to a small setup page where they
pick a network and enter its password. The device then tries again with the
new credentials.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded

		level := logLevel
		if level == "" {
			level = cfg.LogLevel
		}
		return logging.Initialize(level)
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/easywifi/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides EASYWIFI_LOG_LEVEL")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("easywifi %s\n", version.Full())
	},
}
