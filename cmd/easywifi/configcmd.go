package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/easywifi/internal/config"
	"github.com/muurk/easywifi/internal/ui"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the defaults",
	Long: `Write a configuration file holding the default settings and a new device
id. An existing file is kept unless --force is given.`,
	Example: `  # Default location
  easywifi config init

  # Somewhere else
  easywifi --config /etc/easywifi/config.yaml config init`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetNicknameCmd = &cobra.Command{
	Use:   "nickname <device-id> <name>",
	Short: "Give a discovered device a friendly name",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigNickname,
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetNicknameCmd)
	rootCmd.AddCommand(configCmd)
}

// resolvedConfigPath returns --config or the platform default.
func resolvedConfigPath() (string, error) {
	if configPath != "" {
		return configPath, nil
	}
	return config.GetConfigPath()
}

func saveConfig() error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}
	return cfg.SaveTo(path)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	fresh := config.Default()
	if err := fresh.SaveTo(path); err != nil {
		return err
	}

	ui.NewPrinter(os.Stdout).PrintSuccess("Configuration written", map[string]string{
		"Path":      path,
		"Device ID": fresh.DeviceID,
	})
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := resolvedConfigPath()
	if err != nil {
		return err
	}

	data, err := cfg.Marshal(path)
	if err != nil {
		return err
	}
	fmt.Print(string(data))

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr)
		ui.NewPrinter(os.Stderr).PrintWarning("Configuration has problems", map[string]string{"Error": err.Error()})
	}
	return nil
}

func runConfigNickname(cmd *cobra.Command, args []string) error {
	cfg.SetDeviceNickname(args[0], args[1])
	if err := saveConfig(); err != nil {
		return err
	}
	fmt.Printf("Device %s is now %q\n", args[0], args[1])
	return nil
}
