package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/muurk/easywifi/internal/credentials"
	"github.com/muurk/easywifi/internal/ui"
)

// Credentials command flags
var (
	credSSID     string
	credPassword string
	credForce    bool
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "Manage the stored Wi-Fi credentials",
	Long: `Show, set or erase the credential record the device connects with.

The record is obfuscated with the configured seed, so a record written with
one seed cannot be read with another.`,
}

var credentialsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored network name",
	Long: `Show the stored network name. The password is never printed; only
whether one is set.`,
	Args: cobra.NoArgs,
	RunE: runCredentialsShow,
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a network name and password",
	Long: `Store a network name and password in the credential record, replacing
any previous one. The password is prompted for when --password is not given.

Both fields are limited to 31 bytes.`,
	Example: `  # Prompt for the password
  easywifi credentials set --ssid HomeNetwork

  # Open network
  easywifi credentials set --ssid CafeWiFi --password ""`,
	Args: cobra.NoArgs,
	RunE: runCredentialsSet,
}

var credentialsEraseCmd = &cobra.Command{
	Use:   "erase",
	Short: "Erase the stored credentials",
	Long: `Overwrite and delete the credential record. The next start falls back to
the placeholder network and then opens the setup access point.`,
	Example: `  # Erase after confirmation
  easywifi credentials erase

  # Erase without asking
  easywifi credentials erase --force`,
	Args: cobra.NoArgs,
	RunE: runCredentialsErase,
}

func init() {
	credentialsSetCmd.Flags().StringVar(&credSSID, "ssid", "", "Network name (required)")
	credentialsSetCmd.Flags().StringVar(&credPassword, "password", "", "Network password (prompted when omitted)")
	_ = credentialsSetCmd.MarkFlagRequired("ssid")

	credentialsEraseCmd.Flags().BoolVar(&credForce, "force", false, "Skip the confirmation prompt")

	credentialsCmd.AddCommand(credentialsShowCmd)
	credentialsCmd.AddCommand(credentialsSetCmd)
	credentialsCmd.AddCommand(credentialsEraseCmd)
	rootCmd.AddCommand(credentialsCmd)
}

func runCredentialsShow(cmd *cobra.Command, args []string) error {
	store := openStore(cfg.Credentials)
	printer := ui.NewPrinter(os.Stdout)

	var cred credentials.Credential
	if store.Read(&cred) == 0 {
		printer.PrintWarning("No stored credentials", map[string]string{
			"Record":   store.Path(),
			"Fallback": cfg.Credentials.FallbackSSID,
		})
		return nil
	}

	password := "not set (open network)"
	if cred.Password != "" {
		password = "set"
	}
	printer.PrintSuccess("Stored credentials", map[string]string{
		"Network":  cred.SSID,
		"Password": password,
		"Record":   store.Path(),
	})
	return nil
}

func runCredentialsSet(cmd *cobra.Command, args []string) error {
	password := credPassword
	if !cmd.Flags().Changed("password") {
		p, err := promptPassword(credSSID)
		if err != nil {
			return err
		}
		password = p
	}

	cred := credentials.Credential{SSID: credSSID, Password: password}
	if err := cred.Validate(); err != nil {
		return err
	}

	store := openStore(cfg.Credentials)
	if _, err := store.Write(cred); err != nil {
		return fmt.Errorf("failed to store credentials: %w", err)
	}

	ui.NewPrinter(os.Stdout).PrintSuccess("Credentials stored", map[string]string{
		"Network": cred.SSID,
		"Record":  store.Path(),
	})
	return nil
}

func promptPassword(ssid string) (string, error) {
	fmt.Printf("Password for %s: ", ssid)

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func runCredentialsErase(cmd *cobra.Command, args []string) error {
	store := openStore(cfg.Credentials)
	printer := ui.NewPrinter(os.Stdout)

	if !store.Check() {
		printer.PrintWarning("Nothing to erase", map[string]string{"Record": store.Path()})
		return nil
	}

	if !credForce && !ui.EraseConfirmation(os.Stdin, os.Stdout, store.Path()) {
		return nil
	}

	if !store.Erase() {
		return fmt.Errorf("failed to erase %s", store.Path())
	}
	printer.PrintSuccess("Credentials erased", map[string]string{"Record": store.Path()})
	return nil
}
