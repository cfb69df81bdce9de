package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dvidsharvest/pkg/auth"
	"dvidsharvest/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored DVIDS API key",
	Long: `Manage the DVIDS API key used by the metadata and download commands.

The key is stored in:
  - the system keychain, when available
  - otherwise an encrypted file in the user config directory

DVIDS_API_KEY and --api-key always take precedence over the stored key.`,
}

// setKeyCmd represents the auth set-key command
var setKeyCmd = &cobra.Command{
	Use:   "set-key",
	Short: "Store the API key",
	Long:  `Prompt for the API key and store it securely. The key is not echoed.`,
	Args:  cobra.NoArgs,
	RunE:  runSetKey,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the API key comes from",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

// clearCmd represents the auth clear command
var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored API key",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(setKeyCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(clearCmd)
}

func runSetKey(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	fmt.Print("DVIDS API key: ")
	key, err := readPassword()
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return auth.ErrInvalidKey
	}

	store, err := manager.Set(key)
	if err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("API key stored in %s", store))
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	key, source, err := manager.Get()
	if errors.Is(err, auth.ErrKeyNotFound) {
		ui.PrintWarning("No API key configured")
		fmt.Println("\nTo store one, run:")
		fmt.Println("  dvidsharvest auth set-key")
		return nil
	}
	if err != nil {
		return err
	}

	ui.PrintInfo("API key", auth.Mask(key))
	ui.PrintInfo("Source", source)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize key store: %w", err)
	}

	if err := manager.Delete(); err != nil {
		if errors.Is(err, auth.ErrKeyNotFound) {
			ui.PrintWarning("No stored API key")
			return nil
		}
		return err
	}
	ui.PrintSuccess("Stored API key removed")
	return nil
}

// readPassword reads a line without echo when stdin is a terminal
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		password, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(password), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
