// Command swipeflow runs the SwipeFlow extension backend.
package main

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

// For testing
var osExit = os.Exit

var rootCmd = &cobra.Command{
	Use:   "swipeflow",
	Short: "SwipeFlow extension backend",
	Long:  `Backend API for the SwipeFlow browser extension: access keys, user accounts, usage accounting and site configurations.`,
}

// Setup command flags
var (
	configPath       string
	managementToken  string
	interactiveSetup bool
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Write the initial .env configuration",
	Long:  `Generate a management token and write the .env file the server reads on startup.`,
	Run:   runSetup,
}

func init() {
	setupCmd.Flags().StringVarP(&configPath, "config", "c", ".env", "Path to the .env file to write")
	setupCmd.Flags().StringVar(&managementToken, "management-token", "", "Management token (generated when empty)")
	setupCmd.Flags().BoolVarP(&interactiveSetup, "interactive", "i", false, "Prompt for values instead of using flags")

	rootCmd.AddCommand(setupCmd)
	rootCmd.AddCommand(serverCmd)
}

func runSetup(cmd *cobra.Command, args []string) {
	if interactiveSetup {
		reader := bufio.NewReader(os.Stdin)

		fmt.Printf("Configuration file path [%s]: ", configPath)
		if input, _ := reader.ReadString('\n'); strings.TrimSpace(input) != "" {
			configPath = strings.TrimSpace(input)
		}

		fmt.Print("Management token (leave empty to generate): ")
		if input, _ := reader.ReadString('\n'); strings.TrimSpace(input) != "" {
			managementToken = strings.TrimSpace(input)
		}
	}

	if managementToken == "" {
		token, err := generateSecret(32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to generate management token: %v\n", err)
			osExit(1)
			return
		}
		managementToken = token
	}

	if dir := filepath.Dir(configPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create config directory: %v\n", err)
			osExit(1)
			return
		}
	}

	content := strings.Join([]string{
		"# SwipeFlow backend configuration",
		"MANAGEMENT_TOKEN=" + managementToken,
		"LISTEN_ADDR=:8080",
		"DATABASE_PATH=./data/swipeflow.db",
		"LOG_LEVEL=info",
		"LOG_FORMAT=json",
		"",
	}, "\n")

	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to write %s: %v\n", configPath, err)
		osExit(1)
		return
	}

	fmt.Printf("Wrote %s\n", configPath)
	fmt.Printf("Management token: %s\n", managementToken)
	fmt.Println("Keep the token safe; it guards the admin API.")
}

// generateSecret returns n random bytes hex-encoded.
func generateSecret(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		osExit(1)
	}
}
