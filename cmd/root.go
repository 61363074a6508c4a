package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bridgepay",
	Short: "A CLI for escrow payments across EVM chains",
	Long: `bridgepay is a command-line tool that moves native or stable-coin value
into an on-chain escrow contract, bridging between supported EVM chains.
Pick an amount, a token, and a chain pair; bridgepay quotes the transfer,
runs the approval and deposit sequence, and tracks it to confirmation.

Examples:
  bridgepay pay 50 stable from base to arbitrum --counterparty 0xabc... --request-id job-1421
  bridgepay quote 0.25 native from ethereum to base
  bridgepay balances 0x1234...abcd
  bridgepay list-chains
  bridgepay status <tx-hash> --chain base`,
	Version: "0.1.0",
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
