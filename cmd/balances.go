package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgepay/config"
	"bridgepay/pkg/balance"
	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
	"bridgepay/pkg/types"
)

var (
	watchBalances   bool
	balanceInterval int
)

var balancesCmd = &cobra.Command{
	Use:   "balances <address>",
	Short: "Show native and stable balances across all chains",
	Long: `Fetch the native and stable-coin balances of an address on every
supported chain. Chains are queried concurrently; one chain failing does
not hide the others.

Examples:
  bridgepay balances 0x1234...abcd
  bridgepay balances 0x1234...abcd --watch
  bridgepay balances 0x1234...abcd --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runBalances,
}

func init() {
	rootCmd.AddCommand(balancesCmd)

	balancesCmd.Flags().BoolVarP(&watchBalances, "watch", "w", false, "Refresh balances continuously")
	balancesCmd.Flags().IntVar(&balanceInterval, "interval", 30, "Polling interval in seconds (when watching)")
}

func runBalances(cmd *cobra.Command, args []string) {
	address := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	registry := chain.Default()
	reader, err := chainrpc.NewEVMReader(registry, cfg.RPCURLs)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer reader.Close()

	tracker := balance.NewTracker(registry, reader)
	ctx := context.Background()

	if watchBalances {
		if jsonOutput {
			fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
			os.Exit(1)
		}
		watchAddressBalances(ctx, tracker, address)
		return
	}

	balances := fetchBalances(ctx, tracker, address, jsonOutput)
	if jsonOutput {
		jsonData, _ := json.MarshalIndent(balances, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayBalances(registry, balances, address)
	}
}

func fetchBalances(ctx context.Context, tracker *balance.Tracker, address string, jsonOutput bool) []types.Balance {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching balances..."
		s.Start()
	}

	balances := tracker.RefreshAll(ctx, address)
	if !jsonOutput {
		s.Stop()
	}
	return balances
}

func watchAddressBalances(ctx context.Context, tracker *balance.Tracker, address string) {
	fmt.Printf("\nWatching balances for %s\n", color.CyanString(address))
	fmt.Printf("Refreshing every %d seconds. Press Ctrl+C to stop.\n", balanceInterval)

	registry := chain.Default()

	ticker := time.NewTicker(time.Duration(balanceInterval) * time.Second)
	defer ticker.Stop()

	// Refresh immediately first
	displayBalances(registry, tracker.RefreshAll(ctx, address), address)

	// Then refresh periodically
	for range ticker.C {
		displayBalances(registry, tracker.RefreshAll(ctx, address), address)
	}
}

func displayBalances(registry *chain.Registry, balances []types.Balance, address string) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                            BALANCES")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Address: %s\n\n", color.CyanString(address))

	for _, bal := range balances {
		meta, err := registry.MetadataFor(bal.Chain)
		if err != nil {
			continue
		}

		label := strings.ToUpper(bal.Chain)
		if bal.Stale {
			label += " " + color.RedString("(stale)")
		}
		fmt.Printf("  %-24s %12s %-6s  %12s %s\n",
			label,
			bal.NativeAmount,
			color.YellowString(meta.NativeSymbol),
			bal.StableAmount,
			color.YellowString(meta.StableSymbol))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}
