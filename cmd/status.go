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
	"bridgepay/pkg/chain"
	"bridgepay/pkg/chainrpc"
)

var (
	statusChain   string
	watchStatus   bool
	watchInterval int
)

var statusCmd = &cobra.Command{
	Use:   "status <tx-hash>",
	Short: "Check the status of a payment transaction",
	Long: `Check whether a payment transaction is pending, confirmed, or
reverted on its chain.

Examples:
  bridgepay status 0x1234...abcd --chain base
  bridgepay status 0x1234...abcd --chain base --watch
  bridgepay status 0x1234...abcd --chain base --watch --interval 10`,
	Args: cobra.ExactArgs(1),
	Run:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusChain, "chain", "", "Chain the transaction was submitted on (REQUIRED)")
	statusCmd.Flags().BoolVarP(&watchStatus, "watch", "w", false, "Watch status updates continuously")
	statusCmd.Flags().IntVar(&watchInterval, "interval", 5, "Polling interval in seconds (when watching)")

	statusCmd.MarkFlagRequired("chain")
}

func runStatus(cmd *cobra.Command, args []string) {
	txHash := args[0]
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	registry := chain.Default()
	if _, err := registry.MetadataFor(statusChain); err != nil {
		printError(err)
		os.Exit(1)
	}

	reader, err := chainrpc.NewEVMReader(registry, cfg.RPCURLs)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer reader.Close()

	if watchStatus {
		watchTxStatus(reader, registry, txHash, jsonOutput)
	} else {
		checkTxStatus(reader, registry, txHash, jsonOutput)
	}
}

func checkTxStatus(reader chainrpc.Reader, registry *chain.Registry, txHash string, jsonOutput bool) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Checking transaction status..."
		s.Start()
	}

	state, err := reader.TransactionStatus(context.Background(), statusChain, txHash)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		output := map[string]interface{}{
			"tx_hash": txHash,
			"chain":   statusChain,
			"status":  string(state),
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayTxStatus(registry, txHash, state)
	}
}

func watchTxStatus(reader chainrpc.Reader, registry *chain.Registry, txHash string, jsonOutput bool) {
	if jsonOutput {
		fmt.Println(`{"error": "watch mode not supported with JSON output"}`)
		os.Exit(1)
	}

	fmt.Printf("\nWatching transaction %s on %s\n", color.CyanString(txHash), statusChain)
	fmt.Printf("Checking every %d seconds. Press Ctrl+C to stop.\n\n", watchInterval)

	ticker := time.NewTicker(time.Duration(watchInterval) * time.Second)
	defer ticker.Stop()

	// Check immediately first
	if checkAndDisplayTxStatus(reader, registry, txHash) {
		return
	}

	// Then check periodically until the transaction settles
	for range ticker.C {
		if checkAndDisplayTxStatus(reader, registry, txHash) {
			return
		}
	}
}

func checkAndDisplayTxStatus(reader chainrpc.Reader, registry *chain.Registry, txHash string) bool {
	state, err := reader.TransactionStatus(context.Background(), statusChain, txHash)
	if err != nil {
		color.Red("Error: %v", err)
		return false
	}

	displayTxStatus(registry, txHash, state)
	return state != chainrpc.TxPending
}

func displayTxStatus(registry *chain.Registry, txHash string, state chainrpc.TxState) {
	fmt.Println("\n" + strings.Repeat("=", 70))
	color.Green("                      TRANSACTION STATUS")
	fmt.Println(strings.Repeat("=", 70))

	fmt.Printf("\n  Transaction: %s\n", color.CyanString(txHash))
	fmt.Printf("  Chain:       %s\n", statusChain)
	fmt.Printf("  Status:      %s\n", coloredTxState(state))
	fmt.Printf("  Checked At:  %s\n", time.Now().Format("2006-01-02 15:04:05"))

	if meta, err := registry.MetadataFor(statusChain); err == nil {
		fmt.Printf("  Explorer:    %s\n", color.HiBlackString(meta.ExplorerTxURL(txHash)))
	}

	fmt.Println("\n" + strings.Repeat("=", 70) + "\n")
}

func coloredTxState(state chainrpc.TxState) string {
	label := strings.ToUpper(string(state))

	switch state {
	case chainrpc.TxConfirmed:
		return color.GreenString(label)
	case chainrpc.TxPending:
		return color.YellowString(label)
	case chainrpc.TxReverted:
		return color.RedString(label)
	default:
		return label
	}
}
