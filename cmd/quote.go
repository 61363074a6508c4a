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
	"bridgepay/pkg/parser"
	"bridgepay/pkg/quote"
	"bridgepay/pkg/types"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <token> from <chain> to <chain>",
	Short: "Get a fee and time estimate for a bridge transfer",
	Long: `Fetch an estimate of the network fee and transfer time for moving
value between two chains, without executing anything.

Examples:
  bridgepay quote 50 stable from base to arbitrum
  bridgepay quote 0.25 native from ethereum to base`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	sel, err := parser.ParseTransferCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	quotes := quote.NewService(cfg.QuoteBaseURL)

	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := quotes.Quote(context.Background(), sel.SourceChain, sel.DestChain, sel.Token, sel.Amount)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(q, "", "  ")
		fmt.Println(string(jsonData))
	} else {
		displayQuote(q)
	}
}

func displayQuote(q *types.Quote) {
	fmt.Println("\n" + strings.Repeat("=", 60))
	color.Green("                    BRIDGE QUOTE")
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  Amount:            %s %s\n", q.Amount, color.YellowString(string(q.Token)))
	fmt.Printf("  Source Chain:      %s\n", q.SourceChain)
	fmt.Printf("  Destination Chain: %s\n", q.DestinationChain)
	fmt.Printf("  Estimated Fee:     %s (native)\n", q.EstimatedFeeNative)
	fmt.Printf("  Estimated Time:    %s\n", q.EstimatedTimeLabel)

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}
