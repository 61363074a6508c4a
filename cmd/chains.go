package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"bridgepay/pkg/chain"
)

var chainsCmd = &cobra.Command{
	Use:     "list-chains",
	Aliases: []string{"chains", "ls"},
	Short:   "List all supported chains",
	Long: `List the EVM chains bridgepay can pay on, with their native and
stable tokens and the escrow contract address deployed on each.

Examples:
  bridgepay list-chains
  bridgepay list-chains --json`,
	Run: runListChains,
}

func init() {
	rootCmd.AddCommand(chainsCmd)
}

func runListChains(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	registry := chain.Default()
	chains := registry.All()

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(chains, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayChains(chains)
}

func displayChains(chains []chain.Chain) {
	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED CHAINS")
	fmt.Println(strings.Repeat("=", 90))

	for _, c := range chains {
		color.Cyan("\n%s (chain id %d)", strings.ToUpper(c.ID), c.EVMChainID)
		fmt.Println(strings.Repeat("-", 90))

		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(c.NativeSymbol),
			c.NativeDecimals,
			color.HiBlackString("native"))
		fmt.Printf("  %-10s  %2d decimals  %s\n",
			color.YellowString(c.StableSymbol),
			c.StableDecimals,
			color.HiBlackString(c.StableAddress))
		fmt.Printf("  Escrow:     %s\n", color.HiBlackString(c.EscrowAddress))
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d chains\n\n", len(chains))
}
