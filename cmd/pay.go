package cmd

import (
	"bufio"
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
	"bridgepay/pkg/escrow"
	"bridgepay/pkg/logger"
	"bridgepay/pkg/parser"
	"bridgepay/pkg/payment"
	"bridgepay/pkg/quote"
	"bridgepay/pkg/types"
	"bridgepay/pkg/wallet"
)

var (
	counterpartyAddr string
	requestID        string
	activeChain      string
	noConfirm        bool
)

var payCmd = &cobra.Command{
	Use:   "pay <amount> <token> from <chain> to <chain>",
	Short: "Deposit a payment into escrow across chains",
	Long: `Run the full escrow payment sequence: fetch a quote, confirm, then
approve (for stable-coin) and deposit into the escrow contract on the
source chain, polling until the deposit is confirmed.

IMPORTANT:
  - You MUST specify --counterparty (who the escrow releases to)
  - You MUST specify --request-id (the escrow line item this payment settles)
  - Stable-coin payments submit two transactions: approve, then deposit

Examples:
  # Stable-coin payment
  bridgepay pay 50 stable from base to arbitrum --counterparty 0xabc... --request-id job-1421

  # Native payment
  bridgepay pay 0.25 native from ethereum to base --counterparty 0xabc... --request-id job-1422

  # Skip the confirmation prompt
  bridgepay pay 50 stable from base to arbitrum --counterparty 0xabc... --request-id job-1421 --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runPay,
}

func init() {
	rootCmd.AddCommand(payCmd)

	payCmd.Flags().StringVar(&counterpartyAddr, "counterparty", "", "Counterparty address (REQUIRED - who the escrow releases to)")
	payCmd.Flags().StringVar(&requestID, "request-id", "", "Request id the payment settles (REQUIRED)")
	payCmd.Flags().StringVar(&activeChain, "active-chain", "", "Chain the wallet starts on (defaults to the source chain)")
	payCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompt")
}

func runPay(cmd *cobra.Command, args []string) {
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	sel, err := parser.ParseTransferCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if counterpartyAddr == "" {
		printError(fmt.Errorf("--counterparty is required"))
		os.Exit(1)
	}
	if requestID == "" {
		printError(fmt.Errorf("--request-id is required"))
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := cfg.RequireSigner(); err != nil {
		printError(err)
		os.Exit(1)
	}

	log := logger.Logger(logger.Noop{})
	if verbose {
		log = logger.NewZap(cfg.LogLevel)
	}

	registry := chain.Default()

	initialChain := sel.SourceChain
	if activeChain != "" {
		initialChain = activeChain
	}

	signer, err := wallet.NewKeySigner(registry, cfg.PrivateKey, cfg.RPCURLs, initialChain)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer signer.Close()

	reader, err := chainrpc.NewEVMReader(registry, cfg.RPCURLs)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	defer reader.Close()

	tracker := balance.NewTracker(registry, reader, balance.WithLogger(log))
	quotes := quote.NewService(cfg.QuoteBaseURL, quote.WithLogger(log))

	executor, err := escrow.New(registry, signer, reader,
		escrow.WithLogger(log),
		escrow.WithConfirmTimeout(cfg.ConfirmTimeout))
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	conn := &wallet.ConnState{}
	orch := payment.New(registry, quotes, tracker, executor, signer, conn, payment.WithLogger(log))

	ctx := context.Background()

	var finalReceipt *types.PaymentReceipt
	req := types.EscrowDepositRequest{
		RequestID:           requestID,
		CounterpartyAddress: counterpartyAddr,
		Amount:              sel.Amount,
		Token:               sel.Token,
	}

	if err := orch.Start(req, sel.SourceChain, sel.DestChain, func(r types.PaymentReceipt) {
		finalReceipt = &r
	}); err != nil {
		printError(err)
		os.Exit(1)
	}

	// Get quote with spinner
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	if !jsonOutput {
		s.Suffix = " Fetching quote..."
		s.Start()
	}

	q, err := orch.RequestQuote(ctx)
	if !jsonOutput {
		s.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if q != nil && !jsonOutput {
		displayQuote(q)
	}

	// Ask for confirmation
	if !noConfirm && !jsonOutput {
		if !confirmPayment() {
			fmt.Println("\nPayment cancelled.")
			orch.Abandon()
			os.Exit(0)
		}
	}

	// Render progress from the event stream while the payment runs.
	progress := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	go func() {
		for ev := range orch.Events() {
			if ev.State == payment.StateProcessing && ev.Tx != nil && !jsonOutput {
				progress.Suffix = fmt.Sprintf(" %s... (%d%%)", ev.Tx.Stage, ev.Tx.ProgressPercent)
			}
		}
	}()

	if !jsonOutput {
		progress.Suffix = " Executing payment..."
		progress.Start()
	}

	err = drivePayment(ctx, orch, jsonOutput, progress)

	if !jsonOutput {
		progress.Stop()
	}

	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if err := orch.CloseSuccess(); err != nil {
		printError(err)
		os.Exit(1)
	}

	displayReceipt(registry, finalReceipt, jsonOutput)
}

// drivePayment pumps the confirm / switch-chain loop until the payment
// reaches a terminal state. A chain switch returns the flow to confirm, so
// Pay may run more than once.
func drivePayment(ctx context.Context, orch *payment.Orchestrator, jsonOutput bool, progress *spinner.Spinner) error {
	for {
		if err := orch.Pay(ctx); err != nil {
			// The error state offers a retry; the CLI surfaces the error
			// and lets the user decide.
			if orch.State() == payment.StateError && !jsonOutput {
				progress.Stop()
				if confirmRetry(err) {
					if rerr := orch.Retry(); rerr != nil {
						return rerr
					}
					progress.Start()
					continue
				}
			}
			return err
		}

		switch orch.State() {
		case payment.StateSuccess:
			return nil
		case payment.StateSwitchChain:
			if !jsonOutput {
				progress.Suffix = " Switching wallet network..."
			}
			if err := orch.ConfirmSwitch(ctx); err != nil {
				return err
			}
		case payment.StateConfirm:
			// Wallet connected (or switched); confirm runs again.
		default:
			return fmt.Errorf("unexpected payment state: %s", orch.State())
		}
	}
}

func confirmPayment() bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nProceed with payment? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func confirmRetry(payErr error) bool {
	color.Red("\nPayment failed: %v", payErr)

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("\nTry again? (y/N): ")

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}

func displayReceipt(registry *chain.Registry, receipt *types.PaymentReceipt, jsonOutput bool) {
	if receipt == nil {
		return
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(receipt, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	color.Green("\n✓ Payment deposited into escrow!")
	fmt.Printf("  Transaction: %s\n", color.CyanString(receipt.TxHash))
	fmt.Printf("  Amount:      %s %s\n", receipt.Amount, receipt.Token)
	fmt.Printf("  Chain:       %s\n", receipt.Chain)

	if meta, err := registry.MetadataFor(receipt.Chain); err == nil {
		fmt.Printf("  Explorer:    %s\n", color.HiBlackString(meta.ExplorerTxURL(receipt.TxHash)))
	}

	fmt.Println("\nYou can monitor the transaction using:")
	color.Cyan("  bridgepay status %s --chain %s\n", receipt.TxHash, receipt.Chain)
}
