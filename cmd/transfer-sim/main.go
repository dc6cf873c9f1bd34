package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var args = simArgs{}

var rootCmd = &cobra.Command{
	Use:   "transfer-sim",
	Short: "Run concurrent transfers over a small set of in-memory accounts",
	Long: `transfer-sim cria N contas, dispara transferências concorrentes entre pares
aleatórios (inclusive em sentidos opostos) e confere que o total foi preservado.`,
	RunE: run,
}

func init() {
	rootCmd.Flags().IntVar(&args.accounts, "accounts", 4, "number of accounts")
	rootCmd.Flags().IntVar(&args.workers, "workers", 16, "concurrent workers")
	rootCmd.Flags().IntVar(&args.transfers, "transfers", 1000, "transfers per worker")
	rootCmd.Flags().StringVar(&args.initial, "initial", "1000", "initial balance of every account")
	rootCmd.Flags().StringVar(&args.amount, "amount", "1.50", "amount of every transfer")
	rootCmd.Flags().DurationVar(&args.lockTimeout, "lock-timeout", 2*time.Second, "max wait for account locks (0 = no limit)")
	rootCmd.Flags().BoolVar(&args.verbose, "verbose", false, "log every notification")
}

func run(cmd *cobra.Command, _ []string) error {
	logger := zap.NewNop()
	if args.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		logger = l
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	rep, err := simulate(ctx, args, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ok=%d insufficient=%d timeouts=%d elapsed=%s\n", rep.ok, rep.insufficient, rep.timeouts, rep.elapsed)
	for _, b := range rep.balances {
		fmt.Fprintf(out, "  %s %s\n", b.ID, b.Balance)
	}
	fmt.Fprintf(out, "total=%s expected=%s notifications=%d\n", rep.total, rep.expected, rep.notifications)
	if !rep.total.Equal(rep.expected) {
		return fmt.Errorf("total not conserved: got %s want %s", rep.total, rep.expected)
	}
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
