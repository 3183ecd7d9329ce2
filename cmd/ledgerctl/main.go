// Command ledgerctl runs one-off operations against the credit ledger.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Operate the credit ledger: migrations, sweeps, balances and admin tokens",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(balanceCmd())
	rootCmd.AddCommand(adjustCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
