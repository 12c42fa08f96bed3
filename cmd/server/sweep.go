package main

import (
	"encoding/json"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Resolve expired PENDING transactions once and print the report",
		Long: `Runs one reconciliation pass. Each expired PENDING transaction is
verified with its provider: a confirmed payment is applied and a declined one
is marked FAILED. Transactions the provider cannot answer for stay PENDING
until they expired more than SWEEP_ABANDON_AFTER ago, then they are timed out.

Sandbox providers keep their sessions in the serving process, so this command
cannot verify sandbox payments. Out of process it only times out abandoned
transactions. Set SWEEP_INTERVAL=0s to turn off the server's own sweep.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			if a.payments.Sandbox {
				log.Printf("Sandbox sessions live in the serving process; only transactions expired before %s will be timed out",
					time.Now().UTC().Add(-a.payments.SweepAbandonAfter).Format(time.RFC3339))
			}

			report, err := a.reconciler.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
}
