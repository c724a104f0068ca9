package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cableworks/ledger-engine/ledger"
)

// errDrift makes the command exit non-zero when any party drifted.
var errDrift = fmt.Errorf("one or more parties failed verification: %w", ledger.ErrBalanceDrift)

func newVerifyCmd(a *app) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Replay every party's log against its stored balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var k ledger.PartyKind
			if kind != "" {
				var err error
				if k, err = parseKind(kind); err != nil {
					return err
				}
			}
			results, err := a.ledger.VerifyAll(cmd.Context(), k)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			drifted := 0
			for _, r := range results {
				if r.OK() {
					fmt.Fprintf(out, "ok     %s %s (%d rows, %s)\n", r.Party.Kind, r.Party.Name, r.Transactions,
						r.Party.Balance.StringFixed(ledger.MoneyPlaces))
					continue
				}
				drifted++
				fmt.Fprintf(out, "DRIFT  %s %s: %v\n", r.Party.Kind, r.Party.Name, r.Err)
			}
			fmt.Fprintf(out, "%d parties checked, %d drifted\n", len(results), drifted)
			if drifted > 0 {
				return errDrift
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only customers or suppliers")
	return cmd
}
