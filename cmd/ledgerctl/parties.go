package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cableworks/ledger-engine/ledger"
)

func newPartyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "party",
		Short: "Manage customers and suppliers",
	}

	var opening string
	add := &cobra.Command{
		Use:     "add <customer|supplier> <name>",
		Short:   "Register a party with an opening balance",
		Example: `  ledgerctl party add supplier "Northern Copper Mill" --opening 1000 --user ana`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			if err := sess.Authorize("create party"); err != nil {
				return err
			}
			key, err := partyKeyArgs(args)
			if err != nil {
				return err
			}
			initial, err := ledger.ParseMoney(opening)
			if err != nil {
				return err
			}
			p, err := a.ledger.CreateParty(cmd.Context(), key.Kind, key.Name, initial)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %q opening %s\n", p.ID, p.Kind, p.Name, p.Balance.StringFixed(ledger.MoneyPlaces))
			return nil
		},
	}
	add.Flags().StringVar(&opening, "opening", "0", "Opening balance")

	var kind string
	list := &cobra.Command{
		Use:   "list",
		Short: "List parties and their balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var k ledger.PartyKind
			if kind != "" {
				var err error
				if k, err = parseKind(kind); err != nil {
					return err
				}
			}
			parties, err := a.ledger.Parties(cmd.Context(), k)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "KIND\tNAME\tBALANCE")
			for _, p := range parties {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Kind, p.Name, p.Balance.StringFixed(ledger.MoneyPlaces))
			}
			return tw.Flush()
		},
	}
	list.Flags().StringVar(&kind, "kind", "", "Only customers or suppliers")

	cmd.AddCommand(add, list)
	return cmd
}
