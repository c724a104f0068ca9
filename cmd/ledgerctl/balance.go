package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/cableworks/ledger-engine/ledger"
)

func newBalanceCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <customer|supplier> <name>",
		Short: "Print a party's current balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := partyKeyArgs(args)
			if err != nil {
				return err
			}
			b, err := a.ledger.CurrentBalance(cmd.Context(), key)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), b.StringFixed(ledger.MoneyPlaces))
			return nil
		},
	}
}

func newPreviousCmd(a *app) *cobra.Command {
	var typ string
	cmd := &cobra.Command{
		Use:   "previous <customer|supplier> <name> <invoice-number>",
		Short: "Print the balance before an invoice was applied",
		Long: `Prints the party's balance immediately before the invoice. For an
invoice that is not saved yet this is the current balance.

Without --type the number is classified by prefix: SRI (sales return) and
RPRI (purchase return); anything else is a sales or purchase invoice.`,
		Example: `  ledgerctl previous customer "Acme Cables" SRI-001`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := partyKeyArgs(args)
			if err != nil {
				return err
			}
			ref := ledger.ParseInvoiceRef(key.Kind, args[2])
			if typ != "" {
				ref.Type = ledger.InvoiceType(typ)
			}
			pb, err := a.ledger.PreviousBalance(cmd.Context(), key, ref)
			if err != nil {
				return err
			}
			state := "saved"
			if !pb.Persisted {
				state = "not saved"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s previous %s current %s (%s)\n",
				ref, pb.Previous.StringFixed(ledger.MoneyPlaces), pb.Current.StringFixed(ledger.MoneyPlaces), state)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "Invoice type: sales, purchase, sales_return, purchase_return")
	return cmd
}

func newHistoryCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "history <customer|supplier> <name>",
		Short: "Print a party's ledger rows in application order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := partyKeyArgs(args)
			if err != nil {
				return err
			}
			rng, err := ledger.NewDateRange(from, to)
			if err != nil {
				return err
			}
			party, err := a.ledger.Party(cmd.Context(), key)
			if err != nil {
				return err
			}
			txs, err := a.ledger.History(cmd.Context(), party.ID, rng)
			if err != nil {
				return err
			}
			return printRows(cmd, txs)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD")
	return cmd
}

func newStatementCmd(a *app) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "statement <customer_ledger|supplier_ledger> <name>",
		Short: "Print a ledger report with opening and closing balances",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rng, err := ledger.NewDateRange(from, to)
			if err != nil {
				return err
			}
			st, err := a.ledger.Statement(cmd.Context(), ledger.StatementKind(args[0]), args[1], rng)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s %s\n", st.Kind, st.Party.Name, st.Range)
			fmt.Fprintf(out, "Opening %s\n", st.Opening.StringFixed(ledger.MoneyPlaces))
			if err := printRows(cmd, st.Rows); err != nil {
				return err
			}
			fmt.Fprintf(out, "Charges %s  Credits %s  Closing %s\n",
				st.Charges.StringFixed(ledger.MoneyPlaces),
				st.Credits.StringFixed(ledger.MoneyPlaces),
				st.Closing.StringFixed(ledger.MoneyPlaces))
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "First day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "Last day, YYYY-MM-DD")
	return cmd
}

func printRows(cmd *cobra.Command, txs []ledger.Transaction) error {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tDATE\tTYPE\tREF\tAMOUNT\tBALANCE\tDESCRIPTION")
	for _, tx := range txs {
		ref := "-"
		if tx.Reference != nil {
			ref = tx.Reference.Number
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.Seq, tx.Date.Format(time.DateOnly), tx.Type, ref,
			tx.Amount.StringFixed(ledger.MoneyPlaces), tx.BalanceAfter.StringFixed(ledger.MoneyPlaces), tx.Description)
	}
	return tw.Flush()
}
