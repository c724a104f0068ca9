package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/factory"
	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/trade"
)

func newImportCmd(a *app) *cobra.Command {
	var keepGoing bool
	cmd := &cobra.Command{
		Use:   "import <file.json>...",
		Short: "Record invoice and return documents from JSON files",
		Long: `Each file holds one invoice document or an array of them (see
factory/invoice.go for the schema). Documents are recorded in file order,
each in its own database transaction.`,
		Example: `  ledgerctl import march.json --user ana
  ledgerctl import returns/*.json --user ana --keep-going`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			f := factory.NewInvoiceFactory()
			out := cmd.OutOrStdout()

			var failed int
			for _, path := range args {
				docs, err := f.ParseInvoiceFile(path)
				if err != nil {
					return err
				}
				for _, doc := range docs {
					posting, err := a.trade.RecordInvoice(cmd.Context(), sess, doc.Party.Name, doc.Invoice)
					if err != nil {
						if !keepGoing {
							return fmt.Errorf("%s: %s: %w", path, doc.Invoice.Ref, err)
						}
						failed++
						fmt.Fprintf(out, "FAILED %s: %v\n", doc.Invoice.Ref, err)
						continue
					}
					fmt.Fprintf(out, "%s %s balance %s\n", posting.Invoice.Ref, doc.Party.Name,
						posting.Balance.StringFixed(ledger.MoneyPlaces))
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d documents failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepGoing, "keep-going", false, "Continue after a rejected document")
	return cmd
}

func newPayCmd(a *app) *cobra.Command {
	var date, description string
	cmd := &cobra.Command{
		Use:     "pay <customer|supplier> <name> <amount>",
		Short:   "Record a payment received from a customer or made to a supplier",
		Example: `  ledgerctl pay supplier "Northern Copper Mill" 700 --date 2025-02-28 --user ana`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := a.session()
			if err != nil {
				return err
			}
			key, err := partyKeyArgs(args)
			if err != nil {
				return err
			}
			amount, err := ledger.ParseMoney(args[2])
			if err != nil {
				return err
			}
			var d time.Time
			if date != "" {
				if d, err = time.Parse(time.DateOnly, date); err != nil {
					return fmt.Errorf("invalid date format. Use YYYY-MM-DD: %w", err)
				}
			}

			posting, err := a.trade.RecordPayment(cmd.Context(), sess, trade.Payment{
				Party:       key,
				Amount:      amount,
				Date:        d,
				Description: description,
			})
			if err != nil {
				return err
			}
			a.log.Debug("payment posted", zap.Int64("seq", posting.Transaction.Seq))
			fmt.Fprintf(cmd.OutOrStdout(), "seq %d balance %s\n", posting.Transaction.Seq,
				posting.Balance.StringFixed(ledger.MoneyPlaces))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Payment date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&description, "description", "", "Row description")
	return cmd
}
