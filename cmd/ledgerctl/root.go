package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cableworks/ledger-engine/config"
	"github.com/cableworks/ledger-engine/ledger"
	"github.com/cableworks/ledger-engine/logger"
	"github.com/cableworks/ledger-engine/store/sqlite"
	"github.com/cableworks/ledger-engine/trade"
)

var version = "0.3.0"

// app is what every subcommand runs against. It is opened in the root's
// PersistentPreRunE and closed in PersistentPostRunE.
type app struct {
	dbPath   string
	logLevel string
	user     string
	role     string

	log    *zap.Logger
	store  *sqlite.Store
	ledger *ledger.Ledger
	trade  *trade.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and post to the party balance ledger",
		Long: `ledgerctl works on the same SQLite file as the ledger server.

Reads (balance, previous, history, statement, verify) need no session.
Writes (party add, import, pay) run as --user with --role.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	defaults, err := config.Load()
	dbDefault, levelDefault := "ledger.db", "warn"
	if err == nil {
		dbDefault, levelDefault = defaults.DB.Path, defaults.Log.Level
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.dbPath, "db", dbDefault, "SQLite database path (env LEDGER_DB_PATH)")
	flags.StringVar(&a.logLevel, "log-level", levelDefault, "Log level: debug, info, warn, error (env LOG_LEVEL)")
	flags.StringVar(&a.user, "user", "", "User recorded on written rows")
	flags.StringVar(&a.role, "role", string(trade.RoleClerk), "Session role: admin, clerk, viewer")

	root.AddCommand(
		newPartyCmd(a),
		newBalanceCmd(a),
		newPreviousCmd(a),
		newHistoryCmd(a),
		newStatementCmd(a),
		newVerifyCmd(a),
		newImportCmd(a),
		newPayCmd(a),
	)
	return root
}

func (a *app) open() error {
	log, err := logger.New(logger.Config{Level: a.logLevel, Format: "console", Output: "stderr"})
	if err != nil {
		return err
	}
	store, err := sqlite.New(a.dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.dbPath, err)
	}

	a.log = log
	a.store = store
	a.ledger = ledger.NewLedger(store)
	a.trade = trade.NewService(a.ledger, log)
	return nil
}

func (a *app) close() error {
	if a.log != nil {
		a.log.Sync()
	}
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

func (a *app) session() (trade.Session, error) {
	role, err := trade.ParseRole(a.role)
	if err != nil {
		return trade.Session{}, err
	}
	return trade.Session{UserID: strings.TrimSpace(a.user), Role: role}, nil
}

func parseKind(s string) (ledger.PartyKind, error) {
	k := ledger.PartyKind(strings.ToLower(s))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown party kind %q (use customer or supplier)", s)
	}
	return k, nil
}

func partyKeyArgs(args []string) (ledger.PartyKey, error) {
	kind, err := parseKind(args[0])
	if err != nil {
		return ledger.PartyKey{}, err
	}
	return ledger.PartyKey{Kind: kind, Name: args[1]}, nil
}
