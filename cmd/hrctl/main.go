// Command hrctl runs engine operations from the shell against the same
// backend the server uses.
//
//	hrctl seed [--dataset demo.json]
//	hrctl import --file punches.csv --month 2025-11 [--by USER]
//	hrctl recalc --month 2025-11 [--employee ID]
//	hrctl cycle create --start 2025-11-01 --end 2025-11-30 [--id] [--name] [--currency]
//	hrctl cycle list
//	hrctl cycle status --cycle 2025-11 --to LOCKED
//	hrctl payroll calculate --cycle 2025-11 [--employee ID]
//
// Connection settings come from the environment (see package config) and
// can be overridden with --db-driver, --db and --database-url.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/warp/hr-engine/config"
	"github.com/warp/hr-engine/factory"
)

const appVersion = "0.1.0"

// app holds what every subcommand needs once the root has connected.
type app struct {
	driver, dbPath, dbURL string

	cfg  *config.Config
	svcs *factory.Services
	out  io.Writer
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "hrctl",
		Short:         "Attendance, leave and payroll operations",
		Version:       appVersion,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.connect(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVar(&a.driver, "db-driver", "", "database driver: sqlite, postgres or memory (default from DB_DRIVER)")
	pf.StringVar(&a.dbPath, "db", "", "SQLite database path (default from DB_PATH)")
	pf.StringVar(&a.dbURL, "database-url", "", "PostgreSQL connection URL (default from DATABASE_URL)")

	root.AddCommand(
		a.seedCmd(),
		a.importCmd(),
		a.recalcCmd(),
		a.cycleCmd(),
		a.payrollCmd(),
	)
	return root
}

// connect loads the configuration, applies the flag overrides and opens the
// backend.
func (a *app) connect(cmd *cobra.Command) error {
	cfg, err := config.Load(nil)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db-driver") {
		cfg.Database.Driver = a.driver
	}
	if flags.Changed("db") {
		cfg.Database.Path = a.dbPath
	}
	if flags.Changed("database-url") {
		cfg.Database.URL = a.dbURL
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := config.NewLogger(cfg.Log, os.Stderr)
	backend, err := factory.OpenBackend(ctxOf(cmd), cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	a.cfg = cfg
	a.svcs = factory.NewServices(backend, factory.Options{
		DefaultEntitlement: cfg.Leave.DefaultEntitlement,
		DefaultCurrency:    cfg.Payroll.DefaultCurrency,
		RecalcWorkers:      cfg.Attendance.RecalcWorkers,
	}, logger)
	return nil
}

func (a *app) close() error {
	if a.svcs == nil {
		return nil
	}
	return a.svcs.Backend.Close()
}

func (a *app) print(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func ctxOf(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
