package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3" // sqlite driver
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"screc/internal/backup"
	"screc/internal/core"
	"screc/internal/dialect"
	_ "screc/internal/dialect/mysql"  // register mysql renderer
	_ "screc/internal/dialect/sqlite" // register sqlite renderer
	"screc/internal/inspect"
	_ "screc/internal/inspect/mysql"  // register mysql inspector
	_ "screc/internal/inspect/sqlite" // register sqlite inspector
	"screc/internal/logging"
	"screc/internal/output"
	"screc/internal/parser/toml"
	"screc/internal/reconcile"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "screc",
		Short:         "Schema reconciliation engine - drive a live database toward a declared schema",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.screc.toml)")
	rootCmd.PersistentFlags().StringP("schema", "s", "", "declared schema file (TOML)")
	rootCmd.PersistentFlags().StringP("dsn", "d", "", "database DSN (file path for sqlite, user:pass@tcp(host)/db for mysql)")
	rootCmd.PersistentFlags().String("dialect", "", "dialect override: sqlite or mysql (default: inferred from DSN)")
	rootCmd.PersistentFlags().StringP("format", "f", "human", "output format: human, json, summary")
	rootCmd.PersistentFlags().Duration("timeout", 5*time.Minute, "overall run timeout")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose step logging")

	for _, name := range []string{"schema", "dsn", "dialect", "format", "timeout", "verbose"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}

	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newApplyCmd())
	return rootCmd
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".screc")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("SCREC")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newPlanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Compute and print the migration plan without touching the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := setup(false, nil, "")
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := runContext()
			defer cancel()

			p, err := env.reconciler.Plan(ctx, env.schema)
			if err != nil {
				return err
			}

			formatter, err := output.NewFormatter(viper.GetString("format"), env.reconciler.Renderer())
			if err != nil {
				return err
			}
			s, err := formatter.FormatPlan(p, env.reconciler.Preflight(p))
			if err != nil {
				return err
			}
			cmd.Print(s)
			return nil
		},
	}
}

func newApplyCmd() *cobra.Command {
	var (
		allowDestructive bool
		drops            []string
		backupDir        string
	)

	applyCmd := &cobra.Command{
		Use:   "apply",
		Short: "Compute the migration plan and execute it",
		RunE: func(cmd *cobra.Command, args []string) error {
			dropReqs, err := parseDrops(drops)
			if err != nil {
				return err
			}

			env, cleanup, err := setup(allowDestructive, dropReqs, backupDir)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, cancel := runContext()
			defer cancel()

			_, result, execErr := env.reconciler.Apply(ctx, env.schema)

			if result != nil {
				formatter, fmtErr := output.NewFormatter(viper.GetString("format"), env.reconciler.Renderer())
				if fmtErr != nil {
					return fmtErr
				}
				s, fmtErr := formatter.FormatResult(result)
				if fmtErr != nil {
					return fmtErr
				}
				cmd.Print(s)
			}
			return execErr
		},
	}

	applyCmd.Flags().BoolVar(&allowDestructive, "allow-destructive", false, "permit explicit drop requests")
	applyCmd.Flags().StringArrayVar(&drops, "drop", nil, "drop a table ('posts') or column ('posts.legacy_id'); repeatable, requires --allow-destructive")
	applyCmd.Flags().StringVar(&backupDir, "backup-dir", "screc-backups", "directory for pre-migration backups")
	return applyCmd
}

// env bundles what both commands need after flag resolution.
type env struct {
	schema     *core.Schema
	reconciler *reconcile.Reconciler
}

func setup(allowDestructive bool, drops []reconcile.DropRequest, backupDir string) (*env, func(), error) {
	schemaPath := viper.GetString("schema")
	if schemaPath == "" {
		return nil, nil, fmt.Errorf("--schema is required")
	}
	dsn := viper.GetString("dsn")
	if dsn == "" {
		return nil, nil, fmt.Errorf("--dsn is required")
	}

	schema, err := toml.NewParser().ParseFile(schemaPath)
	if err != nil {
		return nil, nil, err
	}

	d, err := resolveDialect(viper.GetString("dialect"), dsn)
	if err != nil {
		return nil, nil, err
	}

	db, err := openDatabase(d, dsn)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = db.Close() }

	provider, target, err := backupSetup(d, dsn, db, backupDir)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	r, err := reconcile.New(reconcile.Options{
		DB:               db,
		Dialect:          d,
		AllowDestructive: allowDestructive,
		Drops:            drops,
		BackupProvider:   provider,
		BackupTarget:     target,
		Logger:           newLogger(),
	})
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	return &env{schema: schema, reconciler: r}, cleanup, nil
}

func runContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), viper.GetDuration("timeout"))
}

func newLogger() logging.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if viper.GetBool("verbose") {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return logging.Nop()
	}
	return logging.NewZap(l)
}

// resolveDialect honors the explicit override and otherwise infers from the
// DSN shape: go-sql-driver network DSNs point at mysql, anything else is
// treated as a sqlite file path.
func resolveDialect(override, dsn string) (core.Dialect, error) {
	if override != "" {
		if !core.IsValidDialect(override) {
			return "", fmt.Errorf("unsupported dialect %q; supported: %v", override, core.SupportedDialects())
		}
		return core.Dialect(strings.ToLower(override)), nil
	}
	if _, err := mysqldrv.ParseDSN(dsn); err == nil && strings.Contains(dsn, "/") && strings.Contains(dsn, "@") {
		return core.DialectMySQL, nil
	}
	return core.DialectSQLite, nil
}

func openDatabase(d core.Dialect, dsn string) (*sql.DB, error) {
	driver := "sqlite3"
	if d == core.DialectMySQL {
		driver = "mysql"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, &core.ConnectionError{Err: err}
	}
	return db, nil
}

// backupSetup picks the provider matching the backend: a file copy of the
// sqlite database, a logical SQL dump for a server database.
func backupSetup(d core.Dialect, dsn string, db *sql.DB, backupDir string) (backup.Provider, string, error) {
	if backupDir == "" {
		return nil, "", nil
	}
	switch d {
	case core.DialectSQLite:
		return backup.NewFileCopy(backupDir), sqliteFilePath(dsn), nil
	case core.DialectMySQL:
		renderer, err := dialect.NewRenderer(d)
		if err != nil {
			return nil, "", err
		}
		inspector, err := inspect.NewInspector(d)
		if err != nil {
			return nil, "", err
		}
		target := "database"
		if cfg, err := mysqldrv.ParseDSN(dsn); err == nil && cfg.DBName != "" {
			target = cfg.DBName
		}
		return backup.NewLogicalDump(db, inspector, renderer, backupDir), target, nil
	default:
		return nil, "", fmt.Errorf("unsupported dialect %q", d)
	}
}

// sqliteFilePath strips the URI prefix and query options from a sqlite DSN.
func sqliteFilePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

func parseDrops(raw []string) ([]reconcile.DropRequest, error) {
	var drops []reconcile.DropRequest
	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		parts := strings.SplitN(s, ".", 2)
		req := reconcile.DropRequest{Table: parts[0]}
		if len(parts) == 2 {
			if parts[1] == "" {
				return nil, fmt.Errorf("invalid drop request %q: empty column name", s)
			}
			req.Column = parts[1]
		}
		if req.Table == "" {
			return nil, fmt.Errorf("invalid drop request %q: empty table name", s)
		}
		drops = append(drops, req)
	}
	return drops, nil
}
