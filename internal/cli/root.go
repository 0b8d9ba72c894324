// Package cli implements the listwise command line tool: a thin front end
// over the sequencing engine for operating one SQLite-backed list table.
package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"

	"github.com/listwise/listwise/pkg/seqlist"
	"github.com/listwise/listwise/pkg/store/sqlitestore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Database string
	Config   string
	Verbose  bool
}

// FileConfig is the YAML document describing the table and the engine.
type FileConfig struct {
	Table    string         `yaml:"table"`
	KeyField string         `yaml:"key_field"`
	Fields   []string       `yaml:"fields"`
	Engine   seqlist.Config `yaml:",inline"`
}

// NewRootCommand creates the root command for the listwise CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "listwise",
		Short:         "Maintain a contiguous ordering over a SQLite table",
		Long: `listwise keeps an integer position column contiguous within each scope of a
SQLite table: after every mutation the positions of a scope are exactly
start..start+n-1, with no gaps or duplicates.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the SQLite database (required)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "listwise.yaml", "path to the table config")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewMoveCommand(opts))
	cmd.AddCommand(NewRemoveCommand(opts))
	cmd.AddCommand(NewSeqCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

func (o *RootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func (o *RootOptions) loadConfig() (FileConfig, error) {
	data, err := os.ReadFile(o.Config)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config: %w", err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("parse config %s: %w", o.Config, err)
	}
	cfg.Engine = cfg.Engine.Normalize()
	if err := cfg.Engine.Validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// openEngine opens the database and wires the store and the engine from the
// config file. The caller closes the returned database.
func (o *RootOptions) openEngine() (*seqlist.Engine, FileConfig, *sql.DB, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, FileConfig{}, nil, err
	}
	db, err := sql.Open("sqlite", o.Database)
	if err != nil {
		return nil, FileConfig{}, nil, fmt.Errorf("open database: %w", err)
	}
	st, err := sqlitestore.New(db, sqlitestore.TableConfig{
		Table:    cfg.Table,
		KeyField: cfg.KeyField,
		Fields:   cfg.Fields,
	}, o.logger())
	if err != nil {
		db.Close()
		return nil, FileConfig{}, nil, err
	}
	eng, err := seqlist.New(st, cfg.Engine, o.logger())
	if err != nil {
		db.Close()
		return nil, FileConfig{}, nil, err
	}
	return eng, cfg, db, nil
}
