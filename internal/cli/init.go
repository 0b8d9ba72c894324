package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the configured table if it does not exist",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, cfg, db, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer db.Close()

			keyField := cfg.KeyField
			if keyField == "" {
				keyField = "id"
			}
			cols := []string{`"` + keyField + `" BLOB PRIMARY KEY`}
			for _, f := range cfg.Fields {
				typ := "TEXT"
				if f == eng.Config().OrderField {
					typ = "INTEGER"
				}
				cols = append(cols, `"`+f+`" `+typ)
			}
			ddl := `CREATE TABLE IF NOT EXISTS "` + cfg.Table + `" (` + strings.Join(cols, ", ") + `)`
			if _, err := db.ExecContext(cmd.Context(), ddl); err != nil {
				return err
			}
			cmd.Printf("table %s ready\n", cfg.Table)
			return nil
		},
	}
}
