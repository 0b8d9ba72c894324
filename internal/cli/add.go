package cli

import (
	"github.com/spf13/cobra"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert a record",
		Long: `Insert a record, appending it to its scope. Supplying the order column with
--set inserts at that position instead, shifting successors up.

Example:
  listwise --db list.db add --set board=inbox --set title="write docs"
  listwise --db list.db add --set board=inbox --set position=2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, db, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer db.Close()

			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			rec := mrecord.New(idwrap.NewNow())
			for k, v := range fields {
				rec.Set(k, v)
			}
			out, err := eng.Create(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if pos, ok := out.Int(eng.Config().OrderField); ok {
				cmd.Printf("%s %s=%d\n", out.ID, eng.Config().OrderField, pos)
			} else {
				cmd.Printf("%s (unsequenced: scope incomplete)\n", out.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value assignment (repeatable; value null for SQL NULL)")
	return cmd
}
