package cli

import (
	"github.com/spf13/cobra"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
)

// NewMoveCommand creates the move command.
func NewMoveCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		to   int
		sets []string
	)

	cmd := &cobra.Command{
		Use:   "move <id>",
		Short: "Move a record within its scope or to another scope",
		Long: `Move a record. --to sets the new position; --set changes scope fields, moving
the record to another group. Without --to a scope change appends the record to
the end of its new group.

Example:
  listwise --db list.db move 01J3... --to 2
  listwise --db list.db move 01J3... --set board=done`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := idwrap.NewText(args[0])
			if err != nil {
				return err
			}
			eng, _, db, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer db.Close()

			fields, err := parseAssignments(sets)
			if err != nil {
				return err
			}
			rec := mrecord.New(id)
			for k, v := range fields {
				rec.Set(k, v)
			}
			if cmd.Flags().Changed("to") {
				rec.Set(eng.Config().OrderField, to)
			}
			out, err := eng.Update(cmd.Context(), rec)
			if err != nil {
				return err
			}
			if pos, ok := out.Int(eng.Config().OrderField); ok {
				cmd.Printf("%s %s=%d\n", out.ID, eng.Config().OrderField, pos)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&to, "to", 0, "new position within the scope")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "field=value assignment (repeatable; value null for SQL NULL)")
	return cmd
}
