package cli

import (
	"github.com/spf13/cobra"

	"github.com/listwise/listwise/pkg/idwrap"
)

// NewRemoveCommand creates the rm command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a record, closing the gap it leaves",
		Args:  cobra.ExactArgs(1),
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

			return eng.Delete(cmd.Context(), id)
		},
	}
}
