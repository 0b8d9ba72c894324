package cli

import (
	"github.com/spf13/cobra"

	"github.com/listwise/listwise/pkg/idwrap"
	"github.com/listwise/listwise/pkg/model/mrecord"
)

// NewSeqCommand creates the seq command.
func NewSeqCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seq <id>...",
		Short: "Assign positions start, start+1, … to the given records in order",
		Long: `Rewrite the order of the listed records to start, start+1, … in argument
order, in one transaction. Records of the same scope that are not listed keep
their positions; resulting overlaps are the caller's responsibility.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			refs := make([]mrecord.Ref, len(args))
			for i, arg := range args {
				id, err := idwrap.NewText(arg)
				if err != nil {
					return err
				}
				refs[i] = mrecord.ByID(id)
			}
			eng, _, db, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer db.Close()

			return eng.SetOrder(cmd.Context(), refs)
		},
	}
}
