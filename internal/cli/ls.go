package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/listwise/listwise/pkg/scope"
)

// NewListCommand creates the ls command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var scopes []string

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List records in order",
		Long: `List records ascending by the order column. --scope restricts the listing to
one group; value null selects records where the field is SQL NULL.

Example:
  listwise --db list.db ls --scope board=inbox
  listwise --db list.db ls --scope board=null`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, _, db, err := rootOpts.openEngine()
			if err != nil {
				return err
			}
			defer db.Close()

			assignments, err := parseAssignments(scopes)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(assignments))
			values := make(map[string]scope.Value, len(assignments))
			for k, v := range assignments {
				names = append(names, k)
				values[k] = scope.Of(v)
			}
			sort.Strings(names)

			recs, err := eng.List(cmd.Context(), scope.FromValues(names, values))
			if err != nil {
				return err
			}
			orderField := eng.Config().OrderField
			for _, rec := range recs {
				parts := []string{}
				if pos, ok := rec.Int(orderField); ok {
					parts = append(parts, fmt.Sprintf("%s=%d", orderField, pos))
				} else {
					parts = append(parts, orderField+"=null")
				}
				fields := make([]string, 0, len(rec.Fields))
				for name := range rec.Fields {
					if name != orderField {
						fields = append(fields, name)
					}
				}
				sort.Strings(fields)
				for _, name := range fields {
					v, _ := rec.Get(name)
					if v == nil {
						parts = append(parts, name+"=null")
						continue
					}
					parts = append(parts, fmt.Sprintf("%s=%v", name, fieldString(v)))
				}
				cmd.Printf("%s %s\n", rec.ID, strings.Join(parts, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&scopes, "scope", nil, "field=value scope filter (repeatable; value null for SQL NULL)")
	return cmd
}

func fieldString(v any) string {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
