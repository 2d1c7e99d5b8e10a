package main

import (
	"fmt"
	"strconv"

	"github.com/dot5enko/volume-block-index/manager"
	"github.com/dot5enko/volume-block-index/manager/query"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func parseConditions(raw []string) ([]query.FilterCondition, error) {
	out := make([]query.FilterCondition, 0, len(raw))
	for _, r := range raw {
		fc, err := query.ParseFilterCondition(r)
		if err != nil {
			return nil, err
		}
		out = append(out, fc)
	}
	return out, nil
}

func (c *cliT) newSelectCmd() *cobra.Command {
	var where []string
	var includeEmpty bool
	var list bool

	cmd := &cobra.Command{
		Use:   "select <index> --where gt:100 [--where avg:lt:40]",
		Short: "list blocks whose statistics can satisfy every condition",
		Long: `
Conditions are "[avg:]op:arg[:arg]" with op one of eq, gt, lt or range.
Without the avg prefix a condition is tested against the [min, max]
bounds of each block; a block matches fully when every voxel satisfies
it and partially when only some may.
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := parseConditions(where)
			if err != nil {
				return err
			}

			index, err := c.loadIndex(cmd, args[0])
			if err != nil {
				return err
			}

			m := manager.New(c.config(cmd))

			sel, err := m.SelectBlocks(index, query.Query{Filter: filter, IncludeEmpty: includeEmpty})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()

			if list {
				full := make(map[uint64]bool, len(sel.Full))
				for _, idx := range sel.Full {
					full[idx] = true
				}

				tbl := tablewriter.NewWriter(out)
				tbl.SetHeader([]string{"Block", "IJK", "Min", "Max", "Avg", "Match"})
				for _, idx := range sel.Blocks {
					b := &index.Blocks[idx]
					match := query.PartialIntersection
					if full[idx] {
						match = query.FullIntersection
					}
					tbl.Append([]string{
						strconv.FormatUint(b.Index, 10),
						b.IJK.String(),
						formatFloat(b.Min),
						formatFloat(b.Max),
						formatFloat(b.Avg),
						match.String(),
					})
				}
				tbl.Render()
			}

			successColor.Fprintf(out, "%d of %d blocks selected", len(sel.Blocks), len(index.Blocks))
			fmt.Fprintf(out, " (%d full, %d partial)\n", len(sel.Full), sel.Partial())
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&where, "where", nil, "block condition, repeatable")
	cmd.Flags().BoolVar(&includeEmpty, "include-empty", false, "keep blocks flagged empty")
	cmd.Flags().BoolVarP(&list, "list", "l", false, "print every selected block")

	return cmd
}
