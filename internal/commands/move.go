package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"lifehub/internal/kanban"
)

func newMoveCommand(open opener, opts *options) *cobra.Command {
	var from, to, over string
	var index int

	cmd := &cobra.Command{
		Use:   "move <task-id>",
		Short: "Move a task card on the board",
		Long: "Move a task card to another position. With --over the card takes the\n" +
			"place of that card; with --index it lands at that position; with\n" +
			"neither it is appended to the --to column.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.requireUser(); err != nil {
				return err
			}

			m := kanban.Move{
				TaskID:         args[0],
				SourceColumnID: from,
				TargetColumnID: to,
				OverTaskID:     over,
			}
			if cmd.Flags().Changed("index") {
				if index < 0 {
					return fmt.Errorf("--index cannot be negative")
				}
				m.TargetIndex = &index
			}

			return withApp(cmd.Context(), open, func(a *app) error {
				res, err := a.board.MoveTask(cmd.Context(), opts.user, m)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if opts.jsonOut {
					return printJSON(out, res)
				}
				if !res.Moved {
					fmt.Fprintln(out, "Nothing to move")
					return nil
				}
				for _, p := range res.Updates {
					fmt.Fprintf(out, "%s\t%s\t%d\n", p.TaskID, p.ColumnID, p.SortOrder)
				}
				if res.WIPExceeded {
					fmt.Fprintln(out, "warning: destination column is over its WIP limit")
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "source column id")
	cmd.Flags().StringVar(&to, "to", "", "destination column id (default: the task's column)")
	cmd.Flags().StringVar(&over, "over", "", "task the card is dropped on")
	cmd.Flags().IntVar(&index, "index", 0, "final position in the destination column")

	return cmd
}
