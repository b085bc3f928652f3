package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/josephgoksu/dayplan/internal/task"
	"github.com/josephgoksu/dayplan/internal/ui"
	"github.com/spf13/cobra"
)

var reorderCmd = &cobra.Command{
	Use:   "reorder <id> [id...]",
	Short: "Set the display order of tasks",
	Long: `Set the display order of tasks. The ids are given in the desired order and
receive positions 0, 1, 2 and so on.`,
	Example: "  dayplan reorder 12 7 9",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		moves := make([]task.Move, len(args))
		for i, a := range args {
			id, err := strconv.ParseInt(a, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid task id %q", a)
			}
			moves[i] = task.Move{ID: id, Position: int64(i)}
		}

		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		res, err := svc.tasks.Reorder(cmd.Context(), cliUser, moves)
		if errors.Is(err, task.ErrPositionUnsupported) {
			return fmt.Errorf("%w: run `dayplan migrate` first", err)
		}
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, ui.StyleSuccess.Render(fmt.Sprintf("✓ reordered %d of %d tasks", res.Updated, res.Requested)))
		if res.Skipped() > 0 {
			fmt.Fprintln(out, ui.StyleWarning.Render(fmt.Sprintf("%d ids were not found", res.Skipped())))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reorderCmd)
}
