package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/dayplan/internal/task"
	"github.com/josephgoksu/dayplan/internal/ui"
	"github.com/spf13/cobra"
)

var (
	addDate     string
	addTime     string
	addEmoji    string
	addPriority string
	addTags     []string
)

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Append a task to a day",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		created, err := svc.tasks.Create(cmd.Context(), cliUser, task.NewTask{
			Date:     addDate,
			Text:     strings.Join(args, " "),
			Emoji:    addEmoji,
			Time:     addTime,
			Priority: task.Priority(addPriority),
			Tags:     addTags,
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), ui.StyleSuccess.Render(
			fmt.Sprintf("✓ added task %d to %s", created.ID, created.Date)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringVarP(&addDate, "date", "d", time.Now().Format("2006-01-02"), "day (YYYY-MM-DD)")
	addCmd.Flags().StringVarP(&addTime, "time", "t", "", "time of day (HH:MM)")
	addCmd.Flags().StringVarP(&addEmoji, "emoji", "e", "", "icon")
	addCmd.Flags().StringVarP(&addPriority, "priority", "p", "", "low, medium or high")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "tag (repeatable)")
}
