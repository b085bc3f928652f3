package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/josephgoksu/dayplan/internal/ui"
	"github.com/spf13/cobra"
)

var (
	listDate     string
	listArchived bool
	listJSON     bool
	cliUser      string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tasks of a day in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := openServices(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()

		tasks, err := svc.tasks.List(cmd.Context(), cliUser, listDate, listArchived)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if listJSON || !ui.IsInteractive() {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tasks)
		}
		fmt.Fprint(out, ui.RenderTaskList(listDate, tasks))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.PersistentFlags().StringVarP(&cliUser, "user", "u", "local", "user id that owns the tasks")
	listCmd.Flags().StringVarP(&listDate, "date", "d", time.Now().Format("2006-01-02"), "day to list (YYYY-MM-DD)")
	listCmd.Flags().BoolVarP(&listArchived, "archived", "a", false, "include archived tasks")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print JSON even on a terminal")
}
