package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nhle/efficio/internal/model"
	"github.com/nhle/efficio/internal/store"
)

func addCmd(configPath *string) *cobra.Command {
	var title, category, priority, due, status string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a task locally and push it when online",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dueDate, err := model.ParseDueDate(due)
			if err != nil {
				return err
			}

			rt, err := connected(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			task, err := rt.Engine.CreateTask(cmd.Context(), model.TaskFields{
				Title:    title,
				Category: category,
				Priority: model.Priority(priority),
				DueDate:  dueDate,
				Status:   model.Status(status),
			})
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), *task)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "task title (required)")
	cmd.Flags().StringVarP(&category, "category", "c", model.DefaultCategory, "category")
	cmd.Flags().StringVarP(&priority, "priority", "p", string(model.PriorityMedium), "low, medium or high")
	cmd.Flags().StringVarP(&due, "due", "d", "", "due date (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&status, "status", "s", string(model.StatusPending), "pending, inprogress or completed")
	cmd.MarkFlagRequired("title")

	return cmd
}

func listCmd(configPath *string) *cobra.Command {
	var archived, unsynced, asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks from the local store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openRuntime(*configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			coll := model.CollectionTasks
			if archived {
				coll = model.CollectionArchived
			}
			filter := store.TaskFilter{}
			if unsynced {
				filter.SyncStatuses = []model.SyncStatus{model.SyncPending, model.SyncError}
			}

			tasks, err := rt.Store.ListWhere(cmd.Context(), coll, filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(tasks)
			}
			if len(tasks) == 0 {
				fmt.Fprintln(out, "No tasks.")
				return nil
			}
			for _, t := range tasks {
				printTask(out, t)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&archived, "archived", false, "list the archive instead of active tasks")
	cmd.Flags().BoolVar(&unsynced, "unsynced", false, "only records not yet reconciled")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")

	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status <localId> <pending|inprogress|completed>",
		Short: "Change a task's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}

			rt, err := connected(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			task, err := rt.Engine.UpdateStatus(cmd.Context(), id, model.Status(args[1]))
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), *task)
			return nil
		},
	}
}

func archiveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "archive <localId>",
		Short: "Move a task to the archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLocalID(args[0])
			if err != nil {
				return err
			}

			rt, err := connected(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer rt.Close()

			task, err := rt.Engine.Archive(cmd.Context(), id)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), *task)
			return nil
		},
	}
}

func parseLocalID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid local id %q", raw)
	}
	return id, nil
}

func printTask(w io.Writer, t model.Task) {
	due := t.DueDateString()
	if due == "" {
		due = "-"
	}
	fmt.Fprintf(w, "%4d  %-10s %-8s %-10s %-10s %-7s %s\n",
		t.LocalID, t.Status, t.Priority, due, t.Category, t.SyncStatus, t.Title)
}
