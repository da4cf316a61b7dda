package main

import (
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		strategyID int64
		labels     []string
		date       string
		limit      int
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Replace the ledger with a fresh full-roster allocation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{}
			if strategyID > 0 {
				body["strategy_id"] = strategyID
			}
			if len(labels) > 0 {
				body["course_labels"] = labels
			}
			if date != "" {
				body["exam_date"] = date
			}
			if limit > 0 {
				body["roster_limit"] = limit
			}
			res, err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/allocations/run", nil, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int64Var(&strategyID, "strategy", 0, "strategy id (default: the active strategy)")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "course labels cycled across groups")
	cmd.Flags().StringVar(&date, "date", "", "exam date for every group, YYYY-MM-DD")
	cmd.Flags().IntVar(&limit, "limit", 0, "roster limit (default: server setting)")
	return cmd
}

func newPlaceCommand(opts *rootOptions) *cobra.Command {
	var (
		courseID   int64
		roomID     int64
		autoEnroll bool
	)
	cmd := &cobra.Command{
		Use:   "place",
		Short: "Place one course's roster into one room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{"course_id": courseID, "room_id": roomID}
			if cmd.Flags().Changed("auto-enroll") {
				body["auto_enroll"] = autoEnroll
			}
			res, err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/placements", nil, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int64Var(&courseID, "course", 0, "course id")
	cmd.Flags().Int64Var(&roomID, "room", 0, "room id")
	cmd.Flags().BoolVar(&autoEnroll, "auto-enroll", false, "enroll a demo roster when the course has nobody enrolled")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newUnplaceCommand(opts *rootOptions) *cobra.Command {
	var courseID, roomID int64
	cmd := &cobra.Command{
		Use:   "unplace",
		Short: "Remove a course's assignments from a room",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query := map[string]string{
				"course_id": strconv.FormatInt(courseID, 10),
				"room_id":   strconv.FormatInt(roomID, 10),
			}
			res, err := opts.client().Do(cmd.Context(), http.MethodDelete, "/api/placements", query, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().Int64Var(&courseID, "course", 0, "course id")
	cmd.Flags().Int64Var(&roomID, "room", 0, "room id")
	_ = cmd.MarkFlagRequired("course")
	_ = cmd.MarkFlagRequired("room")
	return cmd
}

func newClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every assignment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().Do(cmd.Context(), http.MethodDelete, "/api/assignments", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newAssignmentsCommand(opts *rootOptions) *cobra.Command {
	var export string
	cmd := &cobra.Command{
		Use:   "assignments",
		Short: "List the ledger, or export it as a spreadsheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := opts.client()
			if export != "" {
				body, err := c.Download(cmd.Context(), "/api/assignments/export")
				if err != nil {
					return err
				}
				if err := os.WriteFile(export, body, 0o644); err != nil {
					return fmt.Errorf("write export: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes)\n", export, len(body))
				return nil
			}
			res, err := c.Do(cmd.Context(), http.MethodGet, "/api/assignments", nil, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&export, "export", "", "write an .xlsx export to this path instead of listing")
	return cmd
}

func newProgressCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "progress RUN_ID",
		Short: "Show the progress of an allocation run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := opts.client().Do(cmd.Context(), http.MethodGet, "/api/allocations/progress", map[string]string{"run_id": args[0]}, nil)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
}

func newStrategiesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strategies",
		Short: "Manage allocation strategies",
	}

	simple := func(use, short, method string, path func(args []string) string, args cobra.PositionalArgs) *cobra.Command {
		return &cobra.Command{
			Use:   use,
			Short: short,
			Args:  args,
			RunE: func(cmd *cobra.Command, a []string) error {
				res, err := opts.client().Do(cmd.Context(), method, path(a), nil, nil)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			},
		}
	}
	byID := func(suffix string) func([]string) string {
		return func(a []string) string { return "/api/strategies/" + a[0] + suffix }
	}

	cmd.AddCommand(
		simple("list", "List strategies", http.MethodGet, func([]string) string { return "/api/strategies" }, cobra.NoArgs),
		simple("active", "Show the active strategy", http.MethodGet, func([]string) string { return "/api/strategies/active" }, cobra.NoArgs),
		simple("activate ID", "Make a strategy the active one", http.MethodPost, byID("/activate"), numericArg),
		simple("delete ID", "Delete a strategy", http.MethodDelete, byID(""), numericArg),
		newStrategyCreateCommand(opts),
	)
	return cmd
}

func newStrategyCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		description string
		version     string
		typ         string
		rules       []string
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Register a new, inactive strategy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]any{
				"name":        args[0],
				"description": description,
				"version":     version,
				"type":        typ,
				"rules":       rules,
			}
			res, err := opts.client().Do(cmd.Context(), http.MethodPost, "/api/strategies", nil, body)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "free-form description")
	cmd.Flags().StringVar(&version, "version", "", "version label (default 1.0)")
	cmd.Flags().StringVar(&typ, "type", "alphabetical_grouping", "round_robin, alphabetical_grouping, capacity_optimization or department_grouping")
	cmd.Flags().StringSliceVar(&rules, "rules", nil, "rule tokens")
	return cmd
}

func numericArg(cmd *cobra.Command, args []string) error {
	if err := cobra.ExactArgs(1)(cmd, args); err != nil {
		return err
	}
	if id, err := strconv.ParseInt(args[0], 10, 64); err != nil || id <= 0 {
		return fmt.Errorf("invalid id %q", args[0])
	}
	return nil
}
