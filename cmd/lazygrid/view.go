package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rebeliceyang/lazygrid/internal/export"
	"github.com/rebeliceyang/lazygrid/internal/models"
	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show <table-id>",
	Short: "Print a table with its filter applied, in its current order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")
		format, _ := cmd.Flags().GetString("format")
		withIDs, _ := cmd.Flags().GetBool("ids")

		return withApp(cmd.Context(), func(a *app) error {
			v, err := a.views.LoadView(cmd.Context(), args[0], search)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch strings.ToLower(format) {
			case "csv":
				return export.WriteCSV(out, v)
			case "json":
				return export.WriteJSON(out, v)
			case "table", "":
				return printView(out, v, withIDs)
			default:
				return fmt.Errorf("unknown format %q: use table, csv or json", format)
			}
		})
	},
}

var filterCmd = &cobra.Command{
	Use:   "filter <table-id> [filter-json]",
	Short: "Set the table's filter",
	Example: `  lazygrid filter t1 '{"combineWith":"AND","conditions":[{"columnName":"Name","operator":"contains","value":"a"}]}'
  lazygrid filter t1 --clear`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		clearFilter, _ := cmd.Flags().GetBool("clear")
		if clearFilter == (len(args) == 2) {
			return fmt.Errorf("pass either a filter or --clear")
		}

		return withApp(cmd.Context(), func(a *app) error {
			if clearFilter {
				return a.views.SetFilter(cmd.Context(), args[0], models.NewFilter(models.CombineAnd))
			}
			return a.views.SetFilterJSON(cmd.Context(), args[0], args[1])
		})
	},
}

var sortCmd = &cobra.Command{
	Use:   "sort <table-id> [column[:asc|desc[:text|number]] ...]",
	Short: "Sort the table's rows; no keys restores insertion order",
	Example: `  lazygrid sort t1 Name:asc
  lazygrid sort t1 Age:desc:number Name`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		keys, err := parseSortKeys(args[1:])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app) error {
			return a.views.SetSort(cmd.Context(), args[0], keys)
		})
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset <table-id>",
	Short: "Restore insertion order and clear the sort",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return a.views.ResetOrder(cmd.Context(), args[0])
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history [table-id]",
	Short: "List recent filter and sort changes",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		var tableID string
		if len(args) == 1 {
			tableID = args[0]
		}

		return withApp(cmd.Context(), func(a *app) error {
			entries, err := a.views.History(cmd.Context(), tableID, limit)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tTABLE\tKIND\tSTATUS\tPAYLOAD")
			for _, e := range entries {
				status := "ok"
				if !e.Success {
					status = "failed: " + e.ErrorMessage
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.AppliedAt.Local().Format(time.DateTime), e.TableID, e.Kind, status, e.Payload)
			}
			return w.Flush()
		})
	},
}

func init() {
	showCmd.Flags().String("search", "", "keep rows with a cell containing this text")
	showCmd.Flags().String("format", "table", "output format: table, csv or json")
	showCmd.Flags().Bool("ids", false, "include row ids")
	filterCmd.Flags().Bool("clear", false, "remove the filter")
	historyCmd.Flags().Int("limit", 20, "maximum number of entries")
}

// parseSortKeys reads keys of the form column[:order[:type]]
func parseSortKeys(args []string) ([]models.SortKey, error) {
	keys := make([]models.SortKey, 0, len(args))
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid sort key %q", arg)
		}
		k := models.SortKey{ColumnName: parts[0]}
		if len(parts) > 1 {
			k.Order = models.SortOrder(strings.ToUpper(parts[1]))
		}
		if len(parts) > 2 {
			k.ColumnType = models.ColumnType(strings.ToUpper(parts[2]))
		}
		keys = append(keys, k)
	}
	return keys, nil
}

func printView(w io.Writer, v *models.TableView, withIDs bool) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	header := v.ColumnNames()
	if withIDs {
		header = append([]string{"ROW"}, header...)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i := range v.Rows {
		row := &v.Rows[i]
		fields := make([]string, 0, len(header))
		if withIDs {
			fields = append(fields, row.ID)
		}
		for _, col := range v.Columns {
			c, _ := row.Cell(col.Name)
			fields = append(fields, c.Value)
		}
		fmt.Fprintln(tw, strings.Join(fields, "\t"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "(%d rows)\n", len(v.Rows))
	return err
}
