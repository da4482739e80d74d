package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/rebeliceyang/lazygrid/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		addr, _ := cmd.Flags().GetString("addr")
		return withApp(ctx, func(a *app) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			return server.New(a.views, a.cfg.Server.Mode, a.logger).Run(ctx, addr)
		})
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			tables, err := a.views.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tFILTERED\tSORTED")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Name, yesNo(t.Filtering != ""), yesNo(t.Sorting != ""))
			}
			return w.Flush()
		})
	},
}

var createTableCmd = &cobra.Command{
	Use:   "create-table <name>",
	Short: "Create an empty table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			t, err := a.views.CreateTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		})
	},
}

var addColumnCmd = &cobra.Command{
	Use:   "add-column <table-id> <name> [TEXT|NUMBER]",
	Short: "Add a column; existing rows get an empty cell",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		typ := "TEXT"
		if len(args) == 3 {
			typ = args[2]
		}
		return withApp(cmd.Context(), func(a *app) error {
			col, err := a.views.CreateColumn(cmd.Context(), args[0], args[1], typ)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), col.ID)
			return nil
		})
	},
}

var addRowCmd = &cobra.Command{
	Use:   "add-row <table-id> [column=value ...]",
	Short: "Append a row",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		return withApp(cmd.Context(), func(a *app) error {
			row, err := a.views.CreateRow(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), row.ID)
			return nil
		})
	},
}

var setCellCmd = &cobra.Command{
	Use:   "set-cell <cell-id> <value>",
	Short: "Change a cell's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			_, err := a.views.UpdateCell(cmd.Context(), args[0], args[1])
			return err
		})
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default: server.addr)")
}

func parseAssignments(args []string) (map[string]string, error) {
	values := make(map[string]string, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected column=value, got %q", arg)
		}
		values[name] = value
	}
	return values, nil
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
