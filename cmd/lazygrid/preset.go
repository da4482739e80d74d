package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Manage saved filter and sort presets",
}

var presetSaveCmd = &cobra.Command{
	Use:   "save <table-id> <name>",
	Short: "Save a table's current filter and sort as a preset",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		return withApp(cmd.Context(), func(a *app) error {
			table, err := a.store.GetTable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			pm, err := a.presets()
			if err != nil {
				return err
			}
			p, err := pm.Add(args[1], description, table.Filtering, table.Sorting)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), p.ID)
			return nil
		})
	},
}

var presetListCmd = &cobra.Command{
	Use:   "list",
	Short: "List presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			pm, err := a.presets()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tUSED\tFILTER\tSORT\tDESCRIPTION")
			for _, p := range pm.List() {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", p.Name, p.UsageCount, p.Filtering, p.Sorting, p.Description)
			}
			return w.Flush()
		})
	},
}

var presetApplyCmd = &cobra.Command{
	Use:   "apply <table-id> <preset>",
	Short: "Apply a preset's filter and sort to a table",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			pm, err := a.presets()
			if err != nil {
				return err
			}
			p, err := pm.Get(args[1])
			if err != nil {
				return err
			}
			if err := a.views.ApplyPreset(cmd.Context(), args[0], p); err != nil {
				return err
			}
			if err := pm.MarkUsed(p.ID); err != nil {
				a.logger.Warn("failed to record preset usage", "preset", p.Name, "error", err)
			}
			return nil
		})
	},
}

var presetDeleteCmd = &cobra.Command{
	Use:   "delete <preset>",
	Short: "Delete a preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			pm, err := a.presets()
			if err != nil {
				return err
			}
			return pm.Delete(args[0])
		})
	},
}

func init() {
	presetSaveCmd.Flags().String("description", "", "preset description")
	presetCmd.AddCommand(presetSaveCmd, presetListCmd, presetApplyCmd, presetDeleteCmd)
}
