package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List saved presets, newest last",
	RunE:  runPresets,
}

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List sound categories with their sound counts",
	RunE:  runCatalog,
}

func init() {
	rootCmd.AddCommand(presetsCmd, catalogCmd)
}

func runPresets(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer lib.close()

	list, err := lib.store.ListPresets(cmd.Context())
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tLAYERS\tMASTER\tSAVED")
	for _, p := range list {
		master := "-"
		if p.MasterVolume != nil {
			master = fmt.Sprintf("%d", *p.MasterVolume)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", p.ID, p.Name, len(p.Layers), master, p.CreatedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runCatalog(cmd *cobra.Command, args []string) error {
	lib, err := openLibrary(cmd.Context())
	if err != nil {
		return err
	}
	defer lib.close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tKIND\tSOUNDS")
	for _, c := range lib.catalog.ListCategories() {
		fmt.Fprintf(tw, "%s %s\t%s\t%d\n", c.Icon, c.Name, c.Kind, c.Count)
	}
	return tw.Flush()
}
