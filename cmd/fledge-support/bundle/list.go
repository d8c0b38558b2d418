package bundlecmd

import (
	"fmt"
	"slices"

	"fledge/cmd/fledge-support/ui"
	"fledge/config"
	"fledge/internal/support"

	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

func ListCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List support bundles, newest first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			bundles, err := support.ListBundles(cfg.SupportDir)
			if err != nil {
				return err
			}
			if len(bundles) == 0 {
				fmt.Println(ui.InfoMsg("No support bundles in %s.", cfg.SupportDir))
				return nil
			}
			fmt.Println(ui.Table([]string{"NAME", "SIZE", "CREATED", "AGE"}, bundleRows(bundles)))
			return nil
		},
	}
}

func bundleRows(bundles []support.BundleInfo) [][]string {
	rows := make([][]string, 0, len(bundles))
	for _, b := range slices.Backward(bundles) {
		rows = append(rows, []string{b.Name, ui.Size(b.Size), b.ModTime.Format(timeLayout), ui.Age(b.ModTime)})
	}
	return rows
}
