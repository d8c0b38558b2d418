package bundlecmd

import (
	"fmt"

	"fledge/cmd/fledge-support/ui"
	"fledge/config"
	"fledge/internal/support"

	"github.com/spf13/cobra"
)

func PruneCmd(cfg *config.Config) *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old support bundles",
		Long:  "Delete all but the newest --keep support bundles. Without --keep, the configured max_bundles is kept.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("keep") {
				keep = cfg.MaxBundles
			}
			if keep < 0 {
				return fmt.Errorf("--keep must not be negative")
			}

			deleted, err := prune(cfg.SupportDir, keep)
			for _, b := range deleted {
				fmt.Println(ui.SuccessMsg("Deleted %s (%s)", b.Name, ui.Size(b.Size)))
			}
			if err != nil {
				return err
			}
			if len(deleted) == 0 {
				fmt.Println(ui.InfoMsg("Nothing to prune."))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 0, "Number of newest bundles to keep")
	return cmd
}

// prune keeps the newest keep bundles. Retention counts the bundle about to
// be built, so keeping n means enforcing a limit of n+1.
func prune(dir string, keep int) ([]support.BundleInfo, error) {
	return support.EnforceRetention(dir, keep+1)
}
