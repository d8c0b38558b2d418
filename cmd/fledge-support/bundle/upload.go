package bundlecmd

import (
	"fmt"
	"path/filepath"

	"fledge/config"
	"fledge/internal/support"

	"github.com/spf13/cobra"
)

func UploadCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "upload [bundle]",
		Short: "Upload a support bundle to object storage",
		Long:  "Upload the named bundle, or the newest one when no name is given, to the configured S3-compatible store.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := resolveBundle(cfg.SupportDir, args)
			if err != nil {
				return err
			}
			return uploadBundle(cmd.Context(), cfg.Upload, path)
		},
	}
}

func resolveBundle(dir string, args []string) (string, error) {
	bundles, err := support.ListBundles(dir)
	if err != nil {
		return "", err
	}
	if len(args) == 0 {
		if len(bundles) == 0 {
			return "", fmt.Errorf("no support bundles in %s", dir)
		}
		return bundles[len(bundles)-1].Path, nil
	}

	name := filepath.Base(args[0])
	for _, b := range bundles {
		if b.Name == name {
			return b.Path, nil
		}
	}
	return "", fmt.Errorf("support bundle %q not found in %s", name, dir)
}
