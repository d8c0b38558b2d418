package bundlecmd

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"fledge/cmd/fledge-support/ui"
	"fledge/config"
	"fledge/internal/support"

	"github.com/spf13/cobra"
)

// BuildCmd returns "fledge-support build". cfg is filled by the root
// command before RunE runs.
func BuildCmd(cfg *config.Config) *cobra.Command {
	var upload bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Collect diagnostics into a new support bundle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var bundle support.Bundle
			err := ui.RunWithSpinner(cmd.Context(), "Building support bundle", func(ctx context.Context, status func(string)) error {
				progress := ui.NewProgress(status)
				defer progress.Close()

				env, err := openEnvironment(ctx, cfg, progress.Tracer(tracerName))
				if err != nil {
					return err
				}
				defer env.Close()

				bundle, err = env.builder.Build(ctx)
				return err
			})
			if err != nil {
				return err
			}

			printBundle(bundle)

			if !upload && !cfg.Upload.Enabled {
				return nil
			}
			return uploadBundle(cmd.Context(), cfg.Upload, bundle.Path)
		},
	}
	cmd.Flags().BoolVar(&upload, "upload", false, "Upload the bundle to the configured object store")
	return cmd
}

func printBundle(b support.Bundle) {
	size := "-"
	if info, err := os.Stat(b.Path); err == nil {
		size = ui.Size(info.Size())
	}

	fmt.Println(ui.SuccessMsg("Support bundle created."))
	fmt.Print(ui.KeyValues("  ",
		ui.KV("Path", b.Path),
		ui.KV("Generation", b.GenerationID),
		ui.KV("Size", size),
		ui.KV("Entries", strconv.Itoa(len(b.Entries))),
	))

	if len(b.Skipped) == 0 {
		return
	}
	fmt.Println(ui.WarnMsg("%d item(s) could not be collected:", len(b.Skipped)))
	for _, s := range b.Skipped {
		fmt.Printf("  %s %s: %v\n", ui.Muted(s.Step), s.Item, s.Err)
	}
}

func uploadBundle(ctx context.Context, u config.Upload, path string) error {
	uploader, err := newUploader(u)
	if err != nil {
		return err
	}

	var key string
	err = ui.RunWithSpinner(ctx, "Uploading support bundle", func(ctx context.Context, _ func(string)) error {
		var err error
		key, err = uploader.Upload(ctx, path)
		return err
	})
	if err != nil {
		return err
	}
	fmt.Println(ui.SuccessMsg("Uploaded to s3://%s/%s", uploader.Bucket(), key))
	return nil
}
