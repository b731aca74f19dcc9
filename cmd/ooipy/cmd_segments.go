package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lsetiawan/ooipy/hydrophone/catalog"
)

func newSegmentsCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "segments",
		Short: "List the archive segments covering a time window",
		RunE: func(cmd *cobra.Command, args []string) error {
			node, start, end, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			all, _ := cmd.Flags().GetBool("all")

			return run(cmd, func(ctx context.Context, a *app) error {
				cat, err := a.newCatalog()
				if err != nil {
					return err
				}
				descs, err := cat.ListRange(ctx, node, start, end, a.cfg.Acquisition.Pad)
				if err != nil {
					return err
				}
				if !all {
					descs, err = catalog.Select(descs, start, end, a.cfg.Acquisition.Pad, a.cfg.Acquisition.Ceiling)
					if err != nil {
						return err
					}
				}

				out := cmd.OutOrStdout()
				for _, d := range descs {
					fmt.Fprintf(out, "%s\t%s\t%s\n",
						d.StartTime.Format(time.RFC3339Nano), d.EndTime.Format(time.RFC3339Nano), d.Locator)
				}
				return nil
			})
		},
	}
	addWindowFlags(c)
	c.Flags().Bool("all", false, "print every listed segment of the covered days without selection")
	return c
}
