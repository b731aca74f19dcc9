package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/hydrophone/parallel"
)

// chunkFileLayout names per-chunk PSD files by chunk start.
const chunkFileLayout = "20060102T150405.000000000Z"

func newPSDCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "psd",
		Short: "Compute a Welch power spectral density and write it as YAML",
		Long: "Computes one PSD over the whole window, or with --per-chunk one PSD per chunk\n" +
			"of the parallel section, written into the --out directory.",
		RunE: func(cmd *cobra.Command, args []string) error {
			node, start, end, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			perChunk, _ := cmd.Flags().GetBool("per-chunk")

			return run(cmd, func(ctx context.Context, a *app) error {
				params, err := spectralParams(cmd, a.cfg)
				if err != nil {
					return err
				}
				acq, err := a.newAcquirer()
				if err != nil {
					return err
				}
				analyzer := spectral.NewAnalyzer(nil, a.logger)

				if !perChunk {
					trace, err := acq.Acquire(ctx, a.cfg.Request(node, start, end))
					if err != nil {
						return err
					}
					psd, err := analyzer.PSD(trace, params)
					if err != nil {
						return err
					}
					if err := spectral.SavePsd(outPath, psd); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %d frequency bins\n", outPath, len(psd.Freq))
					return nil
				}

				coord := parallel.NewCoordinator(analyzer, a.cfg.Parallel.Workers, a.logger)
				source := acq.Source(a.cfg.Request(node, start, end))
				psds, err := coord.PSDParallel(ctx, start, end, source, a.cfg.Partition(), params)
				if err != nil {
					return err
				}

				if err := os.MkdirAll(outPath, 0o755); err != nil {
					return fmt.Errorf("failed to create output directory: %w", err)
				}
				for _, cp := range psds {
					name := filepath.Join(outPath, "psd-"+cp.Chunk.Start.UTC().Format(chunkFileLayout)+".yaml")
					if err := spectral.SavePsd(name, cp.Psd); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	addWindowFlags(c)
	addSpectralFlags(c)
	c.Flags().StringP("out", "o", "psd.yaml", "output file, or directory with --per-chunk")
	c.Flags().Bool("per-chunk", false, "write one PSD per chunk instead of one for the whole window")
	return c
}
