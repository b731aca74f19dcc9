package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/hydrophone/parallel"
	"github.com/lsetiawan/ooipy/logging"
)

func newSpectrogramCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "spectrogram",
		Short: "Compute a calibrated spectrogram and write it as YAML",
		Long: "Acquires the window and computes a spectrogram. With --parallel the window is split\n" +
			"into chunks (parallel section of the config) that are acquired and analysed concurrently.",
		RunE: func(cmd *cobra.Command, args []string) error {
			node, start, end, err := windowFlags(cmd)
			if err != nil {
				return err
			}
			outPath, _ := cmd.Flags().GetString("out")
			useParallel, _ := cmd.Flags().GetBool("parallel")

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

				var spec *spectral.Spectrogram
				if useParallel {
					coord := parallel.NewCoordinator(analyzer, a.cfg.Parallel.Workers, a.logger)
					source := acq.Source(a.cfg.Request(node, start, end))
					spec, err = coord.AnalyzeParallel(ctx, start, end, source, a.cfg.Partition(), params)
				} else {
					trace, acqErr := acq.Acquire(ctx, a.cfg.Request(node, start, end))
					if acqErr != nil {
						return acqErr
					}
					spec, err = analyzer.Spectrogram(trace, params)
				}
				if err != nil {
					return err
				}

				if err := spectral.SaveSpectrogram(outPath, spec); err != nil {
					return err
				}
				a.logger.Info("Spectrogram written", logging.Fields{
					"path":      outPath,
					"time_bins": len(spec.Time),
					"freq_bins": len(spec.Freq),
				})
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d time bins x %d frequency bins\n", outPath, len(spec.Time), len(spec.Freq))
				return nil
			})
		},
	}
	addWindowFlags(c)
	addSpectralFlags(c)
	c.Flags().StringP("out", "o", "spectrogram.yaml", "output file")
	c.Flags().Bool("parallel", false, "split the window into chunks and analyse them concurrently")
	return c
}
