package main

import (
	"context"
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/lsetiawan/ooipy/hydrophone/bearing"
	"github.com/lsetiawan/ooipy/logging"
)

func newBearingCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "bearing",
		Short: "Station geometry and cross-correlation bearing estimate for two nodes",
		Long: "Prints distance, expected delay and bearing between two stations. With --start and --end\n" +
			"both traces are acquired, cross-correlated in windows of --window seconds and the peak\n" +
			"lag is converted into the two candidate source bearings.",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			pair, err := bearing.NewPair(from, to)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "distance:   %.1f m\n", pair.Distance)
			fmt.Fprintf(out, "time delay: %.4f s\n", pair.TimeDelay)
			fmt.Fprintf(out, "bearing:    %.3f deg\n", pair.Bearing)

			s, _ := cmd.Flags().GetString("start")
			e, _ := cmd.Flags().GetString("end")
			if s == "" && e == "" {
				return nil
			}
			start, err := parseTime(s)
			if err != nil {
				return err
			}
			end, err := parseTime(e)
			if err != nil {
				return err
			}
			windowSeconds, _ := cmd.Flags().GetFloat64("window")

			return run(cmd, func(ctx context.Context, a *app) error {
				acq, err := a.newAcquirer()
				if err != nil {
					return err
				}
				h1, err := acq.Acquire(ctx, a.cfg.Request(from, start, end))
				if err != nil {
					return fmt.Errorf("%s: %w", from, err)
				}
				h2, err := acq.Acquire(ctx, a.cfg.Request(to, start, end))
				if err != nil {
					return fmt.Errorf("%s: %w", to, err)
				}
				if h1.SampleRate != h2.SampleRate {
					return fmt.Errorf("sample rates differ: %g Hz and %g Hz", h1.SampleRate, h2.SampleRate)
				}

				window := int(math.Round(windowSeconds * h1.SampleRate))
				xcorr, err := bearing.CrossCorrelate(h1.Samples, h2.Samples, window)
				if err != nil {
					return err
				}
				lag, err := bearing.PeakLag(xcorr, window, h1.SampleRate)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "peak lag:   %.4f s\n", lag)

				bearings, err := pair.BearingFromLag(lag)
				if err != nil {
					a.logger.Warn("Peak lag has no bearing solution", logging.Fields{"lag": lag, "error": err.Error()})
					return err
				}
				fmt.Fprintf(out, "source:     %.3f deg or %.3f deg\n", bearings[0], bearings[1])
				return nil
			})
		},
	}
	c.Flags().String("from", "", "first station (time reference)")
	c.Flags().String("to", "", "second station")
	c.Flags().String("start", "", "correlation window start, UTC")
	c.Flags().String("end", "", "correlation window end, UTC")
	c.Flags().Float64("window", 60, "correlation period in seconds")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")
	return c
}
