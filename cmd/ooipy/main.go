package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "ooipy",
		Short:         "Ocean Observatories hydrophone data acquisition and spectral analysis",
		Long:          "Lists, downloads and merges broadband hydrophone segments from the raw data archive and computes calibrated spectrograms, PSDs and bearing estimates.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addGlobalFlags(rootCmd)

	rootCmd.AddCommand(newSegmentsCmd())
	rootCmd.AddCommand(newSpectrogramCmd())
	rootCmd.AddCommand(newPSDCmd())
	rootCmd.AddCommand(newBearingCmd())
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
