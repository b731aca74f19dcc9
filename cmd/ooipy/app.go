package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/config"
	"github.com/lsetiawan/ooipy/hydrophone/acquire"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/hydrophone/fetch"
	"github.com/lsetiawan/ooipy/logging"
)

// timeLayouts are accepted by every time flag, all read as UTC.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func addGlobalFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringP("config", "c", "", "YAML config file (defaults are used when empty)")
	cmd.PersistentFlags().String("log-level", "", "override logging.level (debug, info, warn, error)")
	cmd.PersistentFlags().String("metrics-addr", "", "serve Prometheus metrics on this address while the command runs")
}

// app holds what every subcommand needs.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	close  func() error
}

func loadApp(cmd *cobra.Command) (*app, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}

	logger, closer, err := cfg.NewLogger()
	if err != nil {
		return nil, err
	}
	logging.SetGlobalLogger(logger)

	a := &app{cfg: cfg, logger: logger, close: closer}

	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		a.serveMetrics(addr)
	}
	return a, nil
}

func (a *app) serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error(err, "Metrics server stopped", logging.Fields{"addr": addr})
		}
	}()

	prev := a.close
	a.close = func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		return prev()
	}
	a.logger.Info("Serving metrics", logging.Fields{"addr": addr})
}

func (a *app) newCatalog() (*catalog.Catalog, error) {
	return catalog.New(a.cfg.Catalog, a.logger)
}

func (a *app) newAcquirer() (*acquire.Acquirer, error) {
	cat, err := a.newCatalog()
	if err != nil {
		return nil, err
	}
	decoder, err := a.cfg.NewDecoder(a.logger)
	if err != nil {
		return nil, err
	}
	fetcher := fetch.NewFetcher(decoder, a.cfg.Fetch, a.logger)
	return acquire.New(cat, fetcher, a.cfg.AcquireOptions(), a.logger), nil
}

// run wraps a subcommand body with signal handling and cleanup.
func run(cmd *cobra.Command, body func(ctx context.Context, a *app) error) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return body(ctx, a)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (use RFC 3339, e.g. 2019-11-01T00:00:00Z)", s)
}

// addWindowFlags registers --node, --start and --end.
func addWindowFlags(c *cobra.Command) {
	c.Flags().StringP("node", "n", "", fmt.Sprintf("hydrophone node (%s)", strings.Join(catalog.NodeNames(), ", ")))
	c.Flags().String("start", "", "window start, UTC")
	c.Flags().String("end", "", "window end, UTC")
	_ = c.MarkFlagRequired("node")
	_ = c.MarkFlagRequired("start")
	_ = c.MarkFlagRequired("end")
}

func windowFlags(cmd *cobra.Command) (node string, start, end time.Time, err error) {
	node, _ = cmd.Flags().GetString("node")
	s, _ := cmd.Flags().GetString("start")
	e, _ := cmd.Flags().GetString("end")
	if start, err = parseTime(s); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if end, err = parseTime(e); err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return "", time.Time{}, time.Time{}, fmt.Errorf("--end must be after --start")
	}
	return node, start, end, nil
}

// addSpectralFlags registers overrides for the spectral config section.
func addSpectralFlags(c *cobra.Command) {
	c.Flags().Int("segment-length", 0, "override spectral.segment_length")
	c.Flags().Float64("avg-time", -1, "override spectral.avg_time in seconds (0 for periodogram mode)")
	c.Flags().String("window", "", "override spectral.window")
	c.Flags().String("average", "", "override spectral.average (mean, median)")
	c.Flags().Bool("linear", false, "linear output instead of dB")
}

func spectralParams(cmd *cobra.Command, cfg *config.Config) (spectral.Params, error) {
	p := cfg.Spectral
	if v, _ := cmd.Flags().GetInt("segment-length"); v > 0 {
		p.SegmentLength = v
	}
	if v, _ := cmd.Flags().GetFloat64("avg-time"); v >= 0 {
		p.AvgTime = v
	}
	if v, _ := cmd.Flags().GetString("window"); v != "" {
		p.Window = v
	}
	if v, _ := cmd.Flags().GetString("average"); v != "" {
		avg, err := spectral.ParseAverageMethod(v)
		if err != nil {
			return p, err
		}
		p.Average = avg
	}
	if v, _ := cmd.Flags().GetBool("linear"); v {
		p.Scale = spectral.ScaleLinear
	}
	return p, p.Validate()
}
