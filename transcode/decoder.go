// Package transcode turns archived segment files into sample arrays by
// running an external converter.
package transcode

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"
	"time"

	"github.com/lsetiawan/ooipy/hydrophone"
	"github.com/lsetiawan/ooipy/hydrophone/catalog"
	"github.com/lsetiawan/ooipy/logging"
)

// InputPlaceholder in DecoderConfig.Args is replaced by the local path of
// the segment file. Without it the path is appended as the last argument.
const InputPlaceholder = "{input}"

// DecoderConfig holds decoder configuration
type DecoderConfig struct {
	// Command prints a single JSON header line followed by little-endian
	// float64 samples on stdout.
	Command     string        `yaml:"command"`
	Args        []string      `yaml:"args"`
	Timeout     time.Duration `yaml:"timeout"`      // converter run time
	HTTPTimeout time.Duration `yaml:"http_timeout"` // segment download
	TempDir     string        `yaml:"temp_dir"`     // "" uses os.TempDir
}

// DefaultDecoderConfig returns default decoder configuration. Command is
// left empty and must be configured.
func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		Args:        []string{InputPlaceholder},
		Timeout:     60 * time.Second,
		HTTPTimeout: 60 * time.Second,
	}
}

// Validate checks the decoder configuration
func (c DecoderConfig) Validate() error {
	if c.Command == "" {
		return errors.New("decoder command is not configured")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative: %v", c.Timeout)
	}
	if c.HTTPTimeout < 0 {
		return fmt.Errorf("http timeout must not be negative: %v", c.HTTPTimeout)
	}
	return nil
}

// OutputHeader is the first line printed by the converter.
type OutputHeader struct {
	StartTime  time.Time `json:"start_time"`
	SampleRate float64   `json:"sample_rate"`
	Network    string    `json:"network,omitempty"`
	Station    string    `json:"station,omitempty"`
	Channel    string    `json:"channel,omitempty"`
}

// ExecDecoder downloads a segment and decodes it with an external command.
// It is safe for concurrent use.
type ExecDecoder struct {
	config DecoderConfig
	client *http.Client
	logger logging.Logger
}

// NewExecDecoder validates cfg and returns a decoder.
func NewExecDecoder(cfg DecoderConfig, logger logging.Logger) (*ExecDecoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ExecDecoder{
		config: cfg,
		client: &http.Client{Timeout: cfg.HTTPTimeout},
		logger: logging.OrGlobal(logger).WithFields(logging.Fields{
			"component": "segment_decoder",
		}),
	}, nil
}

// Decode fetches the segment at locator (an http(s) URL, file URL or local
// path) and runs the converter on it.
func (d *ExecDecoder) Decode(ctx context.Context, locator string) (*hydrophone.DecodedSegment, error) {
	logger := d.logger.WithContext(ctx).WithFields(logging.Fields{
		"function": "Decode",
		"locator":  locator,
	})

	filename, cleanup, err := d.localFile(ctx, locator)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	startTime := time.Now()
	output, err := d.run(ctx, filename, logger)
	if err != nil {
		return nil, err
	}

	header, samples, err := ParseOutput(bytes.NewReader(output))
	if err != nil {
		return nil, fmt.Errorf("failed to read decoder output for %s: %w", locator, err)
	}

	start := header.StartTime
	if start.IsZero() {
		// fall back to the timestamp in the file name
		t, ok := catalog.ParseSegmentName(path.Base(locator))
		if !ok {
			return nil, fmt.Errorf("decoder output for %s has no start time", locator)
		}
		start = t
	}

	logger.Debug("Segment decoded", logging.Fields{
		"samples":     len(samples),
		"sample_rate": header.SampleRate,
		"decode_time": time.Since(startTime).Seconds(),
	})

	return &hydrophone.DecodedSegment{
		Locator:    locator,
		StartTime:  start.UTC(),
		SampleRate: header.SampleRate,
		Samples:    samples,
	}, nil
}

func (d *ExecDecoder) run(ctx context.Context, filename string, logger logging.Logger) ([]byte, error) {
	if d.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.Timeout)
		defer cancel()
	}

	args := d.buildArgs(filename)
	cmd := exec.CommandContext(ctx, d.config.Command, args...)

	logger.Debug("Running decoder command", logging.Fields{
		"command": d.config.Command,
		"args":    strings.Join(args, " "),
	})

	output, err := cmd.Output()
	if err != nil {
		var exitError *exec.ExitError
		if errors.As(err, &exitError) {
			logger.Error(err, "Decoder command failed", logging.Fields{
				"stderr": string(exitError.Stderr),
			})
			return nil, fmt.Errorf("decoder command failed: %w, stderr: %s", err, strings.TrimSpace(string(exitError.Stderr)))
		}
		return nil, fmt.Errorf("decoder command failed: %w", err)
	}
	return output, nil
}

func (d *ExecDecoder) buildArgs(filename string) []string {
	args := make([]string, 0, len(d.config.Args)+1)
	replaced := false
	for _, a := range d.config.Args {
		if strings.Contains(a, InputPlaceholder) {
			a = strings.ReplaceAll(a, InputPlaceholder, filename)
			replaced = true
		}
		args = append(args, a)
	}
	if !replaced {
		args = append(args, filename)
	}
	return args
}

// localFile returns a readable path for locator. Remote segments are
// downloaded to a temporary file removed by the returned cleanup.
func (d *ExecDecoder) localFile(ctx context.Context, locator string) (string, func(), error) {
	noop := func() {}

	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// plain path, including Windows drive letters
		if _, err := os.Stat(locator); err != nil {
			return "", noop, fmt.Errorf("segment file not readable: %w", err)
		}
		return locator, noop, nil
	}

	switch u.Scheme {
	case "file":
		if _, err := os.Stat(u.Path); err != nil {
			return "", noop, fmt.Errorf("segment file not readable: %w", err)
		}
		return u.Path, noop, nil
	case "http", "https":
		return d.download(ctx, locator)
	default:
		return "", noop, fmt.Errorf("unsupported locator scheme %q", u.Scheme)
	}
}

func (d *ExecDecoder) download(ctx context.Context, locator string) (string, func(), error) {
	noop := func() {}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return "", noop, fmt.Errorf("failed to build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", noop, fmt.Errorf("failed to download segment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", noop, fmt.Errorf("failed to download segment: HTTP %d", resp.StatusCode)
	}

	f, err := os.CreateTemp(d.config.TempDir, "segment-*.mseed")
	if err != nil {
		return "", noop, fmt.Errorf("failed to create temp file: %w", err)
	}
	cleanup := func() { os.Remove(f.Name()) }

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		cleanup()
		return "", noop, fmt.Errorf("failed to download segment: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", noop, fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

// ParseOutput reads a JSON header line and the float64 samples after it.
// Sample data that ends inside a sample is an error.
func ParseOutput(r io.Reader) (*OutputHeader, []float64, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadBytes('\n')
	if err != nil {
		return nil, nil, fmt.Errorf("missing header line: %w", err)
	}

	var header OutputHeader
	if err := json.Unmarshal(line, &header); err != nil {
		return nil, nil, fmt.Errorf("invalid header: %w", err)
	}
	if header.SampleRate <= 0 || math.IsNaN(header.SampleRate) {
		return nil, nil, fmt.Errorf("invalid sample rate %g", header.SampleRate)
	}

	data, err := io.ReadAll(br)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read samples: %w", err)
	}
	samples, err := bytesToFloat64(data)
	if err != nil {
		return nil, nil, err
	}
	return &header, samples, nil
}

// EncodeOutput writes header and samples in the format ParseOutput reads.
func EncodeOutput(w io.Writer, header OutputHeader, samples []float64) error {
	line, err := json.Marshal(header)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(w)
	bw.Write(line)
	bw.WriteByte('\n')
	if err := binary.Write(bw, binary.LittleEndian, samples); err != nil {
		return err
	}
	return bw.Flush()
}

// bytesToFloat64 converts raw little-endian float64 bytes to []float64.
// A length that is not a multiple of 8 means truncated output.
func bytesToFloat64(data []byte) ([]float64, error) {
	if rem := len(data) % 8; rem != 0 {
		return nil, fmt.Errorf("truncated sample data: %d trailing bytes after %d samples", rem, len(data)/8)
	}
	if len(data) == 0 {
		return nil, nil
	}

	samples := make([]float64, len(data)/8)
	for i := range samples {
		bits := binary.LittleEndian.Uint64(data[i*8 : i*8+8])
		samples[i] = math.Float64frombits(bits)
	}
	return samples, nil
}
