package transcode

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsetiawan/ooipy/logging"
)

var segStart = time.Date(2017, 8, 21, 0, 5, 0, 0, time.UTC)

func encoded(t *testing.T, header OutputHeader, samples []float64) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, EncodeOutput(&buf, header, samples))
	return buf.Bytes()
}

// catDecoder uses cat as the converter, so the segment file must already
// hold decoder output.
func catDecoder(t *testing.T) *ExecDecoder {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	cfg := DefaultDecoderConfig()
	cfg.Command = "cat"
	cfg.TempDir = t.TempDir()
	d, err := NewExecDecoder(cfg, &logging.NoOpLogger{})
	require.NoError(t, err)
	return d
}

func TestParseOutput(t *testing.T) {
	samples := []float64{0, 1.5, -2.25, 1e-9}
	data := encoded(t, OutputHeader{StartTime: segStart, SampleRate: 64000, Station: "LJ01C"}, samples)

	header, got, err := ParseOutput(bytes.NewReader(data))
	require.NoError(t, err)
	assert.True(t, segStart.Equal(header.StartTime))
	assert.Equal(t, 64000.0, header.SampleRate)
	assert.Equal(t, "LJ01C", header.Station)
	assert.Equal(t, samples, got)

	// header only
	_, got, err = ParseOutput(bytes.NewReader([]byte(`{"sample_rate": 1}` + "\n")))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseOutput_TruncatedSamples(t *testing.T) {
	data := encoded(t, OutputHeader{StartTime: segStart, SampleRate: 64000}, []float64{0, 1.5})

	header, got, err := ParseOutput(bytes.NewReader(append(data, 1, 2, 3)))
	assert.ErrorContains(t, err, "truncated sample data: 3 trailing bytes after 2 samples")
	assert.Nil(t, header)
	assert.Nil(t, got)
}

func TestParseOutput_Errors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"empty", ""},
		{"no newline", `{"sample_rate": 1}`},
		{"not json", "hello\n"},
		{"zero sample rate", `{"sample_rate": 0}` + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := ParseOutput(bytes.NewReader([]byte(tc.data)))
			assert.Error(t, err)
		})
	}
}

func TestBuildArgs(t *testing.T) {
	d := &ExecDecoder{config: DecoderConfig{Args: []string{"--in={input}", "-f"}}}
	assert.Equal(t, []string{"--in=/tmp/a.mseed", "-f"}, d.buildArgs("/tmp/a.mseed"))

	d.config.Args = []string{"-f"}
	assert.Equal(t, []string{"-f", "/tmp/a.mseed"}, d.buildArgs("/tmp/a.mseed"))
}

func TestDecode_HTTP(t *testing.T) {
	samples := []float64{1, 2, 3, 4}
	body := encoded(t, OutputHeader{StartTime: segStart, SampleRate: 200}, samples)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.mseed" {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	}))
	defer srv.Close()

	d := catDecoder(t)
	locator := srv.URL + "/OO-HYVM1--YDH-2017-08-21T00:05:00.000000.mseed"
	seg, err := d.Decode(context.Background(), locator)
	require.NoError(t, err)
	assert.Equal(t, locator, seg.Locator)
	assert.Equal(t, 200.0, seg.SampleRate)
	assert.Equal(t, samples, seg.Samples)
	assert.True(t, segStart.Equal(seg.StartTime))

	// temp files are removed
	entries, err := os.ReadDir(d.config.TempDir)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = d.Decode(context.Background(), srv.URL+"/missing.mseed")
	assert.ErrorContains(t, err, "HTTP 404")
}

func TestDecode_LocalFileNameFallback(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "OO-HYVM1--YDH-2017-08-21T00:05:00.000000.mseed")
	require.NoError(t, os.WriteFile(name, encoded(t, OutputHeader{SampleRate: 100}, []float64{7}), 0o644))

	seg, err := catDecoder(t).Decode(context.Background(), name)
	require.NoError(t, err)
	assert.True(t, segStart.Equal(seg.StartTime))
	assert.Equal(t, []float64{7}, seg.Samples)

	seg, err = catDecoder(t).Decode(context.Background(), "file://"+name)
	require.NoError(t, err)
	assert.Len(t, seg.Samples, 1)
}

func TestDecode_Errors(t *testing.T) {
	d := catDecoder(t)

	_, err := d.Decode(context.Background(), filepath.Join(t.TempDir(), "absent.mseed"))
	assert.Error(t, err)

	_, err = d.Decode(context.Background(), "ftp://example.org/a.mseed")
	assert.ErrorContains(t, err, "unsupported locator scheme")

	// no start time in header or name
	name := filepath.Join(t.TempDir(), "segment.bin")
	require.NoError(t, os.WriteFile(name, encoded(t, OutputHeader{SampleRate: 100}, []float64{1}), 0o644))
	_, err = d.Decode(context.Background(), name)
	assert.ErrorContains(t, err, "no start time")
}

func TestDecode_CommandFailure(t *testing.T) {
	if _, err := exec.LookPath("false"); err != nil {
		t.Skip("false not available")
	}
	cfg := DefaultDecoderConfig()
	cfg.Command = "false"
	d, err := NewExecDecoder(cfg, &logging.NoOpLogger{})
	require.NoError(t, err)

	name := filepath.Join(t.TempDir(), "x.mseed")
	require.NoError(t, os.WriteFile(name, nil, 0o644))
	_, err = d.Decode(context.Background(), name)
	assert.ErrorContains(t, err, "decoder command failed")
}

func TestDecoderConfig_Validate(t *testing.T) {
	cfg := DefaultDecoderConfig()
	assert.Error(t, cfg.Validate())

	cfg.Command = "mseed2f64"
	assert.NoError(t, cfg.Validate())

	cfg.Timeout = -time.Second
	assert.Error(t, cfg.Validate())

	_, err := NewExecDecoder(DefaultDecoderConfig(), nil)
	assert.Error(t, err)
}
