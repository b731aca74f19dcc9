package main

import (
	"bytes"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lsetiawan/ooipy/algorithms/spectral"
	"github.com/lsetiawan/ooipy/transcode"
)

const (
	archiveDay = "/CE02SHBP/LJ01D/11-HYDBBA106/2017/08/21/"
	archiveFs  = 100.0
)

var dayStart = time.Date(2017, 8, 21, 0, 0, 0, 0, time.UTC)

// archive serves one day of one-minute segments whose files already hold
// decoder output, so that cat can act as the converter.
type archive struct {
	names []string
	files map[string][]byte
}

func newArchive(t *testing.T, minutes int) *archive {
	t.Helper()
	a := &archive{files: map[string][]byte{}}
	n := int(60 * archiveFs)
	for m := range minutes {
		start := dayStart.Add(time.Duration(m) * time.Minute)
		name := "OO-HYEA1--YDH-" + start.Format("2006-01-02T15:04:05.000000") + ".mseed"

		samples := make([]float64, n)
		for i := range samples {
			k := m*n + i
			samples[i] = math.Sin(2 * math.Pi * 12.5 * float64(k) / archiveFs)
		}
		var buf bytes.Buffer
		require.NoError(t, transcode.EncodeOutput(&buf, transcode.OutputHeader{StartTime: start, SampleRate: archiveFs}, samples))

		a.names = append(a.names, name)
		a.files[name] = buf.Bytes()
	}
	return a
}

func (a *archive) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == archiveDay {
		var b strings.Builder
		b.WriteString("<html><body><pre>\n")
		for _, name := range a.names {
			fmt.Fprintf(&b, "<a href=%q>%s</a>\n", name, name)
		}
		b.WriteString("</pre></body></html>")
		_, _ = w.Write([]byte(b.String()))
		return
	}
	if strings.HasPrefix(r.URL.Path, archiveDay) {
		if data, ok := a.files[path.Base(r.URL.Path)]; ok {
			_, _ = w.Write(data)
			return
		}
	}
	http.NotFound(w, r)
}

func setup(t *testing.T, minutes int) string {
	t.Helper()
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	srv := httptest.NewServer(newArchive(t, minutes))
	t.Cleanup(srv.Close)

	cfgPath := filepath.Join(t.TempDir(), "ooipy.yaml")
	cfg := fmt.Sprintf(`
catalog:
  base_url: %s/
  timeout: 5s
decoder:
  command: cat
  temp_dir: %s
parallel:
  workers: 2
  chunks: 3
logging:
  level: error
`, srv.URL, t.TempDir())
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestParseTime(t *testing.T) {
	want := time.Date(2019, 11, 1, 12, 30, 0, 0, time.UTC)
	for _, s := range []string{
		"2019-11-01T12:30:00Z",
		"2019-11-01T13:30:00+01:00",
		"2019-11-01T12:30:00",
		"2019-11-01 12:30:00",
	} {
		got, err := parseTime(s)
		require.NoError(t, err, s)
		assert.True(t, want.Equal(got), s)
	}

	got, err := parseTime("2019-11-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2019, 11, 1, 0, 0, 0, 0, time.UTC), got)

	_, err = parseTime("yesterday")
	assert.Error(t, err)
}

func TestSegmentsCmd(t *testing.T) {
	cfgPath := setup(t, 5)

	out, err := execute(t, "segments", "-c", cfgPath, "-n", "LJ01D",
		"--start", "2017-08-21T00:02:10Z", "--end", "2017-08-21T00:02:50Z")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "YDH-2017-08-21T00:01:00.000000.mseed")
	assert.Contains(t, lines[1], "YDH-2017-08-21T00:02:00.000000.mseed")
	assert.Contains(t, lines[2], "YDH-2017-08-21T00:03:00.000000.mseed")

	out, err = execute(t, "segments", "-c", cfgPath, "-n", "LJ01D", "--all",
		"--start", "2017-08-21T00:02:10Z", "--end", "2017-08-21T00:02:50Z")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 5)
}

func TestSegmentsCmd_Errors(t *testing.T) {
	cfgPath := setup(t, 1)

	_, err := execute(t, "segments", "-c", cfgPath, "-n", "LJ01D",
		"--start", "2017-08-21T00:02:00Z", "--end", "2017-08-21T00:01:00Z")
	assert.ErrorContains(t, err, "--end must be after --start")

	_, err = execute(t, "segments", "-c", cfgPath, "-n", "NOPE",
		"--start", "2017-08-21T00:00:00Z", "--end", "2017-08-21T00:01:00Z")
	assert.ErrorContains(t, err, "unknown hydrophone node")

	_, err = execute(t, "segments", "-c", cfgPath, "-n", "LJ01D")
	assert.Error(t, err)
}

func TestSpectrogramCmd_SerialAndParallelAgree(t *testing.T) {
	cfgPath := setup(t, 3)
	dir := t.TempDir()
	window := []string{"-n", "LJ01D", "--start", "2017-08-21T00:00:30Z", "--end", "2017-08-21T00:02:00Z",
		"--segment-length", "500", "--avg-time", "0"}

	serialPath := filepath.Join(dir, "serial.yaml")
	_, err := execute(t, append([]string{"spectrogram", "-c", cfgPath, "-o", serialPath}, window...)...)
	require.NoError(t, err)

	parallelPath := filepath.Join(dir, "parallel.yaml")
	_, err = execute(t, append([]string{"spectrogram", "-c", cfgPath, "-o", parallelPath, "--parallel"}, window...)...)
	require.NoError(t, err)

	serial, err := spectral.LoadSpectrogram(serialPath)
	require.NoError(t, err)
	par, err := spectral.LoadSpectrogram(parallelPath)
	require.NoError(t, err)

	// 90 s at 100 Hz in 5 s blocks
	assert.Len(t, serial.Time, 18)
	assert.Len(t, serial.Freq, 251)
	assert.True(t, serial.Equal(par, 1e-9))
}

func TestPSDCmd(t *testing.T) {
	cfgPath := setup(t, 3)
	dir := t.TempDir()
	window := []string{"-n", "LJ01D", "--start", "2017-08-21T00:00:30Z", "--end", "2017-08-21T00:02:00Z",
		"--segment-length", "500"}

	psdPath := filepath.Join(dir, "psd.yaml")
	_, err := execute(t, append([]string{"psd", "-c", cfgPath, "-o", psdPath}, window...)...)
	require.NoError(t, err)
	psd, err := spectral.LoadPsd(psdPath)
	require.NoError(t, err)
	require.Len(t, psd.Freq, 251)

	// the 12.5 Hz tone dominates
	peak := 0
	for k, v := range psd.Values {
		if v > psd.Values[peak] {
			peak = k
		}
	}
	assert.InDelta(t, 12.5, psd.Freq[peak], 0.2)

	chunkDir := filepath.Join(dir, "chunks")
	out, err := execute(t, append([]string{"psd", "-c", cfgPath, "-o", chunkDir, "--per-chunk"}, window...)...)
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)

	entries, err := os.ReadDir(chunkDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "psd-20170821T000030.000000000Z.yaml", entries[0].Name())
}

func TestBearingCmd_Geometry(t *testing.T) {
	out, err := execute(t, "bearing", "--from", "LJ01C", "--to", "PC01A")
	require.NoError(t, err)
	assert.Contains(t, out, "distance:")
	assert.Contains(t, out, "bearing:    297.2")

	_, err = execute(t, "bearing", "--from", "LJ01C", "--to", "XX")
	assert.Error(t, err)
}
