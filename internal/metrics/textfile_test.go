package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample() Snapshot {
	return Snapshot{
		RunID:    "0190a000-0000-7000-8000-000000000001",
		Workers:  4,
		Duration: 1500 * time.Millisecond,
		Finished: time.Unix(1700000000, 0),
		Files: map[string]uint64{
			"processed": 7,
			"truncated": 1,
		},
		Solved:   40,
		Unsolved: 2,
	}
}

func parse(t *testing.T, path string) map[string]*dto.MetricFamily {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(f)
	require.NoError(t, err)
	return mfs
}

func valueFor(mf *dto.MetricFamily, name, value string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				if m.Counter != nil {
					return m.Counter.GetValue(), true
				}
				return m.Gauge.GetValue(), true
			}
		}
	}
	return 0, false
}

func TestWriteTextfile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threadcalc.prom")
	require.NoError(t, WriteTextfile(path, sample()))

	mfs := parse(t, path)

	files := mfs["threadcalc_files_total"]
	require.NotNil(t, files)
	assert.Equal(t, dto.MetricType_COUNTER, files.GetType())
	v, ok := valueFor(files, "status", "processed")
	require.True(t, ok)
	assert.Equal(t, 7.0, v)
	v, ok = valueFor(files, "status", "truncated")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)

	eqs := mfs["threadcalc_equations_total"]
	v, _ = valueFor(eqs, "result", "solved")
	assert.Equal(t, 40.0, v)
	v, _ = valueFor(eqs, "result", "unsolved")
	assert.Equal(t, 2.0, v)

	dur := mfs["threadcalc_run_duration_seconds"]
	require.NotNil(t, dur)
	assert.Equal(t, dto.MetricType_GAUGE, dur.GetType())
	assert.Equal(t, 1.5, dur.GetMetric()[0].GetGauge().GetValue())

	ts := mfs["threadcalc_last_run_timestamp_seconds"]
	assert.Equal(t, 1700000000.0, ts.GetMetric()[0].GetGauge().GetValue())

	assert.Equal(t, 4.0, mfs["threadcalc_workers"].GetMetric()[0].GetGauge().GetValue())
	assert.Equal(t, 0.0, mfs["threadcalc_pool_faults_total"].GetMetric()[0].GetCounter().GetValue())
}

func TestWriteTextfile_ReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "threadcalc.prom")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteTextfile(path, sample()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "stale")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must not be left behind")
}

func TestWriteTextfile_MissingDir(t *testing.T) {
	err := WriteTextfile(filepath.Join(t.TempDir(), "no", "such", "x.prom"), sample())
	assert.Error(t, err)
}

func TestRender_SortedAndLabelled(t *testing.T) {
	data, err := Render(sample())
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "# TYPE threadcalc_files_total counter")
	assert.Contains(t, text, `threadcalc_files_total{run_id="0190a000-0000-7000-8000-000000000001",status="processed"} 7`)
	assert.Less(t,
		strings.Index(text, "threadcalc_equations_total"),
		strings.Index(text, "threadcalc_files_total"),
		"families are sorted by name")
}

func TestFamilies_NoFiles(t *testing.T) {
	s := sample()
	s.Files = nil
	data, err := Render(s)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "threadcalc_files_total{")
}
