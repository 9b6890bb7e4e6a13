// Package metrics renders run statistics in the Prometheus text format for
// node_exporter's textfile collector.
package metrics

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"
)

// Snapshot is the data exported for one finished run.
type Snapshot struct {
	RunID    string
	Workers  int
	Duration time.Duration
	Finished time.Time

	// Files counts files per processor status.
	Files map[string]uint64

	Solved     uint64
	Unsolved   uint64
	PoolFaults uint64
}

// Families converts s to metric families sorted by name.
func Families(s Snapshot) []*dto.MetricFamily {
	run := []*dto.LabelPair{label("run_id", s.RunID)}

	statuses := make([]string, 0, len(s.Files))
	for st := range s.Files {
		statuses = append(statuses, st)
	}
	sort.Strings(statuses)

	files := make([]*dto.Metric, 0, len(statuses))
	for _, st := range statuses {
		files = append(files, counter(float64(s.Files[st]), label("run_id", s.RunID), label("status", st)))
	}

	fams := []*dto.MetricFamily{
		family("threadcalc_files_total", "Input files handled, by outcome.", dto.MetricType_COUNTER, files...),
		family("threadcalc_equations_total", "Equation records handled, by result.", dto.MetricType_COUNTER,
			counter(float64(s.Solved), label("result", "solved"), run[0]),
			counter(float64(s.Unsolved), label("result", "unsolved"), run[0]),
		),
		family("threadcalc_pool_faults_total", "Worker pool faults that halted the run.", dto.MetricType_COUNTER,
			counter(float64(s.PoolFaults), run...),
		),
		family("threadcalc_workers", "Worker goroutines in the pool.", dto.MetricType_GAUGE,
			gauge(float64(s.Workers), run...),
		),
		family("threadcalc_run_duration_seconds", "Wall time of the run.", dto.MetricType_GAUGE,
			gauge(s.Duration.Seconds(), run...),
		),
		family("threadcalc_last_run_timestamp_seconds", "Unix time the run finished.", dto.MetricType_GAUGE,
			gauge(float64(s.Finished.UnixNano())/1e9, run...),
		),
	}
	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// Render returns the text exposition of s.
func Render(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	for _, mf := range Families(s) {
		if len(mf.GetMetric()) == 0 {
			continue // expfmt rejects empty families
		}
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("render %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// WriteTextfile renders s and replaces path atomically, so the collector
// never reads a half-written file.
func WriteTextfile(path string, s Snapshot) error {
	data, err := Render(s)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("metrics: create temp: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("metrics: write: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("metrics: chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("metrics: close: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("metrics: rename: %w", err)
	}
	return nil
}

func family(name, help string, typ dto.MetricType, ms ...*dto.Metric) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name:   proto.String(name),
		Help:   proto.String(help),
		Type:   typ.Enum(),
		Metric: ms,
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func counter(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: sortLabels(labels), Counter: &dto.Counter{Value: proto.Float64(v)}}
}

func gauge(v float64, labels ...*dto.LabelPair) *dto.Metric {
	return &dto.Metric{Label: sortLabels(labels), Gauge: &dto.Gauge{Value: proto.Float64(v)}}
}

func sortLabels(ls []*dto.LabelPair) []*dto.LabelPair {
	sort.Slice(ls, func(i, j int) bool { return ls[i].GetName() < ls[j].GetName() })
	return ls
}
