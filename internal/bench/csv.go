package bench

import (
	"bytes"
	"encoding/csv"
	"strconv"

	"github.com/natefinch/atomic"
)

// CSVRow is one flattened measurement: a data point plus the parameter
// columns spec.md §6 requires (platform, device, num_features, num_points,
// num_clusters, the type tags).
type CSVRow struct {
	Name      string
	Kind      string
	Run       int
	Iteration int
	StartNS   int64
	EndNS     int64
	Params    map[string]string
}

var csvParamColumns = []string{
	"platform", "device", "num_features", "num_points", "num_clusters",
	"point_type", "label_type", "mass_type",
}

var csvHeader = append([]string{"name", "kind", "run", "iteration", "start_ns", "end_ns", "duration_ns"}, csvParamColumns...)

// WriteCSV serializes rows and persists them to path through
// natefinch/atomic, so a crashed or interrupted run never leaves a
// half-written CSV behind.
func WriteCSV(path string, rows []CSVRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			r.Name,
			r.Kind,
			strconv.Itoa(r.Run),
			strconv.Itoa(r.Iteration),
			strconv.FormatInt(r.StartNS, 10),
			strconv.FormatInt(r.EndNS, 10),
			strconv.FormatInt(r.EndNS-r.StartNS, 10),
		}
		for _, col := range csvParamColumns {
			record = append(record, r.Params[col])
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	return atomic.WriteFile(path, &buf)
}
