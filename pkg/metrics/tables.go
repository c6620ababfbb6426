package metrics

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/log"
	"github.com/twosixlabs/magicwand/pkg/types"
	"github.com/twosixlabs/magicwand/pkg/utils/stringutils"
)

// Artifact names inside a run directory
const (
	CaptureFile       = "tcpdump.pcap"
	MemoryStatsFile   = "mem_stats.csv"
	ServerStatsFile   = "apache_stats.csv"
	RTTStatsFile      = "rtt_stats.csv"
	IPAttrMapFile     = "ip_attr_map.csv"
	LabeledFlowsFile  = "cic_flow_labeled.csv"
	RunParamsFile     = "run_parms.json"
	RunConfigFile     = "run_config.json"
	VerifyResultsFile = "verify_run.json"

	MemoryTimestampColumn = "timestamp"
	MemoryPercentColumn   = "memory_percent"
	TotalTrafficColumn    = "total_traffic"
	RTTColumn             = "rtt"
)

// Table is a CSV file held in memory with its header
type Table struct {
	Header []string
	Rows   [][]string
}

// Index returns the position of column, -1 when absent
func (t *Table) Index(column string) int {
	for i, h := range t.Header {
		if strings.TrimSpace(h) == column {
			return i
		}
	}
	return -1
}

// Column returns the values of column, rows too short to hold it are skipped
func (t *Table) Column(column string) ([]string, error) {
	idx := t.Index(column)
	if idx < 0 {
		return nil, errors.Errorf("column '%s' not found in header %v", column, t.Header)
	}
	values := make([]string, 0, len(t.Rows))
	for _, row := range t.Rows {
		if idx < len(row) {
			values = append(values, row[idx])
		}
	}
	return values, nil
}

// ReadTable reads a CSV file with a header row
func ReadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, errors.Errorf("%s is empty", path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read header of %s", path)
	}
	t := &Table{Header: header}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			log.Warnf("[Metrics]: skipping malformed row in %s, err: %v", path, err)
			continue
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// WriteTable writes header and rows as CSV
func WriteTable(path string, t *Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	if err := w.Write(t.Header); err != nil {
		f.Close()
		return err
	}
	if err := w.WriteAll(t.Rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func floatColumn(path, column string) ([]float64, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	raw, err := t.Column(column)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	values := make([]float64, 0, len(raw))
	for i, v := range raw {
		f, err := strconv.ParseFloat(stringutils.TrimPercent(v), 64)
		if err != nil {
			log.Warnf("[Metrics]: skipping row %d of %s, '%s' is not a number", i+1, filepath.Base(path), v)
			continue
		}
		values = append(values, f)
	}
	return values, nil
}

// ReadMemory reads mem_stats.csv
func ReadMemory(path string) ([]types.MemorySample, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	tsIdx, memIdx := t.Index(MemoryTimestampColumn), t.Index(MemoryPercentColumn)
	if memIdx < 0 {
		return nil, errors.Errorf("column '%s' not found in %s", MemoryPercentColumn, path)
	}
	samples := make([]types.MemorySample, 0, len(t.Rows))
	for i, row := range t.Rows {
		if memIdx >= len(row) {
			log.Warnf("[Metrics]: skipping short row %d of %s", i+1, filepath.Base(path))
			continue
		}
		pct, err := strconv.ParseFloat(stringutils.TrimPercent(row[memIdx]), 64)
		if err != nil {
			log.Warnf("[Metrics]: skipping row %d of %s, '%s' is not a number", i+1, filepath.Base(path), row[memIdx])
			continue
		}
		s := types.MemorySample{MemoryPercent: pct}
		if tsIdx >= 0 && tsIdx < len(row) {
			s.Timestamp = row[tsIdx]
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// ReadServer reads the total_traffic column of apache_stats.csv
func ReadServer(path string) ([]types.ServerSample, error) {
	t, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	raw, err := t.Column(TotalTrafficColumn)
	if err != nil {
		return nil, errors.Wrapf(err, "in %s", path)
	}
	samples := make([]types.ServerSample, 0, len(raw))
	for _, v := range raw {
		samples = append(samples, types.ServerSample{TotalTraffic: strings.TrimSpace(v)})
	}
	return samples, nil
}

// ReadRTT reads rtt_stats.csv
func ReadRTT(path string) ([]types.RTTSample, error) {
	values, err := floatColumn(path, RTTColumn)
	if err != nil {
		return nil, err
	}
	samples := make([]types.RTTSample, 0, len(values))
	for _, v := range values {
		samples = append(samples, types.RTTSample{RTT: v})
	}
	return samples, nil
}

// ReadRunParams reads run_parms.json
func ReadRunParams(path string) (types.RunParams, error) {
	var params types.RunParams
	raw, err := os.ReadFile(path)
	if err != nil {
		return params, err
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return params, errors.Wrapf(err, "unable to parse %s", path)
	}
	return params, nil
}

// ReadBundle loads every calibration input of an archived run directory
func ReadBundle(runDir string) (*types.MetricBundle, error) {
	bundle := &types.MetricBundle{RunDir: runDir}
	var err error

	if bundle.Memory, err = ReadMemory(filepath.Join(runDir, MemoryStatsFile)); err != nil {
		return nil, cerrors.NoData{Target: runDir, Reason: err.Error()}
	}
	if bundle.Server, err = ReadServer(filepath.Join(runDir, ServerStatsFile)); err != nil {
		return nil, cerrors.NoData{Target: runDir, Reason: err.Error()}
	}
	if bundle.RTT, err = ReadRTT(filepath.Join(runDir, RTTStatsFile)); err != nil {
		return nil, cerrors.NoData{Target: runDir, Reason: err.Error()}
	}
	if bundle.Params, err = ReadRunParams(filepath.Join(runDir, RunParamsFile)); err != nil {
		return nil, cerrors.NoData{Target: runDir, Reason: err.Error()}
	}
	return bundle, nil
}
