package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestReadMemorySkipsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, MemoryStatsFile, "timestamp,memory_percent\n1,10.5\n2,oops\n3,12%\n4\n")

	samples, err := ReadMemory(filepath.Join(dir, MemoryStatsFile))
	require.NoError(t, err)
	require.Len(t, samples, 2)
	assert.Equal(t, 10.5, samples[0].MemoryPercent)
	assert.Equal(t, "3", samples[1].Timestamp)
	assert.Equal(t, 12.0, samples[1].MemoryPercent)
}

func TestReadRTTAndServer(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, RTTStatsFile, "timestamp,rtt\n1,10\n2,20\n")
	write(t, dir, ServerStatsFile, "timestamp,total_traffic,busy\n1,100 kB,3\n2, 500 kB,4\n")

	rtt, err := ReadRTT(filepath.Join(dir, RTTStatsFile))
	require.NoError(t, err)
	require.Len(t, rtt, 2)
	assert.Equal(t, 20.0, rtt[1].RTT)

	server, err := ReadServer(filepath.Join(dir, ServerStatsFile))
	require.NoError(t, err)
	require.Len(t, server, 2)
	assert.Equal(t, "500 kB", server[1].TotalTraffic)

	_, err = ReadRTT(filepath.Join(dir, ServerStatsFile))
	assert.Error(t, err)
}

func TestReadBundle(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, MemoryStatsFile, "timestamp,memory_percent\n1,10\n")
	write(t, dir, ServerStatsFile, "total_traffic\n2 MB\n")
	write(t, dir, RTTStatsFile, "rtt\n10\n")

	_, err := ReadBundle(dir)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeNoData, cerrors.GetErrorType(err))

	write(t, dir, RunParamsFile, `{"attack":{"attack_options":{"ak_num_threads":50}},"sut":{"max_clients":100},"compose_files":[],"run_loc":"runs/x/","version":"1.0.3","env":{"CURR_RUN":"runs/x/"}}`)
	bundle, err := ReadBundle(dir)
	require.NoError(t, err)
	threads, err := bundle.Params.Attack.Int("attack_options", "ak_num_threads")
	require.NoError(t, err)
	assert.Equal(t, 50, threads)
	v, ok := bundle.Params.Env.Get("CURR_RUN")
	assert.True(t, ok)
	assert.Equal(t, "runs/x/", v)
}

func TestWriteTableRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, WriteTable(path, &Table{Header: []string{"ip", "type"}, Rows: [][]string{{"10.0.0.1", "sut"}}}))

	tbl, err := ReadTable(path)
	require.NoError(t, err)
	assert.Equal(t, 1, tbl.Index("type"))
	assert.Equal(t, [][]string{{"10.0.0.1", "sut"}}, tbl.Rows)
}
