package flows

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/metrics"
	"github.com/twosixlabs/magicwand/pkg/utils/exec"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestMergeIPMaps(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "ip_map_attack.csv"), "ip,type\n172.20.0.5,attack\n")
	writeFile(t, filepath.Join(dir, "ip_map_client.csv"), "ip,type\n172.20.0.6,client\n172.20.0.7,client\n")
	writeFile(t, filepath.Join(dir, "ip_map_sut.csv"), "ip,type\n172.20.0.2,sut\n")

	m, err := MergeIPMaps(dir)
	require.NoError(t, err)
	assert.Len(t, m, 4)
	assert.Equal(t, "attack", m["172.20.0.5"])
	assert.ElementsMatch(t, []string{"172.20.0.6", "172.20.0.7"}, m.IPsWithRole(RoleClient))

	merged, err := metrics.ReadTable(filepath.Join(dir, metrics.IPAttrMapFile))
	require.NoError(t, err)
	assert.Equal(t, []string{"ip", "type"}, merged.Header)
	assert.Equal(t, []string{"172.20.0.5", "attack"}, merged.Rows[0])
	assert.Equal(t, []string{"172.20.0.2", "sut"}, merged.Rows[3])
}

func TestMergeIPMapsNoData(t *testing.T) {
	_, err := MergeIPMaps(t.TempDir())
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeNoData))
}

func TestLabel(t *testing.T) {
	m := IPMap{"10.0.0.1": "sut", "10.0.0.2": "client", "10.0.0.3": "attack", "10.0.0.4": "rtt"}
	tests := []struct {
		name     string
		src, dst string
		expected string
	}{
		{name: "client to sut", src: "10.0.0.2", dst: "10.0.0.1", expected: "client"},
		{name: "sut to attacker", src: "10.0.0.1", dst: "10.0.0.3", expected: "attack"},
		{name: "sensor", src: "10.0.0.4", dst: "10.0.0.1", expected: "rtt"},
		{name: "unmapped source", src: "8.8.8.8", dst: "10.0.0.1", expected: "unknown"},
		{name: "sut to unmapped", src: "10.0.0.1", dst: "8.8.8.8", expected: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.Label(tt.src, tt.dst))
		})
	}
}

func TestLabelFlows(t *testing.T) {
	dir := t.TempDir()
	flowsPath := filepath.Join(dir, "tcpdump.pcap"+FlowSuffix)
	writeFile(t, flowsPath, strings.Join([]string{
		"Flow ID,Src IP,Dst IP,Flow Duration",
		"a,10.0.0.2,10.0.0.1,10",
		"b,10.0.0.1,10.0.0.3,20",
		"c,10.0.0.3,10.0.0.1,30",
		"d,9.9.9.9,10.0.0.1,40",
	}, "\n")+"\n")

	split, err := LabelFlows(flowsPath, IPMap{"10.0.0.1": "sut", "10.0.0.2": "client", "10.0.0.3": "attack"})
	require.NoError(t, err)
	assert.Equal(t, Split{Total: 4, Client: 1, Attack: 2}, split)

	labeled, err := metrics.ReadTable(filepath.Join(dir, metrics.LabeledFlowsFile))
	require.NoError(t, err)
	labels, err := labeled.Column(LabelColumn)
	require.NoError(t, err)
	assert.Equal(t, []string{"client", "attack", "attack", "unknown"}, labels)
}

func TestLabelFlowsMissingColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flows.csv")
	writeFile(t, path, "Flow ID,Protocol\na,6\n")
	_, err := LabelFlows(path, IPMap{})
	assert.Error(t, err)
}

type fakeRunner struct {
	cmds    []exec.Command
	produce bool
	err     error
}

func (f *fakeRunner) Run(ctx context.Context, cmd exec.Command) (string, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return "", f.err
	}
	if f.produce {
		mount := strings.TrimSuffix(cmd.Args[3], ":/home")
		input := strings.TrimPrefix(cmd.Args[len(cmd.Args)-1], "--input=")
		if err := os.WriteFile(filepath.Join(mount, input+FlowSuffix), []byte("Src IP,Dst IP\n"), 0644); err != nil {
			return "", err
		}
	}
	return "", nil
}

func TestDockerConverter(t *testing.T) {
	dir := t.TempDir()
	pcap := filepath.Join(dir, "tcpdump.pcap")
	writeFile(t, pcap, "")

	tests := []struct {
		name    string
		runner  *fakeRunner
		wantErr bool
	}{
		{name: "produces flow table", runner: &fakeRunner{produce: true}},
		{name: "container fails", runner: &fakeRunner{err: errors.New("exit status 1")}, wantErr: true},
		{name: "no output", runner: &fakeRunner{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewDockerConverter("docker", "twosixlabsmagicwand/mw-cic-converter")
			c.Runner = tt.runner
			out, err := c.Convert(context.Background(), pcap)
			require.Len(t, tt.runner.cmds, 1)
			assert.Equal(t, []string{"run", "--rm", "-v", dir + ":/home", "twosixlabsmagicwand/mw-cic-converter", "./convert_pcap.sh", "--input=tcpdump.pcap"}, tt.runner.cmds[0].Args)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeConversion))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, pcap+FlowSuffix, out)
			os.Remove(out)
		})
	}
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	pcap := filepath.Join(dir, "capture.pcap")
	writeFile(t, pcap, "")
	conv := NewDockerConverter("docker", "img")
	conv.Runner = &fakeRunner{produce: true}

	out, err := Convert(context.Background(), conv, pcap, "", false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, DefaultOutput), out)
	assert.FileExists(t, out)
	assert.NoFileExists(t, pcap+FlowSuffix)

	_, err = Convert(context.Background(), conv, pcap, "", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = Convert(context.Background(), conv, pcap, "", true)
	assert.NoError(t, err)

	_, err = Convert(context.Background(), conv, filepath.Join(dir, "missing.pcap"), "", true)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeConversion))
}
