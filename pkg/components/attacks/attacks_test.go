package attacks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/capture"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
)

func newStore(t *testing.T, docs map[string]string) *components.Store {
	t.Helper()
	root := t.TempDir()
	for p, content := range docs {
		require.NoError(t, os.MkdirAll(filepath.Join(root, filepath.Dir(p)), 0755))
		require.NoError(t, os.WriteFile(filepath.Join(root, p), []byte(content), 0644))
	}
	return components.NewStore(root)
}

func TestApachekillProject(t *testing.T) {
	tests := []struct {
		name     string
		docs     map[string]string
		expected []string
		errType  cerrors.ErrorType
	}{
		{
			name: "seed from the benign client and default delay",
			docs: map[string]string{
				"attacks/apachekill.json": `{"attack_options":{"ak_duration":120,"ak_num_ips":5,"ak_num_threads":50}}`,
				"benign/mw_locust.json":   `{"client_options":{"seed":7}}`,
			},
			expected: []string{"CURR_SEED=7", "CURR_ATTACK_DURATION=120", "CURR_IP_LIMIT=5", "CURR_DELAY=15", "CURR_MAX_THREADS=50"},
		},
		{
			name: "no benign config falls back to None",
			docs: map[string]string{
				"attacks/apachekill.json": `{"attack_options":{"ak_duration":60,"ak_num_ips":2,"ak_num_threads":10,"attack_delay":30}}`,
			},
			expected: []string{"CURR_SEED=None", "CURR_ATTACK_DURATION=60", "CURR_IP_LIMIT=2", "CURR_DELAY=30", "CURR_MAX_THREADS=10"},
		},
		{
			name: "missing thread count is a setup error",
			docs: map[string]string{
				"attacks/apachekill.json": `{"attack_options":{"ak_duration":60,"ak_num_ips":2}}`,
			},
			errType: cerrors.ErrorTypeSetup,
		},
		{
			name: "missing attack options is a setup error",
			docs: map[string]string{
				"attacks/apachekill.json": `{"compose-file":"a.yml"}`,
			},
			errType: cerrors.ErrorTypeSetup,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewApachekill(newStore(t, tt.docs))
			require.NoError(t, err)

			ec := types.NewExecutionContext()
			err = c.Project(ec)
			if tt.errType != "" {
				require.Error(t, err)
				assert.Equal(t, tt.errType, cerrors.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, ec.Environ())
		})
	}
}

func TestGolorisProject(t *testing.T) {
	store := newStore(t, map[string]string{
		"attacks/goloris.json": `{"attack_options":{"attack_duration":100,"worker_count":8,"ramp_up_interval":1}}`,
	})
	c, err := NewGoloris(store)
	require.NoError(t, err)

	ec := types.NewExecutionContext()
	require.NoError(t, c.Project(ec))
	assert.Equal(t, []string{"CURR_ATTACK_DURATION=100", "CURR_WORKER_COUNT=8", "CURR_RAMP_UP_INTERVAL=1", "CURR_DELAY=15"}, ec.Environ())
}

func TestSimpleProject(t *testing.T) {
	store := newStore(t, map[string]string{
		"attacks/synflood.json":  `{"attack_options":{"attack_duration":60,"packet_rate":1000,"interface":"eth0","targets":[1,2]}}`,
		"attacks/httpflood.json":  `{"attack_options":{"num_threads":4}}`,
	})

	c, err := NewSimple("synflood")(store)
	require.NoError(t, err)
	ec := types.NewExecutionContext()
	require.NoError(t, c.Project(ec))
	assert.Equal(t, []string{"CURR_ATTACK_DURATION=60", "CURR_DELAY=15", "CURR_INTERFACE=eth0", "CURR_PACKET_RATE=1000"}, ec.Environ())

	c, err = NewSimple("httpflood")(store)
	require.NoError(t, err)
	err = c.Project(types.NewExecutionContext())
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeSetup, cerrors.GetErrorType(err))
}

func TestRangeHeaderTest(t *testing.T) {
	tests := []struct {
		name     string
		specs    []string
		expected bool
	}{
		{"every spec overlaps the first", []string{"5-0", "5-1", "5-2", "5-3", "5-4"}, true},
		{"exactly three quarters", []string{"5-0", "5-1", "5-2", "5-3"}, true},
		{"disjoint ranges", []string{"0-10", "20-30", "40-50", "60-70"}, false},
		{"truncated capture", []string{"5-0", "5-1", "5-"}, false},
		{"empty", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RangeHeaderTest(tt.specs))
		})
	}
}

func TestApachekillVerify(t *testing.T) {
	store := newStore(t, map[string]string{"attacks/apachekill.json": `{"attack_options":{}}`})
	c, err := NewApachekill(store)
	require.NoError(t, err)

	attackRange := "bytes=0-,5-0,5-1,5-2,5-3,5-4"
	roles := map[string]string{"10.0.0.5": "attack", "10.0.0.2": "client", "10.0.0.1": "sut"}

	tests := []struct {
		name     string
		roles    map[string]string
		records  []capture.Record
		expected bool
	}{
		{
			name:  "large requests with overlapping ranges",
			roles: roles,
			records: []capture.Record{
				{Source: "10.0.0.5", Protocol: "HTTP", Length: 2000, Range: attackRange, UserAgent: apachekillUserAgent},
				{Source: "10.0.0.5", Protocol: "HTTP", Length: 1800, Range: attackRange},
				{Source: "10.0.0.2", Protocol: "HTTP", Length: 300},
			},
			expected: true,
		},
		{
			name:  "small requests",
			roles: roles,
			records: []capture.Record{
				{Source: "10.0.0.5", Protocol: "HTTP", Length: 400, Range: attackRange},
			},
			expected: false,
		},
		{
			name:  "ranges without overlap",
			roles: roles,
			records: []capture.Record{
				{Source: "10.0.0.5", Protocol: "HTTP", Length: 2000, Range: "bytes=0-,0-10,20-30,40-50"},
			},
			expected: false,
		},
		{
			name:     "attack ip without http traffic is skipped",
			roles:    roles,
			records:  []capture.Record{{Source: "10.0.0.5", Protocol: "TCP", Length: 60}},
			expected: true,
		},
		{
			name:     "no attack ips",
			roles:    map[string]string{"10.0.0.1": "sut"},
			expected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, err := c.Verify(components.VerifyInput{Records: tt.records, Roles: tt.roles})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, passed)
		})
	}
}

func TestApachekillCalibrationKeys(t *testing.T) {
	store := newStore(t, map[string]string{"attacks/apachekill.json": `{"attack_options":{"ak_num_threads":50}}`})
	c, err := NewApachekill(store)
	require.NoError(t, err)
	ak := c.(components.Calibratable)

	threads, err := ak.ThreadCount(types.RunParams{Attack: types.Document{"attack_options": map[string]interface{}{"ak_num_threads": float64(80)}}})
	require.NoError(t, err)
	assert.Equal(t, 80, threads)

	_, err = ak.ThreadCount(types.RunParams{})
	assert.Error(t, err)

	require.NoError(t, ak.SetThreadCount(100))
	require.NoError(t, ak.Save())

	reloaded, err := NewApachekill(store)
	require.NoError(t, err)
	n, err := reloaded.Config().Int("attack_options", "ak_num_threads")
	require.NoError(t, err)
	assert.Equal(t, 100, n)
}
