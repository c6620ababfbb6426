package ratio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/cerrors"
	"github.com/twosixlabs/magicwand/pkg/types"
)

func bundle(rtt []float64, mem []float64, traffic ...string) *types.MetricBundle {
	b := &types.MetricBundle{RunDir: "run"}
	for _, v := range rtt {
		b.RTT = append(b.RTT, types.RTTSample{RTT: v})
	}
	for _, v := range mem {
		b.Memory = append(b.Memory, types.MemorySample{MemoryPercent: v})
	}
	for _, v := range traffic {
		b.Server = append(b.Server, types.ServerSample{TotalTraffic: v})
	}
	return b
}

func TestCheckPasses(t *testing.T) {
	tests := []struct {
		name             string
		check            Check
		baseline, attack float64
		expected         bool
	}{
		{"attack higher with client weight 2", Check{RTTMean, 1, 2, AttackSide}, 10, 25, true},
		{"attack higher with equal weights", Check{RTTMean, 1, 1, AttackSide}, 10, 25, true},
		{"weighted baseline above attack", Check{RTTMean, 1, 2, AttackSide}, 20, 25, false},
		{"equal weighted values fail", Check{MemMean, 1, 1, AttackSide}, 25, 25, false},
		{"client higher", Check{MemMean, 1, 1, ClientSide}, 30, 25, true},
		{"client higher equal fails", Check{MemMean, 1, 1, ClientSide}, 25, 25, false},
		{"client higher but attack above", Check{MemMean, 1, 1, ClientSide}, 10, 25, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.check.Passes(tt.baseline, tt.attack))
		})
	}
}

func TestNormalizeTraffic(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
		wantErr  bool
	}{
		{"500 kB", 0.5, false},
		{"250000 B", 0.25, false},
		{"2 MB", 2.0, false},
		{"1 GB", 1000.0, false},
		{"1.5 GB", 1500.0, false},
		{"12 TB", 0, true},
		{"lots MB", 0, true},
		{"500kB", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := NormalizeTraffic(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, cerrors.ErrorTypeMetric, cerrors.GetErrorType(err))
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestScalar(t *testing.T) {
	b := bundle([]float64{10, 20}, []float64{30, 40, 50}, "100 kB", "2 MB", "garbage")

	rtt, err := Scalar(RTTMean, b)
	require.NoError(t, err)
	assert.Equal(t, 15.0, rtt)

	mem, err := Scalar(MemMean, b)
	require.NoError(t, err)
	assert.Equal(t, 40.0, mem)

	traffic, err := Scalar(TotalTraffic, b)
	require.NoError(t, err)
	assert.Equal(t, 2.0, traffic)

	traffic, err = Scalar(TotalTraffic, bundle(nil, nil, "1 MB", "500000 B"))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, traffic, 1e-9)

	_, err = Scalar(RTTMean, bundle(nil, nil))
	require.Error(t, err)
	assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeMetric))

	_, err = Scalar(TotalTraffic, bundle(nil, nil, "n/a"))
	assert.Error(t, err)
}

func TestSuggestThreads(t *testing.T) {
	tests := []struct {
		name     string
		threads  int
		status   Status
		expected int
	}{
		{"weak below floor", 10, Weak, 50},
		{"weak doubles", 50, Weak, 100},
		{"weak doubles large", 400, Weak, 800},
		{"strong halves above 100", 300, Strong, 150},
		{"strong steps down", 100, Strong, 90},
		{"strong steps down at 10", 10, Strong, 0},
		{"strong floors below 10", 9, Strong, 1},
		{"strong stays at 1", 1, Strong, 1},
		{"unknown status", 42, Status(""), 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SuggestThreads(tt.threads, tt.status))
		})
	}
}

func TestStrongThreadPolicyConverges(t *testing.T) {
	for _, start := range []int{1, 9, 11, 55, 100, 101, 4096} {
		threads := start
		for i := 0; i < 100; i++ {
			threads = SuggestThreads(threads, Strong)
		}
		assert.Equal(t, 1, threads, "start %d", start)
		assert.Equal(t, 1, SuggestThreads(threads, Strong))
	}
}

func TestWeakThreadPolicyIsMonotonic(t *testing.T) {
	for threads := 0; threads < 1000; threads += 7 {
		next := SuggestThreads(threads, Weak)
		assert.GreaterOrEqual(t, next, threads)
		assert.GreaterOrEqual(t, next, 50)
	}
}

func TestSuggestClients(t *testing.T) {
	tests := []struct {
		name     string
		clients  int
		kind     MetricKind
		status   Status
		expected int
	}{
		{"weak rtt below floor", 5, RTTMean, Weak, 20},
		{"weak rtt doubles", 20, RTTMean, Weak, 40},
		{"weak traffic halves", 40, TotalTraffic, Weak, 20},
		{"weak traffic halves odd", 41, TotalTraffic, Weak, 20},
		{"strong traffic doubles", 40, TotalTraffic, Strong, 80},
		{"strong mem floor", 3, MemMean, Strong, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SuggestClients(tt.clients, tt.kind, tt.status))
		})
	}
	assert.Equal(t, 200, SuggestMaxClients(100, Weak))
	assert.Equal(t, 100, SuggestMaxClients(100, Strong))
}

func TestEvaluate(t *testing.T) {
	current := CurrentConfig{Clients: 20, Threads: 50, MaxClients: 100}

	t.Run("all checks pass", func(t *testing.T) {
		set, err := ChecksFor("apachekill")
		require.NoError(t, err)
		outcome, err := Evaluate(set,
			bundle([]float64{10}, []float64{20}, "500 kB"),
			bundle([]float64{25}, []float64{40}, "2 MB"),
			current)
		require.NoError(t, err)
		assert.True(t, outcome.Passed)
		assert.Nil(t, outcome.Suggestion)
		assert.Nil(t, outcome.FailedCheck)
		assert.Equal(t, 300, outcome.RunDuration)
		assert.Len(t, outcome.Results, 3)
	})

	t.Run("rtt check fails as a weak attack", func(t *testing.T) {
		set := CheckSet{Attack: "apachekill", Checks: []Check{{RTTMean, 1, 2, AttackSide}, {MemMean, 1, 1, AttackSide}}}
		outcome, err := Evaluate(set,
			bundle([]float64{20}, nil),
			bundle([]float64{25}, nil),
			current)
		require.NoError(t, err)
		assert.False(t, outcome.Passed)
		assert.Equal(t, Weak, outcome.Status)
		assert.Len(t, outcome.Results, 1, "evaluation stops at the first failure")
		require.NotNil(t, outcome.Suggestion)
		assert.Equal(t, Suggestion{Clients: 40, Threads: 100, MaxClients: 200}, *outcome.Suggestion)
		assert.Equal(t, 0, outcome.RunDuration)
	})

	t.Run("traffic check fails as a weak attack", func(t *testing.T) {
		set, err := ChecksFor("apachekill")
		require.NoError(t, err)
		outcome, err := Evaluate(set,
			bundle([]float64{10}, []float64{20}, "2 MB"),
			bundle([]float64{25}, []float64{40}, "500 kB"),
			current)
		require.NoError(t, err)
		require.NotNil(t, outcome.FailedCheck)
		assert.Equal(t, TotalTraffic, outcome.FailedCheck.Kind)
		assert.Equal(t, Suggestion{Clients: 10, Threads: 100, MaxClients: 200}, *outcome.Suggestion)
	})

	t.Run("client higher check fails as a strong attack", func(t *testing.T) {
		set := CheckSet{Checks: []Check{{MemMean, 1, 1, ClientSide}}}
		outcome, err := Evaluate(set,
			bundle(nil, []float64{10}),
			bundle(nil, []float64{90}),
			CurrentConfig{Clients: 30, Threads: 120, MaxClients: 100})
		require.NoError(t, err)
		assert.Equal(t, Strong, outcome.Status)
		assert.Equal(t, Suggestion{Clients: 60, Threads: 60, MaxClients: 100}, *outcome.Suggestion)
	})

	t.Run("missing samples propagate", func(t *testing.T) {
		set, err := ChecksFor("apachekill")
		require.NoError(t, err)
		_, err = Evaluate(set, bundle(nil, nil), bundle([]float64{1}, nil), current)
		require.Error(t, err)
		assert.True(t, cerrors.IsType(err, cerrors.ErrorTypeMetric))
	})

	t.Run("invalid check", func(t *testing.T) {
		_, err := Evaluate(CheckSet{Checks: []Check{{Kind: "p99"}}}, bundle(nil, nil), bundle(nil, nil), current)
		require.Error(t, err)
		assert.Equal(t, cerrors.ErrorTypeConfig, cerrors.GetErrorType(err))
	})
}

func TestChecksFor(t *testing.T) {
	_, err := ChecksFor("goloris")
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeUnsupportedAttack, cerrors.GetErrorType(err))

	set, err := ChecksFor("apachekill")
	require.NoError(t, err)
	set.Checks[0].ClientRatio = 99
	again, _ := ChecksFor("apachekill")
	assert.Equal(t, 2.0, again.Checks[0].ClientRatio)
}

func TestLoadChecks(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "ratio.yaml")
	require.NoError(t, os.WriteFile(valid, []byte(`attack: apachekill
checks:
  - check_type: rtt_mean
    attack_ratio: 1
    client_ratio: 3
    diff_higher: attack
`), 0644))
	set, err := LoadChecks(valid)
	require.NoError(t, err)
	require.Len(t, set.Checks, 1)
	assert.Equal(t, Check{RTTMean, 1, 3, AttackSide}, set.Checks[0])

	jsonFile := filepath.Join(dir, "ratio.json")
	require.NoError(t, os.WriteFile(jsonFile, []byte(`{"attack":"apachekill","checks":[{"check_type":"mem_mean","attack_ratio":1,"client_ratio":1,"diff_higher":"client"}]}`), 0644))
	set, err = LoadChecks(jsonFile)
	require.NoError(t, err)
	assert.Equal(t, ClientSide, set.Checks[0].DiffHigher)

	invalid := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("checks:\n  - check_type: rtt_mean\n    attack_ratio: 1\n    client_ratio: 1\n    diff_higher: sideways\n"), 0644))
	_, err = LoadChecks(invalid)
	require.Error(t, err)
	assert.Equal(t, cerrors.ErrorTypeConfig, cerrors.GetErrorType(err))
}

func TestSummarizeRTT(t *testing.T) {
	var samples []types.RTTSample
	for i := 1; i <= 100; i++ {
		samples = append(samples, types.RTTSample{RTT: float64(i)})
	}
	s := SummarizeRTT(samples)
	assert.Equal(t, int64(100), s.Count)
	assert.InDelta(t, 50.5, s.Mean, 0.2)
	assert.InDelta(t, 50, s.P50, 0.1)
	assert.InDelta(t, 99, s.P99, 0.1)
	assert.InDelta(t, 100, s.Max, 0.1)

	assert.Equal(t, LatencySummary{}, SummarizeRTT(nil))
}
