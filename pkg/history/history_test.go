package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/ratio"
)

func TestStoreListsMostRecentFirst(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	require.NoError(t, err)

	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, s.Save(Iteration{
			SessionID:  "s1",
			Attack:     "apachekill",
			Attempt:    i,
			Timestamp:  start.Add(time.Duration(i) * time.Minute),
			Verdict:    "Fail",
			Status:     ratio.Weak,
			Suggestion: &ratio.Suggestion{Clients: 20 * i, Threads: 50, MaxClients: 200},
		}))
	}
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()

	items, err := s.List("apachekill")
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, 3, items[0].Attempt)
	assert.Equal(t, 1, items[2].Attempt)
	assert.Equal(t, 60, items[0].Suggestion.Clients)

	none, err := s.List("goloris")
	require.NoError(t, err)
	assert.Empty(t, none)

	attacks, err := s.Attacks()
	require.NoError(t, err)
	assert.Equal(t, []string{"apachekill"}, attacks)
}
