package sensors

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twosixlabs/magicwand/pkg/components"
	"github.com/twosixlabs/magicwand/pkg/types"
)

func TestRTTSensorProject(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sensors"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sensors", "mw_rtt_sensor.json"), []byte(`{"timeout":5}`), 0644))

	c, err := NewRTTSensor(components.NewStore(root))
	require.NoError(t, err)

	ec := types.NewExecutionContext()
	require.NoError(t, c.Project(ec))
	assert.Equal(t, []string{"RTT_TIMEOUT=5"}, ec.Environ())

	_, err = c.ComposeFile()
	assert.Error(t, err)
}
