package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

func TestLoadMissingFileReturnsZeroValue(t *testing.T) {
	snap, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), snap.LastScannedBlock)
	assert.NotNil(t, snap.Blacklist)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	snap := Snapshot{
		LastScannedBlock: 12345,
		SavedAt:          time.Now().Truncate(time.Second),
		Blacklist: map[string]types.BlacklistEntry{
			"0xB1": {Failures: 2, Reason: types.ReasonExecutionRevert},
		},
	}

	require.NoError(t, Save(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, snap.LastScannedBlock, loaded.LastScannedBlock)
	assert.Equal(t, 2, loaded.Blacklist["0xB1"].Failures)
}

func TestSaveOverwritesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	require.NoError(t, Save(path, Snapshot{LastScannedBlock: 1, Blacklist: map[string]types.BlacklistEntry{}}))
	require.NoError(t, Save(path, Snapshot{LastScannedBlock: 2, Blacklist: map[string]types.BlacklistEntry{}}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), loaded.LastScannedBlock)
}
