// Package state persists the coordinator's small restart-recovery state
// (chain head at the last save, blacklist snapshot) to a JSON file, written
// atomically via a temp-file-then-rename so a crash mid-write never
// leaves a truncated file behind. Built on the standard library only —
// DESIGN.md records the justification: this is a single local file with
// no schema migration, query, or concurrent-writer needs, so none of the
// corpus's storage libraries (gorm, etc.) fit better than os/encoding-json.
package state

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/claucondor/more-liquidation-bot/pkg/types"
)

// Snapshot is the full on-disk state.
type Snapshot struct {
	LastScannedBlock uint64                             `json:"last_scanned_block"`
	SavedAt          time.Time                          `json:"saved_at"`
	Blacklist        map[string]types.BlacklistEntry    `json:"blacklist"`
}

// Load reads path into a Snapshot. A missing file returns a zero-value
// Snapshot and no error — first-run behavior.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{Blacklist: make(map[string]types.BlacklistEntry)}, nil
		}
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, err
	}
	if snap.Blacklist == nil {
		snap.Blacklist = make(map[string]types.BlacklistEntry)
	}
	return snap, nil
}

// Save writes snap to path atomically: marshal, write to a sibling temp
// file, then rename over the destination.
func Save(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}
