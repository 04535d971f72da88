// Package snapshot persists the history store across restarts. This is the
// optional hand-off only: live behavior never reads or waits on it.
package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"

	"whereabouts/internal/domain/chat"
)

// Save writes a msgpack-encoded snapshot atomically: encode to a temp file,
// fsync, then rename over the target.
func Save(path string, snap chat.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating snapshot dir: %w", err)
	}

	data, err := msgpack.Marshal(snap)
	if err != nil {
		return fmt.Errorf("error encoding snapshot: %w", err)
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("error creating snapshot file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("error writing snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("error syncing snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error closing snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// Load reads a snapshot from disk. A missing file returns ok=false and no
// error.
func Load(path string) (chat.Snapshot, bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return chat.Snapshot{}, false, nil
	}
	if err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("error reading snapshot: %w", err)
	}

	var snap chat.Snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return chat.Snapshot{}, false, fmt.Errorf("error decoding snapshot: %w", err)
	}
	return snap, true, nil
}
