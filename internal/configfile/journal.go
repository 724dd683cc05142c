package configfile

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// JournalEntry is the on-disk record of a config file that is currently
// rewritten by a running scenario.
type JournalEntry struct {
	Path       string    `json:"path"`
	Snapshot   Snapshot  `json:"snapshot"`
	RecordedAt time.Time `json:"recorded_at"`
	PID        int       `json:"pid"`
}

// Journal persists snapshots so a crashed run cannot leave fixtures mutated.
type Journal struct {
	dir string
}

// NewJournal returns a journal rooted at dir. The directory is created on
// first Record.
func NewJournal(dir string) *Journal {
	return &Journal{dir: dir}
}

func (j *Journal) entryPath(configPath string) string {
	sum := sha256.Sum256([]byte(configPath))
	return filepath.Join(j.dir, hex.EncodeToString(sum[:8])+".json")
}

// Record stores the snapshot for configPath, replacing any older entry.
func (j *Journal) Record(configPath string, snap Snapshot) error {
	if err := os.MkdirAll(j.dir, 0755); err != nil {
		return fmt.Errorf("create journal dir: %w", err)
	}
	entry := JournalEntry{
		Path:       configPath,
		Snapshot:   snap,
		RecordedAt: time.Now().UTC(),
		PID:        os.Getpid(),
	}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	if err := os.WriteFile(j.entryPath(configPath), data, 0644); err != nil {
		return fmt.Errorf("write journal entry: %w", err)
	}
	return nil
}

// Clear drops the entry for configPath. A missing entry is not an error.
func (j *Journal) Clear(configPath string) error {
	if err := os.Remove(j.entryPath(configPath)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear journal entry: %w", err)
	}
	return nil
}

// Pending lists entries left behind by runs that did not restore.
func (j *Journal) Pending() ([]JournalEntry, error) {
	files, err := os.ReadDir(j.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read journal dir: %w", err)
	}

	var entries []JournalEntry
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(j.dir, f.Name()))
		if err != nil {
			return nil, fmt.Errorf("read journal entry %s: %w", f.Name(), err)
		}
		var entry JournalEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return nil, fmt.Errorf("parse journal entry %s: %w", f.Name(), err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(a, b int) bool { return entries[a].Path < entries[b].Path })
	return entries, nil
}

// RecoverAll restores every pending entry and returns the restored paths.
// It keeps going after a failure and reports the first error.
func (j *Journal) RecoverAll() ([]string, error) {
	entries, err := j.Pending()
	if err != nil {
		return nil, err
	}

	var restored []string
	var firstErr error
	for _, entry := range entries {
		if err := restoreSnapshot(entry.Path, entry.Snapshot); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := j.Clear(entry.Path); err != nil && firstErr == nil {
			firstErr = err
		}
		restored = append(restored, entry.Path)
	}
	return restored, firstErr
}
