// Package configfile rewrites a fixture's configuration file for one test
// case and puts the original back afterwards.
package configfile

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Snapshot is the content of a config file before any mutation.
type Snapshot struct {
	Existed bool   `json:"existed"`
	Content []byte `json:"content"`
	Mode    uint32 `json:"mode"`
}

func (s Snapshot) perm() fs.FileMode {
	if s.Mode == 0 {
		return 0644
	}
	return fs.FileMode(s.Mode)
}

// File is a config file plus the snapshot taken when it was attached.
type File struct {
	path     string
	encoder  Encoder
	snapshot Snapshot
	journal  *Journal

	mu      sync.Mutex
	mutated bool
}

// Option customizes Attach.
type Option func(*File)

// WithEncoder overrides the extension-based encoder.
func WithEncoder(enc Encoder) Option {
	return func(f *File) { f.encoder = enc }
}

// WithJournal records the snapshot on disk before the first Write so an
// interrupted run can be recovered with Journal.RecoverAll.
func WithJournal(j *Journal) Option {
	return func(f *File) { f.journal = j }
}

// Attach snapshots the file at path. A missing file is a valid snapshot:
// Restore will remove whatever Write created.
func Attach(path string, opts ...Option) (*File, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path %s: %w", path, err)
	}
	f := &File{path: abs, encoder: EncoderFor(abs)}
	for _, opt := range opts {
		opt(f)
	}

	snap, err := readSnapshot(abs)
	if err != nil {
		return nil, err
	}
	f.snapshot = snap
	return f, nil
}

func readSnapshot(path string) (Snapshot, error) {
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{Mode: 0644}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("stat config %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Snapshot{Existed: true, Content: data, Mode: uint32(info.Mode().Perm())}, nil
}

// Path returns the absolute path of the config file.
func (f *File) Path() string {
	return f.path
}

// Snapshot returns the content captured at attach time.
func (f *File) Snapshot() Snapshot {
	return f.snapshot
}

// Write serializes content and fully overwrites the file. []byte and string
// values are written verbatim.
func (f *File) Write(content any) error {
	var data []byte
	switch v := content.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		encoded, err := f.encoder(content)
		if err != nil {
			return err
		}
		data = encoded
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.mutated && f.journal != nil {
		if err := f.journal.Record(f.path, f.snapshot); err != nil {
			return err
		}
	}
	f.mutated = true

	if err := os.WriteFile(f.path, data, f.snapshot.perm()); err != nil {
		return fmt.Errorf("write config %s: %w", f.path, err)
	}
	return nil
}

// Restore puts the snapshot back, or removes the file if it did not exist
// at attach time. Calling it repeatedly, or without a prior Write, leaves
// the same file state.
func (f *File) Restore() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := restoreSnapshot(f.path, f.snapshot); err != nil {
		return err
	}
	f.mutated = false
	if f.journal != nil {
		return f.journal.Clear(f.path)
	}
	return nil
}

func restoreSnapshot(path string, snap Snapshot) error {
	if !snap.Existed {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove config %s: %w", path, err)
		}
		return nil
	}
	if err := os.WriteFile(path, snap.Content, snap.perm()); err != nil {
		return fmt.Errorf("restore config %s: %w", path, err)
	}
	return nil
}
