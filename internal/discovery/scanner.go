package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioSuffixes are the file name endings Scan picks up.
var ScenarioSuffixes = []string{".scenario.yaml", ".scenario.yml"}

// Scanner scans for scenario files in a directory
type Scanner struct {
	skipDirs map[string]bool
}

// NewScanner creates a new Scanner with the given directories to skip
func NewScanner(skipDirs []string) *Scanner {
	skipMap := make(map[string]bool)
	for _, dir := range skipDirs {
		skipMap[dir] = true
	}
	return &Scanner{skipDirs: skipMap}
}

// Scan finds all scenario files in the given root directory, sorted
func (s *Scanner) Scan(root string) ([]string, error) {
	var files []string

	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("test path does not exist: %s", root)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("test path is not a directory: %s", root)
	}

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			// Skip hidden directories (starting with .)
			if path != root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if s.skipDirs[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if IsScenarioFile(d.Name()) {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// IsScenarioFile reports whether name has a scenario suffix.
func IsScenarioFile(name string) bool {
	for _, suffix := range ScenarioSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}
