// Package checkpoint persists the list of completed runs after every run so
// that an interrupted sweep can be recovered and re-aggregated.
package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/p-arndt/sweeper/internal/runspec"
)

const (
	snapshotPrefix = "IntermediateData_"
	snapshotExt    = ".json"
	FinalName      = "Data.json"
)

var ErrNoSnapshot = errors.New("no checkpoint snapshot")

var snapshotPattern = regexp.MustCompile(`^` + snapshotPrefix + `([0-9]+)\` + snapshotExt + `$`)

// Store writes numbered snapshots into one sweep directory. It never keeps
// or mutates the run list it is given.
type Store struct {
	dir  string
	next int
}

func New(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) Dir() string { return s.dir }

// Next returns the number the next snapshot will get.
func (s *Store) Next() int { return s.next }

// SnapshotPath returns the path of snapshot n.
func (s *Store) SnapshotPath(n int) string {
	return filepath.Join(s.dir, snapshotPrefix+strconv.Itoa(n)+snapshotExt)
}

// FinalPath returns the path of the end-of-sweep snapshot.
func (s *Store) FinalPath() string {
	return filepath.Join(s.dir, FinalName)
}

// Save writes the whole list to the next numbered snapshot. The number is
// consumed even when the write fails, so snapshot n, whenever it exists,
// holds exactly the first n+1 runs.
func (s *Store) Save(runs []runspec.Spec) (string, error) {
	path := s.SnapshotPath(s.next)
	s.next++
	if err := writeAtomic(path, runs); err != nil {
		return path, fmt.Errorf("checkpoint %s: %w", filepath.Base(path), err)
	}
	return path, nil
}

// SaveFinal writes the whole list under the fixed final name.
func (s *Store) SaveFinal(runs []runspec.Spec) (string, error) {
	path := s.FinalPath()
	if err := writeAtomic(path, runs); err != nil {
		return path, fmt.Errorf("final checkpoint: %w", err)
	}
	return path, nil
}

func writeAtomic(path string, runs []runspec.Spec) error {
	if runs == nil {
		runs = []runspec.Spec{}
	}
	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".checkpoint-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// Load reads a snapshot written by Save or SaveFinal.
func Load(path string) ([]runspec.Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}
	var runs []runspec.Spec
	if err := json.Unmarshal(data, &runs); err != nil {
		return nil, fmt.Errorf("decode checkpoint %s: %w", path, err)
	}
	return runs, nil
}

// List returns the numbered snapshots in dir, ordered by number.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}
	type numbered struct {
		n    int
		path string
	}
	var found []numbered
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := snapshotPattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		found = append(found, numbered{n, filepath.Join(dir, e.Name())})
	}
	sort.Slice(found, func(i, j int) bool { return found[i].n < found[j].n })

	paths := make([]string, len(found))
	for i, f := range found {
		paths[i] = f.path
	}
	return paths, nil
}

// Latest loads the recovery point of a sweep directory: the final snapshot
// if the sweep finished, otherwise the highest numbered one.
func Latest(dir string) (string, []runspec.Spec, error) {
	final := filepath.Join(dir, FinalName)
	if _, err := os.Stat(final); err == nil {
		runs, err := Load(final)
		return final, runs, err
	}
	paths, err := List(dir)
	if err != nil {
		return "", nil, err
	}
	if len(paths) == 0 {
		return "", nil, fmt.Errorf("%w in %s", ErrNoSnapshot, dir)
	}
	last := paths[len(paths)-1]
	runs, err := Load(last)
	return last, runs, err
}

// Write stores runs at path in the snapshot format, e.g. for repaired data.
func Write(path string, runs []runspec.Spec) error {
	return writeAtomic(path, runs)
}
