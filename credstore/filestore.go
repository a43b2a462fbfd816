package credstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

type fileStore struct {
	mu   sync.Mutex
	root string
}

// NewFileStore creates a Store backed by a directory; each key is one file
// readable only by the owner.
func NewFileStore(root string) Store {
	return &fileStore{root: root}
}

func (s *fileStore) List(_ context.Context) ([]string, error) {
	dirEntries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	var keys []string
	for _, d := range dirEntries {
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		keys = append(keys, d.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *fileStore) Load(_ context.Context, keys ...string) ([]Entry, error) {
	entries := make([]Entry, 0, len(keys))

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(s.root, key))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, key)
			}
			return nil, fmt.Errorf("%w: %s: %v", ErrLoadFailed, key, err)
		}
		entries = append(entries, Entry{Key: key, Value: data})
	}

	return entries, nil
}

// Save stages every entry in a temp file first and only then renames them
// into place, so a failure while writing leaves the previous values intact.
// Values being replaced are moved aside until every rename has succeeded;
// a failed rename puts them back, so the entries land together or not at all.
func (s *fileStore) Save(_ context.Context, entries ...Entry) error {
	for _, e := range entries {
		if err := validateKey(e.Key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}

	staged := make([]string, 0, len(entries))
	cleanup := func() {
		for _, name := range staged {
			os.Remove(name)
		}
	}

	for _, e := range entries {
		tmp, err := os.CreateTemp(s.root, ".tmp-*")
		if err != nil {
			cleanup()
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		staged = append(staged, tmp.Name())

		if _, err := tmp.Write(e.Value); err != nil {
			tmp.Close()
			cleanup()
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		if err := tmp.Close(); err != nil {
			cleanup()
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
	}

	var moved []replacement
	for i, e := range entries {
		r, err := s.replace(e.Key, staged[i])
		if err != nil {
			rollback(append(moved, r))
			cleanup()
			return fmt.Errorf("%w: %s: %v", ErrSaveFailed, e.Key, err)
		}
		moved = append(moved, r)
	}

	for _, r := range moved {
		if r.backup != "" {
			os.Remove(r.backup)
		}
	}
	return nil
}

// replacement records one key swapped in by Save. backup holds the previous
// value, or is empty when the key did not exist.
type replacement struct {
	target  string
	backup  string
	swapped bool
}

func backupName(key string) string {
	return ".bak-" + key
}

func (s *fileStore) replace(key, staged string) (replacement, error) {
	r := replacement{target: filepath.Join(s.root, key)}

	backup := filepath.Join(s.root, backupName(key))
	if err := os.Rename(r.target, backup); err == nil {
		r.backup = backup
	} else if !os.IsNotExist(err) {
		return r, err
	}

	if err := os.Rename(staged, r.target); err != nil {
		return r, err
	}
	r.swapped = true
	return r, nil
}

// rollback undoes replacements in reverse order.
func rollback(moved []replacement) {
	for i := len(moved) - 1; i >= 0; i-- {
		r := moved[i]
		switch {
		case r.backup != "":
			os.Rename(r.backup, r.target)
		case r.swapped:
			os.Remove(r.target)
		}
	}
}

func (s *fileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		if err := os.Remove(filepath.Join(s.root, key)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: %s: %v", ErrDeleteFailed, key, err)
		}
	}
	return nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, ".") || strings.ContainsAny(key, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
