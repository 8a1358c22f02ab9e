package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// loadDocument reads the property document at path. A missing or empty
// file yields an empty map.
func loadDocument(path string) (map[string]string, error) {
	props := make(map[string]string)
	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return props, nil
	case err != nil:
		return nil, err
	case len(b) == 0:
		return props, nil
	}
	if err := json.Unmarshal(b, &props); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return props, nil
}

// saveDocument replaces the document at path. The new content is synced to
// a sibling temp file before the rename, so readers see either the old or
// the new document.
func saveDocument(path string, props map[string]string) error {
	b, err := json.MarshalIndent(props, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	f, err := os.CreateTemp(dir, filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmp)
		}
	}()

	if err := f.Chmod(0o600); err != nil {
		_ = f.Close()
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		return err
	}
	committed = true
	return nil
}
