package store

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"conclave/internal/domain"
)

const propertiesFilename = "properties.json"

// PropertyFileStore persists namespaced properties to a single JSON file.
// The document is read once and rewritten on every mutation. A failed
// rewrite leaves the in-memory view unchanged.
type PropertyFileStore struct {
	path   string
	mu     sync.Mutex
	props  map[string]string
	loaded bool
}

// NewPropertyFileStore returns a PropertyFileStore rooted at dir.
func NewPropertyFileStore(dir string) *PropertyFileStore {
	return &PropertyFileStore{path: filepath.Join(dir, propertiesFilename)}
}

// GetString returns the value stored under key.
func (s *PropertyFileStore) GetString(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return "", false, err
	}
	v, ok := s.props[key]
	return v, ok, nil
}

// SetString stores value under key.
func (s *PropertyFileStore) SetString(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	old, had := s.props[key]
	if had && old == value {
		return nil
	}
	s.props[key] = value
	if err := s.flush(); err != nil {
		if had {
			s.props[key] = old
		} else {
			delete(s.props, key)
		}
		return err
	}
	return nil
}

// GetBool returns the boolean stored under key.
func (s *PropertyFileStore) GetBool(key string) (bool, bool, error) {
	v, ok, err := s.GetString(key)
	if err != nil || !ok {
		return false, false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("property %q: %w", key, err)
	}
	return b, true, nil
}

// SetBool stores a boolean under key.
func (s *PropertyFileStore) SetBool(key string, value bool) error {
	return s.SetString(key, strconv.FormatBool(value))
}

// Remove deletes key. Removing a missing key is not an error.
func (s *PropertyFileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return err
	}
	old, ok := s.props[key]
	if !ok {
		return nil
	}
	delete(s.props, key)
	if err := s.flush(); err != nil {
		s.props[key] = old
		return err
	}
	return nil
}

// KeysWithPrefix lists the keys below prefix in lexical order.
func (s *PropertyFileStore) KeysWithPrefix(prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.load(); err != nil {
		return nil, err
	}
	p := prefix + "."
	out := make([]string, 0)
	for k := range s.props {
		if strings.HasPrefix(k, p) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *PropertyFileStore) load() error {
	if s.loaded {
		return nil
	}
	props, err := loadDocument(s.path)
	if err != nil {
		return fmt.Errorf("load properties: %w", err)
	}
	s.props = props
	s.loaded = true
	return nil
}

func (s *PropertyFileStore) flush() error {
	return saveDocument(s.path, s.props)
}

// Compile-time assertion that PropertyFileStore implements domain.PropertyStore.
var _ domain.PropertyStore = (*PropertyFileStore)(nil)
