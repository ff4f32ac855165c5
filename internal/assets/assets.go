// Package assets resolves model files across layered GRF archives and caches
// the parsed models.
package assets

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/Faultbox/midgard-anim/internal/logger"
	"github.com/Faultbox/midgard-anim/pkg/formats"
	"github.com/Faultbox/midgard-anim/pkg/grf"
)

// ErrNotFound is returned when no archive holds the requested file.
var ErrNotFound = errors.New("assets: file not found")

// Manager handles asset loading from GRF files.
type Manager struct {
	archives []*grf.Archive
	models   *Cache[*formats.RSM]
	mu       sync.RWMutex
}

// NewManager creates a new asset manager.
func NewManager() *Manager {
	return &Manager{
		models: NewCache[*formats.RSM](),
	}
}

// AddArchive opens a GRF archive and adds it to the manager.
// Archives are searched in reverse order (last added = highest priority).
func (m *Manager) AddArchive(path string) error {
	archive, err := grf.Open(path)
	if err != nil {
		return fmt.Errorf("opening archive %s: %w", path, err)
	}
	m.add(archive)
	logger.Named("assets").Debug("added archive", zap.String("path", path))
	return nil
}

// AddReader adds an archive held in r.
func (m *Manager) AddReader(r io.ReaderAt) error {
	archive, err := grf.NewReader(r)
	if err != nil {
		return err
	}
	m.add(archive)
	return nil
}

func (m *Manager) add(archive *grf.Archive) {
	m.mu.Lock()
	m.archives = append(m.archives, archive)
	m.mu.Unlock()

	// A new archive may shadow cached models.
	m.models.Clear()
}

// Load returns a file from the highest-priority archive holding it.
func (m *Manager) Load(name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.archives) - 1; i >= 0; i-- {
		if _, ok := m.archives[i].Stat(name); ok {
			return m.archives[i].Read(name)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Glob returns the sorted, de-duplicated names matching pattern across every
// archive.
func (m *Manager) Glob(pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]bool)
	var names []string
	for _, archive := range m.archives {
		matches, err := archive.Glob(pattern)
		if err != nil {
			return nil, err
		}
		for _, name := range matches {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

// LoadRSM parses a model, reusing the cached copy on repeated requests. The
// returned model is shared and must not be modified.
func (m *Manager) LoadRSM(name string) (*formats.RSM, error) {
	if model, ok := m.models.Get(name); ok {
		return model, nil
	}

	data, err := m.Load(name)
	if err != nil {
		return nil, err
	}
	model, err := formats.ParseRSM(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	m.models.Set(name, model)
	return model, nil
}

// Close closes all archives.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, archive := range m.archives {
		archive.Close()
	}
	m.archives = nil
	m.models.Clear()
}

// Cache is a simple in-memory cache for loaded assets.
type Cache[V any] struct {
	data map[string]V
	mu   sync.RWMutex

	// Stats
	hits   int
	misses int
}

// NewCache creates a new cache.
func NewCache[V any]() *Cache[V] {
	return &Cache[V]{
		data: make(map[string]V),
	}
}

// Get retrieves an item from cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return v, ok
}

// Set stores an item in cache.
func (c *Cache[V]) Set(key string, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = v
}

// Clear empties the cache. Statistics are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[string]V)
}

// Stats returns cache statistics.
func (c *Cache[V]) Stats() (hits, misses int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hits, c.misses
}
