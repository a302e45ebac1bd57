package catalog

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

var (
	registry   = make(map[string]Layout)
	registryMu sync.RWMutex
)

// Register adds a layout to the registry.
// Panics if the layout is invalid or its key is already registered.
func Register(l Layout) {
	if err := Add(l); err != nil {
		panic(err.Error())
	}
}

// Add adds a layout to the registry, returning an error instead of panicking.
func Add(l Layout) error {
	if err := l.Validate(); err != nil {
		return err
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[l.Key]; exists {
		return fmt.Errorf("layout already registered: %s", l.Key)
	}
	registry[l.Key] = l
	return nil
}

// Get returns a layout by key.
// Returns false if not found.
func Get(key string) (Layout, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	l, ok := registry[key]
	return l, ok
}

// All returns all registered layouts.
// Sorted by group then by key for consistent ordering.
func All() []Layout {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Layout, 0, len(registry))
	for _, l := range registry {
		result = append(result, l)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Group != result[j].Group {
			return result[i].Group < result[j].Group
		}
		return result[i].Key < result[j].Key
	})

	return result
}

// ByGroup returns all layouts for a specific group.
// Sorted by key for consistent ordering.
func ByGroup(group string) []Layout {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var result []Layout
	for _, l := range registry {
		if l.Group == group {
			result = append(result, l)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Groups returns all unique group names.
// Sorted alphabetically.
func Groups() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]bool)
	for _, l := range registry {
		seen[l.Group] = true
	}

	groups := make([]string, 0, len(seen))
	for g := range seen {
		groups = append(groups, g)
	}

	sort.Strings(groups)
	return groups
}

// Count returns the number of registered layouts.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered layouts.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]Layout)
}

// layoutsFile is the document shape of a YAML layouts file.
type layoutsFile struct {
	Layouts []Layout `yaml:"layouts"`
}

// ParseLayouts decodes layouts from YAML.
func ParseLayouts(data []byte) ([]Layout, error) {
	var f layoutsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}
	for _, l := range f.Layouts {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("parse layouts: %w", err)
		}
	}
	return f.Layouts, nil
}

// LoadFile reads a YAML layouts file and registers every layout in it.
// It returns the number of layouts registered.
func LoadFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read layouts file: %w", err)
	}
	layouts, err := ParseLayouts(data)
	if err != nil {
		return 0, err
	}
	for _, l := range layouts {
		if err := Add(l); err != nil {
			return 0, err
		}
	}
	return len(layouts), nil
}
