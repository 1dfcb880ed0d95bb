package internal

import (
	"errors"
	"io/fs"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
)

// Loader resolves a template name to its source.
type Loader interface {
	GetSource(name string) (string, *Origin, error)
}

// Loader names recorded in origins
const (
	LoaderNameMap   = "map"
	LoaderNameFS    = "fs"
	LoaderNameChain = "chain"
)

func templateNotFound(name string) *Error {
	return Errorf(ErrTemplateNotFound, ErrFmtTemplateNotFound, name)
}

// MapLoader serves templates from memory.
type MapLoader struct {
	templates map[string]string
	mu        sync.RWMutex
}

// NewMapLoader creates a loader holding a copy of templates.
func NewMapLoader(templates map[string]string) *MapLoader {
	m := &MapLoader{templates: make(map[string]string, len(templates))}
	for name, src := range templates {
		m.templates[name] = src
	}
	return m
}

// Set adds or replaces a template.
func (m *MapLoader) Set(name, source string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.templates[name] = source
}

// Delete removes a template and reports whether it existed.
func (m *MapLoader) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, ok := m.templates[name]
	delete(m.templates, name)
	return ok
}

// Has reports whether name is held
func (m *MapLoader) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.templates[name]
	return ok
}

// Names returns the held template names in sorted order.
func (m *MapLoader) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.templates))
}

// Len returns the number of held templates
func (m *MapLoader) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.templates)
}

// GetSource implements Loader
func (m *MapLoader) GetSource(name string) (string, *Origin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	src, ok := m.templates[name]
	if !ok {
		return "", nil, templateNotFound(name)
	}
	return src, &Origin{Name: name, TemplateName: name, Loader: LoaderNameMap}, nil
}

// FSLoader reads templates from a file system, such as os.DirFS or an
// embed.FS.
type FSLoader struct {
	fsys fs.FS
}

// NewFSLoader creates a loader over fsys
func NewFSLoader(fsys fs.FS) *FSLoader { return &FSLoader{fsys: fsys} }

// GetSource implements Loader
func (l *FSLoader) GetSource(name string) (string, *Origin, error) {
	clean := path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(clean) {
		return "", nil, templateNotFound(name)
	}
	data, err := fs.ReadFile(l.fsys, clean)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return "", nil, templateNotFound(name)
		}
		return "", nil, err
	}
	return string(data), &Origin{Name: clean, TemplateName: name, Loader: LoaderNameFS}, nil
}

// ChainLoader tries each loader in order. Only not-found failures move on
// to the next loader.
type ChainLoader []Loader

// GetSource implements Loader
func (c ChainLoader) GetSource(name string) (string, *Origin, error) {
	for _, l := range c {
		src, origin, err := l.GetSource(name)
		if err == nil {
			return src, origin, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return "", nil, err
		}
	}
	return "", nil, templateNotFound(name)
}
