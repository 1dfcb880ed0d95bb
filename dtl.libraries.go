package dtl

import (
	"maps"
	"slices"
	"sync"

	"github.com/itsatony/go-dtl/internal"
)

// HumanizeLibraryName names the bundled humanize library, loadable in
// every engine as {% load humanize %}.
const HumanizeLibraryName = internal.HumanizeLibraryName

// libraryRegistry holds the libraries configuration files can refer to by
// name.
var libraryRegistry = struct {
	mu   sync.RWMutex
	libs map[string]*Library
}{
	libs: map[string]*Library{
		HumanizeLibraryName: internal.NewHumanizeLibrary(),
	},
}

// RegisterLibrary makes lib available to configuration files under name.
// Returns an error if the name is taken.
func RegisterLibrary(name string, lib *Library) error {
	if lib == nil {
		return NewLibraryError(ErrMsgNilLibrary, name)
	}
	libraryRegistry.mu.Lock()
	defer libraryRegistry.mu.Unlock()

	if _, exists := libraryRegistry.libs[name]; exists {
		return NewLibraryError(ErrMsgLibraryExists, name)
	}
	libraryRegistry.libs[name] = lib
	return nil
}

// MustRegisterLibrary registers a library and panics on error.
func MustRegisterLibrary(name string, lib *Library) {
	if err := RegisterLibrary(name, lib); err != nil {
		panic(err)
	}
}

// LookupLibrary returns the library registered under name.
func LookupLibrary(name string) (*Library, bool) {
	libraryRegistry.mu.RLock()
	defer libraryRegistry.mu.RUnlock()

	lib, ok := libraryRegistry.libs[name]
	return lib, ok
}

// RegisteredLibraries returns the registered library names in sorted order.
func RegisteredLibraries() []string {
	libraryRegistry.mu.RLock()
	defer libraryRegistry.mu.RUnlock()

	return slices.Sorted(maps.Keys(libraryRegistry.libs))
}

func registrySnapshot() map[string]*Library {
	libraryRegistry.mu.RLock()
	defer libraryRegistry.mu.RUnlock()

	return maps.Clone(libraryRegistry.libs)
}
