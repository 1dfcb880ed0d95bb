package dtl

import "sync"

var (
	defaultEngine     *Engine
	defaultEngineOnce sync.Once
	defaultEngineMu   sync.RWMutex
)

// Default returns the package-level engine, created with default options
// on first use.
func Default() *Engine {
	defaultEngineOnce.Do(func() {
		defaultEngineMu.Lock()
		defer defaultEngineMu.Unlock()

		if defaultEngine == nil {
			defaultEngine = MustNew()
		}
	})
	defaultEngineMu.RLock()
	defer defaultEngineMu.RUnlock()

	return defaultEngine
}

// SetDefault replaces the package-level engine.
func SetDefault(e *Engine) {
	defaultEngineOnce.Do(func() {})
	defaultEngineMu.Lock()
	defer defaultEngineMu.Unlock()

	defaultEngine = e
}

// Render compiles source with the default engine and renders it with data.
func Render(source string, data map[string]any) (string, error) {
	return Default().Execute(source, data)
}
