package dtl

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/itsatony/go-dtl/internal"
)

// Engine is the main entry point of the template engine. It compiles
// templates, resolves names through its loaders and holds the settings
// rendering consults. An Engine is safe for concurrent use.
type Engine struct {
	inner     *internal.Engine
	templates *internal.MapLoader
	autoesc   bool
	logger    *zap.Logger
}

// New creates an Engine with the given options.
func New(opts ...Option) (*Engine, error) {
	config := defaultEngineConfig()
	for _, opt := range opts {
		opt(config)
	}
	return newEngine(config)
}

func newEngine(config *engineConfig) (*Engine, error) {
	if config.MaxDepth < 0 {
		return nil, NewInvalidDepthError(config.MaxDepth)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
		config.Logger = logger
	}

	// Registered templates shadow every other loader.
	templates := internal.NewMapLoader(nil)
	chain := internal.ChainLoader{templates}
	chain = append(chain, config.loaders...)
	if config.Loader != nil {
		chain = append(chain, config.Loader)
	}
	config.Loader = chain

	e := &Engine{
		inner:     internal.NewEngine(config.EngineConfig),
		templates: templates,
		autoesc:   config.Autoescape,
		logger:    logger,
	}
	logger.Debug(LogMsgEngineReady, zap.Int(LogFieldLoaders, len(chain)))
	return e, nil
}

// MustNew creates a new Engine and panics if there's an error.
func MustNew(opts ...Option) *Engine {
	engine, err := New(opts...)
	if err != nil {
		panic(err)
	}
	return engine
}

// FromString compiles source into a template with no loader origin.
func (e *Engine) FromString(source string) (*Template, error) {
	t, err := e.inner.FromString(source)
	if err != nil {
		return nil, wrapError(err, "")
	}
	return newTemplate(t, e), nil
}

// MustFromString compiles source and panics on error.
func (e *Engine) MustFromString(source string) *Template {
	t, err := e.FromString(source)
	if err != nil {
		panic(err)
	}
	return t
}

// GetTemplate loads and compiles the template called name.
func (e *Engine) GetTemplate(name string) (*Template, error) {
	t, err := e.inner.GetTemplate(name)
	if err != nil {
		return nil, wrapError(err, name)
	}
	return newTemplate(t, e), nil
}

// SelectTemplate returns the first of names that exists.
func (e *Engine) SelectTemplate(names ...string) (*Template, error) {
	t, err := e.inner.SelectTemplate(names)
	if err != nil {
		return nil, wrapError(err, "")
	}
	return newTemplate(t, e), nil
}

// RenderToString loads the template called name and renders it with data.
func (e *Engine) RenderToString(name string, data map[string]any) (string, error) {
	t, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}

// Execute compiles source and renders it with data in one step. For
// templates rendered more than once, use FromString instead.
func (e *Engine) Execute(source string, data map[string]any) (string, error) {
	t, err := e.FromString(source)
	if err != nil {
		return "", err
	}
	return t.Execute(data)
}

// RegisterTemplate stores source under name. Registered templates are
// found before any other loader. The source must compile. Returns an
// error if a template with the same name already exists.
func (e *Engine) RegisterTemplate(name, source string) error {
	if name == "" {
		return NewEmptyTemplateNameError()
	}
	if e.templates.Has(name) {
		return NewTemplateExistsError(name)
	}
	if _, err := e.inner.Compile(source, &internal.Origin{Name: name, TemplateName: name}); err != nil {
		return wrapError(err, name)
	}
	e.templates.Set(name, source)
	e.inner.Forget(name)
	e.logger.Debug(LogMsgTemplateRegistered, zap.String(LogFieldTemplate, name))
	return nil
}

// MustRegisterTemplate registers a template and panics on error.
func (e *Engine) MustRegisterTemplate(name, source string) {
	if err := e.RegisterTemplate(name, source); err != nil {
		panic(err)
	}
}

// UnregisterTemplate removes a registered template by name.
// Returns true if the template existed and was removed, false otherwise.
func (e *Engine) UnregisterTemplate(name string) bool {
	if !e.templates.Delete(name) {
		return false
	}
	e.inner.Forget(name)
	e.logger.Debug(LogMsgTemplateRemoved, zap.String(LogFieldTemplate, name))
	return true
}

// HasTemplate checks if a template is registered with the given name.
func (e *Engine) HasTemplate(name string) bool {
	return e.templates.Has(name)
}

// ListTemplates returns all registered template names in sorted order.
func (e *Engine) ListTemplates() []string {
	return e.templates.Names()
}

// TemplateCount returns the number of registered templates.
func (e *Engine) TemplateCount() int {
	return e.templates.Len()
}

// ResetCache drops every compiled template so that loaders are consulted
// again.
func (e *Engine) ResetCache() {
	e.inner.ResetCache()
}

// Logger returns the engine logger
func (e *Engine) Logger() *zap.Logger { return e.logger }

// newRenderID tags the log lines of one render
func newRenderID() string {
	return uuid.NewString()
}
