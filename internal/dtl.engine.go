package internal

import (
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/text/language"
)

// EngineConfig configures an Engine.
type EngineConfig struct {
	Debug           bool
	StringIfInvalid string
	// StrictVariables makes missing variables fail the render instead of
	// rendering StringIfInvalid.
	StrictVariables bool
	Autoescape      bool
	MaxDepth        int
	UseL10n         bool
	UseTZ           bool
	Loader          Loader
	// Libraries are the libraries {% load %} can name.
	Libraries map[string]*Library
	// Builtins are available to every template after the default tags
	// and filters, overriding them on name clashes.
	Builtins          []*Library
	Localizer         Localizer
	ContextProcessors []ContextProcessor
	CacheTemplates    bool
	Logger            *zap.Logger
}

// DefaultEngineConfig returns the configuration used when none is given.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Autoescape:     true,
		MaxDepth:       DefaultMaxDepth,
		CacheTemplates: true,
	}
}

// Engine compiles templates and holds the settings rendering consults.
type Engine struct {
	config   EngineConfig
	builtins []*Library
	logger   *zap.Logger

	mu    sync.RWMutex
	cache map[string]*Template
}

// NewEngine creates an engine. Zero values in config fall back to the
// defaults for MaxDepth, Localizer and Logger.
func NewEngine(config EngineConfig) *Engine {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	if config.Localizer == nil {
		config.Localizer = NewLocalizer(language.English, nil, nil)
	}
	libraries := maps.Clone(config.Libraries)
	if libraries == nil {
		libraries = map[string]*Library{}
	}
	if _, ok := libraries[HumanizeLibraryName]; !ok {
		libraries[HumanizeLibraryName] = humanizeLibrary()
	}
	config.Libraries = libraries
	e := &Engine{
		config:   config,
		builtins: append(slices.Clone(DefaultBuiltins()), config.Builtins...),
		logger:   config.Logger,
		cache:    make(map[string]*Template),
	}
	e.logger.Debug(LogMsgEngineCreated, zap.Bool(LogFieldDebug, config.Debug))
	return e
}

var (
	humanizeOnce sync.Once
	humanizeLib  *Library
)

func humanizeLibrary() *Library {
	humanizeOnce.Do(func() { humanizeLib = NewHumanizeLibrary() })
	return humanizeLib
}

var (
	fallback     *Engine
	fallbackOnce sync.Once
)

// fallbackEngine serves contexts rendered outside any template. It is
// built on first use.
func fallbackEngine() *Engine {
	fallbackOnce.Do(func() {
		fallback = NewEngine(DefaultEngineConfig())
	})
	return fallback
}

// Debug reports whether diagnostics are attached to errors
func (e *Engine) Debug() bool { return e.config.Debug }

// StringIfInvalid returns the placeholder rendered for missing variables
func (e *Engine) StringIfInvalid() string { return e.config.StringIfInvalid }

// StrictVariables reports whether missing variables fail the render
func (e *Engine) StrictVariables() bool { return e.config.StrictVariables }

// Autoescape reports whether new contexts escape output
func (e *Engine) Autoescape() bool { return e.config.Autoescape }

// MaxDepth returns the template nesting limit
func (e *Engine) MaxDepth() int { return e.config.MaxDepth }

// UseL10n reports whether output is localized by default
func (e *Engine) UseL10n() bool { return e.config.UseL10n }

// UseTZ reports whether times are converted to local time by default
func (e *Engine) UseTZ() bool { return e.config.UseTZ }

// Localizer returns the localization service
func (e *Engine) Localizer() Localizer { return e.config.Localizer }

// Libraries returns the loadable libraries
func (e *Engine) Libraries() map[string]*Library { return e.config.Libraries }

// Builtins returns the libraries every template starts with
func (e *Engine) Builtins() []*Library { return e.builtins }

// ContextProcessors returns the processors request contexts run
func (e *Engine) ContextProcessors() []ContextProcessor { return e.config.ContextProcessors }

// Loader returns the template loader, or nil
func (e *Engine) Loader() Loader { return e.config.Loader }

// Logger returns the engine logger
func (e *Engine) Logger() *zap.Logger { return e.logger }

// FromString compiles source that has no loader origin.
func (e *Engine) FromString(source string) (*Template, error) {
	return e.Compile(source, &Origin{Name: UnknownSource})
}

// Compile lexes and parses source. In debug mode a syntax error carries
// the source excerpt around the failing token.
func (e *Engine) Compile(source string, origin *Origin) (*Template, error) {
	if origin == nil {
		origin = &Origin{Name: UnknownSource}
	}
	var lexer *Lexer
	if e.config.Debug {
		lexer = NewDebugLexer(source, e.logger)
	} else {
		lexer = NewLexer(source, e.logger)
	}
	tokens := lexer.Tokenize()

	parser := NewParser(tokens, e.config.Libraries, e.builtins, origin, e.logger)
	e.logger.Debug(LogMsgParserStart, zap.String(LogFieldTemplate, origin.Name))
	nodelist, err := parser.Parse()
	if err != nil {
		te := asError(err)
		if e.config.Debug && te.Debug == nil && te.Token != nil {
			te.Debug = exceptionInfo(source, origin.Name, te.Error(), *te.Token)
		}
		return nil, te
	}
	e.logger.Debug(LogMsgParserEnd, zap.Int(LogFieldNodes, nodelist.Len()))

	t := &Template{
		Name:     origin.TemplateName,
		Source:   source,
		Origin:   origin,
		Nodelist: nodelist,
		engine:   e,
		comments: parser.TranslatorComments(),
	}
	e.logger.Debug(LogMsgTemplateCompiled, zap.String(LogFieldTemplate, origin.Name))
	return t, nil
}

// GetTemplate loads and compiles name, using the cache when enabled.
func (e *Engine) GetTemplate(name string) (*Template, error) {
	if name == "" {
		return nil, NewError(ErrTemplateNotFound, ErrMsgEmptyTemplateName)
	}
	if e.config.CacheTemplates {
		e.mu.RLock()
		t, ok := e.cache[name]
		e.mu.RUnlock()
		if ok {
			e.logger.Debug(LogMsgTemplateCacheHit, zap.String(LogFieldTemplate, name))
			return t, nil
		}
	}
	if e.config.Loader == nil {
		return nil, templateNotFound(name)
	}
	source, origin, err := e.config.Loader.GetSource(name)
	if err != nil {
		return nil, err
	}
	if origin == nil {
		origin = &Origin{Name: name}
	}
	origin.TemplateName = name
	t, err := e.Compile(source, origin)
	if err != nil {
		return nil, err
	}
	if e.config.CacheTemplates {
		e.mu.Lock()
		e.cache[name] = t
		e.mu.Unlock()
	}
	return t, nil
}

// SelectTemplate returns the first of names that exists. Errors other
// than not-found stop the search.
func (e *Engine) SelectTemplate(names []string) (*Template, error) {
	if len(names) == 0 {
		return nil, NewError(ErrTemplateNotFound, ErrMsgNoTemplateNames)
	}
	for _, name := range names {
		t, err := e.GetTemplate(name)
		if err == nil {
			return t, nil
		}
		if !errors.Is(err, ErrTemplateNotFound) {
			return nil, err
		}
	}
	return nil, templateNotFound(strings.Join(names, ", "))
}

// RenderToString loads name and renders it with values.
func (e *Engine) RenderToString(name string, values map[string]any) (string, error) {
	t, err := e.GetTemplate(name)
	if err != nil {
		return "", err
	}
	ctx := NewContext(values)
	ctx.Autoescape = e.config.Autoescape
	return t.Render(ctx)
}

// ResetCache drops every compiled template.
func (e *Engine) ResetCache() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cache = make(map[string]*Template)
	e.logger.Debug(LogMsgTemplateCacheReset)
}

// Forget drops the compiled template cached under name.
func (e *Engine) Forget(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	delete(e.cache, name)
}
