package dtl

import (
	"os"

	"go.uber.org/zap"

	"github.com/itsatony/go-dtl/internal"
)

// Option is a functional option for configuring the Engine.
type Option func(*engineConfig)

// engineConfig holds the configuration an Engine is built from.
type engineConfig struct {
	internal.EngineConfig
	loaders []Loader
}

// defaultEngineConfig returns the default engine configuration.
func defaultEngineConfig() *engineConfig {
	return &engineConfig{
		EngineConfig: internal.DefaultEngineConfig(),
	}
}

// WithDebug attaches source excerpts to syntax and render errors.
// Default: false
func WithDebug(enabled bool) Option {
	return func(c *engineConfig) {
		c.Debug = enabled
	}
}

// WithStringIfInvalid sets the text rendered for missing variables. A
// "%s" in it is replaced by the variable expression.
// Default: ""
func WithStringIfInvalid(s string) Option {
	return func(c *engineConfig) {
		c.StringIfInvalid = s
	}
}

// WithStrictVariables makes a missing variable fail the render.
// Default: false
func WithStrictVariables(strict bool) Option {
	return func(c *engineConfig) {
		c.StrictVariables = strict
	}
}

// WithAutoescape sets whether rendered values are HTML-escaped.
// Default: true
func WithAutoescape(enabled bool) Option {
	return func(c *engineConfig) {
		c.Autoescape = enabled
	}
}

// WithMaxDepth sets how deeply templates may include or extend each other.
// Default: 50
func WithMaxDepth(depth int) Option {
	return func(c *engineConfig) {
		c.MaxDepth = depth
	}
}

// WithUseL10n formats numbers and dates for the localizer's language by
// default.
// Default: false
func WithUseL10n(enabled bool) Option {
	return func(c *engineConfig) {
		c.UseL10n = enabled
	}
}

// WithUseTZ converts aware times to the localizer's time zone by default.
// Default: false
func WithUseTZ(enabled bool) Option {
	return func(c *engineConfig) {
		c.UseTZ = enabled
	}
}

// WithLocalizer sets the translation and formatting service.
// Default: English, UTC, no catalog
func WithLocalizer(l Localizer) Option {
	return func(c *engineConfig) {
		c.Localizer = l
	}
}

// WithLoader adds a template loader. Loaders are consulted in the order
// they were added, after templates registered on the engine.
func WithLoader(l Loader) Option {
	return func(c *engineConfig) {
		if l != nil {
			c.loaders = append(c.loaders, l)
		}
	}
}

// WithTemplateDirs adds a filesystem loader per directory.
func WithTemplateDirs(dirs ...string) Option {
	return func(c *engineConfig) {
		for _, dir := range dirs {
			c.loaders = append(c.loaders, internal.NewFSLoader(os.DirFS(dir)))
		}
	}
}

// WithLibrary makes lib loadable as {% load name %}.
func WithLibrary(name string, lib *Library) Option {
	return func(c *engineConfig) {
		if c.Libraries == nil {
			c.Libraries = make(map[string]*Library)
		}
		c.Libraries[name] = lib
	}
}

// WithBuiltins makes the tags and filters of libs available to every
// template without {% load %}.
func WithBuiltins(libs ...*Library) Option {
	return func(c *engineConfig) {
		c.Builtins = append(c.Builtins, libs...)
	}
}

// WithContextProcessors sets the processors request contexts run when
// bound to a template.
func WithContextProcessors(processors ...ContextProcessor) Option {
	return func(c *engineConfig) {
		c.ContextProcessors = append(c.ContextProcessors, processors...)
	}
}

// WithTemplateCache sets whether loaded templates are compiled once and reused.
// Default: true
func WithTemplateCache(enabled bool) Option {
	return func(c *engineConfig) {
		c.CacheTemplates = enabled
	}
}

// WithLogger sets the logger for the engine.
// Default: zap.NewNop()
func WithLogger(logger *zap.Logger) Option {
	return func(c *engineConfig) {
		c.Logger = logger
	}
}
