package dtl

import (
	"go.uber.org/zap"

	"github.com/itsatony/go-dtl/internal"
)

// FileConfig is the YAML form of an engine configuration:
//
//	debug: false
//	autoescape: true
//	string_if_invalid: "INVALID(%s)"
//	template_dirs: [templates]
//	libraries:
//	  human: humanize
//	language: de
//	timezone: Europe/Berlin
//	locale_file: locale/de.po
//
// Library names refer to libraries added with RegisterLibrary.
type FileConfig = internal.FileConfig

// ParseFileConfig parses YAML configuration. Relative paths in it are
// resolved against baseDir.
func ParseFileConfig(data []byte, baseDir string) (*FileConfig, error) {
	fc, err := internal.ParseFileConfig(data, baseDir)
	if err != nil {
		return nil, wrapError(err, "")
	}
	return fc, nil
}

// NewFromConfigFile creates an engine from the YAML file at path. Options
// are applied after the file, so they take precedence.
func NewFromConfigFile(path string, opts ...Option) (*Engine, error) {
	fc, err := internal.LoadFileConfig(path)
	if err != nil {
		return nil, NewConfigError(path, err)
	}
	return NewFromConfig(fc, opts...)
}

// NewFromConfig creates an engine from a parsed configuration.
func NewFromConfig(fc *FileConfig, opts ...Option) (*Engine, error) {
	probe := defaultEngineConfig()
	for _, opt := range opts {
		opt(probe)
	}

	base, err := fc.EngineConfig(registrySnapshot(), probe.Logger)
	if err != nil {
		return nil, wrapError(err, "")
	}
	config := &engineConfig{EngineConfig: base}
	for _, opt := range opts {
		opt(config)
	}
	if config.Logger != nil {
		config.Logger.Debug(LogMsgConfigLoaded, zap.Strings(LogFieldTemplateDirs, fc.TemplateDirs))
	}
	return newEngine(config)
}
