package internal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Configuration error formats
const (
	ErrFmtConfigRead           = "cannot read engine configuration %s"
	ErrFmtConfigParse          = "cannot parse engine configuration"
	ErrFmtConfigMaxDepth       = "max_depth must not be negative, got %d"
	ErrFmtConfigLanguage       = "invalid language %q"
	ErrFmtConfigTimezone       = "invalid timezone %q"
	ErrFmtConfigLocaleFile     = "cannot load locale file %s"
	ErrFmtConfigUnknownLibrary = "library %q named by alias %q is not registered"
	ErrFmtConfigUnknownBuiltin = "builtin library %q is not registered"
)

// FileConfig is the YAML form of an engine configuration.
type FileConfig struct {
	Debug           bool              `yaml:"debug,omitempty" json:"debug,omitempty"`
	StringIfInvalid string            `yaml:"string_if_invalid,omitempty" json:"string_if_invalid,omitempty"`
	StrictVariables bool              `yaml:"strict_variables,omitempty" json:"strict_variables,omitempty"`
	Autoescape      *bool             `yaml:"autoescape,omitempty" json:"autoescape,omitempty"`
	MaxDepth        int               `yaml:"max_depth,omitempty" json:"max_depth,omitempty"`
	UseL10n         bool              `yaml:"use_l10n,omitempty" json:"use_l10n,omitempty"`
	UseTZ           bool              `yaml:"use_tz,omitempty" json:"use_tz,omitempty"`
	Language        string            `yaml:"language,omitempty" json:"language,omitempty"`
	Timezone        string            `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	TemplateDirs    []string          `yaml:"template_dirs,omitempty" json:"template_dirs,omitempty"`
	Libraries       map[string]string `yaml:"libraries,omitempty" json:"libraries,omitempty"`
	Builtins        []string          `yaml:"builtins,omitempty" json:"builtins,omitempty"`
	LocaleFile      string            `yaml:"locale_file,omitempty" json:"locale_file,omitempty"`
	Cache           *bool             `yaml:"cache,omitempty" json:"cache,omitempty"`

	// baseDir resolves relative template_dirs and locale_file.
	baseDir string
}

// ParseFileConfig parses YAML configuration. Relative paths in it are
// resolved against baseDir.
func ParseFileConfig(data []byte, baseDir string) (*FileConfig, error) {
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, &Error{Kind: ErrInvalidConfig, Message: ErrFmtConfigParse, Cause: err}
	}
	fc.baseDir = baseDir
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// LoadFileConfig reads and parses the configuration file at path.
func LoadFileConfig(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf(ErrFmtConfigRead, path), Cause: err}
	}
	return ParseFileConfig(data, filepath.Dir(path))
}

// Validate checks the values that need no registry to verify.
func (fc *FileConfig) Validate() error {
	if fc.MaxDepth < 0 {
		return Errorf(ErrInvalidConfig, ErrFmtConfigMaxDepth, fc.MaxDepth)
	}
	if fc.Language != "" {
		if _, err := language.Parse(fc.Language); err != nil {
			return &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf(ErrFmtConfigLanguage, fc.Language), Cause: err}
		}
	}
	if fc.Timezone != "" {
		if _, err := time.LoadLocation(fc.Timezone); err != nil {
			return &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf(ErrFmtConfigTimezone, fc.Timezone), Cause: err}
		}
	}
	return nil
}

func (fc *FileConfig) resolvePath(p string) string {
	if filepath.IsAbs(p) || fc.baseDir == "" {
		return p
	}
	return filepath.Join(fc.baseDir, p)
}

// EngineConfig builds an engine configuration, looking library names up
// in registry.
func (fc *FileConfig) EngineConfig(registry map[string]*Library, logger *zap.Logger) (EngineConfig, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := DefaultEngineConfig()
	cfg.Logger = logger
	cfg.Debug = fc.Debug
	cfg.StringIfInvalid = fc.StringIfInvalid
	cfg.StrictVariables = fc.StrictVariables
	cfg.UseL10n = fc.UseL10n
	cfg.UseTZ = fc.UseTZ
	if fc.Autoescape != nil {
		cfg.Autoescape = *fc.Autoescape
	}
	if fc.MaxDepth > 0 {
		cfg.MaxDepth = fc.MaxDepth
	}
	if fc.Cache != nil {
		cfg.CacheTemplates = *fc.Cache
	}

	if len(fc.TemplateDirs) > 0 {
		chain := make(ChainLoader, 0, len(fc.TemplateDirs))
		for _, dir := range fc.TemplateDirs {
			chain = append(chain, NewFSLoader(os.DirFS(fc.resolvePath(dir))))
		}
		cfg.Loader = chain
	}

	cfg.Libraries = make(map[string]*Library, len(fc.Libraries))
	for alias, name := range fc.Libraries {
		lib, ok := registry[name]
		if !ok {
			return EngineConfig{}, Errorf(ErrInvalidTemplateLibrary, ErrFmtConfigUnknownLibrary, name, alias)
		}
		cfg.Libraries[alias] = lib
	}
	for _, name := range fc.Builtins {
		lib, ok := registry[name]
		if !ok {
			return EngineConfig{}, Errorf(ErrInvalidTemplateLibrary, ErrFmtConfigUnknownBuiltin, name)
		}
		cfg.Builtins = append(cfg.Builtins, lib)
	}

	localizer, err := fc.localizer(logger)
	if err != nil {
		return EngineConfig{}, err
	}
	cfg.Localizer = localizer
	return cfg, nil
}

func (fc *FileConfig) localizer(logger *zap.Logger) (Localizer, error) {
	lang := language.English
	if fc.Language != "" {
		lang = language.Make(fc.Language)
	}
	var loc *time.Location
	if fc.Timezone != "" {
		loc, _ = time.LoadLocation(fc.Timezone)
	}
	var catalog *Catalog
	if fc.LocaleFile != "" {
		path := fc.resolvePath(fc.LocaleFile)
		f, err := os.Open(path)
		if err != nil {
			return nil, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf(ErrFmtConfigLocaleFile, path), Cause: err}
		}
		defer f.Close()
		if catalog, err = LoadCatalog(f, logger); err != nil {
			return nil, &Error{Kind: ErrInvalidConfig, Message: fmt.Sprintf(ErrFmtConfigLocaleFile, path), Cause: err}
		}
	}
	return NewLocalizer(lang, loc, catalog), nil
}

// LoadEngineConfig reads a configuration file and builds the engine
// configuration it describes.
func LoadEngineConfig(path string, registry map[string]*Library, logger *zap.Logger) (EngineConfig, error) {
	fc, err := LoadFileConfig(path)
	if err != nil {
		return EngineConfig{}, err
	}
	return fc.EngineConfig(registry, logger)
}
