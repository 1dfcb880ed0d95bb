package dtl

import "github.com/itsatony/go-dtl/internal"

// Version is the library version reported by the CLI
const Version = "0.4.0"

// Engine defaults
const (
	DefaultMaxDepth = internal.DefaultMaxDepth
)

// Error metadata keys attached to every error the package returns
const (
	MetaKeyLine        = "line"
	MetaKeyTemplate    = "template"
	MetaKeyToken       = "token"
	MetaKeyKind        = "kind"
	MetaKeyLibrary     = "library"
	MetaKeySuggestions = "suggestions"
	MetaKeyPath        = "path"
	MetaKeyDepth       = "depth"
)

// Log messages
const (
	LogMsgEngineReady        = "dtl engine ready"
	LogMsgTemplateRegistered = "template registered"
	LogMsgTemplateRemoved    = "template unregistered"
	LogMsgRenderStart        = "render started"
	LogMsgRenderDone         = "render finished"
	LogMsgRenderFailed       = "render failed"
	LogMsgConfigLoaded       = "engine configuration loaded"
)

// Log field names
const (
	LogFieldTemplate     = "template"
	LogFieldRenderID     = "render_id"
	LogFieldBytes        = "bytes"
	LogFieldDuration     = "duration"
	LogFieldTemplateDirs = "template_dirs"
	LogFieldLoaders      = "loaders"
)

// Separator used when joining suggestion lists into metadata
const suggestionSeparator = ", "
