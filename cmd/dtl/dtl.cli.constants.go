package main

// Command names
const (
	CmdNameRoot    = "dtl"
	CmdNameRender  = "render"
	CmdNameCheck   = "check"
	CmdNameTokens  = "tokens"
	CmdNameExtract = "extract"
	CmdNameVersion = "version"
)

// Flag names - long form
const (
	FlagConfig   = "config"
	FlagDir      = "dir"
	FlagDebug    = "debug"
	FlagVerbose  = "verbose"
	FlagData     = "data"
	FlagDataFile = "data-file"
	FlagOutput   = "output"
	FlagWatch    = "watch"
	FlagNoEscape = "no-autoescape"
	FlagLanguage = "language"
)

// Flag names - short form
const (
	FlagConfigShort   = "c"
	FlagDirShort      = "I"
	FlagDataShort     = "d"
	FlagDataFileShort = "f"
	FlagOutputShort   = "o"
	FlagWatchShort    = "w"
	FlagVerboseShort  = "v"
)

// Flag default values
const (
	FlagDefaultOutput = "-" // stdout
)

// Exit codes
const (
	ExitCodeSuccess         = 0
	ExitCodeError           = 1
	ExitCodeUsageError      = 2
	ExitCodeValidationError = 3
	ExitCodeInputError      = 4
)

// Input source indicators
const (
	InputSourceStdin = "-"
)

// Error messages - ALL must be constants
const (
	ErrMsgMissingTemplate   = "template path required"
	ErrMsgReadFileFailed    = "failed to read file"
	ErrMsgReadStdinFailed   = "failed to read from stdin"
	ErrMsgWriteOutputFailed = "failed to write output"
	ErrMsgInvalidData       = "invalid YAML or JSON data"
	ErrMsgEngineFailed      = "cannot configure engine"
	ErrMsgCompileFailed     = "template compilation failed"
	ErrMsgRenderFailed      = "template rendering failed"
	ErrMsgWatchFailed       = "cannot watch templates"
	ErrMsgWatchStdin        = "cannot watch a template read from stdin"
	ErrMsgCheckFailed       = "templates failed to compile"
	ErrMsgExtractFailed     = "message extraction failed"
)

// Output formats
const (
	FmtErrorWithCause = "Error: %s: %v\n"
	FmtError          = "Error: %s\n"
	FmtCheckOK        = "ok    %s\n"
	FmtCheckFail      = "FAIL  %s: %v\n"
	FmtToken          = "%4d  %-7s  line %-4d  %d:%d  %q\n"
	FmtVersion        = "dtl version %s\n"
	FmtWatching       = "watching %s\n"
	FmtExtracted      = "extracted %d messages from %d templates\n"
)

// Help text
const (
	HelpRootShort = "Render and inspect Django-style templates"
	HelpRootLong  = `dtl renders Django-style templates from the command line.

Templates are looked up in the directories given with --dir or in the
template_dirs of a --config file. A template path outside those is read
from its own directory, so include and extends resolve next to it.`

	HelpRenderShort   = "Render a template with YAML or JSON data"
	HelpRenderExample = `  dtl render page.html --data '{"name": "Alice"}'
  dtl render page.html -f data.yaml -o page.out.html
  echo 'Hello {{ name }}' | dtl render - -d 'name: Bob'
  dtl render page.html -f data.yaml --watch`

	HelpCheckShort   = "Compile templates and report syntax errors"
	HelpTokensShort  = "Print the token stream of a template"
	HelpExtractShort = "Extract translatable strings into a PO template"
	HelpVersionShort = "Print version information"
)

// Flag usage text
const (
	UsageConfig   = "YAML engine configuration file"
	UsageDir      = "template directory (repeatable)"
	UsageDebug    = "attach source excerpts to errors"
	UsageVerbose  = "log engine activity to stderr"
	UsageData     = "inline YAML or JSON data"
	UsageDataFile = "YAML or JSON data file"
	UsageOutput   = "output file, - for stdout"
	UsageWatch    = "re-render when a template file changes"
	UsageNoEscape = "disable HTML autoescaping"
	UsageLanguage = "language used for translation and localization"
)
