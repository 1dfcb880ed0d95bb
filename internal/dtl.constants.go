package internal

// Tag delimiters
const (
	BlockTagStart    = "{%"
	BlockTagEnd      = "%}"
	VariableTagStart = "{{"
	VariableTagEnd   = "}}"
	CommentTagStart  = "{#"
	CommentTagEnd    = "#}"
	SingleBraceStart = "{"
	SingleBraceEnd   = "}"
	LenTagDelim      = 2
)

// Expression separators
const (
	FilterSeparator            = '|'
	FilterArgumentSeparator    = ':'
	VariableAttributeSeparator = "."
	TranslatorCommentMark      = "Translators"
	TranslateOpen              = "_("
	TranslateClose             = ")"
)

// Fixed bindings of the bottom context frame
const (
	BuiltinTrue  = "True"
	BuiltinFalse = "False"
	BuiltinNone  = "None"
)

// Tag names and keywords shared between the parser and the builtin tags
const (
	KeywordVerbatim    = "verbatim"
	KeywordEndVerbatim = "endverbatim"
	KeywordEnd         = "end"
	KeywordAs          = "as"
	KeywordAnd         = "and"
	KeywordWith        = "with"
	KeywordOnly        = "only"
	KeywordFrom        = "from"
	KeywordIn          = "in"
	KeywordReversed    = "reversed"
	KeywordSilent      = "silent"
	KeywordOn          = "on"
	KeywordOff         = "off"
	KeywordNoop        = "noop"
	KeywordContext     = "context"
)

// Context keys with special meaning to builtin tags
const (
	ContextKeyForloop   = "forloop"
	ContextKeyBlock     = "block"
	ContextKeyCSRFToken = "csrf_token"
	CSRFTokenNotProvided = "NOTPROVIDED"
)

// Engine defaults
const (
	DefaultMaxDepth       = 50
	DebugContextLines     = 10
	DefaultDateFormat     = "N j, Y"
	DefaultTimeFormat     = "P"
	DefaultDatetimeFormat = "N j, Y, P"
)

// String renderings of Go values that follow template truthiness rules
const (
	StringValueTrue  = "True"
	StringValueFalse = "False"
	StringValueNone  = "None"
	StringValueEmpty = ""
)

// Numeric formatting
const (
	IntBase10       = 10
	FloatBitSize64  = 64
	FloatFormatFlag = 'f'
	FloatExpFlag    = 'e'
	FloatPrecision  = -1
	FloatExpLow     = 1e-4
	FloatExpHigh    = 1e16
)

// Log message constants
const (
	LogMsgLexerCreated       = "lexer created"
	LogMsgTokenizerEnd       = "tokenization complete"
	LogMsgParserCreated      = "parser created"
	LogMsgParserStart        = "starting parse"
	LogMsgParserEnd          = "parse complete"
	LogMsgTemplateCompiled   = "template compiled"
	LogMsgTemplateCacheHit   = "template cache hit"
	LogMsgTemplateCacheReset = "template cache reset"
	LogMsgLookupFailed       = "exception while resolving variable"
	LogMsgAltersDataBlocked  = "callable alters data, not invoked"
	LogMsgTagRegistered      = "tag registered"
	LogMsgFilterRegistered   = "filter registered"
	LogMsgTagOverridden      = "tag registration overrides existing tag"
	LogMsgFilterOverridden   = "filter registration overrides existing filter"
	LogMsgRecursionLimit     = "template recursion limit reached"
	LogMsgCatalogLoaded      = "translation catalog loaded"
	LogMsgEngineCreated      = "engine created"
)

// Log field constants
const (
	LogFieldSource   = "source_length"
	LogFieldTokens   = "token_count"
	LogFieldNodes    = "node_count"
	LogFieldTemplate = "template"
	LogFieldVariable = "variable"
	LogFieldSegment  = "segment"
	LogFieldTag      = "tag"
	LogFieldFilter   = "filter"
	LogFieldDepth    = "depth"
	LogFieldMessages = "message_count"
	LogFieldDebug    = "debug"
)

// Error message formats
const (
	ErrFmtEmptyVariable       = "Empty variable tag on line %d"
	ErrFmtEmptyBlock          = "Empty block tag on line %d"
	ErrFmtNilTagNode          = "Tag '%s' on line %d compiled to no node"
	ErrFmtInvalidBlockExpect  = "Invalid block tag on line %d: '%s', expected %s. Did you forget to register or load this tag?"
	ErrFmtInvalidBlock        = "Invalid block tag on line %d: '%s'. Did you forget to register or load this tag?"
	ErrFmtUnclosedTag         = "Unclosed tag on line %d: '%s'. Looking for one of: %s."
	ErrFmtUnclosedTagNoCmd    = "Unclosed tag. Looking for one of: %s."
	ErrFmtMustBeFirst         = "%s must be the first tag in the template."
	ErrFmtUnderscoreVariable  = "Variables and attributes may not begin with underscores: '%s'"
	ErrFmtParseSomeChars      = "Could not parse some characters: %s|%s|%s"
	ErrFmtParseRemainder      = "Could not parse the remainder: '%s' from '%s'"
	ErrFmtNoVariableAtStart   = "Could not find variable at start of %s."
	ErrFmtInvalidFilter       = "Invalid filter: '%s'"
	ErrFmtFilterArgCount      = "%s requires %d arguments, %d provided"
	ErrFmtLookupFailed        = "Failed lookup for key [%s] in %s"
	ErrFmtTemplateNotFound    = "template does not exist: %s"
	ErrFmtRecursionLimit      = "template recursion limit of %d exceeded while rendering '%s'"
	ErrFmtUnexpectedKeyword   = "'%s' received unexpected keyword argument '%s'"
	ErrFmtDuplicateKeyword    = "'%s' received multiple values for keyword argument '%s'"
	ErrFmtPositionalAfterKw   = "'%s' received some positional argument(s) after some keyword argument(s)"
	ErrFmtTooManyPositional   = "'%s' received too many positional arguments"
	ErrFmtMissingArguments    = "'%s' did not receive value(s) for the argument(s): %s"
	ErrFmtCannotConvertArg    = "filter '%s' cannot use %T as %s"
	ErrFmtNotIterable         = "'%T' object is not iterable"
	ErrFmtUnpackMismatch      = "Need %d values to unpack in for loop; got %d."
	ErrFmtContextBound        = "context is already bound to template '%s'"
	ErrFmtFilterSignature     = "filter '%s' has an unsupported signature: %s"
	ErrFmtTagParamsDuplicate  = "tag '%s' declares parameter '%s' twice"
	ErrFmtTagParamsDefaults   = "tag '%s' declares more defaults than parameters"
	ErrMsgNoTemplateNames     = "No template names provided"
	ErrMsgContextPop          = "pop() has been called more times than push()"
	ErrMsgEmptyName           = "registration name cannot be empty"
	ErrMsgNilCompiler         = "tag compiler cannot be nil"
	ErrMsgNilFilter           = "filter function cannot be nil"
	ErrMsgNilLibrary          = "library cannot be nil"
	ErrMsgEmptyTemplateName   = "template name cannot be empty"
	ErrMsgNoExceptionMessage  = "(Could not get exception message)"
	ErrMsgFilterNotFunc       = "value is not a function"
	ErrMsgFilterNoValueParam  = "function must accept the filtered value"
	ErrMsgFilterVariadic      = "variadic functions are not supported"
	ErrMsgFilterReturns       = "function must return a value and optionally an error"
	ErrMsgFilterAutoescape    = "last parameter must be a bool receiving the autoescape flag"
	ErrMsgFilterDefaults      = "more defaults than optional parameters"
)
