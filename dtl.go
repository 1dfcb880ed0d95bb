// Package dtl is a Django-style template engine.
//
// Templates mix literal text with three kinds of markup:
//
//	{{ user.name|default:"Guest" }}   variables with filters
//	{% if items %}...{% endif %}      block tags
//	{# a comment #}                   comments
//
// # Basic Usage
//
// Create an engine, compile a template and render it:
//
//	engine := dtl.MustNew()
//	tmpl, err := engine.FromString("Hello, {{ name }}!")
//	if err != nil {
//	    return err
//	}
//	out, err := tmpl.Execute(map[string]any{"name": "Alice"})
//	// out: "Hello, Alice!"
//
// Output is HTML-escaped unless a value is marked safe or autoescaping is
// turned off with {% autoescape off %} or WithAutoescape(false).
//
// # Loading Templates
//
// Named templates come from a Loader or are registered on the engine:
//
//	engine := dtl.MustNew(dtl.WithLoader(dtl.NewFSLoader(os.DirFS("templates"))))
//	out, err := engine.RenderToString("index.html", data)
//
// {% include %}, {% extends %} and {% block %} resolve names through the
// same loaders.
//
// # Extending
//
// Custom tags and filters live in a Library. Register it as a builtin or
// make it loadable with {% load %}:
//
//	lib := dtl.NewLibrary(nil)
//	lib.MustRegisterFilter("shout", strings.ToUpper)
//	lib.SimpleTag("greet", dtl.TagParams{Params: []string{"name"}},
//	    func(ctx *dtl.Context, args dtl.TagArgs) (any, error) {
//	        return "Hello, " + args.String("name"), nil
//	    })
//	engine := dtl.MustNew(dtl.WithLibrary("greetings", lib))
//
// # Error Handling
//
// Errors returned by Engine and Template are *cuserr.CustomError values
// carrying line, template, token and kind metadata. The internal kinds
// remain reachable with errors.Is:
//
//	if errors.Is(err, dtl.ErrUnclosedTag) { ... }
package dtl

import "github.com/itsatony/go-dtl/internal"

// Extension surface. These are the types tag compilers, filters and
// libraries work with.
type (
	Parser           = internal.Parser
	Token            = internal.Token
	TokenType        = internal.TokenType
	Node             = internal.Node
	NodeList         = internal.NodeList
	BaseNode         = internal.BaseNode
	TextNode         = internal.TextNode
	VariableNode     = internal.VariableNode
	Context          = internal.Context
	RenderContext    = internal.RenderContext
	Scope            = internal.Scope
	Library          = internal.Library
	TagCompiler      = internal.TagCompiler
	TagParams        = internal.TagParams
	TagArgs          = internal.TagArgs
	SimpleTagFunc    = internal.SimpleTagFunc
	InclusionTagFunc = internal.InclusionTagFunc
	FilterOption     = internal.FilterOption
	Variable         = internal.Variable
	FilterExpression = internal.FilterExpression
	SafeString       = internal.SafeString
	Origin           = internal.Origin
	DebugInfo        = internal.DebugInfo
	Loader           = internal.Loader
	MapLoader        = internal.MapLoader
	FSLoader         = internal.FSLoader
	ChainLoader      = internal.ChainLoader
	Localizer        = internal.Localizer
	Catalog          = internal.Catalog
	ContextProcessor = internal.ContextProcessor
	Message          = internal.Message
)

// Token types
const (
	TokenText     = internal.TokenText
	TokenVar      = internal.TokenVar
	TokenBlock    = internal.TokenBlock
	TokenComment  = internal.TokenComment
	UnknownSource = internal.UnknownSource
)

// NewLibrary creates an empty tag and filter library.
var NewLibrary = internal.NewLibrary

// NewContext creates a render context holding values.
var NewContext = internal.NewContext

// NewRequestContext creates a context that runs context processors for
// request when bound to a template.
var NewRequestContext = internal.NewRequestContext

// Loaders
var (
	NewMapLoader = internal.NewMapLoader
	NewFSLoader  = internal.NewFSLoader
)

// Filter registration options
var (
	FilterIsSafe           = internal.FilterIsSafe
	FilterNeedsAutoescape  = internal.FilterNeedsAutoescape
	FilterExpectsLocaltime = internal.FilterExpectsLocaltime
	FilterDefaults         = internal.FilterDefaults
)

// Escaping helpers
var (
	Escape            = internal.Escape
	ConditionalEscape = internal.ConditionalEscape
	MarkSafe          = internal.MarkSafe
	IsSafe            = internal.IsSafe
)

// Helpers for custom tag compilers
var (
	ParseBits            = internal.ParseBits
	TokenKwargs          = internal.TokenKwargs
	RenderValueInContext = internal.RenderValueInContext
	NewLocalizer         = internal.NewLocalizer
	NewCatalog           = internal.NewCatalog
	LoadCatalog          = internal.LoadCatalog
)
