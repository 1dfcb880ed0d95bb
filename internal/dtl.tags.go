package internal

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Tag error formats
const (
	ErrFmtTagOneArgument      = "'%s' tag requires exactly one argument."
	ErrFmtTagOnOff            = "'%s' argument should be 'on' or 'off'"
	ErrFmtTagTakesOneArgument = "'%s' statement takes one argument"
	ErrFmtTagAtLeastOne       = "'%s' statement requires at least one argument"
	ErrFmtCycleTwoArgs        = "'cycle' tag requires at least two arguments"
	ErrFmtCycleNoNamed        = "No named cycles in template. '%s' is not defined"
	ErrFmtCycleUnknown        = "Named cycle '%s' does not exist"
	ErrFmtCycleSilentOnly     = "Only 'silent' flag is allowed after cycle's name, not '%s'."
	ErrFmtResetcycleNone      = "No cycles in template."
	ErrFmtLoadUnknownLibrary  = "'%s' is not a registered tag library. Must be one of:\n%s"
	ErrFmtLoadUnknownName     = "'%s' is not a valid tag or filter in tag library '%s'"
	ErrFmtTemplatetagInvalid  = "Invalid templatetag argument: '%s'. Must be one of: %s"
	ErrFmtWithNoAssignment    = "'%s' expected at least one variable assignment"
	ErrFmtWithInvalidToken    = "'%s' received an invalid token: '%s'"
	ErrFmtFilterTagForbidden  = "Filter '%s' is not permitted.  Use the autoescape tag instead."
)

const (
	extraCycleNodes     = "cycle_nodes"
	extraLastCycleNode  = "last_cycle_node"
	filterTagVariable   = "var"
	csrfInputFormat     = `<input type="hidden" name="csrfmiddlewaretoken" value="%s">`
	shortDateFormatName = "SHORT_DATE_FORMAT"
)

var (
	builtinsOnce sync.Once
	builtinLibs  []*Library
)

// DefaultBuiltins returns the default tag and filter libraries, shared by
// every engine.
func DefaultBuiltins() []*Library {
	builtinsOnce.Do(func() {
		builtinLibs = []*Library{newDefaultTags(), newDefaultFilters()}
	})
	return builtinLibs
}

func newDefaultTags() *Library {
	lib := NewLibrary(nil)
	lib.MustRegisterTag("autoescape", compileAutoescape)
	lib.MustRegisterTag("comment", compileComment)
	lib.MustRegisterTag("csrf_token", compileCSRFToken)
	lib.MustRegisterTag("cycle", compileCycle)
	lib.MustRegisterTag("resetcycle", compileResetCycle)
	lib.MustRegisterTag("filter", compileFilterTag)
	lib.MustRegisterTag("firstof", compileFirstOf)
	lib.MustRegisterTag("for", compileFor)
	lib.MustRegisterTag("if", compileIf)
	lib.MustRegisterTag("load", compileLoad)
	lib.MustRegisterTag("now", compileNow)
	lib.MustRegisterTag("spaceless", compileSpaceless)
	lib.MustRegisterTag("templatetag", compileTemplateTag)
	lib.MustRegisterTag(KeywordVerbatim, compileVerbatim)
	lib.MustRegisterTag("with", compileWith)
	lib.MustRegisterTag("include", compileInclude)
	lib.MustRegisterTag("extends", compileExtends)
	lib.MustRegisterTag("block", compileBlock)
	lib.MustRegisterTag("trans", compileTranslate)
	lib.MustRegisterTag("translate", compileTranslate)
	lib.MustRegisterTag("localize", compileLocalize)
	return lib
}

// parseBody parses up to endTag and drops the closing token.
func parseBody(p *Parser, endTag string) (*NodeList, error) {
	nodelist, err := p.Parse(endTag)
	if err != nil {
		return nil, err
	}
	p.DeleteFirstToken()
	return nodelist, nil
}

func parseOnOff(tok Token, bits []string) (bool, error) {
	if len(bits) != 2 {
		return false, SyntaxError(ErrFmtTagOneArgument, bits[0])
	}
	switch bits[1] {
	case KeywordOn:
		return true, nil
	case KeywordOff:
		return false, nil
	}
	return false, SyntaxError(ErrFmtTagOnOff, tok.Command())
}

// AutoescapeNode switches escaping for its body.
type AutoescapeNode struct {
	BaseNode
	Setting  bool
	Nodelist *NodeList
}

func compileAutoescape(p *Parser, tok Token) (Node, error) {
	setting, err := parseOnOff(tok, strings.Fields(tok.Contents))
	if err != nil {
		return nil, err
	}
	nodelist, err := parseBody(p, "endautoescape")
	if err != nil {
		return nil, err
	}
	return &AutoescapeNode{Setting: setting, Nodelist: nodelist}, nil
}

// Render implements Node
func (n *AutoescapeNode) Render(ctx *Context) (string, error) {
	old := ctx.Autoescape
	ctx.Autoescape = n.Setting
	defer func() { ctx.Autoescape = old }()
	return n.Nodelist.Render(ctx)
}

// ChildNodelists implements ParentNode
func (n *AutoescapeNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

// CommentNode renders nothing.
type CommentNode struct{ BaseNode }

func compileComment(p *Parser, _ Token) (Node, error) {
	if err := p.SkipPast("endcomment"); err != nil {
		return nil, err
	}
	return &CommentNode{}, nil
}

// Render implements Node
func (n *CommentNode) Render(*Context) (string, error) { return "", nil }

// CSRFTokenNode renders the hidden CSRF form input.
type CSRFTokenNode struct{ BaseNode }

func compileCSRFToken(*Parser, Token) (Node, error) { return &CSRFTokenNode{}, nil }

// Render implements Node
func (n *CSRFTokenNode) Render(ctx *Context) (string, error) {
	token, ok := ctx.Get(ContextKeyCSRFToken)
	if !ok || token == nil {
		return "", nil
	}
	if s := ToString(token); s != CSRFTokenNotProvided && s != "" {
		return fmt.Sprintf(csrfInputFormat, Escape(s)), nil
	}
	return "", nil
}

// CycleNode outputs its values in turn each time it renders.
type CycleNode struct {
	BaseNode
	Values       []*FilterExpression
	VariableName string
	Silent       bool
}

func compileCycle(p *Parser, tok Token) (Node, error) {
	args := tok.SplitContents()
	if len(args) < 2 {
		return nil, SyntaxError(ErrFmtCycleTwoArgs)
	}
	named, _ := p.Extra[extraCycleNodes].(map[string]*CycleNode)
	if len(args) == 2 {
		name := args[1]
		if named == nil {
			return nil, SyntaxError(ErrFmtCycleNoNamed, name)
		}
		node, ok := named[name]
		if !ok {
			return nil, SyntaxError(ErrFmtCycleUnknown, name)
		}
		return node, nil
	}

	asForm, silent := false, false
	if len(args) > 4 {
		switch {
		case args[len(args)-3] == KeywordAs:
			if args[len(args)-1] != KeywordSilent {
				return nil, SyntaxError(ErrFmtCycleSilentOnly, args[len(args)-1])
			}
			asForm, silent = true, true
			args = args[:len(args)-1]
		case args[len(args)-2] == KeywordAs:
			asForm = true
		}
	}

	node := &CycleNode{Silent: silent}
	values := args[1:]
	if asForm {
		node.VariableName = args[len(args)-1]
		values = args[1 : len(args)-2]
	}
	for _, v := range values {
		fe, err := p.CompileFilter(v)
		if err != nil {
			return nil, err
		}
		node.Values = append(node.Values, fe)
	}
	if asForm {
		if named == nil {
			named = map[string]*CycleNode{}
			p.Extra[extraCycleNodes] = named
		}
		named[node.VariableName] = node
	}
	p.Extra[extraLastCycleNode] = node
	return node, nil
}

// Render implements Node
func (n *CycleNode) Render(ctx *Context) (string, error) {
	rc := ctx.RenderContext()
	pos, _ := rc.Get(n)
	i, _ := pos.(int)
	rc.Set(n, i+1)
	value, err := n.Values[i%len(n.Values)].Resolve(ctx)
	if err != nil {
		return "", err
	}
	if n.VariableName != "" {
		ctx.SetUpward(n.VariableName, value)
	}
	if n.Silent {
		return "", nil
	}
	return RenderValueInContext(value, ctx), nil
}

// Reset restarts the cycle for the current render.
func (n *CycleNode) Reset(ctx *Context) {
	ctx.RenderContext().Set(n, 0)
}

// ResetCycleNode restarts a cycle.
type ResetCycleNode struct {
	BaseNode
	Cycle *CycleNode
}

func compileResetCycle(p *Parser, tok Token) (Node, error) {
	args := tok.SplitContents()
	switch len(args) {
	case 1:
		last, ok := p.Extra[extraLastCycleNode].(*CycleNode)
		if !ok {
			return nil, SyntaxError(ErrFmtResetcycleNone)
		}
		return &ResetCycleNode{Cycle: last}, nil
	case 2:
		named, _ := p.Extra[extraCycleNodes].(map[string]*CycleNode)
		node, ok := named[args[1]]
		if !ok {
			return nil, SyntaxError(ErrFmtCycleUnknown, args[1])
		}
		return &ResetCycleNode{Cycle: node}, nil
	}
	return nil, SyntaxError(ErrFmtTagOneArgument, args[0])
}

// Render implements Node
func (n *ResetCycleNode) Render(ctx *Context) (string, error) {
	n.Cycle.Reset(ctx)
	return "", nil
}

// FilterTagNode applies filters to its rendered body.
type FilterTagNode struct {
	BaseNode
	Filter   *FilterExpression
	Nodelist *NodeList
}

func compileFilterTag(p *Parser, tok Token) (Node, error) {
	parts := strings.SplitN(tok.Contents, " ", 2)
	if len(parts) != 2 {
		return nil, SyntaxError(ErrFmtTagOneArgument, parts[0])
	}
	fe, err := p.CompileFilter(filterTagVariable + string(FilterSeparator) + strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, err
	}
	for _, name := range fe.FilterNames() {
		if name == "escape" || name == "safe" {
			return nil, SyntaxError(ErrFmtFilterTagForbidden, name)
		}
	}
	nodelist, err := parseBody(p, "endfilter")
	if err != nil {
		return nil, err
	}
	return &FilterTagNode{Filter: fe, Nodelist: nodelist}, nil
}

// Render implements Node
func (n *FilterTagNode) Render(ctx *Context) (string, error) {
	output, err := n.Nodelist.Render(ctx)
	if err != nil {
		return "", err
	}
	scope := ctx.Push(map[string]any{filterTagVariable: output})
	defer scope.Close()
	value, err := n.Filter.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return ToString(value), nil
}

// ChildNodelists implements ParentNode
func (n *FilterTagNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

// FirstOfNode outputs the first truthy value.
type FirstOfNode struct {
	BaseNode
	Vars  []*FilterExpression
	AsVar string
}

func compileFirstOf(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()[1:]
	asVar := ""
	if len(bits) >= 2 && bits[len(bits)-2] == KeywordAs {
		asVar = bits[len(bits)-1]
		bits = bits[:len(bits)-2]
	}
	if len(bits) < 1 {
		return nil, SyntaxError(ErrFmtTagAtLeastOne, "firstof")
	}
	node := &FirstOfNode{AsVar: asVar}
	for _, bit := range bits {
		fe, err := p.CompileFilter(bit)
		if err != nil {
			return nil, err
		}
		node.Vars = append(node.Vars, fe)
	}
	return node, nil
}

// Render implements Node
func (n *FirstOfNode) Render(ctx *Context) (string, error) {
	first := ""
	for _, fe := range n.Vars {
		value, err := fe.ResolveIgnoreFailures(ctx)
		if err != nil {
			return "", err
		}
		if IsTruthy(value) {
			first = RenderValueInContext(value, ctx)
			break
		}
	}
	if n.AsVar != "" {
		// Escaped output is stored safe so it is not escaped twice.
		if ctx.Autoescape {
			ctx.Set(n.AsVar, SafeString(first))
		} else {
			ctx.Set(n.AsVar, first)
		}
		return "", nil
	}
	return first, nil
}

// LoadNode marks where libraries were loaded. Loading happens at compile
// time, so it renders nothing.
type LoadNode struct{ BaseNode }

func compileLoad(p *Parser, tok Token) (Node, error) {
	bits := strings.Fields(tok.Contents)
	if len(bits) >= 4 && bits[len(bits)-2] == KeywordFrom {
		name := bits[len(bits)-1]
		lib, err := findLibrary(p, name)
		if err != nil {
			return nil, err
		}
		subset := NewLibrary(p.Logger())
		for _, item := range bits[1 : len(bits)-2] {
			found := false
			if compile, ok := lib.LookupTag(item); ok {
				subset.MustRegisterTag(item, compile)
				found = true
			}
			if f, ok := lib.LookupFilter(item); ok {
				subset.addFilter(f)
				found = true
			}
			if !found {
				return nil, SyntaxError(ErrFmtLoadUnknownName, item, name)
			}
		}
		p.AddLibrary(subset)
		return &LoadNode{}, nil
	}
	for _, name := range bits[1:] {
		lib, err := findLibrary(p, name)
		if err != nil {
			return nil, err
		}
		p.AddLibrary(lib)
	}
	return &LoadNode{}, nil
}

func findLibrary(p *Parser, name string) (*Library, error) {
	lib, ok := p.Libraries()[name]
	if !ok {
		err := SyntaxError(ErrFmtLoadUnknownLibrary, name, strings.Join(sortedKeys(p.Libraries()), "\n"))
		err.Suggestions = FindSimilarStrings(name, sortedKeys(p.Libraries()), MaxSuggestions)
		return nil, err
	}
	return lib, nil
}

// Render implements Node
func (n *LoadNode) Render(*Context) (string, error) { return "", nil }

// NowNode outputs the current time.
type NowNode struct {
	BaseNode
	Format string
	AsVar  string
}

func compileNow(_ *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	asVar := ""
	if len(bits) == 4 && bits[2] == KeywordAs {
		asVar = bits[3]
		bits = bits[:2]
	}
	if len(bits) != 2 {
		return nil, SyntaxError(ErrFmtTagTakesOneArgument, "now")
	}
	format, ok := unescapeStringLiteral(bits[1])
	if !ok {
		format = bits[1]
	}
	return &NowNode{Format: format, AsVar: asVar}, nil
}

// Render implements Node
func (n *NowNode) Render(ctx *Context) (string, error) {
	now, _ := ctx.localizer().ToLocalTime(time.Now(), ctx.useTZ()).(time.Time)
	formatted := DateFormat(now, namedDateFormat(n.Format))
	if n.AsVar != "" {
		ctx.Set(n.AsVar, formatted)
		return "", nil
	}
	return formatted, nil
}

// namedDateFormat expands the setting-style names accepted wherever a
// date format is.
func namedDateFormat(format string) string {
	switch format {
	case "", "DATE_FORMAT":
		return DefaultDateFormat
	case "TIME_FORMAT":
		return DefaultTimeFormat
	case "DATETIME_FORMAT":
		return DefaultDatetimeFormat
	case shortDateFormatName:
		return "m/d/Y"
	case "SHORT_DATETIME_FORMAT":
		return "m/d/Y P"
	}
	return format
}

var spacesBetweenTags = regexp.MustCompile(`>\s+<`)

// SpacelessNode removes whitespace between HTML tags in its body.
type SpacelessNode struct {
	BaseNode
	Nodelist *NodeList
}

func compileSpaceless(p *Parser, _ Token) (Node, error) {
	nodelist, err := parseBody(p, "endspaceless")
	if err != nil {
		return nil, err
	}
	return &SpacelessNode{Nodelist: nodelist}, nil
}

// Render implements Node
func (n *SpacelessNode) Render(ctx *Context) (string, error) {
	out, err := n.Nodelist.Render(ctx)
	if err != nil {
		return "", err
	}
	return spacesBetweenTags.ReplaceAllString(strings.TrimSpace(out), "><"), nil
}

// ChildNodelists implements ParentNode
func (n *SpacelessNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

var templateTagMapping = map[string]string{
	"openblock":     BlockTagStart,
	"closeblock":    BlockTagEnd,
	"openvariable":  VariableTagStart,
	"closevariable": VariableTagEnd,
	"openbrace":     SingleBraceStart,
	"closebrace":    SingleBraceEnd,
	"opencomment":   CommentTagStart,
	"closecomment":  CommentTagEnd,
}

// TemplateTagNode outputs one of the syntax delimiters.
type TemplateTagNode struct {
	BaseNode
	Text string
}

func compileTemplateTag(_ *Parser, tok Token) (Node, error) {
	bits := strings.Fields(tok.Contents)
	if len(bits) != 2 {
		return nil, SyntaxError(ErrFmtTagTakesOneArgument, "templatetag")
	}
	text, ok := templateTagMapping[bits[1]]
	if !ok {
		names := sortedKeys(templateTagMapping)
		return nil, SyntaxError(ErrFmtTemplatetagInvalid, bits[1], strings.Join(names, ", "))
	}
	return &TemplateTagNode{Text: text}, nil
}

// Render implements Node
func (n *TemplateTagNode) Render(*Context) (string, error) { return n.Text, nil }

// VerbatimNode outputs its body without interpreting template syntax.
type VerbatimNode struct {
	BaseNode
	Content string
}

func compileVerbatim(p *Parser, _ Token) (Node, error) {
	nodelist, err := parseBody(p, KeywordEndVerbatim)
	if err != nil {
		return nil, err
	}
	var sb strings.Builder
	for _, n := range nodelist.Nodes {
		if text, ok := n.(*TextNode); ok {
			sb.WriteString(text.Text)
		}
	}
	return &VerbatimNode{Content: sb.String()}, nil
}

// Render implements Node
func (n *VerbatimNode) Render(*Context) (string, error) { return n.Content, nil }

// WithNode binds values for the duration of its body.
type WithNode struct {
	BaseNode
	Extra    map[string]*FilterExpression
	Nodelist *NodeList
}

func compileWith(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	extra, remaining, err := TokenKwargs(bits[1:], p, true)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return nil, SyntaxError(ErrFmtWithNoAssignment, bits[0])
	}
	if len(remaining) > 0 {
		return nil, SyntaxError(ErrFmtWithInvalidToken, bits[0], remaining[0])
	}
	nodelist, err := parseBody(p, "endwith")
	if err != nil {
		return nil, err
	}
	return &WithNode{Extra: extra, Nodelist: nodelist}, nil
}

// Render implements Node
func (n *WithNode) Render(ctx *Context) (string, error) {
	values, err := resolveKwargs(ctx, n.Extra)
	if err != nil {
		return "", err
	}
	scope := ctx.Push(values)
	defer scope.Close()
	return n.Nodelist.Render(ctx)
}

// ChildNodelists implements ParentNode
func (n *WithNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

func resolveKwargs(ctx *Context, kwargs map[string]*FilterExpression) (map[string]any, error) {
	values := make(map[string]any, len(kwargs))
	for _, key := range sortedKeys(kwargs) {
		v, err := kwargs[key].Resolve(ctx)
		if err != nil {
			return nil, err
		}
		values[key] = v
	}
	return values, nil
}

// LocalizeNode switches localization of output for its body.
type LocalizeNode struct {
	BaseNode
	UseL10n  bool
	Nodelist *NodeList
}

func compileLocalize(p *Parser, tok Token) (Node, error) {
	bits := strings.Fields(tok.Contents)
	use := true
	if len(bits) > 2 {
		return nil, SyntaxError(ErrFmtTagTakesOneArgument, bits[0])
	}
	if len(bits) == 2 {
		var err error
		if use, err = parseOnOff(tok, bits); err != nil {
			return nil, err
		}
	}
	nodelist, err := parseBody(p, "endlocalize")
	if err != nil {
		return nil, err
	}
	return &LocalizeNode{UseL10n: use, Nodelist: nodelist}, nil
}

// Render implements Node
func (n *LocalizeNode) Render(ctx *Context) (string, error) {
	old := ctx.UseL10n
	use := n.UseL10n
	ctx.UseL10n = &use
	defer func() { ctx.UseL10n = old }()
	return n.Nodelist.Render(ctx)
}

// ChildNodelists implements ParentNode
func (n *LocalizeNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }
