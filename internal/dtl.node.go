package internal

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Node is one compiled element of a template.
type Node interface {
	Render(ctx *Context) (string, error)
}

// SourceNode is implemented by nodes that remember the token they were
// compiled from. Embedding BaseNode provides it.
type SourceNode interface {
	SetSource(tok Token, origin *Origin)
	Token() Token
	Origin() *Origin
}

// FirstNode is implemented by tags that must open their template.
type FirstNode interface {
	MustBeFirst() bool
}

// ParentNode is implemented by nodes that own nested node lists.
type ParentNode interface {
	ChildNodelists() []*NodeList
}

// BaseNode records the source token and origin of a node.
type BaseNode struct {
	token  Token
	origin *Origin
}

// SetSource implements SourceNode
func (b *BaseNode) SetSource(tok Token, origin *Origin) {
	b.token = tok
	b.origin = origin
}

// Token implements SourceNode
func (b *BaseNode) Token() Token { return b.token }

// Origin implements SourceNode
func (b *BaseNode) Origin() *Origin { return b.origin }

// NodeList is an ordered sequence of nodes.
type NodeList struct {
	Nodes []Node
	// ContainsNonText is set once any node other than TextNode is appended.
	ContainsNonText bool
}

// NewNodeList creates an empty node list
func NewNodeList() *NodeList { return &NodeList{} }

// Append adds n, tracking whether the list holds anything but text.
func (nl *NodeList) Append(n Node) {
	if _, isText := n.(*TextNode); !isText {
		nl.ContainsNonText = true
	}
	nl.Nodes = append(nl.Nodes, n)
}

// Len returns the number of nodes
func (nl *NodeList) Len() int {
	if nl == nil {
		return 0
	}
	return len(nl.Nodes)
}

// Render concatenates the output of every node.
func (nl *NodeList) Render(ctx *Context) (string, error) {
	if nl == nil {
		return "", nil
	}
	var sb strings.Builder
	for _, n := range nl.Nodes {
		out, err := RenderAnnotated(n, ctx)
		if err != nil {
			return "", err
		}
		sb.WriteString(out)
	}
	return sb.String(), nil
}

// RenderAnnotated renders n. In debug mode a failure is annotated with the
// node's token and source excerpt, unless an inner node already did so.
func RenderAnnotated(n Node, ctx *Context) (string, error) {
	out, err := n.Render(ctx)
	if err == nil {
		return out, nil
	}
	if _, isText := n.(*TextNode); isText {
		return "", err
	}
	src, ok := n.(SourceNode)
	if !ok || !ctx.engine().Debug() {
		return "", err
	}
	tok := src.Token()
	var te *Error
	if !errors.As(err, &te) {
		te = &Error{Cause: err}
		err = te
	}
	if te.Debug != nil {
		return "", err
	}
	if te.Token == nil {
		te.Token = &tok
	}
	if t := ctx.RenderContext().Template(); t != nil {
		te.Debug = t.ExceptionInfo(te.Error(), tok)
	}
	return "", err
}

// FindNodes returns every node of type T in nl, descending into child
// node lists depth first.
func FindNodes[T any](nl *NodeList) []T {
	var found []T
	if nl == nil {
		return found
	}
	for _, n := range nl.Nodes {
		found = append(found, findInNode[T](n)...)
	}
	return found
}

func findInNode[T any](n Node) []T {
	var found []T
	if t, ok := n.(T); ok {
		found = append(found, t)
	}
	if p, ok := n.(ParentNode); ok {
		for _, child := range p.ChildNodelists() {
			found = append(found, FindNodes[T](child)...)
		}
	}
	return found
}

// TextNode is literal template text.
type TextNode struct {
	BaseNode
	Text string
}

// Render implements Node
func (n *TextNode) Render(*Context) (string, error) { return n.Text, nil }

// VariableNode outputs a filter expression.
type VariableNode struct {
	BaseNode
	Filter *FilterExpression
}

// Render implements Node
func (n *VariableNode) Render(ctx *Context) (string, error) {
	out, err := n.Filter.Resolve(ctx)
	if err != nil {
		return "", err
	}
	return RenderValueInContext(out, ctx), nil
}

// RenderValueInContext converts value to output text: local time, then
// localization, then escaping when the context autoescapes.
func RenderValueInContext(value any, ctx *Context) string {
	value = ctx.localizer().ToLocalTime(value, ctx.useTZ())
	if !IsSafe(value) {
		value = ctx.localizer().Localize(value, ctx.useL10n())
	}
	if ctx.Autoescape {
		return string(ConditionalEscape(value))
	}
	return ToString(value)
}

// Origin identifies where a template's source came from.
type Origin struct {
	Name         string
	TemplateName string
	Loader       string
}

// UnknownSource names templates compiled from strings
const UnknownSource = "<unknown source>"

// String returns the origin name
func (o *Origin) String() string {
	if o == nil {
		return UnknownSource
	}
	return o.Name
}

func (o *Origin) templateName() string {
	if o == nil {
		return ""
	}
	return o.TemplateName
}

// SourceLine is one numbered line of template source.
type SourceLine struct {
	Num  int
	Text string
}

// DebugInfo locates a failure inside template source. Start and End are
// character offsets.
type DebugInfo struct {
	Message     string
	SourceLines []SourceLine
	Line        int
	Before      string
	During      string
	After       string
	Top         int
	Bottom      int
	Total       int
	Name        string
	Start       int
	End         int
}

// exceptionInfo builds the excerpt around tok. Lines are 1-based and the
// excerpt spans up to DebugContextLines either side.
func exceptionInfo(source, name, message string, tok Token) *DebugInfo {
	start, end := 0, 0
	if tok.Position != nil {
		start, end = min(tok.Position.Start, len(source)), min(tok.Position.End, len(source))
	}
	info := &DebugInfo{
		Message: message,
		Name:    name,
		Start:   utf8.RuneCountInString(source[:start]),
		End:     utf8.RuneCountInString(source[:end]),
	}
	if info.Message == "" {
		info.Message = ErrMsgNoExceptionMessage
	}
	lines := []SourceLine{}
	upto := 0
	for num, next := range lineBreaks(source) {
		if tok.Position != nil && start >= upto && end <= next {
			info.Line = num
			info.Before = source[upto:start]
			info.During = source[start:end]
			info.After = source[end:min(next, len(source))]
		}
		lines = append(lines, SourceLine{Num: num, Text: source[upto:min(next, len(source))]})
		upto = next
	}
	if tok.Position == nil {
		info.Line = tok.Line
	}
	info.Total = len(lines)
	info.Top = max(1, info.Line-DebugContextLines)
	info.Bottom = min(info.Total, info.Line+1+DebugContextLines)
	if info.Top < info.Bottom {
		info.SourceLines = lines[info.Top:info.Bottom]
	}
	return info
}

// lineBreaks returns 0, the offset after each newline, and len+1.
func lineBreaks(source string) []int {
	breaks := []int{0}
	for i := 0; i < len(source); i++ {
		if source[i] == '\n' {
			breaks = append(breaks, i+1)
		}
	}
	return append(breaks, len(source)+1)
}
