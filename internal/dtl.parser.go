package internal

import (
	"slices"
	"strings"

	"go.uber.org/zap"
)

// TranslatorComment is a {# Translators: ... #} comment kept for message
// extraction.
type TranslatorComment struct {
	Text string
	Line int
}

type openCommand struct {
	command string
	token   Token
}

// Parser compiles a token stream into a node tree. Tag compilers receive
// the parser and may consume tokens from it, typically by calling Parse
// with the names of their closing tags.
type Parser struct {
	// tokens holds the remaining tokens in reverse order.
	tokens       []Token
	tags         map[string]TagCompiler
	filters      map[string]*Filter
	commandStack []openCommand
	libraries    map[string]*Library
	origin       *Origin
	comments     []TranslatorComment
	logger       *zap.Logger

	// Extra is scratch space for tag compilers that need state across one
	// compilation, such as the block names already seen.
	Extra map[string]any
}

// NewParser creates a parser over tokens. Builtins are always available;
// libraries are the ones {% load %} can name.
func NewParser(tokens []Token, libraries map[string]*Library, builtins []*Library, origin *Origin, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	if libraries == nil {
		libraries = map[string]*Library{}
	}
	reversed := slices.Clone(tokens)
	slices.Reverse(reversed)
	p := &Parser{
		tokens:    reversed,
		tags:      make(map[string]TagCompiler),
		filters:   make(map[string]*Filter),
		libraries: libraries,
		origin:    origin,
		logger:    logger,
		Extra:     make(map[string]any),
	}
	for _, lib := range builtins {
		p.AddLibrary(lib)
	}
	logger.Debug(LogMsgParserCreated, zap.Int(LogFieldTokens, len(tokens)))
	return p
}

// Parse compiles tokens until one of the block commands in parseUntil is
// reached. That token is pushed back so the caller can inspect it.
// Running out of tokens while parseUntil is non-empty is an unclosed tag
// error for the innermost open command.
func (p *Parser) Parse(parseUntil ...string) (*NodeList, error) {
	nodelist := NewNodeList()
	for len(p.tokens) > 0 {
		tok := p.NextToken()
		switch tok.Type {
		case TokenText:
			if err := p.extendNodelist(nodelist, &TextNode{Text: tok.Contents}, tok); err != nil {
				return nil, err
			}
		case TokenVar:
			if tok.Contents == "" {
				return nil, p.ErrorAt(tok, Errorf(ErrEmptyExpression, ErrFmtEmptyVariable, tok.Line))
			}
			fe, err := p.CompileFilter(tok.Contents)
			if err != nil {
				return nil, p.ErrorAt(tok, err)
			}
			if err := p.extendNodelist(nodelist, &VariableNode{Filter: fe}, tok); err != nil {
				return nil, err
			}
		case TokenBlock:
			command := tok.Command()
			if command == "" {
				return nil, p.ErrorAt(tok, Errorf(ErrEmptyExpression, ErrFmtEmptyBlock, tok.Line))
			}
			if slices.Contains(parseUntil, command) {
				p.PrependToken(tok)
				return nodelist, nil
			}
			p.commandStack = append(p.commandStack, openCommand{command: command, token: tok})
			compile, ok := p.tags[command]
			if !ok {
				return nil, p.invalidBlockTag(tok, command, parseUntil)
			}
			node, err := compile(p, tok)
			if err != nil {
				return nil, p.ErrorAt(tok, err)
			}
			if node == nil {
				return nil, p.ErrorAt(tok, SyntaxError(ErrFmtNilTagNode, command, tok.Line))
			}
			if err := p.extendNodelist(nodelist, node, tok); err != nil {
				return nil, err
			}
			p.commandStack = p.commandStack[:len(p.commandStack)-1]
		case TokenComment:
			if tok.Contents != "" {
				p.comments = append(p.comments, TranslatorComment{Text: tok.Contents, Line: tok.Line})
			}
		}
	}
	if len(parseUntil) > 0 {
		return nil, p.unclosedBlockTag(parseUntil)
	}
	return nodelist, nil
}

// SkipPast discards tokens up to and including the block token whose
// contents are exactly endTag.
func (p *Parser) SkipPast(endTag string) error {
	for len(p.tokens) > 0 {
		tok := p.NextToken()
		if tok.Type == TokenBlock && tok.Contents == endTag {
			return nil
		}
	}
	return p.unclosedBlockTag([]string{endTag})
}

func (p *Parser) extendNodelist(nodelist *NodeList, node Node, tok Token) error {
	if first, ok := node.(FirstNode); ok && first.MustBeFirst() && nodelist.ContainsNonText {
		return p.ErrorAt(tok, Errorf(ErrMisplacedTag, ErrFmtMustBeFirst, tok.Command()))
	}
	if src, ok := node.(SourceNode); ok {
		src.SetSource(tok, p.origin)
	}
	nodelist.Append(node)
	return nil
}

// ErrorAt annotates err with tok unless an inner token is already set,
// so the innermost failing construct is reported.
func (p *Parser) ErrorAt(tok Token, err error) error {
	te := asError(err)
	if te.Token == nil {
		te.Token = &tok
	}
	return te
}

func (p *Parser) invalidBlockTag(tok Token, command string, parseUntil []string) error {
	var err *Error
	if len(parseUntil) > 0 {
		err = Errorf(ErrUnknownTag, ErrFmtInvalidBlockExpect, tok.Line, command, joinQuoted(parseUntil, "or"))
	} else {
		err = Errorf(ErrUnknownTag, ErrFmtInvalidBlock, tok.Line, command)
	}
	candidates := append(sortedKeys(p.tags), parseUntil...)
	err.Suggestions = FindSimilarStrings(command, candidates, MaxSuggestions)
	return p.ErrorAt(tok, err)
}

func (p *Parser) unclosedBlockTag(parseUntil []string) error {
	if len(p.commandStack) == 0 {
		return Errorf(ErrUnclosedTag, ErrFmtUnclosedTagNoCmd, strings.Join(parseUntil, ", "))
	}
	open := p.commandStack[len(p.commandStack)-1]
	p.commandStack = p.commandStack[:len(p.commandStack)-1]
	return p.ErrorAt(open.token, Errorf(ErrUnclosedTag, ErrFmtUnclosedTag, open.token.Line, open.command, strings.Join(parseUntil, ", ")))
}

// NextToken removes and returns the next token. Callers check HasTokens
// first.
func (p *Parser) NextToken() Token {
	tok := p.tokens[len(p.tokens)-1]
	p.tokens = p.tokens[:len(p.tokens)-1]
	return tok
}

// HasTokens reports whether any tokens remain
func (p *Parser) HasTokens() bool { return len(p.tokens) > 0 }

// PrependToken pushes tok back to the front of the stream
func (p *Parser) PrependToken(tok Token) { p.tokens = append(p.tokens, tok) }

// DeleteFirstToken drops the next token, usually the closing tag a nested
// Parse stopped at.
func (p *Parser) DeleteFirstToken() {
	if len(p.tokens) > 0 {
		p.tokens = p.tokens[:len(p.tokens)-1]
	}
}

// AddLibrary makes lib's tags and filters available to the rest of the
// compilation.
func (p *Parser) AddLibrary(lib *Library) {
	if lib != nil {
		lib.mergeInto(p.tags, p.filters)
	}
}

// Libraries returns the libraries {% load %} may name
func (p *Parser) Libraries() map[string]*Library { return p.libraries }

// Origin returns the origin of the template being compiled
func (p *Parser) Origin() *Origin { return p.origin }

// TranslatorComments returns the translator comments seen so far
func (p *Parser) TranslatorComments() []TranslatorComment { return p.comments }

// Logger returns the parser's logger
func (p *Parser) Logger() *zap.Logger { return p.logger }

// CompileFilter compiles a filter expression such as "name|lower".
func (p *Parser) CompileFilter(token string) (*FilterExpression, error) {
	return NewFilterExpression(token, p)
}

// FindFilter implements FilterFinder. Unknown names carry suggestions.
func (p *Parser) FindFilter(name string) (*Filter, error) {
	if f, ok := p.filters[name]; ok {
		return f, nil
	}
	err := Errorf(ErrInvalidFilter, ErrFmtInvalidFilter, name)
	err.Suggestions = FindSimilarStrings(name, sortedKeys(p.filters), MaxSuggestions)
	return nil, err
}

// HasTag reports whether a tag compiler is registered under name
func (p *Parser) HasTag(name string) bool {
	_, ok := p.tags[name]
	return ok
}
