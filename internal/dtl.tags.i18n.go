package internal

// Translation tag error formats
const (
	ErrFmtTransAtLeastOne    = "'%s' takes at least one argument"
	ErrFmtTransOptionTwice   = "The '%s' option was specified more than once."
	ErrFmtTransNoOptionValue = "No argument provided to the '%s' tag for the %s option."
	ErrFmtTransBadContext    = "Invalid argument '%s' provided to the '%s' tag for the context option"
	ErrFmtTransUnknownOption = "Unknown argument for '%s' tag: '%s'. The only options available are 'noop', 'context' \"xxx\", and 'as VAR'."
)

// TranslateNode renders a message through the localizer.
type TranslateNode struct {
	BaseNode
	Message        *FilterExpression
	MessageContext *FilterExpression
	Noop           bool
	AsVar          string
}

func compileTranslate(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	if len(bits) < 2 {
		return nil, SyntaxError(ErrFmtTransAtLeastOne, bits[0])
	}
	message, err := p.CompileFilter(bits[1])
	if err != nil {
		return nil, err
	}
	node := &TranslateNode{Message: message}
	seen := map[string]bool{}
	remaining := bits[2:]
	for len(remaining) > 0 {
		option := remaining[0]
		remaining = remaining[1:]
		if seen[option] {
			return nil, SyntaxError(ErrFmtTransOptionTwice, option)
		}
		switch option {
		case KeywordNoop:
			node.Noop = true
		case KeywordContext, KeywordAs:
			if len(remaining) == 0 {
				return nil, SyntaxError(ErrFmtTransNoOptionValue, bits[0], option)
			}
			value := remaining[0]
			remaining = remaining[1:]
			if option == KeywordAs {
				node.AsVar = value
				break
			}
			if value == KeywordAs || value == KeywordNoop {
				return nil, SyntaxError(ErrFmtTransBadContext, value, bits[0])
			}
			if node.MessageContext, err = p.CompileFilter(value); err != nil {
				return nil, err
			}
		default:
			return nil, SyntaxError(ErrFmtTransUnknownOption, bits[0], option)
		}
		seen[option] = true
	}
	return node, nil
}

// Render implements Node
func (n *TranslateNode) Render(ctx *Context) (string, error) {
	messageContext := ""
	if n.MessageContext != nil {
		mc, err := n.MessageContext.Resolve(ctx)
		if err != nil {
			return "", err
		}
		messageContext = ToString(mc)
	}
	mode := resolveDefault
	if ctx.engine().StrictVariables() {
		mode = resolveStrict
	}
	output, err := n.Message.resolveVar(ctx, mode, !n.Noop, messageContext)
	if err != nil {
		return "", err
	}
	value := RenderValueInContext(output, ctx)
	if n.AsVar == "" {
		return value, nil
	}
	if ctx.Autoescape || IsSafe(output) {
		ctx.Set(n.AsVar, SafeString(value))
	} else {
		ctx.Set(n.AsVar, value)
	}
	return "", nil
}

// MessageID returns the literal message and its literal context, when
// both are constants. Only constant messages can be extracted.
func (n *TranslateNode) MessageID() (id, messageContext string, ok bool) {
	if n.Message.IsVar() {
		return "", "", false
	}
	lit, isLit := n.Message.Var.Literal()
	if !isLit {
		return "", "", false
	}
	if n.MessageContext != nil {
		mc, isLit := n.MessageContext.Var.Literal()
		if n.MessageContext.IsVar() || !isLit {
			return "", "", false
		}
		messageContext = ToString(mc)
	}
	return ToString(lit), messageContext, true
}
