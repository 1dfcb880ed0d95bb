package internal

// If-tag error formats
const (
	ErrFmtIfUnused         = "Unused '%s' at end of if expression."
	ErrFmtIfNotExpecting   = "Not expecting '%s' in this position in if tag."
	ErrMsgIfUnexpectedEnd  = "Unexpected end of expression in if tag."
	ErrFmtIfMalformed      = "Malformed template tag at line %d: \"%s\""
	ifOperatorNotIn        = "not in"
	ifOperatorIsNot        = "is not"
	ifKeywordNot           = "not"
	ifKeywordIs            = "is"
	ifKeywordOr            = "or"
	ifKeywordElif          = "elif"
	ifKeywordElse          = "else"
	ifKeywordEndif         = "endif"
)

var ifComparisonOperators = map[string]bool{
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	ifKeywordIs: true, ifOperatorIsNot: true,
}

var ifOperators = map[string]bool{
	ifKeywordOr: true, KeywordAnd: true, ifKeywordNot: true, KeywordIn: true, ifOperatorNotIn: true,
	"==": true, "!=": true, "<": true, ">": true, "<=": true, ">=": true,
	ifKeywordIs: true, ifOperatorIsNot: true,
}

// IfCondition is a compiled {% if %} expression.
type IfCondition interface {
	Eval(ctx *Context) (any, error)
}

type ifOperand struct {
	expr *FilterExpression
}

// Eval resolves the operand. A missing variable is nil; filter and call
// errors are returned.
func (o *ifOperand) Eval(ctx *Context) (any, error) {
	return o.expr.ResolveIgnoreFailures(ctx)
}

type ifNot struct{ operand IfCondition }

func (n *ifNot) Eval(ctx *Context) (any, error) {
	v, err := n.operand.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return !IsTruthy(v), nil
}

type ifBinary struct {
	op          string
	left, right IfCondition
}

func (b *ifBinary) Eval(ctx *Context) (any, error) {
	l, err := b.left.Eval(ctx)
	if err != nil {
		return nil, err
	}
	switch b.op {
	case ifKeywordOr:
		if IsTruthy(l) {
			return l, nil
		}
		return b.right.Eval(ctx)
	case KeywordAnd:
		if !IsTruthy(l) {
			return l, nil
		}
		return b.right.Eval(ctx)
	}
	r, err := b.right.Eval(ctx)
	if err != nil {
		return nil, err
	}
	return compareOperands(b.op, l, r), nil
}

// compareOperands applies a membership, identity or comparison operator.
// Incomparable operands are false.
func compareOperands(op string, l, r any) bool {
	switch op {
	case KeywordIn:
		ok, err := contains(r, l)
		return err == nil && ok
	case ifOperatorNotIn:
		ok, err := contains(r, l)
		return err == nil && !ok
	case ifKeywordIs:
		return identical(l, r)
	case ifOperatorIsNot:
		return !identical(l, r)
	case "==":
		return compareEqual(l, r)
	case "!=":
		return !compareEqual(l, r)
	case "<":
		less, err := compareLess(l, r)
		return err == nil && less
	case ">":
		less, err := compareLess(r, l)
		return err == nil && less
	case "<=":
		less, err := compareLess(r, l)
		return err == nil && !less
	case ">=":
		less, err := compareLess(l, r)
		return err == nil && !less
	}
	return false
}

// ifParser compiles the words of an if tag. Precedence from loosest:
// or, and, not, in / not in, comparisons and is / is not.
type ifParser struct {
	p     *Parser
	words []string
	pos   int
}

func newIfParser(p *Parser, bits []string) *ifParser {
	words := make([]string, 0, len(bits))
	for i := 0; i < len(bits); i++ {
		switch {
		case bits[i] == ifKeywordNot && i+1 < len(bits) && bits[i+1] == KeywordIn:
			words = append(words, ifOperatorNotIn)
			i++
		case bits[i] == ifKeywordIs && i+1 < len(bits) && bits[i+1] == ifKeywordNot:
			words = append(words, ifOperatorIsNot)
			i++
		default:
			words = append(words, bits[i])
		}
	}
	return &ifParser{p: p, words: words}
}

func (ip *ifParser) parse() (IfCondition, error) {
	cond, err := ip.parseOr()
	if err != nil {
		return nil, err
	}
	if ip.pos < len(ip.words) {
		return nil, SyntaxError(ErrFmtIfUnused, ip.words[ip.pos])
	}
	return cond, nil
}

func (ip *ifParser) peek() (string, bool) {
	if ip.pos >= len(ip.words) {
		return "", false
	}
	return ip.words[ip.pos], true
}

func (ip *ifParser) match(ops ...string) (string, bool) {
	w, ok := ip.peek()
	if !ok {
		return "", false
	}
	for _, op := range ops {
		if w == op {
			ip.pos++
			return w, true
		}
	}
	return "", false
}

func (ip *ifParser) parseOr() (IfCondition, error) {
	left, err := ip.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := ip.match(ifKeywordOr); !ok {
			return left, nil
		}
		right, err := ip.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &ifBinary{op: ifKeywordOr, left: left, right: right}
	}
}

func (ip *ifParser) parseAnd() (IfCondition, error) {
	left, err := ip.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := ip.match(KeywordAnd); !ok {
			return left, nil
		}
		right, err := ip.parseNot()
		if err != nil {
			return nil, err
		}
		left = &ifBinary{op: KeywordAnd, left: left, right: right}
	}
}

func (ip *ifParser) parseNot() (IfCondition, error) {
	if _, ok := ip.match(ifKeywordNot); ok {
		operand, err := ip.parseNot()
		if err != nil {
			return nil, err
		}
		return &ifNot{operand: operand}, nil
	}
	return ip.parseMembership()
}

func (ip *ifParser) parseMembership() (IfCondition, error) {
	left, err := ip.parseComparison()
	if err != nil {
		return nil, err
	}
	for {
		op, ok := ip.match(KeywordIn, ifOperatorNotIn)
		if !ok {
			return left, nil
		}
		right, err := ip.parseComparison()
		if err != nil {
			return nil, err
		}
		left = &ifBinary{op: op, left: left, right: right}
	}
}

func (ip *ifParser) parseComparison() (IfCondition, error) {
	left, err := ip.parseOperand()
	if err != nil {
		return nil, err
	}
	for {
		w, ok := ip.peek()
		if !ok || !ifComparisonOperators[w] {
			return left, nil
		}
		ip.pos++
		right, err := ip.parseOperand()
		if err != nil {
			return nil, err
		}
		left = &ifBinary{op: w, left: left, right: right}
	}
}

// parseOperand reads a value. A "not" here negates the membership
// expression that follows it.
func (ip *ifParser) parseOperand() (IfCondition, error) {
	w, ok := ip.peek()
	if !ok {
		return nil, SyntaxError(ErrMsgIfUnexpectedEnd)
	}
	if w == ifKeywordNot {
		ip.pos++
		operand, err := ip.parseMembership()
		if err != nil {
			return nil, err
		}
		return &ifNot{operand: operand}, nil
	}
	if ifOperators[w] {
		return nil, SyntaxError(ErrFmtIfNotExpecting, w)
	}
	ip.pos++
	fe, err := ip.p.CompileFilter(w)
	if err != nil {
		return nil, err
	}
	return &ifOperand{expr: fe}, nil
}

type ifBranch struct {
	condition IfCondition
	nodelist  *NodeList
}

// IfNode renders the first branch whose condition holds.
type IfNode struct {
	BaseNode
	branches []ifBranch
}

func compileIf(p *Parser, tok Token) (Node, error) {
	node := &IfNode{}
	bits := tok.SplitContents()[1:]
	for {
		cond, err := newIfParser(p, bits).parse()
		if err != nil {
			return nil, err
		}
		nodelist, err := p.Parse(ifKeywordElif, ifKeywordElse, ifKeywordEndif)
		if err != nil {
			return nil, err
		}
		node.branches = append(node.branches, ifBranch{condition: cond, nodelist: nodelist})
		next := p.NextToken()
		if next.Command() == ifKeywordElif {
			bits = next.SplitContents()[1:]
			continue
		}
		if next.Contents == ifKeywordElse {
			nodelist, err := p.Parse(ifKeywordEndif)
			if err != nil {
				return nil, err
			}
			node.branches = append(node.branches, ifBranch{nodelist: nodelist})
			next = p.NextToken()
		}
		if next.Contents != ifKeywordEndif {
			return nil, SyntaxError(ErrFmtIfMalformed, next.Line, next.Contents)
		}
		return node, nil
	}
}

// Render implements Node
func (n *IfNode) Render(ctx *Context) (string, error) {
	for _, b := range n.branches {
		if b.condition == nil {
			return b.nodelist.Render(ctx)
		}
		match, err := b.condition.Eval(ctx)
		if err != nil && !IsLookupFailure(err) {
			return "", err
		}
		if IsTruthy(match) {
			return b.nodelist.Render(ctx)
		}
	}
	return "", nil
}

// ChildNodelists implements ParentNode
func (n *IfNode) ChildNodelists() []*NodeList {
	lists := make([]*NodeList, len(n.branches))
	for i, b := range n.branches {
		lists[i] = b.nodelist
	}
	return lists
}

