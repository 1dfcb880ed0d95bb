package internal

import (
	"regexp"
	"strings"
)

// For-tag error formats
const (
	ErrFmtForFourWords  = "'for' statements should have at least four words: %s"
	ErrFmtForFormat     = "'for' statements should use the format 'for x in y': %s"
	ErrFmtForInvalidArg = "'for' tag received an invalid argument: %s"
	forKeywordEmpty     = "empty"
	forKeywordEndfor    = "endfor"
)

// Keys of the forloop mapping
const (
	ForloopCounter     = "counter"
	ForloopCounter0    = "counter0"
	ForloopRevcounter  = "revcounter"
	ForloopRevcounter0 = "revcounter0"
	ForloopFirst       = "first"
	ForloopLast        = "last"
	ForloopParentloop  = "parentloop"
)

var loopVarSeparator = regexp.MustCompile(` *, *`)

// ForNode repeats its body for each item of a sequence.
type ForNode struct {
	BaseNode
	LoopVars      []string
	Sequence      *FilterExpression
	Reversed      bool
	NodelistLoop  *NodeList
	NodelistEmpty *NodeList
}

func compileFor(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	if len(bits) < 4 {
		return nil, SyntaxError(ErrFmtForFourWords, tok.Contents)
	}
	reversed := bits[len(bits)-1] == KeywordReversed
	inIndex := len(bits) - 2
	if reversed {
		inIndex = len(bits) - 3
	}
	if bits[inIndex] != KeywordIn {
		return nil, SyntaxError(ErrFmtForFormat, tok.Contents)
	}
	loopVars := loopVarSeparator.Split(strings.Join(bits[1:inIndex], " "), -1)
	for _, v := range loopVars {
		if v == "" || strings.ContainsAny(v, ` "'`+string(FilterSeparator)) {
			return nil, SyntaxError(ErrFmtForInvalidArg, tok.Contents)
		}
	}
	sequence, err := p.CompileFilter(bits[inIndex+1])
	if err != nil {
		return nil, err
	}
	loop, err := p.Parse(forKeywordEmpty, forKeywordEndfor)
	if err != nil {
		return nil, err
	}
	node := &ForNode{LoopVars: loopVars, Sequence: sequence, Reversed: reversed, NodelistLoop: loop}
	if next := p.NextToken(); next.Contents == forKeywordEmpty {
		if node.NodelistEmpty, err = parseBody(p, forKeywordEndfor); err != nil {
			return nil, err
		}
	}
	return node, nil
}

// Render implements Node
func (n *ForNode) Render(ctx *Context) (string, error) {
	parent, ok := ctx.Get(ContextKeyForloop)
	if !ok {
		parent = map[string]any{}
	}
	scope := ctx.Push()
	defer scope.Close()

	values, err := n.Sequence.ResolveIgnoreFailures(ctx)
	if err != nil {
		return "", err
	}
	items, err := Iterate(values)
	if err != nil {
		return "", err
	}
	if len(items) == 0 {
		return n.NodelistEmpty.Render(ctx)
	}
	if n.Reversed {
		reversed := make([]any, len(items))
		for i, item := range items {
			reversed[len(items)-1-i] = item
		}
		items = reversed
	}

	total := len(items)
	loop := map[string]any{ForloopParentloop: parent}
	ctx.Set(ContextKeyForloop, loop)
	unpack := len(n.LoopVars) > 1
	var sb strings.Builder
	for i, item := range items {
		loop[ForloopCounter0] = i
		loop[ForloopCounter] = i + 1
		loop[ForloopRevcounter] = total - i
		loop[ForloopRevcounter0] = total - i - 1
		loop[ForloopFirst] = i == 0
		loop[ForloopLast] = i == total-1

		var frame *Scope
		if unpack {
			parts, err := Iterate(item)
			if err != nil {
				parts = []any{item}
			}
			if len(parts) != len(n.LoopVars) {
				return "", Errorf(ErrInvalidSyntax, ErrFmtUnpackMismatch, len(n.LoopVars), len(parts))
			}
			unpacked := make(map[string]any, len(parts))
			for j, name := range n.LoopVars {
				unpacked[name] = parts[j]
			}
			frame = ctx.Update(unpacked)
		} else {
			ctx.Set(n.LoopVars[0], item)
		}
		for _, node := range n.NodelistLoop.Nodes {
			out, err := RenderAnnotated(node, ctx)
			if err != nil {
				frame.Close()
				return "", err
			}
			sb.WriteString(out)
		}
		frame.Close()
	}
	return sb.String(), nil
}

// ChildNodelists implements ParentNode
func (n *ForNode) ChildNodelists() []*NodeList {
	if n.NodelistEmpty == nil {
		return []*NodeList{n.NodelistLoop}
	}
	return []*NodeList{n.NodelistLoop, n.NodelistEmpty}
}
