package internal

import (
	"fmt"
	"path"
	"strings"
)

// Inheritance and inclusion error formats
const (
	ErrFmtBlockOneArgument    = "'%s' tag takes only one argument"
	ErrFmtBlockDuplicate      = "'%s' tag with name '%s' appears more than once"
	ErrFmtExtendsOneArgument  = "'%s' takes one argument"
	ErrFmtExtendsTwice        = "'%s' cannot appear more than once in the same template"
	ErrFmtExtendsInvalidName  = "Invalid template name in 'extends' tag: %s."
	ErrFmtIncludeNoArgument   = "%q tag takes at least one argument: the name of the template to be included."
	ErrFmtIncludeOptionTwice  = "The %q option was specified more than once."
	ErrFmtIncludeWithNoKwargs = "\"with\" in %q tag needs at least one keyword argument."
	ErrFmtIncludeUnknownArg   = "Unknown argument for %q tag: %q."
	ErrFmtRelativeOutside     = "The relative path '%s' points outside the file hierarchy that template '%s' is in."
	ErrFmtRelativeSelf        = "The relative path '%s' was translated to template name '%s', the same template in which the tag appears."
	ErrFmtBlockSuperNoContext = "'%s' object has no attribute 'context'. Did you use {{ block.super }} in a base template?"
)

const (
	tagEndblock   = "endblock"
	extraBlocks   = "loaded_blocks"
	relativeDot   = "./"
	relativeDots  = "../"
	blockNodeName = "BlockNode"
)

// blockContextKey keys the BlockContext in the render context.
type blockContextKey struct{}

// BlockContext holds, per block name, the overriding blocks of an
// inheritance chain. The last entry is the most derived one.
type BlockContext struct {
	blocks map[string][]*BlockNode
}

func newBlockContext() *BlockContext {
	return &BlockContext{blocks: map[string][]*BlockNode{}}
}

// addBlocks registers blocks of a less derived template beneath the ones
// already known.
func (bc *BlockContext) addBlocks(blocks map[string]*BlockNode) {
	for name, b := range blocks {
		bc.blocks[name] = append([]*BlockNode{b}, bc.blocks[name]...)
	}
}

func (bc *BlockContext) pop(name string) *BlockNode {
	list := bc.blocks[name]
	if len(list) == 0 {
		return nil
	}
	b := list[len(list)-1]
	bc.blocks[name] = list[:len(list)-1]
	return b
}

func (bc *BlockContext) push(name string, b *BlockNode) {
	bc.blocks[name] = append(bc.blocks[name], b)
}

// Block returns the most derived block registered under name, or nil.
func (bc *BlockContext) Block(name string) *BlockNode {
	list := bc.blocks[name]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

func blockContextOf(ctx *Context) *BlockContext {
	v, ok := ctx.RenderContext().Get(blockContextKey{})
	if !ok {
		return nil
	}
	bc, _ := v.(*BlockContext)
	return bc
}

// BlockNode is a named region a child template may override.
type BlockNode struct {
	BaseNode
	Name     string
	Nodelist *NodeList
}

func compileBlock(p *Parser, tok Token) (Node, error) {
	bits := strings.Fields(tok.Contents)
	if len(bits) != 2 {
		return nil, SyntaxError(ErrFmtBlockOneArgument, bits[0])
	}
	name := bits[1]
	loaded, _ := p.Extra[extraBlocks].([]string)
	for _, existing := range loaded {
		if existing == name {
			return nil, SyntaxError(ErrFmtBlockDuplicate, bits[0], name)
		}
	}
	p.Extra[extraBlocks] = append(loaded, name)

	nodelist, err := p.Parse(tagEndblock)
	if err != nil {
		return nil, err
	}
	end := p.NextToken()
	acceptable := []string{tagEndblock, tagEndblock + " " + name}
	if end.Contents != acceptable[0] && end.Contents != acceptable[1] {
		return nil, p.invalidBlockTag(end, tagEndblock, acceptable)
	}
	return &BlockNode{Name: name, Nodelist: nodelist}, nil
}

// Render implements Node. Inside an inheritance chain the most derived
// override renders, with block.super reaching the next one up.
func (n *BlockNode) Render(ctx *Context) (string, error) {
	scope := ctx.Push()
	defer scope.Close()

	bc := blockContextOf(ctx)
	if bc == nil {
		ctx.Set(ContextKeyBlock, &BlockRef{node: n})
		return n.Nodelist.Render(ctx)
	}
	popped := bc.pop(n.Name)
	block := popped
	if block == nil {
		block = n
	}
	ref := &BlockRef{node: block, ctx: ctx}
	ctx.Set(ContextKeyBlock, ref)
	out, err := block.Nodelist.Render(ctx)
	if popped != nil {
		bc.push(n.Name, popped)
	}
	return out, err
}

// ChildNodelists implements ParentNode
func (n *BlockNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

// BlockRef is the value of {{ block }} while a block renders.
type BlockRef struct {
	node *BlockNode
	ctx  *Context
}

// Name returns the block name
func (b *BlockRef) Name() string { return b.node.Name }

// Super renders the overridden parent block, or "" at the top of the chain.
func (b *BlockRef) Super() (SafeString, error) {
	if b.ctx == nil {
		return "", SyntaxError(ErrFmtBlockSuperNoContext, blockNodeName)
	}
	bc := blockContextOf(b.ctx)
	if bc == nil || bc.Block(b.node.Name) == nil {
		return "", nil
	}
	out, err := b.node.Render(b.ctx)
	if err != nil {
		return "", err
	}
	return SafeString(out), nil
}

// ExtendsNode renders its parent template with its own blocks overriding
// the parent's.
type ExtendsNode struct {
	BaseNode
	ParentName *FilterExpression
	Nodelist   *NodeList
	blocks     map[string]*BlockNode
}

// MustBeFirst implements FirstNode
func (n *ExtendsNode) MustBeFirst() bool { return true }

// ChildNodelists implements ParentNode
func (n *ExtendsNode) ChildNodelists() []*NodeList { return []*NodeList{n.Nodelist} }

func compileExtends(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	if len(bits) != 2 {
		return nil, SyntaxError(ErrFmtExtendsOneArgument, bits[0])
	}
	name, err := relativeTemplateName(p.Origin().templateName(), bits[1])
	if err != nil {
		return nil, err
	}
	parent, err := p.CompileFilter(name)
	if err != nil {
		return nil, err
	}
	nodelist, err := p.Parse()
	if err != nil {
		return nil, err
	}
	if len(FindNodes[*ExtendsNode](nodelist)) > 0 {
		return nil, SyntaxError(ErrFmtExtendsTwice, bits[0])
	}
	return &ExtendsNode{ParentName: parent, Nodelist: nodelist, blocks: blockMap(nodelist)}, nil
}

func blockMap(nodelist *NodeList) map[string]*BlockNode {
	blocks := map[string]*BlockNode{}
	for _, b := range FindNodes[*BlockNode](nodelist) {
		blocks[b.Name] = b
	}
	return blocks
}

func (n *ExtendsNode) parent(ctx *Context) (*Template, error) {
	v, err := n.ParentName.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	if t, ok := asTemplate(v); ok {
		return t, nil
	}
	if !IsTruthy(v) {
		return nil, SyntaxError(ErrFmtExtendsInvalidName, fmt.Sprintf("%q", ToString(v)))
	}
	return ctx.engine().GetTemplate(ToString(v))
}

// Render implements Node
func (n *ExtendsNode) Render(ctx *Context) (string, error) {
	parent, err := n.parent(ctx)
	if err != nil {
		return "", err
	}
	rc := ctx.RenderContext()
	bc := blockContextOf(ctx)
	if bc == nil {
		bc = newBlockContext()
		rc.Set(blockContextKey{}, bc)
	}
	bc.addBlocks(n.blocks)
	// The root of the chain contributes its blocks as the final fallbacks.
	for _, node := range parent.Nodelist.Nodes {
		if _, ok := node.(*TextNode); ok {
			continue
		}
		if _, ok := node.(*ExtendsNode); !ok {
			bc.addBlocks(blockMap(parent.Nodelist))
		}
		break
	}
	return parent.render(ctx, false)
}

// relativeTemplateName resolves a quoted ./ or ../ name against the name
// of the template the tag appears in. Other names pass through unchanged.
func relativeTemplateName(current, relative string) (string, error) {
	name := strings.Trim(relative, `'"`)
	if !strings.HasPrefix(name, relativeDot) && !strings.HasPrefix(name, relativeDots) {
		return relative, nil
	}
	current = strings.TrimLeft(current, "/")
	resolved := path.Clean(path.Join(path.Dir(current), name))
	if strings.HasPrefix(resolved, relativeDots) || resolved == ".." {
		return "", SyntaxError(ErrFmtRelativeOutside, relative, current)
	}
	if resolved == current {
		return "", SyntaxError(ErrFmtRelativeSelf, relative, resolved)
	}
	if len(relative) > 1 && (relative[0] == '"' || relative[0] == '\'') && relative[0] == relative[len(relative)-1] {
		return `"` + resolved + `"`, nil
	}
	return resolved, nil
}

// IncludeNode renders another template in the current context.
type IncludeNode struct {
	BaseNode
	Template *FilterExpression
	Extra    map[string]*FilterExpression
	Isolated bool
}

func compileInclude(p *Parser, tok Token) (Node, error) {
	bits := tok.SplitContents()
	if len(bits) < 2 {
		return nil, SyntaxError(ErrFmtIncludeNoArgument, bits[0])
	}
	node := &IncludeNode{}
	seen := map[string]bool{}
	remaining := bits[2:]
	for len(remaining) > 0 {
		option := remaining[0]
		remaining = remaining[1:]
		if seen[option] {
			return nil, SyntaxError(ErrFmtIncludeOptionTwice, option)
		}
		seen[option] = true
		switch option {
		case KeywordWith:
			extra, rest, err := TokenKwargs(remaining, p, false)
			if err != nil {
				return nil, err
			}
			if len(extra) == 0 {
				return nil, SyntaxError(ErrFmtIncludeWithNoKwargs, bits[0])
			}
			node.Extra = extra
			remaining = rest
		case KeywordOnly:
			node.Isolated = true
		default:
			return nil, SyntaxError(ErrFmtIncludeUnknownArg, bits[0], option)
		}
	}
	name, err := relativeTemplateName(p.Origin().templateName(), bits[1])
	if err != nil {
		return nil, err
	}
	if node.Template, err = p.CompileFilter(name); err != nil {
		return nil, err
	}
	return node, nil
}

// Render implements Node
func (n *IncludeNode) Render(ctx *Context) (string, error) {
	v, err := n.Template.Resolve(ctx)
	if err != nil {
		return "", err
	}
	t, ok := asTemplate(v)
	if !ok {
		if t, err = n.selectTemplate(ctx, v); err != nil {
			return "", err
		}
	}
	values, err := resolveKwargs(ctx, n.Extra)
	if err != nil {
		return "", err
	}
	if n.Isolated {
		return t.Render(ctx.New(values))
	}
	scope := ctx.Push(values)
	defer scope.Close()
	return t.Render(ctx)
}

// selectTemplate loads a template by name or list of names, caching the
// result for the rest of the render.
func (n *IncludeNode) selectTemplate(ctx *Context, v any) (*Template, error) {
	var names []string
	if s, ok := v.(string); ok || IsSafe(v) {
		if !ok {
			s = ToString(v)
		}
		name, err := relativeTemplateName(n.origin.templateName(), s)
		if err != nil {
			return nil, err
		}
		names = []string{name}
	} else if IsTruthy(v) {
		items, err := Iterate(v)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			names = append(names, ToString(item))
		}
	}

	root := ctx.RenderContext().Root()
	cache, _ := root[n].(map[string]*Template)
	if cache == nil {
		cache = map[string]*Template{}
		root[n] = cache
	}
	key := strings.Join(names, "\x00")
	if t, ok := cache[key]; ok {
		return t, nil
	}
	t, err := ctx.engine().SelectTemplate(names)
	if err != nil {
		return nil, err
	}
	cache[key] = t
	return t, nil
}
