package internal

// Template is compiled template source. It is read-only after
// compilation and may be rendered concurrently with separate contexts.
type Template struct {
	Name     string
	Source   string
	Origin   *Origin
	Nodelist *NodeList

	engine   *Engine
	comments []TranslatorComment
}

// TemplateProvider is implemented by wrappers of a compiled template.
// include and extends accept such values in place of a template name.
type TemplateProvider interface {
	CompiledTemplate() *Template
}

func asTemplate(v any) (*Template, bool) {
	switch t := v.(type) {
	case *Template:
		return t, t != nil
	case TemplateProvider:
		ct := t.CompiledTemplate()
		return ct, ct != nil
	}
	return nil, false
}

// Render renders the template against ctx. A context not yet bound to a
// template is bound to this one for the duration of the call.
func (t *Template) Render(ctx *Context) (string, error) {
	return t.render(ctx, true)
}

// render renders with a fresh render-context frame when isolated. A child
// template renders its parent without isolation so block state is shared.
func (t *Template) render(ctx *Context, isolated bool) (string, error) {
	state, err := ctx.RenderContext().PushState(t, isolated)
	if err != nil {
		return "", err
	}
	defer state.Close()

	if ctx.Template() == nil {
		bound, err := ctx.BindTemplate(t)
		if err != nil {
			return "", err
		}
		defer bound.Close()
	}
	return t.Nodelist.Render(ctx)
}

// Engine returns the engine the template was compiled by
func (t *Template) Engine() *Engine { return t.engine }

// TranslatorComments returns the {# Translators: #} comments in source order
func (t *Template) TranslatorComments() []TranslatorComment { return t.comments }

// ExceptionInfo builds the debug excerpt for a failure at tok.
func (t *Template) ExceptionInfo(message string, tok Token) *DebugInfo {
	return exceptionInfo(t.Source, t.Origin.String(), message, tok)
}
