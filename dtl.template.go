package dtl

import (
	"time"

	"go.uber.org/zap"

	"github.com/itsatony/go-dtl/internal"
)

// Template is a compiled template. It is read-only and may be rendered
// concurrently with separate contexts.
type Template struct {
	compiled *internal.Template
	engine   *Engine
}

func newTemplate(t *internal.Template, e *Engine) *Template {
	return &Template{compiled: t, engine: e}
}

// Name returns the name the template was loaded under, or "" for
// templates compiled from strings.
func (t *Template) Name() string { return t.compiled.Name }

// Source returns the template source text
func (t *Template) Source() string { return t.compiled.Source }

// Origin describes where the template was loaded from
func (t *Template) Origin() *Origin { return t.compiled.Origin }

// Nodes returns the compiled node tree
func (t *Template) Nodes() *NodeList { return t.compiled.Nodelist }

// CompiledTemplate lets a Template be passed to {% include %} and
// {% extends %} as a context value.
func (t *Template) CompiledTemplate() *internal.Template { return t.compiled }

// Render renders the template against ctx.
func (t *Template) Render(ctx *Context) (string, error) {
	renderID := newRenderID()
	logger := t.engine.logger.With(
		zap.String(LogFieldRenderID, renderID),
		zap.String(LogFieldTemplate, t.compiled.Origin.String()),
	)
	logger.Debug(LogMsgRenderStart)
	start := time.Now()

	out, err := t.compiled.Render(ctx)
	if err != nil {
		logger.Debug(LogMsgRenderFailed, zap.Error(err))
		return "", wrapError(err, t.compiled.Name)
	}
	logger.Debug(LogMsgRenderDone,
		zap.Int(LogFieldBytes, len(out)),
		zap.Duration(LogFieldDuration, time.Since(start)),
	)
	return out, nil
}

// Execute renders the template with data in a fresh context that follows
// the engine's autoescape setting.
func (t *Template) Execute(data map[string]any) (string, error) {
	ctx := internal.NewContext(data)
	ctx.Autoescape = t.engine.autoesc
	return t.Render(ctx)
}

// ExecuteRequest renders the template for request. The engine's context
// processors run against request and their values sit below data.
func (t *Template) ExecuteRequest(request any, data map[string]any, processors ...ContextProcessor) (string, error) {
	ctx := internal.NewRequestContext(request, data, processors...)
	ctx.Autoescape = t.engine.autoesc
	return t.Render(ctx)
}

// Messages returns the constant translatable strings in the template.
func (t *Template) Messages() []Message {
	return internal.ExtractMessages(t.compiled)
}
