package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// newTestEngine builds an engine over an in-memory loader. Mutators adjust
// the default configuration first.
func newTestEngine(templates map[string]string, mutators ...func(*EngineConfig)) *Engine {
	cfg := DefaultEngineConfig()
	cfg.Logger = zap.NewNop()
	cfg.Loader = NewMapLoader(templates)
	for _, m := range mutators {
		m(&cfg)
	}
	return NewEngine(cfg)
}

// renderSource compiles source with e and renders it with values.
func renderSource(e *Engine, source string, values map[string]any) (string, error) {
	tmpl, err := e.FromString(source)
	if err != nil {
		return "", err
	}
	ctx := NewContext(values)
	ctx.Autoescape = e.Autoescape()
	return tmpl.Render(ctx)
}

// mustRender renders source on a default engine and fails the test on error.
func mustRender(t *testing.T, source string, values map[string]any) string {
	t.Helper()
	out, err := renderSource(newTestEngine(nil), source, values)
	require.NoError(t, err)
	return out
}

type renderCase struct {
	name     string
	source   string
	values   map[string]any
	expected string
}

func runRenderCases(t *testing.T, e *Engine, tests []renderCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := renderSource(e, tt.source, tt.values)
			require.NoError(t, err)
			require.Equal(t, tt.expected, out)
		})
	}
}
