package internal

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const extractSource = "{# Translators: greet the visitor #}\n" +
	"{% trans 'Hello' %}\n" +
	"{{ _('Bye') }} {{ name }} {{ v|default:_('none') }}\n" +
	"{% trans 'May' context 'month' %}{% trans greeting %}\n" +
	"{% if x %}{% trans 'Hello' %}{% endif %}"

func TestExtractMessages(t *testing.T) {
	tmpl, err := newTestEngine(nil).Compile(extractSource, &Origin{Name: "mail.html"})
	require.NoError(t, err)

	msgs := ExtractMessages(tmpl)
	require.Len(t, msgs, 5)

	assert.Equal(t, Message{ID: "Hello", Template: "mail.html", Line: 2, Comments: []string{"Translators: greet the visitor"}}, msgs[0])
	assert.Equal(t, "Bye", msgs[1].ID)
	assert.Equal(t, 3, msgs[1].Line)
	assert.Empty(t, msgs[1].Comments)
	assert.Equal(t, "none", msgs[2].ID)
	assert.Equal(t, Message{ID: "May", Context: "month", Template: "mail.html", Line: 4}, msgs[3])
	assert.Equal(t, "Hello", msgs[4].ID)
	assert.Equal(t, 5, msgs[4].Line)
}

func TestWritePOTemplate(t *testing.T) {
	tmpl, err := newTestEngine(nil).Compile(extractSource, &Origin{Name: "mail.html"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePOTemplate(&buf, ExtractMessages(tmpl)))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, `msgid "Hello"`))
	assert.Contains(t, out, `msgid "Bye"`)
	assert.Contains(t, out, `msgid "none"`)
	assert.Contains(t, out, `msgctxt "month"`)
	assert.Contains(t, out, "mail.html:2")
	assert.Contains(t, out, "mail.html:5")
	assert.Contains(t, out, "Translators: greet the visitor")
	assert.NotContains(t, out, "greeting")
}

func TestWritePOTemplate_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WritePOTemplate(&buf, nil))
	assert.NotContains(t, buf.String(), "msgid \"Hello\"")
}
