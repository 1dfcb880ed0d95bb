package internal

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/robfig/gettext/po"
)

// Message is a translatable string found in a compiled template.
type Message struct {
	ID       string
	Context  string
	Template string
	Line     int
	// Comments are the translator comments on the line of the message or
	// the line before it.
	Comments []string
}

// ExtractMessages returns the constant translatable strings of t in
// source order: _("...") literals in variables and filter arguments, and
// trans tags with a literal message.
func ExtractMessages(t *Template) []Message {
	var msgs []Message
	name := t.Origin.String()
	add := func(id, messageContext string, line int) {
		msgs = append(msgs, Message{
			ID:       id,
			Context:  messageContext,
			Template: name,
			Line:     line,
			Comments: commentsFor(t.comments, line),
		})
	}
	for _, node := range FindNodes[Node](t.Nodelist) {
		line := 0
		if sn, ok := node.(SourceNode); ok {
			line = sn.Token().Line
		}
		switch n := node.(type) {
		case *VariableNode:
			for _, v := range n.Filter.translatedLiterals() {
				add(ToString(v.literal), "", line)
			}
		case *TranslateNode:
			if id, mc, ok := n.MessageID(); ok {
				add(id, mc, line)
			}
		}
	}
	return msgs
}

// translatedLiterals returns the _() constants of the expression and its
// filter arguments.
func (fe *FilterExpression) translatedLiterals() []*Variable {
	var out []*Variable
	if fe.Var.translate && fe.Var.lookups == nil {
		out = append(out, fe.Var)
	}
	for _, af := range fe.filters {
		for _, a := range af.args {
			if a.Var.translate && a.Var.lookups == nil {
				out = append(out, a.Var)
			}
		}
	}
	return out
}

func commentsFor(comments []TranslatorComment, line int) []string {
	var out []string
	for _, c := range comments {
		if c.Line == line || c.Line == line-1 {
			out = append(out, strings.TrimSpace(c.Text))
		}
	}
	return out
}

// WritePOTemplate writes msgs as a PO template. Messages sharing an id
// and context are merged, collecting their references and comments.
func WritePOTemplate(w io.Writer, msgs []Message) error {
	file := &po.File{}
	index := map[string]int{}
	for _, m := range msgs {
		ref := fmt.Sprintf("%s:%d", m.Template, m.Line)
		key := catalogKey(m.Context, m.ID)
		if i, ok := index[key]; ok {
			entry := &file.Messages[i]
			entry.Comment.References = append(entry.Comment.References, ref)
			entry.Comment.ExtractedComments = append(entry.Comment.ExtractedComments, m.Comments...)
			continue
		}
		index[key] = len(file.Messages)
		file.Messages = append(file.Messages, po.Message{
			Comment: po.Comment{
				ExtractedComments: append([]string(nil), m.Comments...),
				References:        []string{ref},
			},
			Ctxt: m.Context,
			Id:   m.ID,
			Str:  []string{""},
		})
	}
	var buf bytes.Buffer
	file.WriteTo(&buf)
	_, err := buf.WriteTo(w)
	return err
}
