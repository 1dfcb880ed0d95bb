package internal

import (
	"errors"
	"fmt"
	"strings"
)

// errorKind is a sentinel error that may belong to a broader category.
type errorKind struct {
	name   string
	parent error
}

func (k *errorKind) Error() string { return k.name }

func (k *errorKind) Unwrap() error { return k.parent }

func newKind(name string, parent error) error {
	return &errorKind{name: name, parent: parent}
}

// ErrTemplateSyntax is matched by every compile-time error kind.
var ErrTemplateSyntax = errors.New("template syntax error")

// Error kinds. Each compile-time kind also matches ErrTemplateSyntax.
var (
	ErrEmptyExpression        = newKind("empty expression", ErrTemplateSyntax)
	ErrUnknownTag             = newKind("unknown tag", ErrTemplateSyntax)
	ErrUnclosedTag            = newKind("unclosed tag", ErrTemplateSyntax)
	ErrMisplacedTag           = newKind("misplaced tag", ErrTemplateSyntax)
	ErrInvalidFilter          = newKind("invalid filter", ErrTemplateSyntax)
	ErrArgumentCount          = newKind("filter argument count", ErrTemplateSyntax)
	ErrInvalidSyntax          = newKind("invalid syntax", ErrTemplateSyntax)
	ErrTooManyArguments       = newKind("too many arguments", ErrTemplateSyntax)
	ErrMissingArgument        = newKind("missing argument", ErrTemplateSyntax)
	ErrUnexpectedKeyword      = newKind("unexpected keyword argument", ErrTemplateSyntax)
	ErrDuplicateKeyword       = newKind("duplicate keyword argument", ErrTemplateSyntax)
	ErrVariableDoesNotExist   = errors.New("variable does not exist")
	ErrTemplateNotFound       = errors.New("template does not exist")
	ErrInvalidTemplateLibrary = errors.New("invalid template library")
	ErrContextPop             = errors.New("context pop")
	ErrRecursionLimit         = errors.New("template recursion limit exceeded")
	ErrInvalidConfig          = errors.New("invalid engine configuration")
)

// Error is the error type produced by compilation and rendering.
// Token and Debug are attached in place as the error propagates; the
// kind never changes once the error is created.
type Error struct {
	Kind        error
	Message     string
	Token       *Token
	Debug       *DebugInfo
	Suggestions []string
	Cause       error
}

// NewError creates an error of the given kind.
func NewError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message.
func Errorf(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// SyntaxError creates a generic template syntax error, the kind tag
// compilers return for malformed arguments.
func SyntaxError(format string, args ...any) *Error {
	return Errorf(ErrTemplateSyntax, format, args...)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" && e.Cause != nil {
		return e.Cause.Error()
	}
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Line returns the source line of the annotated token, or 0.
func (e *Error) Line() int {
	if e.Token == nil {
		return 0
	}
	return e.Token.Line
}

// LookupError reports a dotted lookup that failed on every strategy.
type LookupError struct {
	Var       string
	Segment   string
	Container any
}

// Error implements the error interface
func (e *LookupError) Error() string {
	return fmt.Sprintf(ErrFmtLookupFailed, e.Segment, describeContainer(e.Container))
}

// Unwrap lets errors.Is match ErrVariableDoesNotExist.
func (e *LookupError) Unwrap() error { return ErrVariableDoesNotExist }

func describeContainer(v any) string {
	switch c := v.(type) {
	case *Context:
		keys := c.Keys()
		return "context with keys [" + strings.Join(keys, ", ") + "]"
	case nil:
		return StringValueNone
	default:
		return fmt.Sprintf("%#v", c)
	}
}

// SilentFailure is implemented by errors that should resolve to the
// invalid-string placeholder instead of aborting the render.
type SilentFailure interface {
	SilentVariableFailure() bool
}

func isSilentFailure(err error) bool {
	var sf SilentFailure
	return errors.As(err, &sf) && sf.SilentVariableFailure()
}

// asError returns err as *Error, wrapping foreign errors as syntax errors.
func asError(err error) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Kind: ErrTemplateSyntax, Cause: err}
}

// joinQuoted formats names the way diagnostics list alternatives:
// 'a', 'b' or 'c'.
func joinQuoted(names []string, last string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	switch len(quoted) {
	case 0:
		return ""
	case 1:
		return quoted[0]
	}
	return strings.Join(quoted[:len(quoted)-1], ", ") + " " + last + " " + quoted[len(quoted)-1]
}
