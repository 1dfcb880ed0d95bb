package dtl

import (
	"errors"
	"strconv"
	"strings"

	"github.com/itsatony/go-cuserr"

	"github.com/itsatony/go-dtl/internal"
)

// Error message constants
const (
	ErrMsgSyntax         = "template syntax error"
	ErrMsgRender         = "template rendering failed"
	ErrMsgNotFound       = "template not found"
	ErrMsgLibrary        = "invalid template library"
	ErrMsgConfig         = "invalid engine configuration"
	ErrMsgEmptyName      = "template name cannot be empty"
	ErrMsgLibraryExists  = "library already registered"
	ErrMsgNilLibrary     = "library cannot be nil"
	ErrMsgTemplateExists = "template already registered"
	ErrMsgNegativeDepth  = "max depth must not be negative"
)

// Error code constants for categorization
const (
	ErrCodeSyntax   = "DTL_SYNTAX"
	ErrCodeRender   = "DTL_RENDER"
	ErrCodeNotFound = "DTL_NOT_FOUND"
	ErrCodeLibrary  = "DTL_LIBRARY"
	ErrCodeConfig   = "DTL_CONFIG"
	ErrCodeRegistry = "DTL_REGISTRY"
)

// Error kinds. Errors returned by this package match these with errors.Is.
var (
	ErrTemplateSyntax         = internal.ErrTemplateSyntax
	ErrEmptyExpression        = internal.ErrEmptyExpression
	ErrUnknownTag             = internal.ErrUnknownTag
	ErrUnclosedTag            = internal.ErrUnclosedTag
	ErrMisplacedTag           = internal.ErrMisplacedTag
	ErrInvalidFilter          = internal.ErrInvalidFilter
	ErrArgumentCount          = internal.ErrArgumentCount
	ErrInvalidSyntax          = internal.ErrInvalidSyntax
	ErrTooManyArguments       = internal.ErrTooManyArguments
	ErrMissingArgument        = internal.ErrMissingArgument
	ErrUnexpectedKeyword      = internal.ErrUnexpectedKeyword
	ErrDuplicateKeyword       = internal.ErrDuplicateKeyword
	ErrVariableDoesNotExist   = internal.ErrVariableDoesNotExist
	ErrTemplateNotFound       = internal.ErrTemplateNotFound
	ErrInvalidTemplateLibrary = internal.ErrInvalidTemplateLibrary
	ErrContextPop             = internal.ErrContextPop
	ErrRecursionLimit         = internal.ErrRecursionLimit
	ErrInvalidConfig          = internal.ErrInvalidConfig
)

// classify maps an error to its code and message constant.
func classify(err error) (string, string) {
	switch {
	case errors.Is(err, internal.ErrTemplateNotFound):
		return ErrCodeNotFound, ErrMsgNotFound
	case errors.Is(err, internal.ErrTemplateSyntax):
		return ErrCodeSyntax, ErrMsgSyntax
	case errors.Is(err, internal.ErrInvalidTemplateLibrary):
		return ErrCodeLibrary, ErrMsgLibrary
	case errors.Is(err, internal.ErrInvalidConfig):
		return ErrCodeConfig, ErrMsgConfig
	default:
		return ErrCodeRender, ErrMsgRender
	}
}

// wrapError converts an engine error into a CustomError carrying the
// code, the failing line and token, and the error kind. Errors already
// converted pass through unchanged.
func wrapError(err error, templateName string) error {
	if err == nil {
		return nil
	}
	var ce *cuserr.CustomError
	if errors.As(err, &ce) {
		return err
	}

	code, msg := classify(err)
	out := cuserr.WrapStdError(err, code, msg+": "+err.Error())
	if templateName != "" {
		out = out.WithMetadata(MetaKeyTemplate, templateName)
	}

	var te *internal.Error
	if !errors.As(err, &te) {
		return out
	}
	if te.Kind != nil {
		out = out.WithMetadata(MetaKeyKind, te.Kind.Error())
	}
	if te.Token != nil {
		out = out.
			WithMetadata(MetaKeyLine, strconv.Itoa(te.Token.Line)).
			WithMetadata(MetaKeyToken, te.Token.Contents)
	}
	if te.Debug != nil && te.Debug.Name != "" && templateName == "" {
		out = out.WithMetadata(MetaKeyTemplate, te.Debug.Name)
	}
	if len(te.Suggestions) > 0 {
		out = out.WithMetadata(MetaKeySuggestions, strings.Join(te.Suggestions, suggestionSeparator))
	}
	return out
}

// NewLibraryError creates an error for an invalid library registration
func NewLibraryError(msg, name string) error {
	return cuserr.NewValidationError(ErrCodeLibrary, msg).
		WithMetadata(MetaKeyLibrary, name)
}

// NewConfigError creates an error for a configuration file that cannot be
// loaded
func NewConfigError(path string, cause error) error {
	if cause == nil {
		return cuserr.NewValidationError(ErrCodeConfig, ErrMsgConfig).
			WithMetadata(MetaKeyPath, path)
	}
	wrapped := wrapError(cause, "")
	if ce, ok := wrapped.(*cuserr.CustomError); ok {
		return ce.WithMetadata(MetaKeyPath, path)
	}
	return wrapped
}

// NewEmptyTemplateNameError creates an error for registering a template
// without a name
func NewEmptyTemplateNameError() error {
	return cuserr.NewValidationError(ErrCodeRegistry, ErrMsgEmptyName)
}

// NewTemplateExistsError creates an error for registering a name twice
func NewTemplateExistsError(name string) error {
	return cuserr.NewValidationError(ErrCodeRegistry, ErrMsgTemplateExists).
		WithMetadata(MetaKeyTemplate, name)
}

// NewInvalidDepthError creates an error for a negative nesting limit
func NewInvalidDepthError(depth int) error {
	return cuserr.NewValidationError(ErrCodeConfig, ErrMsgNegativeDepth).
		WithMetadata(MetaKeyDepth, strconv.Itoa(depth))
}

// IsNotFound reports whether err is a missing-template error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrTemplateNotFound)
}

// IsSyntaxError reports whether err is a template syntax error
func IsSyntaxError(err error) bool {
	return errors.Is(err, ErrTemplateSyntax)
}
