package internal

import (
	"strings"

	"go.uber.org/zap"
)

// LexerConfig holds lexer configuration
type LexerConfig struct {
	// TrackPositions records each token's byte span in the source.
	// Compiling in debug mode needs it for diagnostics.
	TrackPositions bool
}

// Lexer splits template source into Text, Var, Block and Comment tokens.
type Lexer struct {
	source   string
	config   LexerConfig
	verbatim string // end marker while inside a verbatim block
	line     int
	logger   *zap.Logger
}

// NewLexer creates a lexer that does not track token positions
func NewLexer(source string, logger *zap.Logger) *Lexer {
	return NewLexerWithConfig(source, LexerConfig{}, logger)
}

// NewDebugLexer creates a lexer that records each token's span
func NewDebugLexer(source string, logger *zap.Logger) *Lexer {
	return NewLexerWithConfig(source, LexerConfig{TrackPositions: true}, logger)
}

// NewLexerWithConfig creates a lexer with custom configuration
func NewLexerWithConfig(source string, config LexerConfig, logger *zap.Logger) *Lexer {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Debug(LogMsgLexerCreated, zap.Int(LogFieldSource, len(source)))
	return &Lexer{
		source: source,
		config: config,
		line:   1,
		logger: logger,
	}
}

// Tokenize returns the token stream for the whole source.
// Lexing never fails; malformed tags surface at parse time.
func (l *Lexer) Tokenize() []Token {
	l.line = 1
	l.verbatim = ""
	var tokens []Token
	upto := 0
	for _, tag := range findTags(l.source) {
		if tag.Start > upto {
			tokens = append(tokens, l.createToken(Span{upto, tag.Start}, false))
		}
		tokens = append(tokens, l.createToken(tag, true))
		upto = tag.End
	}
	if upto < len(l.source) {
		tokens = append(tokens, l.createToken(Span{upto, len(l.source)}, false))
	}
	l.logger.Debug(LogMsgTokenizerEnd, zap.Int(LogFieldTokens, len(tokens)))
	return tokens
}

// createToken builds the token for one chunk of source and advances the
// line counter past it.
func (l *Lexer) createToken(span Span, inTag bool) Token {
	raw := l.source[span.Start:span.End]
	tok := Token{Type: TokenText, Contents: raw, Line: l.line}
	if l.config.TrackPositions {
		s := span
		tok.Position = &s
	}
	l.line += strings.Count(raw, "\n")

	if !inTag {
		return tok
	}
	content := strings.TrimSpace(raw[LenTagDelim : len(raw)-LenTagDelim])
	switch {
	case strings.HasPrefix(raw, BlockTagStart):
		if l.verbatim != "" {
			if content != l.verbatim {
				return tok
			}
			l.verbatim = ""
		} else if content == KeywordVerbatim || strings.HasPrefix(content, KeywordVerbatim+" ") {
			l.verbatim = KeywordEnd + content
		}
		tok.Type = TokenBlock
		tok.Contents = content
	case l.verbatim != "":
		return tok
	case strings.HasPrefix(raw, VariableTagStart):
		tok.Type = TokenVar
		tok.Contents = content
	case strings.HasPrefix(raw, CommentTagStart):
		tok.Type = TokenComment
		tok.Contents = ""
		if strings.Contains(content, TranslatorCommentMark) {
			tok.Contents = content
		}
	}
	return tok
}

// findTags locates every {% %}, {{ }} and {# #} tag in source. A tag never
// spans a newline and closes at the first matching delimiter.
func findTags(source string) []Span {
	var tags []Span
	i := 0
	for i < len(source)-1 {
		idx := strings.IndexByte(source[i:], SingleBraceStart[0])
		if idx < 0 {
			break
		}
		start := i + idx
		if start+1 >= len(source) {
			break
		}
		var closer string
		switch source[start : start+LenTagDelim] {
		case BlockTagStart:
			closer = BlockTagEnd
		case VariableTagStart:
			closer = VariableTagEnd
		case CommentTagStart:
			closer = CommentTagEnd
		}
		if closer != "" {
			if end := findCloser(source, start+LenTagDelim, closer); end >= 0 {
				tags = append(tags, Span{Start: start, End: end})
				i = end
				continue
			}
		}
		i = start + 1
	}
	return tags
}

func findCloser(source string, from int, closer string) int {
	for j := from; j+len(closer) <= len(source); j++ {
		if source[j] == '\n' {
			return -1
		}
		if strings.HasPrefix(source[j:], closer) {
			return j + len(closer)
		}
	}
	return -1
}
