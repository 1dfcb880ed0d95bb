package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/itsatony/go-dtl/internal"
)

func newTokensCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   CmdNameTokens + " <template>",
		Short: HelpTokensShort,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokens(o, args[0])
		},
	}
}

// runTokens prints one line per token: index, type, line, span and
// contents. --debug lexes with spans.
func runTokens(o *cliOptions, arg string) error {
	source, err := readInput(arg, o.stdin)
	if err != nil {
		return fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
	}

	var lexer *internal.Lexer
	if o.debug {
		lexer = internal.NewDebugLexer(string(source), o.logger())
	} else {
		lexer = internal.NewLexer(string(source), o.logger())
	}
	for i, tok := range lexer.Tokenize() {
		start, end := 0, 0
		if tok.Position != nil {
			start, end = tok.Position.Start, tok.Position.End
		}
		fmt.Fprintf(o.stdout, FmtToken, i, tok.Type, tok.Line, start, end, tok.Contents)
	}
	return nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == InputSourceStdin {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}
