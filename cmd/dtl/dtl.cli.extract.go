package main

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/itsatony/go-dtl"
	"github.com/itsatony/go-dtl/internal"
)

func newExtractCmd(o *cliOptions) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   CmdNameExtract + " [template...]",
		Short: HelpExtractShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExtract(o, args, outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, FlagOutput, FlagOutputShort, FlagDefaultOutput, UsageOutput)
	return cmd
}

// runExtract collects the translatable strings of the templates and
// writes them as a PO template. Without arguments every file under the
// --dir directories is read.
func runExtract(o *cliOptions, args []string, outputPath string) error {
	if len(args) == 0 {
		names, err := templatesInDirs(o.dirs)
		if err != nil {
			return fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
		}
		if len(names) == 0 {
			return fail(ExitCodeUsageError, ErrMsgMissingTemplate, nil)
		}
		args = names
	}

	var msgs []dtl.Message
	for _, arg := range args {
		_, tmpl, err := o.loadTemplate(arg)
		if err != nil {
			return err
		}
		msgs = append(msgs, tmpl.Messages()...)
	}

	var buf bytes.Buffer
	if err := internal.WritePOTemplate(&buf, msgs); err != nil {
		return fail(ExitCodeError, ErrMsgExtractFailed, err)
	}
	if err := writeOutput(outputPath, buf.Bytes(), o.stdout); err != nil {
		return fail(ExitCodeError, ErrMsgWriteOutputFailed, err)
	}
	fmt.Fprintf(o.stderr, FmtExtracted, len(msgs), len(args))
	return nil
}
