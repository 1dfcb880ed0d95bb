package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newCheckCmd(o *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   CmdNameCheck + " [template...]",
		Short: HelpCheckShort,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(o, args)
		},
	}
}

// runCheck compiles each template. Without arguments every file under
// the --dir directories is checked.
func runCheck(o *cliOptions, args []string) error {
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

	failed := 0
	for _, arg := range args {
		if _, _, err := o.loadTemplate(arg); err != nil {
			failed++
			fmt.Fprintf(o.stdout, FmtCheckFail, arg, errorCause(err))
			continue
		}
		fmt.Fprintf(o.stdout, FmtCheckOK, arg)
	}
	if failed > 0 {
		return fail(ExitCodeValidationError, ErrMsgCheckFailed, nil)
	}
	return nil
}

// templatesInDirs lists the files below dirs by template name.
func templatesInDirs(dirs []string) ([]string, error) {
	var names []string
	for _, dir := range dirs {
		err := fs.WalkDir(os.DirFS(dir), ".", func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			names = append(names, filepath.ToSlash(path))
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return names, nil
}

func errorCause(err error) error {
	if ee, ok := err.(*exitError); ok && ee.err != nil {
		return ee.err
	}
	return err
}
