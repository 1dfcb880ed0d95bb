package main

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"

	"github.com/itsatony/go-dtl"
)

// cliOptions holds the flags shared by every command
type cliOptions struct {
	configPath string
	dirs       []string
	debug      bool
	verbose    bool
	noEscape   bool
	language   string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	o := &cliOptions{stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           CmdNameRoot,
		Short:         HelpRootShort,
		Long:          HelpRootLong,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVarP(&o.configPath, FlagConfig, FlagConfigShort, "", UsageConfig)
	flags.StringArrayVarP(&o.dirs, FlagDir, FlagDirShort, nil, UsageDir)
	flags.BoolVar(&o.debug, FlagDebug, false, UsageDebug)
	flags.BoolVarP(&o.verbose, FlagVerbose, FlagVerboseShort, false, UsageVerbose)
	flags.BoolVar(&o.noEscape, FlagNoEscape, false, UsageNoEscape)
	flags.StringVar(&o.language, FlagLanguage, "", UsageLanguage)

	root.AddCommand(
		newRenderCmd(o),
		newCheckCmd(o),
		newTokensCmd(o),
		newExtractCmd(o),
		newVersionCmd(o),
	)
	return root
}

func (o *cliOptions) logger() *zap.Logger {
	if !o.verbose {
		return zap.NewNop()
	}
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(o.stderr),
		zap.DebugLevel,
	)
	return zap.New(core)
}

// engine builds an engine from the flags. Directories in extraDirs are
// searched before the --dir directories.
func (o *cliOptions) engine(extraDirs ...string) (*dtl.Engine, error) {
	opts := []dtl.Option{
		dtl.WithLogger(o.logger()),
		dtl.WithTemplateDirs(extraDirs...),
		dtl.WithTemplateDirs(o.dirs...),
	}
	if o.debug {
		opts = append(opts, dtl.WithDebug(true))
	}
	if o.noEscape {
		opts = append(opts, dtl.WithAutoescape(false))
	}
	if o.language != "" {
		tag, err := language.Parse(o.language)
		if err != nil {
			return nil, fail(ExitCodeUsageError, ErrMsgEngineFailed, err)
		}
		opts = append(opts, dtl.WithLocalizer(dtl.NewLocalizer(tag, nil, nil)))
	}

	var (
		engine *dtl.Engine
		err    error
	)
	if o.configPath != "" {
		engine, err = dtl.NewFromConfigFile(o.configPath, opts...)
	} else {
		engine, err = dtl.New(opts...)
	}
	if err != nil {
		return nil, fail(ExitCodeUsageError, ErrMsgEngineFailed, err)
	}
	return engine, nil
}

// templateRef splits a template argument into the directory to search
// first and the name to load. Arguments naming a file on disk load from
// the file's directory; other arguments are names for the configured
// directories.
func templateRef(arg string) (dir, name string) {
	if info, err := os.Stat(arg); err == nil && !info.IsDir() {
		return filepath.Dir(arg), filepath.Base(arg)
	}
	return "", arg
}

// loadTemplate compiles the template named by arg, reading stdin for "-".
func (o *cliOptions) loadTemplate(arg string) (*dtl.Engine, *dtl.Template, error) {
	if arg == InputSourceStdin {
		engine, err := o.engine()
		if err != nil {
			return nil, nil, err
		}
		source, err := io.ReadAll(o.stdin)
		if err != nil {
			return nil, nil, fail(ExitCodeInputError, ErrMsgReadStdinFailed, err)
		}
		tmpl, err := engine.FromString(string(source))
		if err != nil {
			return nil, nil, fail(ExitCodeValidationError, ErrMsgCompileFailed, err)
		}
		return engine, tmpl, nil
	}

	dir, name := templateRef(arg)
	var extra []string
	if dir != "" {
		extra = append(extra, dir)
	}
	engine, err := o.engine(extra...)
	if err != nil {
		return nil, nil, err
	}
	tmpl, err := engine.GetTemplate(name)
	if err != nil {
		if dtl.IsNotFound(err) {
			return nil, nil, fail(ExitCodeInputError, ErrMsgReadFileFailed, err)
		}
		return nil, nil, fail(ExitCodeValidationError, ErrMsgCompileFailed, err)
	}
	return engine, tmpl, nil
}
