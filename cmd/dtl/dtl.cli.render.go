package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/itsatony/go-dtl"
)

// renderConfig holds parsed render command configuration
type renderConfig struct {
	dataInline   string
	dataFilePath string
	outputPath   string
	watch        bool
}

func newRenderCmd(o *cliOptions) *cobra.Command {
	cfg := &renderConfig{}
	cmd := &cobra.Command{
		Use:     CmdNameRender + " <template>",
		Short:   HelpRenderShort,
		Example: HelpRenderExample,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), o, cfg, args[0])
		},
	}
	flags := cmd.Flags()
	flags.StringVarP(&cfg.dataInline, FlagData, FlagDataShort, "", UsageData)
	flags.StringVarP(&cfg.dataFilePath, FlagDataFile, FlagDataFileShort, "", UsageDataFile)
	flags.StringVarP(&cfg.outputPath, FlagOutput, FlagOutputShort, FlagDefaultOutput, UsageOutput)
	flags.BoolVarP(&cfg.watch, FlagWatch, FlagWatchShort, false, UsageWatch)
	return cmd
}

func runRender(ctx context.Context, o *cliOptions, cfg *renderConfig, arg string) error {
	if cfg.watch && arg == InputSourceStdin {
		return fail(ExitCodeUsageError, ErrMsgWatchStdin, nil)
	}
	data, err := loadData(cfg.dataInline, cfg.dataFilePath)
	if err != nil {
		return fail(ExitCodeInputError, ErrMsgInvalidData, err)
	}

	engine, tmpl, err := o.loadTemplate(arg)
	if err != nil {
		return err
	}
	if err := renderTo(tmpl, data, cfg.outputPath, o.stdout); err != nil {
		return err
	}
	if !cfg.watch {
		return nil
	}

	dirs := append([]string{}, o.dirs...)
	if dir, _ := templateRef(arg); dir != "" {
		dirs = append(dirs, dir)
	}
	rerender := func() error {
		engine.ResetCache()
		_, name := templateRef(arg)
		t, err := engine.GetTemplate(name)
		if err != nil {
			return err
		}
		return renderTo(t, data, cfg.outputPath, o.stdout)
	}
	return watchTemplates(ctx, dirs, rerender, o.stderr)
}

func renderTo(tmpl *dtl.Template, data map[string]any, outputPath string, stdout io.Writer) error {
	result, err := tmpl.Execute(data)
	if err != nil {
		return fail(ExitCodeError, ErrMsgRenderFailed, err)
	}
	if err := writeOutput(outputPath, []byte(result), stdout); err != nil {
		return fail(ExitCodeError, ErrMsgWriteOutputFailed, err)
	}
	return nil
}

// watchTemplates calls render after every change in dirs until ctx is
// done. Render failures are reported and watching continues.
func watchTemplates(ctx context.Context, dirs []string, render func() error, stderr io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fail(ExitCodeError, ErrMsgWatchFailed, err)
	}
	defer watcher.Close()

	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fail(ExitCodeError, ErrMsgWatchFailed, err)
		}
		fmt.Fprintf(stderr, FmtWatching, dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := render(); err != nil {
				fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgRenderFailed, err)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			fmt.Fprintf(stderr, FmtErrorWithCause, ErrMsgWatchFailed, err)
		}
	}
}

// loadData reads render data. JSON is accepted as the YAML subset it is.
func loadData(inline, filePath string) (map[string]any, error) {
	var raw []byte
	switch {
	case filePath != "":
		data, err := os.ReadFile(filePath)
		if err != nil {
			return nil, err
		}
		raw = data
	case inline != "":
		raw = []byte(inline)
	default:
		return make(map[string]any), nil
	}

	result := make(map[string]any)
	if err := yaml.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func writeOutput(path string, data []byte, stdout io.Writer) error {
	if path == "" || path == FlagDefaultOutput {
		_, err := stdout.Write(data)
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
