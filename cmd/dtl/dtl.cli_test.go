package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test data constants
const (
	testFilePermissions = 0o644
	testTemplateContent = "Hello, {{ user }}!"
	testDataJSON        = `{"user": "Alice"}`
	testDataYAML        = "user: Bob\n"
	testExpectedOutput  = "Hello, Alice!"
	testInvalidContent  = "{% if user %}unclosed"
	testBaseContent     = "<h1>{% block title %}Base{% endblock %}</h1>"
	testChildContent    = `{% extends "base.html" %}{% block title %}{{ block.super }} and {{ user }}{% endblock %}`
	testI18nContent     = "{# Translators: greeting on the home page #}\n{% trans \"Welcome\" %}\n{{ _(\"Goodbye\") }}"
)

// setupTestData creates test files in a temp directory
func setupTestData(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()

	files := map[string]string{
		"template.txt": testTemplateContent,
		"data.json":    testDataJSON,
		"data.yaml":    testDataYAML,
		"invalid.txt":  testInvalidContent,
		"base.html":    testBaseContent,
		"child.html":   testChildContent,
		"i18n.html":    testI18nContent,
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(tmpDir, name), []byte(content), testFilePermissions))
	}
	return tmpDir
}

func runCLI(t *testing.T, stdin string, args ...string) (int, string, string) {
	t.Helper()
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	code := run(context.Background(), args, strings.NewReader(stdin), stdout, stderr)
	return code, stdout.String(), stderr.String()
}

// ==================== run() dispatch tests ====================

func TestRun_NoArgs_ShowsHelp(t *testing.T) {
	code, stdout, _ := runCLI(t, "")

	assert.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, stdout, CmdNameRender)
	assert.Contains(t, stdout, CmdNameExtract)
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, stderr := runCLI(t, "", "unknown")

	assert.Equal(t, ExitCodeUsageError, code)
	assert.Contains(t, stderr, "unknown")
}

func TestRun_VersionCommand(t *testing.T) {
	code, stdout, _ := runCLI(t, "", CmdNameVersion)

	assert.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, stdout, "dtl version")
}

// ==================== render tests ====================

func TestRender(t *testing.T) {
	dir := setupTestData(t)

	tests := []struct {
		name     string
		stdin    string
		args     []string
		wantCode int
		wantOut  string
	}{
		{
			name:     "inline JSON data",
			args:     []string{CmdNameRender, filepath.Join(dir, "template.txt"), "--" + FlagData, testDataJSON},
			wantCode: ExitCodeSuccess,
			wantOut:  testExpectedOutput,
		},
		{
			name:     "YAML data file",
			args:     []string{CmdNameRender, filepath.Join(dir, "template.txt"), "-" + FlagDataFileShort, filepath.Join(dir, "data.yaml")},
			wantCode: ExitCodeSuccess,
			wantOut:  "Hello, Bob!",
		},
		{
			name:     "template from stdin",
			stdin:    "{{ user|upper }}",
			args:     []string{CmdNameRender, InputSourceStdin, "-" + FlagDataShort, "user: carol"},
			wantCode: ExitCodeSuccess,
			wantOut:  "CAROL",
		},
		{
			name:     "extends resolves next to the template",
			args:     []string{CmdNameRender, filepath.Join(dir, "child.html"), "-d", "user: dave"},
			wantCode: ExitCodeSuccess,
			wantOut:  "<h1>Base and dave</h1>",
		},
		{
			name:     "lookup through --dir",
			args:     []string{CmdNameRender, "child.html", "--" + FlagDir, dir, "-d", "user: erin"},
			wantCode: ExitCodeSuccess,
			wantOut:  "<h1>Base and erin</h1>",
		},
		{
			name:     "autoescape on by default",
			stdin:    "{{ user }}",
			args:     []string{CmdNameRender, InputSourceStdin, "-d", `user: "<b>"`},
			wantCode: ExitCodeSuccess,
			wantOut:  "&lt;b&gt;",
		},
		{
			name:     "autoescape disabled",
			stdin:    "{{ user }}",
			args:     []string{CmdNameRender, InputSourceStdin, "-d", `user: "<b>"`, "--" + FlagNoEscape},
			wantCode: ExitCodeSuccess,
			wantOut:  "<b>",
		},
		{
			name:     "syntax error",
			args:     []string{CmdNameRender, filepath.Join(dir, "invalid.txt")},
			wantCode: ExitCodeValidationError,
		},
		{
			name:     "missing template",
			args:     []string{CmdNameRender, "nope.html"},
			wantCode: ExitCodeInputError,
		},
		{
			name:     "invalid data",
			args:     []string{CmdNameRender, filepath.Join(dir, "template.txt"), "-d", "user: [unclosed"},
			wantCode: ExitCodeInputError,
		},
		{
			name:     "watch needs a file",
			args:     []string{CmdNameRender, InputSourceStdin, "--" + FlagWatch},
			wantCode: ExitCodeUsageError,
		},
		{
			name:     "missing argument",
			args:     []string{CmdNameRender},
			wantCode: ExitCodeUsageError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runCLI(t, tt.stdin, tt.args...)

			assert.Equal(t, tt.wantCode, code, stderr)
			if tt.wantOut != "" {
				assert.Equal(t, tt.wantOut, stdout)
			}
		})
	}
}

func TestRender_OutputFile(t *testing.T) {
	dir := setupTestData(t)
	out := filepath.Join(dir, "out", "result.txt")

	code, stdout, stderr := runCLI(t, "", CmdNameRender, filepath.Join(dir, "template.txt"),
		"-d", testDataJSON, "-"+FlagOutputShort, out)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Empty(t, stdout)
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, testExpectedOutput, string(content))
}

func TestRender_ConfigFile(t *testing.T) {
	dir := setupTestData(t)
	config := "autoescape: false\ntemplate_dirs: [\".\"]\nstring_if_invalid: \"?\"\n"
	configPath := filepath.Join(dir, "dtl.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(config), testFilePermissions))

	code, stdout, stderr := runCLI(t, "", CmdNameRender, "child.html", "-"+FlagConfigShort, configPath)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	assert.Equal(t, "<h1>Base and ?</h1>", stdout)
}

func TestRender_VerboseLogsToStderr(t *testing.T) {
	code, _, stderr := runCLI(t, "{{ 1 }}", CmdNameRender, InputSourceStdin, "--"+FlagVerbose)

	require.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, stderr, "render finished")
}

// ==================== check tests ====================

func TestCheck(t *testing.T) {
	dir := setupTestData(t)

	code, stdout, _ := runCLI(t, "", CmdNameCheck, filepath.Join(dir, "template.txt"), filepath.Join(dir, "child.html"))
	assert.Equal(t, ExitCodeSuccess, code)
	assert.Contains(t, stdout, "ok")

	code, stdout, _ = runCLI(t, "", CmdNameCheck, filepath.Join(dir, "template.txt"), filepath.Join(dir, "invalid.txt"))
	assert.Equal(t, ExitCodeValidationError, code)
	assert.Contains(t, stdout, "FAIL")
	assert.Contains(t, stdout, "invalid.txt")
}

func TestCheck_WalksDirs(t *testing.T) {
	dir := setupTestData(t)

	code, stdout, _ := runCLI(t, "", CmdNameCheck, "--"+FlagDir, dir)

	assert.Equal(t, ExitCodeValidationError, code)
	assert.Contains(t, stdout, "ok    base.html")
	assert.Contains(t, stdout, "FAIL  invalid.txt")
}

func TestCheck_NothingToCheck(t *testing.T) {
	code, _, _ := runCLI(t, "", CmdNameCheck)
	assert.Equal(t, ExitCodeUsageError, code)
}

// ==================== tokens tests ====================

func TestTokens(t *testing.T) {
	code, stdout, _ := runCLI(t, "a{{ b }}{% c %}{# d #}", CmdNameTokens, InputSourceStdin)

	require.Equal(t, ExitCodeSuccess, code)
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], `"a"`)
	assert.Contains(t, lines[1], `"b"`)
	assert.Contains(t, lines[2], `"c"`)
	assert.Contains(t, lines[3], `""`)
}

// ==================== extract tests ====================

func TestExtract(t *testing.T) {
	dir := setupTestData(t)
	out := filepath.Join(dir, "messages.pot")

	code, _, stderr := runCLI(t, "", CmdNameExtract, filepath.Join(dir, "i18n.html"), "-o", out)

	require.Equal(t, ExitCodeSuccess, code, stderr)
	content, err := os.ReadFile(out)
	require.NoError(t, err)
	pot := string(content)
	assert.Contains(t, pot, `msgid "Welcome"`)
	assert.Contains(t, pot, `msgid "Goodbye"`)
	assert.Contains(t, pot, "greeting on the home page")
	assert.Contains(t, stderr, "extracted 2 messages")
}

func TestExtract_CompileErrorFails(t *testing.T) {
	dir := setupTestData(t)

	code, _, _ := runCLI(t, "", CmdNameExtract, filepath.Join(dir, "invalid.txt"))

	assert.Equal(t, ExitCodeValidationError, code)
}
