// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/md2bib/internal/bibliography"
	"github.com/pdiddy/md2bib/internal/logging"
	"github.com/pdiddy/md2bib/internal/subset"
)

const cliBib = `@book{smith2020ab,
  title = {First},
  url = {https://example.org/smith},
}

@misc{lee2021cd,
  title = {Second},
}
`

const cliMarkdown = "Smith [@smith2020ab] and a typo [@smyth2020ab].\n"

// execute runs the CLI with args, resetting flags left over from earlier
// runs in the same process.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	rootCmd.SetOut(nil)
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func writeTemp(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSubsetConfig(t *testing.T) {
	viper.Set("bibliography", "default.bib")
	t.Cleanup(func() { viper.Set("bibliography", "") })

	tests := []struct {
		name     string
		args     []string
		findKeys string
		keys     []string
		wantBib  string
		wantMD   string
		wantKeys []string
		wantErr  error
	}{
		{name: "positional", args: []string{"refs.bib", "paper.md"}, wantBib: "refs.bib", wantMD: "paper.md"},
		{name: "find keys flag", args: []string{"refs.bib"}, findKeys: "paper.md", wantBib: "refs.bib", wantMD: "paper.md"},
		{name: "configured bibliography", findKeys: "paper.md", wantBib: "default.bib", wantMD: "paper.md"},
		{name: "explicit keys", args: []string{"refs.bib"}, keys: []string{"a2020bc"}, wantBib: "refs.bib", wantKeys: []string{"a2020bc"}},
		{
			name:     "keys after bibliography",
			args:     []string{"refs.bib", "b2021cd", "c2022ef"},
			keys:     []string{"a2020bc"},
			wantBib:  "refs.bib",
			wantKeys: []string{"a2020bc", "b2021cd", "c2022ef"},
		},
		{name: "no keys", args: []string{"refs.bib"}, wantErr: subset.ErrNoKeys},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := subsetConfig(tt.args, tt.findKeys, tt.keys)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBib, cfg.BibFile)
			assert.Equal(t, tt.wantMD, cfg.MarkdownFile)
			assert.Equal(t, tt.wantKeys, cfg.Keys)
		})
	}

	_, err := subsetConfig([]string{"refs.bib"}, "paper.md", []string{"a2020bc"})
	assert.Error(t, err, "--find-keys and --keys together")

	_, err = subsetConfig([]string{"refs.bib", "a.md", "b.md"}, "", nil)
	assert.Error(t, err, "two positional markdown files")

	_, err = subsetConfig([]string{"refs.bib", "a.md"}, "b.md", nil)
	assert.Error(t, err, "two different markdown files")
}

func TestSubsetConfigNoBibliography(t *testing.T) {
	_, err := subsetConfig(nil, "paper.md", nil)
	assert.ErrorIs(t, err, errNoBibliography)
}

func TestRootWritesSubsetDespiteMissingKey(t *testing.T) {
	dir := t.TempDir()
	bib := writeTemp(t, dir, "refs.bib", cliBib)
	md := writeTemp(t, dir, "paper.md", cliMarkdown)
	outPath := filepath.Join(dir, "paper.bib")

	_, err := execute(t, bib, md, "-o", outPath)
	require.Error(t, err)
	assert.True(t, errors.Is(err, bibliography.ErrKeyNotFound))
	assert.Equal(t, []string{"smyth2020ab"}, bibliography.MissingKeys(err))

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "@book{smith2020ab,")
	assert.NotContains(t, string(data), "lee2021cd")
}

func TestRootExplicitKeysToStdout(t *testing.T) {
	dir := t.TempDir()
	bib := writeTemp(t, dir, "refs.bib", cliBib)

	out, err := execute(t, bib, "--keys", "lee2021cd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "@misc{lee2021cd,"))
}

func TestRootSeveralKeysAfterFlag(t *testing.T) {
	dir := t.TempDir()
	bib := writeTemp(t, dir, "refs.bib", cliBib)

	out, err := execute(t, bib, "--keys", "smith2020ab", "lee2021cd")
	require.NoError(t, err)
	smith := strings.Index(out, "@book{smith2020ab,")
	lee := strings.Index(out, "@misc{lee2021cd,")
	require.GreaterOrEqual(t, smith, 0)
	assert.Greater(t, lee, smith)
}

func TestRootParseErrorLeavesNoOutput(t *testing.T) {
	dir := t.TempDir()
	bib := writeTemp(t, dir, "refs.bib", "@book{open2020ab,\n  title = {never closed\n")
	outPath := filepath.Join(dir, "out.bib")

	_, err := execute(t, bib, "--keys", "open2020ab", "-o", outPath)
	require.Error(t, err)
	assert.ErrorIs(t, err, bibliography.ErrParse)

	_, statErr := os.Stat(outPath)
	assert.True(t, errors.Is(statErr, fs.ErrNotExist))
}

func TestKeysCommand(t *testing.T) {
	dir := t.TempDir()
	a := writeTemp(t, dir, "a.md", cliMarkdown)
	b := writeTemp(t, dir, "b.md", "Again [@smith2020ab] and [@lee2021cd].\n")

	out, err := execute(t, "keys", a, b)
	require.NoError(t, err)
	assert.Equal(t, "smith2020ab\nsmyth2020ab\nlee2021cd\n", out)

	out, err = execute(t, "keys", "--context", b)
	require.NoError(t, err)
	assert.Contains(t, out, "lee2021cd\t"+b+":1\t")
}

func TestLinkCommand(t *testing.T) {
	dir := t.TempDir()
	bib := writeTemp(t, dir, "refs.bib", cliBib)
	md := writeTemp(t, dir, "slides.md", "As argued [@smith2020ab].\n")

	out, err := execute(t, "link", bib, md)
	require.NoError(t, err)
	assert.Equal(t, "As argued ([smith 2020](https://example.org/smith)).\n", out)
}

func TestLoggingConfig(t *testing.T) {
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	require.NoError(t, rootCmd.ParseFlags(nil))
	cfg := loggingConfig(rootCmd)
	assert.Equal(t, logging.Config{Level: "warn", Output: "stderr"}, cfg)

	require.NoError(t, rootCmd.ParseFlags([]string{"-VV", "--log-json", "--no-color", "-L"}))
	cfg = loggingConfig(rootCmd)
	assert.Equal(t, logging.Config{
		Level:   "debug",
		Output:  logging.DefaultLogFile,
		JSON:    true,
		NoColor: true,
	}, cfg)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "md2bib dev\n", out)
}
