// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the md2bib CLI.
// md2bib reads a BibTeX or CSL YAML bibliography and writes the subset of
// entries cited by a pandoc markdown document.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/md2bib/internal/logging"
	"github.com/pdiddy/md2bib/internal/subset"
	"github.com/pdiddy/md2bib/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

var errNoBibliography = errors.New(`no bibliography given: pass BIB_FILE or set "bibliography" in the config`)

var (
	// logger is configured in PersistentPreRunE from -V, -L and log_level.
	logger    = zerolog.Nop()
	logCloser io.Closer
)

// rootCmd extracts a bibliography subset. Subcommands cover key listing
// and citation hyperlinking.
var rootCmd = &cobra.Command{
	Use:   "md2bib [BIB_FILE] [MARKDOWN_FILE | --keys KEY...]",
	Short: "Extract the bibliography entries cited by a markdown document",
	Long: `md2bib reads a BibTeX (.bib) or CSL YAML (.yaml) bibliography and writes
only the entries cited in a pandoc markdown document, or named with --keys.
Entries are copied verbatim in their original order and format.

When BIB_FILE is omitted the configured "bibliography" is used. Keys that
are not in the bibliography are reported and the subset is still written,
but md2bib exits non-zero.`,
	Example: `  md2bib refs.bib paper.md -o paper.bib
  md2bib refs.yaml --keys smith2020ab,lee2021cd
  md2bib refs.yaml --keys smith2020ab lee2021cd
  md2bib -f paper.md`,
	Args:          cobra.ArbitraryArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loadEnvFiles()
		return setupLogger(cmd)
	},
	RunE: runSubset,
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default: ./md2bib.yaml or ~/.config/md2bib/md2bib.yaml)")
	pf.String("format", "", "bibliography format: bibtex or yaml (default: detect)")
	pf.Bool("skip-code", false, "ignore citations inside markdown code spans and blocks")
	pf.StringP("output", "o", "", "write output to this file instead of stdout")
	pf.CountP("verbose", "V", "increase log verbosity (-V info, -VV debug, -VVV trace)")
	pf.BoolP("log-to-file", "L", false, "write logs to "+logging.DefaultLogFile)
	pf.Bool("log-json", false, "write stderr logs as JSON lines")
	pf.Bool("no-color", false, "disable colored log output")

	rootCmd.Flags().StringP("find-keys", "f", "", "markdown file to scan for citation keys")
	rootCmd.Flags().StringSliceP("keys", "k", nil, "citation keys to extract instead of scanning markdown")

	_ = viper.BindPFlag("format", pf.Lookup("format"))
	_ = viper.BindPFlag("skip_code", pf.Lookup("skip-code"))
	_ = viper.BindPFlag("log_to_file", pf.Lookup("log-to-file"))
	_ = viper.BindPFlag("log_json", pf.Lookup("log-json"))
	_ = viper.BindPFlag("no_color", pf.Lookup("no-color"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("md2bib")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "md2bib"))
		}
	}

	viper.SetEnvPrefix("MD2BIB")
	viper.AutomaticEnv()
	_ = viper.BindEnv("log_level", "MD2BIB_LOG_LEVEL", "LOG_LEVEL")

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadEnvFiles loads .env.local then .env. Variables already set win, so
// .env.local overrides .env and the real environment overrides both.
func loadEnvFiles() {
	for _, name := range []string{".env.local", ".env"} {
		_ = godotenv.Load(name)
	}
}

// setupLogger builds the logger from loggingConfig.
func setupLogger(cmd *cobra.Command) error {
	l, closer, err := logging.New(loggingConfig(cmd))
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	logger, logCloser = l, closer
	return nil
}

// loggingConfig resolves logger settings. -V takes precedence over the
// log_level setting; -L or log_to_file sends JSON logs to md2bib.log.
func loggingConfig(cmd *cobra.Command) logging.Config {
	logCfg := types.LogConfig{
		Level:   viper.GetString("log_level"),
		ToFile:  viper.GetBool("log_to_file"),
		JSON:    viper.GetBool("log_json"),
		NoColor: viper.GetBool("no_color"),
	}
	if n, _ := cmd.Flags().GetCount("verbose"); n > 0 || logCfg.Level == "" {
		logCfg.Level = logging.LevelFromVerbosity(n)
	}

	cfg := logging.Config{
		Level:   logCfg.Level,
		Output:  "stderr",
		JSON:    logCfg.JSON,
		NoColor: logCfg.NoColor,
	}
	if logCfg.ToFile {
		cfg.Output = logging.DefaultLogFile
	}
	return cfg
}

func runSubset(cmd *cobra.Command, args []string) error {
	findKeys, _ := cmd.Flags().GetString("find-keys")
	keys, _ := cmd.Flags().GetStringSlice("keys")

	cfg, err := subsetConfig(args, findKeys, keys)
	if err != nil {
		return err
	}

	res, err := subset.Build(cfg, logger)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	if err := res.Subset.Write(out); err != nil {
		_ = closeOut()
		return fmt.Errorf("writing subset: %w", err)
	}
	if err := closeOut(); err != nil {
		return fmt.Errorf("writing subset: %w", err)
	}
	return res.Err
}

// subsetConfig resolves positional arguments, flags and configuration
// into a SubsetConfig. With --keys, positional arguments after BIB_FILE
// are further keys; otherwise the second one is the markdown file.
func subsetConfig(args []string, findKeys string, keys []string) (types.SubsetConfig, error) {
	cfg := types.SubsetConfig{
		InputConfig: inputConfig(""),
	}
	if len(args) > 0 {
		cfg.BibFile = args[0]
	}
	if cfg.BibFile == "" {
		return cfg, errNoBibliography
	}

	if len(keys) > 0 {
		if findKeys != "" {
			return cfg, fmt.Errorf("use either a markdown file or --keys, not both")
		}
		cfg.Keys = append(append([]string(nil), keys...), args[1:]...)
		return cfg, nil
	}

	switch {
	case len(args) > 2:
		return cfg, fmt.Errorf("too many arguments: expected BIB_FILE and one MARKDOWN_FILE, got %d", len(args))
	case len(args) > 1 && findKeys != "" && args[1] != findKeys:
		return cfg, fmt.Errorf("markdown file given twice: %s and --find-keys %s", args[1], findKeys)
	case len(args) > 1:
		cfg.MarkdownFile = args[1]
	default:
		cfg.MarkdownFile = findKeys
	}

	if cfg.MarkdownFile == "" {
		return cfg, subset.ErrNoKeys
	}
	return cfg, nil
}

// inputConfig returns the shared input settings. bibFile falls back to
// the configured default bibliography.
func inputConfig(bibFile string) types.InputConfig {
	if bibFile == "" {
		bibFile = viper.GetString("bibliography")
	}
	return types.InputConfig{
		BibFile:  bibFile,
		Format:   viper.GetString("format"),
		SkipCode: viper.GetBool("skip_code"),
	}
}

// openOutput returns the -o file, or the command's stdout when -o is unset
// or "-". The file is created only when called, so failed runs leave no
// partial output behind.
func openOutput(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("output")
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output: %w", err)
	}
	return f, f.Close, nil
}

func main() {
	err := rootCmd.Execute()
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
