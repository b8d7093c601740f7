// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/md2bib/internal/citekeys"
)

var keysCmd = &cobra.Command{
	Use:   "keys MARKDOWN_FILE...",
	Short: "List the citation keys used in markdown files",
	Long: `Keys scans markdown files for pandoc citations and prints each key once,
in order of first appearance. With --context each line also shows where
the key was first cited and the surrounding text.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runKeys,
}

func init() {
	keysCmd.Flags().Bool("context", false, "show file:line and surrounding text for each key")

	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	withContext, _ := cmd.Flags().GetBool("context")
	opts := citekeys.Options{SkipCode: viper.GetBool("skip_code")}

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}

	seen := make(map[string]bool)
	total := 0
	for _, path := range args {
		citations, err := citekeys.ExtractFile(path, opts)
		if err != nil {
			_ = closeOut()
			return err
		}
		logger.Debug().Str("file", path).Int("keys", len(citations)).Msg("scanned markdown")
		for _, c := range citations {
			if seen[c.Key] {
				continue
			}
			seen[c.Key] = true
			total++
			if err := writeKey(out, path, c, withContext); err != nil {
				_ = closeOut()
				return fmt.Errorf("writing keys: %w", err)
			}
		}
	}
	logger.Info().Int("files", len(args)).Int("keys", total).Msg("keys listed")
	return closeOut()
}

func writeKey(w io.Writer, path string, c citekeys.Citation, withContext bool) error {
	var err error
	if withContext {
		_, err = fmt.Fprintf(w, "%s\t%s:%d\t%s\n", c.Key, path, c.Line, c.Context)
	} else {
		_, err = fmt.Fprintln(w, c.Key)
	}
	return err
}
