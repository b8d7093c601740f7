// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/md2bib/internal/link"
	"github.com/pdiddy/md2bib/pkg/types"
)

var linkCmd = &cobra.Command{
	Use:   "link [BIB_FILE] MARKDOWN_FILE",
	Short: "Rewrite markdown citations as inline hyperlinks",
	Long: `Link rewrites pandoc citations as readable inline links for documents
rendered without a bibliography, such as slides. [@smith2020ab, p. 3]
becomes ([Smith 2020](URL), p. 3) when the entry has a URL, or
Smith 2020, "Short title" when it has a short title.

Unknown keys are reported as warnings and left as the bare key.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runLink,
}

func init() {
	rootCmd.AddCommand(linkCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	var bibFile, mdFile string
	if len(args) == 2 {
		bibFile, mdFile = args[0], args[1]
	} else {
		mdFile = args[0]
	}
	cfg := types.LinkConfig{InputConfig: inputConfig(bibFile), MarkdownFile: mdFile}
	if cfg.BibFile == "" {
		return errNoBibliography
	}

	linker, err := link.Load(cfg, logger)
	if err != nil {
		return err
	}

	in, err := os.Open(cfg.MarkdownFile)
	if err != nil {
		return fmt.Errorf("reading markdown: %w", err)
	}
	defer in.Close()

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	if _, err := linker.Rewrite(in, out); err != nil {
		_ = closeOut()
		return err
	}
	return closeOut()
}
