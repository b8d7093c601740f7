// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// InputConfig holds the settings shared by every command that reads a
// bibliography and markdown.
type InputConfig struct {
	// BibFile is the bibliography path. When empty the configured default
	// bibliography (config key "bibliography") is used.
	BibFile string `json:"bibliography" yaml:"bibliography" mapstructure:"bibliography"`

	// Format forces the bibliography format: "bibtex", "yaml", or "" to
	// detect it from the extension and content.
	Format string `json:"format" yaml:"format" mapstructure:"format"`

	// SkipCode ignores citations inside markdown code spans and code blocks.
	// Off by default: the plain scan reports every @key in the text.
	SkipCode bool `json:"skip_code" yaml:"skip_code" mapstructure:"skip_code"`
}

// SubsetConfig holds settings for extracting a bibliography subset.
type SubsetConfig struct {
	InputConfig `yaml:",inline" mapstructure:",squash"`

	// MarkdownFile is the document whose citations select entries.
	MarkdownFile string `json:"markdown_file" yaml:"markdown_file"`

	// Keys lists explicit citation keys; used when MarkdownFile is empty.
	Keys []string `json:"keys,omitempty" yaml:"keys,omitempty"`
}

// LinkConfig holds settings for rewriting citations as hyperlinks.
type LinkConfig struct {
	InputConfig `yaml:",inline" mapstructure:",squash"`

	// MarkdownFile is the document to rewrite.
	MarkdownFile string `json:"markdown_file" yaml:"markdown_file"`
}

// LogConfig holds diagnostic output settings.
type LogConfig struct {
	// Level is the zerolog level name (trace, debug, info, warn, error).
	Level string `json:"log_level" yaml:"log_level" mapstructure:"log_level"`

	// ToFile sends diagnostics to md2bib.log instead of stderr.
	ToFile bool `json:"log_to_file" yaml:"log_to_file" mapstructure:"log_to_file"`

	// JSON writes stderr logs as JSON lines. Log files are always JSON.
	JSON bool `json:"log_json" yaml:"log_json" mapstructure:"log_json"`

	// NoColor disables colored console logs. NO_COLOR is honored as well.
	NoColor bool `json:"no_color" yaml:"no_color" mapstructure:"no_color"`
}
