// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package citekeys

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

const pandocCorpus = `WP@20 (or WP @ 20) was edited by joseph@email.com and jackie@email.com

The ancients were smart [@A1-5tt5; @A1-6tt6; @A12001tt1; @A12002tt2;
    @A12003tt3; @A12004tt4].

Blah blah [see @vanHall1984te, pp. 33-35; also @Smith1113fe, chap. 1].

Blah blah [@doe1985te, pp. 33-35, 38-39 and *passim*].

Blah blah [@smith2020teh; @smith2020teh1; @doe1984te].

Smith says blah [-@smith304jf].
You can also write an in-text citation, as follows:

@smith-304jf says blah.

@smith3bce [p. 33] says blah.

[@PhoebeC62Pretzels2009vk; @Thomas888bHaeB2011202]

@Statistician23andmestatistician23andme2014hmd.

Go {@forit2020bcr}.`

func TestExtractPandocCorpus(t *testing.T) {
	want := []string{
		"A1-5tt5",
		"A1-6tt6",
		"A12001tt1",
		"A12002tt2",
		"A12003tt3",
		"A12004tt4",
		"vanHall1984te",
		"Smith1113fe",
		"doe1985te",
		"smith2020teh",
		"smith2020teh1",
		"doe1984te",
		"smith304jf",
		"smith-304jf",
		"smith3bce",
		"PhoebeC62Pretzels2009vk",
		"Thomas888bHaeB2011202",
		"Statistician23andmestatistician23andme2014hmd",
		"forit2020bcr",
	}
	got := Keys(Extract(pandocCorpus))
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Extract() keys =\n%v\nwant\n%v", got, want)
	}
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		wantKeys []string
	}{
		{
			name:     "bracketed with locator",
			text:     "As shown [@smith2020] and [@lee2021, p. 4].",
			wantKeys: []string{"smith2020", "lee2021"},
		},
		{
			name:     "key at end of text",
			text:     "see @missing2099",
			wantKeys: []string{"missing2099"},
		},
		{
			name:     "key at end of line",
			text:     "first @jones2019\nsecond line",
			wantKeys: []string{"jones2019"},
		},
		{
			name:     "duplicates collapse",
			text:     "[@a2020bc] then @a2020bc, and again [-@a2020bc].",
			wantKeys: []string{"a2020bc"},
		},
		{
			name:     "curly key",
			text:     "Go @{braced2020ab}.",
			wantKeys: []string{"braced2020ab"},
		},
		{
			name:     "unicode author",
			text:     "[@Müller2019ab]",
			wantKeys: []string{"Müller2019ab"},
		},
		{
			name:     "no digits is not a key",
			text:     "mail joe@example.com or @handle now",
			wantKeys: nil,
		},
		{
			name:     "no citations",
			text:     "This sentence has no citations at all.",
			wantKeys: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			citations := Extract(tt.text)
			var gotKeys []string
			for _, c := range citations {
				gotKeys = append(gotKeys, c.Key)
			}
			if !reflect.DeepEqual(gotKeys, tt.wantKeys) {
				t.Errorf("got keys %v, want %v", gotKeys, tt.wantKeys)
			}
		})
	}
}

func TestExtractLineAndContext(t *testing.T) {
	text := "Intro line.\n\nA claim by [@smith2020ab, p. 3] holds.\nLater @smith2020ab again and @lee2021cd."
	citations := Extract(text)
	if len(citations) != 2 {
		t.Fatalf("got %d citations, want 2", len(citations))
	}

	first := citations[0]
	if first.Line != 3 {
		t.Errorf("first.Line = %d, want 3", first.Line)
	}
	if first.Context != "Intro line. A claim by [@smith2020ab, p. 3] holds. Later" {
		t.Errorf("first.Context = %q", first.Context)
	}

	second := citations[1]
	if second.Key != "lee2021cd" || second.Line != 4 {
		t.Errorf("second = %+v, want lee2021cd on line 4", second)
	}
}

func TestExtractMarkdownSkipCode(t *testing.T) {
	src := []byte("Real [@real2020ab].\n\n" +
		"Inline `see @span2020ab here` code.\n\n" +
		"```\n@fenced2020ab\n```\n\n" +
		"    @indented2020ab\n\n" +
		"After @after2021cd.\n")

	all := Keys(ExtractMarkdown(src, Options{}))
	wantAll := []string{"real2020ab", "span2020ab", "fenced2020ab", "indented2020ab", "after2021cd"}
	if !reflect.DeepEqual(all, wantAll) {
		t.Errorf("default keys = %v, want %v", all, wantAll)
	}

	masked := ExtractMarkdown(src, Options{SkipCode: true})
	wantMasked := []string{"real2020ab", "after2021cd"}
	if got := Keys(masked); !reflect.DeepEqual(got, wantMasked) {
		t.Errorf("SkipCode keys = %v, want %v", got, wantMasked)
	}
	// Masking keeps line breaks, so positions still refer to the source.
	if masked[1].Line != 11 {
		t.Errorf("after2021cd line = %d, want 11", masked[1].Line)
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "paper.md")
	if err := os.WriteFile(path, []byte("Cite [@file2020ab]."), 0o644); err != nil {
		t.Fatal(err)
	}

	citations, err := ExtractFile(path, Options{})
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got := Keys(citations); !reflect.DeepEqual(got, []string{"file2020ab"}) {
		t.Errorf("keys = %v", got)
	}

	if _, err := ExtractFile(filepath.Join(dir, "absent.md"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseKeyList(t *testing.T) {
	tests := []struct {
		name   string
		values []string
		want   []string
	}{
		{"single", []string{"smith2020"}, []string{"smith2020"}},
		{"comma delimited", []string{"smith2020, jones2019,lee2021"}, []string{"smith2020", "jones2019", "lee2021"}},
		{"newline delimited", []string{"smith2020\njones2019\n"}, []string{"smith2020", "jones2019"}},
		{"repeated flags", []string{"a2020xx", "@b2021yy", "a2020xx"}, []string{"a2020xx", "b2021yy"}},
		{"empty", []string{" , "}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseKeyList(tt.values)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseKeyList(%q) = %v, want %v", tt.values, got, tt.want)
			}
		})
	}
}
