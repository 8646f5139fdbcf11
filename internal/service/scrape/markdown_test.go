package scrape

import (
	"strings"
	"testing"
)

func TestCleanMarkdown(t *testing.T) {
	in := "  Hello world \u2018quoted\u2019\u200b  \n\n\n\n\tnext   line\t \n\ufb01le  "
	got := CleanMarkdown(in)
	want := "Hello world 'quoted'\n\nnext line\nfile"
	if got != want {
		t.Fatalf("CleanMarkdown mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRemoveInlineJS(t *testing.T) {
	in := "before //<![CDATA[\nfoo();\n//]]> middle var x = {a: 1}; after"
	got := RemoveInlineJS(in)
	if strings.Contains(got, "foo") || strings.Contains(got, "var x") {
		t.Fatalf("inline js not removed: %q", got)
	}
	if !strings.Contains(got, "before") || !strings.Contains(got, "middle") || !strings.Contains(got, "after") {
		t.Fatalf("content lost: %q", got)
	}
}

func TestToMarkdownOrderedListsAndCode(t *testing.T) {
	md, err := ToMarkdown(`<ol><li>one</li><li>two</li></ol><pre><code>x  := 1</code></pre><p>use <code>go</code> and <em>care</em></p>`)
	if err != nil {
		t.Fatalf("ToMarkdown err: %v", err)
	}
	md = CleanMarkdown(md)

	for _, want := range []string{"1. one", "2. two", "```\nx := 1\n```", "use `go` and *care*"} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in:\n%s", want, md)
		}
	}
}

func TestToMarkdownEscapesTextAndLinkTargets(t *testing.T) {
	md, err := ToMarkdown(`<p>2*3 = 6 in snake_case, but <code>a_b*c</code> stays</p>` +
		`<a href="https://x.test/a (b)">see</a> <img alt="map [north]" src="https://x.test/m (1).png">`)
	if err != nil {
		t.Fatalf("ToMarkdown err: %v", err)
	}

	for _, want := range []string{
		`2\*3 = 6 in snake\_case`,
		"`a_b*c`",
		"[see](https://x.test/a%20%28b%29)",
		`![map \[north\]](https://x.test/m%20%281%29.png)`,
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("expected %q in:\n%s", want, md)
		}
	}
}
