// Command docgen renders docs/presets/*.md, short explanations of
// each preset interpretation keyword front-mattered with the
// interpretation they document, into the generated Go source the
// CLI's --help long-form text pulls from. Run via `go generate` from
// pkg/bridgecli; never invoked at runtime.
package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

type doc struct {
	Interpretation string
	Title          string
	Body           string
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docgen:", err)
		os.Exit(1)
	}
}

func run() error {
	srcDir := "../../docs/presets"
	outPath := "docs_generated.go"
	if len(os.Args) > 1 {
		srcDir = os.Args[1]
	}
	if len(os.Args) > 2 {
		outPath = os.Args[2]
	}

	matches, err := filepath.Glob(filepath.Join(srcDir, "*.md"))
	if err != nil {
		return fmt.Errorf("glob %s: %w", srcDir, err)
	}
	if len(matches) == 0 {
		return fmt.Errorf("no markdown files found under %s", srcDir)
	}
	sort.Strings(matches)

	md := goldmark.New(
		goldmark.WithExtensions(meta.Meta),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)

	docs := make([]doc, 0, len(matches))
	for _, path := range matches {
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		ctx := parser.NewContext()
		var buf bytes.Buffer
		if err := md.Convert(raw, &buf, parser.WithContext(ctx)); err != nil {
			return fmt.Errorf("convert %s: %w", path, err)
		}
		frontMatter := meta.Get(ctx)
		interp, _ := frontMatter["interpretation"].(string)
		title, _ := frontMatter["title"].(string)
		if interp == "" {
			return fmt.Errorf("%s: missing required front-matter key %q", path, "interpretation")
		}
		body := strings.TrimSpace(stripTags(buf.String()))
		if title != "" {
			body = title + "\n\n" + body
		}
		docs = append(docs, doc{Interpretation: interp, Title: title, Body: body})
	}

	var out bytes.Buffer
	if err := tmpl.Execute(&out, docs); err != nil {
		return fmt.Errorf("render template: %w", err)
	}
	if err := os.WriteFile(outPath, out.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	return nil
}

// stripTags is a deliberately minimal HTML-tag stripper: docgen's
// source docs are plain paragraphs and inline code spans, not full
// markup, so a tag-boundary scan is enough to recover readable
// plain text for a terminal --help screen.
func stripTags(htmlSrc string) string {
	var b strings.Builder
	inTag := false
	for _, r := range htmlSrc {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

var tmpl = template.Must(template.New("docs").Parse(`// Code generated by cmd/docgen from docs/presets/*.md. DO NOT EDIT.

package bridgecli

// presetDocs maps a preset "interpretation" keyword to the long-form
// explanation rendered from its docs/presets/*.md source.
var presetDocs = map[string]string{
{{- range . }}
	{{ printf "%q" .Interpretation }}: {{ printf "%q" .Body }},
{{- end }}
}
`))
