package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	// Localized paths are marked with these while the tree is mutable; the
	// renderer would escape the quotes of a real webfile tag.
	webfileStartMarker = "===webfiles_start_tag==="
	webfileEndMarker   = "===webfiles_end_tag==="

	webfileStartTag = `<@hst.webfile path="`
	webfileEndTag   = `"/>`
	templateImport  = "<#include \"../include/imports.ftl\">\n"

	HTMLFileName      = "index.html"
	TemplateFileName  = "base-layout.ftl"
	WhitelistFileName = "hst-whitelist.txt"
	ManifestFileName  = "manifest.yaml"
)

var webfileExpander = strings.NewReplacer(
	webfileStartMarker, webfileStartTag,
	webfileEndMarker, webfileEndTag,
)

func webfilePlaceholder(local string) string {
	return webfileStartMarker + local + webfileEndMarker
}

// Renderer serializes the rewritten document.
type Renderer interface {
	// FileName is the page file written at the output root.
	FileName() string
	Render(doc *goquery.Document) ([]byte, error)
}

// RendererFor returns the Renderer for mode.
func RendererFor(mode OutputMode) Renderer {
	if mode == OutputHTML {
		return HTMLRenderer{}
	}
	return TemplateRenderer{}
}

// HTMLRenderer writes the tree back as plain HTML.
type HTMLRenderer struct{}

func (HTMLRenderer) FileName() string { return HTMLFileName }

func (HTMLRenderer) Render(doc *goquery.Document) ([]byte, error) {
	return renderNodes(doc)
}

// TemplateRenderer writes a FreeMarker layout: an imports include followed by
// the markup, with every marked path turned into a webfile tag.
type TemplateRenderer struct{}

func (TemplateRenderer) FileName() string { return TemplateFileName }

func (TemplateRenderer) Render(doc *goquery.Document) ([]byte, error) {
	data, err := renderNodes(doc)
	if err != nil {
		return nil, err
	}
	return []byte(templateImport + webfileExpander.Replace(string(data))), nil
}

func renderNodes(doc *goquery.Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, n := range doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("render: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// WhitelistContent lists the asset folders that must be publicly served,
// one "folder/" per line, relative to the output root.
func WhitelistContent(folders []string) string {
	var b strings.Builder
	b.WriteString("# Web files that must be publicly available over HTTP.\n")
	b.WriteString("# Entries are prefixes relative to the folder holding this file;\n")
	b.WriteString("# \"css/\" whitelists everything below css/.\n\n")
	for _, f := range folders {
		b.WriteString(f)
		b.WriteString("/\n")
	}
	return b.String()
}
