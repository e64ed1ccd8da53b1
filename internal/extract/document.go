package extract

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/html"
	"golang.org/x/sync/errgroup"
)

// DocumentRewriter localizes the assets of one parsed page and rewrites the
// references in place.
type DocumentRewriter struct {
	store   *AssetStore
	page    *url.URL
	workers int
	log     *logrus.Logger
}

// NewDocumentRewriter returns a rewriter for a page located at page.
func NewDocumentRewriter(store *AssetStore, page *url.URL, workers int) *DocumentRewriter {
	if workers <= 0 {
		workers = 1
	}
	return &DocumentRewriter{store: store, page: page, workers: workers, log: store.log}
}

// localized is the outcome for one attribute value.
type localized struct {
	ref   string
	local string
	ok    bool
}

// stylesheetFile is a stored stylesheet whose contents still need rewriting.
type stylesheetFile struct {
	local    string
	resolved string
}

// Rewrite runs every rewriting step over doc in a fixed order: links,
// stylesheet links, src, data-src, <style> blocks, style attributes, then the
// contents of the stored stylesheets. Per-asset failures leave the original
// reference in place; only cancellation aborts.
func (r *DocumentRewriter) Rewrite(ctx context.Context, doc *goquery.Document) error {
	var links, sheets []*goquery.Selection
	doc.Find("link[href]").Each(func(_ int, sel *goquery.Selection) {
		if isStylesheetLink(sel) {
			sheets = append(sheets, sel)
		} else {
			links = append(links, sel)
		}
	})

	r.store.progress.Describe("Localizing links")
	if _, err := r.rewriteAttr(ctx, links, "href", false); err != nil {
		return err
	}

	r.store.progress.Describe("Localizing stylesheets")
	sheetResults, err := r.rewriteAttr(ctx, sheets, "href", true)
	if err != nil {
		return err
	}
	files := r.stylesheetFiles(sheetResults)

	r.store.progress.Describe("Localizing embedded assets")
	if _, err := r.rewriteAttr(ctx, selectionList(doc.Find("[src]")), "src", false); err != nil {
		return err
	}
	if _, err := r.rewriteAttr(ctx, selectionList(doc.Find("[data-src]")), "data-src", false); err != nil {
		return err
	}

	r.store.progress.Describe("Localizing inline CSS")
	doc.Find("style").Each(func(_ int, sel *goquery.Selection) {
		r.rewriteStyleNode(ctx, sel.Get(0))
	})
	if err := ctx.Err(); err != nil {
		return err
	}
	doc.Find("[style]").Each(func(_ int, sel *goquery.Selection) {
		if v, ok := sel.Attr("style"); ok {
			sel.SetAttr("style", r.store.RewriteCSS(ctx, r.page, v, 0))
		}
	})
	if err := ctx.Err(); err != nil {
		return err
	}

	r.store.progress.Describe("Localizing stylesheet contents")
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.rewriteStylesheetFile(ctx, f); err != nil {
			r.log.WithField("path", f.local).Error(err)
		}
	}
	return nil
}

// isStylesheetLink matches <link rel="stylesheet"> and <link type="text/css">.
func isStylesheetLink(sel *goquery.Selection) bool {
	if t, ok := sel.Attr("type"); ok && strings.EqualFold(strings.TrimSpace(t), "text/css") {
		return true
	}
	rel, _ := sel.Attr("rel")
	for _, tok := range strings.Fields(rel) {
		if strings.EqualFold(tok, "stylesheet") {
			return true
		}
	}
	return false
}

func selectionList(sel *goquery.Selection) []*goquery.Selection {
	out := make([]*goquery.Selection, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, s)
	})
	return out
}

// rewriteAttr localizes attr on every element of sels and writes the results
// back in document order. Fetches run on a worker pool when workers > 1.
func (r *DocumentRewriter) rewriteAttr(ctx context.Context, sels []*goquery.Selection, attr string, stylesheet bool) ([]localized, error) {
	refs := make([]string, len(sels))
	for i, sel := range sels {
		refs[i], _ = sel.Attr(attr)
	}

	results, err := r.localizeAll(ctx, refs, stylesheet)
	if err != nil {
		return nil, err
	}

	for i, res := range results {
		if res.ok {
			sels[i].SetAttr(attr, r.store.wrapPath(res.local))
		}
	}
	return results, nil
}

func (r *DocumentRewriter) localizeAll(ctx context.Context, refs []string, stylesheet bool) ([]localized, error) {
	results := make([]localized, len(refs))
	one := func(ctx context.Context, i int) {
		local, ok := r.store.localize(ctx, r.page, refs[i], stylesheet)
		results[i] = localized{ref: refs[i], local: local, ok: ok}
	}

	if r.workers == 1 || len(refs) < 2 {
		for i := range refs {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			one(ctx, i)
		}
		return results, nil
	}

	pool, err := ants.NewPool(r.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	g, gctx := errgroup.WithContext(ctx)
	for i := range refs {
		i := i
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			done := make(chan struct{})
			if err := pool.Submit(func() {
				defer close(done)
				one(gctx, i)
			}); err != nil {
				return fmt.Errorf("submit task: %w", err)
			}
			<-done
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// stylesheetFiles keeps one entry per stored stylesheet, in document order.
// References that could not be localized are reported and dropped.
func (r *DocumentRewriter) stylesheetFiles(results []localized) []stylesheetFile {
	seen := make(map[string]bool, len(results))
	var files []stylesheetFile
	for _, res := range results {
		if strings.TrimSpace(res.ref) == "" {
			continue
		}
		if !res.ok {
			r.log.WithField("href", res.ref).Errorf("%v: stylesheet was not localized", ErrMissingCSSCache)
			continue
		}
		if seen[res.local] {
			continue
		}
		seen[res.local] = true
		resolved, err := Resolve(r.page, res.ref)
		if err != nil {
			continue
		}
		files = append(files, stylesheetFile{local: res.local, resolved: resolved})
	}
	return files
}

// rewriteStylesheetFile rewrites a stored stylesheet against its own URL so
// nested relative references resolve from the stylesheet's location.
func (r *DocumentRewriter) rewriteStylesheetFile(ctx context.Context, f stylesheetFile) error {
	store := r.store.Storage()
	if !store.Exists(f.local) {
		return fmt.Errorf("%w: %s", ErrMissingCSSCache, f.local)
	}
	data, err := store.Get(f.local)
	if err != nil {
		return fmt.Errorf("read %s: %w", f.local, err)
	}
	origin, err := url.Parse(f.resolved)
	if err != nil {
		return fmt.Errorf("parse stylesheet URL %q: %w", f.resolved, err)
	}
	rewritten := r.store.RewriteCSS(ctx, origin, string(data), 1)
	if err := store.PutBytes(f.local, []byte(rewritten)); err != nil {
		return fmt.Errorf("write %s: %w", f.local, err)
	}
	r.store.markRewritten(f.local)
	return nil
}

// rewriteStyleNode rewrites URLs inside a <style> block.
func (r *DocumentRewriter) rewriteStyleNode(ctx context.Context, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			c.Data = r.store.RewriteCSS(ctx, r.page, c.Data, 0)
		}
	}
}
