package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Everything is stored as UTF-8. When a body was transcoded on the way in,
// the charset it declares about itself has to follow.

const utf8Charset = "utf-8"

// reCSSCharset matches a leading @charset rule. Only CSS can start with one.
var reCSSCharset = regexp.MustCompile(`^\x{FEFF}?@charset\s+("[^"]*"|'[^']*')\s*;`)

// declareCSSUTF8 replaces a leading @charset rule with one naming UTF-8.
func declareCSSUTF8(css string) string {
	loc := reCSSCharset.FindStringIndex(css)
	if loc == nil {
		return css
	}
	return `@charset "UTF-8";` + css[loc[1]:]
}

// declareHTMLUTF8 points <meta charset> and the http-equiv Content-Type
// declaration of doc at UTF-8.
func declareHTMLUTF8(doc *goquery.Document) {
	doc.Find("meta[charset]").SetAttr("charset", utf8Charset)
	doc.Find("meta[http-equiv]").Each(func(_ int, sel *goquery.Selection) {
		equiv, _ := sel.Attr("http-equiv")
		if !strings.EqualFold(strings.TrimSpace(equiv), "content-type") {
			return
		}
		sel.SetAttr("content", "text/html; charset="+utf8Charset)
	})
}
