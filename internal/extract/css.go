package extract

import (
	"context"
	"net/url"
	"regexp"
	"strings"
)

// reCSSURL captures everything between "url(" and the next ")". A ")" inside
// a quoted URL ends the match early; such references are left as found.
var reCSSURL = regexp.MustCompile(`url\(([^)]*)\)`)

// RewriteCSS localizes every url(...) reference in css, resolved against
// origin, and returns the rewritten text.
//
// prefixLevels is the depth of the stylesheet below the output root: 0 for
// <style> blocks and style attributes rewritten in place, 1 for stored
// stylesheet files. Each localized path gets that many "../" segments.
// In-place paths are wrapped for the output mode instead.
//
// Scanning resumes right after each inserted replacement, so text produced by
// a replacement is never matched again and nothing after it is skipped.
func (s *AssetStore) RewriteCSS(ctx context.Context, origin *url.URL, css string, prefixLevels int) string {
	if css == "" {
		return css
	}

	pos := 0
	for pos <= len(css) {
		loc := reCSSURL.FindStringSubmatchIndex(css[pos:])
		if loc == nil {
			break
		}
		matchEnd := pos + loc[1]
		capStart, capEnd := pos+loc[2], pos+loc[3]

		refStart, refEnd := unquoteSpan(css, capStart, capEnd)
		ref := css[refStart:refEnd]
		if ref == "" || isInlineData(ref) {
			pos = matchEnd
			continue
		}

		local, ok := s.localize(ctx, origin, ref, false)
		if !ok {
			pos = matchEnd
			continue
		}
		if prefixLevels > 0 {
			local = strings.Repeat("../", prefixLevels) + local
		} else {
			local = s.wrapPath(local)
		}

		css = css[:refStart] + local + css[refEnd:]
		pos = refStart + len(local)
	}
	return css
}

// unquoteSpan narrows [start,end) to exclude surrounding blanks and one
// layer of matching quotes.
func unquoteSpan(s string, start, end int) (int, int) {
	for start < end && isCSSSpace(s[start]) {
		start++
	}
	for end > start && isCSSSpace(s[end-1]) {
		end--
	}
	if end-start >= 2 {
		q := s[start]
		if (q == '"' || q == '\'') && s[end-1] == q {
			return start + 1, end - 1
		}
	}
	return start, end
}

func isCSSSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

// wrapPath applies the output mode to a path written into the document.
func (s *AssetStore) wrapPath(local string) string {
	if s.mode == OutputTemplate {
		return webfilePlaceholder(local)
	}
	return local
}
