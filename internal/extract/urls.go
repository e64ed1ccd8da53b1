package extract

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/net/idna"
)

// SourceURL holds the canonical form of the page URL given on the command line.
type SourceURL struct {
	CanonicalURL string
	BareHost     string // hostname without www.
	UnicodeHost  string // IDN-decoded hostname
}

// NormalizeSourceURL parses and normalises the user-supplied URL/domain input.
func NormalizeSourceURL(input string) (*SourceURL, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, fmt.Errorf("empty URL")
	}
	// Auto-prepend scheme if missing
	if !strings.Contains(input, "://") {
		input = "https://" + input
	}

	u, err := url.Parse(input)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return nil, fmt.Errorf("missing host")
	}

	bareHost := host
	if strings.HasPrefix(strings.ToLower(bareHost), "www.") {
		bareHost = bareHost[4:]
	}

	unicodeHost := bareHost
	if decoded, err := idna.ToUnicode(bareHost); err == nil {
		unicodeHost = decoded
	}

	if u.Path == "" {
		u.Path = "/"
	}
	u.Fragment = ""

	return &SourceURL{
		CanonicalURL: u.String(),
		BareHost:     bareHost,
		UnicodeHost:  unicodeHost,
	}, nil
}

// Resolve turns ref into a fully qualified URL using origin as context.
//
//   - scheme and host present: returned unchanged
//   - "//host/p": origin's scheme is prefixed
//   - "/p": joined to origin's scheme and host
//   - anything else: relative to origin's directory
//
// The fragment of a relative reference is dropped since it never reaches the
// server. Resolve does no I/O.
func Resolve(origin *url.URL, ref string) (string, error) {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	if u.Scheme != "" && u.Host != "" {
		return ref, nil
	}
	if origin == nil {
		return "", fmt.Errorf("relative reference %q without origin", ref)
	}
	resolved := origin.ResolveReference(u)
	resolved.Fragment = ""
	resolved.RawFragment = ""
	return resolved.String(), nil
}

// isFetchable reports whether rawURL uses a scheme the fetcher understands.
func isFetchable(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// isInlineData reports whether ref embeds its payload and must never be fetched.
func isInlineData(ref string) bool {
	return len(ref) >= 5 && strings.EqualFold(ref[:5], "data:")
}

// IsHTMLFile returns true when the path/content-type/magic bytes indicate HTML.
func IsHTMLFile(filePath, contentType string, firstBytes []byte) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "text/html") {
		return true
	}
	ext := strings.ToLower(path.Ext(filePath))
	if ext == ".html" || ext == ".htm" {
		return true
	}
	if len(firstBytes) > 0 {
		b := firstBytes
		// skip BOM
		if len(b) >= 3 && b[0] == 0xEF && b[1] == 0xBB && b[2] == 0xBF {
			b = b[3:]
		}
		if strings.HasPrefix(strings.TrimSpace(string(b)), "<") {
			return true
		}
	}
	return false
}
