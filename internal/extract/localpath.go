package extract

import (
	"crypto/sha1" //nolint:gosec // G505: fingerprint only, not a security boundary
	"encoding/base64"
	"net/url"
	"path"
	"strings"

	sanitize "github.com/mrz1836/go-sanitize"
)

// fingerprintBytes is how much of the SHA-1 digest ends up in a filename.
const fingerprintBytes = 5

// Fingerprint returns a short URL-safe digest of resolvedURL.
func Fingerprint(resolvedURL string) string {
	sum := sha1.Sum([]byte(resolvedURL)) //nolint:gosec // G401
	return base64.RawURLEncoding.EncodeToString(sum[:fingerprintBytes])
}

// Allocate returns the storage path for resolvedURL:
// "<folder>/<stem>-<fingerprint>.<ext>". All assets of a category share one
// flat folder, so the fingerprint keeps same-named files from different URLs
// apart. The result depends only on its arguments.
func Allocate(resolvedURL string, cat Category) string {
	fileName := lastSegment(resolvedURL)
	ext := Extension(fileName)

	stem := fileName
	if i := strings.LastIndexByte(fileName, '.'); i >= 0 {
		stem = fileName[:i]
	}
	stem = sanitizeStem(stem)

	name := stem + "-" + Fingerprint(resolvedURL)
	if ext != "" {
		if e := sanitize.PathName(ext); e != "" {
			name += "." + strings.ToLower(e)
		}
	}
	return cat.Folder() + "/" + name
}

// lastSegment returns the decoded final path segment of rawURL.
func lastSegment(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	p := u.Path
	if p == "" || strings.HasSuffix(p, "/") {
		return ""
	}
	return path.Base(p)
}

// sanitizeStem keeps [a-zA-Z0-9_-] so the name is safe on every filesystem.
// Dots inside the stem (jquery.min) become underscores rather than vanish.
func sanitizeStem(stem string) string {
	s := sanitize.PathName(strings.ReplaceAll(stem, ".", "_"))
	if s == "" {
		return "file"
	}
	return s
}
