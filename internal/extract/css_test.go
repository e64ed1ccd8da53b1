package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRewriteCSSResolvesAgainstStylesheet(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/css/icon.svg": {body: "<svg/>", contentType: "image/svg+xml"},
	})
	store, storage := newTestStore(t, f)

	got := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/css/a.css"), "a{background:url('icon.svg')}", 0)
	local := "fonts/icon-" + Fingerprint("http://x.com/css/icon.svg") + ".svg"
	assert.Equal(t, "a{background:url('"+local+"')}", got)
	assert.True(t, storage.Exists(local))
}

func TestRewriteCSSPrefixesStoredStylesheets(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/img/bg.png": {body: "png"},
	})
	store, _ := newTestStore(t, f)

	got := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/css/a.css"), `body{background:url("../img/bg.png") no-repeat}`, 1)
	want := `body{background:url("../images/bg-` + Fingerprint("http://x.com/img/bg.png") + `.png") no-repeat}`
	assert.Equal(t, want, got)
}

func TestRewriteCSSInlineDataUntouched(t *testing.T) {
	f := newFakeFetcher(nil)
	store, _ := newTestStore(t, f)

	css := `.a{background:url(data:image/png;base64,AAAA)} .b{background:url( "data:image/gif;base64,R0lG" )}`
	assert.Equal(t, css, store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/"), css, 0))
	assert.Equal(t, 0, f.totalCalls())
}

func TestRewriteCSSAdjacentReferences(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/a.png": {body: "a"},
		"http://x.com/b.png": {body: "b"},
	})
	store, _ := newTestStore(t, f)

	got := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/"), "url(a.png)url(b.png)", 0)
	want := "url(images/a-" + Fingerprint("http://x.com/a.png") + ".png)url(images/b-" + Fingerprint("http://x.com/b.png") + ".png)"
	assert.Equal(t, want, got)
}

// A failed reference stays as written and does not stop later ones.
func TestRewriteCSSFailureContinues(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/ok.woff": {body: "woff"},
	})
	store, _ := newTestStore(t, f)

	css := "@font-face{src:url(gone.woff),url(ok.woff)}"
	got := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/"), css, 0)
	assert.Equal(t, "@font-face{src:url(gone.woff),url(fonts/ok-"+Fingerprint("http://x.com/ok.woff")+".woff)}", got)
	assert.Equal(t, 1, f.callsFor("http://x.com/gone.woff"))
}

func TestRewriteCSSTemplateMode(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/bg.jpg": {body: "jpg"},
	})
	store, _ := newTestStore(t, f, func(c *Config) { c.OutputMode = OutputTemplate })
	local := "images/bg-" + Fingerprint("http://x.com/bg.jpg") + ".jpg"

	inline := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/"), "url(bg.jpg)", 0)
	assert.Equal(t, "url("+webfileStartMarker+local+webfileEndMarker+")", inline)

	stored := store.RewriteCSS(context.Background(), mustParseURL(t, "http://x.com/"), "url(bg.jpg)", 1)
	assert.Equal(t, "url(../"+local+")", stored)
}

func TestRewriteCSSWhitespaceAndNoRefs(t *testing.T) {
	f := newFakeFetcher(map[string]fakeResponse{
		"http://x.com/p.gif": {body: "gif"},
	})
	store, _ := newTestStore(t, f)
	origin := mustParseURL(t, "http://x.com/")

	got := store.RewriteCSS(context.Background(), origin, "url(  p.gif\n)", 0)
	assert.Equal(t, "url(  images/p-"+Fingerprint("http://x.com/p.gif")+".gif\n)", got)

	for _, css := range []string{"", "body{color:red}", "url()", "url('')"} {
		assert.Equal(t, css, store.RewriteCSS(context.Background(), origin, css, 0))
	}
}

func TestUnquoteSpan(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{`'a.png'`, "a.png"},
		{`"a.png"`, "a.png"},
		{` "a.png" `, "a.png"},
		{`'a.png"`, `'a.png"`},
		{`a.png`, "a.png"},
		{`'`, `'`},
		{`''`, ""},
	}
	for _, tc := range cases {
		s, e := unquoteSpan(tc.in, 0, len(tc.in))
		assert.Equal(t, tc.want, tc.in[s:e], "unquoteSpan(%q)", tc.in)
	}
}
