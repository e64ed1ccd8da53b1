package extract

import (
	"context"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeResponse struct {
	body        string
	contentType string
	status      int // 0 means 200
}

// fakeFetcher serves canned responses and counts requests per URL.
// Unknown URLs are 404s.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]fakeResponse
	calls     map[string]int
}

func newFakeFetcher(responses map[string]fakeResponse) *fakeFetcher {
	if responses == nil {
		responses = make(map[string]fakeResponse)
	}
	return &fakeFetcher{responses: responses, calls: make(map[string]int)}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL string) (*Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[rawURL]++

	r, ok := f.responses[rawURL]
	if !ok {
		return nil, &FetchError{Kind: FetchNotFound, URL: rawURL, Status: 404}
	}
	switch {
	case r.status == 404:
		return nil, &FetchError{Kind: FetchNotFound, URL: rawURL, Status: 404}
	case r.status != 0 && r.status != 200:
		return nil, &FetchError{Kind: FetchHTTPStatus, URL: rawURL, Status: r.status}
	}
	return &Resource{URL: rawURL, ContentType: r.contentType, Body: []byte(r.body)}, nil
}

func (f *fakeFetcher) callsFor(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *fakeFetcher) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// newTestStore returns an HTML-mode store writing into a temp directory.
func newTestStore(t *testing.T, f Fetcher, opts ...func(*Config)) (*AssetStore, *LocalStorage) {
	t.Helper()
	storage := NewLocalStorage(t.TempDir())
	cfg := &Config{
		Directory:  storage.Root(),
		OutputMode: OutputHTML,
		Storage:    storage,
		Fetcher:    f,
	}
	for _, o := range opts {
		o(cfg)
	}
	return NewAssetStore(cfg), storage
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}
