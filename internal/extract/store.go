package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// AssetStore answers "what is the local path for this remote asset",
// fetching and writing each distinct resolved URL at most once.
type AssetStore struct {
	storage        Storage
	fetcher        Fetcher
	log            *logrus.Logger
	index          *AssetIndex
	progress       *Progress
	downloadVideos bool
	mode           OutputMode

	// inflight serialises the exists-check/fetch/write sequence per local path.
	inflight singleflight.Group

	// rewritten holds stylesheets whose stored copy already carries local
	// paths; a refetch would put the remote text back.
	rewrittenMu sync.Mutex
	rewritten   map[string]bool
}

// NewAssetStore wires a store from cfg. Storage and Fetcher default to
// LocalStorage rooted at cfg.Directory and an HTTPFetcher.
func NewAssetStore(cfg *Config) *AssetStore {
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = NewHTTPFetcher(cfg)
	}
	return &AssetStore{
		storage:        cfg.storage(),
		fetcher:        fetcher,
		log:            cfg.logger(),
		index:          NewAssetIndex(),
		progress:       cfg.Progress,
		downloadVideos: cfg.DownloadVideos,
		mode:           cfg.OutputMode,
		rewritten:      make(map[string]bool),
	}
}

// markRewritten records that the stylesheet at local has been rewritten.
func (s *AssetStore) markRewritten(local string) {
	s.rewrittenMu.Lock()
	defer s.rewrittenMu.Unlock()
	s.rewritten[local] = true
}

func (s *AssetStore) isRewritten(local string) bool {
	s.rewrittenMu.Lock()
	defer s.rewrittenMu.Unlock()
	return s.rewritten[local]
}

// Index returns the outcomes recorded so far.
func (s *AssetStore) Index() *AssetIndex { return s.index }

// Storage returns the storage assets are written to.
func (s *AssetStore) Storage() Storage { return s.storage }

// Localize returns the local path for ref resolved against origin, fetching
// the asset when needed. On any skip or failure ref is returned unchanged so
// the document keeps pointing at the remote copy.
func (s *AssetStore) Localize(ctx context.Context, origin *url.URL, ref string) string {
	local, _ := s.localize(ctx, origin, ref, false)
	return local
}

// LocalizeStylesheet is Localize for a reference known to be a stylesheet.
// The stored copy is refreshed, whatever the extension says, because its
// contents are rewritten after every fetch. A stylesheet already rewritten
// during this run is reused as is.
func (s *AssetStore) LocalizeStylesheet(ctx context.Context, origin *url.URL, ref string) string {
	local, _ := s.localize(ctx, origin, ref, true)
	return local
}

// localize reports whether ref was replaced by a local path.
func (s *AssetStore) localize(ctx context.Context, origin *url.URL, ref string, stylesheet bool) (string, bool) {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" || isInlineData(trimmed) {
		return ref, false
	}

	resolved, err := Resolve(origin, trimmed)
	if err != nil {
		s.log.WithField("ref", trimmed).Debugf("unresolvable reference: %v", err)
		s.index.Register(trimmed, AssetRecord{Status: StatusSkipped, Error: err.Error()})
		return ref, false
	}
	if !isFetchable(resolved) {
		s.index.Register(trimmed, AssetRecord{ResolvedURL: resolved, Status: StatusSkipped})
		return ref, false
	}

	cat, binary := Classify(lastSegment(resolved))
	if cat == CategoryVideo && !s.downloadVideos {
		s.log.WithField("url", resolved).Debug("video download disabled, keeping remote reference")
		s.index.Register(trimmed, AssetRecord{ResolvedURL: resolved, Category: cat.String(), Status: StatusSkipped})
		return ref, false
	}

	local := Allocate(resolved, cat)
	refetch := (stylesheet || cat == CategoryStylesheet) && !s.isRewritten(local)

	v, err, _ := s.inflight.Do(local, func() (any, error) {
		return s.fetchInto(ctx, resolved, local, binary, refetch)
	})
	if err != nil {
		s.index.Register(trimmed, AssetRecord{
			ResolvedURL: resolved,
			Category:    cat.String(),
			Status:      StatusFailed,
			Error:       err.Error(),
		})
		return ref, false
	}

	s.index.Register(trimmed, AssetRecord{
		ResolvedURL: resolved,
		LocalPath:   local,
		Category:    cat.String(),
		Status:      v.(AssetStatus),
	})
	s.progress.Inc()
	return local, true
}

// fetchInto stores resolvedURL at local unless a stored copy may be reused.
func (s *AssetStore) fetchInto(ctx context.Context, resolvedURL, local string, binary, refetch bool) (AssetStatus, error) {
	if !refetch && s.storage.Exists(local) {
		s.log.WithField("path", local).Info("file already exists")
		return StatusCached, nil
	}

	res, err := s.fetcher.Fetch(ctx, resolvedURL)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			s.log.WithField("url", resolvedURL).Errorf("fetch failed: %v", err)
		}
		return "", err
	}

	data := res.Body
	mode := "binary"
	if !binary {
		text, transcoded := res.decodeText()
		if transcoded {
			text = declareCSSUTF8(text)
			mode = "text, transcoded from " + res.Charset()
		} else {
			mode = "text"
		}
		data = []byte(text)
	}
	s.log.WithFields(logrus.Fields{"url": resolvedURL, "path": local, "mode": mode}).Debug("writing external resource")
	if err := s.storage.Put(local, bytes.NewReader(data)); err != nil {
		s.log.WithFields(logrus.Fields{"url": resolvedURL, "path": local}).Errorf("store: %v", err)
		return "", fmt.Errorf("store %s: %w", local, err)
	}
	return StatusFetched, nil
}
