package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
)

// Result summarises a completed run.
type Result struct {
	PagePath string // page file relative to the output root
	Counts   map[AssetStatus]int
}

// Run extracts one page: it obtains the document, bootstraps the output
// folders, localizes every asset and writes the rewritten page, the
// whitelist and the manifest. A missing supplied file or an unreachable page
// aborts before the page is written; assets already stored stay on disk.
func Run(ctx context.Context, cfg *Config) (*Result, error) {
	log := cfg.logger()

	page, err := url.Parse(cfg.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("parse source URL: %w", err)
	}

	store := NewAssetStore(cfg)
	doc, err := acquireDocument(ctx, cfg, store.fetcher, log)
	if err != nil {
		return nil, err
	}

	storage := store.Storage()
	folders := Folders(cfg.DownloadVideos)
	for _, f := range folders {
		if err := storage.MkdirAll(f); err != nil {
			return nil, fmt.Errorf("create folder %s: %w", f, err)
		}
	}
	if err := storage.PutBytes(WhitelistFileName, []byte(WhitelistContent(folders))); err != nil {
		return nil, fmt.Errorf("write whitelist: %w", err)
	}

	rw := NewDocumentRewriter(store, page, cfg.workers())
	if err := rw.Rewrite(ctx, doc); err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}
	cfg.Progress.Finish()

	renderer := RendererFor(cfg.OutputMode)
	out, err := renderer.Render(doc)
	if err != nil {
		return nil, err
	}
	if err := storage.PutBytes(renderer.FileName(), out); err != nil {
		return nil, fmt.Errorf("write %s: %w", renderer.FileName(), err)
	}

	manifest, err := store.Index().MarshalManifest(cfg.SourceURL, cfg.Directory, time.Now())
	if err != nil {
		return nil, err
	}
	if err := storage.PutBytes(ManifestFileName, manifest); err != nil {
		return nil, fmt.Errorf("write manifest: %w", err)
	}

	log.WithFields(logrus.Fields{"page": renderer.FileName(), "output": cfg.Directory}).Info("extraction complete")
	return &Result{PagePath: renderer.FileName(), Counts: store.Index().Counts()}, nil
}

// acquireDocument parses cfg.SuppliedHTML when set, otherwise fetches the
// source URL.
func acquireDocument(ctx context.Context, cfg *Config, fetcher Fetcher, log *logrus.Logger) (*goquery.Document, error) {
	var (
		body       []byte
		transcoded bool
	)
	if cfg.SuppliedHTML != "" {
		data, err := os.ReadFile(cfg.SuppliedHTML)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("%w: %s", ErrMissingSource, cfg.SuppliedHTML)
			}
			return nil, fmt.Errorf("read %s: %w", cfg.SuppliedHTML, err)
		}
		body = data
	} else {
		res, err := fetcher.Fetch(ctx, cfg.SourceURL)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrOriginUnreachable, err)
		}
		if !IsHTMLFile(cfg.SourceURL, res.ContentType, res.Body) {
			log.WithFields(logrus.Fields{"url": cfg.SourceURL, "content_type": res.ContentType}).
				Warn("source does not look like HTML")
		}
		var text string
		text, transcoded = res.decodeText()
		body = []byte(text)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	if transcoded {
		log.Debug("page transcoded to UTF-8, rewriting its charset declarations")
		declareHTMLUTF8(doc)
	}
	return doc, nil
}
