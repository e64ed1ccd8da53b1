package extract

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// OutputMode selects how the rewritten page is serialized.
type OutputMode int

const (
	// OutputTemplate writes a FreeMarker layout with webfile tags around
	// every localized path. It is the default.
	OutputTemplate OutputMode = iota
	// OutputHTML writes plain HTML with relative paths.
	OutputHTML
)

func (m OutputMode) String() string {
	if m == OutputHTML {
		return "html"
	}
	return "template"
}

// ParseOutputMode accepts "html" or "template" (also "ftl").
func ParseOutputMode(s string) (OutputMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "html":
		return OutputHTML, nil
	case "", "template", "ftl":
		return OutputTemplate, nil
	}
	return OutputTemplate, fmt.Errorf("unknown output mode %q", s)
}

const (
	// DefaultUserAgent is a desktop Chrome string; some CDNs refuse bare Go clients.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_13_4) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/65.0.3325.181 Safari/537.36"
	DefaultTimeout = 3 * time.Second
)

// Config holds all runtime configuration for one extraction run.
type Config struct {
	SourceURL      string // page URL; also the origin for relative references
	SuppliedHTML   string // optional local file parsed instead of fetching SourceURL
	Directory      string
	DownloadVideos bool
	OutputMode     OutputMode
	Workers        int           // concurrent asset fetches per step (default 1)
	Timeout        time.Duration // per-request timeout (default 3s)
	UserAgent      string
	RatePerSec     float64 // fetch politeness limit, 0 = unlimited
	Retries        int     // retries on 429/5xx
	Logger         *logrus.Logger
	Storage        Storage   // if nil, NewLocalStorage(Directory) is used
	Fetcher        Fetcher   // if nil, NewHTTPFetcher(cfg) is used
	Progress       *Progress // optional; nil disables progress output
}

// logger returns cfg.Logger or a logger that discards everything.
func (cfg *Config) logger() *logrus.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func (cfg *Config) workers() int {
	if cfg.Workers <= 0 {
		return 1
	}
	return cfg.Workers
}

func (cfg *Config) storage() Storage {
	if cfg.Storage != nil {
		return cfg.Storage
	}
	return NewLocalStorage(cfg.Directory)
}
