package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/sigman78/webextract/internal/extract"
)

var (
	colorSuccess = color.New(color.FgGreen).SprintFunc()
	colorWarn    = color.New(color.FgYellow).SprintFunc()
	colorError   = color.New(color.FgRed).SprintFunc()
	colorInfo    = color.New(color.FgCyan).SprintFunc()
	colorDim     = color.New(color.Faint).SprintFunc()
	colorBold    = color.New(color.Bold).SprintFunc()
)

const (
	prefixSaved = "✓"
	prefixWarn  = "⚠"
	prefixInfo  = "→"
)

func printStart(w io.Writer, cfg *extract.Config) {
	source := cfg.SourceURL
	if cfg.SuppliedHTML != "" {
		source = cfg.SuppliedHTML + " (as " + cfg.SourceURL + ")"
	}
	fmt.Fprintf(w, "%s Extracting %s into %s\n", colorInfo(prefixInfo), source, colorDim(cfg.Directory))
}

// printSummary reports the written page and how each asset ended up.
func printSummary(w io.Writer, cfg *extract.Config, res *extract.Result) {
	fmt.Fprintf(w, "%s Saved %s\n", colorSuccess(prefixSaved), colorBold(filepath.Join(cfg.Directory, res.PagePath)))

	c := res.Counts
	fmt.Fprintf(w, "  %d fetched, %d already present, %d kept remote\n",
		c[extract.StatusFetched], c[extract.StatusCached], c[extract.StatusSkipped])
	if n := c[extract.StatusFailed]; n > 0 {
		fmt.Fprintf(w, "%s %d assets could not be downloaded, see %s\n",
			colorWarn(prefixWarn), n, filepath.Join(cfg.Directory, extract.ManifestFileName))
	}
}
