package extract

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// AssetStatus is the outcome of localizing one asset.
type AssetStatus string

const (
	StatusFetched AssetStatus = "fetched"
	StatusCached  AssetStatus = "cached"
	StatusSkipped AssetStatus = "skipped"
	StatusFailed  AssetStatus = "failed"
)

// rank orders statuses so a later success replaces an earlier failure.
func (s AssetStatus) rank() int {
	switch s {
	case StatusFetched:
		return 3
	case StatusCached:
		return 2
	case StatusFailed:
		return 1
	default:
		return 0
	}
}

// AssetRecord is one manifest row.
type AssetRecord struct {
	ResolvedURL string      `yaml:"url"`
	LocalPath   string      `yaml:"path,omitempty"`
	Category    string      `yaml:"category"`
	Status      AssetStatus `yaml:"status"`
	Error       string      `yaml:"error,omitempty"`
	References  []string    `yaml:"references"`
}

// AssetIndex deduplicates localization outcomes by resolved URL.
// It is safe for concurrent use.
type AssetIndex struct {
	mu    sync.Mutex
	byURL map[string]*AssetRecord
}

// NewAssetIndex creates an empty index.
func NewAssetIndex() *AssetIndex {
	return &AssetIndex{byURL: make(map[string]*AssetRecord)}
}

// Register records the outcome for ref. A record that already exists keeps
// the better status and gains ref in its reference list.
func (idx *AssetIndex) Register(ref string, rec AssetRecord) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	key := rec.ResolvedURL
	if key == "" {
		key = ref
	}
	existing, ok := idx.byURL[key]
	if !ok {
		rec.References = []string{ref}
		idx.byURL[key] = &rec
		return
	}
	if rec.Status.rank() > existing.Status.rank() {
		existing.Status = rec.Status
		existing.LocalPath = rec.LocalPath
		existing.Error = rec.Error
	}
	for _, r := range existing.References {
		if r == ref {
			return
		}
	}
	existing.References = append(existing.References, ref)
}

// Records returns a copy of all records sorted by resolved URL.
func (idx *AssetIndex) Records() []AssetRecord {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	out := make([]AssetRecord, 0, len(idx.byURL))
	for _, r := range idx.byURL {
		c := *r
		c.References = append([]string(nil), r.References...)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ResolvedURL < out[j].ResolvedURL
	})
	return out
}

// Counts tallies records per status.
func (idx *AssetIndex) Counts() map[AssetStatus]int {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	counts := make(map[AssetStatus]int, 4)
	for _, r := range idx.byURL {
		counts[r.Status]++
	}
	return counts
}

// Manifest is the document written to manifest.yaml.
type Manifest struct {
	Source    string        `yaml:"source"`
	Generated time.Time     `yaml:"generated"`
	Output    string        `yaml:"output"`
	Assets    []AssetRecord `yaml:"assets"`
}

// MarshalManifest renders the index as YAML.
func (idx *AssetIndex) MarshalManifest(source, output string, now time.Time) ([]byte, error) {
	m := Manifest{
		Source:    source,
		Generated: now.UTC(),
		Output:    output,
		Assets:    idx.Records(),
	}
	data, err := yaml.Marshal(&m)
	if err != nil {
		return nil, fmt.Errorf("marshal manifest: %w", err)
	}
	return data, nil
}
