package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/thegaspygames/canciones/internal/github"
	httpc "github.com/thegaspygames/canciones/internal/http"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

// MaxFetchConcurrency caps simultaneous metadata file reads in the
// directory fallback.
const MaxFetchConcurrency = 4

// Lister lists a repository directory.
type Lister interface {
	ListDirectory(ctx context.Context, path, token string) ([]github.Entry, error)
}

// Fetcher performs cache-defeating GETs.
type Fetcher interface {
	GetFresh(ctx context.Context, rawURL string) ([]byte, error)
}

// AggregatorOptions locates the catalog inside the repository.
type AggregatorOptions struct {
	// MetadataDir holds one JSON file per song plus the index file.
	MetadataDir string

	// IndexName is the index file name inside MetadataDir.
	IndexName string

	// SiteBaseURL is the published site root. When set, the index is also
	// tried at SiteBaseURL/<MetadataDir>/<IndexName>.
	SiteBaseURL string

	// Concurrency is the batch size of the directory fallback, clamped to
	// [1, MaxFetchConcurrency].
	Concurrency int

	// Token is sent with directory listings; empty for public repositories.
	Token string
}

// Aggregator produces the ordered song catalog.
type Aggregator struct {
	resolver   model.Resolver
	lister     Lister
	fetcher    Fetcher
	opts       AggregatorOptions
	onProgress progress.Func
}

// NewAggregator creates an Aggregator.
func NewAggregator(resolver model.Resolver, lister Lister, fetcher Fetcher, opts AggregatorOptions, onProgress progress.Func) *Aggregator {
	if opts.Concurrency <= 0 || opts.Concurrency > MaxFetchConcurrency {
		opts.Concurrency = MaxFetchConcurrency
	}
	if opts.IndexName == "" {
		opts.IndexName = DefaultIndexName
	}
	return &Aggregator{
		resolver:   resolver,
		lister:     lister,
		fetcher:    fetcher,
		opts:       opts,
		onProgress: onProgress,
	}
}

// IndexPath returns the repository path of the index file.
func (a *Aggregator) IndexPath() string {
	return path.Join(a.opts.MetadataDir, a.opts.IndexName)
}

// LoadCatalog returns every usable song, newest first.
//
// The index file is tried first; when it yields no usable entry the metadata
// directory is scanned instead. An empty catalog is a valid result. An error
// is returned only when the directory scan itself fails.
func (a *Aggregator) LoadCatalog(ctx context.Context) ([]model.Song, error) {
	songs, indexErr := a.loadIndex(ctx)
	if len(songs) > 0 {
		a.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Loaded %d songs from %s", len(songs), a.IndexPath()))
		return songs, nil
	}

	a.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Index empty, scanning %s", a.opts.MetadataDir))
	songs, err := a.scanDirectory(ctx)
	if err != nil {
		return nil, errors.Join(err, indexErr)
	}
	return songs, nil
}

func (a *Aggregator) indexCandidates() []string {
	p := a.IndexPath()
	candidates := []string{a.resolver.Resolve(p, "")}
	if a.opts.SiteBaseURL != "" {
		if u, err := url.JoinPath(a.opts.SiteBaseURL, strings.Split(p, "/")...); err == nil {
			candidates = append(candidates, u)
		}
	}
	return candidates
}

// loadIndex returns the normalized index entries. The first candidate that
// answers successfully is used, even if its content turns out unusable.
func (a *Aggregator) loadIndex(ctx context.Context) ([]model.Song, error) {
	var lastErr error
	for _, candidate := range a.indexCandidates() {
		data, err := a.fetcher.GetFresh(ctx, candidate)
		if err != nil {
			if !isNotFound(err) {
				lastErr = fmt.Errorf("fetch index %s: %w", candidate, err)
			}
			a.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Could not load index from %s: %v", candidate, err))
			continue
		}

		cat, dropped, err := model.DecodeCatalog(data)
		if err != nil {
			a.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Index at %s is not valid JSON: %v", candidate, err))
			return nil, &github.ParseError{Path: a.IndexPath(), Err: err}
		}
		if dropped > 0 {
			a.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Skipped %d malformed index entries", dropped))
		}
		return a.normalizeAll(cat.Songs), nil
	}
	return nil, lastErr
}

func (a *Aggregator) normalizeAll(raw []model.Song) []model.Song {
	songs := make([]model.Song, 0, len(raw))
	for _, s := range raw {
		n, ok := model.Normalize(s, a.resolver)
		if !ok {
			a.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Dropped entry %q without audio file", s.ID))
			continue
		}
		songs = append(songs, n)
	}
	model.SortByDateDesc(songs)
	return songs
}

// scanDirectory reads every per-song metadata file, at most
// opts.Concurrency at a time, in fixed-size sequential batches.
func (a *Aggregator) scanDirectory(ctx context.Context) ([]model.Song, error) {
	entries, err := a.lister.ListDirectory(ctx, a.opts.MetadataDir, a.opts.Token)
	if err != nil {
		return nil, fmt.Errorf("list metadata directory: %w", err)
	}

	var candidates []github.Entry
	for _, e := range entries {
		if e.Type != "" && !e.IsFile() {
			continue
		}
		if !strings.HasSuffix(strings.ToLower(e.Name), ".json") || e.Name == a.opts.IndexName {
			continue
		}
		candidates = append(candidates, e)
	}

	results := make([]*model.Song, len(candidates))
	batch := a.opts.Concurrency
	for start := 0; start < len(candidates); start += batch {
		end := min(start+batch, len(candidates))

		var g errgroup.Group
		g.SetLimit(batch)
		for i := start; i < end; i++ {
			g.Go(func() error {
				if s, ok := a.fetchRecord(ctx, candidates[i]); ok {
					results[i] = &s
				}
				return nil
			})
		}
		_ = g.Wait()

		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	songs := make([]model.Song, 0, len(results))
	for _, s := range results {
		if s != nil {
			songs = append(songs, *s)
		}
	}
	model.SortByDateDesc(songs)

	a.onProgress.Emit(progress.LevelVerbose, fmt.Sprintf("Loaded %d of %d metadata files", len(songs), len(candidates)))
	return songs, nil
}

func (a *Aggregator) fetchRecord(ctx context.Context, e github.Entry) (model.Song, bool) {
	p := e.Path
	if p == "" {
		p = path.Join(a.opts.MetadataDir, e.Name)
	}
	target := e.DownloadURL
	if target == "" {
		target = a.resolver.Resolve(p, "")
	}

	data, err := a.fetcher.GetFresh(ctx, target)
	if err != nil {
		a.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Could not read %s: %v", p, err))
		return model.Song{}, false
	}

	var raw model.Song
	if err := json.Unmarshal(data, &raw); err != nil {
		a.onProgress.Emit(progress.LevelWarning, (&github.ParseError{Path: p, Err: err}).Error())
		return model.Song{}, false
	}

	s, ok := model.Normalize(raw, a.resolver)
	if !ok {
		a.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Skipping %s: no audio file", p))
		return model.Song{}, false
	}
	if s.MetadataPath == "" {
		s.MetadataPath = p
	}
	return s, true
}

func isNotFound(err error) bool {
	var se *httpc.StatusError
	return errors.Is(err, github.ErrNotFound) || (errors.As(err, &se) && se.StatusCode == 404)
}
