package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thegaspygames/canciones/internal/github"
	ioutils "github.com/thegaspygames/canciones/internal/io"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

const (
	// DefaultIndexName is the index file name inside the metadata directory.
	DefaultIndexName = "index.json"

	defaultAudioExt = "mp3"
	defaultCoverExt = "png"
)

// ContentStore reads and writes repository files.
type ContentStore interface {
	ReadJSON(ctx context.Context, path, token string, v any) (string, error)
	WriteFile(ctx context.Context, path string, content []byte, token, message, sha string) (*github.CommitResult, error)
}

// PublisherOptions holds the repository layout the publisher writes to.
type PublisherOptions struct {
	MusicDir     string
	CoverDir     string
	MetadataDir  string
	IndexName    string
	ManifestPath string
}

// Asset is an uploaded binary and its original file name.
type Asset struct {
	Name string
	Data []byte
}

// PublishRequest describes one new song.
type PublishRequest struct {
	Audio Asset

	// Cover is optional. Without it the record points at model.DefaultCover.
	Cover *Asset

	Title   string
	Genre   string
	AIModel string

	// Token authorizes the writes.
	Token string

	// CommitMessage overrides the message of the audio commit.
	CommitMessage string
}

// PublishResult is the outcome of a successful publish.
type PublishResult struct {
	// RepoRecord is the record as stored, with repository-relative paths.
	RepoRecord model.Song

	// ClientRecord is RepoRecord normalized for display.
	ClientRecord model.Song

	// ManifestErr is set when the manifest could not be updated. The publish
	// itself still succeeded.
	ManifestErr error
}

// Publisher writes new songs to the repository.
//
// Each step is its own commit. A failure before the index is rewritten
// leaves the files already committed in place.
type Publisher struct {
	store      ContentStore
	resolver   model.Resolver
	opts       PublisherOptions
	onProgress progress.Func

	now   func() time.Time
	newID func() (string, error)
}

// NewPublisher creates a Publisher.
func NewPublisher(store ContentStore, resolver model.Resolver, opts PublisherOptions, onProgress progress.Func) *Publisher {
	if opts.IndexName == "" {
		opts.IndexName = DefaultIndexName
	}
	return &Publisher{
		store:      store,
		resolver:   resolver,
		opts:       opts,
		onProgress: onProgress,
		now:        time.Now,
		newID: func() (string, error) {
			id, err := uuid.NewRandom()
			if err != nil {
				return "", err
			}
			return id.String(), nil
		},
	}
}

// IndexPath returns the repository path of the index file.
func (p *Publisher) IndexPath() string {
	return path.Join(p.opts.MetadataDir, p.opts.IndexName)
}

// Publish uploads the assets, writes the per-song metadata file, upserts the
// record into the index and, best effort, into the manifest.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	if len(req.Audio.Data) == 0 {
		return nil, errors.New("audio file is empty")
	}
	if req.Token == "" {
		return nil, errors.New("a token is required to publish")
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = strings.TrimSuffix(path.Base(req.Audio.Name), path.Ext(req.Audio.Name))
	}

	now := p.now()
	base := BaseName(title, now.UnixMilli())

	audioExt := extension(req.Audio.Name, defaultAudioExt)
	audioPath := path.Join(p.opts.MusicDir, base+"."+audioExt)
	message := req.CommitMessage
	if message == "" {
		message = "Add song: " + title
	}

	p.onProgress.Emit(progress.LevelInfo, fmt.Sprintf("Uploading %s", audioPath))
	if _, err := p.store.WriteFile(ctx, audioPath, req.Audio.Data, req.Token, message, ""); err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}

	coverPath := model.DefaultCover
	if req.Cover != nil && len(req.Cover.Data) > 0 {
		coverPath = path.Join(p.opts.CoverDir, base+"."+extension(req.Cover.Name, defaultCoverExt))
		p.onProgress.Emit(progress.LevelInfo, fmt.Sprintf("Uploading %s", coverPath))
		if _, err := p.store.WriteFile(ctx, coverPath, req.Cover.Data, req.Token, "Add cover: "+title, ""); err != nil {
			return nil, fmt.Errorf("upload cover: %w", err)
		}
	}

	id, err := p.newID()
	if err != nil || id == "" {
		id = "song-" + formatInt(now.UnixMilli())
	}

	genre := strings.TrimSpace(req.Genre)
	if genre == "" {
		genre = model.UnknownGenre
	}
	aiModel := strings.TrimSpace(req.AIModel)
	if aiModel == "" {
		aiModel = model.UnknownModel
	}

	record := model.Song{
		ID:           id,
		Title:        title,
		File:         audioPath,
		Cover:        coverPath,
		Date:         now.Format(model.DateLayout),
		Size:         int64(len(req.Audio.Data)),
		Genre:        genre,
		AIModel:      aiModel,
		DownloadName: ioutils.SanitizeFileName(title) + "." + audioExt,
		MetadataPath: path.Join(p.opts.MetadataDir, base+".json"),
	}

	doc, err := model.MarshalDocument(record)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	p.onProgress.Emit(progress.LevelInfo, fmt.Sprintf("Writing %s", record.MetadataPath))
	if _, err := p.store.WriteFile(ctx, record.MetadataPath, doc, req.Token, "Add metadata: "+title, ""); err != nil {
		return nil, fmt.Errorf("write metadata: %w", err)
	}

	p.onProgress.Emit(progress.LevelInfo, fmt.Sprintf("Updating %s", p.IndexPath()))
	if err := p.upsertCatalog(ctx, p.IndexPath(), record, req.Token, "Update index: "+title); err != nil {
		return nil, fmt.Errorf("update index: %w", err)
	}

	result := &PublishResult{RepoRecord: record}
	if p.opts.ManifestPath != "" {
		if err := p.upsertCatalog(ctx, p.opts.ManifestPath, record, req.Token, "Update "+path.Base(p.opts.ManifestPath)+": "+title); err != nil {
			result.ManifestErr = fmt.Errorf("update manifest: %w", err)
			p.onProgress.Emit(progress.LevelWarning, fmt.Sprintf("Could not update %s: %v", p.opts.ManifestPath, err))
		}
	}

	client, _ := model.Normalize(record, p.resolver)
	result.ClientRecord = client

	p.onProgress.Emit(progress.LevelSuccess, fmt.Sprintf("Published %q", title))
	return result, nil
}

// upsertCatalog rewrites the catalog at filePath with record at its head.
// Entries that do not collide with record are carried over unchanged. The
// previously read sha guards the write against concurrent updates.
func (p *Publisher) upsertCatalog(ctx context.Context, filePath string, record model.Song, token, message string) error {
	var raw json.RawMessage
	sha, err := p.store.ReadJSON(ctx, filePath, token, &raw)
	if err != nil && !errors.Is(err, github.ErrNotFound) {
		return err
	}

	doc, err := model.UpsertDocument(raw, record)
	if err != nil {
		return &github.ParseError{Path: filePath, Err: err}
	}
	_, err = p.store.WriteFile(ctx, filePath, doc, token, message, sha)
	return err
}

// extension returns the lower-cased extension of name without the dot, or
// def when name has none.
func extension(name, def string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	for _, r := range ext {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')) {
			return def
		}
	}
	if ext == "" {
		return def
	}
	return ext
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
