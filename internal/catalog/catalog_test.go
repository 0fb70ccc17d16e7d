package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegaspygames/canciones/internal/assets"
	"github.com/thegaspygames/canciones/internal/github"
	"github.com/thegaspygames/canciones/internal/model"
	"github.com/thegaspygames/canciones/internal/progress"
)

const raw = "https://raw.githubusercontent.com/octo/canciones/main/"

type fakeFetcher struct {
	mu       sync.Mutex
	pages    map[string]string
	errs     map[string]error
	inFlight atomic.Int32
	peak     atomic.Int32
	calls    []string
}

func (f *fakeFetcher) GetFresh(ctx context.Context, rawURL string) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)

	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()

	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	if body, ok := f.pages[rawURL]; ok {
		return []byte(body), nil
	}
	return nil, github.ErrNotFound
}

type fakeLister struct {
	entries []github.Entry
	err     error
	calls   int
}

func (l *fakeLister) ListDirectory(ctx context.Context, path, token string) ([]github.Entry, error) {
	l.calls++
	return l.entries, l.err
}

func newAggregator(f *fakeFetcher, l *fakeLister, events *[]progress.Event) *Aggregator {
	return NewAggregator(
		assets.NewResolver("octo", "canciones", "main"),
		l, f,
		AggregatorOptions{MetadataDir: "music-metadata", SiteBaseURL: "https://example.test/canciones/"},
		func(e progress.Event) {
			if events != nil {
				*events = append(*events, e)
			}
		},
	)
}

func TestAggregator_IndexFirst(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		raw + "music-metadata/index.json": `{"songs":[
			{"id":"a","title":"A","file":"music/a.mp3","date":"2024-01-01"},
			{"id":"b","title":"B","file":"music/b.mp3","date":"2024-03-01"},
			{"id":"c","title":"C","file":""}
		]}`,
	}}
	l := &fakeLister{}

	songs, err := newAggregator(f, l, nil).LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)
	assert.Equal(t, "b", songs[0].ID)
	assert.Equal(t, raw+"music/b.mp3", songs[0].File)
	assert.Equal(t, raw+model.DefaultCover, songs[0].Cover)
	assert.Equal(t, 0, l.calls)
}

func TestAggregator_SiteCandidate(t *testing.T) {
	f := &fakeFetcher{
		errs: map[string]error{raw + "music-metadata/index.json": errors.New("connection reset")},
		pages: map[string]string{
			"https://example.test/canciones/music-metadata/index.json": `{"songs":[{"file":"music/x.mp3"}]}`,
		},
	}

	songs, err := newAggregator(f, &fakeLister{}, nil).LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 1)
	assert.Equal(t, "x", songs[0].Title)
}

func TestAggregator_KeepsEntriesWithBadFieldTypes(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		raw + "music-metadata/index.json": `{"songs":[
			{"id":"a","file":"music/a.mp3","size":"4.2 MB"},
			{"id":7,"file":"music/b.mp3"},
			"oops"
		]}`,
	}}
	var events []progress.Event

	songs, err := newAggregator(f, &fakeLister{}, &events).LoadCatalog(context.Background())
	require.NoError(t, err)
	require.Len(t, songs, 2)

	byID := map[string]model.Song{}
	for _, s := range songs {
		byID[s.ID] = s
	}
	assert.Equal(t, raw+"music/a.mp3", byID["a"].File)
	assert.Zero(t, byID["a"].Size)
	assert.Equal(t, raw+"music/b.mp3", byID["7"].File)
}

func TestAggregator_EmptyIndexFallsBackOnce(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		raw + "music-metadata/index.json": `{"songs":[]}`,
		raw + "music-metadata/a.json":     `{"id":"a","file":"music/a.mp3","date":"2024-01-01"}`,
		"https://dl.test/b.json":          `{"id":"b","file":"music/b.mp3","date":"2024-02-01","metadataPath":"custom/b.json"}`,
		raw + "music-metadata/broken.json": `{"id":`,
		raw + "music-metadata/nofile.json": `{"id":"n"}`,
	}}
	l := &fakeLister{entries: []github.Entry{
		{Name: "index.json", Path: "music-metadata/index.json", Type: "file"},
		{Name: "a.json", Path: "music-metadata/a.json", Type: "file"},
		{Name: "b.json", Path: "music-metadata/b.json", Type: "file", DownloadURL: "https://dl.test/b.json"},
		{Name: "broken.json", Path: "music-metadata/broken.json", Type: "file"},
		{Name: "nofile.json", Path: "music-metadata/nofile.json", Type: "file"},
		{Name: "readme.md", Path: "music-metadata/readme.md", Type: "file"},
		{Name: "old.json", Path: "music-metadata/old.json", Type: "dir"},
	}}
	var events []progress.Event

	songs, err := newAggregator(f, l, &events).LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, l.calls)
	require.Len(t, songs, 2)
	assert.Equal(t, "b", songs[0].ID)
	assert.Equal(t, "custom/b.json", songs[0].MetadataPath)
	assert.Equal(t, "music-metadata/a.json", songs[1].MetadataPath)

	var warnings int
	for _, e := range events {
		if e.Level == progress.LevelWarning {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
}

func TestAggregator_FallbackConcurrencyBounded(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{}}
	l := &fakeLister{}
	for i := range 11 {
		name := fmt.Sprintf("s%02d.json", i)
		f.pages[raw+"music-metadata/"+name] = fmt.Sprintf(`{"file":"music/s%02d.mp3"}`, i)
		l.entries = append(l.entries, github.Entry{Name: name, Path: "music-metadata/" + name, Type: "file"})
	}

	songs, err := newAggregator(f, l, nil).LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Len(t, songs, 11)
	assert.LessOrEqual(t, f.peak.Load(), int32(MaxFetchConcurrency))
}

func TestAggregator_ListingFailure(t *testing.T) {
	f := &fakeFetcher{}
	l := &fakeLister{err: &github.RemoteError{StatusCode: 500, Message: "boom"}}

	_, err := newAggregator(f, l, nil).LoadCatalog(context.Background())
	require.Error(t, err)
	var re *github.RemoteError
	assert.ErrorAs(t, err, &re)
}

func TestAggregator_EmptyRepository(t *testing.T) {
	songs, err := newAggregator(&fakeFetcher{}, &fakeLister{}, nil).LoadCatalog(context.Background())
	require.NoError(t, err)
	assert.Empty(t, songs)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Canción de Otoño!", "cancion-de-otono"},
		{"  Hello,   World  ", "hello-world"},
		{"ÀÉÎÕÜ ñ", "aeiou-n"},
		{"---", ""},
		{"日本語", ""},
		{"Track 07", "track-07"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
	assert.Equal(t, "cancion-42", BaseName("!!!", 42))
}

type storedFile struct {
	data []byte
	sha  string
}

type memStore struct {
	files  map[string]storedFile
	fail   map[string]error
	writes []string
	seq    int
}

func newMemStore() *memStore {
	return &memStore{files: map[string]storedFile{}, fail: map[string]error{}}
}

func (m *memStore) ReadJSON(ctx context.Context, path, token string, v any) (string, error) {
	f, ok := m.files[path]
	if !ok {
		return "", github.ErrNotFound
	}
	if err := json.Unmarshal(f.data, v); err != nil {
		return "", &github.ParseError{Path: path, Err: err}
	}
	return f.sha, nil
}

func (m *memStore) WriteFile(ctx context.Context, path string, content []byte, token, message, sha string) (*github.CommitResult, error) {
	if err := m.fail[path]; err != nil {
		return nil, err
	}
	if cur, ok := m.files[path]; ok && cur.sha != sha {
		return nil, &github.RemoteError{StatusCode: 409, Message: "sha mismatch"}
	}
	m.seq++
	m.files[path] = storedFile{data: content, sha: fmt.Sprintf("sha%d", m.seq)}
	m.writes = append(m.writes, path)
	return &github.CommitResult{}, nil
}

func (m *memStore) catalog(t *testing.T, path string) model.Catalog {
	t.Helper()
	cat, _, err := model.DecodeCatalog(m.files[path].data)
	require.NoError(t, err)
	return cat
}

func newPublisher(store *memStore, millis int64) *Publisher {
	p := NewPublisher(store, assets.NewResolver("octo", "canciones", "main"), PublisherOptions{
		MusicDir:     "music",
		CoverDir:     "assets/covers",
		MetadataDir:  "music-metadata",
		ManifestPath: "songs.json",
	}, nil)
	p.now = func() time.Time { return time.UnixMilli(millis).UTC() }
	return p
}

func TestPublisher_Publish(t *testing.T) {
	store := newMemStore()
	p := newPublisher(store, 1712345678901)
	p.newID = func() (string, error) { return "id-1", nil }

	res, err := p.Publish(context.Background(), PublishRequest{
		Audio:   Asset{Name: "Demo.WAV", Data: []byte("RIFF....")},
		Cover:   &Asset{Name: "cover.jpg", Data: []byte{0xff, 0xd8}},
		Title:   "Noche de Lluvia",
		Genre:   "Lo-fi",
		AIModel: "Suno v3",
		Token:   "tok",
	})
	require.NoError(t, err)
	require.NoError(t, res.ManifestErr)

	rec := res.RepoRecord
	assert.Equal(t, "id-1", rec.ID)
	assert.Equal(t, "music/noche-de-lluvia-1712345678901.wav", rec.File)
	assert.Equal(t, "assets/covers/noche-de-lluvia-1712345678901.jpg", rec.Cover)
	assert.Equal(t, "music-metadata/noche-de-lluvia-1712345678901.json", rec.MetadataPath)
	assert.Equal(t, "Noche de Lluvia.wav", rec.DownloadName)
	assert.Equal(t, int64(8), rec.Size)
	assert.Equal(t, "2024-04-05", rec.Date)

	assert.Equal(t, raw+rec.File, res.ClientRecord.File)

	assert.Equal(t, []string{
		rec.File,
		rec.Cover,
		rec.MetadataPath,
		"music-metadata/index.json",
		"songs.json",
	}, store.writes)

	var meta model.Song
	require.NoError(t, json.Unmarshal(store.files[rec.MetadataPath].data, &meta))
	assert.Equal(t, rec, meta)

	assert.Equal(t, []model.Song{rec}, store.catalog(t, "music-metadata/index.json").Songs)
	assert.Equal(t, []model.Song{rec}, store.catalog(t, "songs.json").Songs)
}

func TestPublisher_DefaultsWithoutCover(t *testing.T) {
	store := newMemStore()
	p := newPublisher(store, 5)
	p.newID = func() (string, error) { return "", errors.New("no entropy") }

	res, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "blob", Data: []byte("x")},
		Title: "¡¡¡",
		Token: "tok",
	})
	require.NoError(t, err)
	assert.Equal(t, "song-5", res.RepoRecord.ID)
	assert.Equal(t, "music/cancion-5.mp3", res.RepoRecord.File)
	assert.Equal(t, model.DefaultCover, res.RepoRecord.Cover)
	assert.Equal(t, model.UnknownGenre, res.RepoRecord.Genre)
	assert.Equal(t, model.UnknownModel, res.RepoRecord.AIModel)
	assert.Equal(t, raw+model.DefaultCover, res.ClientRecord.Cover)
}

func TestPublisher_CollidingFileLeavesOneRecord(t *testing.T) {
	store := newMemStore()
	p := newPublisher(store, 1000)

	first, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "a.mp3", Data: []byte("one")}, Title: "Same", Token: "tok",
	})
	require.NoError(t, err)

	// Same title and timestamp produce the same audio path.
	second, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "a.mp3", Data: []byte("two!")}, Title: "Same", Token: "tok",
	})
	require.Error(t, err, "re-creating an existing file without its sha is rejected")
	assert.True(t, github.IsConflict(err))
	assert.Nil(t, second)

	store.files = map[string]storedFile{
		"music-metadata/index.json": store.files["music-metadata/index.json"],
	}
	second, err = p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "a.mp3", Data: []byte("two!")}, Title: "Same", Token: "tok",
	})
	require.NoError(t, err)
	require.Equal(t, first.RepoRecord.File, second.RepoRecord.File)

	songs := store.catalog(t, "music-metadata/index.json").Songs
	require.Len(t, songs, 1)
	assert.Equal(t, second.RepoRecord.ID, songs[0].ID)
	assert.Equal(t, int64(4), songs[0].Size)
}

func TestPublisher_KeepsExistingEntriesVerbatim(t *testing.T) {
	store := newMemStore()
	store.files["music-metadata/index.json"] = storedFile{sha: "s0", data: []byte(`{"songs":[
		{"id":"a","file":"music/a.mp3","size":"4.2 MB"},
		{"id":7,"file":"music/b.mp3"},
		{"id":"c","file":"music/c.mp3","artist":"Gaspy","duration":181}
	]}`)}
	p := newPublisher(store, 1)
	p.newID = func() (string, error) { return "new", nil }

	res, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "n.mp3", Data: []byte("x")}, Title: "New", Token: "tok",
	})
	require.NoError(t, err)

	var doc struct {
		Songs []map[string]any `json:"songs"`
	}
	require.NoError(t, json.Unmarshal(store.files["music-metadata/index.json"].data, &doc))
	require.Len(t, doc.Songs, 4)
	assert.Equal(t, "new", doc.Songs[0]["id"])
	assert.Equal(t, res.RepoRecord.File, doc.Songs[0]["file"])
	assert.Equal(t, "4.2 MB", doc.Songs[1]["size"])
	assert.Equal(t, float64(7), doc.Songs[2]["id"])
	assert.Equal(t, "Gaspy", doc.Songs[3]["artist"])
	assert.Equal(t, float64(181), doc.Songs[3]["duration"])
}

func TestPublisher_ManifestFailureIsNotFatal(t *testing.T) {
	store := newMemStore()
	store.fail["songs.json"] = &github.RemoteError{StatusCode: 403, Message: "forbidden"}
	var events []progress.Event
	p := newPublisher(store, 1)
	p.onProgress = func(e progress.Event) { events = append(events, e) }

	res, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "a.mp3", Data: []byte("x")}, Title: "T", Token: "tok",
	})
	require.NoError(t, err)
	require.Error(t, res.ManifestErr)
	assert.Len(t, store.catalog(t, "music-metadata/index.json").Songs, 1)

	var warned bool
	for _, e := range events {
		warned = warned || (e.Level == progress.LevelWarning && strings.Contains(e.Message, "songs.json"))
	}
	assert.True(t, warned)
}

func TestPublisher_IndexFailureIsFatal(t *testing.T) {
	store := newMemStore()
	store.files["music-metadata/index.json"] = storedFile{data: []byte("not json"), sha: "s"}
	p := newPublisher(store, 1)

	_, err := p.Publish(context.Background(), PublishRequest{
		Audio: Asset{Name: "a.mp3", Data: []byte("x")}, Title: "T", Token: "tok",
	})
	require.Error(t, err)
	var pe *github.ParseError
	assert.ErrorAs(t, err, &pe)
	_, wrote := store.files["songs.json"]
	assert.False(t, wrote)
}

func TestPublisher_RejectsEmptyInput(t *testing.T) {
	p := newPublisher(newMemStore(), 1)
	_, err := p.Publish(context.Background(), PublishRequest{Title: "T", Token: "tok"})
	assert.Error(t, err)
	_, err = p.Publish(context.Background(), PublishRequest{Audio: Asset{Data: []byte("x")}})
	assert.Error(t, err)
}
