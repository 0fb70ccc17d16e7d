package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thegaspygames/canciones/internal/auth"
	"github.com/thegaspygames/canciones/internal/catalog"
	"github.com/thegaspygames/canciones/internal/model"
)

type stubLoader struct {
	songs []model.Song
	err   error
}

func (l stubLoader) LoadCatalog(ctx context.Context) ([]model.Song, error) {
	return l.songs, l.err
}

type stubGate struct {
	state auth.State
	token string
}

func (g stubGate) State() auth.State { return g.state }

func (g stubGate) Token() (string, error) {
	if g.state != auth.Authorized {
		return "", auth.ErrUnauthorized
	}
	return g.token, nil
}

type recordingPublisher struct {
	calls []catalog.PublishRequest
}

func (p *recordingPublisher) Publish(ctx context.Context, req catalog.PublishRequest) (*catalog.PublishResult, error) {
	p.calls = append(p.calls, req)
	rec := model.Song{ID: "new", Title: req.Title, File: "https://raw.test/music/new.mp3", Date: "2000-01-01"}
	return &catalog.PublishResult{RepoRecord: rec, ClientRecord: rec}, nil
}

func songs(n int) []model.Song {
	out := make([]model.Song, n)
	for i := range out {
		genre := "Rock"
		if i%2 == 1 {
			genre = "Jazz"
		}
		out[i] = model.Song{ID: fmt.Sprintf("s%02d", i), Title: fmt.Sprintf("Song %02d", i), File: fmt.Sprintf("f%02d", i), Genre: genre, AIModel: "IA"}
	}
	return out
}

func TestController_Paging(t *testing.T) {
	c := NewController(stubLoader{songs: songs(50)}, nil, nil, 0)
	require.NoError(t, c.Refresh(context.Background()))

	p := c.CurrentPage()
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 3, p.Total)
	assert.Len(t, p.Songs, model.DefaultPerPage)

	c.NextPage()
	p = c.NextPage()
	assert.Equal(t, 3, p.Number)
	assert.Len(t, p.Songs, 2)
	assert.Equal(t, 3, c.NextPage().Number)

	assert.Equal(t, 2, c.PrevPage().Number)

	p = c.SetQuery(model.Query{Genre: "Jazz", Model: model.All})
	assert.Equal(t, 1, p.Number)
	assert.Equal(t, 25, p.Count)
	assert.Equal(t, []string{"Jazz", "Rock"}, c.Genres())
}

func TestController_RefreshErrorKeepsSongs(t *testing.T) {
	c := NewController(stubLoader{songs: songs(3)}, nil, nil, 10)
	require.NoError(t, c.Refresh(context.Background()))

	c.loader = stubLoader{err: errors.New("offline")}
	require.Error(t, c.Refresh(context.Background()))
	assert.Len(t, c.Songs(), 3)
}

func TestController_PublishRequiresAuthorizedGate(t *testing.T) {
	for _, state := range []auth.State{auth.LoggedOut, auth.PendingAuthorization, auth.Verifying, auth.Denied} {
		t.Run(state.String(), func(t *testing.T) {
			pub := &recordingPublisher{}
			c := NewController(stubLoader{}, pub, stubGate{state: state, token: "tok"}, 0)

			p, err := c.Publisher()
			assert.Nil(t, p)
			assert.ErrorIs(t, err, auth.ErrUnauthorized)

			_, err = c.Publish(context.Background(), catalog.PublishRequest{Title: "x"})
			assert.ErrorIs(t, err, auth.ErrUnauthorized)
			assert.Empty(t, pub.calls)
		})
	}
}

func TestController_PublishPrependsWithoutResort(t *testing.T) {
	pub := &recordingPublisher{}
	existing := []model.Song{
		{ID: "a", File: "fa", Date: "2024-05-01"},
		{ID: "b", File: "fb", Date: "2024-04-01"},
	}
	c := NewController(stubLoader{songs: existing}, pub, stubGate{state: auth.Authorized, token: "tok"}, 0)
	c.SetRepositoryToken("ghp")
	require.NoError(t, c.Refresh(context.Background()))

	res, err := c.Publish(context.Background(), catalog.PublishRequest{Title: "Nueva"})
	require.NoError(t, err)
	assert.Equal(t, "new", res.ClientRecord.ID)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "ghp", pub.calls[0].Token)

	got := c.Songs()
	require.Len(t, got, 3)
	assert.Equal(t, "new", got[0].ID, "older date stays on top")
	assert.Equal(t, "a", got[1].ID)
}

type expiredGate struct{}

func (expiredGate) State() auth.State { return auth.Authorized }

func (expiredGate) Token() (string, error) { return "", auth.ErrUnauthorized }

func TestController_PublishRejectsExpiredSession(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewController(stubLoader{}, pub, expiredGate{}, 0)
	c.SetRepositoryToken("ghp")

	_, err := c.Publish(context.Background(), catalog.PublishRequest{Title: "x"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
	assert.Empty(t, pub.calls)
}

func TestController_PublishKeepsRequestToken(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewController(stubLoader{}, pub, stubGate{state: auth.Authorized, token: "tok"}, 0)
	c.SetRepositoryToken("ghp")

	_, err := c.Publish(context.Background(), catalog.PublishRequest{Title: "x", Token: "explicit"})
	require.NoError(t, err)
	require.Len(t, pub.calls, 1)
	assert.Equal(t, "explicit", pub.calls[0].Token)
}
